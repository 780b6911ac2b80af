package messaging

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/OfomiMatthew/tech-buddy/internal/auth"
	"github.com/OfomiMatthew/tech-buddy/internal/db"
	svcErr "github.com/OfomiMatthew/tech-buddy/internal/errors"
	"github.com/OfomiMatthew/tech-buddy/internal/server"
	"github.com/OfomiMatthew/tech-buddy/internal/service/view"
)

// multipartMemory is how much of a multipart body is buffered before spilling to disk.
const multipartMemory = 8 << 20

type Handler struct {
	svc    *Service
	online func(uint64) bool
}

// NewHandler exposes svc over HTTP. online may be nil.
func NewHandler(svc *Service, online func(uint64) bool) *Handler {
	if online == nil {
		online = func(uint64) bool { return false }
	}
	return &Handler{svc: svc, online: online}
}

func (h *Handler) RegisterRoutes(rt server.Routes) {
	rt.Private.HandleFunc("/conversations", h.listConversations).Methods(http.MethodGet)
	rt.Private.HandleFunc("/conversations/{id}/messages", h.conversation).Methods(http.MethodGet)
	rt.Private.HandleFunc("/conversations/{id}/messages", h.send).Methods(http.MethodPost)
	rt.Private.HandleFunc("/conversations/{id}/read", h.markRead).Methods(http.MethodPost)
	rt.Private.HandleFunc("/messages/{id}/reaction", h.react).Methods(http.MethodPut)
	rt.Private.HandleFunc("/messages/{id}", h.delete).Methods(http.MethodDelete)
}

type conversationJSON struct {
	User        view.UserCard `json:"user"`
	MatchedAt   time.Time     `json:"matched_at"`
	LastMessage *view.Message `json:"last_message,omitempty"`
	UnreadCount int64         `json:"unread_count"`
}

func (h *Handler) listConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := h.svc.ListConversations(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		server.Error(w, r, err)
		return
	}
	now := h.svc.now()
	out := make([]conversationJSON, 0, len(convs))
	for i := range convs {
		c := conversationJSON{
			User:        view.User(&convs[i].User, now, h.online(convs[i].User.ID)),
			MatchedAt:   convs[i].MatchedAt,
			UnreadCount: convs[i].UnreadCount,
		}
		if convs[i].LastMessage != nil {
			m := view.NewMessage(convs[i].LastMessage)
			c.LastMessage = &m
		}
		out = append(out, c)
	}
	server.JSON(w, http.StatusOK, map[string]any{"conversations": out})
}

func (h *Handler) conversation(w http.ResponseWriter, r *http.Request) {
	other, err := server.PathID(r, "id")
	if err != nil {
		server.Error(w, r, err)
		return
	}
	msgs, next, err := h.svc.Conversation(r.Context(), auth.UserID(r.Context()), other, server.QueryToken(r), server.QueryInt(r, "limit", 0))
	if err != nil {
		server.Error(w, r, err)
		return
	}
	server.JSON(w, http.StatusOK, map[string]any{"messages": renderMessages(msgs), "next_token": next})
}

// send accepts either a JSON body {"content": "..."} or a multipart form
// with "content", an optional "file" and an optional "duration" in seconds.
func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	other, err := server.PathID(r, "id")
	if err != nil {
		server.Error(w, r, err)
		return
	}
	in := SendInput{SenderID: auth.UserID(r.Context()), ReceiverID: other}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, h.svc.appCtx.Config.Storage.MaxUploadSize+multipartMemory)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			server.Error(w, r, svcErr.InvalidArgument("invalid multipart form"))
			return
		}
		in.Content = r.FormValue("content")
		file, header, err := r.FormFile("file")
		if err == nil {
			defer file.Close()
			duration, _ := strconv.Atoi(r.FormValue("duration"))
			in.Attachment = &Attachment{
				Name:        header.Filename,
				Size:        header.Size,
				ContentType: header.Header.Get("Content-Type"),
				Duration:    duration,
				Body:        file,
			}
		} else if !errors.Is(err, http.ErrMissingFile) {
			server.Error(w, r, svcErr.InvalidArgument("invalid file upload"))
			return
		}
	} else {
		var body struct {
			Content string `json:"content"`
		}
		if err := server.DecodeJSON(r, &body); err != nil {
			server.Error(w, r, err)
			return
		}
		in.Content = body.Content
	}

	msg, err := h.svc.Send(r.Context(), in)
	if err != nil {
		server.Error(w, r, err)
		return
	}
	server.JSON(w, http.StatusCreated, map[string]any{"success": true, "message": view.NewMessage(msg)})
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	other, err := server.PathID(r, "id")
	if err != nil {
		server.Error(w, r, err)
		return
	}
	n, err := h.svc.MarkRead(r.Context(), auth.UserID(r.Context()), other)
	if err != nil {
		server.Error(w, r, err)
		return
	}
	server.JSON(w, http.StatusOK, map[string]any{"success": true, "updated": n})
}

func (h *Handler) react(w http.ResponseWriter, r *http.Request) {
	id, err := server.PathID(r, "id")
	if err != nil {
		server.Error(w, r, err)
		return
	}
	var body struct {
		Reaction *string `json:"reaction"`
	}
	if err := server.DecodeJSON(r, &body); err != nil {
		server.Error(w, r, err)
		return
	}
	msg, err := h.svc.React(r.Context(), id, auth.UserID(r.Context()), body.Reaction)
	if err != nil {
		server.Error(w, r, err)
		return
	}
	server.JSON(w, http.StatusOK, map[string]any{"success": true, "reaction": msg.Reaction})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := server.PathID(r, "id")
	if err != nil {
		server.Error(w, r, err)
		return
	}
	if err := h.svc.SoftDelete(r.Context(), id, auth.UserID(r.Context())); err != nil {
		server.Error(w, r, err)
		return
	}
	server.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func renderMessages(msgs []db.Message) []view.Message {
	out := make([]view.Message, 0, len(msgs))
	for i := range msgs {
		out = append(out, view.NewMessage(&msgs[i]))
	}
	return out
}
