package match

import (
	"net/http"
	"time"

	"github.com/OfomiMatthew/tech-buddy/internal/auth"
	"github.com/OfomiMatthew/tech-buddy/internal/db"
	"github.com/OfomiMatthew/tech-buddy/internal/server"
	"github.com/OfomiMatthew/tech-buddy/internal/service/view"
)

// Handler exposes the engine over HTTP.
type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) RegisterRoutes(rt server.Routes) {
	rt.Private.HandleFunc("/discover", h.discover).Methods(http.MethodGet)
	rt.Private.HandleFunc("/users/{id}/like", h.like).Methods(http.MethodPost)
	rt.Private.HandleFunc("/likes/received", h.likedYou).Methods(http.MethodGet)
	rt.Private.HandleFunc("/likes/received/new", h.newLikedYou).Methods(http.MethodGet)
	rt.Private.HandleFunc("/likes/received/count", h.countLikedYou).Methods(http.MethodGet)
	rt.Private.HandleFunc("/matches", h.matches).Methods(http.MethodGet)
}

type likerJSON struct {
	UserID  uint64         `json:"user_id"`
	LikedAt time.Time      `json:"liked_at"`
	Profile *view.UserCard `json:"profile,omitempty"`
}

type matchJSON struct {
	MatchID   uint64        `json:"match_id"`
	MatchedAt time.Time     `json:"matched_at"`
	User      view.UserCard `json:"user"`
}

func (h *Handler) discover(w http.ResponseWriter, r *http.Request) {
	me := auth.UserID(r.Context())
	users, err := h.engine.Discover(r.Context(), me, server.QueryInt(r, "limit", 0))
	if err != nil {
		server.Error(w, r, err)
		return
	}
	now := h.engine.Now()
	cards := make([]view.UserCard, 0, len(users))
	for i := range users {
		cards = append(cards, view.User(&users[i], now, h.engine.Online(users[i].ID)))
	}
	server.JSON(w, http.StatusOK, map[string]any{"users": cards})
}

func (h *Handler) like(w http.ResponseWriter, r *http.Request) {
	target, err := server.PathID(r, "id")
	if err != nil {
		server.Error(w, r, err)
		return
	}
	res, err := h.engine.SubmitLike(r.Context(), auth.UserID(r.Context()), target)
	if err != nil {
		server.Error(w, r, err)
		return
	}
	msg := "Like sent"
	if res.Matched {
		msg = "It's a match!"
	}
	body := map[string]any{"success": true, "matched": res.Matched, "message": msg}
	if res.Match != nil {
		body["match_id"] = res.Match.ID
	}
	server.JSON(w, http.StatusOK, body)
}

func (h *Handler) likedYou(w http.ResponseWriter, r *http.Request) {
	likes, next, err := h.engine.ListLikedYou(r.Context(), auth.UserID(r.Context()), server.QueryToken(r), server.QueryInt(r, "limit", 0))
	h.writeLikers(w, r, likes, next, err)
}

func (h *Handler) newLikedYou(w http.ResponseWriter, r *http.Request) {
	likes, next, err := h.engine.ListNewLikedYou(r.Context(), auth.UserID(r.Context()), server.QueryToken(r), server.QueryInt(r, "limit", 0))
	h.writeLikers(w, r, likes, next, err)
}

func (h *Handler) writeLikers(w http.ResponseWriter, r *http.Request, likes []db.Like, next *string, err error) {
	if err != nil {
		server.Error(w, r, err)
		return
	}
	ids := make([]uint64, 0, len(likes))
	for _, l := range likes {
		ids = append(ids, l.LikerID)
	}
	users, err := h.engine.Profiles(r.Context(), ids)
	if err != nil {
		server.Error(w, r, err)
		return
	}

	now := h.engine.Now()
	out := make([]likerJSON, 0, len(likes))
	for _, l := range likes {
		item := likerJSON{UserID: l.LikerID, LikedAt: l.CreatedAt}
		if u, ok := users[l.LikerID]; ok {
			card := view.User(&u, now, h.engine.Online(u.ID))
			item.Profile = &card
		}
		out = append(out, item)
	}
	server.JSON(w, http.StatusOK, map[string]any{"likers": out, "next_token": next})
}

func (h *Handler) countLikedYou(w http.ResponseWriter, r *http.Request) {
	n, err := h.engine.CountLikedYou(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		server.Error(w, r, err)
		return
	}
	server.JSON(w, http.StatusOK, map[string]any{"count": n})
}

func (h *Handler) matches(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.ListMatches(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		server.Error(w, r, err)
		return
	}
	now := h.engine.Now()
	out := make([]matchJSON, 0, len(list))
	for i := range list {
		out = append(out, matchJSON{
			MatchID:   list[i].Match.ID,
			MatchedAt: list[i].Match.MatchedAt,
			User:      view.User(&list[i].User, now, h.engine.Online(list[i].User.ID)),
		})
	}
	server.JSON(w, http.StatusOK, map[string]any{"matches": out})
}
