package ai

import (
	"net/http"
	"strings"

	"github.com/OfomiMatthew/tech-buddy/internal/auth"
	svcErr "github.com/OfomiMatthew/tech-buddy/internal/errors"
	"github.com/OfomiMatthew/tech-buddy/internal/server"
)

// Handler exposes the AI features under /api/ai.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rt server.Routes) {
	r := rt.Private.PathPrefix("/ai").Subrouter()
	r.HandleFunc("/conversation-starters/{id}", h.starters).Methods(http.MethodGet)
	r.HandleFunc("/compatibility/{id}", h.compatibility).Methods(http.MethodGet)
	r.HandleFunc("/date-ideas/{id}", h.dateIdeas).Methods(http.MethodGet)
	r.HandleFunc("/enhance-bio", h.enhanceBio).Methods(http.MethodPost)
	r.HandleFunc("/message-coach", h.coach).Methods(http.MethodPost)
	r.HandleFunc("/profile-insights", h.insights).Methods(http.MethodGet)
	r.HandleFunc("/moderate", h.moderate).Methods(http.MethodPost)
}

func (h *Handler) starters(w http.ResponseWriter, r *http.Request) {
	other, err := server.PathID(r, "id")
	if err != nil {
		server.Error(w, r, err)
		return
	}
	starters, err := h.svc.ConversationStarters(r.Context(), auth.UserID(r.Context()), other)
	if err != nil {
		server.Error(w, r, err)
		return
	}
	server.JSON(w, http.StatusOK, map[string]any{"success": true, "starters": starters})
}

func (h *Handler) compatibility(w http.ResponseWriter, r *http.Request) {
	other, err := server.PathID(r, "id")
	if err != nil {
		server.Error(w, r, err)
		return
	}
	c, err := h.svc.Compatibility(r.Context(), auth.UserID(r.Context()), other)
	if err != nil {
		server.Error(w, r, err)
		return
	}
	server.JSON(w, http.StatusOK, map[string]any{"success": true, "analysis": c})
}

func (h *Handler) dateIdeas(w http.ResponseWriter, r *http.Request) {
	other, err := server.PathID(r, "id")
	if err != nil {
		server.Error(w, r, err)
		return
	}
	ideas, err := h.svc.DateIdeas(r.Context(), auth.UserID(r.Context()), other)
	if err != nil {
		server.Error(w, r, err)
		return
	}
	server.JSON(w, http.StatusOK, map[string]any{"success": true, "ideas": ideas})
}

func (h *Handler) enhanceBio(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Bio string `json:"bio"`
	}
	if err := server.DecodeJSON(r, &req); err != nil {
		server.Error(w, r, err)
		return
	}
	out, err := h.svc.EnhanceBio(r.Context(), auth.UserID(r.Context()), req.Bio)
	if err != nil {
		server.Error(w, r, err)
		return
	}
	server.JSON(w, http.StatusOK, map[string]any{"success": true, "suggestions": out})
}

func (h *Handler) coach(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
		Context string `json:"context"`
	}
	if err := server.DecodeJSON(r, &req); err != nil {
		server.Error(w, r, err)
		return
	}
	out, err := h.svc.CoachMessage(r.Context(), auth.UserID(r.Context()), req.Message, req.Context)
	if err != nil {
		server.Error(w, r, err)
		return
	}
	server.JSON(w, http.StatusOK, map[string]any{"success": true, "coaching": out})
}

func (h *Handler) insights(w http.ResponseWriter, r *http.Request) {
	in, err := h.svc.ProfileInsights(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		server.Error(w, r, err)
		return
	}
	server.JSON(w, http.StatusOK, map[string]any{"success": true, "insights": in.Text, "stats": in.Stats})
}

func (h *Handler) moderate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
		Type    string `json:"type"`
	}
	if err := server.DecodeJSON(r, &req); err != nil {
		server.Error(w, r, err)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		server.Error(w, r, svcErr.InvalidArgument("no content provided"))
		return
	}
	if req.Type == "" {
		req.Type = "message"
	}
	v := h.svc.Moderate(r.Context(), auth.UserID(r.Context()), req.Type, req.Content)
	server.JSON(w, http.StatusOK, map[string]any{"success": true, "moderation": v})
}
