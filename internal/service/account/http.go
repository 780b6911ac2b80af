package account

import (
	"net/http"
	"time"

	"github.com/OfomiMatthew/tech-buddy/internal/auth"
	"github.com/OfomiMatthew/tech-buddy/internal/db"
	svcErr "github.com/OfomiMatthew/tech-buddy/internal/errors"
	"github.com/OfomiMatthew/tech-buddy/internal/repository"
	"github.com/OfomiMatthew/tech-buddy/internal/server"
	"github.com/OfomiMatthew/tech-buddy/internal/service/view"
)

// multipartMemory is how much of a multipart body is buffered before spilling to disk.
const multipartMemory = 8 << 20

const dateLayout = "2006-01-02"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rt server.Routes) {
	rt.Public.HandleFunc("/auth/register", h.register).Methods(http.MethodPost)
	rt.Public.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)

	rt.Private.HandleFunc("/me", h.me).Methods(http.MethodGet)
	rt.Private.HandleFunc("/me/profile", h.updateProfile).Methods(http.MethodPut)
	rt.Private.HandleFunc("/me/settings", h.updateSettings).Methods(http.MethodPut)
	rt.Private.HandleFunc("/me/photo", h.uploadPhoto).Methods(http.MethodPost)
	rt.Private.HandleFunc("/me/deactivate", h.deactivate).Methods(http.MethodPost)
	rt.Private.HandleFunc("/users/{id}", h.profile).Methods(http.MethodGet)
	rt.Private.HandleFunc("/search", h.search).Methods(http.MethodGet)
	rt.Private.HandleFunc("/users/{id}/block", h.block).Methods(http.MethodPost)
	rt.Private.HandleFunc("/users/{id}/block", h.unblock).Methods(http.MethodDelete)
	rt.Private.HandleFunc("/blocked", h.blocked).Methods(http.MethodGet)
	rt.Private.HandleFunc("/users/{id}/report", h.report).Methods(http.MethodPost)
	rt.Private.HandleFunc("/notifications", h.notifications).Methods(http.MethodGet)
	rt.Private.HandleFunc("/notifications/read", h.markRead).Methods(http.MethodPost)
	rt.Private.HandleFunc("/notifications/unread-count", h.unreadCount).Methods(http.MethodGet)
	rt.Private.HandleFunc("/catalogue", h.catalogue).Methods(http.MethodGet)
}

// meJSON is the owner's view of their account, including private settings.
type meJSON struct {
	view.UserCard
	Email            string   `json:"email"`
	DateOfBirth      string   `json:"date_of_birth,omitempty"`
	LookingFor       string   `json:"looking_for,omitempty"`
	State            string   `json:"state,omitempty"`
	LearningGoals    string   `json:"learning_goals,omitempty"`
	CanTeach         string   `json:"can_teach,omitempty"`
	PortfolioURL     string   `json:"portfolio_url,omitempty"`
	LinkedinURL      string   `json:"linkedin_url,omitempty"`
	PreferredContact string   `json:"preferred_contact,omitempty"`
	Availability     string   `json:"availability,omitempty"`
	Settings         settings `json:"settings"`
	InterestIDs      []uint64 `json:"interest_ids"`
	LanguageIDs      []uint64 `json:"language_ids"`
}

type settings struct {
	ShowAge           bool   `json:"show_age"`
	ShowLocation      bool   `json:"show_location"`
	ShowOnlineStatus  bool   `json:"show_online_status"`
	ProfileVisibility string `json:"profile_visibility"`
}

func (h *Handler) ownView(u *db.User) meJSON {
	// the owner always sees their own fields regardless of privacy toggles
	full := *u
	p := db.Profile{}
	if u.Profile != nil {
		p = *u.Profile
	}
	shown := p
	shown.ShowAge, shown.ShowLocation, shown.ShowOnlineStatus = true, true, true
	full.Profile = &shown

	out := meJSON{
		UserCard:         view.User(&full, h.svc.Now(), h.svc.Online(u.ID)),
		Email:            u.Email,
		LookingFor:       u.LookingFor,
		State:            u.State,
		LearningGoals:    p.LearningGoals,
		CanTeach:         p.CanTeach,
		PortfolioURL:     p.PortfolioURL,
		LinkedinURL:      p.LinkedinURL,
		PreferredContact: p.PreferredContact,
		Availability:     p.Availability,
		Settings: settings{
			ShowAge:           p.ShowAge,
			ShowLocation:      p.ShowLocation,
			ShowOnlineStatus:  p.ShowOnlineStatus,
			ProfileVisibility: p.ProfileVisibility,
		},
		InterestIDs: make([]uint64, 0, len(u.Interests)),
		LanguageIDs: make([]uint64, 0, len(u.Languages)),
	}
	if u.DateOfBirth != nil {
		out.DateOfBirth = u.DateOfBirth.Format(dateLayout)
	}
	for _, i := range u.Interests {
		out.InterestIDs = append(out.InterestIDs, i.ID)
	}
	for _, l := range u.Languages {
		out.LanguageIDs = append(out.LanguageIDs, l.ID)
	}
	return out
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username    string `json:"username"`
		Email       string `json:"email"`
		Password    string `json:"password"`
		DateOfBirth string `json:"date_of_birth"`
		Gender      string `json:"gender"`
		LookingFor  string `json:"looking_for"`
		City        string `json:"city"`
		State       string `json:"state"`
		Country     string `json:"country"`
	}
	if err := server.DecodeJSON(r, &req); err != nil {
		server.Error(w, r, err)
		return
	}
	dob, err := time.Parse(dateLayout, req.DateOfBirth)
	if err != nil {
		server.Error(w, r, svcErr.InvalidArgument("date_of_birth must be YYYY-MM-DD"))
		return
	}
	u, err := h.svc.Register(r.Context(), RegisterInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		DateOfBirth: dob,
		Gender:      req.Gender,
		LookingFor:  req.LookingFor,
		City:        req.City,
		State:       req.State,
		Country:     req.Country,
	})
	if err != nil {
		server.Error(w, r, err)
		return
	}
	server.JSON(w, http.StatusCreated, map[string]any{"success": true, "user": h.ownView(u)})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Login    string `json:"login"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := server.DecodeJSON(r, &req); err != nil {
		server.Error(w, r, err)
		return
	}
	if req.Login == "" {
		req.Login = req.Email
	}
	sess, err := h.svc.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		server.Error(w, r, err)
		return
	}
	server.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   sess.Token,
		"user":    view.User(sess.User, h.svc.Now(), true),
	})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	me := auth.UserID(r.Context())
	u, err := h.svc.GetProfile(r.Context(), me, me)
	if err != nil {
		server.Error(w, r, err)
		return
	}
	server.JSON(w, http.StatusOK, h.ownView(u))
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	target, err := server.PathID(r, "id")
	if err != nil {
		server.Error(w, r, err)
		return
	}
	u, err := h.svc.GetProfile(r.Context(), auth.UserID(r.Context()), target)
	if err != nil {
		server.Error(w, r, err)
		return
	}
	server.JSON(w, http.StatusOK, view.User(u, h.svc.Now(), h.svc.Online(u.ID)))
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Bio                   *string  `json:"bio"`
		CurrentRole           *string  `json:"current_role"`
		ExperienceLevel       *string  `json:"experience_level"`
		LearningGoals         *string  `json:"learning_goals"`
		CanTeach              *string  `json:"can_teach"`
		CollaborationInterest *string  `json:"collaboration_interest"`
		PreferredContact      *string  `json:"preferred_contact"`
		Availability          *string  `json:"availability"`
		GithubURL             *string  `json:"github_url"`
		PortfolioURL          *string  `json:"portfolio_url"`
		LinkedinURL           *string  `json:"linkedin_url"`
		City                  *string  `json:"city"`
		State                 *string  `json:"state"`
		Country               *string  `json:"country"`
		InterestIDs           []uint64 `json:"interest_ids"`
		LanguageIDs           []uint64 `json:"language_ids"`
	}
	if err := server.DecodeJSON(r, &req); err != nil {
		server.Error(w, r, err)
		return
	}
	u, err := h.svc.UpdateProfile(r.Context(), auth.UserID(r.Context()), ProfileUpdate(req))
	if err != nil {
		server.Error(w, r, err)
		return
	}
	server.JSON(w, http.StatusOK, map[string]any{"success": true, "user": h.ownView(u)})
}

func (h *Handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShowAge           *bool   `json:"show_age"`
		ShowLocation      *bool   `json:"show_location"`
		ShowOnlineStatus  *bool   `json:"show_online_status"`
		ProfileVisibility *string `json:"profile_visibility"`
	}
	if err := server.DecodeJSON(r, &req); err != nil {
		server.Error(w, r, err)
		return
	}
	u, err := h.svc.UpdateSettings(r.Context(), auth.UserID(r.Context()), Settings(req))
	if err != nil {
		server.Error(w, r, err)
		return
	}
	server.JSON(w, http.StatusOK, map[string]any{"success": true, "user": h.ownView(u)})
}

func (h *Handler) uploadPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.svc.appCtx.Config.Storage.MaxUploadSize+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		server.Error(w, r, svcErr.InvalidArgument("invalid multipart form"))
		return
	}
	file, header, err := r.FormFile("photo")
	if err != nil {
		server.Error(w, r, svcErr.InvalidArgument("no photo provided"))
		return
	}
	defer file.Close()

	u, err := h.svc.UploadPhoto(r.Context(), auth.UserID(r.Context()),
		header.Filename, header.Size, header.Header.Get("Content-Type"), file)
	if err != nil {
		server.Error(w, r, err)
		return
	}
	server.JSON(w, http.StatusOK, map[string]any{"success": true, "profile_photo": u})
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Deactivate(r.Context(), auth.UserID(r.Context())); err != nil {
		server.Error(w, r, err)
		return
	}
	server.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	users, err := h.svc.Search(r.Context(), auth.UserID(r.Context()), repository.SearchFilter{
		Query:                 q.Get("q"),
		ExperienceLevel:       q.Get("experience_level"),
		CollaborationInterest: q.Get("collaboration_interest"),
		MinAge:                server.QueryInt(r, "min_age", 0),
		MaxAge:                server.QueryInt(r, "max_age", 0),
		Limit:                 server.QueryInt(r, "limit", 0),
	})
	if err != nil {
		server.Error(w, r, err)
		return
	}
	server.JSON(w, http.StatusOK, map[string]any{"users": h.cards(users)})
}

func (h *Handler) cards(users []db.User) []view.UserCard {
	now := h.svc.Now()
	out := make([]view.UserCard, 0, len(users))
	for i := range users {
		out = append(out, view.User(&users[i], now, h.svc.Online(users[i].ID)))
	}
	return out
}

func (h *Handler) block(w http.ResponseWriter, r *http.Request) {
	target, err := server.PathID(r, "id")
	if err != nil {
		server.Error(w, r, err)
		return
	}
	if err := h.svc.Block(r.Context(), auth.UserID(r.Context()), target); err != nil {
		server.Error(w, r, err)
		return
	}
	server.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) unblock(w http.ResponseWriter, r *http.Request) {
	target, err := server.PathID(r, "id")
	if err != nil {
		server.Error(w, r, err)
		return
	}
	if err := h.svc.Unblock(r.Context(), auth.UserID(r.Context()), target); err != nil {
		server.Error(w, r, err)
		return
	}
	server.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) blocked(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListBlocked(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		server.Error(w, r, err)
		return
	}
	server.JSON(w, http.StatusOK, map[string]any{"users": h.cards(users)})
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	target, err := server.PathID(r, "id")
	if err != nil {
		server.Error(w, r, err)
		return
	}
	var req struct {
		Reason      string `json:"reason"`
		Description string `json:"description"`
	}
	if err := server.DecodeJSON(r, &req); err != nil {
		server.Error(w, r, err)
		return
	}
	rep, err := h.svc.Report(r.Context(), auth.UserID(r.Context()), target, req.Reason, req.Description)
	if err != nil {
		server.Error(w, r, err)
		return
	}
	server.JSON(w, http.StatusCreated, map[string]any{"success": true, "report_id": rep.ID, "status": rep.Status})
}

func (h *Handler) notifications(w http.ResponseWriter, r *http.Request) {
	ns, unread, err := h.svc.Notifications(r.Context(), auth.UserID(r.Context()), server.QueryInt(r, "limit", 0))
	if err != nil {
		server.Error(w, r, err)
		return
	}
	out := make([]view.Notification, 0, len(ns))
	for i := range ns {
		out = append(out, view.NewNotification(&ns[i]))
	}
	server.JSON(w, http.StatusOK, map[string]any{"notifications": out, "unread_count": unread})
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.MarkNotificationsRead(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		server.Error(w, r, err)
		return
	}
	server.JSON(w, http.StatusOK, map[string]any{"success": true, "marked": n})
}

func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.UnreadCount(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		server.Error(w, r, err)
		return
	}
	server.JSON(w, http.StatusOK, map[string]any{"count": n})
}

func (h *Handler) catalogue(w http.ResponseWriter, r *http.Request) {
	interests, languages, err := h.svc.Catalogue(r.Context())
	if err != nil {
		server.Error(w, r, err)
		return
	}
	type item struct {
		ID       uint64 `json:"id"`
		Name     string `json:"name"`
		Category string `json:"category,omitempty"`
	}
	is := make([]item, 0, len(interests))
	for _, i := range interests {
		is = append(is, item{ID: i.ID, Name: i.Name, Category: i.Category})
	}
	ls := make([]item, 0, len(languages))
	for _, l := range languages {
		ls = append(ls, item{ID: l.ID, Name: l.Name})
	}
	server.JSON(w, http.StatusOK, map[string]any{"interests": is, "languages": ls})
}
