package account

import (
	"context"
	"errors"
	"io"
	"net/mail"
	"net/url"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/OfomiMatthew/tech-buddy/internal/app"
	"github.com/OfomiMatthew/tech-buddy/internal/auth"
	"github.com/OfomiMatthew/tech-buddy/internal/cache"
	"github.com/OfomiMatthew/tech-buddy/internal/db"
	svcErr "github.com/OfomiMatthew/tech-buddy/internal/errors"
	"github.com/OfomiMatthew/tech-buddy/internal/repository"
	"github.com/OfomiMatthew/tech-buddy/internal/service/match"
	"github.com/OfomiMatthew/tech-buddy/internal/storage"
	"github.com/OfomiMatthew/tech-buddy/internal/utils/pagination"
)

const (
	minPassword      = 8
	minUsername      = 3
	maxUsername      = 80
	minAge           = 18
	maxLongText      = 500
	maxShortText     = 100
	maxReportText    = 1000
	maxSearchResults = 100
	notificationPage = 50
	photoFolder      = "profile_photos"
)

var visibilities = []string{"public", "matches_only", "private"}

type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	DateOfBirth time.Time
	Gender      string
	LookingFor  string
	City        string
	State       string
	Country     string
}

// Session is the result of a successful login.
type Session struct {
	Token string
	User  *db.User
}

// ProfileUpdate carries the editable profile fields. nil fields are left unchanged.
type ProfileUpdate struct {
	Bio                   *string
	CurrentRole           *string
	ExperienceLevel       *string
	LearningGoals         *string
	CanTeach              *string
	CollaborationInterest *string
	PreferredContact      *string
	Availability          *string
	GithubURL             *string
	PortfolioURL          *string
	LinkedinURL           *string
	City                  *string
	State                 *string
	Country               *string
	InterestIDs           []uint64
	LanguageIDs           []uint64
}

type Settings struct {
	ShowAge           *bool
	ShowLocation      *bool
	ShowOnlineStatus  *bool
	ProfileVisibility *string
}

// Service owns accounts, profiles, blocks, reports and notifications.
type Service struct {
	appCtx        *app.AppContext
	tokens        *auth.Manager
	users         *repository.UserRepository
	blocks        *repository.BlockRepository
	reports       *repository.ReportRepository
	notifications *repository.NotificationRepository
	presence      match.Presence
	now           func() time.Time
}

func NewService(appCtx *app.AppContext, tokens *auth.Manager) *Service {
	return &Service{
		appCtx:        appCtx,
		tokens:        tokens,
		users:         repository.NewUserRepository(appCtx.DB),
		blocks:        repository.NewBlockRepository(appCtx.DB),
		reports:       repository.NewReportRepository(appCtx.DB),
		notifications: repository.NewNotificationRepository(appCtx.DB),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Register creates an account with an empty profile.
//
// Behavior:
//   - Username 3 to 80 characters, a valid email, a password of at least 8
//     characters and an age of at least 18 are required (InvalidArgument).
//   - A taken username or email is AlreadyExists.
//   - The password is stored as a bcrypt hash.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*db.User, error) {
	s.appCtx.Logger.Debug("Register called", "username", in.Username)

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if n := utf8.RuneCountInString(in.Username); n < minUsername || n > maxUsername {
		return nil, svcErr.InvalidArgument("username must be between 3 and 80 characters")
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return nil, svcErr.InvalidArgument("invalid email address")
	}
	if utf8.RuneCountInString(in.Password) < minPassword {
		return nil, svcErr.InvalidArgument("password must be at least 8 characters")
	}
	now := s.now()
	if in.DateOfBirth.IsZero() || in.DateOfBirth.After(now) {
		return nil, svcErr.InvalidArgument("please enter a valid date of birth")
	}
	dob := in.DateOfBirth.UTC()
	candidate := db.User{DateOfBirth: &dob}
	if candidate.Age(now) < minAge {
		return nil, svcErr.InvalidArgument("you must be at least 18 years old to register")
	}

	taken, err := s.users.Exists(ctx, in.Email, in.Username)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if taken {
		return nil, svcErr.AlreadyExists("username or email already registered")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	u := &db.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Active:       true,
		DateOfBirth:  &dob,
		Gender:       in.Gender,
		LookingFor:   in.LookingFor,
		City:         strings.TrimSpace(in.City),
		State:        strings.TrimSpace(in.State),
		Country:      strings.TrimSpace(in.Country),
		Profile: &db.Profile{
			ShowAge:           true,
			ShowLocation:      true,
			ShowOnlineStatus:  true,
			ProfileVisibility: "public",
		},
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, svcErr.AlreadyExists("username or email already registered")
		}
		s.appCtx.Logger.Error("create user failed", "err", err)
		return nil, svcErr.Map(err)
	}
	s.appCtx.Logger.Info("user registered", "user", u.ID)
	return u, nil
}

// Login checks credentials by email or username and issues an access token.
// Unknown users and wrong passwords produce the same Unauthenticated error.
func (s *Service) Login(ctx context.Context, login, password string) (*Session, error) {
	s.appCtx.Logger.Debug("Login called")

	u, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, svcErr.Unauthenticated("invalid email or password")
		}
		return nil, svcErr.Map(err)
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, svcErr.Unauthenticated("invalid email or password")
	}
	if !u.Active {
		return nil, svcErr.PermissionDenied("account is deactivated")
	}

	token, err := s.tokens.GenerateToken(u.ID, u.Username)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	now := s.now()
	if err := s.users.TouchLastSeen(ctx, u.ID, now); err != nil {
		s.appCtx.Logger.Warn("last_seen update failed", "user", u.ID, "err", err)
	}
	u.LastSeen = &now
	return &Session{Token: token, User: u}, nil
}

// GetProfile loads targetID as seen by viewerID. Inactive users and users
// with a block edge either way are reported as NotFound.
func (s *Service) GetProfile(ctx context.Context, viewerID, targetID uint64) (*db.User, error) {
	u, err := s.loadUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if viewerID == targetID {
		return u, nil
	}
	if !u.Active {
		return nil, svcErr.NotFound("user not found")
	}
	blocked, err := s.blocks.IsBlockedEitherWay(ctx, viewerID, targetID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if blocked {
		return nil, svcErr.NotFound("user not found")
	}
	return u, nil
}

// UpdateProfile applies the non-nil fields of in to the user's own profile.
func (s *Service) UpdateProfile(ctx context.Context, userID uint64, in ProfileUpdate) (*db.User, error) {
	s.appCtx.Logger.Debug("UpdateProfile called", "user", userID)

	profile := map[string]any{}
	texts := []struct {
		col   string
		value *string
		max   int
	}{
		{"bio", in.Bio, maxLongText},
		{"learning_goals", in.LearningGoals, maxLongText},
		{"can_teach", in.CanTeach, maxLongText},
		{"current_role", in.CurrentRole, maxShortText},
		{"experience_level", in.ExperienceLevel, 50},
		{"collaboration_interest", in.CollaborationInterest, 50},
		{"preferred_contact", in.PreferredContact, 50},
		{"availability", in.Availability, maxShortText},
	}
	for _, f := range texts {
		if f.value == nil {
			continue
		}
		v := strings.TrimSpace(*f.value)
		if utf8.RuneCountInString(v) > f.max {
			return nil, svcErr.InvalidArgument(strings.ReplaceAll(f.col, "_", " ") + " is too long")
		}
		profile[f.col] = v
	}
	links := []struct {
		col   string
		value *string
	}{
		{"github_url", in.GithubURL},
		{"portfolio_url", in.PortfolioURL},
		{"linkedin_url", in.LinkedinURL},
	}
	for _, f := range links {
		if f.value == nil {
			continue
		}
		v := strings.TrimSpace(*f.value)
		if v != "" && !validURL(v) {
			return nil, svcErr.InvalidArgument(strings.ReplaceAll(f.col, "_", " ") + " must be an http(s) URL")
		}
		profile[f.col] = v
	}

	user := map[string]any{}
	for col, v := range map[string]*string{"city": in.City, "state": in.State, "country": in.Country} {
		if v == nil {
			continue
		}
		trimmed := strings.TrimSpace(*v)
		if utf8.RuneCountInString(trimmed) > maxShortText {
			return nil, svcErr.InvalidArgument(col + " is too long")
		}
		user[col] = trimmed
	}

	if _, err := s.loadUser(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.users.UpdateProfile(ctx, userID, profile); err != nil {
		return nil, svcErr.Map(err)
	}
	if err := s.users.UpdateUser(ctx, userID, user); err != nil {
		return nil, svcErr.Map(err)
	}
	if in.InterestIDs != nil || in.LanguageIDs != nil {
		if err := s.users.ReplaceSkills(ctx, userID, in.InterestIDs, in.LanguageIDs); err != nil {
			return nil, svcErr.Map(err)
		}
	}
	return s.loadUser(ctx, userID)
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// UpdateSettings changes the privacy toggles.
func (s *Service) UpdateSettings(ctx context.Context, userID uint64, in Settings) (*db.User, error) {
	fields := map[string]any{}
	if in.ShowAge != nil {
		fields["show_age"] = *in.ShowAge
	}
	if in.ShowLocation != nil {
		fields["show_location"] = *in.ShowLocation
	}
	if in.ShowOnlineStatus != nil {
		fields["show_online_status"] = *in.ShowOnlineStatus
	}
	if in.ProfileVisibility != nil {
		if !slices.Contains(visibilities, *in.ProfileVisibility) {
			return nil, svcErr.InvalidArgument("profile visibility must be public, matches_only or private")
		}
		fields["profile_visibility"] = *in.ProfileVisibility
	}
	if err := s.users.UpdateProfile(ctx, userID, fields); err != nil {
		return nil, svcErr.Map(err)
	}
	return s.loadUser(ctx, userID)
}

// UploadPhoto stores an image under profile_photos/ and sets it as the profile photo.
func (s *Service) UploadPhoto(ctx context.Context, userID uint64, name string, size int64, contentType string, body io.Reader) (string, error) {
	s.appCtx.Logger.Debug("UploadPhoto called", "user", userID, "name", name, "size", size)

	if !storage.IsImage(name) {
		return "", svcErr.InvalidArgument("profile photo must be png, jpg, jpeg, gif or webp")
	}
	if size > s.appCtx.Config.Storage.MaxUploadSize {
		return "", svcErr.InvalidArgument("file too large")
	}
	if s.appCtx.Storage == nil {
		return "", svcErr.Unavailable("file storage is not configured")
	}
	key, err := s.appCtx.Storage.Save(ctx, photoFolder, name, body, size, contentType)
	if errors.Is(err, storage.ErrTooLarge) {
		return "", svcErr.InvalidArgument("file too large")
	} else if err != nil {
		s.appCtx.Logger.Error("photo upload failed", "user", userID, "err", err)
		return "", svcErr.Map(err)
	}
	u, err := s.appCtx.Storage.URL(ctx, key)
	if err != nil {
		return "", svcErr.Map(err)
	}
	if err := s.users.UpdateProfile(ctx, userID, map[string]any{"profile_photo": u}); err != nil {
		return "", svcErr.Map(err)
	}
	return u, nil
}

// Search finds active users visible to viewerID. At most 100 results.
func (s *Service) Search(ctx context.Context, viewerID uint64, f repository.SearchFilter) ([]db.User, error) {
	if f.MinAge > 0 && f.MaxAge > 0 && f.MinAge > f.MaxAge {
		return nil, svcErr.InvalidArgument("min_age must not exceed max_age")
	}
	f.Limit = pagination.ClampLimit(f.Limit, maxSearchResults, maxSearchResults)
	users, err := s.users.Search(ctx, viewerID, f, s.now())
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return users, nil
}

// Catalogue lists the interests and languages a profile can pick from.
func (s *Service) Catalogue(ctx context.Context) ([]db.TechInterest, []db.ProgrammingLanguage, error) {
	interests, languages, err := s.users.Catalogue(ctx)
	if err != nil {
		return nil, nil, svcErr.Map(err)
	}
	return interests, languages, nil
}

// Block hides blocker and blocked from each other. Blocking twice is a no-op.
func (s *Service) Block(ctx context.Context, blockerID, blockedID uint64) error {
	if blockerID == blockedID {
		return svcErr.InvalidArgument("you cannot block yourself")
	}
	if _, err := s.loadUser(ctx, blockedID); err != nil {
		return err
	}
	created, err := s.blocks.Block(ctx, blockerID, blockedID)
	if err != nil {
		return svcErr.Map(err)
	}
	if created {
		s.appCtx.Logger.Info("user blocked", "blocker", blockerID, "blocked", blockedID)
		s.dropLikeCounts(ctx, blockerID, blockedID)
	}
	return nil
}

// Unblock removes the edge blocker -> blocked. Removing a missing edge is a no-op.
func (s *Service) Unblock(ctx context.Context, blockerID, blockedID uint64) error {
	removed, err := s.blocks.Unblock(ctx, blockerID, blockedID)
	if err != nil {
		return svcErr.Map(err)
	}
	if removed {
		s.dropLikeCounts(ctx, blockerID, blockedID)
	}
	return nil
}

// dropLikeCounts evicts cached liked-you counts, which leave out likers
// across a block edge.
func (s *Service) dropLikeCounts(ctx context.Context, a, b uint64) {
	if s.appCtx.RedisCache == nil {
		return
	}
	if err := s.appCtx.RedisCache.Del(ctx, cache.KeyForLikeCount(a), cache.KeyForLikeCount(b)); err != nil {
		s.appCtx.Logger.Warn("like counter eviction failed", "a", a, "b", b, "err", err)
	}
}

// ListBlocked returns the users blockerID has blocked, most recent first.
func (s *Service) ListBlocked(ctx context.Context, blockerID uint64) ([]db.User, error) {
	edges, err := s.blocks.ListBlocked(ctx, blockerID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	ids := make([]uint64, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.BlockedID)
	}
	users, err := s.users.GetMany(ctx, ids)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	out := make([]db.User, 0, len(edges))
	for _, id := range ids {
		if u, ok := users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// Report files a pending report against reportedID.
func (s *Service) Report(ctx context.Context, reporterID, reportedID uint64, reason, description string) (*db.Report, error) {
	if reporterID == reportedID {
		return nil, svcErr.InvalidArgument("you cannot report yourself")
	}
	if !slices.Contains(db.ReportReasons, reason) {
		return nil, svcErr.InvalidArgument("reason must be one of " + strings.Join(db.ReportReasons, ", "))
	}
	description = strings.TrimSpace(description)
	if utf8.RuneCountInString(description) > maxReportText {
		return nil, svcErr.InvalidArgument("description is too long")
	}
	if _, err := s.loadUser(ctx, reportedID); err != nil {
		return nil, err
	}
	rep := &db.Report{
		ReporterID:  reporterID,
		ReportedID:  reportedID,
		Reason:      reason,
		Description: description,
		Status:      db.ReportPending,
	}
	if err := s.reports.Create(ctx, rep); err != nil {
		return nil, svcErr.Map(err)
	}
	s.appCtx.Logger.Info("user reported", "reporter", reporterID, "reported", reportedID, "reason", reason)
	return rep, nil
}

// Deactivate hides the account from discovery, search and likes.
func (s *Service) Deactivate(ctx context.Context, userID uint64) error {
	if err := s.users.UpdateUser(ctx, userID, map[string]any{"active": false}); err != nil {
		return svcErr.Map(err)
	}
	s.appCtx.Logger.Info("account deactivated", "user", userID)
	return nil
}

// Notifications returns the newest notifications (default 50) and the unread count.
func (s *Service) Notifications(ctx context.Context, userID uint64, limit int) ([]db.Notification, int64, error) {
	limit = pagination.ClampLimit(limit, notificationPage, maxSearchResults)
	ns, err := s.notifications.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, 0, svcErr.Map(err)
	}
	unread, err := s.UnreadCount(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return ns, unread, nil
}

// UnreadCount reads notifications:unread:<id> from Redis, falling back to the
// database and writing the result back.
func (s *Service) UnreadCount(ctx context.Context, userID uint64) (int64, error) {
	key := cache.KeyForUnreadNotifications(userID)
	if s.appCtx.RedisCache != nil {
		n, found, err := s.appCtx.RedisCache.GetCounter(ctx, key)
		if err != nil {
			s.appCtx.Logger.Warn("unread counter read failed", "key", key, "err", err)
		} else if found {
			return n, nil
		}
	}
	n, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		return 0, svcErr.Map(err)
	}
	s.setUnread(ctx, userID, n)
	return n, nil
}

// MarkNotificationsRead marks every notification read and resets the cached count.
func (s *Service) MarkNotificationsRead(ctx context.Context, userID uint64) (int64, error) {
	n, err := s.notifications.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, svcErr.Map(err)
	}
	s.setUnread(ctx, userID, 0)
	return n, nil
}

func (s *Service) setUnread(ctx context.Context, userID uint64, n int64) {
	if s.appCtx.RedisCache == nil {
		return
	}
	if err := s.appCtx.RedisCache.SetCounter(ctx, cache.KeyForUnreadNotifications(userID), n); err != nil {
		s.appCtx.Logger.Warn("unread counter write failed", "user", userID, "err", err)
	}
}

// SetPresence wires the online registry used when rendering profiles.
func (s *Service) SetPresence(p match.Presence) { s.presence = p }

func (s *Service) Online(userID uint64) bool {
	return s.presence != nil && s.presence.Online(userID)
}

// Now is the service clock, used for age rendering.
func (s *Service) Now() time.Time { return s.now() }

func (s *Service) loadUser(ctx context.Context, id uint64) (*db.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, svcErr.NotFound("user not found")
		}
		return nil, svcErr.Map(err)
	}
	return u, nil
}
