package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/OfomiMatthew/tech-buddy/internal/app"
	"github.com/OfomiMatthew/tech-buddy/internal/db"
	svcErr "github.com/OfomiMatthew/tech-buddy/internal/errors"
	"github.com/OfomiMatthew/tech-buddy/internal/repository"
)

const (
	starterCount    = 3
	dateIdeaCount   = 5
	minCoachDraft   = 5
	summaryMaxRunes = 200
	defaultScore    = 70
)

var errEmptyReply = errors.New("empty model reply")

// Compatibility is the structured analysis of a matched pair.
type Compatibility struct {
	Score                 int      `json:"compatibility_score"`
	Strengths             []string `json:"strengths"`
	LearningOpportunities string   `json:"learning_opportunities"`
	ConversationTopics    []string `json:"conversation_topics"`
	Summary               string   `json:"overall_summary"`
}

// Verdict is a moderation decision.
type Verdict struct {
	IsSafe          bool     `json:"is_safe"`
	RiskLevel       string   `json:"risk_level"`
	Issues          []string `json:"issues"`
	SuggestedAction string   `json:"suggested_action"`
	Reason          string   `json:"reason"`
}

// Blocked reports whether the content must be rejected.
func (v Verdict) Blocked() bool { return v.SuggestedAction == "block" }

// ProfileStats are computed from the database on every insights request.
type ProfileStats struct {
	PhotoCount    int   `json:"photo_count"`
	Completeness  int   `json:"completeness"`
	LikesSent     int64 `json:"likes_sent"`
	LikesReceived int64 `json:"likes_received"`
	Matches       int64 `json:"matches"`
}

type Insights struct {
	Text  string       `json:"insights"`
	Stats ProfileStats `json:"stats"`
}

// Service implements the AI assisted features on top of a Completer.
// Generated results are cached per feature through the Gateway; fallbacks are never cached.
type Service struct {
	appCtx    *app.AppContext
	completer Completer
	gateway   *Gateway
	store     *repository.AICacheRepository
	users     *repository.UserRepository
	matches   *repository.MatchRepository
	likes     *repository.LikeRepository
}

func NewService(appCtx *app.AppContext, completer Completer) *Service {
	store := repository.NewAICacheRepository(appCtx.DB)
	return &Service{
		appCtx:    appCtx,
		completer: completer,
		gateway:   NewGateway(store, appCtx.Logger),
		store:     store,
		users:     repository.NewUserRepository(appCtx.DB),
		matches:   repository.NewMatchRepository(appCtx.DB),
		likes:     repository.NewLikeRepository(appCtx.DB),
	}
}

// ConversationStarters suggests opening lines userID could send to matchID.
//
// Behavior:
//   - The pair must be matched (PermissionDenied).
//   - Results are cached per (user, match) for StartersWindow.
//   - When the model fails, three generic starters are returned and not cached.
func (s *Service) ConversationStarters(ctx context.Context, userID, matchID uint64) ([]string, error) {
	s.appCtx.Logger.Debug("ConversationStarters called", "user", userID, "match", matchID)

	user, match, err := s.matchedPair(ctx, userID, matchID)
	if err != nil {
		return nil, err
	}

	key := CacheKey{Feature: FeatureStarters, Key: DirectedKey(userID, matchID), UserID: userID, Window: StartersWindow}
	starters, _, err := GetOrGenerate(ctx, s.gateway, key, func(ctx context.Context) ([]string, error) {
		reply, err := s.completer.Complete(ctx, startersPrompt(user, match, starterCount))
		if err != nil {
			return nil, err
		}
		if starters := ParseList(reply, starterCount); len(starters) > 0 {
			return starters, nil
		}
		return nil, errEmptyReply
	})
	if err != nil {
		s.appCtx.Logger.Error("conversation starters failed", "user", userID, "match", matchID, "err", err)
		return fallbackStarters(match), nil
	}
	return starters, nil
}

func fallbackStarters(match *db.User) []string {
	topic := "tech"
	if len(match.Interests) > 0 {
		topic = match.Interests[0].Name
	}
	role := orDefault(profileOf(match).CurrentRole, "tech")
	return []string{
		fmt.Sprintf("I noticed we're both into %s. What are you building at the moment?", topic),
		fmt.Sprintf("Your profile caught my eye! What got you into %s?", role),
		"I'm always keen to learn something new. What would you love to teach someone?",
	}
}

// Compatibility analyses userID and matchID.
//
// Behavior:
//   - The pair must be matched (PermissionDenied).
//   - Cached per unordered pair for CompatibilityWindow, so both users see
//     the same analysis.
//   - A reply without a decodable JSON object becomes a default analysis
//     (score 70, summary = first 200 characters of the reply).
//   - A model failure is Unavailable and nothing is cached.
//
// Example:
//
//	c, err := svc.Compatibility(ctx, 1, 2)
func (s *Service) Compatibility(ctx context.Context, userID, matchID uint64) (*Compatibility, error) {
	s.appCtx.Logger.Debug("Compatibility called", "user", userID, "match", matchID)

	user, match, err := s.matchedPair(ctx, userID, matchID)
	if err != nil {
		return nil, err
	}

	key := CacheKey{Feature: FeatureCompatibility, Key: PairKey(userID, matchID), UserID: userID, Window: CompatibilityWindow}
	c, _, err := GetOrGenerate(ctx, s.gateway, key, func(ctx context.Context) (Compatibility, error) {
		reply, err := s.completer.Complete(ctx, compatibilityPrompt(user, match))
		if err != nil {
			return Compatibility{}, err
		}
		return parseCompatibility(reply), nil
	})
	if err != nil {
		s.appCtx.Logger.Error("compatibility analysis failed", "user", userID, "match", matchID, "err", err)
		return nil, svcErr.Unavailable("compatibility analysis is unavailable right now")
	}
	return &c, nil
}

func parseCompatibility(reply string) Compatibility {
	def := Compatibility{
		Score:                 defaultScore,
		Strengths:             []string{"Shared tech interests", "Complementary skills", "Similar experience level"},
		LearningOpportunities: "Plenty of room to learn from each other's expertise",
		ConversationTopics:    []string{"Tech projects", "Career growth", "New technologies"},
		Summary:               truncateRunes(strings.TrimSpace(reply), summaryMaxRunes),
	}
	c, ok := DecodeJSONObject(reply, def)
	if !ok {
		return def
	}
	c.Score = min(max(c.Score, 0), 100)
	if c.Strengths == nil {
		c.Strengths = []string{}
	}
	if c.ConversationTopics == nil {
		c.ConversationTopics = []string{}
	}
	return c
}

// DateIdeas suggests dates for a matched pair, cached per unordered pair for DateIdeasWindow.
// When the model fails, three generic ideas are returned and not cached.
func (s *Service) DateIdeas(ctx context.Context, userID, matchID uint64) ([]DateIdea, error) {
	s.appCtx.Logger.Debug("DateIdeas called", "user", userID, "match", matchID)

	user, match, err := s.matchedPair(ctx, userID, matchID)
	if err != nil {
		return nil, err
	}

	key := CacheKey{Feature: FeatureDateIdeas, Key: PairKey(userID, matchID), UserID: userID, Window: DateIdeasWindow}
	ideas, _, err := GetOrGenerate(ctx, s.gateway, key, func(ctx context.Context) ([]DateIdea, error) {
		reply, err := s.completer.Complete(ctx, dateIdeasPrompt(user, match, dateIdeaCount))
		if err != nil {
			return nil, err
		}
		if ideas := ParseDateIdeas(reply, dateIdeaCount); len(ideas) > 0 {
			return ideas, nil
		}
		return []DateIdea{{Title: "Tech Talk Coffee Date", Description: strings.TrimSpace(reply)}}, nil
	})
	if err != nil {
		s.appCtx.Logger.Error("date ideas failed", "user", userID, "match", matchID, "err", err)
		return fallbackDateIdeas(), nil
	}
	return ideas, nil
}

func fallbackDateIdeas() []DateIdea {
	return []DateIdea{
		{Title: "Coffee & Code", Description: "Meet at a quiet cafe and swap stories about your latest side projects."},
		{Title: "Science Museum Visit", Description: "Wander through interactive exhibits and talk about the inventions you love."},
		{Title: "Pair Programming Session", Description: "Build a tiny project together at a co-working space and see how you collaborate."},
	}
}

// EnhanceBio rewrites bio, or drafts new options when bio is blank. Not cached.
func (s *Service) EnhanceBio(ctx context.Context, userID uint64, bio string) (string, error) {
	s.appCtx.Logger.Debug("EnhanceBio called", "user", userID)

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}
	reply, err := s.completer.Complete(ctx, bioPrompt(user, bio))
	if err != nil {
		s.appCtx.Logger.Error("bio enhancement failed", "user", userID, "err", err)
		return "", svcErr.Unavailable("bio suggestions are unavailable right now")
	}
	return strings.TrimSpace(reply), nil
}

// CoachMessage gives feedback on a draft message. Drafts shorter than five
// characters are InvalidArgument. Not cached.
func (s *Service) CoachMessage(ctx context.Context, userID uint64, draft, situation string) (string, error) {
	s.appCtx.Logger.Debug("CoachMessage called", "user", userID)

	draft = strings.TrimSpace(draft)
	if utf8.RuneCountInString(draft) < minCoachDraft {
		return "", svcErr.InvalidArgument("message too short")
	}
	reply, err := s.completer.Complete(ctx, coachPrompt(draft, situation))
	if err != nil {
		s.appCtx.Logger.Error("message coaching failed", "user", userID, "err", err)
		return "", svcErr.Unavailable("message coaching is unavailable right now")
	}
	return strings.TrimSpace(reply), nil
}

// ProfileInsights returns fresh profile stats together with model advice.
//
// Behavior:
//   - Stats are always computed from the database.
//   - The advice text is cached per user for InsightsWindow.
//   - When the model fails, a generic tip is returned and not cached.
func (s *Service) ProfileInsights(ctx context.Context, userID uint64) (*Insights, error) {
	s.appCtx.Logger.Debug("ProfileInsights called", "user", userID)

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats, err := s.profileStats(ctx, user)
	if err != nil {
		return nil, err
	}

	key := CacheKey{Feature: FeatureInsights, Key: UserKey(userID), UserID: userID, Window: InsightsWindow}
	text, _, err := GetOrGenerate(ctx, s.gateway, key, func(ctx context.Context) (string, error) {
		reply, err := s.completer.Complete(ctx, insightsPrompt(user, stats))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(reply), nil
	})
	if err != nil {
		s.appCtx.Logger.Error("profile insights failed", "user", userID, "err", err)
		text = "Keep your profile up to date and engage genuinely with your matches. A clear photo and a complete bio make a big difference!"
	}
	return &Insights{Text: text, Stats: stats}, nil
}

func (s *Service) profileStats(ctx context.Context, u *db.User) (ProfileStats, error) {
	p := profileOf(u)
	filled := 0
	for _, ok := range []bool{
		p.Bio != "",
		p.ProfilePhoto != "",
		p.CurrentRole != "",
		p.LearningGoals != "",
		p.CanTeach != "",
		len(u.Interests) > 0,
		len(u.Languages) > 0,
	} {
		if ok {
			filled++
		}
	}

	stats := ProfileStats{Completeness: filled * 100 / 7}
	if p.ProfilePhoto != "" {
		stats.PhotoCount = 1
	}

	var err error
	if stats.LikesSent, err = s.likes.CountSent(ctx, u.ID); err != nil {
		return stats, svcErr.Map(err)
	}
	if stats.LikesReceived, err = s.likes.CountLikers(ctx, u.ID); err != nil {
		return stats, svcErr.Map(err)
	}
	if stats.Matches, err = s.matches.CountForUser(ctx, u.ID); err != nil {
		return stats, svcErr.Map(err)
	}
	return stats, nil
}

// Moderate screens content and records the verdict in the moderation log.
//
// Behavior:
//   - Fails open: a model failure yields is_safe=true, risk_level=low,
//     suggested_action=allow.
//   - A reply without a decodable JSON object is treated as safe.
//   - Every verdict, including fail-open ones, is appended to the log; a
//     log write failure does not change the verdict.
func (s *Service) Moderate(ctx context.Context, userID uint64, contentType, content string) Verdict {
	s.appCtx.Logger.Debug("Moderate called", "user", userID, "type", contentType)

	v := safeVerdict("No issues detected")
	reply, err := s.completer.Complete(ctx, moderationPrompt(contentType, content))
	if err != nil {
		s.appCtx.Logger.Warn("moderation unavailable, allowing content", "user", userID, "err", err)
		v = safeVerdict("Moderation service unavailable")
	} else {
		v, _ = DecodeJSONObject(reply, v)
		v = normalizeVerdict(v)
	}

	issues, _ := json.Marshal(v.Issues)
	entry := &db.ContentModeration{
		UserID:          userID,
		ContentType:     contentType,
		Content:         content,
		IsSafe:          v.IsSafe,
		RiskLevel:       v.RiskLevel,
		Issues:          datatypes.JSON(issues),
		SuggestedAction: v.SuggestedAction,
		Reason:          v.Reason,
	}
	if err := s.store.LogModeration(ctx, entry); err != nil {
		s.appCtx.Logger.Error("moderation log write failed", "user", userID, "err", err)
	}
	return v
}

// Allow adapts Moderate to the messaging screening hook. Only a block verdict rejects.
func (s *Service) Allow(ctx context.Context, userID uint64, contentType, content string) (bool, string) {
	v := s.Moderate(ctx, userID, contentType, content)
	if v.Blocked() {
		return false, v.Reason
	}
	return true, ""
}

func safeVerdict(reason string) Verdict {
	return Verdict{IsSafe: true, RiskLevel: "low", Issues: []string{}, SuggestedAction: "allow", Reason: reason}
}

func normalizeVerdict(v Verdict) Verdict {
	v.RiskLevel = strings.ToLower(strings.TrimSpace(v.RiskLevel))
	v.SuggestedAction = strings.ToLower(strings.TrimSpace(v.SuggestedAction))
	switch v.RiskLevel {
	case "low", "medium", "high":
	default:
		v.RiskLevel = "low"
		if !v.IsSafe {
			v.RiskLevel = "medium"
		}
	}
	switch v.SuggestedAction {
	case "allow", "warn", "block":
	default:
		v.SuggestedAction = "allow"
		if !v.IsSafe {
			v.SuggestedAction = "warn"
		}
	}
	if v.Issues == nil {
		v.Issues = []string{}
	}
	return v
}

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

// matchedPair loads both users and requires a match between them.
func (s *Service) matchedPair(ctx context.Context, userID, matchID uint64) (*db.User, *db.User, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	match, err := s.loadUser(ctx, matchID)
	if err != nil {
		return nil, nil, err
	}
	ok, err := s.matches.HasMatched(ctx, userID, matchID)
	if err != nil {
		return nil, nil, svcErr.Map(err)
	}
	if !ok {
		return nil, nil, svcErr.PermissionDenied("you must match with this user first")
	}
	return user, match, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
