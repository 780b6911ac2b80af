package ai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/OfomiMatthew/tech-buddy/internal/app"
	"github.com/OfomiMatthew/tech-buddy/internal/config"
	"github.com/OfomiMatthew/tech-buddy/internal/db"
	svcErr "github.com/OfomiMatthew/tech-buddy/internal/errors"
	"github.com/OfomiMatthew/tech-buddy/internal/repository"
	"github.com/OfomiMatthew/tech-buddy/internal/service/ai"
	"github.com/OfomiMatthew/tech-buddy/internal/testutil"
)

const (
	alice = uint64(1)
	bob   = uint64(2)
	carol = uint64(3)
)

type fakeCompleter struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []ai.Prompt
}

func (f *fakeCompleter) Complete(_ context.Context, p ai.Prompt) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, p)
	return f.reply, f.err
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

// setup matches alice with bob. carol is unmatched.
func setup(t *testing.T, c ai.Completer) (*ai.Service, *app.AppContext) {
	t.Helper()
	appCtx := testutil.NewAppContext(t)
	_, _, err := repository.NewMatchRepository(appCtx.DB).CreateMatch(context.Background(), alice, bob)
	require.NoError(t, err)
	return ai.NewService(appCtx, c), appCtx
}

func seedCache(t *testing.T, appCtx *app.AppContext, feature, key string, v any, age time.Duration) {
	t.Helper()
	payload, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, repository.NewAICacheRepository(appCtx.DB).
		Save(context.Background(), feature, key, alice, payload, time.Now().UTC().Add(-age)))
}

func cacheRows(t *testing.T, appCtx *app.AppContext, feature string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, appCtx.DB.Model(&db.AICacheEntry{}).Where("feature = ?", feature).Count(&n).Error)
	return n
}

func TestCompatibilityServedFromFreshCache(t *testing.T) {
	ctx := context.Background()
	completer := &fakeCompleter{reply: `{"compatibility_score": 10}`}
	svc, appCtx := setup(t, completer)

	cached := ai.Compatibility{
		Score:              88,
		Strengths:          []string{"Both love Go"},
		ConversationTopics: []string{"Concurrency"},
		Summary:            "Great pair",
	}
	seedCache(t, appCtx, ai.FeatureCompatibility, ai.PairKey(alice, bob), cached, 10*24*time.Hour)

	got, err := svc.Compatibility(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, cached, *got)
	assert.Zero(t, completer.calls())

	// the pair key is shared, so bob sees the same analysis
	got, err = svc.Compatibility(ctx, bob, alice)
	require.NoError(t, err)
	assert.Equal(t, 88, got.Score)
	assert.Zero(t, completer.calls())
}

func TestCompatibilityRegeneratesStaleCache(t *testing.T) {
	ctx := context.Background()
	completer := &fakeCompleter{reply: "Analysis:\n```json\n{\"compatibility_score\": 91, \"strengths\": [\"Pairing\"], \"overall_summary\": \"Strong\"}\n```"}
	svc, appCtx := setup(t, completer)
	seedCache(t, appCtx, ai.FeatureCompatibility, ai.PairKey(alice, bob), ai.Compatibility{Score: 40}, 31*24*time.Hour)

	got, err := svc.Compatibility(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, 91, got.Score)
	assert.Equal(t, []string{"Pairing"}, got.Strengths)
	assert.Equal(t, 1, completer.calls())
	assert.Equal(t, int64(2), cacheRows(t, appCtx, ai.FeatureCompatibility))

	// second call hits the fresh entry
	_, err = svc.Compatibility(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, 1, completer.calls())
}

func TestCompatibilityUnparsableReplyUsesDefault(t *testing.T) {
	completer := &fakeCompleter{reply: "You two seem great together, lots of overlap in backend work."}
	svc, _ := setup(t, completer)

	got, err := svc.Compatibility(context.Background(), alice, bob)
	require.NoError(t, err)
	assert.Equal(t, 70, got.Score)
	assert.Equal(t, completer.reply, got.Summary)
	assert.NotEmpty(t, got.Strengths)
}

func TestCompatibilityFailureIsUnavailableAndNotCached(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("boom")}
	svc, appCtx := setup(t, completer)

	_, err := svc.Compatibility(context.Background(), alice, bob)
	require.Error(t, err)
	assert.Equal(t, codes.Unavailable, svcErr.Code(err))
	assert.Zero(t, cacheRows(t, appCtx, ai.FeatureCompatibility))
}

func TestFeaturesRequireMatch(t *testing.T) {
	ctx := context.Background()
	completer := &fakeCompleter{reply: "1. Anything at all here"}
	svc, _ := setup(t, completer)

	_, err := svc.ConversationStarters(ctx, alice, carol)
	assert.Equal(t, codes.PermissionDenied, svcErr.Code(err))
	_, err = svc.Compatibility(ctx, alice, carol)
	assert.Equal(t, codes.PermissionDenied, svcErr.Code(err))
	_, err = svc.DateIdeas(ctx, alice, carol)
	assert.Equal(t, codes.PermissionDenied, svcErr.Code(err))
	_, err = svc.DateIdeas(ctx, alice, 999)
	assert.Equal(t, codes.NotFound, svcErr.Code(err))
	assert.Zero(t, completer.calls())
}

func TestConversationStarters(t *testing.T) {
	ctx := context.Background()
	completer := &fakeCompleter{reply: "1. What are you shipping this week?\n2. Any favourite Go libraries lately?\n3. Which conference should I go to?\n4. One too many starters here"}
	svc, appCtx := setup(t, completer)

	got, err := svc.ConversationStarters(ctx, alice, bob)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, "What are you shipping this week?", got[0])
	assert.Equal(t, int64(1), cacheRows(t, appCtx, ai.FeatureStarters))

	// starters are per direction
	_, err = svc.ConversationStarters(ctx, bob, alice)
	require.NoError(t, err)
	assert.Equal(t, 2, completer.calls())
}

func TestConversationStartersFallbackNotCached(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("timeout")}
	svc, appCtx := setup(t, completer)

	got, err := svc.ConversationStarters(context.Background(), alice, bob)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Contains(t, got[1], "Engineer")
	assert.Zero(t, cacheRows(t, appCtx, ai.FeatureStarters))
}

func TestDateIdeas(t *testing.T) {
	ctx := context.Background()
	completer := &fakeCompleter{reply: "**Robot Workshop**: Build a small robot together.\n**Night Hike**: Stargaze and talk about space tech."}
	svc, _ := setup(t, completer)

	got, err := svc.DateIdeas(ctx, alice, bob)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Robot Workshop", got[0].Title)

	completer.err = errors.New("down")
	got, err = svc.DateIdeas(ctx, bob, alice)
	require.NoError(t, err)
	assert.Len(t, got, 2, "fresh pair cache still served")
}

func TestDateIdeasFallback(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("down")}
	svc, appCtx := setup(t, completer)

	got, err := svc.DateIdeas(context.Background(), alice, bob)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Zero(t, cacheRows(t, appCtx, ai.FeatureDateIdeas))
}

func TestCoachMessage(t *testing.T) {
	ctx := context.Background()
	completer := &fakeCompleter{reply: "  Friendly tone. Maybe ask a question.  "}
	svc, _ := setup(t, completer)

	_, err := svc.CoachMessage(ctx, alice, " hi ", "")
	assert.Equal(t, codes.InvalidArgument, svcErr.Code(err))
	assert.Zero(t, completer.calls())

	out, err := svc.CoachMessage(ctx, alice, "hey there, love your github", "first message")
	require.NoError(t, err)
	assert.Equal(t, "Friendly tone. Maybe ask a question.", out)
	assert.Contains(t, completer.prompts[0].User, "first message")

	completer.err = errors.New("down")
	_, err = svc.CoachMessage(ctx, alice, "hey there, love your github", "")
	assert.Equal(t, codes.Unavailable, svcErr.Code(err))
}

func TestEnhanceBioFailureIsUnavailable(t *testing.T) {
	svc, _ := setup(t, &fakeCompleter{err: errors.New("down")})
	_, err := svc.EnhanceBio(context.Background(), alice, "I write Go")
	assert.Equal(t, codes.Unavailable, svcErr.Code(err))
}

func TestProfileInsights(t *testing.T) {
	ctx := context.Background()
	completer := &fakeCompleter{reply: "Score 60. Add a photo."}
	svc, appCtx := setup(t, completer)
	_, _, err := repository.NewLikeRepository(appCtx.DB).CreateLike(ctx, carol, alice)
	require.NoError(t, err)
	require.NoError(t, appCtx.DB.Model(&db.Profile{}).Where("user_id = ?", alice).Update("bio", "Gopher").Error)

	got, err := svc.ProfileInsights(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "Score 60. Add a photo.", got.Text)
	// bio and current role out of seven fields
	assert.Equal(t, 28, got.Stats.Completeness)
	assert.Equal(t, int64(1), got.Stats.LikesReceived)
	assert.Equal(t, int64(1), got.Stats.Matches)
	assert.Zero(t, got.Stats.PhotoCount)

	completer.err = errors.New("down")
	got, err = svc.ProfileInsights(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "Score 60. Add a photo.", got.Text)
	assert.Equal(t, 1, len(completer.prompts))
}

func TestModerateParsesAndLogsVerdict(t *testing.T) {
	ctx := context.Background()
	completer := &fakeCompleter{reply: `Result: {"is_safe": false, "risk_level": "HIGH", "issues": ["harassment"], "suggested_action": "Block", "reason": "threat"}`}
	svc, appCtx := setup(t, completer)

	v := svc.Moderate(ctx, alice, "message", "something nasty")
	assert.False(t, v.IsSafe)
	assert.Equal(t, "high", v.RiskLevel)
	assert.True(t, v.Blocked())

	allowed, reason := svc.Allow(ctx, alice, "message", "something nasty")
	assert.False(t, allowed)
	assert.Equal(t, "threat", reason)

	var logs []db.ContentModeration
	require.NoError(t, appCtx.DB.Find(&logs).Error)
	require.Len(t, logs, 2)
	assert.JSONEq(t, `["harassment"]`, string(logs[0].Issues))
}

// Moderation goes through the real HTTP client against a failing upstream.
func TestModerateFailsOpen(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	cfg := config.New()
	cfg.AI.APIKey = "test-key"
	cfg.AI.APIURL = upstream.URL
	cfg.AI.Timeout = 2 * time.Second
	svc, appCtx := setup(t, ai.NewGroqClient(cfg))

	v := svc.Moderate(context.Background(), alice, "message", "hello there")
	assert.True(t, v.IsSafe)
	assert.Equal(t, "low", v.RiskLevel)
	assert.Equal(t, "allow", v.SuggestedAction)
	assert.Equal(t, "Moderation service unavailable", v.Reason)

	allowed, _ := svc.Allow(context.Background(), alice, "message", "hello there")
	assert.True(t, allowed)

	var logged int64
	require.NoError(t, appCtx.DB.Model(&db.ContentModeration{}).Where("is_safe = ?", true).Count(&logged).Error)
	assert.Equal(t, int64(2), logged)
}

func TestModerateUnparsableReplyIsSafe(t *testing.T) {
	svc, _ := setup(t, &fakeCompleter{reply: "Looks fine to me!"})
	v := svc.Moderate(context.Background(), alice, "bio", "I like Go")
	assert.True(t, v.IsSafe)
	assert.Equal(t, "allow", v.SuggestedAction)
}
