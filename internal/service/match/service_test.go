package match_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"gorm.io/gorm"

	"github.com/OfomiMatthew/tech-buddy/internal/app"
	"github.com/OfomiMatthew/tech-buddy/internal/cache"
	"github.com/OfomiMatthew/tech-buddy/internal/db"
	svcErr "github.com/OfomiMatthew/tech-buddy/internal/errors"
	"github.com/OfomiMatthew/tech-buddy/internal/events"
	"github.com/OfomiMatthew/tech-buddy/internal/logger"
	"github.com/OfomiMatthew/tech-buddy/internal/repository"
	"github.com/OfomiMatthew/tech-buddy/internal/service/match"
	"github.com/OfomiMatthew/tech-buddy/internal/testutil"
)

const (
	alice = uint64(1)
	bob   = uint64(2)
	carol = uint64(3)
	dave  = uint64(4)
	erin  = uint64(5) // inactive
)

func setup(t *testing.T) (*match.Engine, *app.AppContext) {
	t.Helper()
	appCtx := testutil.NewAppContext(t)
	return match.NewEngine(appCtx), appCtx
}

func countRows(t *testing.T, appCtx *app.AppContext, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	q := appCtx.DB.Model(model)
	if where != "" {
		q = q.Where(where, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func TestSubmitLikeOneWayThenMutual(t *testing.T) {
	ctx := context.Background()
	engine, appCtx := setup(t)

	res, err := engine.SubmitLike(ctx, alice, bob)
	require.NoError(t, err)
	assert.False(t, res.Matched)
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, bob, res.Notifications[0].UserID)
	assert.Equal(t, db.NotificationNewLike, res.Notifications[0].Type)
	assert.Contains(t, res.Notifications[0].Content, "alice")

	res, err = engine.SubmitLike(ctx, bob, alice)
	require.NoError(t, err)
	assert.True(t, res.Matched)
	require.NotNil(t, res.Match)
	assert.Equal(t, alice, res.Match.User1ID)
	assert.Equal(t, bob, res.Match.User2ID)

	assert.Equal(t, int64(1), countRows(t, appCtx, &db.Match{}, ""))
	assert.Equal(t, int64(1), countRows(t, appCtx, &db.Notification{}, "user_id = ? AND type = ?", alice, db.NotificationNewMatch))
	assert.Equal(t, int64(1), countRows(t, appCtx, &db.Notification{}, "user_id = ? AND type = ?", bob, db.NotificationNewMatch))

	matched, err := engine.HasMatched(ctx, bob, alice)
	require.NoError(t, err)
	assert.True(t, matched)

	list, err := engine.ListMatches(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "bob", list[0].User.Username)
}

func TestSubmitLikeDuplicateHasNoSideEffects(t *testing.T) {
	ctx := context.Background()
	engine, appCtx := setup(t)

	_, err := engine.SubmitLike(ctx, alice, bob)
	require.NoError(t, err)

	_, err = engine.SubmitLike(ctx, alice, bob)
	require.Error(t, err)
	assert.Equal(t, codes.AlreadyExists, svcErr.Code(err))

	assert.Equal(t, int64(1), countRows(t, appCtx, &db.Like{}, ""))
	assert.Equal(t, int64(1), countRows(t, appCtx, &db.Notification{}, ""))
}

func TestSubmitLikeRejections(t *testing.T) {
	ctx := context.Background()
	engine, appCtx := setup(t)

	_, err := repository.NewBlockRepository(appCtx.DB).Block(ctx, dave, alice)
	require.NoError(t, err)

	tests := []struct {
		name   string
		liker  uint64
		target uint64
		code   codes.Code
	}{
		{"self", alice, alice, codes.InvalidArgument},
		{"zero target", alice, 0, codes.InvalidArgument},
		{"unknown target", alice, 999, codes.NotFound},
		{"inactive target", alice, erin, codes.FailedPrecondition},
		{"blocked by target", alice, dave, codes.PermissionDenied},
		{"blocked target", dave, alice, codes.PermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.SubmitLike(ctx, tt.liker, tt.target)
			require.Error(t, err)
			assert.Equal(t, tt.code, svcErr.Code(err))
		})
	}
	assert.Zero(t, countRows(t, appCtx, &db.Like{}, ""))
}

func TestSubmitLikeConcurrentMutualCreatesOneMatch(t *testing.T) {
	ctx := context.Background()
	engine, appCtx := setup(t)

	var wg sync.WaitGroup
	results := make([]*match.LikeResult, 2)
	errs := make([]error, 2)
	pairs := [][2]uint64{{alice, bob}, {bob, alice}}
	for i, p := range pairs {
		wg.Add(1)
		go func(i int, liker, target uint64) {
			defer wg.Done()
			results[i], errs[i] = engine.SubmitLike(ctx, liker, target)
		}(i, p[0], p[1])
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.True(t, results[0].Matched || results[1].Matched)

	assert.Equal(t, int64(1), countRows(t, appCtx, &db.Match{}, ""))
	assert.Equal(t, int64(2), countRows(t, appCtx, &db.Notification{}, "type = ?", db.NotificationNewMatch))
}

// TestSubmitLikeFailedWriteCanBeRetried fails notification inserts so the
// follow-up writes of a like break, then checks a retry still matches.
func TestSubmitLikeFailedWriteCanBeRetried(t *testing.T) {
	ctx := context.Background()
	engine, appCtx := setup(t)

	var fail atomic.Bool
	require.NoError(t, appCtx.DB.Callback().Create().Before("gorm:create").
		Register("test:fail_notifications", func(tx *gorm.DB) {
			if fail.Load() && tx.Statement.Table == "notifications" {
				_ = tx.AddError(errors.New("transient db failure"))
			}
		}))

	_, err := engine.SubmitLike(ctx, alice, bob)
	require.NoError(t, err)

	fail.Store(true)
	_, err = engine.SubmitLike(ctx, bob, alice)
	require.Error(t, err)
	_, err = engine.SubmitLike(ctx, alice, carol)
	require.Error(t, err)
	assert.Equal(t, int64(1), countRows(t, appCtx, &db.Like{}, ""))
	assert.Zero(t, countRows(t, appCtx, &db.Match{}, ""))

	fail.Store(false)
	res, err := engine.SubmitLike(ctx, bob, alice)
	require.NoError(t, err)
	assert.True(t, res.Matched)
	_, err = engine.SubmitLike(ctx, alice, carol)
	require.NoError(t, err)

	assert.Equal(t, int64(3), countRows(t, appCtx, &db.Like{}, ""))
	assert.Equal(t, int64(1), countRows(t, appCtx, &db.Match{}, ""))
	assert.Equal(t, int64(2), countRows(t, appCtx, &db.Notification{}, "type = ?", db.NotificationNewMatch))
}

func TestSubmitLikePublishesEvents(t *testing.T) {
	ctx := context.Background()
	base := testutil.NewAppContext(t)
	bus := events.NewLocal()
	appCtx := app.New(base.DB, base.RedisCache, logger.Discard(), app.WithEvents(bus))
	engine := match.NewEngine(appCtx)

	var mu sync.Mutex
	got := map[string]int{}
	for _, name := range []string{events.LikeCreated, events.MatchCreated} {
		name := name
		_, err := bus.Subscribe(name, func([]byte) {
			mu.Lock()
			got[name]++
			mu.Unlock()
		})
		require.NoError(t, err)
	}

	_, err := engine.SubmitLike(ctx, carol, dave)
	require.NoError(t, err)
	_, err = engine.SubmitLike(ctx, dave, carol)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, got[events.LikeCreated], "the matching like only pushes match.created")
	assert.Equal(t, 1, got[events.MatchCreated])
}

func TestDiscoverExcludesLikedAndBlocked(t *testing.T) {
	ctx := context.Background()
	engine, appCtx := setup(t)

	users, err := engine.Discover(ctx, alice, 0)
	require.NoError(t, err)
	assert.Len(t, users, 3)

	_, err = engine.SubmitLike(ctx, alice, bob)
	require.NoError(t, err)
	_, err = repository.NewBlockRepository(appCtx.DB).Block(ctx, carol, alice)
	require.NoError(t, err)

	users, err = engine.Discover(ctx, alice, 0)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, dave, users[0].ID)

	users, err = engine.Discover(ctx, bob, 1)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestLikedYouListsAndCount(t *testing.T) {
	ctx := context.Background()
	engine, appCtx := setup(t)

	for _, liker := range []uint64{bob, carol, dave} {
		_, err := engine.SubmitLike(ctx, liker, alice)
		require.NoError(t, err)
	}
	_, err := engine.SubmitLike(ctx, alice, bob) // bob becomes a match
	require.NoError(t, err)

	likes, next, err := engine.ListLikedYou(ctx, alice, nil, 2)
	require.NoError(t, err)
	assert.Len(t, likes, 2)
	require.NotNil(t, next)

	rest, next, err := engine.ListLikedYou(ctx, alice, next, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
	assert.Nil(t, next)

	fresh, _, err := engine.ListNewLikedYou(ctx, alice, nil, 0)
	require.NoError(t, err)
	assert.Len(t, fresh, 2)

	bad := "%%%"
	_, _, err = engine.ListLikedYou(ctx, alice, &bad, 10)
	assert.Equal(t, codes.InvalidArgument, svcErr.Code(err))

	n, err := engine.CountLikedYou(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	cached, found, err := appCtx.RedisCache.GetCounter(ctx, cache.KeyForLikeCount(alice))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(3), cached)
}

func TestCountLikedYouFollowsNewLikes(t *testing.T) {
	ctx := context.Background()
	engine, _ := setup(t)

	n, err := engine.CountLikedYou(ctx, bob)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = engine.SubmitLike(ctx, carol, bob)
	require.NoError(t, err)

	n, err = engine.CountLikedYou(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
