package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/OfomiMatthew/tech-buddy/internal/app"
	"github.com/OfomiMatthew/tech-buddy/internal/cache"
	"github.com/OfomiMatthew/tech-buddy/internal/db"
	svcErr "github.com/OfomiMatthew/tech-buddy/internal/errors"
	"github.com/OfomiMatthew/tech-buddy/internal/events"
	"github.com/OfomiMatthew/tech-buddy/internal/repository"
	"github.com/OfomiMatthew/tech-buddy/internal/utils/pagination"
)

const (
	maxPageSize      = 100
	defaultLikesPage = 20
)

// Presence answers whether a user currently holds a live connection.
type Presence interface {
	Online(userID uint64) bool
}

// LikeResult is the outcome of SubmitLike.
type LikeResult struct {
	Matched       bool
	Match         *db.Match
	Notifications []db.Notification
}

// Summary is one entry of the user's match list.
type Summary struct {
	Match db.Match
	User  db.User
}

// Engine turns one-way likes into mutual matches.
type Engine struct {
	appCtx        *app.AppContext
	users         *repository.UserRepository
	likes         *repository.LikeRepository
	matches       *repository.MatchRepository
	blocks        *repository.BlockRepository
	notifications *repository.NotificationRepository
	presence      Presence
	now           func() time.Time
}

// NewEngine creates the match engine with repositories bound to appCtx.DB.
func NewEngine(appCtx *app.AppContext) *Engine {
	return &Engine{
		appCtx:        appCtx,
		users:         repository.NewUserRepository(appCtx.DB),
		likes:         repository.NewLikeRepository(appCtx.DB),
		matches:       repository.NewMatchRepository(appCtx.DB),
		blocks:        repository.NewBlockRepository(appCtx.DB),
		notifications: repository.NewNotificationRepository(appCtx.DB),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SetPresence wires the online registry used when rendering profiles.
func (e *Engine) SetPresence(p Presence) { e.presence = p }

// Online reports presence, false when no registry is wired.
func (e *Engine) Online(userID uint64) bool {
	return e.presence != nil && e.presence.Online(userID)
}

// SubmitLike records that likerID likes targetID and detects a mutual match.
//
// Behavior:
//   - Self likes are InvalidArgument, an unknown target is NotFound and an
//     inactive target is FailedPrecondition.
//   - A block edge in either direction is PermissionDenied.
//   - A repeated like is AlreadyExists and has no side effects.
//   - If a write after the like insert fails, the like is removed again so
//     the call can be retried.
//   - Without a reverse like, the target gets one new_like notification and
//     a like.created event.
//   - With a reverse like, exactly one Match row exists afterwards and the
//     call that created it writes one new_match notification per user. Two
//     racing calls both report Matched.
//
// Example:
//
//	res, err := engine.SubmitLike(ctx, 1, 2)
//	if res.Matched { ... }
func (e *Engine) SubmitLike(ctx context.Context, likerID, targetID uint64) (*LikeResult, error) {
	log := e.appCtx.Logger.With("liker", likerID, "target", targetID)
	log.Debug("SubmitLike called")

	if likerID == 0 || targetID == 0 {
		return nil, svcErr.InvalidArgument("user ids must be positive")
	}
	if likerID == targetID {
		return nil, svcErr.InvalidArgument("cannot like yourself")
	}

	liker, err := e.users.GetByID(ctx, likerID)
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	target, err := e.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	if !liker.Active {
		return nil, svcErr.FailedPrecondition("your account is deactivated")
	}
	if !target.Active {
		return nil, svcErr.FailedPrecondition("user is not available")
	}

	blocked, err := e.blocks.IsBlockedEitherWay(ctx, likerID, targetID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if blocked {
		return nil, svcErr.PermissionDenied("cannot like this user")
	}

	like, created, err := e.likes.CreateLike(ctx, likerID, targetID)
	if err != nil {
		log.Error("CreateLike failed", "err", err)
		return nil, svcErr.Map(err)
	}
	if !created {
		return nil, svcErr.AlreadyExists("already liked this user")
	}

	mutual, err := e.likes.HasLiked(ctx, targetID, likerID)
	if err != nil {
		e.undoLike(ctx, likerID, targetID)
		return nil, svcErr.Map(err)
	}

	if !mutual {
		n := []db.Notification{{
			UserID:        targetID,
			Type:          db.NotificationNewLike,
			Content:       fmt.Sprintf("%s liked your profile!", liker.Username),
			RelatedUserID: &likerID,
		}}
		if err := e.notifications.Create(ctx, n); err != nil {
			e.undoLike(ctx, likerID, targetID)
			return nil, svcErr.Map(err)
		}
		e.bumpLikeCount(ctx, targetID)
		e.bumpUnread(ctx, targetID)
		e.publish(ctx, events.LikeCreated, events.LikeEvent{
			LikerID: likerID, LikedID: targetID, Timestamp: like.CreatedAt,
		})
		log.Debug("like recorded")
		return &LikeResult{Notifications: n}, nil
	}

	res := &LikeResult{Matched: true}
	var matchCreated bool
	err = e.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, created, err := e.matches.WithTx(tx).CreateMatch(ctx, likerID, targetID)
		if err != nil {
			return err
		}
		res.Match = m
		matchCreated = created
		if !created {
			// a concurrent call materialized the match and owns the notifications
			return nil
		}
		res.Notifications = []db.Notification{
			{
				UserID:        likerID,
				Type:          db.NotificationNewMatch,
				Content:       fmt.Sprintf("You matched with %s!", target.Username),
				RelatedUserID: &targetID,
			},
			{
				UserID:        targetID,
				Type:          db.NotificationNewMatch,
				Content:       fmt.Sprintf("You matched with %s!", liker.Username),
				RelatedUserID: &likerID,
			},
		}
		return e.notifications.WithTx(tx).Create(ctx, res.Notifications)
	})
	if err != nil {
		log.Error("match transaction failed", "err", err)
		e.undoLike(ctx, likerID, targetID)
		return nil, svcErr.Map(err)
	}

	e.bumpLikeCount(ctx, targetID)
	if matchCreated {
		e.bumpUnread(ctx, likerID)
		e.bumpUnread(ctx, targetID)
		e.publish(ctx, events.MatchCreated, events.MatchEvent{
			MatchID:   res.Match.ID,
			User1ID:   res.Match.User1ID,
			User2ID:   res.Match.User2ID,
			Timestamp: res.Match.MatchedAt,
		})
		log.Info("match created", "match_id", res.Match.ID)
	}
	return res, nil
}

// Discover returns profiles the user may like next.
//
// Behavior:
//   - Excludes the user, inactive users, anyone already liked and anyone
//     with a block edge either way.
//   - limit <= 0 uses the configured page size, capped at 100.
func (e *Engine) Discover(ctx context.Context, userID uint64, limit int) ([]db.User, error) {
	limit = pagination.ClampLimit(limit, e.appCtx.Config.Paging.UsersPerPage, maxPageSize)
	users, err := e.users.Discover(ctx, userID, limit)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return users, nil
}

// ListLikedYou returns everyone who liked userID, newest first.
//
// Example:
//
//	likes, next, err := engine.ListLikedYou(ctx, 42, nil, 20)
func (e *Engine) ListLikedYou(ctx context.Context, userID uint64, token *string, limit int) ([]db.Like, *string, error) {
	limit = pagination.ClampLimit(limit, defaultLikesPage, maxPageSize)
	likes, next, err := e.likes.GetLikers(ctx, userID, token, limit)
	if err != nil {
		return nil, nil, pageErr(err)
	}
	return likes, next, nil
}

// ListNewLikedYou returns likers that userID has not liked back.
func (e *Engine) ListNewLikedYou(ctx context.Context, userID uint64, token *string, limit int) ([]db.Like, *string, error) {
	limit = pagination.ClampLimit(limit, defaultLikesPage, maxPageSize)
	likes, next, err := e.likes.GetNewLikers(ctx, userID, token, limit)
	if err != nil {
		return nil, nil, pageErr(err)
	}
	return likes, next, nil
}

// CountLikedYou returns how many users liked userID.
// Cache-first strategy:
//  1. Reads likes:count:<id> from Redis, refreshing its TTL.
//  2. On a miss or a Redis failure, counts in the database.
//  3. Writes the database count back to Redis.
func (e *Engine) CountLikedYou(ctx context.Context, userID uint64) (int64, error) {
	key := cache.KeyForLikeCount(userID)
	if e.appCtx.RedisCache != nil {
		n, found, err := e.appCtx.RedisCache.GetCounter(ctx, key)
		if err != nil {
			e.appCtx.Logger.Warn("like counter read failed", "key", key, "err", err)
		} else if found {
			return n, nil
		}
	}

	count, err := e.likes.CountLikers(ctx, userID)
	if err != nil {
		return 0, svcErr.Map(err)
	}
	if e.appCtx.RedisCache != nil {
		if err := e.appCtx.RedisCache.SetCounter(ctx, key, count); err != nil {
			e.appCtx.Logger.Warn("like counter write failed", "key", key, "err", err)
		}
	}
	return count, nil
}

// ListMatches returns the user's matches with the counterpart loaded.
// Blocked and deleted counterparts are omitted.
func (e *Engine) ListMatches(ctx context.Context, userID uint64) ([]Summary, error) {
	ms, err := e.matches.ListForUser(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	ids := make([]uint64, 0, len(ms))
	for _, m := range ms {
		ids = append(ids, m.Other(userID))
	}
	users, err := e.users.GetMany(ctx, ids)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	out := make([]Summary, 0, len(ms))
	for _, m := range ms {
		u, ok := users[m.Other(userID)]
		if !ok {
			continue
		}
		out = append(out, Summary{Match: m, User: u})
	}
	return out, nil
}

// HasMatched reports whether a and b are matched.
func (e *Engine) HasMatched(ctx context.Context, a, b uint64) (bool, error) {
	ok, err := e.matches.HasMatched(ctx, a, b)
	if err != nil {
		return false, svcErr.Map(err)
	}
	return ok, nil
}

// GetUser loads a profile for rendering.
func (e *Engine) GetUser(ctx context.Context, id uint64) (*db.User, error) {
	u, err := e.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	return u, nil
}

// Profiles loads users by id for rendering lists.
func (e *Engine) Profiles(ctx context.Context, ids []uint64) (map[uint64]db.User, error) {
	users, err := e.users.GetMany(ctx, ids)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return users, nil
}

// Now is the engine clock, used for age rendering.
func (e *Engine) Now() time.Time { return e.now() }

// undoLike drops a like whose follow-up writes failed, so a retry starts over
// instead of hitting AlreadyExists with the match never written.
func (e *Engine) undoLike(ctx context.Context, likerID, targetID uint64) {
	if err := e.likes.Delete(context.WithoutCancel(ctx), likerID, targetID); err != nil {
		e.appCtx.Logger.Error("like rollback failed", "liker", likerID, "target", targetID, "err", err)
	}
}

func (e *Engine) bumpLikeCount(ctx context.Context, userID uint64) {
	if e.appCtx.RedisCache == nil {
		return
	}
	if err := e.appCtx.RedisCache.IncrCounter(ctx, cache.KeyForLikeCount(userID), 1); err != nil {
		e.appCtx.Logger.Warn("like counter increment failed", "user", userID, "err", err)
	}
}

func (e *Engine) bumpUnread(ctx context.Context, userID uint64) {
	if e.appCtx.RedisCache == nil {
		return
	}
	if err := e.appCtx.RedisCache.IncrCounter(ctx, cache.KeyForUnreadNotifications(userID), 1); err != nil {
		e.appCtx.Logger.Warn("unread counter increment failed", "user", userID, "err", err)
	}
}

func (e *Engine) publish(ctx context.Context, name string, payload any) {
	if err := e.appCtx.Events.Publish(ctx, name, payload); err != nil {
		e.appCtx.Logger.Warn("publish failed", "event", name, "err", err)
	}
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return svcErr.NotFound(msg)
	}
	return svcErr.Map(err)
}

func pageErr(err error) error {
	if errors.Is(err, pagination.ErrInvalidToken) {
		return svcErr.InvalidArgument("invalid pagination token")
	}
	return svcErr.Map(err)
}
