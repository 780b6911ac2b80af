package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/OfomiMatthew/tech-buddy/internal/db"
)

// Freshness windows per feature.
const (
	StartersWindow      = 7 * 24 * time.Hour
	CompatibilityWindow = 30 * 24 * time.Hour
	DateIdeasWindow     = 14 * 24 * time.Hour
	InsightsWindow      = 7 * 24 * time.Hour
)

// Feature names used as the first half of the cache key.
const (
	FeatureStarters      = "conversation_starters"
	FeatureCompatibility = "compatibility"
	FeatureDateIdeas     = "date_ideas"
	FeatureInsights      = "profile_insights"
)

// CacheStore persists generated results. The newest entry per (feature, key) wins.
type CacheStore interface {
	Latest(ctx context.Context, feature, key string) (*db.AICacheEntry, error)
	Save(ctx context.Context, feature, key string, userID uint64, payload []byte, createdAt time.Time) error
}

// Gateway wraps a CacheStore with a clock and a logger.
type Gateway struct {
	store CacheStore
	now   func() time.Time
	log   *slog.Logger
}

func NewGateway(store CacheStore, log *slog.Logger) *Gateway {
	return &Gateway{store: store, now: func() time.Time { return time.Now().UTC() }, log: log}
}

// CacheKey identifies one cached result.
type CacheKey struct {
	Feature string
	Key     string
	UserID  uint64 // owner recorded with the entry
	Window  time.Duration
}

// UserKey keys results owned by one user.
func UserKey(userID uint64) string { return strconv.FormatUint(userID, 10) }

// DirectedKey keys results that differ by viewer, e.g. starters written for user about match.
func DirectedKey(userID, otherID uint64) string { return fmt.Sprintf("%d:%d", userID, otherID) }

// PairKey keys results shared by both users of a pair, independent of order.
func PairKey(a, b uint64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// GetOrGenerate returns the cached value for k when it is younger than
// k.Window, otherwise runs generate and stores its result.
//
// Behavior:
//   - A cached entry exactly k.Window old is stale.
//   - generate errors are returned as is and nothing is stored.
//   - Cache read, decode and write failures are logged; the caller still gets a value.
//   - The bool result reports whether the value came from the cache.
//
// Example:
//
//	v, cached, err := GetOrGenerate(ctx, gw, CacheKey{Feature: FeatureCompatibility, Key: PairKey(1, 2), Window: CompatibilityWindow}, gen)
func GetOrGenerate[T any](ctx context.Context, g *Gateway, k CacheKey, generate func(context.Context) (T, error)) (T, bool, error) {
	log := g.log.With("feature", k.Feature, "key", k.Key)

	entry, err := g.store.Latest(ctx, k.Feature, k.Key)
	if err != nil {
		log.Warn("ai cache read failed", "err", err)
	} else if entry != nil && g.now().Sub(entry.CreatedAt) < k.Window {
		var v T
		err := json.Unmarshal(entry.Payload, &v)
		if err == nil {
			log.Debug("ai cache hit", "age", g.now().Sub(entry.CreatedAt).String())
			return v, true, nil
		}
		log.Warn("ai cache entry undecodable", "id", entry.ID, "err", err)
	}

	v, err := generate(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}

	payload, err := json.Marshal(v)
	if err != nil {
		log.Warn("ai result not cacheable", "err", err)
		return v, false, nil
	}
	if err := g.store.Save(ctx, k.Feature, k.Key, k.UserID, payload, g.now()); err != nil {
		log.Warn("ai cache write failed", "err", err)
	}
	return v, false, nil
}
