package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/OfomiMatthew/tech-buddy/internal/cache"
	"github.com/OfomiMatthew/tech-buddy/internal/config"
	"github.com/OfomiMatthew/tech-buddy/internal/events"
	"github.com/OfomiMatthew/tech-buddy/internal/storage"
)

// AppContext holds shared dependencies (DB, Redis, Logger, etc.)
type AppContext struct {
	Config     *config.Config
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
	Events     events.Bus
	Storage    storage.Store
}

type Option func(*AppContext)

func WithConfig(cfg *config.Config) Option { return func(a *AppContext) { a.Config = cfg } }
func WithEvents(bus events.Bus) Option     { return func(a *AppContext) { a.Events = bus } }
func WithStorage(s storage.Store) Option   { return func(a *AppContext) { a.Storage = s } }

// New creates a new AppContext. Events default to an in-process bus and
// config to the environment defaults.
func New(db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger, opts ...Option) *AppContext {
	a := &AppContext{
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.Config == nil {
		a.Config = config.New()
	}
	if a.Events == nil {
		a.Events = events.NewLocal()
	}
	return a
}
