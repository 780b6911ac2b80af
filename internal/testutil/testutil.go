// Package testutil wires in-memory infrastructure for package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/OfomiMatthew/tech-buddy/internal/app"
	"github.com/OfomiMatthew/tech-buddy/internal/cache"
	"github.com/OfomiMatthew/tech-buddy/internal/config"
	"github.com/OfomiMatthew/tech-buddy/internal/db"
	"github.com/OfomiMatthew/tech-buddy/internal/logger"
)

// NewDB opens a shared-cache in-memory SQLite database named after the test,
// migrates every model and seeds the minimal dataset.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := database.DB()
	require.NoError(t, err)
	// a single connection keeps the in-memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(database))
	require.NoError(t, db.SeedMinimalTestData(database))
	return database
}

// NewRedis starts a miniredis instance and returns a cache bound to it.
func NewRedis(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	return cache.NewRedisCache(cfg), mr
}

// NewAppContext bundles DB, Redis and a discarding logger.
func NewAppContext(t *testing.T) *app.AppContext {
	t.Helper()

	database := NewDB(t)
	redisCache, _ := NewRedis(t)
	return app.New(database, redisCache, logger.Discard())
}
