package db

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/OfomiMatthew/tech-buddy/internal/config"
)

// NewDB opens the configured database and migrates the schema.
//
// DB_DRIVER selects mysql (default), postgres or sqlite.
func NewDB(cfg *config.Config) (*gorm.DB, error) {
	dialector, err := Dialector(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return nil, err
	}

	logLevel := logger.Warn
	if cfg.DB.LogSQL {
		logLevel = logger.Info // log SQL queries
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if sqlDB, err := db.DB(); err == nil && cfg.DB.Driver != "sqlite" {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Dialector returns the gorm dialector for driver.
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "", "mysql":
		return mysql.Open(dsn), nil
	case "postgres", "postgresql":
		return postgres.Open(dsn), nil
	case "sqlite", "sqlite3":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
}

// Migrate keeps the schema in sync with the models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
