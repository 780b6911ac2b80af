package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/OfomiMatthew/tech-buddy/internal/db"
)

// AICacheRepository stores generated AI results and the moderation log.
type AICacheRepository struct {
	db *gorm.DB
}

func NewAICacheRepository(database *gorm.DB) *AICacheRepository {
	return &AICacheRepository{db: database}
}

// Latest returns the newest entry for (feature, key), or nil when none exists.
func (r *AICacheRepository) Latest(ctx context.Context, feature, key string) (*db.AICacheEntry, error) {
	var entries []db.AICacheEntry
	err := r.db.WithContext(ctx).
		Where("feature = ? AND cache_key = ?", feature, key).
		Order("created_at DESC, id DESC").
		Limit(1).
		Find(&entries).Error
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

// Save appends a new entry stamped with createdAt.
func (r *AICacheRepository) Save(ctx context.Context, feature, key string, userID uint64, payload []byte, createdAt time.Time) error {
	return r.db.WithContext(ctx).Create(&db.AICacheEntry{
		Feature:   feature,
		CacheKey:  key,
		UserID:    userID,
		Payload:   datatypes.JSON(payload),
		CreatedAt: createdAt,
	}).Error
}

// LogModeration appends a moderation verdict.
func (r *AICacheRepository) LogModeration(ctx context.Context, m *db.ContentModeration) error {
	return r.db.WithContext(ctx).Create(m).Error
}
