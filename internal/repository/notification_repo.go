package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/OfomiMatthew/tech-buddy/internal/db"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(database *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: database}
}

func (r *NotificationRepository) WithTx(tx *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: tx}
}

// Create inserts the notifications in one statement.
func (r *NotificationRepository) Create(ctx context.Context, ns []db.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&ns).Error
}

// ListForUser returns the newest notifications of a user.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID uint64, limit int) ([]db.Notification, error) {
	var ns []db.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&ns).Error
	return ns, err
}

// MarkAllRead flips every unread notification of the user.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID uint64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}
