package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/OfomiMatthew/tech-buddy/internal/db"
	"github.com/OfomiMatthew/tech-buddy/internal/utils/pagination"
)

// MessageRepository is the append-only conversation log.
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(database *gorm.DB) *MessageRepository {
	return &MessageRepository{db: database}
}

func (r *MessageRepository) WithTx(tx *gorm.DB) *MessageRepository {
	return &MessageRepository{db: tx}
}

func (r *MessageRepository) Create(ctx context.Context, m *db.Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// GetByID loads a message regardless of its deleted flag.
func (r *MessageRepository) GetByID(ctx context.Context, id uint64) (*db.Message, error) {
	var m db.Message
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// Conversation returns the visible messages between a and b.
//
// Behavior:
//   - Soft-deleted messages are excluded.
//   - Pages walk backwards from the newest message; each page is returned
//     oldest first for rendering.
//   - The cursor is (sent_at, id) of the oldest message already returned.
//
// Example:
//
//	msgs, next, err := repo.Conversation(ctx, 1, 2, nil, 50)
func (r *MessageRepository) Conversation(
	ctx context.Context,
	a, b uint64,
	paginationToken *string,
	limit int,
) ([]db.Message, *string, error) {
	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))", a, b, b, a).
		Where("is_deleted = ?", false).
		Order("sent_at DESC, id DESC").
		Limit(limit + 1)

	if !cursor.IsZero() {
		ts := cursor.Time()
		query = query.Where("(sent_at < ? OR (sent_at = ? AND id < ?))", ts, ts, cursor.ID)
	}

	var msgs []db.Message
	if err := query.Find(&msgs).Error; err != nil {
		return nil, nil, err
	}

	var next *string
	if len(msgs) > limit {
		last := msgs[limit-1]
		next = pagination.Next(len(msgs), limit, pagination.Cursor{ID: last.ID, CreatedUnix: last.SentAt.UnixMilli()})
		msgs = msgs[:limit]
	}

	// oldest first
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, next, nil
}

// MarkRead flips unread messages from sender to receiver and returns how many changed.
func (r *MessageRepository) MarkRead(ctx context.Context, receiverID, senderID uint64, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND is_read = ?", senderID, receiverID, false).
		Updates(map[string]any{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

// SetReaction stores or clears (nil) the reaction on a message.
func (r *MessageRepository) SetReaction(ctx context.Context, id uint64, reaction *string) error {
	return r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("id = ?", id).
		Update("reaction", reaction).Error
}

// SoftDelete sets the deleted flag. The row stays in storage.
func (r *MessageRepository) SoftDelete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("id = ?", id).
		Update("is_deleted", true).Error
}

// LastVisible returns the newest non-deleted message between a and b, or nil.
func (r *MessageRepository) LastVisible(ctx context.Context, a, b uint64) (*db.Message, error) {
	var msgs []db.Message
	err := r.db.WithContext(ctx).
		Where("((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))", a, b, b, a).
		Where("is_deleted = ?", false).
		Order("sent_at DESC, id DESC").
		Limit(1).
		Find(&msgs).Error
	if err != nil || len(msgs) == 0 {
		return nil, err
	}
	return &msgs[0], nil
}

// UnreadBySender counts unread, non-deleted messages to receiverID grouped by sender.
func (r *MessageRepository) UnreadBySender(ctx context.Context, receiverID uint64) (map[uint64]int64, error) {
	var rows []struct {
		SenderID uint64
		Count    int64
	}
	err := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Select("sender_id, COUNT(*) AS count").
		Where("receiver_id = ? AND is_read = ? AND is_deleted = ?", receiverID, false, false).
		Group("sender_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uint64]int64, len(rows))
	for _, row := range rows {
		out[row.SenderID] = row.Count
	}
	return out, nil
}
