package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/OfomiMatthew/tech-buddy/internal/db"
)

// sprintfBlock renders the "no block edge" filter for a user id column.
// The returned SQL takes the viewer id twice.
func sprintfBlock(column string) string {
	return fmt.Sprintf(notBlockedWith, column)
}

// BlockRepository stores directed block edges and answers symmetric lookups.
type BlockRepository struct {
	db *gorm.DB
}

func NewBlockRepository(database *gorm.DB) *BlockRepository {
	return &BlockRepository{db: database}
}

// Block records blocker -> blocked. Blocking twice is a no-op.
func (r *BlockRepository) Block(ctx context.Context, blockerID, blockedID uint64) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "blocker_id"}, {Name: "blocked_id"}},
			DoNothing: true,
		}).
		Create(&db.Block{BlockerID: blockerID, BlockedID: blockedID})
	return res.RowsAffected > 0, res.Error
}

// Unblock removes blocker -> blocked and reports whether an edge existed.
func (r *BlockRepository) Unblock(ctx context.Context, blockerID, blockedID uint64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&db.Block{})
	return res.RowsAffected > 0, res.Error
}

// IsBlockedEitherWay reports whether a or b blocked the other.
func (r *BlockRepository) IsBlockedEitherWay(ctx context.Context, a, b uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Block{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&count).Error
	return count > 0, err
}

// ListBlocked returns the edges created by blocker, newest first.
func (r *BlockRepository) ListBlocked(ctx context.Context, blockerID uint64) ([]db.Block, error) {
	var blocks []db.Block
	err := r.db.WithContext(ctx).
		Where("blocker_id = ?", blockerID).
		Order("created_at DESC, id DESC").
		Find(&blocks).Error
	return blocks, err
}
