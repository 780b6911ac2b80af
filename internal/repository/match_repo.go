package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/OfomiMatthew/tech-buddy/internal/db"
)

// MatchRepository stores canonical match rows (user1_id < user2_id).
type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

func (r *MatchRepository) WithTx(tx *gorm.DB) *MatchRepository {
	return &MatchRepository{db: tx}
}

// OrderedPair normalizes two ids to (min, max).
func OrderedPair(a, b uint64) (uint64, uint64) {
	if a > b {
		return b, a
	}
	return a, b
}

// CreateMatch materializes the match between a and b.
//
// Behavior:
//   - Ids are normalized so both sides of the pair map to one row.
//   - The unique index on (user1_id, user2_id) is the arbiter. When a
//     concurrent call already inserted the row, the existing row is loaded
//     and created = false is returned instead of an error.
//
// Example:
//
//	m, created, err := repo.CreateMatch(ctx, 2, 1) // -> Match{User1ID: 1, User2ID: 2}
func (r *MatchRepository) CreateMatch(ctx context.Context, a, b uint64) (*db.Match, bool, error) {
	u1, u2 := OrderedPair(a, b)
	m := db.Match{User1ID: u1, User2ID: u2}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user1_id"}, {Name: "user2_id"}},
			DoNothing: true,
		}).
		Create(&m)
	if res.Error != nil && !errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return nil, false, res.Error
	}
	if res.Error == nil && res.RowsAffected > 0 {
		return &m, true, nil
	}

	existing, err := r.GetMatch(ctx, u1, u2)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetMatch loads the match between a and b in either order.
func (r *MatchRepository) GetMatch(ctx context.Context, a, b uint64) (*db.Match, error) {
	u1, u2 := OrderedPair(a, b)
	var m db.Match
	err := r.db.WithContext(ctx).
		Where("user1_id = ? AND user2_id = ?", u1, u2).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// HasMatched reports whether a Match row exists for the pair.
func (r *MatchRepository) HasMatched(ctx context.Context, a, b uint64) (bool, error) {
	u1, u2 := OrderedPair(a, b)
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("user1_id = ? AND user2_id = ?", u1, u2).
		Count(&count).Error
	return count > 0, err
}

// ListForUser returns the user's matches, newest first, excluding blocked counterparts.
func (r *MatchRepository) ListForUser(ctx context.Context, userID uint64) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Table("matches m").
		Select("m.*").
		Where("m.user1_id = ? OR m.user2_id = ?", userID, userID).
		Where(`NOT EXISTS (
			SELECT 1 FROM blocks b
			WHERE (b.blocker_id = m.user1_id AND b.blocked_id = m.user2_id)
			   OR (b.blocker_id = m.user2_id AND b.blocked_id = m.user1_id)
		)`).
		Order("m.matched_at DESC, m.id DESC").
		Find(&matches).Error
	return matches, err
}

// CountForUser returns how many matches a user has.
func (r *MatchRepository) CountForUser(ctx context.Context, userID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Count(&count).Error
	return count, err
}
