package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/OfomiMatthew/tech-buddy/internal/db"
	"github.com/OfomiMatthew/tech-buddy/internal/utils/pagination"
)

// notBlockedWith filters rows whose column has no block edge with userID in either direction.
const notBlockedWith = `NOT EXISTS (
	SELECT 1 FROM blocks b
	WHERE (b.blocker_id = ? AND b.blocked_id = %[1]s)
	   OR (b.blocker_id = %[1]s AND b.blocked_id = ?)
)`

// LikeRepository provides data access methods for the Like model.
type LikeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new repository bound to the given DB connection.
func NewLikeRepository(database *gorm.DB) *LikeRepository {
	return &LikeRepository{db: database}
}

// WithTx returns a copy of the repository bound to tx.
func (r *LikeRepository) WithTx(tx *gorm.DB) *LikeRepository {
	return &LikeRepository{db: tx}
}

// CreateLike inserts a like from liker to liked.
//
// Behavior:
//   - The unique index on (liker_id, liked_id) decides duplicates.
//   - A duplicate insert is a no-op and reports created = false.
//   - Never updates an existing row.
//
// Example:
//
//	created, err := repo.CreateLike(ctx, 1, 2) // user 1 liked user 2
func (r *LikeRepository) CreateLike(ctx context.Context, likerID, likedID uint64) (*db.Like, bool, error) {
	like := db.Like{LikerID: likerID, LikedID: likedID}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "liker_id"}, {Name: "liked_id"}},
			DoNothing: true,
		}).
		Create(&like)
	if res.Error != nil {
		return nil, false, res.Error
	}
	return &like, res.RowsAffected > 0, nil
}

// Delete removes the like from liker to liked. A missing row is a no-op.
func (r *LikeRepository) Delete(ctx context.Context, likerID, likedID uint64) error {
	return r.db.WithContext(ctx).
		Where("liker_id = ? AND liked_id = ?", likerID, likedID).
		Delete(&db.Like{}).Error
}

// HasLiked checks whether liker has liked liked.
//
// Example:
//
//	repo.HasLiked(ctx, 1, 2) // -> true if user 1 liked user 2
func (r *LikeRepository) HasLiked(ctx context.Context, likerID, likedID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Where("liker_id = ? AND liked_id = ?", likerID, likedID).
		Count(&count).Error
	return count > 0, err
}

// GetLikers returns the likes received by a user, newest first.
//
// Behavior:
//   - Only rows where liked_id = X are returned.
//   - Likers with a block edge to X (either direction) are excluded.
//   - Ordered by created_at DESC, liker_id DESC.
//   - Supports cursor-based pagination via paginationToken.
//
// Example:
//
//	repo.GetLikers(ctx, 42, nil, 20) // first 20 people who liked user 42
func (r *LikeRepository) GetLikers(
	ctx context.Context,
	likedID uint64,
	paginationToken *string,
	limit int,
) ([]db.Like, *string, error) {
	return r.listLikers(ctx, likedID, paginationToken, limit, false)
}

// GetNewLikers returns users who liked the recipient but have not been liked back.
//
// Behavior:
//   - Same filters and ordering as GetLikers.
//   - Excludes mutual likes (recipient already liked them back).
//
// Example:
//
//	repo.GetNewLikers(ctx, 42, nil, 20) // one-way likes waiting on user 42
func (r *LikeRepository) GetNewLikers(
	ctx context.Context,
	likedID uint64,
	paginationToken *string,
	limit int,
) ([]db.Like, *string, error) {
	return r.listLikers(ctx, likedID, paginationToken, limit, true)
}

func (r *LikeRepository) listLikers(
	ctx context.Context,
	likedID uint64,
	paginationToken *string,
	limit int,
	onlyUnanswered bool,
) ([]db.Like, *string, error) {
	var likes []db.Like

	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Table("likes l").
		Select("l.*").
		Where("l.liked_id = ?", likedID).
		Where(sprintfBlock("l.liker_id"), likedID, likedID).
		Order("l.created_at DESC, l.liker_id DESC").
		Limit(limit + 1)

	if onlyUnanswered {
		query = query.Where(`NOT EXISTS (
			SELECT 1 FROM likes l2
			WHERE l2.liker_id = l.liked_id AND l2.liked_id = l.liker_id
		)`)
	}

	// apply cursor
	if !cursor.IsZero() {
		ts := cursor.Time()
		query = query.Where(
			"(l.created_at < ? OR (l.created_at = ? AND l.liker_id < ?))",
			ts, ts, cursor.ID,
		)
	}

	if err := query.Find(&likes).Error; err != nil {
		return nil, nil, err
	}

	var nextToken *string
	if len(likes) > limit {
		last := likes[limit-1]
		nextToken = pagination.Next(len(likes), limit, pagination.Cursor{
			ID:          last.LikerID,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		likes = likes[:limit]
	}

	return likes, nextToken, nil
}

// CountLikers returns how many users liked the given user.
//
// Behavior:
//   - Same filter as GetLikers.
//   - Used in conjunction with Redis cache (DB is fallback).
func (r *LikeRepository) CountLikers(ctx context.Context, likedID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("likes l").
		Where("l.liked_id = ?", likedID).
		Where(sprintfBlock("l.liker_id"), likedID, likedID).
		Count(&count).Error
	return count, err
}

// CountSent returns how many likes a user has sent.
func (r *LikeRepository) CountSent(ctx context.Context, likerID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Where("liker_id = ?", likerID).
		Count(&count).Error
	return count, err
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
