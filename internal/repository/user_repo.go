package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/OfomiMatthew/tech-buddy/internal/db"
)

// UserRepository reads and writes users with their profiles.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database}
}

// Create inserts the user and an empty profile in one transaction.
func (r *UserRepository) Create(ctx context.Context, u *db.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if u.Profile == nil {
			u.Profile = &db.Profile{ProfileVisibility: "public"}
		}
		return tx.Create(u).Error
	})
}

// GetByID loads a user with profile, interests and languages.
func (r *UserRepository) GetByID(ctx context.Context, id uint64) (*db.User, error) {
	var u db.User
	err := r.db.WithContext(ctx).
		Preload("Profile").
		Preload("Interests").
		Preload("Languages").
		First(&u, id).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByLogin finds a user by email or username (case-insensitive email).
func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*db.User, error) {
	var u db.User
	login = strings.TrimSpace(login)
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = ? OR username = ?", strings.ToLower(login), login).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Exists reports whether email or username is already taken.
func (r *UserRepository) Exists(ctx context.Context, email, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("LOWER(email) = ? OR username = ?", strings.ToLower(email), username).
		Count(&count).Error
	return count > 0, err
}

// GetMany loads users by id, keyed by id. Missing ids are absent from the map.
func (r *UserRepository) GetMany(ctx context.Context, ids []uint64) (map[uint64]db.User, error) {
	out := make(map[uint64]db.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []db.User
	if err := r.db.WithContext(ctx).Preload("Profile").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

// UpdateProfile writes the given profile columns for the user.
func (r *UserRepository) UpdateProfile(ctx context.Context, userID uint64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("user_id = ?", userID).
		Updates(fields).Error
}

// UpdateUser writes the given user columns.
func (r *UserRepository) UpdateUser(ctx context.Context, userID uint64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("id = ?", userID).
		Updates(fields).Error
}

// ReplaceSkills replaces the user's interests and languages with the given catalogue ids.
// A nil slice leaves that association untouched.
func (r *UserRepository) ReplaceSkills(ctx context.Context, userID uint64, interestIDs, languageIDs []uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u := db.User{ID: userID}
		if interestIDs != nil {
			var interests []db.TechInterest
			if len(interestIDs) > 0 {
				if err := tx.Where("id IN ?", interestIDs).Find(&interests).Error; err != nil {
					return err
				}
			}
			if err := tx.Model(&u).Association("Interests").Replace(interests); err != nil {
				return err
			}
		}
		if languageIDs != nil {
			var languages []db.ProgrammingLanguage
			if len(languageIDs) > 0 {
				if err := tx.Where("id IN ?", languageIDs).Find(&languages).Error; err != nil {
					return err
				}
			}
			if err := tx.Model(&u).Association("Languages").Replace(languages); err != nil {
				return err
			}
		}
		return nil
	})
}

// TouchLastSeen stamps the user's last activity.
func (r *UserRepository) TouchLastSeen(ctx context.Context, userID uint64, at time.Time) error {
	return r.UpdateUser(ctx, userID, map[string]any{"last_seen": at})
}

// Discover returns candidate profiles for userID.
//
// Behavior:
//   - Excludes the user, anyone the user blocked or was blocked by, and anyone
//     the user already liked (pending or matched).
//   - Active users only.
//   - Ordered by id ASC so results are reproducible.
//
// Example:
//
//	repo.Discover(ctx, 1, 20)
func (r *UserRepository) Discover(ctx context.Context, userID uint64, limit int) ([]db.User, error) {
	var users []db.User
	err := r.db.WithContext(ctx).
		Preload("Profile").
		Preload("Interests").
		Preload("Languages").
		Table("users u").
		Select("u.*").
		Where("u.id <> ? AND u.active = ?", userID, true).
		Where(sprintfBlock("u.id"), userID, userID).
		Where("NOT EXISTS (SELECT 1 FROM likes l WHERE l.liker_id = ? AND l.liked_id = u.id)", userID).
		Order("u.id ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}

// SearchFilter narrows Search. Zero values are ignored.
type SearchFilter struct {
	Query                 string // username or city substring
	ExperienceLevel       string
	CollaborationInterest string
	MinAge                int
	MaxAge                int
	Limit                 int
}

// Search finds active users matching f, excluding the viewer and block edges either way.
func (r *UserRepository) Search(ctx context.Context, viewerID uint64, f SearchFilter, now time.Time) ([]db.User, error) {
	query := r.db.WithContext(ctx).
		Preload("Profile").
		Table("users u").
		Select("u.*").
		Joins("LEFT JOIN profiles p ON p.user_id = u.id").
		Where("u.id <> ? AND u.active = ?", viewerID, true).
		Where(sprintfBlock("u.id"), viewerID, viewerID)

	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		like := "%" + q + "%"
		query = query.Where("(LOWER(u.username) LIKE ? OR LOWER(u.city) LIKE ?)", like, like)
	}
	if f.ExperienceLevel != "" {
		query = query.Where("p.experience_level = ?", f.ExperienceLevel)
	}
	if f.CollaborationInterest != "" {
		query = query.Where("p.collaboration_interest = ?", f.CollaborationInterest)
	}
	// born on or before now - minAge years
	if f.MinAge > 0 {
		query = query.Where("u.date_of_birth <= ?", now.AddDate(-f.MinAge, 0, 0))
	}
	// born after now - (maxAge+1) years
	if f.MaxAge > 0 {
		query = query.Where("u.date_of_birth > ?", now.AddDate(-(f.MaxAge + 1), 0, 0))
	}

	var users []db.User
	err := query.Order("u.id ASC").Limit(f.Limit).Find(&users).Error
	return users, err
}

// Catalogue returns every tech interest and programming language, by name.
func (r *UserRepository) Catalogue(ctx context.Context) ([]db.TechInterest, []db.ProgrammingLanguage, error) {
	var interests []db.TechInterest
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&interests).Error; err != nil {
		return nil, nil, err
	}
	var languages []db.ProgrammingLanguage
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&languages).Error; err != nil {
		return nil, nil, err
	}
	return interests, languages, nil
}
