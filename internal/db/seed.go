package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var defaultInterests = []TechInterest{
	{Name: "Web Development", Category: "Web Dev"},
	{Name: "Mobile Development", Category: "Mobile"},
	{Name: "Machine Learning", Category: "AI/ML"},
	{Name: "Data Science", Category: "Data"},
	{Name: "DevOps", Category: "DevOps"},
	{Name: "Cloud Computing", Category: "Cloud"},
	{Name: "Blockchain", Category: "Blockchain"},
	{Name: "Cybersecurity", Category: "Security"},
	{Name: "Game Development", Category: "Gaming"},
	{Name: "UI/UX Design", Category: "Design"},
}

var defaultLanguages = []string{
	"Python", "JavaScript", "TypeScript", "Java", "C++", "C#",
	"Go", "Rust", "PHP", "Swift", "Kotlin", "Ruby",
}

var demoRoles = []string{"Backend Engineer", "Frontend Developer", "Data Scientist", "SRE", "Mobile Developer", "Security Analyst"}
var demoLevels = []string{"junior", "mid", "senior", "lead"}
var demoCities = []string{"Lagos", "Berlin", "Austin", "Toronto", "Nairobi"}

// SeedReferenceData inserts the tech interest and language catalogues.
// Existing names are left untouched, so it is safe to run on every boot.
func SeedReferenceData(db *gorm.DB) error {
	interests := make([]TechInterest, len(defaultInterests))
	copy(interests, defaultInterests)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&interests).Error; err != nil {
		return fmt.Errorf("failed to seed interests: %w", err)
	}

	languages := make([]ProgrammingLanguage, 0, len(defaultLanguages))
	for _, name := range defaultLanguages {
		languages = append(languages, ProgrammingLanguage{Name: name})
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&languages).Error; err != nil {
		return fmt.Errorf("failed to seed languages: %w", err)
	}
	return nil
}

// SeedTestData resets user-owned tables and populates demo users, likes and matches.
//
// Behavior:
//  1. Clears every user-owned table.
//  2. Creates 20 users with hashed passwords ("password") and profiles.
//  3. Generates ~150 likes; every 3rd pair is made mutual and gets its Match row.
//
// Compatible with MySQL, Postgres and SQLite.
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	if err := resetTables(db); err != nil {
		return err
	}
	if err := SeedReferenceData(db); err != nil {
		return err
	}
	log.Println("Cleared existing data")

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	var interests []TechInterest
	db.Find(&interests)
	var languages []ProgrammingLanguage
	db.Find(&languages)

	for i := 1; i <= 20; i++ {
		gender, lookingFor := "male", "female"
		if i > 10 {
			gender, lookingFor = "female", "male"
		}
		dob := time.Now().AddDate(-(22 + r.Intn(15)), -r.Intn(12), 0)
		lastSeen := time.Now().Add(-time.Duration(r.Intn(500)) * time.Hour)

		user := User{
			Username:     fmt.Sprintf("user%d", i),
			Email:        fmt.Sprintf("user%d@example.com", i),
			PasswordHash: string(hash),
			Gender:       gender,
			LookingFor:   lookingFor,
			DateOfBirth:  &dob,
			LastSeen:     &lastSeen,
			City:         demoCities[r.Intn(len(demoCities))],
			Active:       true,
			Profile: &Profile{
				Bio:                   "Building things and learning in public.",
				CurrentRole:           demoRoles[r.Intn(len(demoRoles))],
				ExperienceLevel:       demoLevels[r.Intn(len(demoLevels))],
				CollaborationInterest: "pair_programming",
				ProfileVisibility:     "public",
			},
		}
		if len(interests) > 0 {
			user.Interests = []TechInterest{interests[r.Intn(len(interests))]}
		}
		if len(languages) > 0 {
			user.Languages = []ProgrammingLanguage{languages[r.Intn(len(languages))]}
		}

		if err := db.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}
	}
	log.Println("Seeded 20 users.")

	var ids []uint64
	if err := db.Model(&User{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	counter := 0
	for _, likerID := range ids {
		for j := 0; j < 8; j++ {
			likedID := ids[r.Intn(len(ids))]
			if likerID == likedID {
				continue
			}
			if err := seedLike(db, likerID, likedID); err != nil {
				return err
			}
			if counter%3 == 0 {
				if err := seedLike(db, likedID, likerID); err != nil {
					return err
				}
				u1, u2 := likerID, likedID
				if u1 > u2 {
					u1, u2 = u2, u1
				}
				if err := db.Clauses(clause.OnConflict{DoNothing: true}).
					Create(&Match{User1ID: u1, User2ID: u2}).Error; err != nil {
					return fmt.Errorf("failed to seed match: %w", err)
				}
			}
			counter++
		}
	}
	log.Printf("Seeded %d likes.", counter)
	return nil
}

func seedLike(db *gorm.DB, likerID, likedID uint64) error {
	err := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Like{LikerID: likerID, LikedID: likedID}).Error
	if err != nil {
		return fmt.Errorf("failed to seed like: %w", err)
	}
	return nil
}

func resetTables(db *gorm.DB) error {
	tables := []string{
		"content_moderations", "ai_cache_entries", "reports", "notifications", "messages",
		"matches", "likes", "blocks", "user_interests", "user_languages", "profiles", "users",
	}
	for _, table := range tables {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	// Reset auto-increment sequences
	switch db.Dialector.Name() {
	case "mysql":
		db.Exec("ALTER TABLE users AUTO_INCREMENT = 1")
		db.Exec("ALTER TABLE likes AUTO_INCREMENT = 1")
	case "sqlite":
		db.Exec("DELETE FROM sqlite_sequence WHERE name IN ('users', 'likes', 'matches')")
	case "postgres":
		db.Exec("ALTER SEQUENCE users_id_seq RESTART WITH 1")
		db.Exec("ALTER SEQUENCE likes_id_seq RESTART WITH 1")
	}
	return nil
}

// SeedMinimalTestData wipes user tables and inserts a small deterministic dataset.
//
// Dataset:
//   - alice (1), bob (2), carol (3), dave (4) all active with empty profiles
//   - erin (5) deactivated
//
// No likes, matches or blocks. Tests build that state through the services.
func SeedMinimalTestData(db *gorm.DB) error {
	if err := resetTables(db); err != nil {
		return err
	}

	users := []User{
		{ID: 1, Username: "alice", Email: "alice@test.com", PasswordHash: "x", Gender: "female", City: "Berlin"},
		{ID: 2, Username: "bob", Email: "bob@test.com", PasswordHash: "x", Gender: "male", City: "Lagos"},
		{ID: 3, Username: "carol", Email: "carol@test.com", PasswordHash: "x", Gender: "female", City: "Berlin"},
		{ID: 4, Username: "dave", Email: "dave@test.com", PasswordHash: "x", Gender: "male", City: "Austin"},
		{ID: 5, Username: "erin", Email: "erin@test.com", PasswordHash: "x", Gender: "female", City: "Toronto"},
	}
	if err := db.Create(&users).Error; err != nil {
		return err
	}
	// default:true on Active means the flag has to be cleared after insert
	if err := db.Model(&User{}).Where("id = ?", 5).Update("active", false).Error; err != nil {
		return err
	}

	for _, u := range users {
		if err := db.Create(&Profile{UserID: u.ID, CurrentRole: "Engineer"}).Error; err != nil {
			return err
		}
	}
	return nil
}
