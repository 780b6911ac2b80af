package db

import (
	"time"

	"gorm.io/datatypes"
)

// Notification types.
const (
	NotificationNewMatch   = "new_match"
	NotificationNewLike    = "new_like"
	NotificationNewMessage = "new_message"
)

// Message types. Attachments derive their type from the file extension.
const (
	MessageText  = "text"
	MessageImage = "image"
	MessageVoice = "voice"
	MessageVideo = "video"
	MessageFile  = "file"
)

// Report statuses and reasons.
const (
	ReportPending  = "pending"
	ReportReviewed = "reviewed"
	ReportResolved = "resolved"
)

var ReportReasons = []string{"fake_profile", "harassment", "inappropriate_content", "scam", "other"}

// User is the account row. Profile data lives in Profile (1:1).
type User struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"uniqueIndex;size:64;not null"`
	Email        string `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	Active       bool   `gorm:"not null;default:true;index"`
	Verified     bool   `gorm:"not null;default:false"`
	Admin        bool   `gorm:"not null;default:false"`
	LastSeen     *time.Time
	DateOfBirth  *time.Time
	Gender       string    `gorm:"size:20"`
	LookingFor   string    `gorm:"size:20"`
	City         string    `gorm:"size:100"`
	State        string    `gorm:"size:100"`
	Country      string    `gorm:"size:100"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`

	Profile   *Profile              `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Interests []TechInterest        `gorm:"many2many:user_interests;constraint:OnDelete:CASCADE"`
	Languages []ProgrammingLanguage `gorm:"many2many:user_languages;constraint:OnDelete:CASCADE"`
}

// Age returns the age in whole years at now, or 0 if the date of birth is unknown.
func (u *User) Age(now time.Time) int {
	if u.DateOfBirth == nil {
		return 0
	}
	dob := *u.DateOfBirth
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

// Profile extends User with the editable public profile.
type Profile struct {
	ID                    uint64 `gorm:"primaryKey;autoIncrement"`
	UserID                uint64 `gorm:"uniqueIndex;not null"`
	Bio                   string `gorm:"type:text"`
	ProfilePhoto          string `gorm:"size:255"`
	CurrentRole           string `gorm:"size:100"`
	ExperienceLevel       string `gorm:"size:50"`
	GithubURL             string `gorm:"size:255"`
	PortfolioURL          string `gorm:"size:255"`
	LinkedinURL           string `gorm:"size:255"`
	LearningGoals         string `gorm:"type:text"`
	CanTeach              string `gorm:"type:text"`
	CollaborationInterest string `gorm:"size:50"`
	PreferredContact      string `gorm:"size:50"`
	Availability          string `gorm:"size:100"`
	ShowAge               bool   `gorm:"not null;default:true"`
	ShowLocation          bool   `gorm:"not null;default:true"`
	ShowOnlineStatus      bool   `gorm:"not null;default:true"`
	ProfileVisibility     string    `gorm:"size:20;not null;default:public"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime"`
}

type TechInterest struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	Name     string `gorm:"uniqueIndex;size:50;not null"`
	Category string `gorm:"size:50"`
}

type ProgrammingLanguage struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"uniqueIndex;size:50;not null"`
}

// Block is a directed blocker -> blocked edge. Lookups treat it symmetrically.
type Block struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	BlockerID uint64    `gorm:"not null;uniqueIndex:idx_block_pair,priority:1"`
	BlockedID uint64    `gorm:"not null;uniqueIndex:idx_block_pair,priority:2;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Like is a directed liker -> liked edge.
//
// Indexes:
//   - idx_like_pair(liker_id, liked_id) UNIQUE
//     One row per ordered pair. Duplicate likes are rejected by the database,
//     and the reverse-like check for match detection is a point lookup.
//   - idx_like_liked_created(liked_id, created_at DESC)
//     Serves "who liked me" lists with cursor pagination.
type Like struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	LikerID     uint64    `gorm:"not null;uniqueIndex:idx_like_pair,priority:1"`
	LikedID     uint64    `gorm:"not null;uniqueIndex:idx_like_pair,priority:2;index:idx_like_liked_created,priority:1"`
	IsSuperLike bool      `gorm:"not null;default:false"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index:idx_like_liked_created,priority:2,sort:desc"`
}

// Match is the canonical row for a mutual like. User1ID is always the lower id.
type Match struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	User1ID   uint64    `gorm:"not null;uniqueIndex:idx_match_pair,priority:1"`
	User2ID   uint64    `gorm:"not null;uniqueIndex:idx_match_pair,priority:2;index"`
	MatchedAt time.Time `gorm:"autoCreateTime"`
}

// Other returns the participant that is not userID.
func (m Match) Other(userID uint64) uint64 {
	if m.User1ID == userID {
		return m.User2ID
	}
	return m.User1ID
}

// Message is append-only. Only read state, reaction and the deleted flag change.
type Message struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	SenderID    uint64 `gorm:"not null;index:idx_message_pair,priority:1"`
	ReceiverID  uint64 `gorm:"not null;index:idx_message_pair,priority:2;index:idx_message_unread,priority:1"`
	Content     string `gorm:"type:text"`
	MessageType string `gorm:"size:20;not null;default:text"`
	FileURL     string `gorm:"size:500"`
	FileName    string `gorm:"size:255"`
	FileSize    int64
	Duration    int       // seconds, voice and video only
	SentAt      time.Time `gorm:"autoCreateTime;index"`
	IsRead      bool      `gorm:"not null;default:false;index:idx_message_unread,priority:2"`
	ReadAt      *time.Time
	Reaction    *string `gorm:"size:32"`
	IsDeleted   bool    `gorm:"not null;default:false"`
}

type Notification struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	UserID        uint64 `gorm:"not null;index"`
	Type          string `gorm:"size:50;not null"`
	Content       string `gorm:"type:text"`
	RelatedUserID *uint64
	IsRead        bool      `gorm:"not null;default:false"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index"`
}

type Report struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	ReporterID  uint64 `gorm:"not null;index"`
	ReportedID  uint64 `gorm:"not null;index"`
	Reason      string `gorm:"size:50;not null"`
	Description string `gorm:"type:text"`
	Status      string    `gorm:"size:20;not null;default:pending"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	ReviewedAt  *time.Time
}

// AICacheEntry stores one generated AI result. The newest row per
// (feature, cache_key) is the cache value; CreatedAt is the freshness key.
type AICacheEntry struct {
	ID        uint64         `gorm:"primaryKey;autoIncrement"`
	Feature   string         `gorm:"size:40;not null;index:idx_ai_cache_lookup,priority:1"`
	CacheKey  string         `gorm:"size:80;not null;index:idx_ai_cache_lookup,priority:2"`
	UserID    uint64         `gorm:"index"`
	Payload   datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"index:idx_ai_cache_lookup,priority:3,sort:desc"`
}

// ContentModeration logs every moderation verdict, including fail-open ones.
type ContentModeration struct {
	ID              uint64         `gorm:"primaryKey;autoIncrement"`
	UserID          uint64         `gorm:"index"`
	ContentType     string         `gorm:"size:50"`
	Content         string         `gorm:"type:text"`
	IsSafe          bool           `gorm:"not null"`
	RiskLevel       string         `gorm:"size:20"`
	Issues          datatypes.JSON
	SuggestedAction string    `gorm:"size:20"`
	Reason          string    `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
}

// Models lists every table owned by the service, in migration order.
func Models() []any {
	return []any{
		&User{}, &Profile{}, &TechInterest{}, &ProgrammingLanguage{},
		&Block{}, &Like{}, &Match{}, &Message{}, &Notification{}, &Report{},
		&AICacheEntry{}, &ContentModeration{},
	}
}
