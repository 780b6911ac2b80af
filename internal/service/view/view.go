// Package view holds the JSON shapes returned by the HTTP API.
package view

import (
	"time"

	"github.com/OfomiMatthew/tech-buddy/internal/db"
)

// UserCard is the public projection of a user honoring its privacy toggles.
type UserCard struct {
	ID                    uint64     `json:"id"`
	Username              string     `json:"username"`
	Age                   *int       `json:"age,omitempty"`
	Gender                string     `json:"gender,omitempty"`
	City                  string     `json:"city,omitempty"`
	Country               string     `json:"country,omitempty"`
	Bio                   string     `json:"bio,omitempty"`
	ProfilePhoto          string     `json:"profile_photo,omitempty"`
	CurrentRole           string     `json:"current_role,omitempty"`
	ExperienceLevel       string     `json:"experience_level,omitempty"`
	CollaborationInterest string     `json:"collaboration_interest,omitempty"`
	GithubURL             string     `json:"github_url,omitempty"`
	Interests             []string   `json:"interests"`
	Languages             []string   `json:"languages"`
	Verified              bool       `json:"verified"`
	Online                bool       `json:"online"`
	LastSeen              *time.Time `json:"last_seen,omitempty"`
}

// User renders u for other users. online is the presence state, if known.
func User(u *db.User, now time.Time, online bool) UserCard {
	card := UserCard{
		ID:        u.ID,
		Username:  u.Username,
		Gender:    u.Gender,
		Verified:  u.Verified,
		Interests: make([]string, 0, len(u.Interests)),
		Languages: make([]string, 0, len(u.Languages)),
	}
	for _, i := range u.Interests {
		card.Interests = append(card.Interests, i.Name)
	}
	for _, l := range u.Languages {
		card.Languages = append(card.Languages, l.Name)
	}

	p := u.Profile
	if p == nil {
		p = &db.Profile{ShowAge: true, ShowLocation: true, ShowOnlineStatus: true}
	}
	card.Bio = p.Bio
	card.ProfilePhoto = p.ProfilePhoto
	card.CurrentRole = p.CurrentRole
	card.ExperienceLevel = p.ExperienceLevel
	card.CollaborationInterest = p.CollaborationInterest
	card.GithubURL = p.GithubURL

	if p.ShowAge {
		if age := u.Age(now); age > 0 {
			card.Age = &age
		}
	}
	if p.ShowLocation {
		card.City = u.City
		card.Country = u.Country
	}
	if p.ShowOnlineStatus {
		card.Online = online
		card.LastSeen = u.LastSeen
	}
	return card
}

// Message is a chat message as seen by either participant.
type Message struct {
	ID          uint64     `json:"id"`
	SenderID    uint64     `json:"sender_id"`
	ReceiverID  uint64     `json:"receiver_id"`
	Content     string     `json:"content"`
	MessageType string     `json:"message_type"`
	FileURL     string     `json:"file_url,omitempty"`
	FileName    string     `json:"file_name,omitempty"`
	FileSize    int64      `json:"file_size,omitempty"`
	Duration    int        `json:"duration,omitempty"`
	SentAt      time.Time  `json:"sent_at"`
	IsRead      bool       `json:"is_read"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	Reaction    *string    `json:"reaction,omitempty"`
}

func NewMessage(m *db.Message) Message {
	return Message{
		ID:          m.ID,
		SenderID:    m.SenderID,
		ReceiverID:  m.ReceiverID,
		Content:     m.Content,
		MessageType: m.MessageType,
		FileURL:     m.FileURL,
		FileName:    m.FileName,
		FileSize:    m.FileSize,
		Duration:    m.Duration,
		SentAt:      m.SentAt,
		IsRead:      m.IsRead,
		ReadAt:      m.ReadAt,
		Reaction:    m.Reaction,
	}
}

type Notification struct {
	ID            uint64    `json:"id"`
	Type          string    `json:"type"`
	Content       string    `json:"content"`
	RelatedUserID *uint64   `json:"related_user_id,omitempty"`
	IsRead        bool      `json:"is_read"`
	CreatedAt     time.Time `json:"created_at"`
}

func NewNotification(n *db.Notification) Notification {
	return Notification{
		ID:            n.ID,
		Type:          n.Type,
		Content:       n.Content,
		RelatedUserID: n.RelatedUserID,
		IsRead:        n.IsRead,
		CreatedAt:     n.CreatedAt,
	}
}
