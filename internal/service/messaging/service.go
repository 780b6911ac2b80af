package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/OfomiMatthew/tech-buddy/internal/app"
	"github.com/OfomiMatthew/tech-buddy/internal/cache"
	"github.com/OfomiMatthew/tech-buddy/internal/db"
	svcErr "github.com/OfomiMatthew/tech-buddy/internal/errors"
	"github.com/OfomiMatthew/tech-buddy/internal/events"
	"github.com/OfomiMatthew/tech-buddy/internal/repository"
	"github.com/OfomiMatthew/tech-buddy/internal/storage"
	"github.com/OfomiMatthew/tech-buddy/internal/utils/pagination"
)

const (
	maxReactionRunes = 8
	maxContentRunes  = 5000
	maxPageSize      = 200
)

// Moderator screens message text before it is stored.
// Implementations fail open: an unavailable backend must return allowed.
type Moderator interface {
	Allow(ctx context.Context, userID uint64, contentType, content string) (allowed bool, reason string)
}

// Attachment is an uploaded file sent along with a message.
type Attachment struct {
	Name        string
	Size        int64
	ContentType string
	Duration    int // seconds, voice and video
	Body        io.Reader
}

type SendInput struct {
	SenderID   uint64
	ReceiverID uint64
	Content    string
	Attachment *Attachment
}

// Conversation is one entry of the inbox.
type Conversation struct {
	User        db.User
	MatchedAt   time.Time
	LastMessage *db.Message
	UnreadCount int64
}

// lastActivity is the newer of the last message and the match itself.
func (c Conversation) lastActivity() time.Time {
	if c.LastMessage != nil && c.LastMessage.SentAt.After(c.MatchedAt) {
		return c.LastMessage.SentAt
	}
	return c.MatchedAt
}

// Service is the conversation log between matched users.
type Service struct {
	appCtx        *app.AppContext
	users         *repository.UserRepository
	matches       *repository.MatchRepository
	messages      *repository.MessageRepository
	notifications *repository.NotificationRepository
	moderator     Moderator
	now           func() time.Time
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:        appCtx,
		users:         repository.NewUserRepository(appCtx.DB),
		matches:       repository.NewMatchRepository(appCtx.DB),
		messages:      repository.NewMessageRepository(appCtx.DB),
		notifications: repository.NewNotificationRepository(appCtx.DB),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SetModerator installs the text screening hook. nil disables screening.
func (s *Service) SetModerator(m Moderator) { s.moderator = m }

// Send appends a message from sender to receiver.
//
// Behavior:
//   - The pair must be matched, otherwise PermissionDenied and nothing is written.
//   - Blank content without an attachment is InvalidArgument.
//   - The attachment extension decides the message type; unknown
//     extensions are InvalidArgument.
//   - The message row and the receiver's new_message notification are
//     written in one transaction, then message.created is published.
//
// Example:
//
//	msg, err := svc.Send(ctx, SendInput{SenderID: 1, ReceiverID: 2, Content: "hi"})
func (s *Service) Send(ctx context.Context, in SendInput) (*db.Message, error) {
	log := s.appCtx.Logger.With("sender", in.SenderID, "receiver", in.ReceiverID)
	log.Debug("Send called", "has_attachment", in.Attachment != nil)

	content := strings.TrimSpace(in.Content)
	if content == "" && in.Attachment == nil {
		return nil, svcErr.InvalidArgument("message must have content or an attachment")
	}
	if utf8.RuneCountInString(content) > maxContentRunes {
		return nil, svcErr.InvalidArgument(fmt.Sprintf("message is longer than %d characters", maxContentRunes))
	}
	if in.SenderID == in.ReceiverID {
		return nil, svcErr.InvalidArgument("cannot message yourself")
	}

	if err := s.requireMatch(ctx, in.SenderID, in.ReceiverID); err != nil {
		return nil, err
	}

	msg := &db.Message{
		SenderID:    in.SenderID,
		ReceiverID:  in.ReceiverID,
		Content:     content,
		MessageType: db.MessageText,
	}

	var kind storage.Kind
	if in.Attachment != nil {
		var ok bool
		kind, ok = storage.Classify(in.Attachment.Name)
		if !ok {
			return nil, svcErr.InvalidArgument("file type not allowed")
		}
		if in.Attachment.Size > s.appCtx.Config.Storage.MaxUploadSize {
			return nil, svcErr.InvalidArgument("file too large")
		}
	}

	if content != "" && s.moderator != nil {
		if allowed, reason := s.moderator.Allow(ctx, in.SenderID, "message", content); !allowed {
			log.Info("message blocked by moderation", "reason", reason)
			return nil, svcErr.FailedPrecondition("message was blocked by moderation")
		}
	}

	if in.Attachment != nil {
		if s.appCtx.Storage == nil {
			return nil, svcErr.Unavailable("file storage is not configured")
		}
		key, err := s.appCtx.Storage.Save(ctx, kind.Folder, in.Attachment.Name, in.Attachment.Body, in.Attachment.Size, in.Attachment.ContentType)
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, svcErr.InvalidArgument("file too large")
		} else if err != nil {
			log.Error("attachment upload failed", "err", err)
			return nil, svcErr.Map(err)
		}
		url, err := s.appCtx.Storage.URL(ctx, key)
		if err != nil {
			return nil, svcErr.Map(err)
		}
		msg.MessageType = kind.MessageType
		msg.FileURL = url
		msg.FileName = in.Attachment.Name
		msg.FileSize = in.Attachment.Size
		if kind.MessageType == db.MessageVoice || kind.MessageType == db.MessageVideo {
			msg.Duration = in.Attachment.Duration
		}
	}

	sender, err := s.users.GetByID(ctx, in.SenderID)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.messages.WithTx(tx).Create(ctx, msg); err != nil {
			return err
		}
		return s.notifications.WithTx(tx).Create(ctx, []db.Notification{{
			UserID:        in.ReceiverID,
			Type:          db.NotificationNewMessage,
			Content:       fmt.Sprintf("New message from %s", sender.Username),
			RelatedUserID: &in.SenderID,
		}})
	})
	if err != nil {
		log.Error("message transaction failed", "err", err)
		return nil, svcErr.Map(err)
	}

	if s.appCtx.RedisCache != nil {
		if err := s.appCtx.RedisCache.IncrCounter(ctx, cache.KeyForUnreadNotifications(in.ReceiverID), 1); err != nil {
			log.Warn("unread counter increment failed", "err", err)
		}
	}
	if err := s.appCtx.Events.Publish(ctx, events.MessageCreated, events.MessageEvent{
		MessageID:   msg.ID,
		SenderID:    msg.SenderID,
		ReceiverID:  msg.ReceiverID,
		MessageType: msg.MessageType,
		Timestamp:   msg.SentAt,
	}); err != nil {
		log.Warn("publish failed", "event", events.MessageCreated, "err", err)
	}
	return msg, nil
}

// MarkRead marks every unread message from counterpart to reader as read.
// It returns how many messages changed; a second call returns 0.
func (s *Service) MarkRead(ctx context.Context, readerID, counterpartID uint64) (int64, error) {
	n, err := s.messages.MarkRead(ctx, readerID, counterpartID, s.now())
	if err != nil {
		return 0, svcErr.Map(err)
	}
	return n, nil
}

// React sets or clears (nil or empty) the reaction on a message.
// Only the sender and the receiver may react.
func (s *Service) React(ctx context.Context, messageID, userID uint64, reaction *string) (*db.Message, error) {
	msg, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != userID && msg.ReceiverID != userID {
		return nil, svcErr.PermissionDenied("not a participant of this message")
	}

	if reaction != nil {
		r := strings.TrimSpace(*reaction)
		if r == "" {
			reaction = nil
		} else if utf8.RuneCountInString(r) > maxReactionRunes {
			return nil, svcErr.InvalidArgument("reaction is too long")
		} else {
			reaction = &r
		}
	}

	if err := s.messages.SetReaction(ctx, messageID, reaction); err != nil {
		return nil, svcErr.Map(err)
	}
	msg.Reaction = reaction
	return msg, nil
}

// SoftDelete hides a message from the conversation. Only the sender may delete.
func (s *Service) SoftDelete(ctx context.Context, messageID, userID uint64) error {
	msg, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return svcErr.PermissionDenied("only the sender can delete a message")
	}
	if msg.IsDeleted {
		return nil
	}
	if err := s.messages.SoftDelete(ctx, messageID); err != nil {
		return svcErr.Map(err)
	}
	return nil
}

// Conversation pages through the visible messages between userID and otherID.
//
// Behavior:
//   - Requires a match.
//   - Deleted messages are skipped.
//   - The first page holds the newest messages; each page is oldest first.
func (s *Service) Conversation(ctx context.Context, userID, otherID uint64, token *string, limit int) ([]db.Message, *string, error) {
	if err := s.requireMatch(ctx, userID, otherID); err != nil {
		return nil, nil, err
	}
	limit = pagination.ClampLimit(limit, s.appCtx.Config.Paging.MessagesPerPage, maxPageSize)
	msgs, next, err := s.messages.Conversation(ctx, userID, otherID, token, limit)
	if errors.Is(err, pagination.ErrInvalidToken) {
		return nil, nil, svcErr.InvalidArgument("invalid pagination token")
	} else if err != nil {
		return nil, nil, svcErr.Map(err)
	}
	return msgs, next, nil
}

// ListConversations returns one entry per match, most recent activity first.
func (s *Service) ListConversations(ctx context.Context, userID uint64) ([]Conversation, error) {
	ms, err := s.matches.ListForUser(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	ids := make([]uint64, 0, len(ms))
	for _, m := range ms {
		ids = append(ids, m.Other(userID))
	}
	users, err := s.users.GetMany(ctx, ids)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	unread, err := s.messages.UnreadBySender(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	out := make([]Conversation, 0, len(ms))
	for _, m := range ms {
		other := m.Other(userID)
		u, ok := users[other]
		if !ok {
			continue
		}
		last, err := s.messages.LastVisible(ctx, userID, other)
		if err != nil {
			return nil, svcErr.Map(err)
		}
		out = append(out, Conversation{
			User:        u,
			MatchedAt:   m.MatchedAt,
			LastMessage: last,
			UnreadCount: unread[other],
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].lastActivity().After(out[j].lastActivity())
	})
	return out, nil
}

// GetMessage loads a message visible to userID.
func (s *Service) GetMessage(ctx context.Context, messageID, userID uint64) (*db.Message, error) {
	msg, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != userID && msg.ReceiverID != userID {
		return nil, svcErr.PermissionDenied("not a participant of this message")
	}
	return msg, nil
}

func (s *Service) requireMatch(ctx context.Context, a, b uint64) error {
	ok, err := s.matches.HasMatched(ctx, a, b)
	if err != nil {
		return svcErr.Map(err)
	}
	if !ok {
		return svcErr.PermissionDenied("you can only message your matches")
	}
	return nil
}

func (s *Service) loadMessage(ctx context.Context, id uint64) (*db.Message, error) {
	msg, err := s.messages.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.NotFound("message not found")
	} else if err != nil {
		return nil, svcErr.Map(err)
	}
	return msg, nil
}
