// Package events fans out domain events (likes, matches, messages) to
// in-process subscribers or to NATS.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Event names. NATS subjects are "<prefix>.<name>".
const (
	LikeCreated    = "like.created"
	MatchCreated   = "match.created"
	MessageCreated = "message.created"
)

// Bus publishes JSON encoded events and delivers them to subscribers.
type Bus interface {
	Publish(ctx context.Context, name string, payload any) error
	Subscribe(name string, handler func(data []byte)) (unsubscribe func(), err error)
	Close()
}

type LikeEvent struct {
	LikerID   uint64    `json:"liker_id"`
	LikedID   uint64    `json:"liked_id"`
	Timestamp time.Time `json:"timestamp"`
}

type MatchEvent struct {
	MatchID   uint64    `json:"match_id"`
	User1ID   uint64    `json:"user1_id"`
	User2ID   uint64    `json:"user2_id"`
	Timestamp time.Time `json:"timestamp"`
}

type MessageEvent struct {
	MessageID   uint64    `json:"message_id"`
	SenderID    uint64    `json:"sender_id"`
	ReceiverID  uint64    `json:"receiver_id"`
	MessageType string    `json:"message_type"`
	Timestamp   time.Time `json:"timestamp"`
}

// Local is an in-process Bus. Handlers run synchronously on the publisher's goroutine.
type Local struct {
	mu       sync.RWMutex
	handlers map[string]map[int]func([]byte)
	nextID   int
}

func NewLocal() *Local {
	return &Local{handlers: make(map[string]map[int]func([]byte))}
}

func (l *Local) Publish(_ context.Context, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	l.mu.RLock()
	hs := make([]func([]byte), 0, len(l.handlers[name]))
	for _, h := range l.handlers[name] {
		hs = append(hs, h)
	}
	l.mu.RUnlock()

	for _, h := range hs {
		h(data)
	}
	return nil
}

func (l *Local) Subscribe(name string, handler func([]byte)) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.handlers[name] == nil {
		l.handlers[name] = make(map[int]func([]byte))
	}
	id := l.nextID
	l.nextID++
	l.handlers[name][id] = handler

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.handlers[name], id)
	}, nil
}

func (l *Local) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = make(map[string]map[int]func([]byte))
}
