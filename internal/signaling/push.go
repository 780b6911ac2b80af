package signaling

import (
	"encoding/json"

	"github.com/OfomiMatthew/tech-buddy/internal/events"
)

type matchPush struct {
	MatchID uint64 `json:"match_id"`
	UserID  uint64 `json:"user_id"`
}

type messagePush struct {
	MessageID   uint64 `json:"message_id"`
	SenderID    uint64 `json:"sender_id"`
	MessageType string `json:"message_type"`
}

type likePush struct {
	LikerID uint64 `json:"liker_id"`
}

// Subscribe forwards domain events from bus to the connected users they concern.
// The returned func removes every subscription.
func (r *Relay) Subscribe(bus events.Bus) (func(), error) {
	handlers := map[string]func([]byte){
		events.MatchCreated: func(data []byte) {
			var e events.MatchEvent
			if r.decode(events.MatchCreated, data, &e) {
				r.Notify(e.User1ID, EventNewMatch, matchPush{MatchID: e.MatchID, UserID: e.User2ID})
				r.Notify(e.User2ID, EventNewMatch, matchPush{MatchID: e.MatchID, UserID: e.User1ID})
			}
		},
		events.MessageCreated: func(data []byte) {
			var e events.MessageEvent
			if r.decode(events.MessageCreated, data, &e) {
				r.Notify(e.ReceiverID, EventNewMessage, messagePush{
					MessageID: e.MessageID, SenderID: e.SenderID, MessageType: e.MessageType,
				})
			}
		},
		events.LikeCreated: func(data []byte) {
			var e events.LikeEvent
			if r.decode(events.LikeCreated, data, &e) {
				r.Notify(e.LikedID, EventNewLike, likePush{LikerID: e.LikerID})
			}
		},
	}

	var unsubs []func()
	unsubscribe := func() {
		for _, u := range unsubs {
			u()
		}
	}
	for name, h := range handlers {
		u, err := bus.Subscribe(name, h)
		if err != nil {
			unsubscribe()
			return nil, err
		}
		unsubs = append(unsubs, u)
	}
	return unsubscribe, nil
}

func (r *Relay) decode(name string, data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		r.log.Warn("bad event payload", "event", name, "err", err)
		return false
	}
	return true
}
