package signaling

import (
	"encoding/json"
	"log/slog"
)

// Event names emitted to clients.
const (
	EventIncomingCall = "incoming_call"
	EventCallAccepted = "call_accepted"
	EventCallRejected = "call_rejected"
	EventCallEnded    = "call_ended"
	EventOffer        = "webrtc_offer"
	EventAnswer       = "webrtc_answer"
	EventICECandidate = "webrtc_ice_candidate"
	EventNewMatch     = "new_match"
	EventNewMessage   = "new_message"
	EventNewLike      = "new_like"
)

// Identity is the authenticated user acting on a socket. ID 0 means unauthenticated.
type Identity struct {
	ID       uint64
	Username string
	Photo    string
}

type IncomingCall struct {
	CallerID       uint64  `json:"caller_id"`
	CallerUsername string  `json:"caller_username"`
	CallerPhoto    *string `json:"caller_photo"`
	CallType       string  `json:"call_type"`
}

type CallAccepted struct {
	AccepterID       uint64 `json:"accepter_id"`
	AccepterUsername string `json:"accepter_username"`
}

type CallRejected struct {
	RejecterID uint64 `json:"rejecter_id"`
}

type CallEnded struct {
	EndedBy uint64 `json:"ended_by"`
}

type Offer struct {
	SenderID uint64          `json:"sender_id"`
	Offer    json.RawMessage `json:"offer"`
}

type Answer struct {
	SenderID uint64          `json:"sender_id"`
	Answer   json.RawMessage `json:"answer"`
}

type ICECandidate struct {
	SenderID  uint64          `json:"sender_id"`
	Candidate json.RawMessage `json:"candidate"`
}

// Relay forwards call signaling between connected users. It keeps no per-call
// state: every operation is a single registry lookup followed by one emit.
//
// Every operation is a no-op returning false when the acting identity is
// unauthenticated or the target has no live connection. Nothing is queued
// or retried.
type Relay struct {
	registry *Registry
	log      *slog.Logger
}

func NewRelay(registry *Registry, log *slog.Logger) *Relay {
	return &Relay{registry: registry, log: log}
}

func (r *Relay) Registry() *Registry { return r.registry }

// InitiateCall rings calleeID. callType is forwarded as given ("voice" or "video").
//
// Example:
//
//	relay.InitiateCall(Identity{ID: 5, Username: "erin"}, 9, "video")
//	// callee 9 receives incoming_call {caller_id: 5, call_type: "video"}
func (r *Relay) InitiateCall(caller Identity, calleeID uint64, callType string) bool {
	var photo *string
	if caller.Photo != "" {
		photo = &caller.Photo
	}
	return r.send(caller, calleeID, EventIncomingCall, IncomingCall{
		CallerID:       caller.ID,
		CallerUsername: caller.Username,
		CallerPhoto:    photo,
		CallType:       callType,
	})
}

func (r *Relay) AcceptCall(accepter Identity, callerID uint64) bool {
	return r.send(accepter, callerID, EventCallAccepted, CallAccepted{
		AccepterID:       accepter.ID,
		AccepterUsername: accepter.Username,
	})
}

func (r *Relay) RejectCall(rejecter Identity, callerID uint64) bool {
	return r.send(rejecter, callerID, EventCallRejected, CallRejected{RejecterID: rejecter.ID})
}

// EndCall may be sent by either party of a connected call.
func (r *Relay) EndCall(ender Identity, otherID uint64) bool {
	return r.send(ender, otherID, EventCallEnded, CallEnded{EndedBy: ender.ID})
}

// RelayOffer forwards the session description verbatim.
func (r *Relay) RelayOffer(sender Identity, receiverID uint64, offer json.RawMessage) bool {
	return r.send(sender, receiverID, EventOffer, Offer{SenderID: sender.ID, Offer: rawOrNull(offer)})
}

func (r *Relay) RelayAnswer(sender Identity, receiverID uint64, answer json.RawMessage) bool {
	return r.send(sender, receiverID, EventAnswer, Answer{SenderID: sender.ID, Answer: rawOrNull(answer)})
}

func (r *Relay) RelayICECandidate(sender Identity, receiverID uint64, candidate json.RawMessage) bool {
	return r.send(sender, receiverID, EventICECandidate, ICECandidate{SenderID: sender.ID, Candidate: rawOrNull(candidate)})
}

// Notify pushes a server-side event to a user if connected.
func (r *Relay) Notify(userID uint64, event string, payload any) bool {
	conn, ok := r.registry.Lookup(userID)
	if !ok {
		return false
	}
	if err := conn.Emit(event, payload); err != nil {
		r.log.Warn("push failed", "event", event, "user", userID, "err", err)
		return false
	}
	return true
}

func (r *Relay) send(from Identity, to uint64, event string, payload any) bool {
	if from.ID == 0 {
		r.log.Debug("signal from unauthenticated socket dropped", "event", event)
		return false
	}
	conn, ok := r.registry.Lookup(to)
	if !ok {
		r.log.Debug("signal target offline", "event", event, "from", from.ID, "to", to)
		return false
	}
	if err := conn.Emit(event, payload); err != nil {
		r.log.Warn("signal emit failed", "event", event, "from", from.ID, "to", to, "err", err)
		return false
	}
	return true
}

func rawOrNull(m json.RawMessage) json.RawMessage {
	if len(m) == 0 {
		return json.RawMessage("null")
	}
	return m
}
