package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/OfomiMatthew/tech-buddy/internal/auth"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 64 * 1024 // SDP offers can be a few KiB
	sendBufferSize = 64
)

var (
	errClosed   = errors.New("connection closed")
	errSlowPeer = errors.New("send buffer full")
)

// Frame is the JSON envelope on the socket in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// userRef accepts a user id sent either as a JSON number or a string.
type userRef uint64

func (u *userRef) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*u = 0
		return nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return err
	}
	*u = userRef(n)
	return nil
}

// TokenValidator resolves a bearer token to claims.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// IdentityResolver loads the display data of a connecting user.
type IdentityResolver func(ctx context.Context, userID uint64) (Identity, error)

// Handler upgrades /ws?token=<jwt> requests and pumps frames between the
// socket and the relay.
type Handler struct {
	relay    *Relay
	tokens   TokenValidator
	resolve  IdentityResolver
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewHandler builds the socket endpoint. allowedOrigins containing "*" accepts any origin.
func NewHandler(relay *Relay, tokens TokenValidator, resolve IdentityResolver, allowedOrigins []string, log *slog.Logger) *Handler {
	return &Handler{
		relay:   relay,
		tokens:  tokens,
		resolve: resolve,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := h.tokens.ValidateToken(auth.TokenFromRequest(r))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	id := Identity{ID: claims.UserID, Username: claims.Username}
	if h.resolve != nil {
		resolved, err := h.resolve(r.Context(), claims.UserID)
		if err != nil {
			h.log.Warn("socket identity lookup failed", "user", claims.UserID, "err", err)
			http.Error(w, "unknown user", http.StatusUnauthorized)
			return
		}
		id = resolved
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already wrote the error response
		return
	}

	c := newClient(ws, id, h.relay, h.log)
	if prev, ok := h.relay.registry.Register(id.ID, c).(*client); ok {
		// a newer socket for the same user wins
		prev.close()
	}
	h.log.Info("socket connected", "user", id.ID, "online", h.relay.registry.Count())

	go c.writePump()
	c.readPump()

	h.relay.registry.Unregister(id.ID, c)
	h.log.Info("socket disconnected", "user", id.ID, "online", h.relay.registry.Count())
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// client is one socket. It implements Conn.
type client struct {
	conn     *websocket.Conn
	identity Identity
	relay    *Relay
	log      *slog.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, id Identity, relay *Relay, log *slog.Logger) *client {
	return &client{
		conn:     conn,
		identity: id,
		relay:    relay,
		log:      log.With("user", id.ID),
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
	}
}

// Emit queues an event without blocking. A peer that stops reading is disconnected.
func (c *client) Emit(event string, payload any) error {
	b, err := json.Marshal(outFrame{Event: event, Data: payload})
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return errClosed
	default:
	}
	select {
	case c.send <- b:
		return nil
	case <-c.done:
		return errClosed
	default:
		c.close()
		return errSlowPeer
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *client) readPump() {
	defer c.close()
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("socket read failed", "err", err)
			}
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.log.Debug("malformed frame", "err", err)
			continue
		}
		c.dispatch(f)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}

// dispatch maps an inbound frame to a relay operation. Malformed frames are ignored.
func (c *client) dispatch(f Frame) {
	var in struct {
		ReceiverID  userRef         `json:"receiver_id"`
		CallerID    userRef         `json:"caller_id"`
		OtherUserID userRef         `json:"other_user_id"`
		CallType    string          `json:"call_type"`
		Offer       json.RawMessage `json:"offer"`
		Answer      json.RawMessage `json:"answer"`
		Candidate   json.RawMessage `json:"candidate"`
	}
	if len(f.Data) > 0 {
		if err := json.Unmarshal(f.Data, &in); err != nil {
			c.log.Debug("malformed frame", "event", f.Event, "err", err)
			return
		}
	}

	switch f.Event {
	case "initiate_call":
		c.relay.InitiateCall(c.identity, uint64(in.ReceiverID), in.CallType)
	case "accept_call":
		c.relay.AcceptCall(c.identity, uint64(in.CallerID))
	case "reject_call":
		c.relay.RejectCall(c.identity, uint64(in.CallerID))
	case "end_call":
		c.relay.EndCall(c.identity, uint64(in.OtherUserID))
	case EventOffer:
		c.relay.RelayOffer(c.identity, uint64(in.ReceiverID), in.Offer)
	case EventAnswer:
		c.relay.RelayAnswer(c.identity, uint64(in.ReceiverID), in.Answer)
	case EventICECandidate:
		c.relay.RelayICECandidate(c.identity, uint64(in.ReceiverID), in.Candidate)
	default:
		c.log.Debug("unknown socket event", "event", f.Event)
	}
}
