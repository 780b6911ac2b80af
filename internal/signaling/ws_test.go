package signaling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OfomiMatthew/tech-buddy/internal/auth"
	"github.com/OfomiMatthew/tech-buddy/internal/logger"
)

func startSocketServer(t *testing.T) (*Relay, *auth.Manager, string) {
	t.Helper()
	tokens := auth.NewManager("test-secret", time.Hour)
	relay := newTestRelay()
	resolve := func(_ context.Context, id uint64) (Identity, error) {
		names := map[uint64]string{1: "alice", 2: "bob"}
		return Identity{ID: id, Username: names[id]}, nil
	}
	srv := httptest.NewServer(NewHandler(relay, tokens, resolve, []string{"*"}, logger.Discard()))
	t.Cleanup(srv.Close)
	return relay, tokens, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, relay *Relay, tokens *auth.Manager, url string, userID uint64, username string) *websocket.Conn {
	t.Helper()
	tok, err := tokens.GenerateToken(userID, username)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token="+tok, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return relay.Registry().Online(userID) }, time.Second, 5*time.Millisecond)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestSocketRejectsMissingToken(t *testing.T) {
	_, _, url := startSocketServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSocketCallRoundTrip(t *testing.T) {
	relay, tokens, url := startSocketServer(t)
	alice := dial(t, relay, tokens, url, 1, "alice")
	bob := dial(t, relay, tokens, url, 2, "bob")

	// receiver id as a string is accepted too
	require.NoError(t, alice.WriteJSON(map[string]any{
		"event": "initiate_call",
		"data":  map[string]any{"receiver_id": "2", "call_type": "video"},
	}))
	f := readFrame(t, bob)
	assert.Equal(t, EventIncomingCall, f.Event)
	var call IncomingCall
	require.NoError(t, json.Unmarshal(f.Data, &call))
	assert.Equal(t, uint64(1), call.CallerID)
	assert.Equal(t, "alice", call.CallerUsername)
	assert.Equal(t, "video", call.CallType)

	require.NoError(t, bob.WriteJSON(map[string]any{
		"event": "accept_call",
		"data":  map[string]any{"caller_id": 1},
	}))
	f = readFrame(t, alice)
	assert.Equal(t, EventCallAccepted, f.Event)
	assert.JSONEq(t, `{"accepter_id":2,"accepter_username":"bob"}`, string(f.Data))

	require.NoError(t, alice.WriteJSON(map[string]any{
		"event": "webrtc_offer",
		"data":  map[string]any{"receiver_id": 2, "offer": map[string]any{"type": "offer", "sdp": "v=0\r\n"}},
	}))
	f = readFrame(t, bob)
	assert.Equal(t, EventOffer, f.Event)
	assert.JSONEq(t, `{"sender_id":1,"offer":{"type":"offer","sdp":"v=0\r\n"}}`, string(f.Data))

	// garbage is ignored and the socket stays usable
	require.NoError(t, bob.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, bob.WriteJSON(map[string]any{
		"event": "end_call",
		"data":  map[string]any{"other_user_id": 1},
	}))
	f = readFrame(t, alice)
	assert.Equal(t, EventCallEnded, f.Event)
	assert.JSONEq(t, `{"ended_by":2}`, string(f.Data))
}

func TestSocketDisconnectUnregisters(t *testing.T) {
	relay, tokens, url := startSocketServer(t)
	alice := dial(t, relay, tokens, url, 1, "alice")

	require.NoError(t, alice.Close())
	require.Eventually(t, func() bool { return !relay.Registry().Online(1) }, time.Second, 5*time.Millisecond)
}

func TestSocketReconnectClosesOldSocket(t *testing.T) {
	relay, tokens, url := startSocketServer(t)
	old := dial(t, relay, tokens, url, 1, "alice")
	fresh := dial(t, relay, tokens, url, 1, "alice")
	bob := dial(t, relay, tokens, url, 2, "bob")

	require.NoError(t, old.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := old.ReadMessage()
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "timeout", "old socket is closed by the server")
	assert.True(t, relay.Registry().Online(1))

	require.NoError(t, bob.WriteJSON(map[string]any{
		"event": "initiate_call",
		"data":  map[string]any{"receiver_id": 1, "call_type": "audio"},
	}))
	f := readFrame(t, fresh)
	assert.Equal(t, EventIncomingCall, f.Event)
}
