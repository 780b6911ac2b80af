package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/OfomiMatthew/tech-buddy/internal/auth"
	"github.com/OfomiMatthew/tech-buddy/internal/config"
	"github.com/OfomiMatthew/tech-buddy/internal/logger"
	"github.com/OfomiMatthew/tech-buddy/internal/server"
)

// TokenSecret signs tokens issued by API. Services that issue their own
// tokens in tests should use it too so the router accepts them.
const TokenSecret = "test-secret"

// API drives the real HTTP router in process.
type API struct {
	t       *testing.T
	Handler http.Handler
	Tokens  *auth.Manager
}

// NewAPI mounts registrars on server.NewRouter behind the JWT middleware.
func NewAPI(t *testing.T, registrars ...server.RouteRegistrar) *API {
	t.Helper()
	tokens := auth.NewManager(TokenSecret, time.Hour)
	h := server.NewRouter(config.New(), logger.Discard(), server.HTTPDeps{Auth: tokens.Middleware}, registrars...)
	return &API{t: t, Handler: h, Tokens: tokens}
}

// Do sends body as JSON on behalf of userID and decodes the JSON reply.
// userID 0 sends no token.
func (a *API) Do(method, path string, userID uint64, body any) (int, map[string]any) {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.Serve(req, userID)
}

// Serve runs req on behalf of userID and decodes the JSON reply. A body
// that is not a JSON object decodes to an empty map.
func (a *API) Serve(req *http.Request, userID uint64) (int, map[string]any) {
	a.t.Helper()
	if userID != 0 {
		tok, err := a.Tokens.GenerateToken(userID, "")
		require.NoError(a.t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, req)

	out := map[string]any{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec.Code, out
}
