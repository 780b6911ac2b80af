package match_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OfomiMatthew/tech-buddy/internal/service/match"
	"github.com/OfomiMatthew/tech-buddy/internal/testutil"
)

func setupAPI(t *testing.T) *testutil.API {
	t.Helper()
	engine, _ := setup(t)
	return testutil.NewAPI(t, match.NewHandler(engine))
}

func TestLikeOverHTTP(t *testing.T) {
	api := setupAPI(t)

	code, _ := api.Do(http.MethodPost, "/api/users/2/like", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := api.Do(http.MethodPost, "/api/users/2/like", alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["matched"])
	assert.Nil(t, body["match_id"])

	code, body = api.Do(http.MethodPost, "/api/users/1/like", bob, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["matched"])
	assert.Equal(t, "It's a match!", body["message"])
	assert.NotNil(t, body["match_id"])

	tests := []struct {
		name string
		path string
		code int
	}{
		{"repeat", "/api/users/2/like", http.StatusConflict},
		{"self", "/api/users/1/like", http.StatusBadRequest},
		{"bad id", "/api/users/abc/like", http.StatusBadRequest},
		{"unknown", "/api/users/999/like", http.StatusNotFound},
		{"inactive", "/api/users/5/like", http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := api.Do(http.MethodPost, tt.path, alice, nil)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, true, body["error"])
		})
	}
}

func TestLikedYouAndMatchesOverHTTP(t *testing.T) {
	api := setupAPI(t)

	for _, liker := range []uint64{bob, carol} {
		code, _ := api.Do(http.MethodPost, "/api/users/1/like", liker, nil)
		require.Equal(t, http.StatusOK, code)
	}
	code, _ := api.Do(http.MethodPost, "/api/users/2/like", alice, nil)
	require.Equal(t, http.StatusOK, code)

	code, body := api.Do(http.MethodGet, "/api/likes/received?limit=1", alice, nil)
	require.Equal(t, http.StatusOK, code)
	likers := body["likers"].([]any)
	require.Len(t, likers, 1)
	first := likers[0].(map[string]any)
	assert.NotNil(t, first["profile"])
	token, ok := body["next_token"].(string)
	require.True(t, ok)

	code, body = api.Do(http.MethodGet, "/api/likes/received?limit=1&token="+token, alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["likers"].([]any), 1)
	assert.Nil(t, body["next_token"])

	code, _ = api.Do(http.MethodGet, "/api/likes/received?token=%25%25", alice, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = api.Do(http.MethodGet, "/api/likes/received/new", alice, nil)
	require.Equal(t, http.StatusOK, code)
	fresh := body["likers"].([]any)
	require.Len(t, fresh, 1)
	assert.Equal(t, float64(carol), fresh[0].(map[string]any)["user_id"])

	code, body = api.Do(http.MethodGet, "/api/likes/received/count", alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), body["count"])

	code, body = api.Do(http.MethodGet, "/api/matches", alice, nil)
	require.Equal(t, http.StatusOK, code)
	matches := body["matches"].([]any)
	require.Len(t, matches, 1)
	user := matches[0].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, "bob", user["username"])
}

func TestDiscoverOverHTTP(t *testing.T) {
	api := setupAPI(t)

	code, body := api.Do(http.MethodGet, "/api/discover?limit=2", alice, nil)
	require.Equal(t, http.StatusOK, code)
	users := body["users"].([]any)
	require.Len(t, users, 2)
	assert.Equal(t, "bob", users[0].(map[string]any)["username"])
}
