package ai_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OfomiMatthew/tech-buddy/internal/service/ai"
	"github.com/OfomiMatthew/tech-buddy/internal/testutil"
)

func setupAPI(t *testing.T, c ai.Completer) *testutil.API {
	t.Helper()
	svc, _ := setup(t, c)
	return testutil.NewAPI(t, ai.NewHandler(svc))
}

func TestAIRoutesRequireMatchOverHTTP(t *testing.T) {
	completer := &fakeCompleter{reply: "1. Anything at all here"}
	api := setupAPI(t, completer)

	for _, path := range []string{
		"/api/ai/conversation-starters/3",
		"/api/ai/compatibility/3",
		"/api/ai/date-ideas/3",
	} {
		t.Run(path, func(t *testing.T) {
			code, body := api.Do(http.MethodGet, path, alice, nil)
			assert.Equal(t, http.StatusForbidden, code)
			assert.Equal(t, true, body["error"])
		})
	}

	code, _ := api.Do(http.MethodGet, "/api/ai/compatibility/999", alice, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = api.Do(http.MethodGet, "/api/ai/date-ideas/x", alice, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = api.Do(http.MethodGet, "/api/ai/conversation-starters/2", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Zero(t, completer.calls())
}

func TestAIRoutesOverHTTP(t *testing.T) {
	completer := &fakeCompleter{reply: "1. What are you shipping this week?\n2. Any favourite Go libraries lately?\n3. Which conference should I go to?"}
	api := setupAPI(t, completer)

	code, body := api.Do(http.MethodGet, "/api/ai/conversation-starters/2", alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["starters"], 3)

	completer.reply = `{"compatibility_score": 82, "strengths": ["Go"], "overall_summary": "Good fit"}`
	code, body = api.Do(http.MethodGet, "/api/ai/compatibility/2", alice, nil)
	require.Equal(t, http.StatusOK, code)
	analysis := body["analysis"].(map[string]any)
	assert.Equal(t, float64(82), analysis["compatibility_score"])

	completer.reply = "**Hackathon**: Build something over a weekend."
	code, body = api.Do(http.MethodGet, "/api/ai/date-ideas/2", alice, nil)
	require.Equal(t, http.StatusOK, code)
	ideas := body["ideas"].([]any)
	require.Len(t, ideas, 1)
	assert.Equal(t, "Hackathon", ideas[0].(map[string]any)["title"])

	completer.reply = "Try a warmer opener."
	code, body = api.Do(http.MethodPost, "/api/ai/message-coach", alice, map[string]string{"message": "hey there, love your github"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Try a warmer opener.", body["coaching"])
	code, _ = api.Do(http.MethodPost, "/api/ai/message-coach", alice, map[string]string{"message": " "})
	assert.Equal(t, http.StatusBadRequest, code)

	completer.reply = "Backend engineer who loves Go."
	code, body = api.Do(http.MethodPost, "/api/ai/enhance-bio", alice, map[string]string{"bio": "I write Go"})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body["suggestions"], "Go")

	code, body = api.Do(http.MethodGet, "/api/ai/profile-insights", alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["insights"])
	assert.NotNil(t, body["stats"])
}

func TestAIFailuresReturnErrorPayloads(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("upstream down")}
	api := setupAPI(t, completer)

	code, body := api.Do(http.MethodGet, "/api/ai/compatibility/2", alice, nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, true, body["error"])
	assert.NotEmpty(t, body["message"])

	code, body = api.Do(http.MethodPost, "/api/ai/enhance-bio", alice, map[string]string{"bio": "I write Go"})
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, true, body["error"])

	// starters and date ideas degrade to fallbacks instead of failing
	code, body = api.Do(http.MethodGet, "/api/ai/conversation-starters/2", alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["starters"], 3)

	// moderation fails open
	code, body = api.Do(http.MethodPost, "/api/ai/moderate", alice, map[string]string{"content": "hello"})
	require.Equal(t, http.StatusOK, code)
	verdict := body["moderation"].(map[string]any)
	assert.Equal(t, true, verdict["is_safe"])

	code, body = api.Do(http.MethodPost, "/api/ai/moderate", alice, map[string]string{"content": "  "})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "no content provided", body["message"])
}
