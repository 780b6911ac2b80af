package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OfomiMatthew/tech-buddy/internal/config"
)

func testClient(url, key string) *GroqClient {
	cfg := config.New()
	cfg.AI.APIURL = url
	cfg.AI.APIKey = key
	cfg.AI.Model = "test-model"
	cfg.AI.Timeout = 2 * time.Second
	return NewGroqClient(cfg)
}

func TestGroqClientRequestShape(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer k-123", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`))
	}))
	defer srv.Close()

	out, err := testClient(srv.URL, "k-123").Complete(context.Background(), Prompt{
		System: "sys", User: "usr", Temperature: 0.3, MaxTokens: 64,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, []chatMessage{{Role: "system", Content: "sys"}, {Role: "user", Content: "usr"}}, got.Messages)
	assert.Equal(t, 0.3, got.Temperature)
	assert.Equal(t, 64, got.MaxTokens)
}

func TestGroqClientErrors(t *testing.T) {
	_, err := testClient("http://127.0.0.1:1", "").Complete(context.Background(), Prompt{})
	assert.True(t, errors.Is(err, ErrNotConfigured))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()
	_, err = testClient(srv.URL, "k").Complete(context.Background(), Prompt{})
	assert.Error(t, err)

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer bad.Close()
	_, err = testClient(bad.URL, "k").Complete(context.Background(), Prompt{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
