package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/OfomiMatthew/tech-buddy/internal/config"
)

// ErrNotConfigured is returned by the client when no API key is set.
var ErrNotConfigured = errors.New("ai service not configured")

// Prompt is one chat completion request.
type Prompt struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Completer sends a prompt to a language model and returns its free-form reply.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// GroqClient talks to an OpenAI-compatible chat completions endpoint.
type GroqClient struct {
	apiKey string
	url    string
	model  string
	http   *http.Client
}

func NewGroqClient(cfg *config.Config) *GroqClient {
	return &GroqClient{
		apiKey: cfg.AI.APIKey,
		url:    cfg.AI.APIURL,
		model:  cfg.AI.Model,
		http:   &http.Client{Timeout: cfg.AI.Timeout},
	}
}

// Complete posts p and returns choices[0].message.content.
//
// Behavior:
//   - Missing API key returns ErrNotConfigured without a network call.
//   - Non-2xx responses and empty choice lists are errors.
func (c *GroqClient) Complete(ctx context.Context, p Prompt) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: p.System},
			{Role: "user", Content: p.User},
		},
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("ai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ai request: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ai response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("ai response: no choices")
	}
	return out.Choices[0].Message.Content, nil
}
