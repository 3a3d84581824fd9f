// Package model defines the code-generating model contract: a stateless
// text-in/text-out completion interface invoked with a two-message prompt
// and retried on transport errors. The default implementation posts to an
// OpenAI-compatible chat endpoint over plain net/http, keeping the model
// backend swappable.
package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/FSoft-AI4Code/swesynth-go/internal/logging"
)

// Request is the two-message prompt the core sends: a system preamble and
// a user template containing the entrypoint name, the full file after
// body emptying, and the signature hint.
type Request struct {
	System string
	User   string
}

// Client is the capability the mutation strategies invoke to fill in a
// mutated function body. Implementations are expected to be stateless and
// safe for concurrent use — the orchestrator bounds concurrent calls with
// a semaphore, not the client itself.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// HTTPClient is the default Client: a chat-completions-shaped POST to an
// OpenAI-compatible endpoint, retried as Complete describes.
type HTTPClient struct {
	Endpoint   string
	APIKey     string
	ModelID    string
	MaxRetries int
	Timeout    time.Duration
	httpClient *http.Client
}

// NewHTTPClient constructs an HTTPClient from the effective config values.
func NewHTTPClient(endpoint, apiKey, modelID string, maxRetries int, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		Endpoint:   endpoint,
		APIKey:     apiKey,
		ModelID:    modelID,
		MaxRetries: maxRetries,
		Timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete posts req as a two-message chat completion and returns the
// first choice's content. Any failed attempt (transport error, non-2xx
// status, or unusable response) is retried with a short linear backoff;
// MaxRetries is the total number of attempts (at least one). Final failure
// is the caller's cue to skip the candidate.
func (c *HTTPClient) Complete(ctx context.Context, req Request) (string, error) {
	log := logging.For(logging.Model).Sugar()

	body, err := json.Marshal(chatRequest{
		Model: c.ModelID,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
	})
	if err != nil {
		return "", fmt.Errorf("model: marshal request: %w", err)
	}

	var lastErr error
	attempts := c.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
			log.Warnw("retrying model call", "attempt", attempt, "lastErr", lastErr)
		}

		out, err := c.doOnce(ctx, body)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("model: all %d attempts failed: %w", attempts, lastErr)
}

func (c *HTTPClient) doOnce(ctx context.Context, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("model: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("model: transport: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("model: read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("model: server error %d: %s", resp.StatusCode, string(data))
	}
	if resp.StatusCode >= 400 {
		// Client errors (bad request, auth) are not transport-retryable,
		// but the retry loop still bounds them by MaxRetries.
		return "", fmt.Errorf("model: client error %d: %s", resp.StatusCode, string(data))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("model: parse response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("model: api error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("model: response had no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
