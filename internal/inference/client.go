package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"tariffbench/internal/config"
)

// Completer is the structured-inference capability the pipeline depends on.
// Implementations may return malformed, partial, or unparseable text; callers
// must validate and degrade.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type Client struct {
	cfg        config.Config
	httpClient *http.Client
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.OpenAITimeoutMs) * time.Millisecond},
	}
}

// Complete issues one chat completion with temperature pinned to 0 and returns
// the first choice's content verbatim.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if strings.TrimSpace(c.cfg.OpenAIAPIKey) == "" {
		return "", errors.New("missing OPENAI_API_KEY")
	}

	payload := chatRequest{
		Model: c.cfg.OpenAIModel,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(c.cfg.OpenAIBaseURL, "/") + "/chat/completions"

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.OpenAIAPIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		raw, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < 3 {
				backoff := time.Duration(500*(1<<(attempt-1))+rand.Intn(200)) * time.Millisecond
				time.Sleep(backoff)
				lastErr = fmt.Errorf("openai status %d", resp.StatusCode)
				continue
			}
			return "", fmt.Errorf("openai api error: status=%d body=%s", resp.StatusCode, truncate(string(raw), 500))
		}

		var parsed chatResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return "", fmt.Errorf("decode openai response: %w", err)
		}
		if len(parsed.Choices) == 0 {
			return "", errors.New("openai response has no choices")
		}
		return parsed.Choices[0].Message.Content, nil
	}

	if lastErr == nil {
		lastErr = errors.New("openai request failed")
	}
	return "", lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
