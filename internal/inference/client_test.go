package inference

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"tariffbench/internal/config"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestCompleteRetriesThenSucceeds(t *testing.T) {
	attempt := 0

	cfg, _ := config.Load()
	cfg.OpenAIAPIKey = "test"
	cfg.OpenAIBaseURL = "https://example.test/v1"

	client := NewClient(cfg)
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.URL.Path != "/v1/chat/completions" {
				t.Fatalf("unexpected path %s", r.URL.Path)
			}
			var body struct {
				Temperature float64 `json:"temperature"`
				Messages    []struct {
					Role string `json:"role"`
				} `json:"messages"`
			}
			blob, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(blob, &body); err != nil {
				t.Fatal(err)
			}
			if body.Temperature != 0 {
				t.Fatalf("temperature=%v", body.Temperature)
			}
			if len(body.Messages) != 2 || body.Messages[0].Role != "system" {
				t.Fatalf("messages=%+v", body.Messages)
			}

			attempt++
			if attempt == 1 {
				return &http.Response{
					StatusCode: http.StatusServiceUnavailable,
					Body:       io.NopCloser(strings.NewReader(`{"error":"busy"}`)),
					Header:     make(http.Header),
				}, nil
			}
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(`{"choices":[{"message":{"content":"850110"}}]}`)),
				Header:     make(http.Header),
			}, nil
		}),
	}

	out, err := client.Complete(context.Background(), "sys", "user")
	if err != nil {
		t.Fatal(err)
	}
	if out != "850110" {
		t.Fatalf("out=%q", out)
	}
	if attempt != 2 {
		t.Fatalf("attempt=%d", attempt)
	}
}

func TestCompleteMissingKey(t *testing.T) {
	cfg, _ := config.Load()
	cfg.OpenAIAPIKey = ""
	client := NewClient(cfg)
	if _, err := client.Complete(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected error")
	}
}

func TestCompleteNonRetryableStatus(t *testing.T) {
	cfg, _ := config.Load()
	cfg.OpenAIAPIKey = "test"
	cfg.OpenAIBaseURL = "https://example.test/v1"

	client := NewClient(cfg)
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusUnauthorized,
				Body:       io.NopCloser(strings.NewReader(`{"error":"bad key"}`)),
				Header:     make(http.Header),
			}, nil
		}),
	}

	if _, err := client.Complete(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected error")
	}
}
