package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/vampirenirmal/storyloom/internal/core"
	"github.com/vampirenirmal/storyloom/internal/llm"
)

func anthropicResponse(text string) string {
	body, _ := json.Marshal(map[string]any{
		"content": []map[string]string{{"type": "text", "text": text}},
		"usage":   map[string]int{"input_tokens": 12, "output_tokens": 34},
	})
	return string(body)
}

func newAnthropic(serverURL string, opts ...llm.AnthropicOption) *llm.Anthropic {
	base := []llm.AnthropicOption{
		llm.WithAnthropicBaseURL(serverURL),
		llm.WithAnthropicRateLimit(6000, 100),
	}
	return llm.NewAnthropic("sk-test-key", "claude-test", append(base, opts...)...)
}

func TestAnthropicComplete(t *testing.T) {
	t.Parallel()

	var gotPath, gotKey, gotVersion string
	var gotBody struct {
		Model     string `json:"model"`
		System    string `json:"system"`
		MaxTokens int    `json:"max_tokens"`
		Messages  []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		_, _ = w.Write([]byte(anthropicResponse("the drafted prose")))
	}))
	defer server.Close()

	client := newAnthropic(server.URL, llm.WithAnthropicMaxTokens(2048))

	text, err := client.Complete(context.Background(), "you are a novelist", "write the unit")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "the drafted prose" {
		t.Errorf("text = %q", text)
	}
	if gotPath != "/messages" {
		t.Errorf("path = %q, want /messages", gotPath)
	}
	if gotKey != "sk-test-key" {
		t.Errorf("x-api-key = %q", gotKey)
	}
	if gotVersion == "" {
		t.Error("anthropic-version header missing")
	}
	if gotBody.Model != "claude-test" || gotBody.System != "you are a novelist" {
		t.Errorf("body model/system = %q/%q", gotBody.Model, gotBody.System)
	}
	if gotBody.MaxTokens != 2048 {
		t.Errorf("max_tokens = %d, want 2048", gotBody.MaxTokens)
	}
	if len(gotBody.Messages) != 1 || gotBody.Messages[0].Role != "user" {
		t.Errorf("messages = %+v, want single user message", gotBody.Messages)
	}
}

func TestAnthropicRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			http.Error(w, `{"error":"overloaded"}`, http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(anthropicResponse("second try")))
	}))
	defer server.Close()

	client := newAnthropic(server.URL, llm.WithAnthropicRetry(2))

	text, err := client.Complete(context.Background(), "", "go")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "second try" {
		t.Errorf("text = %q", text)
	}
	if got := attempts.Load(); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestAnthropicDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client := newAnthropic(server.URL, llm.WithAnthropicRetry(3))

	if _, err := client.Complete(context.Background(), "", "go"); err == nil {
		t.Fatal("expected error for 400 response")
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on client error)", got)
	}
}

func TestAnthropicEmptyContent(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content": [], "usage": {"input_tokens": 1, "output_tokens": 0}}`))
	}))
	defer server.Close()

	client := newAnthropic(server.URL)

	_, err := client.Complete(context.Background(), "", "go")
	if !errors.Is(err, core.ErrEmptyResponse) {
		t.Fatalf("err = %v, want ErrEmptyResponse", err)
	}
}

func TestAnthropicStreamDeliversWholeText(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(anthropicResponse("all at once")))
	}))
	defer server.Close()

	client := newAnthropic(server.URL)

	var chunks []string
	text, err := client.CompleteStream(context.Background(), "", "go", func(s string) error {
		chunks = append(chunks, s)
		return nil
	})
	if err != nil {
		t.Fatalf("CompleteStream: %v", err)
	}
	if text != "all at once" {
		t.Errorf("text = %q", text)
	}
	if len(chunks) != 1 || chunks[0] != text {
		t.Errorf("chunks = %v, want the full text as one chunk", chunks)
	}
}
