package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/vampirenirmal/storyloom/internal/core"
)

const anthropicVersion = "2023-06-01"

// Anthropic adapts the Anthropic Messages API to core.TextService over raw
// HTTP. Requests pass through a client-side rate limiter and retry on
// transient failures with linear backoff.
type Anthropic struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	logger     *slog.Logger
}

// AnthropicOption configures the adapter.
type AnthropicOption func(*Anthropic)

// WithAnthropicBaseURL overrides the API endpoint, e.g. for a proxy.
func WithAnthropicBaseURL(baseURL string) AnthropicOption {
	return func(a *Anthropic) {
		if baseURL != "" {
			a.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithAnthropicMaxTokens caps the completion length.
func WithAnthropicMaxTokens(n int) AnthropicOption {
	return func(a *Anthropic) { a.maxTokens = n }
}

// WithAnthropicTimeout bounds each HTTP attempt.
func WithAnthropicTimeout(timeout time.Duration) AnthropicOption {
	return func(a *Anthropic) {
		transport := a.httpClient.Transport
		a.httpClient = &http.Client{
			Timeout:   timeout,
			Transport: transport,
		}
	}
}

// WithAnthropicRateLimit throttles outgoing requests.
func WithAnthropicRateLimit(requestsPerMinute, burst int) AnthropicOption {
	return func(a *Anthropic) {
		a.limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
	}
}

// WithAnthropicRetry sets how many times a transient failure is retried.
func WithAnthropicRetry(maxRetries int) AnthropicOption {
	return func(a *Anthropic) { a.maxRetries = maxRetries }
}

// WithAnthropicLogger sets the structured logger.
func WithAnthropicLogger(l *slog.Logger) AnthropicOption {
	return func(a *Anthropic) {
		if l != nil {
			a.logger = l.With("component", "anthropic_client")
		}
	}
}

// NewAnthropic builds an adapter with pooled connections and a conservative
// default rate limit.
func NewAnthropic(apiKey, model string, opts ...AnthropicOption) *Anthropic {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	a := &Anthropic{
		apiKey:    apiKey,
		baseURL:   "https://api.anthropic.com/v1",
		model:     model,
		maxTokens: 4096,
		httpClient: &http.Client{
			Timeout:   15 * time.Minute,
			Transport: transport,
		},
		limiter:    rate.NewLimiter(rate.Limit(0.5), 1),
		maxRetries: 3,
		logger:     slog.Default().With("component", "anthropic_client"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Complete performs a single blocking message request.
func (a *Anthropic) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	requestID := fmt.Sprintf("anthropic_%d", time.Now().UnixNano())
	start := time.Now()

	if err := a.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for rate limit: %w", err)
	}
	a.logger.Debug("rate limit passed",
		"request_id", requestID,
		"wait_duration_ms", time.Since(start).Milliseconds(),
	)

	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			a.logger.Debug("retry backoff",
				"request_id", requestID,
				"attempt", attempt,
				"backoff_seconds", backoff.Seconds(),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		attemptStart := time.Now()
		text, err := a.doRequest(ctx, requestID, systemPrompt, userPrompt)
		if err == nil {
			elapsed := time.Since(start)
			observeRequest("anthropic", a.model, "ok", elapsed.Seconds())
			a.logger.Debug("completion finished",
				"request_id", requestID,
				"attempt", attempt,
				"duration_ms", elapsed.Milliseconds(),
				"response_length", len(text),
			)
			return text, nil
		}

		lastErr = err
		if !isRetryable(err) {
			observeRequest("anthropic", a.model, "error", 0)
			return "", err
		}
		a.logger.Warn("request failed, will retry",
			"request_id", requestID,
			"attempt", attempt,
			"duration_ms", time.Since(attemptStart).Milliseconds(),
			"error", err,
		)
	}

	observeRequest("anthropic", a.model, "error", 0)
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// CompleteStream satisfies core.TextService. The raw-HTTP client does not
// consume server-sent events; the full response is delivered as one chunk.
func (a *Anthropic) CompleteStream(ctx context.Context, systemPrompt, userPrompt string, chunk func(string) error) (string, error) {
	text, err := a.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	if chunk != nil {
		if err := chunk(text); err != nil {
			return "", fmt.Errorf("stream sink: %w", err)
		}
	}
	return text, nil
}

func (a *Anthropic) doRequest(ctx context.Context, requestID, systemPrompt, userPrompt string) (string, error) {
	payload := map[string]any{
		"model": a.model,
		"messages": []map[string]string{
			{"role": "user", "content": userPrompt},
		},
		"max_tokens": a.maxTokens,
	}
	if systemPrompt != "" {
		payload["system"] = systemPrompt
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	httpStart := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	a.logger.Debug("response received",
		"request_id", requestID,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(httpStart).Milliseconds(),
		"body_size", len(respBody),
	)

	if resp.StatusCode != http.StatusOK {
		return "", &apiError{StatusCode: resp.StatusCode, Body: core.Truncate(string(respBody), 500)}
	}

	var response struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if len(response.Content) == 0 || strings.TrimSpace(response.Content[0].Text) == "" {
		return "", core.ErrEmptyResponse
	}

	observeTokens("anthropic", a.model, response.Usage.InputTokens, response.Usage.OutputTokens)
	return response.Content[0].Text, nil
}

// apiError carries the HTTP status for retry classification.
type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Body)
}

// isRetryable treats rate limiting, server errors and transport failures as
// transient. Client errors and empty responses are not worth retrying.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, core.ErrEmptyResponse) {
		return false
	}
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	// Network-level failures surface as wrapped url.Errors.
	return true
}
