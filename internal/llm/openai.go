// Package llm provides core.TextService adapters: an OpenAI-compatible
// client, a raw-HTTP Anthropic client, and a deterministic mock. Adapters
// return transport-level errors untouched; stage attribution happens in the
// callers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"
	openai "github.com/sashabaranov/go-openai"

	"github.com/vampirenirmal/storyloom/internal/core"
)

const fallbackEncoding = "cl100k_base"

// OpenAI adapts any OpenAI-compatible chat-completion endpoint to
// core.TextService. Incremental output streams through CompleteStream.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *slog.Logger
}

// OpenAIOption configures the adapter.
type OpenAIOption func(*OpenAI)

// WithOpenAITemperature sets the sampling temperature.
func WithOpenAITemperature(t float64) OpenAIOption {
	return func(o *OpenAI) { o.temperature = float32(t) }
}

// WithOpenAIMaxTokens caps the completion length.
func WithOpenAIMaxTokens(n int) OpenAIOption {
	return func(o *OpenAI) { o.maxTokens = n }
}

// WithOpenAILogger sets the structured logger.
func WithOpenAILogger(l *slog.Logger) OpenAIOption {
	return func(o *OpenAI) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewOpenAI builds an adapter for the given endpoint. An empty baseURL keeps
// the library default (api.openai.com); pointing it elsewhere covers any
// OpenAI-compatible server.
func NewOpenAI(apiKey, baseURL, model string, opts ...OpenAIOption) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	o := &OpenAI{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: 0.8,
		maxTokens:   4096,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Complete performs a single blocking chat completion.
func (o *OpenAI) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	start := time.Now()

	resp, err := o.client.CreateChatCompletion(ctx, o.request(systemPrompt, userPrompt))
	if err != nil {
		observeRequest("openai", o.model, "error", 0)
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		observeRequest("openai", o.model, "empty", 0)
		return "", core.ErrEmptyResponse
	}
	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		observeRequest("openai", o.model, "empty", 0)
		return "", core.ErrEmptyResponse
	}

	elapsed := time.Since(start)
	observeRequest("openai", o.model, "ok", elapsed.Seconds())
	observeTokens("openai", o.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	o.logger.Debug("completion finished",
		"provider", "openai",
		"model", o.model,
		"duration_ms", elapsed.Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return text, nil
}

// CompleteStream performs a streaming chat completion, forwarding each delta
// to chunk as it arrives. The full accumulated text is returned at the end. A
// chunk error aborts the stream.
func (o *OpenAI) CompleteStream(ctx context.Context, systemPrompt, userPrompt string, chunk func(string) error) (string, error) {
	start := time.Now()

	req := o.request(systemPrompt, userPrompt)
	req.Stream = true

	stream, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		observeRequest("openai", o.model, "error", 0)
		return "", fmt.Errorf("opening completion stream: %w", err)
	}
	defer stream.Close()

	var (
		builder strings.Builder
		usage   *openai.Usage
	)
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			observeRequest("openai", o.model, "error", 0)
			return "", fmt.Errorf("receiving stream chunk: %w", err)
		}

		if resp.Usage != nil && resp.Usage.TotalTokens > 0 {
			u := *resp.Usage
			usage = &u
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		builder.WriteString(delta)
		if chunk != nil {
			if err := chunk(delta); err != nil {
				return "", fmt.Errorf("stream sink: %w", err)
			}
		}
	}

	text := builder.String()
	if strings.TrimSpace(text) == "" {
		observeRequest("openai", o.model, "empty", 0)
		return "", core.ErrEmptyResponse
	}

	// Streaming responses only carry usage on some endpoints; estimate
	// locally when it is absent.
	prompt, completion := 0, 0
	if usage != nil {
		prompt, completion = usage.PromptTokens, usage.CompletionTokens
	} else {
		prompt = o.countTokens(systemPrompt) + o.countTokens(userPrompt)
		completion = o.countTokens(text)
	}

	elapsed := time.Since(start)
	observeRequest("openai", o.model, "ok", elapsed.Seconds())
	observeTokens("openai", o.model, prompt, completion)
	o.logger.Debug("streaming completion finished",
		"provider", "openai",
		"model", o.model,
		"duration_ms", elapsed.Milliseconds(),
		"prompt_tokens", prompt,
		"completion_tokens", completion,
	)
	return text, nil
}

func (o *OpenAI) request(systemPrompt, userPrompt string) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userPrompt,
	})

	return openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	}
}

// countTokens estimates with the model's tokenizer, falling back to
// cl100k_base and finally to a bytes/4 heuristic.
func (o *OpenAI) countTokens(text string) int {
	enc, err := tiktoken.EncodingForModel(o.model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
	}
	if err != nil {
		return (len(text) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}
