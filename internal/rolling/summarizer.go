package rolling

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vampirenirmal/storyloom/internal/core"
	"github.com/vampirenirmal/storyloom/internal/extract"
	"github.com/vampirenirmal/storyloom/internal/prompt"
)

// Summarizer compresses a unit's drafted body into the dense summary that
// becomes forward context for its successor, bounding per-unit context to a
// fixed budget instead of cumulative history.
type Summarizer struct {
	service core.TextService
	prompts *prompt.Library
	logger  *slog.Logger
}

// NewSummarizer creates a summarizer. prompts and logger may be nil.
func NewSummarizer(service core.TextService, prompts *prompt.Library, logger *slog.Logger) *Summarizer {
	if prompts == nil {
		prompts = prompt.NewLibrary("")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{
		service: service,
		prompts: prompts,
		logger:  logger.With("component", "summarizer"),
	}
}

type summarizeData struct {
	Title string
	Body  string
}

// denseSummaryEnvelope is the structured shape the summarize prompt demands.
type denseSummaryEnvelope struct {
	DenseSummary string `json:"denseSummary"`
}

// Summarize issues one generation call and returns the dense summary. When
// the response carries no parseable envelope, the raw trimmed text is used
// instead of discarding the call.
func (s *Summarizer) Summarize(ctx context.Context, body, title string) (string, error) {
	userPrompt, err := s.prompts.Render(summarizeTemplateName, summarizeTemplate, summarizeData{
		Title: title,
		Body:  body,
	})
	if err != nil {
		return "", fmt.Errorf("rendering summarize prompt: %w", err)
	}

	start := time.Now()
	response, err := s.service.Complete(ctx, summarizeSystemPrompt, userPrompt)
	if err != nil {
		return "", core.NewServiceError("summarize", err)
	}

	summary := parseDenseSummary(response)
	if summary == "" {
		return "", core.ErrEmptyResponse
	}

	s.logger.Debug("unit summarized",
		"title", title,
		"summary_words", len(strings.Fields(summary)),
		"duration_ms", time.Since(start).Milliseconds())

	return summary, nil
}

// parseDenseSummary extracts the envelope's denseSummary field, falling back
// to the raw trimmed text when no usable structure is present.
func parseDenseSummary(response string) string {
	if block, ok := extract.Block(response); ok {
		var envelope denseSummaryEnvelope
		if err := json.Unmarshal([]byte(block), &envelope); err == nil {
			if s := strings.TrimSpace(envelope.DenseSummary); s != "" {
				return s
			}
		}
	}
	return strings.TrimSpace(extract.Unfence(response))
}
