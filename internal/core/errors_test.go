package core_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/vampirenirmal/storyloom/internal/core"
)

func TestServiceErrorMessage(t *testing.T) {
	err := core.NewServiceError("draft", errors.New("quota exceeded"))
	if got := err.Error(); got != "generation service failed in draft: quota exceeded" {
		t.Errorf("Error() = %q", got)
	}

	err.Provider = "anthropic"
	if got := err.Error(); !strings.Contains(got, "(anthropic)") {
		t.Errorf("Error() = %q, want provider named", got)
	}
}

func TestStageErrorMessage(t *testing.T) {
	err := core.NewStageError("plan_skeleton", core.ErrNoUnits)
	if got := err.Error(); got != "stage plan_skeleton failed: no content units in store" {
		t.Errorf("Error() = %q", got)
	}
}

func TestErrorChainUnwraps(t *testing.T) {
	inner := core.NewServiceError("summarize", core.ErrEmptyResponse)
	outer := core.NewStageError("draft", inner)

	if !errors.Is(outer, core.ErrEmptyResponse) {
		t.Error("errors.Is(outer, ErrEmptyResponse) = false, want sentinel reachable through both wrappers")
	}
	if !core.IsStageError(outer) {
		t.Error("IsStageError = false, want true")
	}
	if !core.IsServiceError(outer) {
		t.Error("IsServiceError = false, want true through the chain")
	}
	if core.IsParseError(outer) {
		t.Error("IsParseError = true, want false")
	}
}

func TestClassifiersOnNil(t *testing.T) {
	if core.IsServiceError(nil) || core.IsParseError(nil) || core.IsStageError(nil) {
		t.Error("classifiers must report false for nil")
	}
}

func TestNewParseErrorTruncatesSnippet(t *testing.T) {
	raw := strings.Repeat("x", 500)
	err := core.NewParseError("evaluate", raw, errors.New("unexpected end of JSON input"))

	if len(err.Snippet) > 160 {
		t.Errorf("Snippet length = %d, want at most 160", len(err.Snippet))
	}
	if !strings.HasSuffix(err.Snippet, "...") {
		t.Errorf("Snippet = %q, want ellipsis marker on a cut", err.Snippet)
	}
	if !core.IsParseError(err) {
		t.Error("IsParseError = false, want true")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		s    string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"well past the limit", 10, "well pa..."},
		{"abcdef", 3, "abc"},
		{"abcdef", 2, "ab"},
		{"", 5, ""},
	}
	for _, tt := range tests {
		if got := core.Truncate(tt.s, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.s, tt.n, got, tt.want)
		}
	}
}
