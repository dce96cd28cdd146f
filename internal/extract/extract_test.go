package extract_test

import (
	"testing"

	"github.com/vampirenirmal/storyloom/internal/extract"
)

func TestBlock(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{"fenced array", "```json\n[1,2]\n```", "[1,2]", true},
		{"fenced object", "```\n{\"x\":1}\n```", "{\"x\":1}", true},
		{"no structure", "no structure here", "", false},
		{"empty input", "", "", false},
		{"bare object", `{"a": 1}`, `{"a": 1}`, true},
		{"prose wrapped", `Sure, here is the result: {"a": 1} — hope that helps!`, `{"a": 1}`, true},
		{"array before object", `[1] then {"a":2}`, `[1]`, true},
		{"nested structures", `{"a": {"b": [1, {"c": 2}]}}`, `{"a": {"b": [1, {"c": 2}]}}`, true},
		{"bracket inside string", `{"quote": "a } inside"} trailing prose`, `{"quote": "a } inside"}`, true},
		{"escaped quote inside string", `{"s": "he said \"}\" loudly"}`, `{"s": "he said \"}\" loudly"}`, true},
		{"unterminated then balanced", `{ "broken": and later {"ok": true}`, `{"ok": true}`, true},
		{"only opening bracket", "{", "", false},
		{"mismatched nesting", `[ { ]`, "", false},
		{"fence on one line", "```json{\"k\":\"v\"}```", `{"k":"v"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extract.Block(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("Block(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("Block(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestUnfence(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\ntext body\n```", "text body"},
		{"no fence", "  plain text  ", "plain text"},
		{"opening fence only", "```json\npartial", "partial"},
		{"language tag kept out", "```yaml\nkey: value\n```", "key: value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extract.Unfence(tt.raw); got != tt.want {
				t.Errorf("Unfence(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
