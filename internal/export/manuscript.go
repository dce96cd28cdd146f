// Package export writes drafted units out as a markdown manuscript: one
// numbered file per unit plus a combined manuscript.md, in reading order.
package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vampirenirmal/storyloom/internal/core"
)

// WriteManuscript writes every unit that has a body into dir, creating it if
// needed. Units without bodies are skipped. It returns the paths written; an
// empty slice means nothing was drafted yet.
func WriteManuscript(dir string, units []core.ContentUnit, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}

	var (
		written  []string
		combined strings.Builder
		n        int
	)
	for _, unit := range units {
		body := strings.TrimSpace(unit.Body)
		if body == "" {
			continue
		}
		n++

		title := strings.TrimSpace(unit.Title)
		if title == "" {
			title = fmt.Sprintf("Unit %d", n)
		}

		content := fmt.Sprintf("# %s\n\n%s\n", title, body)
		name := fmt.Sprintf("%02d-%s.md", n, sanitizeForFilename(title, 40))
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return written, fmt.Errorf("writing %s: %w", name, err)
		}
		written = append(written, path)

		if combined.Len() > 0 {
			combined.WriteString("\n")
		}
		combined.WriteString(content)
	}

	if n == 0 {
		logger.Warn("nothing to export: no unit has a drafted body", "dir", dir)
		return nil, nil
	}

	manuscript := filepath.Join(dir, "manuscript.md")
	if err := os.WriteFile(manuscript, []byte(combined.String()), 0o644); err != nil {
		return written, fmt.Errorf("writing manuscript.md: %w", err)
	}
	written = append(written, manuscript)

	logger.Info("manuscript exported", "dir", dir, "units", n, "files", len(written))
	return written, nil
}

// sanitizeForFilename converts a title to a safe filename component:
// lowercase, hyphen-separated, punctuation stripped, length-capped.
func sanitizeForFilename(s string, maxLen int) string {
	s = strings.ToLower(s)

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_', r == '/', r == '\\', r == ':', r == '.':
			b.WriteByte('-')
		}
	}
	s = b.String()

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")

	if len(s) > maxLen {
		s = strings.TrimRight(s[:maxLen], "-")
	}
	if s == "" {
		s = "unit"
	}
	return s
}
