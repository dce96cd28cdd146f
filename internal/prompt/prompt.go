// Package prompt renders the model-facing instruction templates. Every
// template ships as an embedded default; an optional override directory can
// replace any of them by name (<name>.tmpl).
package prompt

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"text/template"
)

// Library resolves and caches parsed templates by name to avoid repeated
// file reads and re-parses.
type Library struct {
	mu        sync.RWMutex
	dir       string
	templates map[string]*template.Template
}

// NewLibrary creates a library. dir may be empty, in which case only the
// built-in template sources are used.
func NewLibrary(dir string) *Library {
	return &Library{
		dir:       dir,
		templates: make(map[string]*template.Template),
	}
}

// Render executes the named template over data. When the override directory
// contains <name>.tmpl, that file's contents replace the built-in source.
func (l *Library) Render(name, source string, data any) (string, error) {
	tmpl, err := l.load(name, source)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing prompt template %s: %w", name, err)
	}
	return buf.String(), nil
}

func (l *Library) load(name, source string) (*template.Template, error) {
	l.mu.RLock()
	if tmpl, ok := l.templates[name]; ok {
		l.mu.RUnlock()
		return tmpl, nil
	}
	l.mu.RUnlock()

	text := source
	if l.dir != "" {
		path := filepath.Join(l.dir, name+".tmpl")
		if content, err := os.ReadFile(path); err == nil {
			text = string(content)
		}
	}

	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing prompt template %s: %w", name, err)
	}

	l.mu.Lock()
	l.templates[name] = tmpl
	l.mu.Unlock()

	return tmpl, nil
}

// Clear drops all cached templates, forcing a reload on next use.
func (l *Library) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.templates = make(map[string]*template.Template)
}
