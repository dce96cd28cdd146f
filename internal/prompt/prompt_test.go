package prompt_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vampirenirmal/storyloom/internal/prompt"
)

type greeting struct {
	Name string
}

func TestRenderBuiltinSource(t *testing.T) {
	lib := prompt.NewLibrary("")

	got, err := lib.Render("greet", "Hello, {{.Name}}.", greeting{Name: "Iska"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Hello, Iska." {
		t.Errorf("Render = %q", got)
	}
}

func TestOverrideDirectoryWins(t *testing.T) {
	dir := t.TempDir()
	override := filepath.Join(dir, "greet.tmpl")
	if err := os.WriteFile(override, []byte("Salutations, {{.Name}}!"), 0o644); err != nil {
		t.Fatalf("writing override: %v", err)
	}
	lib := prompt.NewLibrary(dir)

	got, err := lib.Render("greet", "Hello, {{.Name}}.", greeting{Name: "Iska"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Salutations, Iska!" {
		t.Errorf("Render = %q, want the override applied", got)
	}
}

func TestMissingOverrideFallsBackToSource(t *testing.T) {
	lib := prompt.NewLibrary(t.TempDir())

	got, err := lib.Render("greet", "Hello, {{.Name}}.", greeting{Name: "Iska"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Hello, Iska." {
		t.Errorf("Render = %q, want the built-in source", got)
	}
}

func TestTemplatesCacheUntilClear(t *testing.T) {
	dir := t.TempDir()
	override := filepath.Join(dir, "greet.tmpl")
	if err := os.WriteFile(override, []byte("v1 {{.Name}}"), 0o644); err != nil {
		t.Fatalf("writing override: %v", err)
	}
	lib := prompt.NewLibrary(dir)

	got, err := lib.Render("greet", "builtin {{.Name}}", greeting{Name: "Iska"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "v1 Iska" {
		t.Fatalf("Render = %q, want first override", got)
	}

	if err := os.WriteFile(override, []byte("v2 {{.Name}}"), 0o644); err != nil {
		t.Fatalf("rewriting override: %v", err)
	}
	got, err = lib.Render("greet", "builtin {{.Name}}", greeting{Name: "Iska"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "v1 Iska" {
		t.Errorf("Render = %q, want the cached parse until Clear", got)
	}

	lib.Clear()
	got, err = lib.Render("greet", "builtin {{.Name}}", greeting{Name: "Iska"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "v2 Iska" {
		t.Errorf("Render = %q, want the rewritten override after Clear", got)
	}
}

func TestParseErrorNamesTemplate(t *testing.T) {
	lib := prompt.NewLibrary("")

	_, err := lib.Render("broken", "Hello, {{.Name", nil)
	if err == nil {
		t.Fatal("Render returned nil error for an unparseable source")
	}
	if !strings.Contains(err.Error(), "parsing prompt template broken") {
		t.Errorf("err = %v, want the template named", err)
	}
}

func TestExecuteErrorNamesTemplate(t *testing.T) {
	lib := prompt.NewLibrary("")

	_, err := lib.Render("greet", "Hello, {{.Name}}.", struct{}{})
	if err == nil {
		t.Fatal("Render returned nil error for data missing a field")
	}
	if !strings.Contains(err.Error(), "executing prompt template greet") {
		t.Errorf("err = %v, want the template named", err)
	}
}
