package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedDefaults(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s, err := c.Render("move.rejected", map[string]any{"Reason": "not your turn"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(s, "not your turn") {
		t.Fatalf("unexpected render: %q", s)
	}
	if _, err := c.Render("no.such.key", nil); err == nil {
		t.Fatalf("expected error for missing key")
	}
}

func TestRenderOrFallback(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.RenderOr("no.such.key", "fallback", nil); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	override := "move:\n  illegal: \"Nope.\"\n"
	if err := os.WriteFile(filepath.Join(dir, "override.yaml"), []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s, err := c.Render("move.illegal", nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if s != "Nope." {
		t.Fatalf("override not applied: %q", s)
	}
	// Non-overridden keys keep their defaults
	if _, err := c.Render("search.cancelled", nil); err != nil {
		t.Fatalf("default lost after override: %v", err)
	}
}
