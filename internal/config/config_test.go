package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileYieldsEmptyDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Tools) != 0 {
		t.Fatalf("expected empty Tools map, got %v", cfg.Tools)
	}
	if cfg.Settings.MaxContentLength != 50000 {
		t.Fatalf("MaxContentLength = %d, want default 50000", cfg.Settings.MaxContentLength)
	}
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tools.yaml")
	doc := `
tools:
  demo:
    name: Demo
    description: a demo tool
    sources:
      - type: web
        url: https://docs.example.com/
      - type: local
        path: ./fixtures
settings:
  max_content_length: 1234
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Settings.MaxContentLength != 1234 {
		t.Fatalf("MaxContentLength = %d, want 1234", cfg.Settings.MaxContentLength)
	}
	// Unset settings keep their Default() value (overlay semantics).
	if cfg.Settings.SitemapIndex.MaxURLsPerDomain != 1000 {
		t.Fatalf("MaxURLsPerDomain = %d, want default 1000", cfg.Settings.SitemapIndex.MaxURLsPerDomain)
	}

	tool, ok := cfg.Tools["demo"]
	if !ok {
		t.Fatalf("expected tool %q", "demo")
	}
	if len(tool.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(tool.Sources))
	}
	if !tool.Sources[0].IsWeb() {
		t.Fatalf("expected sources[0] to be web")
	}
	if tool.Sources[0].IndexDepth != 3 {
		t.Fatalf("IndexDepth = %d, want normalized default 3", tool.Sources[0].IndexDepth)
	}
	if !tool.Sources[1].IsLocal() {
		t.Fatalf("expected sources[1] to be local")
	}
	if len(tool.Sources[1].Patterns) == 0 {
		t.Fatalf("expected normalized default patterns for local source")
	}
}

func TestSourceNormalize_DefaultsToWeb(t *testing.T) {
	s := Source{}
	s.Normalize()
	if s.Type != SourceWeb {
		t.Fatalf("Type = %q, want %q", s.Type, SourceWeb)
	}
	if s.IndexDepth != 3 {
		t.Fatalf("IndexDepth = %d, want 3", s.IndexDepth)
	}
}
