package cache

import (
	"path/filepath"
	"testing"
)

func TestPutThenGet_ReturnsStoredPage(t *testing.T) {
	dir := t.TempDir()
	c, err := New(filepath.Join(dir, "pages.json"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := c.Put("https://docs.example.com/install", "Install", "how to install on ubuntu", "full text", nil, "docs.example.com"); err != nil {
		t.Fatalf("put: %v", err)
	}
	p, ok := c.Get("https://docs.example.com/install")
	if !ok {
		t.Fatal("expected hit")
	}
	if p.Title != "Install" || p.Domain != "docs.example.com" {
		t.Fatalf("unexpected page: %+v", p)
	}

	// Idempotence: reloading from disk returns the same page.
	reloaded, err := New(filepath.Join(dir, "pages.json"))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	p2, ok := reloaded.Get("https://docs.example.com/install")
	if !ok || p2.Title != p.Title {
		t.Fatalf("reload mismatch: %+v vs %+v", p, p2)
	}
}

func TestFindSimilar_ScoresTitleHigherThanSummary(t *testing.T) {
	dir := t.TempDir()
	c, _ := New(filepath.Join(dir, "pages.json"))
	_ = c.Put("https://docs.example.com/a", "Ubuntu Install Guide", "setup notes", "", nil, "docs.example.com")
	_ = c.Put("https://docs.example.com/b", "Other", "install on ubuntu works great", "", nil, "docs.example.com")
	_ = c.Put("https://other.example.com/c", "Ubuntu Install Guide", "x", "", nil, "other.example.com")

	results := c.FindSimilar("install on ubuntu", "docs.example.com")
	if len(results) != 2 {
		t.Fatalf("expected 2 matches scoped to domain, got %d", len(results))
	}
	if results[0].URL != "https://docs.example.com/a" {
		t.Fatalf("expected title match to rank first, got %+v", results)
	}
}

func TestClear_ScopedToDomain(t *testing.T) {
	dir := t.TempDir()
	c, _ := New(filepath.Join(dir, "pages.json"))
	_ = c.Put("https://a.example.com/1", "A", "", "", nil, "a.example.com")
	_ = c.Put("https://b.example.com/1", "B", "", "", nil, "b.example.com")

	n, err := c.Clear("a.example.com")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 removed, got %d", n)
	}
	if _, ok := c.Get("https://a.example.com/1"); ok {
		t.Fatal("expected a.example.com page removed")
	}
	if _, ok := c.Get("https://b.example.com/1"); !ok {
		t.Fatal("expected b.example.com page to remain")
	}
}
