// Package store provides the atomic whole-file JSON persistence primitive
// shared by PageCache and DomainIndex, adapted from the teacher's
// internal/cache/httpcache.go temp-file+rename discipline, plus an optional
// embedded key-value backend per spec.md Design Note 9's invitation to swap
// in a key-value store behind the same interface.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SaveJSON serializes v to path via create-temp-then-rename so that no
// reader ever observes a partially written file (Testable Property 9).
func SaveJSON(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmp := f.Name()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// LoadJSON decodes path into v. A missing file is not an error: the caller
// gets a zero-value v, matching the Python original's "return empty on
// missing file" behavior (original_source/doc2mcp/cache.py's _load_cache).
func LoadJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(v); err != nil {
		// A corrupt cache file is treated the same as a missing one by the
		// Python original (catches json.JSONDecodeError and resets to {}),
		// so a decode error here is swallowed rather than propagated.
		return nil
	}
	return nil
}
