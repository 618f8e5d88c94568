// Package cache implements C2 PageCache: a persistent {URL -> page} map
// with similarity lookup, grounded on original_source/doc2mcp/cache.py and
// adapted to the teacher's atomic temp-file+rename persistence discipline
// (internal/store, itself adapted from the teacher's internal/cache/httpcache.go).
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/arcturian/docsearch/internal/fetch"
	"github.com/arcturian/docsearch/internal/store"
)

// Page is C2's CachedPage value type (spec.md §3).
type Page struct {
	URL       string       `json:"url"`
	Title     string       `json:"title"`
	Summary   string       `json:"summary"`
	Content   string       `json:"content"`
	Links     []fetch.Link `json:"links"`
	FetchedAt time.Time    `json:"fetched_at"`
	Domain    string       `json:"domain"`
}

// PageCache is the process-wide, shared page cache. A single mutex guards
// in-memory map mutations and the serialize-to-disk operation, per
// spec.md §5's concurrency model.
type PageCache struct {
	path  string
	mu    sync.RWMutex
	pages map[string]Page // keyed by first 16 hex chars of sha256(url)
}

// New loads (or initializes) a PageCache backed by a single JSON document
// at path. A missing file yields an empty, valid cache, matching
// original_source/doc2mcp/cache.py's _load_cache behavior.
func New(path string) (*PageCache, error) {
	c := &PageCache{path: path, pages: map[string]Page{}}
	if err := store.LoadJSON(path, &c.pages); err != nil {
		return nil, err
	}
	if c.pages == nil {
		c.pages = map[string]Page{}
	}
	return c, nil
}

func key(url string) string {
	h := sha256.Sum256([]byte(url))
	return hex.EncodeToString(h[:])[:16]
}

// Get returns the cached page for url, if present.
func (c *PageCache) Get(url string) (Page, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.pages[key(url)]
	return p, ok
}

// Put stores (or overwrites) a page and persists the cache to disk.
// Key collisions are last-writer-wins, acceptable per spec.md §3.
func (c *PageCache) Put(url, title, summary, content string, links []fetch.Link, domain string) error {
	c.mu.Lock()
	c.pages[key(url)] = Page{
		URL:       url,
		Title:     title,
		Summary:   summary,
		Content:   content,
		Links:     links,
		FetchedAt: time.Now().UTC(),
		Domain:    domain,
	}
	snapshot := make(map[string]Page, len(c.pages))
	for k, v := range c.pages {
		snapshot[k] = v
	}
	err := store.SaveJSON(c.path, snapshot)
	c.mu.Unlock()
	return err
}

// FindSimilar scores cached pages by keyword overlap with query against
// title (weight 2) and summary (weight 1), per spec.md §4.2, and returns
// zero-score-excluded matches sorted descending.
func (c *PageCache) FindSimilar(query string, domain string) []Page {
	q := tokenize(query)
	c.mu.RLock()
	defer c.mu.RUnlock()

	type scored struct {
		score int
		page  Page
	}
	var results []scored
	for _, p := range c.pages {
		if domain != "" && p.Domain != domain {
			continue
		}
		titleWords := tokenize(p.Title)
		summaryWords := tokenize(p.Summary)
		score := 2*overlap(q, titleWords) + overlap(q, summaryWords)
		if score > 0 {
			results = append(results, scored{score, p})
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })
	out := make([]Page, len(results))
	for i, r := range results {
		out[i] = r.page
	}
	return out
}

// GetAllForDomain returns every cached page belonging to domain.
func (c *PageCache) GetAllForDomain(domain string) []Page {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Page
	for _, p := range c.pages {
		if p.Domain == domain {
			out = append(out, p)
		}
	}
	return out
}

// IndexEntry is a trimmed view returned by GetIndex.
type IndexEntry struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// GetIndex returns a lightweight overview of cached pages, optionally
// filtered to domain.
func (c *PageCache) GetIndex(domain string) []IndexEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []IndexEntry
	for _, p := range c.pages {
		if domain != "" && p.Domain != domain {
			continue
		}
		out = append(out, IndexEntry{URL: p.URL, Title: p.Title, Summary: p.Summary})
	}
	return out
}

// Clear removes cached pages, optionally scoped to domain, and returns the
// count removed.
func (c *PageCache) Clear(domain string) (int, error) {
	c.mu.Lock()
	var removed int
	if domain == "" {
		removed = len(c.pages)
		c.pages = map[string]Page{}
	} else {
		for k, p := range c.pages {
			if p.Domain == domain {
				delete(c.pages, k)
				removed++
			}
		}
	}
	snapshot := make(map[string]Page, len(c.pages))
	for k, v := range c.pages {
		snapshot[k] = v
	}
	err := store.SaveJSON(c.path, snapshot)
	c.mu.Unlock()
	return removed, err
}

func tokenize(s string) map[string]bool {
	out := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		out[w] = true
	}
	return out
}

func overlap(a, b map[string]bool) int {
	n := 0
	for w := range a {
		if b[w] {
			n++
		}
	}
	return n
}
