package cache

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/arcturian/docsearch/internal/fetch"
	"github.com/arcturian/docsearch/internal/store"
)

func unmarshalPage(raw []byte, p *Page) error {
	return json.Unmarshal(raw, p)
}

// Store is the interface SearchEngine depends on, satisfied by both the
// default JSON-file PageCache and BoltPageCache. Per spec.md Design Note 9:
// "An implementer may transparently swap in a key-value store behind the
// same interface without changing callers."
type Store interface {
	Get(url string) (Page, bool)
	Put(url, title, summary, content string, links []fetch.Link, domain string) error
	FindSimilar(query, domain string) []Page
	GetAllForDomain(domain string) []Page
	Clear(domain string) (int, error)
}

var _ Store = (*PageCache)(nil)
var _ Store = (*BoltPageCache)(nil)

// BoltPageCache is the embedded-database alternative to PageCache, adapted
// from TheSnook-polyester's bbolt storage backend (internal/store.BoltStore).
type BoltPageCache struct {
	db *store.BoltStore
}

// OpenBolt opens a bbolt-backed page cache at path.
func OpenBolt(path string) (*BoltPageCache, error) {
	db, err := store.OpenBoltStore(path, "pages")
	if err != nil {
		return nil, err
	}
	return &BoltPageCache{db: db}, nil
}

func (b *BoltPageCache) Close() error { return b.db.Close() }

func (b *BoltPageCache) Get(url string) (Page, bool) {
	var p Page
	found, err := b.db.Get(key(url), &p)
	if err != nil || !found {
		return Page{}, false
	}
	return p, true
}

func (b *BoltPageCache) Put(url, title, summary, content string, links []fetch.Link, domain string) error {
	p := Page{
		URL:       url,
		Title:     title,
		Summary:   summary,
		Content:   content,
		Links:     links,
		FetchedAt: time.Now().UTC(),
		Domain:    domain,
	}
	return b.db.Put(key(url), p)
}

func (b *BoltPageCache) all() []Page {
	var out []Page
	_ = b.db.ForEach(func(_ string, raw []byte) error {
		var p Page
		if err := unmarshalPage(raw, &p); err == nil {
			out = append(out, p)
		}
		return nil
	})
	return out
}

func (b *BoltPageCache) FindSimilar(query, domain string) []Page {
	q := tokenize(query)
	type scored struct {
		score int
		page  Page
	}
	var results []scored
	for _, p := range b.all() {
		if domain != "" && p.Domain != domain {
			continue
		}
		score := 2*overlap(q, tokenize(p.Title)) + overlap(q, tokenize(p.Summary))
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

func (b *BoltPageCache) GetAllForDomain(domain string) []Page {
	var out []Page
	for _, p := range b.all() {
		if p.Domain == domain {
			out = append(out, p)
		}
	}
	return out
}

func (b *BoltPageCache) Clear(domain string) (int, error) {
	removed := 0
	for k, p := range b.keyed() {
		if domain == "" || p.Domain == domain {
			if err := b.db.Delete(k); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

func (b *BoltPageCache) keyed() map[string]Page {
	out := map[string]Page{}
	_ = b.db.ForEach(func(k string, raw []byte) error {
		var p Page
		if err := unmarshalPage(raw, &p); err == nil {
			out[k] = p
		}
		return nil
	})
	return out
}
