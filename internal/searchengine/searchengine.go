// Package searchengine implements C8 SearchEngine: the orchestrator that
// seeds the frontier, pops by priority, drives fetch/navigate, collects
// excerpts, and terminates into a synthesis pass. Grounded primarily on
// original_source/doc2mcp/agents/doc_search.py's search()/_deep_search()
// procedure, with orchestration/error-isolation style adapted from the
// teacher's internal/app/app.go Run() pipeline.
package searchengine

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/arcturian/docsearch/internal/cache"
	"github.com/arcturian/docsearch/internal/config"
	"github.com/arcturian/docsearch/internal/domainindex"
	"github.com/arcturian/docsearch/internal/fetch"
	"github.com/arcturian/docsearch/internal/localsource"
	"github.com/arcturian/docsearch/internal/navigator"
	"github.com/arcturian/docsearch/internal/synth"
	"github.com/arcturian/docsearch/internal/textutil"
)

const (
	cachePrefetchPerDomain    = 3
	cachePrefetchExcerptLimit = 5000
	truncationMarker          = "\n\n[Content truncated due to length limits]"
)

// Result is the public search(tool_id, query) response shape (spec.md §6).
type Result struct {
	Content           string   `json:"content"`
	Sources           []string `json:"sources"`
	PagesExplored     int      `json:"pages_explored"`
	SitemapUsed       bool     `json:"sitemap_used"`
	SitemapCandidates int      `json:"sitemap_candidates"`
	ToolName          string   `json:"tool_name,omitempty"`
	ToolDescription   string   `json:"tool_description,omitempty"`
	Error             string   `json:"error,omitempty"`
	AvailableTools    []string `json:"available_tools,omitempty"`
}

// Engine is C8 SearchEngine. It owns no persistent state of its own;
// PageCache and DomainIndex are process-wide shared collaborators passed in
// by construction, per spec.md §3's ownership note.
type Engine struct {
	Config    config.Config
	Cache     cache.Store
	Index     *domainindex.Index
	Fetcher   *fetch.Client
	Navigator *navigator.Navigator
	Synth     *synth.Synthesizer
	MaxPages  int
}

type collectedExcerpt struct {
	url     string
	content string
}

// explorationState is C8's ExplorationState (spec.md §3), owned
// exclusively by one Search call.
type explorationState struct {
	visited       map[string]bool
	frontier      *frontier
	collected     []collectedExcerpt
	sources       []string
	pagesExplored int
	hasSufficient bool
}

// Search implements the entry point named by spec.md §4.8.
func (e *Engine) Search(ctx context.Context, toolID, query string) Result {
	tool, ok := e.Config.Tools[toolID]
	if !ok {
		names := make([]string, 0, len(e.Config.Tools))
		for k := range e.Config.Tools {
			names = append(names, k)
		}
		return Result{Error: fmt.Sprintf("Tool '%s' not found", toolID), AvailableTools: names, Sources: []string{}}
	}

	st := &explorationState{visited: map[string]bool{}, frontier: newFrontier()}

	seedURLs, domains := e.extractWebSources(tool)

	// Cache-similarity prefetch (spec.md §4.8 Preparation).
	for _, domain := range domains {
		hits := e.Cache.FindSimilar(query, domain)
		if len(hits) > cachePrefetchPerDomain {
			hits = hits[:cachePrefetchPerDomain]
		}
		for _, p := range hits {
			excerpt := textutil.Truncate(p.Content, cachePrefetchExcerptLimit)
			st.collected = append(st.collected, collectedExcerpt{url: p.URL, content: excerpt})
			st.visited[p.URL] = true
			st.sources = append(st.sources, "[cached] "+p.URL)
		}
	}

	sitemapUsed := false
	sitemapCandidates := 0

	// Candidate priming (spec.md §4.8).
	for _, src := range tool.Sources {
		if !src.IsWeb() {
			continue
		}
		domain := hostOf(src.URL)
		if e.Config.Settings.SitemapIndex.Enabled {
			rec, err := e.Index.EnsureIndexed(ctx, domain, src.URL)
			if err != nil {
				log.Warn().Err(err).Str("domain", domain).Msg("domain index build failed, falling back to seed only")
			} else {
				matches := e.Index.FindRelevant(domain, query, e.Config.Settings.SitemapIndex.MaxURLCandidates)
				if rec.SourceType == domainindex.SourceSitemap {
					sitemapUsed = true
					sitemapCandidates += len(matches)
				}
				for _, m := range matches {
					priority := int(10 - m.Score)
					if priority < 0 {
						priority = 0
					}
					if priority > 9 {
						priority = 9
					}
					st.frontier.push(m.URL, priority)
				}
			}
		}
	}
	for _, u := range seedURLs {
		st.frontier.push(u, 10)
	}

	e.exploreLoop(ctx, toolID, query, st)

	// Local-source folding (supplemented feature, spec.md §4.8).
	for _, src := range tool.Sources {
		if !src.IsLocal() {
			continue
		}
		content := localsource.Read(src.Path, src.Patterns, e.Config.Settings.MaxContentLength)
		if content != "" {
			st.collected = append(st.collected, collectedExcerpt{url: "[local]", content: content})
		}
	}

	if len(st.collected) == 0 {
		return Result{
			Content:           "No relevant documentation found.",
			Sources:           st.sources,
			PagesExplored:     st.pagesExplored,
			SitemapUsed:       sitemapUsed,
			SitemapCandidates: sitemapCandidates,
			ToolName:          tool.Name,
			ToolDescription:   tool.Description,
		}
	}

	excerpts := make([]synth.Excerpt, 0, len(st.collected))
	for _, c := range st.collected {
		excerpts = append(excerpts, synth.Excerpt{URL: c.url, Content: c.content})
	}
	answer, err := e.Synth.Synthesize(ctx, query, excerpts)
	if err != nil {
		log.Error().Err(err).Str("tool", toolID).Msg("synthesis failed")
		return Result{Error: "synthesis failed", Sources: st.sources, PagesExplored: st.pagesExplored}
	}

	maxLen := e.Config.Settings.MaxContentLength
	if maxLen > 0 && len(answer) > maxLen {
		answer = textutil.Truncate(answer, maxLen) + truncationMarker
	}

	return Result{
		Content:           answer,
		Sources:           st.sources,
		PagesExplored:     st.pagesExplored,
		SitemapUsed:       sitemapUsed,
		SitemapCandidates: sitemapCandidates,
		ToolName:          tool.Name,
		ToolDescription:   tool.Description,
	}
}

func (e *Engine) maxPages() int {
	if e.MaxPages > 0 {
		return e.MaxPages
	}
	return 50
}

// exploreLoop is spec.md §4.8's "Exploration loop".
func (e *Engine) exploreLoop(ctx context.Context, toolID, query string, st *explorationState) {
	for !st.frontier.empty() && st.pagesExplored < e.maxPages() && !st.hasSufficient {
		select {
		case <-ctx.Done():
			return
		default:
		}

		u, ok := st.frontier.pop()
		if !ok {
			return
		}
		if st.visited[u] {
			continue
		}
		st.visited[u] = true
		st.pagesExplored++

		// baseDomain restricts extracted links to the page's own host
		// (spec.md §4.1), not the tool's first configured domain — a tool
		// spanning multiple web sources would otherwise have every link on
		// a second-domain page's page rejected by fetch.normalizeLink.
		page, fromCache, ok := e.loadOrFetch(ctx, u, hostOf(u))
		if !ok {
			// Fetch failure: skip this URL silently and continue, per
			// spec.md §7 FetchFailure and Open Question 1 (budget still
			// consumed since pagesExplored was already incremented above).
			continue
		}

		decision := e.Navigator.Navigate(ctx, query, page)

		if !fromCache && page.Content != "" {
			domain := hostOf(u)
			if err := e.Cache.Put(u, page.Title, decision.Summary, page.Content, page.Links, domain); err != nil {
				log.Warn().Err(err).Str("url", u).Msg("failed to persist page cache entry")
			}
		}

		if strings.TrimSpace(decision.RelevantContent) != "" {
			st.collected = append(st.collected, collectedExcerpt{url: u, content: decision.RelevantContent})
			st.sources = append(st.sources, u)
		}

		if decision.HasSufficientInfo {
			st.hasSufficient = true
			return
		}

		for i, link := range decision.LinksToExplore {
			if st.visited[link.URL] {
				continue
			}
			priority := st.pagesExplored*10 + i
			st.frontier.push(link.URL, priority)
		}
	}
}

func (e *Engine) loadOrFetch(ctx context.Context, u, baseDomain string) (fetch.Result, bool, bool) {
	if p, ok := e.Cache.Get(u); ok {
		return fetch.Result{URL: p.URL, Title: p.Title, Content: p.Content, Links: p.Links}, true, true
	}
	res, _, err := e.Fetcher.Fetch(ctx, u, baseDomain)
	if err != nil {
		log.Warn().Err(err).Str("url", u).Msg("fetch failed, dropping url from exploration")
		return fetch.Result{}, false, false
	}
	return res, false, true
}

func (e *Engine) extractWebSources(tool config.ToolConfig) (seedURLs []string, domains []string) {
	seen := map[string]bool{}
	for _, src := range tool.Sources {
		if !src.IsWeb() {
			continue
		}
		seedURLs = append(seedURLs, src.URL)
		d := hostOf(src.URL)
		if d != "" && !seen[d] {
			seen[d] = true
			domains = append(domains, d)
		}
	}
	return seedURLs, domains
}

// HostOf returns the lowercased hostname of rawURL, or "" if it doesn't
// parse. Exported so other collaborators (internal/httpapi) normalize
// hostnames the same way instead of keeping their own copy.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func hostOf(rawURL string) string { return HostOf(rawURL) }
