package searchengine

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/arcturian/docsearch/internal/cache"
	"github.com/arcturian/docsearch/internal/compress"
	"github.com/arcturian/docsearch/internal/config"
	"github.com/arcturian/docsearch/internal/domainindex"
	"github.com/arcturian/docsearch/internal/fetch"
	"github.com/arcturian/docsearch/internal/llm"
	"github.com/arcturian/docsearch/internal/navigator"
	"github.com/arcturian/docsearch/internal/synth"
	openai "github.com/sashabaranov/go-openai"
)

type scriptedChatClient struct {
	responses []string
	calls     int32
}

func (s *scriptedChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	i := atomic.AddInt32(&s.calls, 1) - 1
	resp := "{}"
	if int(i) < len(s.responses) {
		resp = s.responses[i]
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: resp}}},
	}, nil
}

func newEngine(t *testing.T, navResponses []string, synthResponse string, cfg config.Config) (*Engine, *cache.PageCache, *domainindex.Index) {
	t.Helper()
	dir := t.TempDir()
	pc, err := cache.New(filepath.Join(dir, "pages.json"))
	if err != nil {
		t.Fatalf("new page cache: %v", err)
	}
	idx, err := domainindex.New(filepath.Join(dir, "index.json"), domainindex.Options{})
	if err != nil {
		t.Fatalf("new domain index: %v", err)
	}
	navClient := &scriptedChatClient{responses: navResponses}
	synthClient := &scriptedChatClient{responses: []string{synthResponse}}

	eng := &Engine{
		Config:  cfg,
		Cache:   pc,
		Index:   idx,
		Fetcher: &fetch.Client{HTTPClient: &http.Client{}, MaxAttempts: 1},
		Navigator: &navigator.Navigator{
			Client:     &llm.Client{Inner: navClient, Model: "m"},
			Compressor: compress.NewDisabled(),
		},
		Synth: &synth.Synthesizer{
			Client:     &llm.Client{Inner: synthClient, Model: "m"},
			Compressor: compress.NewDisabled(),
		},
		MaxPages: 10,
	}
	return eng, pc, idx
}

func baseConfig(toolURL string) config.Config {
	cfg := config.Default()
	cfg.Settings.SitemapIndex.Enabled = false
	cfg.Tools["docs"] = config.ToolConfig{
		Name:        "Docs",
		Description: "test docs",
		Sources: []config.Source{
			{Type: config.SourceWeb, URL: toolURL},
		},
	}
	return cfg
}

func TestSearch_UnknownToolReturnsStructuredError(t *testing.T) {
	eng, _, _ := newEngine(t, nil, "", config.Default())
	res := eng.Search(context.Background(), "nonexistent", "any")
	if res.Error == "" || !strings.Contains(res.Error, "nonexistent") {
		t.Fatalf("expected structured not-found error, got %+v", res)
	}
	if res.PagesExplored != 0 {
		t.Fatalf("expected no fetches for unknown tool, got %d", res.PagesExplored)
	}
}

func TestSearch_CacheShortCircuitListsCachedSourcesFirst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Seed</title></head><body>seed page</body></html>`))
	}))
	defer srv.Close()
	domain := hostOf(srv.URL)

	cfg := baseConfig(srv.URL + "/")
	eng, pc, _ := newEngine(t, []string{`{"has_sufficient_info": true, "relevant_content": "installed fine", "summary": "s", "links_to_explore": []}`}, "final answer", cfg)
	_ = pc.Put(srv.URL+"/install", "Install Ubuntu", "install on ubuntu guide", "full content here", nil, domain)

	res := eng.Search(context.Background(), "docs", "install on ubuntu")
	if len(res.Sources) == 0 || !strings.HasPrefix(res.Sources[0], "[cached] ") {
		t.Fatalf("expected cached source listed first: %+v", res.Sources)
	}
}

func TestSearch_NavigatorFailureIsResilientAndContinues(t *testing.T) {
	pages := map[string]string{
		"/p1": `<html><head><title>P1</title></head><body><a href="/p2">p2</a></body></html>`,
		"/p2": `<html><head><title>P2</title></head><body>no links</body></html>`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if body, ok := pages[r.URL.Path]; ok {
			w.Write([]byte(body))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := baseConfig(srv.URL + "/p1")
	// p2 is a second seed: the safe default adds no frontier entries, so p2
	// must already be queued independently of p1's navigator decision.
	tool := cfg.Tools["docs"]
	tool.Sources = append(tool.Sources, config.Source{Type: config.SourceWeb, URL: srv.URL + "/p2"})
	cfg.Tools["docs"] = tool
	// First navigator call returns malformed JSON (triggers the safe
	// default fallback); loop must still continue to p2.
	eng, _, _ := newEngine(t, []string{"not json", `{"has_sufficient_info": false, "relevant_content": "p2 content", "summary": "s2", "links_to_explore": []}`}, "final", cfg)

	res := eng.Search(context.Background(), "docs", "query")
	if res.PagesExplored < 2 {
		t.Fatalf("expected exploration to continue past navigator failure, pages_explored=%d", res.PagesExplored)
	}
	if res.Content != "final" {
		t.Fatalf("expected synthesis to run over remaining excerpts, got %q", res.Content)
	}
}

func TestSearch_SitemapCandidatesVisitedInScoreOrderBeforeSeed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Docs Home</title></head><body>
<a href="/auth-token-refresh">auth</a>
<a href="/pricing-info">pricing</a>
</body></html>`))
	})
	mux.HandleFunc("/auth-token-refresh", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Auth Token Refresh</title></head><body>refresh tokens here</body></html>`))
	})
	mux.HandleFunc("/pricing-info", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Pricing</title></head><body>plans</body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := baseConfig(srv.URL + "/")
	// Sitemap discovery over https will fail against the plain-HTTP test
	// server, so EnsureIndexed falls back to the BFS crawl; the resulting
	// keyword-scored candidates must still outrank the priority-10 seed.
	cfg.Settings.SitemapIndex.Enabled = true
	eng, _, _ := newEngine(t, []string{`{"has_sufficient_info": true, "relevant_content": "token refresh docs", "summary": "s", "links_to_explore": []}`}, "final", cfg)

	res := eng.Search(context.Background(), "docs", "auth token refresh")
	if len(res.Sources) == 0 {
		t.Fatalf("expected at least one source, got %+v", res)
	}
	if want := srv.URL + "/auth-token-refresh"; res.Sources[0] != want {
		t.Fatalf("expected highest-scoring candidate visited first: got %q, want %q", res.Sources[0], want)
	}
	if res.PagesExplored != 1 {
		t.Fatalf("sufficiency on the first page should stop exploration, pages_explored=%d", res.PagesExplored)
	}
}

func TestSearch_NeverFetchesSameURLTwicePerQuery(t *testing.T) {
	var mu sync.Mutex
	counts := map[string]int{}
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		counts[r.URL.Path]++
		mu.Unlock()
		switch r.URL.Path {
		case "/p1":
			w.Write([]byte(`<html><head><title>P1</title></head><body><a href="/p2">p2</a></body></html>`))
		case "/p2":
			w.Write([]byte(`<html><head><title>P2</title></head><body>leaf</body></html>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cfg := baseConfig(srv.URL + "/p1")
	// The navigator suggests /p2 twice and the already-visited /p1; only one
	// fetch of each URL may happen.
	nav1 := fmt.Sprintf(`{"has_sufficient_info": false, "relevant_content": "", "summary": "s1", "links_to_explore": [{"url": %q, "reason": "r"}, {"url": %q, "reason": "r"}, {"url": %q, "reason": "r"}]}`,
		srv.URL+"/p2", srv.URL+"/p2", srv.URL+"/p1")
	nav2 := `{"has_sufficient_info": false, "relevant_content": "", "summary": "s2", "links_to_explore": []}`
	eng, _, _ := newEngine(t, []string{nav1, nav2}, "unused", cfg)

	res := eng.Search(context.Background(), "docs", "q")
	mu.Lock()
	defer mu.Unlock()
	if counts["/p1"] != 1 || counts["/p2"] != 1 {
		t.Fatalf("expected exactly one fetch per url, got %v", counts)
	}
	if res.PagesExplored != 2 {
		t.Fatalf("expected 2 pages explored, got %d", res.PagesExplored)
	}
}

type cancellingChatClient struct {
	inner  *scriptedChatClient
	cancel context.CancelFunc
}

func (c *cancellingChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	resp, err := c.inner.CreateChatCompletion(ctx, req)
	c.cancel()
	return resp, err
}

func TestSearch_CancellationAbandonsExplorationButKeepsCollected(t *testing.T) {
	var mu sync.Mutex
	counts := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		counts[r.URL.Path]++
		mu.Unlock()
		w.Write([]byte(`<html><head><title>P</title></head><body>content</body></html>`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := baseConfig(srv.URL + "/p1")
	nav1 := fmt.Sprintf(`{"has_sufficient_info": false, "relevant_content": "excerpt one", "summary": "s", "links_to_explore": [{"url": %q, "reason": "r"}]}`, srv.URL+"/p2")
	eng, _, _ := newEngine(t, nil, "final", cfg)
	eng.Navigator.Client = &llm.Client{
		Inner: &cancellingChatClient{inner: &scriptedChatClient{responses: []string{nav1}}, cancel: cancel},
		Model: "m",
	}

	res := eng.Search(ctx, "docs", "q")
	if res.PagesExplored != 1 {
		t.Fatalf("expected loop to stop at the next suspension point after cancel, pages_explored=%d", res.PagesExplored)
	}
	mu.Lock()
	p2Fetches := counts["/p2"]
	mu.Unlock()
	if p2Fetches != 0 {
		t.Fatalf("suggested link must not be fetched after cancellation")
	}
	if res.Content != "final" {
		t.Fatalf("expected synthesis over already-collected excerpts, got %q", res.Content)
	}
}

func TestSearch_TruncatesOverlongSynthesisWithMarker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>P</title></head><body>content</body></html>`))
	}))
	defer srv.Close()

	cfg := baseConfig(srv.URL + "/")
	cfg.Settings.MaxContentLength = 100
	longAnswer := strings.Repeat("a", 200)
	eng, _, _ := newEngine(t, []string{`{"has_sufficient_info": true, "relevant_content": "c", "summary": "s", "links_to_explore": []}`}, longAnswer, cfg)

	res := eng.Search(context.Background(), "docs", "q")
	if !strings.HasSuffix(res.Content, truncationMarker) {
		t.Fatalf("expected truncation marker suffix, got len=%d", len(res.Content))
	}
	if len(res.Content) > cfg.Settings.MaxContentLength+len(truncationMarker) {
		t.Fatalf("content exceeds max+marker bound: %d", len(res.Content))
	}
}
