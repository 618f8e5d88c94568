// Command docsearch is the CLI entrypoint: load configuration, build the
// search engine, and either run a single search or serve the thin HTTP
// surface, grounded on the teacher's cmd/goresearch/main.go flag parsing
// and zerolog console-writer setup. Flag parsing stays in main(); the rest
// lives in run() so integration tests can call it directly against an
// httptest LLM server, per the teacher's cmd/goresearch/main_test.go
// pattern of testing main.run(cfg) instead of re-invoking the binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/arcturian/docsearch/internal/cache"
	"github.com/arcturian/docsearch/internal/compress"
	"github.com/arcturian/docsearch/internal/config"
	"github.com/arcturian/docsearch/internal/domainindex"
	"github.com/arcturian/docsearch/internal/fetch"
	"github.com/arcturian/docsearch/internal/httpapi"
	"github.com/arcturian/docsearch/internal/llm"
	"github.com/arcturian/docsearch/internal/navigator"
	"github.com/arcturian/docsearch/internal/render"
	"github.com/arcturian/docsearch/internal/searchengine"
	"github.com/arcturian/docsearch/internal/synth"
)

// errMissingLLMCredentials is a configuration error: credentials are checked
// once at construction, before any query runs, never per-query.
var errMissingLLMCredentials = fmt.Errorf("missing LLM credentials: set -llm.key or LLM_API_KEY")

// options holds every CLI-configurable value run() needs, kept separate
// from flag.FlagSet so tests can build one directly without going through
// flag parsing.
type options struct {
	ConfigPath string
	ToolID     string
	Query      string
	LLMBaseURL string
	LLMModel   string
	LLMAPIKey  string
	RenderPDF  string
	ServeAddr  string
	UseBolt    bool
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var opts options
	var verbose bool

	flag.StringVar(&opts.ConfigPath, "config", os.Getenv("TOOLS_CONFIG_PATH"), "Path to tools.yaml")
	flag.StringVar(&opts.ToolID, "tool", "", "Tool id to query (ignored when -serve is set)")
	flag.StringVar(&opts.Query, "query", "", "Natural-language question (ignored when -serve is set)")
	flag.StringVar(&opts.LLMBaseURL, "llm.base", os.Getenv("LLM_BASE_URL"), "OpenAI-compatible base URL")
	flag.StringVar(&opts.LLMModel, "llm.model", os.Getenv("LLM_MODEL"), "Model name")
	flag.StringVar(&opts.LLMAPIKey, "llm.key", os.Getenv("LLM_API_KEY"), "API key for the OpenAI-compatible server")
	flag.StringVar(&opts.RenderPDF, "render-pdf", "", "Optional path to additionally render the answer as a PDF")
	flag.StringVar(&opts.ServeAddr, "serve", "", "If set, serve the HTTP surface on this address instead of running one query")
	flag.BoolVar(&opts.UseBolt, "cache.bolt", false, "Use the embedded bbolt backend instead of the JSON-file page cache")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.Parse()

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	result, err := run(opts, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		if len(result.AvailableTools) > 0 {
			fmt.Fprintf(os.Stderr, "available tools: %v\n", result.AvailableTools)
		}
		// Missing LLM credentials exit 2; every other failure exits 1.
		if errors.Is(err, errMissingLLMCredentials) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// run builds the search engine from opts and either serves the HTTP
// surface (blocking until the server stops) or performs a single search,
// writing the synthesized answer to stdout. It returns the search Result
// so main can report AvailableTools on failure and tests can assert on
// the answer directly without capturing stdout.
func run(opts options, stdout io.Writer) (searchengine.Result, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return searchengine.Result{}, fmt.Errorf("load config: %w", err)
	}

	if strings.TrimSpace(opts.LLMAPIKey) == "" {
		return searchengine.Result{}, errMissingLLMCredentials
	}

	oaiCfg := openai.DefaultConfig(opts.LLMAPIKey)
	if opts.LLMBaseURL != "" {
		oaiCfg.BaseURL = opts.LLMBaseURL
	}
	llmClient := &llm.Client{
		Inner: &llm.OpenAIProvider{Inner: openai.NewClientWithConfig(oaiCfg)},
		Model: opts.LLMModel,
	}

	requestTimeout := time.Duration(cfg.Settings.RequestTimeout) * time.Second
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}

	var pageCache cache.Store
	if opts.UseBolt {
		pageCache, err = cache.OpenBolt(cfg.Settings.CacheDir + "/pages.bolt")
	} else {
		pageCache, err = cache.New(cfg.Settings.CacheDir + "/pages.json")
	}
	if err != nil {
		return searchengine.Result{}, fmt.Errorf("open page cache: %w", err)
	}

	idx, err := domainindex.New(cfg.Settings.CacheDir+"/domainindex.json", domainindex.Options{
		TTL:                time.Duration(cfg.Settings.SitemapIndex.TTLSeconds) * time.Second,
		MaxURLsPerDomain:   cfg.Settings.SitemapIndex.MaxURLsPerDomain,
		ParallelFetchLimit: cfg.Settings.SitemapIndex.ParallelFetchLimit,
		CrawlDepth:         cfg.Settings.SitemapIndex.CrawlDepth,
		MinMatchScore:      cfg.Settings.SitemapIndex.MinMatchScore,
		UserAgent:          cfg.Settings.UserAgent,
		HTTPTimeout:        requestTimeout,
	})
	if err != nil {
		return searchengine.Result{}, fmt.Errorf("open domain index: %w", err)
	}

	fetcher := &fetch.Client{
		HTTPClient:           &http.Client{Timeout: requestTimeout},
		UserAgent:            cfg.Settings.UserAgent,
		MaxAttempts:          1,
		PerRequestTimeout:    requestTimeout,
		RedirectMaxHops:      10,
		MaxConcurrent:        cfg.Settings.SitemapIndex.ParallelFetchLimit,
		ReaderProxyURLPrefix: cfg.Settings.ReaderProxyURL,
	}

	compressor := compress.NewDisabled()
	if cfg.Settings.Compression.Enabled {
		compressor = &compress.Compressor{
			Enabled:          true,
			MinContentLength: cfg.Settings.Compression.MinContentLength,
			ServiceURL:       cfg.Settings.CompressorURL,
			HTTPClient:       &http.Client{Timeout: requestTimeout},
		}
	}

	nav := &navigator.Navigator{
		Client:                 llmClient,
		Compressor:             compressor,
		Model:                  opts.LLMModel,
		AnalysisAggressiveness: cfg.Settings.Compression.AnalysisAggressiveness,
	}
	synthesizer := &synth.Synthesizer{
		Client:         llmClient,
		Compressor:     compressor,
		Aggressiveness: cfg.Settings.Compression.SynthesisAggressiveness,
	}

	engine := &searchengine.Engine{
		Config:    cfg,
		Cache:     pageCache,
		Index:     idx,
		Fetcher:   fetcher,
		Navigator: nav,
		Synth:     synthesizer,
	}

	if opts.ServeAddr != "" {
		srv := &httpapi.Server{Engine: engine, Index: idx, Config: cfg}
		log.Info().Str("addr", opts.ServeAddr).Msg("serving docsearch HTTP surface")
		return searchengine.Result{}, http.ListenAndServe(opts.ServeAddr, srv.NewRouter())
	}

	if opts.ToolID == "" || opts.Query == "" {
		return searchengine.Result{}, fmt.Errorf("usage: docsearch -tool <id> -query <question>  (or -serve <addr>)")
	}

	result := engine.Search(context.Background(), opts.ToolID, opts.Query)
	if closeErr := fetcher.Close(); closeErr != nil {
		log.Warn().Err(closeErr).Msg("close fetcher")
	}
	if result.Error != "" {
		return result, fmt.Errorf("%s", result.Error)
	}

	fmt.Fprintln(stdout, result.Content)
	fmt.Fprintf(os.Stderr, "\n--\npages_explored=%d sitemap_used=%v sitemap_candidates=%d sources=%d\n",
		result.PagesExplored, result.SitemapUsed, result.SitemapCandidates, len(result.Sources))

	if opts.RenderPDF != "" {
		if err := render.WriteSimplePDF(result, opts.RenderPDF); err != nil {
			log.Error().Err(err).Str("path", opts.RenderPDF).Msg("render pdf failed")
		}
	}
	return result, nil
}
