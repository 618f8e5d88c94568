// Package config loads the tool/source configuration described in SPEC_FULL.md §6.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SourceKind discriminates the Source union. Go has no sum types, so the
// union is modeled as a tagged struct with kind-specific fields left zero
// for the kind that does not apply, matching the teacher's preference for
// flat config structs over polymorphic interfaces (see internal/app/config.go).
type SourceKind string

const (
	SourceWeb   SourceKind = "web"
	SourceLocal SourceKind = "local"
)

// Source is a discriminated union of WebSource and LocalSource, grounded on
// original_source/doc2mcp/config.py's `Source = WebSource | LocalSource`.
type Source struct {
	Type SourceKind `yaml:"type"`

	// Web fields.
	URL        string            `yaml:"url,omitempty"`
	Selectors  map[string]string `yaml:"selectors,omitempty"`
	SitemapURL string            `yaml:"sitemap_url,omitempty"`
	IndexDepth int               `yaml:"index_depth,omitempty"`

	// Local fields.
	Path     string   `yaml:"path,omitempty"`
	Patterns []string `yaml:"patterns,omitempty"`
}

// IsWeb reports whether this source is a WebSource.
func (s Source) IsWeb() bool { return s.Type == SourceWeb }

// IsLocal reports whether this source is a LocalSource.
func (s Source) IsLocal() bool { return s.Type == SourceLocal }

// Normalize fills in defaults the way the Python original's pydantic field
// defaults did (index_depth=3, patterns=["*.md","*.txt"]).
func (s *Source) Normalize() {
	if s.Type == "" {
		s.Type = SourceWeb
	}
	if s.Type == SourceWeb && s.IndexDepth == 0 {
		s.IndexDepth = 3
	}
	if s.Type == SourceLocal && len(s.Patterns) == 0 {
		s.Patterns = []string{"*.md", "*.txt"}
	}
}

// ToolConfig names one documentation corpus.
type ToolConfig struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Sources     []Source `yaml:"sources"`
}

// CompressionSettings tunes C4 Compressor.
type CompressionSettings struct {
	Enabled                 bool    `yaml:"enabled"`
	Aggressiveness          float64 `yaml:"aggressiveness"`
	MinContentLength        int     `yaml:"min_content_length"`
	AnalysisAggressiveness  float64 `yaml:"analysis_aggressiveness"`
	SynthesisAggressiveness float64 `yaml:"synthesis_aggressiveness"`
}

// SitemapIndexSettings tunes C3 DomainIndex.
type SitemapIndexSettings struct {
	Enabled            bool    `yaml:"enabled"`
	TTLSeconds         int     `yaml:"ttl"`
	MaxURLsPerDomain   int     `yaml:"max_urls_per_domain"`
	ParallelFetchLimit int     `yaml:"parallel_fetch_limit"`
	MinMatchScore      float64 `yaml:"min_match_score"`
	MaxURLCandidates   int     `yaml:"max_url_candidates"`
	CrawlDepth         int     `yaml:"crawl_depth"`
}

// Settings are global tuning knobs, see SPEC_FULL.md §6.
type Settings struct {
	MaxContentLength int                  `yaml:"max_content_length"`
	CacheTTLSeconds  int                  `yaml:"cache_ttl"`
	RequestTimeout   int                  `yaml:"request_timeout"`
	Compression      CompressionSettings  `yaml:"compression"`
	SitemapIndex     SitemapIndexSettings `yaml:"sitemap_index"`
	ReaderProxyURL   string               `yaml:"reader_proxy_url"`
	CompressorURL    string               `yaml:"compressor_url"`
	UserAgent        string               `yaml:"user_agent"`
	CacheDir         string               `yaml:"cache_dir"`
}

// Config is the root document.
type Config struct {
	Tools    map[string]ToolConfig `yaml:"tools"`
	Settings Settings              `yaml:"settings"`
}

// Default returns a Config with every default spec.md §6 names.
func Default() Config {
	return Config{
		Tools: map[string]ToolConfig{},
		Settings: Settings{
			MaxContentLength: 50000,
			CacheTTLSeconds:  3600,
			RequestTimeout:   30,
			UserAgent:        "docsearch/1.0 (+https://github.com/arcturian/docsearch)",
			CacheDir:         "./.docsearch_cache",
			Compression: CompressionSettings{
				Enabled:                 true,
				Aggressiveness:          0.5,
				MinContentLength:        1000,
				AnalysisAggressiveness:  0.4,
				SynthesisAggressiveness: 0.3,
			},
			SitemapIndex: SitemapIndexSettings{
				Enabled:            true,
				TTLSeconds:         86400,
				MaxURLsPerDomain:   1000,
				ParallelFetchLimit: 10,
				MinMatchScore:      1.0,
				MaxURLCandidates:   5,
				CrawlDepth:         3,
			},
		},
	}
}

// Load reads YAML config from path. Following original_source/doc2mcp/config.py's
// load_config, a missing file yields a valid empty-tools Default(), not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("TOOLS_CONFIG_PATH")
	}
	if path == "" {
		path = "./tools.yaml"
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	// Overlay semantics: decode onto the defaulted struct so unset YAML
	// fields keep their zero-value-safe defaults, following the teacher's
	// internal/app/config_file.go overlay approach.
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", filepath.Base(path), err)
	}
	for id, tool := range cfg.Tools {
		for i := range tool.Sources {
			tool.Sources[i].Normalize()
		}
		cfg.Tools[id] = tool
	}
	return cfg, nil
}
