// Package compress implements C4 Compressor: an optional, identity-safe
// token reducer over long content, grounded on
// original_source/doc2mcp/compression.py.
package compress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Result is spec.md §3's ContentCompressionResult value type.
type Result struct {
	OutputText     string
	OriginalTokens int
	OutputTokens   int
	WasCompressed  bool
	Ratio          float64
}

// estimateTokens applies the teacher's internal/budget heuristic of ~4
// characters per token (adapted from internal/budget/budget.go).
func estimateTokens(s string) int {
	if len(s) == 0 {
		return 0
	}
	n := len(s) / 4
	if n == 0 {
		n = 1
	}
	return n
}

// Compressor delegates to an external compression service when enabled and
// the input is long enough; otherwise (or on any failure) it returns the
// identity result. It must never raise across the component boundary
// (spec.md §4.4 / §7 CompressionFailure is always swallowed).
type Compressor struct {
	Enabled          bool
	MinContentLength int
	ServiceURL       string
	HTTPClient       *http.Client
}

// NewDisabled returns a Compressor that always passes content through
// unchanged, for callers that do not configure a compression service.
// Adapted from the Python original's module-level get_compressor()
// singleton, it is an explicit constructor instead of a global: each call
// returns a new instance, and no process-wide default instance is kept.
func NewDisabled() *Compressor {
	return &Compressor{Enabled: false}
}

type serviceRequest struct {
	Text           string  `json:"text"`
	Aggressiveness float64 `json:"aggressiveness"`
}

type serviceResponse struct {
	CompressedText string `json:"compressed_text"`
}

// Compress reduces text at the given aggressiveness in [0,1]. It never
// returns an error: any failure degrades to the identity result, per
// spec.md §7's "CompressionFailure: always swallowed" rule.
func (c *Compressor) Compress(ctx context.Context, text string, aggressiveness float64) Result {
	originalTokens := estimateTokens(text)
	identity := Result{
		OutputText:     text,
		OriginalTokens: originalTokens,
		OutputTokens:   originalTokens,
		WasCompressed:  false,
		Ratio:          1.0,
	}
	if c == nil || !c.Enabled || c.ServiceURL == "" {
		return identity
	}
	if len(text) < c.MinContentLength {
		return identity
	}

	compressed, err := c.callService(ctx, text, aggressiveness)
	if err != nil || compressed == "" {
		return identity
	}
	outTokens := estimateTokens(compressed)
	ratio := 1.0
	if originalTokens > 0 {
		ratio = float64(outTokens) / float64(originalTokens)
	}
	return Result{
		OutputText:     compressed,
		OriginalTokens: originalTokens,
		OutputTokens:   outTokens,
		WasCompressed:  true,
		Ratio:          ratio,
	}
}

func (c *Compressor) callService(ctx context.Context, text string, aggressiveness float64) (string, error) {
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	body, err := json.Marshal(serviceRequest{Text: text, Aggressiveness: aggressiveness})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ServiceURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call compressor: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("compressor status %d", resp.StatusCode)
	}
	var out serviceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return strings.TrimSpace(out.CompressedText), nil
}
