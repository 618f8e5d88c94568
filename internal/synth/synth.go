// Package synth implements C7 Synthesizer: the terminal LLM pass over
// accumulated excerpts, adapted from the teacher's internal/synth.go
// (system-message/user-message construction and ChatClient abstraction
// kept; citation/outline/brief machinery dropped since SPEC_FULL.md's
// Synthesizer works over URL-labelled source excerpts, not a report brief).
package synth

import (
	"context"
	"fmt"
	"strings"

	"github.com/arcturian/docsearch/internal/compress"
	"github.com/arcturian/docsearch/internal/llm"
	"github.com/arcturian/docsearch/internal/textutil"
)

const joinTruncateLimit = 100000

const systemInstruction = `You are a documentation research assistant producing a final answer from fetched excerpts.
Preserve code blocks and API signatures verbatim.
Reference the sources you draw from by URL.
Flag any information the sources do not cover as missing rather than inventing facts.`

// Excerpt is one collected {url, content} pair accumulated by the
// exploration loop, spec.md §4.7's "collected excerpt".
type Excerpt struct {
	URL     string
	Content string
}

// Synthesizer is C7.
type Synthesizer struct {
	Client         *llm.Client
	Compressor     *compress.Compressor
	Aggressiveness float64
}

// Synthesize joins excerpts as "## Source: {url}\n\n{content}" separated by
// "\n\n---\n\n", truncates at 100,000 characters, compresses at synthesis
// aggressiveness, and invokes the LLM in free-form mode, exactly per
// spec.md §4.7.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, excerpts []Excerpt) (string, error) {
	var parts []string
	for _, e := range excerpts {
		parts = append(parts, fmt.Sprintf("## Source: %s\n\n%s", e.URL, e.Content))
	}
	joined := textutil.Truncate(strings.Join(parts, "\n\n---\n\n"), joinTruncateLimit)
	compressed := s.Compressor.Compress(ctx, joined, s.Aggressiveness)

	prompt := fmt.Sprintf("Question: %s\n\nExcerpts:\n\n%s", query, compressed.OutputText)
	result, err := s.Client.Generate(ctx, prompt, llm.Options{
		SystemInstruction: systemInstruction,
		MaxTokens:         4000,
		Temperature:       0.2,
	})
	if err != nil {
		return "", fmt.Errorf("synthesis call: %w", err)
	}
	return strings.TrimSpace(result.Text), nil
}
