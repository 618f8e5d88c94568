// Package navigator implements C6 Navigator: a single-page LLM decision
// over a fetched page, grounded on the teacher's internal/planner.go
// JSON-mode-call-with-safe-fallback pattern and on
// original_source/doc2mcp/agents/doc_search.py's _analyze_page procedure.
package navigator

import (
	"context"
	"fmt"
	"strings"

	"github.com/arcturian/docsearch/internal/compress"
	"github.com/arcturian/docsearch/internal/fetch"
	"github.com/arcturian/docsearch/internal/llm"
	"github.com/arcturian/docsearch/internal/textutil"
)

const (
	contentTruncateLimit = 50000
	maxLinksInPrompt     = 50
	maxSuggestedLinks    = 3
)

// LinkSuggestion is one entry of a NavigatorDecision's links_to_explore.
type LinkSuggestion struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// Decision is spec.md §3's NavigatorDecision value type.
type Decision struct {
	HasSufficientInfo bool             `json:"has_sufficient_info"`
	RelevantContent   string           `json:"relevant_content"`
	Summary           string           `json:"summary"`
	LinksToExplore    []LinkSuggestion `json:"links_to_explore"`
}

const systemInstruction = `You are a documentation research assistant deciding whether a single fetched page answers a user's question.
Respond with a JSON object of this exact shape:
{"has_sufficient_info": boolean, "relevant_content": string, "summary": string, "links_to_explore": [{"url": string, "reason": string}]}
Guidelines:
- Be conservative with has_sufficient_info; only set true when the page truly answers the query.
- relevant_content must be extracted verbatim or closely paraphrased from the page, never invented.
- links_to_explore must contain at most 3 entries, most promising first.`

// Navigator is C6. Client is the LLM dependency; Compressor is run at
// analysis aggressiveness before the page content is placed in the prompt.
type Navigator struct {
	Client                 *llm.Client
	Compressor             *compress.Compressor
	Model                  string
	AnalysisAggressiveness float64
}

// Navigate runs the full C6 procedure against a fetched page for query.
func (n *Navigator) Navigate(ctx context.Context, query string, page fetch.Result) Decision {
	content := textutil.Truncate(page.Content, contentTruncateLimit)
	compressed := n.Compressor.Compress(ctx, content, n.AnalysisAggressiveness)

	prompt := buildPrompt(query, page, compressed.OutputText)
	result, err := n.Client.Generate(ctx, prompt, llm.Options{
		SystemInstruction: systemInstruction,
		MaxTokens:         1500,
		Temperature:       0.2,
		JSONMode:          true,
	})
	if err != nil {
		return safeDefault(page)
	}

	var decision Decision
	if err := llm.ExtractJSON(result.Text, &decision); err != nil {
		return safeDefault(page)
	}
	if len(decision.LinksToExplore) > maxSuggestedLinks {
		decision.LinksToExplore = decision.LinksToExplore[:maxSuggestedLinks]
	}
	return decision
}

// safeDefault is spec.md §4.6 step 5's safe default, returned on any parse
// or network failure so navigator failures never propagate up the loop.
func safeDefault(page fetch.Result) Decision {
	return Decision{
		HasSufficientInfo: false,
		RelevantContent:   "",
		Summary:           page.Title,
		LinksToExplore:    nil,
	}
}

func buildPrompt(query string, page fetch.Result, content string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\n", query)
	fmt.Fprintf(&b, "Page URL: %s\nPage title: %s\n\n", page.URL, page.Title)
	b.WriteString("Content:\n")
	b.WriteString(content)
	b.WriteString("\n\nLinks on this page:\n")
	limit := len(page.Links)
	if limit > maxLinksInPrompt {
		limit = maxLinksInPrompt
	}
	for _, l := range page.Links[:limit] {
		fmt.Fprintf(&b, "- [%s](%s)\n", l.Text, l.URL)
	}
	return b.String()
}
