// Package llm provides the provider-agnostic C5 LLMClient contract, adapted
// from the teacher's internal/llm/provider.go Client interface.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ChatClient is the minimal interface needed to call a chat model, mirroring
// the teacher's llm.Client so any OpenAI-compatible or local backend adapts
// to it unchanged.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ModelLister is an optional capability; providers that lack it are used
// via a type assertion, exactly as the teacher's ModelLister does.
type ModelLister interface {
	ListModels(ctx context.Context) (openai.ModelsList, error)
}

// Result is the generate() return shape named by spec.md §4.5.
type Result struct {
	Text      string
	TokensIn  int
	TokensOut int
	Model     string
}

// Options configures a single generate() call.
type Options struct {
	SystemInstruction string
	MaxTokens         int
	Temperature       float32
	JSONMode          bool
}

// Client wraps a ChatClient and a model name, exposing the single
// generate(prompt, system, opts) -> {text, tokens_in, tokens_out, model}
// operation spec.md §4.5 requires. Navigator and Synthesizer depend only on
// this type, not on openai types directly, so a future non-OpenAI provider
// only needs to satisfy ChatClient.
type Client struct {
	Inner ChatClient
	Model string
}

// OpenAIProvider adapts *openai.Client to ChatClient/ModelLister, copied in
// spirit from the teacher's OpenAIProvider.
type OpenAIProvider struct {
	Inner *openai.Client
}

func (p *OpenAIProvider) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return p.Inner.CreateChatCompletion(ctx, request)
}

func (p *OpenAIProvider) ListModels(ctx context.Context) (openai.ModelsList, error) {
	return p.Inner.ListModels(ctx)
}

// Generate issues a single chat completion. When opts.JSONMode is set it
// requests the provider's native JSON response-format hint; resolving
// SPEC_FULL.md's OQ3, callers should still run the output through
// ExtractJSON rather than assuming every provider advertises JSON mode.
func (c *Client) Generate(ctx context.Context, prompt string, opts Options) (Result, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if opts.SystemInstruction != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: opts.SystemInstruction,
		})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:       c.Model,
		Messages:    msgs,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	if opts.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.Inner.CreateChatCompletion(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("generate: empty response")
	}
	return Result{
		Text:      resp.Choices[0].Message.Content,
		TokensIn:  resp.Usage.PromptTokens,
		TokensOut: resp.Usage.CompletionTokens,
		Model:     resp.Model,
	}, nil
}

var fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*\\})\\s*```")
var bareObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractJSON implements the schema-tolerant fallback parser SPEC_FULL.md's
// OQ3 resolution calls for: try strict unmarshal first, then a fenced code
// block, then the first balanced-looking {...} span, following the
// cleanup idiom the teacher's internal/planner uses on planner JSON output.
func ExtractJSON(text string, v any) error {
	trimmed := strings.TrimSpace(text)
	if err := json.Unmarshal([]byte(trimmed), v); err == nil {
		return nil
	}
	if m := fencedJSONRe.FindStringSubmatch(trimmed); len(m) == 2 {
		if err := json.Unmarshal([]byte(m[1]), v); err == nil {
			return nil
		}
	}
	if m := bareObjectRe.FindString(trimmed); m != "" {
		if err := json.Unmarshal([]byte(m), v); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no valid JSON object found in model output")
}
