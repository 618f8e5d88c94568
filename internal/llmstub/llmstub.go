// Package llmstub implements a minimal OpenAI-compatible chat-completions
// server for integration tests, grounded on the shape of the teacher's
// cmd/openai-stub request/response structs but matching the system
// instructions internal/navigator and internal/synth actually send
// (navigator.systemInstruction / synth.systemInstruction) instead of the
// teacher's planner/report/verifier prompts.
package llmstub

import (
	"encoding/json"
	"net/http"
	"strings"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

// NewHandler returns an http.Handler serving enough of the OpenAI chat
// completions API for cmd/docsearch's navigator and synthesizer calls to
// round-trip against a real HTTP server without a real API key.
func NewHandler(model string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"id": model}},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var system, user string
		for _, m := range req.Messages {
			switch m.Role {
			case "system":
				system = m.Content
			case "user":
				user = m.Content
			}
		}

		var content string
		switch {
		case strings.Contains(system, "deciding whether a single fetched page answers"):
			content = navigatorDecision(user)
		case strings.Contains(system, "producing a final answer from fetched excerpts"):
			content = synthAnswer(user)
		default:
			http.Error(w, "unexpected system instruction", http.StatusBadRequest)
			return
		}

		resp := chatResponse{
			ID:      "stub",
			Model:   model,
			Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: content}}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	return mux
}

// navigatorDecision always reports the fetched page as sufficient, echoing
// the page title the navigator prompt embedded so a test can assert the
// stub actually parsed the request it was given rather than guessing.
func navigatorDecision(prompt string) string {
	title := extractLine(prompt, "Page title: ")
	decision := map[string]any{
		"has_sufficient_info": true,
		"relevant_content":    "Stubbed relevant content for " + title,
		"summary":             title,
		"links_to_explore":    []any{},
	}
	b, _ := json.Marshal(decision)
	return string(b)
}

// synthAnswer echoes the question back in a minimal markdown answer so a
// test can assert the synthesis call round-tripped.
func synthAnswer(prompt string) string {
	q := extractLine(prompt, "Question: ")
	return "# Answer\n\nStubbed answer for: " + q
}

func extractLine(text, prefix string) string {
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimPrefix(line, prefix)
		}
	}
	return ""
}
