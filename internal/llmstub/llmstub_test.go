package llmstub

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func post(t *testing.T, srv *httptest.Server, system, user string) chatResponse {
	t.Helper()
	body, _ := json.Marshal(chatRequest{
		Model: "test-model",
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	resp, err := http.Post(srv.URL+"/v1/chat/completions", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestNavigatorSystemInstruction_ReturnsSufficientDecision(t *testing.T) {
	srv := httptest.NewServer(NewHandler("test-model"))
	defer srv.Close()

	resp := post(t, srv,
		"You are a documentation research assistant deciding whether a single fetched page answers a user's question.",
		"Page title: Install Guide\n\nContent:\nsetup steps")

	if len(resp.Choices) != 1 {
		t.Fatalf("expected 1 choice, got %d", len(resp.Choices))
	}
	var decision struct {
		HasSufficientInfo bool   `json:"has_sufficient_info"`
		Summary           string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &decision); err != nil {
		t.Fatalf("decode decision: %v", err)
	}
	if !decision.HasSufficientInfo {
		t.Fatalf("expected has_sufficient_info=true, got %+v", decision)
	}
	if decision.Summary != "Install Guide" {
		t.Fatalf("summary = %q, want %q", decision.Summary, "Install Guide")
	}
}

func TestSynthSystemInstruction_ReturnsMarkdownAnswer(t *testing.T) {
	srv := httptest.NewServer(NewHandler("test-model"))
	defer srv.Close()

	resp := post(t, srv,
		"You are a documentation research assistant producing a final answer from fetched excerpts.",
		"Question: how do I install?\n\nExcerpts:\n...")

	content := resp.Choices[0].Message.Content
	if content == "" {
		t.Fatalf("expected non-empty answer")
	}
	if !bytes.Contains([]byte(content), []byte("how do I install?")) {
		t.Fatalf("expected answer to echo question, got %q", content)
	}
}

func TestUnknownSystemInstruction_Returns400(t *testing.T) {
	srv := httptest.NewServer(NewHandler("test-model"))
	defer srv.Close()

	body, _ := json.Marshal(chatRequest{
		Model:    "test-model",
		Messages: []chatMessage{{Role: "system", Content: "unrelated"}},
	})
	resp, err := http.Post(srv.URL+"/v1/chat/completions", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}
