// Command openai-stub serves internal/llmstub as a standalone process, so
// cmd/docsearch can point -llm.base at it in integration tests without a
// real API key.
package main

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/arcturian/docsearch/internal/llmstub"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "test-model"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}

	log.Info().Str("addr", addr).Str("model", model).Msg("serving openai-stub")
	if err := http.ListenAndServe(addr, llmstub.NewHandler(model)); err != nil {
		log.Fatal().Err(err).Msg("openai-stub server")
	}
}
