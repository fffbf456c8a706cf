// Package llm wraps the text-generation collaborator. Callers treat an empty
// completion as "no opinion" and fall back to deterministic templates; no
// generation failure ever escapes as an error from Generate.
package llm

import (
	"context"
	"regexp"

	"go.uber.org/zap"
)

// Client is the pluggable text-generation backend.
type Client interface {
	// Available reports whether the backend has credentials and can be asked
	// for completions at all.
	Available() bool
	// Generate returns a completion for the prompt pair, or the empty string
	// on any failure (missing credential, network fault, empty response).
	Generate(ctx context.Context, systemPrompt, userPrompt string) string
}

// Unavailable is the deterministic "absent credential" mode: Available is
// false and Generate always returns empty text.
type Unavailable struct{}

func (Unavailable) Available() bool                                 { return false }
func (Unavailable) Generate(context.Context, string, string) string { return "" }

var jsonBlockRe = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractJSONBlock pulls the first {...} block out of a model response that
// may wrap JSON in prose or code fences. Returns the input unchanged when it
// already starts with a brace, and empty when no block is present.
func ExtractJSONBlock(text string) string {
	if text == "" {
		return ""
	}
	return jsonBlockRe.FindString(text)
}

// LogResponse debug-logs a prompt/response exchange for offline inspection of
// model behavior.
func LogResponse(logger *zap.Logger, label, system, user, response string) {
	if logger == nil {
		return
	}
	logger.Debug("llm exchange",
		zap.String("label", label),
		zap.Int("system_len", len(system)),
		zap.Int("user_len", len(user)),
		zap.String("response", truncate(response, 2000)))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...[truncated]"
}
