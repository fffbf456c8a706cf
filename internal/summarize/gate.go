package summarize

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"deskfix/internal/llm"
	"deskfix/internal/types"
)

// RefusalText replaces answers that reference promotional or ad-injected
// content.
const RefusalText = "That suggestion was withheld because it referenced promotional or untrusted content. Please rely on the diagnostic findings above or contact support."

// blockedTerms flag answers polluted by ad content scraped from the web.
// Matching is case-insensitive substring.
var blockedTerms = []string{
	"pc repair tool",
	"speedup",
	"trusted",
	"download",
	"ad_provider",
	"ad_domain",
	"click_metadata",
	"bing.com/aclick",
}

const gateSystemPrompt = `You are reviewing a support answer before it reaches the end user.
Edit it to be neutral and factual, cite the provided sources where relevant,
and remove anything promotional. Return only the edited answer.`

// Gatekeeper is the final content pass before an answer is surfaced.
type Gatekeeper struct {
	client llm.Client
	logger *zap.Logger
}

func NewGatekeeper(client llm.Client, logger *zap.Logger) *Gatekeeper {
	if client == nil {
		client = llm.Unavailable{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gatekeeper{client: client, logger: logger}
}

// Finalize returns the text actually shown to the user. System-info answers
// pass through untouched. Other answers are refused outright when they carry
// a blocked term, then optionally edited by the generation collaborator; if
// editing fails the candidate stands.
func (g *Gatekeeper) Finalize(ctx context.Context, issueType types.IssueType, question, candidate, sources string) string {
	if issueType == types.IssueSystemInfo {
		return candidate
	}

	lowered := strings.ToLower(candidate)
	for _, term := range blockedTerms {
		if strings.Contains(lowered, term) {
			g.logger.Warn("answer refused", zap.String("term", term))
			return RefusalText
		}
	}

	if g.client.Available() {
		prompt := "Question: " + question + "\n\nAnswer:\n" + candidate
		if sources != "" {
			prompt += "\n\nSources:\n" + sources
		}
		if edited := strings.TrimSpace(g.client.Generate(ctx, gateSystemPrompt, prompt)); edited != "" {
			return edited
		}
		g.logger.Debug("gate edit empty, keeping candidate")
	}
	return candidate
}
