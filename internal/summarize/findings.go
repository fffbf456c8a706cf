// Package summarize turns raw diagnostic output into operator-facing text:
// findings narratives, direct answers to informational questions, and the
// final content-safety pass.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"deskfix/internal/llm"
	"deskfix/internal/types"
)

const findingsSystemPrompt = `You are a Windows desktop support technician writing a findings report.
Summarize the diagnostic output below for the end user in two or three sentences.
Use passive voice ("the adapter was found to be...", "no errors were observed").
Do not invent facts that the output does not support. Do not recommend third-party software.`

// fallbackFindings is the deterministic per-category summary used when the
// generation collaborator has no opinion.
var fallbackFindings = map[types.IssueType]string{
	types.IssueSystemInfo:  "System inventory was collected; the details are shown above.",
	types.IssueNetwork:     "Network diagnostics were completed; adapter state, IP configuration, and connectivity were checked.",
	types.IssueBluetooth:   "Bluetooth diagnostics were completed; device enumeration and service state were checked.",
	types.IssueDiskSpace:   "Storage diagnostics were completed; drive usage and temporary files were measured.",
	types.IssuePerformance: "Performance diagnostics were completed; top processes, memory, and startup programs were reviewed.",
	types.IssueInstallApp:  "The package manager was checked and the requested application was looked up.",
	types.IssueAccount:     "Account diagnostics were completed for the signed-in user.",
	types.IssueAppError:    "Recent application errors and unresponsive processes were collected.",
}

// Summarizer produces findings text for a diagnosis run.
type Summarizer struct {
	client llm.Client
	logger *zap.Logger
}

func NewSummarizer(client llm.Client, logger *zap.Logger) *Summarizer {
	if client == nil {
		client = llm.Unavailable{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{client: client, logger: logger}
}

// Findings narrates the diagnosis for the user. The generation collaborator
// is preferred when credentials exist and the run produced output; otherwise
// the per-category fallback sentence is returned.
func (s *Summarizer) Findings(ctx context.Context, issueText, sopText string, result types.DiagnosisResult) string {
	combined := result.CombinedOutput()

	if s.client.Available() && strings.TrimSpace(combined) != "" {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Issue: %s\nCategory: %s\n\nDiagnostic output:\n%s\n", issueText, result.IssueType, combined)
		if sopText != "" {
			fmt.Fprintf(&sb, "\nRelevant past resolution:\n%s\n", sopText)
		}
		for _, hit := range result.Evidence.Web {
			fmt.Fprintf(&sb, "\nWeb hint: %s: %s\n", hit.Title, hit.Snippet)
		}
		if findings := strings.TrimSpace(s.client.Generate(ctx, findingsSystemPrompt, sb.String())); findings != "" {
			return findings
		}
		s.logger.Debug("findings generation empty, using fallback")
	}

	if findings, ok := fallbackFindings[result.IssueType]; ok {
		return findings
	}
	return "Diagnostics complete."
}
