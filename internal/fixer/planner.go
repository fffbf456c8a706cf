// Package fixer proposes and applies remediation: staged fix ladders for
// hardware categories, cleanup for storage, and verification probes that
// decide whether a fix actually took.
package fixer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"deskfix/internal/llm"
	"deskfix/internal/summarize"
	"deskfix/internal/types"
)

const fixSystemPrompt = `You are a Windows desktop support technician proposing a remediation.
Given the diagnosis below, propose PowerShell commands that fix the problem.
The escalation stage indicates how invasive you may be: stage 1 restarts
services, stage 2 power-cycles adapters, stage 3 resets the stack, stage 4
removes and redetects devices. Stay within the given stage.
Respond with JSON only: {"summary": "...", "commands": ["...", "..."]}`

type fixResponse struct {
	Summary  string   `json:"summary"`
	Commands []string `json:"commands"`
}

// Planner maps a diagnosis onto a FixPlan: staged remediation commands where
// the category has a ladder, a direct answer where it does not.
type Planner struct {
	client   llm.Client
	answerer *summarize.Answerer
	logger   *zap.Logger
}

func NewPlanner(client llm.Client, answerer *summarize.Answerer, logger *zap.Logger) *Planner {
	if client == nil {
		client = llm.Unavailable{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{client: client, answerer: answerer, logger: logger}
}

// Propose builds the fix plan for a diagnosis. Categories with a remediation
// ladder get commands selected by the escalation stage, preferring generation
// and falling back to the hand-authored tables. Informational categories get
// an empty command set and a direct answer as the summary.
func (p *Planner) Propose(ctx context.Context, issueText string, result types.DiagnosisResult) types.FixPlan {
	plan := types.FixPlan{IssueType: result.IssueType}

	commands, summary := p.tableCommands(result)
	if len(commands) == 0 {
		plan.Summary = p.directAnswer(ctx, issueText, result)
		return plan
	}

	if p.client.Available() {
		if generated, genSummary, ok := p.generateFix(ctx, issueText, result); ok {
			plan.Commands = generated
			plan.Summary = genSummary
			return plan
		}
		p.logger.Debug("fix generation unusable, using remediation table",
			zap.String("issue_type", string(result.IssueType)),
			zap.Int("stage", result.FixStage))
	}

	plan.Commands = commands
	plan.Summary = summary
	return plan
}

func (p *Planner) tableCommands(result types.DiagnosisResult) ([]string, string) {
	switch result.IssueType {
	case types.IssueNetwork:
		return networkFixCommands(result.FixStage,
			adapterNameFromResults(result.CommandResults),
			deviceInstanceFromResults(result.CommandResults))
	case types.IssueBluetooth:
		return bluetoothFixCommands(result.FixStage,
			deviceInstanceFromResults(result.CommandResults))
	case types.IssueDiskSpace:
		return diskSpaceFixCommands()
	case types.IssueInstallApp:
		return installFixCommands(result.InstallApp)
	default:
		return nil, ""
	}
}

func (p *Planner) generateFix(ctx context.Context, issueText string, result types.DiagnosisResult) ([]string, string, bool) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Issue: %s\nCategory: %s\nEscalation stage: %d\n", issueText, result.IssueType, result.FixStage)
	if output := result.CombinedOutput(); output != "" {
		fmt.Fprintf(&sb, "\nDiagnostic output:\n%s\n", output)
	}

	raw := p.client.Generate(ctx, fixSystemPrompt, sb.String())
	block := llm.ExtractJSONBlock(raw)
	if block == "" {
		return nil, "", false
	}

	var parsed fixResponse
	if err := json.Unmarshal([]byte(block), &parsed); err != nil {
		p.logger.Debug("fix JSON parse failed", zap.Error(err))
		return nil, "", false
	}

	var commands []string
	for _, command := range parsed.Commands {
		if command = strings.TrimSpace(command); command != "" {
			commands = append(commands, command)
		}
	}
	if len(commands) == 0 {
		return nil, "", false
	}

	summary := strings.TrimSpace(parsed.Summary)
	if summary == "" {
		summary = "A remediation will be applied."
	}
	return commands, summary, true
}

func (p *Planner) directAnswer(ctx context.Context, issueText string, result types.DiagnosisResult) string {
	if p.answerer != nil {
		return p.answerer.Answer(ctx, issueText, result.CommandResults, result.Evidence)
	}
	if result.Findings != "" {
		return result.Findings
	}
	return summarize.NoDirectAnswer
}
