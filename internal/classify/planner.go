package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"deskfix/internal/llm"
	"deskfix/internal/types"
)

const planSystemPrompt = `You are a Windows desktop support technician planning read-only diagnostics.
Given the user's issue, propose shell commands (PowerShell) that inspect the system without changing it.
Never propose commands that delete files, stop services, modify the registry, or restart the machine.
Respond with JSON only: {"summary": "...", "steps": [{"description": "...", "command": "..."}]}`

type planResponse struct {
	Summary string `json:"summary"`
	Steps   []struct {
		Description string `json:"description"`
		Command     string `json:"command"`
	} `json:"steps"`
}

// Planner turns an issue report plus gathered evidence into a DiagnosticPlan.
type Planner struct {
	classifier *Classifier
	client     llm.Client
	logger     *zap.Logger
}

func NewPlanner(classifier *Classifier, client llm.Client, logger *zap.Logger) *Planner {
	if client == nil {
		client = llm.Unavailable{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{classifier: classifier, client: client, logger: logger}
}

// BuildPlan classifies the issue and produces the diagnostic plan for it.
// Small talk gets a friendly summary and no commands. When the generation
// collaborator is unavailable or unusable, the per-category template battery
// is used instead.
func (p *Planner) BuildPlan(ctx context.Context, issueText, sopText string, web []types.WebHit) types.DiagnosticPlan {
	issueType, installApp := p.classifier.Classify(ctx, issueText)

	plan := types.DiagnosticPlan{
		IssueType:  issueType,
		InstallApp: installApp,
		SOPUsed:    sopText,
	}

	if issueType == types.IssueChitchat {
		plan.IsChat = true
		plan.Summary = ChitchatSummary
		return plan
	}

	if p.client.Available() {
		if steps, summary, ok := p.generatePlan(ctx, issueText, issueType, installApp, sopText, web); ok {
			plan.Steps = steps
			plan.Summary = summary
			return plan
		}
		p.logger.Debug("plan generation unusable, using template battery",
			zap.String("issue_type", string(issueType)))
	}

	plan.Steps = TemplatePlan(issueType, installApp)
	plan.Summary = TemplateSummary(issueType)
	return plan
}

func (p *Planner) generatePlan(ctx context.Context, issueText string, issueType types.IssueType, installApp, sopText string, web []types.WebHit) ([]types.PlanStep, string, bool) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Issue: %s\nCategory: %s\n", issueText, issueType)
	if installApp != "" {
		fmt.Fprintf(&sb, "Requested application: %s\n", installApp)
	}
	if sopText != "" {
		fmt.Fprintf(&sb, "Relevant past resolution:\n%s\n", sopText)
	}
	for _, hit := range web {
		fmt.Fprintf(&sb, "Web hint: %s: %s\n", hit.Title, hit.Snippet)
	}

	raw := p.client.Generate(ctx, planSystemPrompt, sb.String())
	block := llm.ExtractJSONBlock(raw)
	if block == "" {
		return nil, "", false
	}

	var parsed planResponse
	if err := json.Unmarshal([]byte(block), &parsed); err != nil {
		p.logger.Debug("plan JSON parse failed", zap.Error(err))
		return nil, "", false
	}

	var steps []types.PlanStep
	for _, step := range parsed.Steps {
		command := strings.TrimSpace(step.Command)
		if command == "" {
			continue
		}
		desc := strings.TrimSpace(step.Description)
		if desc == "" {
			desc = "Run diagnostic command"
		}
		steps = append(steps, types.PlanStep{Description: desc, Command: command})
	}
	if len(steps) == 0 {
		return nil, "", false
	}

	summary := strings.TrimSpace(parsed.Summary)
	if summary == "" {
		summary = TemplateSummary(issueType)
	}
	return steps, summary, true
}
