// Package diagnose runs one full diagnostic pass: gather evidence, build the
// plan, execute it through the safety gate, and narrate the findings.
package diagnose

import (
	"context"

	"go.uber.org/zap"

	"deskfix/internal/action"
	"deskfix/internal/classify"
	"deskfix/internal/research"
	"deskfix/internal/summarize"
	"deskfix/internal/types"
)

// Agent owns the diagnose phase of the pipeline.
type Agent struct {
	aggregator *research.Aggregator
	planner    *classify.Planner
	runner     *action.Runner
	summarizer *summarize.Summarizer
	logger     *zap.Logger
}

func NewAgent(aggregator *research.Aggregator, planner *classify.Planner, runner *action.Runner, summarizer *summarize.Summarizer, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		aggregator: aggregator,
		planner:    planner,
		runner:     runner,
		summarizer: summarizer,
		logger:     logger,
	}
}

// Diagnose executes one diagnostic run at the given escalation stage. Small
// talk short-circuits with no commands. The returned result carries
// everything the fix planner needs: command output, evidence, blocked
// commands, and the stage.
func (a *Agent) Diagnose(ctx context.Context, issueText string, stage int) types.DiagnosisResult {
	// Classification happens inside plan building, so evidence is fetched
	// with a provisional type derived from keywords. The aggregator only
	// uses the type to decide whether web search applies.
	provisionalType, _ := classify.Preclassify(issueText)
	evidence := a.aggregator.Fetch(ctx, issueText, provisionalType)
	sop := research.SelectSOP(evidence.Knowledge)

	plan := a.planner.BuildPlan(ctx, issueText, sop, evidence.Web)
	plan.Evidence = evidence

	a.logger.Info("diagnosis planned",
		zap.String("issue_type", string(plan.IssueType)),
		zap.Int("steps", len(plan.Steps)),
		zap.Int("stage", stage),
		zap.Bool("chitchat", plan.IsChat))

	if plan.IsChat {
		return types.DiagnosisResult{
			IssueType: plan.IssueType,
			Findings:  plan.Summary,
			Evidence:  evidence,
			FixStage:  stage,
		}
	}

	results, audit := a.runner.ExecutePlan(ctx, plan)

	result := types.DiagnosisResult{
		IssueType:       plan.IssueType,
		ActionPlan:      audit,
		CommandResults:  results,
		InstallApp:      plan.InstallApp,
		Evidence:        evidence,
		BlockedCommands: action.BlockedCommands(results),
		FixStage:        stage,
	}
	result.Findings = a.summarizer.Findings(ctx, issueText, sop, result)
	return result
}
