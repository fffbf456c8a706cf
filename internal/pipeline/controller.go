// Package pipeline drives the diagnose, fix, execute, verify loop and owns
// the bounded escalation policy that is the system's only retry mechanism.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"deskfix/internal/diagnose"
	"deskfix/internal/fixer"
	"deskfix/internal/summarize"
	"deskfix/internal/types"
)

// Status classifies how a pipeline run ended.
type Status string

const (
	// StatusResolved means the fix was applied and verified, or the issue
	// was informational and answered.
	StatusResolved Status = "resolved"
	// StatusManualRetry means the attempt produced a mixed signal and a
	// human should retry or confirm; no automatic stage advance happens.
	StatusManualRetry Status = "manual_retry"
	// StatusEscalate means every stage was exhausted without success.
	StatusEscalate Status = "escalate"
)

// Outcome is what one Handle call reports to the operator.
type Outcome struct {
	Status         Status
	Message        string
	Diagnosis      types.DiagnosisResult
	Fix            types.FixPlan
	Execution      types.ExecutionResult
	StageReached   int
	FailedCommands []string
}

// Controller runs issues through the pipeline. It is not safe for concurrent
// use; one controller serves one conversation.
type Controller struct {
	diagnoser *diagnose.Agent
	planner   *fixer.Planner
	executor  *fixer.Executor
	gate      *summarize.Gatekeeper
	logger    *zap.Logger
	state     types.EscalationState
}

func NewController(diagnoser *diagnose.Agent, planner *fixer.Planner, executor *fixer.Executor, gate *summarize.Gatekeeper, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		diagnoser: diagnoser,
		planner:   planner,
		executor:  executor,
		gate:      gate,
		logger:    logger,
	}
}

// Stage exposes the current escalation stage.
func (c *Controller) Stage() int {
	if c.state.Stage == 0 {
		return types.MinFixStage
	}
	return c.state.Stage
}

// Handle runs the full cycle for an issue. A new issue text resets the
// escalation state; repeating the same issue after a failed run is treated as
// a manual retry and does not advance the stage on its own. Within one call,
// unverified failures advance the stage and re-run the cycle until stage 4.
func (c *Controller) Handle(ctx context.Context, issueText string) Outcome {
	if c.state.IssueText != issueText {
		c.state = types.NewEscalationState(issueText)
	} else {
		c.state.RetryInProgress = true
	}

	for {
		outcome, done := c.attempt(ctx, issueText)
		if done {
			c.state.RetryInProgress = false
			return outcome
		}
	}
}

// attempt runs one diagnose-fix-verify cycle at the current stage. It reports
// done=false only when the controller should advance and re-run.
func (c *Controller) attempt(ctx context.Context, issueText string) (Outcome, bool) {
	stage := c.Stage()
	result := c.diagnoser.Diagnose(ctx, issueText, stage)

	if result.IssueType == types.IssueChitchat {
		return Outcome{
			Status:       StatusResolved,
			Message:      result.Findings,
			Diagnosis:    result,
			StageReached: stage,
		}, true
	}

	plan := c.planner.Propose(ctx, issueText, result)

	if len(plan.Commands) == 0 {
		answer := c.gate.Finalize(ctx, result.IssueType, issueText, plan.Summary, sourcesText(result.Evidence))
		c.state.Stage = types.MinFixStage
		return Outcome{
			Status:       StatusResolved,
			Message:      answer,
			Diagnosis:    result,
			Fix:          plan,
			StageReached: stage,
		}, true
	}

	execution := c.executor.Apply(ctx, plan)
	outcome := Outcome{
		Diagnosis:      result,
		Fix:            plan,
		Execution:      execution,
		StageReached:   stage,
		FailedCommands: execution.FailedCommands(),
	}

	switch {
	case execution.Success:
		c.state.Stage = types.MinFixStage
		outcome.Status = StatusResolved
		outcome.Message = "The fix was applied and verified. " + execution.VerificationMessage
		return outcome, true

	case execution.Verified:
		outcome.Status = StatusManualRetry
		outcome.Message = "The fix produced a mixed result: " + execution.VerificationMessage +
			" You can retry it manually or report the issue again."
		return outcome, true

	case c.state.RetryInProgress:
		// Manual retries never advance the ladder on their own.
		outcome.Status = StatusManualRetry
		outcome.Message = "The retry did not resolve the issue. " + execution.VerificationMessage
		return outcome, true

	case c.state.Advance():
		c.logger.Info("escalating fix stage",
			zap.Int("stage", c.state.Stage),
			zap.String("issue_type", string(result.IssueType)))
		return Outcome{}, false

	default:
		outcome.Status = StatusEscalate
		outcome.Message = escalationMessage(execution)
		return outcome, true
	}
}

func escalationMessage(execution types.ExecutionResult) string {
	msg := "Automatic remediation is exhausted. Please escalate to a technician."
	if failed := execution.FailedCommands(); len(failed) > 0 {
		msg += fmt.Sprintf(" Commands that produced errors: %s.", strings.Join(failed, "; "))
	}
	return msg
}

// sourcesText renders the evidence for the gatekeeper's citation pass.
func sourcesText(evidence types.Evidence) string {
	var sb strings.Builder
	for _, match := range evidence.Knowledge {
		fmt.Fprintf(&sb, "Past case %s: %s\n", match.ConversationID, match.Issue)
	}
	for _, hit := range evidence.Web {
		fmt.Fprintf(&sb, "%s (%s)\n", hit.Title, hit.URL)
	}
	return strings.TrimSpace(sb.String())
}
