// Package action executes diagnostic plans through the safety gate and keeps
// the human-readable audit trail of every attempted step.
package action

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"deskfix/internal/classify"
	"deskfix/internal/shell"
	"deskfix/internal/types"
)

// HardwareProbe reports whether hardware of a given class is present on the
// host. A nil probe means no hardware preflight is performed.
type HardwareProbe interface {
	HasBluetooth(ctx context.Context) bool
}

// Runner walks a plan step by step: preflight, safety gate, then execution.
// Skipped and blocked steps still produce a result entry so the audit trail
// and the result slice stay aligned with the plan.
type Runner struct {
	shell  *shell.Runner
	probe  HardwareProbe
	logger *zap.Logger
}

func NewRunner(sh *shell.Runner, probe HardwareProbe, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{shell: sh, probe: probe, logger: logger}
}

// ExecutePlan runs every step of the plan in order. It returns one
// CommandResult per step and the matching audit lines, numbered from 1.
func (r *Runner) ExecutePlan(ctx context.Context, plan types.DiagnosticPlan) ([]types.CommandResult, []string) {
	results := make([]types.CommandResult, 0, len(plan.Steps))
	audit := make([]string, 0, len(plan.Steps))

	for i, step := range plan.Steps {
		if reason := r.preflight(ctx, plan, step); reason != "" {
			result := types.CommandResult{
				Command: step.Command,
				Allowed: false,
				Error:   "Skipped: " + reason,
			}
			results = append(results, result)
			audit = append(audit, fmt.Sprintf("%d. %s [SKIPPED (%s)]", i+1, step.Description, reason))
			r.logger.Info("step skipped",
				zap.String("description", step.Description),
				zap.String("reason", reason))
			continue
		}

		// The shell runner gates the command itself and feeds the audit
		// sink either way, so blocked steps land in the transcript too.
		result := r.shell.Run(ctx, step.Command)
		results = append(results, result)
		if result.Allowed {
			audit = append(audit, fmt.Sprintf("%d. %s [ALLOWED]", i+1, step.Description))
		} else {
			audit = append(audit, fmt.Sprintf("%d. %s [BLOCKED (%s)]", i+1, step.Description, result.Error))
		}
	}

	return results, audit
}

// preflight returns a non-empty skip reason for steps that should never reach
// the safety gate: empty commands, install steps with no resolved
// application, and Bluetooth steps on hosts without a Bluetooth radio.
func (r *Runner) preflight(ctx context.Context, plan types.DiagnosticPlan, step types.PlanStep) string {
	if strings.TrimSpace(step.Command) == "" {
		return "empty command"
	}
	if plan.IssueType == types.IssueInstallApp {
		if plan.InstallApp == "" || strings.Contains(step.Command, classify.AppPlaceholder) {
			return "no application name provided"
		}
	}
	if plan.IssueType == types.IssueBluetooth && r.probe != nil && !r.probe.HasBluetooth(ctx) {
		return "no Bluetooth hardware detected"
	}
	return ""
}

// BlockedCommands returns the commands that were stopped by the safety gate,
// skipped steps excluded.
func BlockedCommands(results []types.CommandResult) []string {
	var blocked []string
	for _, result := range results {
		if !result.Allowed && !strings.HasPrefix(result.Error, "Skipped: ") {
			blocked = append(blocked, result.Command)
		}
	}
	return blocked
}
