package fixer

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"deskfix/internal/shell"
	"deskfix/internal/types"
)

// SkippedVerification is reported for categories without a specific probe.
const SkippedVerification = "Verification skipped; please confirm the issue is resolved."

// Executor applies fix plans and verifies the outcome. Every command runs in
// order with no early abort, so partial application is possible and fully
// reported.
type Executor struct {
	shell  *shell.Runner
	logger *zap.Logger
}

func NewExecutor(sh *shell.Runner, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{shell: sh, logger: logger}
}

// Apply runs the plan and the category's verification probe. Success requires
// both an error-free run and a passing probe. Blocked commands count as
// errors here: a fix that the safety gate refused was not applied.
func (e *Executor) Apply(ctx context.Context, plan types.FixPlan) types.ExecutionResult {
	if len(plan.Commands) == 0 {
		return types.ExecutionResult{
			Success:             true,
			Verified:            true,
			VerificationMessage: "No remediation commands to apply.",
		}
	}

	var out types.ExecutionResult
	hadErrors := false
	for _, command := range plan.Commands {
		result := e.shell.Run(ctx, command)
		out.CommandResults = append(out.CommandResults, result)
		if result.Error != "" || (result.ReturnCode != nil && *result.ReturnCode != 0) {
			hadErrors = true
		}
	}

	out.Verified, out.VerificationMessage = e.verify(ctx, plan.IssueType)
	out.Success = !hadErrors && out.Verified
	e.logger.Info("fix applied",
		zap.String("issue_type", string(plan.IssueType)),
		zap.Bool("had_errors", hadErrors),
		zap.Bool("verified", out.Verified))
	return out
}

// verify runs the category-specific post-condition probe.
func (e *Executor) verify(ctx context.Context, issueType types.IssueType) (bool, string) {
	switch issueType {
	case types.IssueBluetooth:
		return e.verifyBluetooth(ctx)
	case types.IssueNetwork:
		return e.verifyNetwork(ctx)
	case types.IssueDiskSpace:
		return e.verifyDiskSpace(ctx)
	default:
		return true, SkippedVerification
	}
}

func (e *Executor) verifyBluetooth(ctx context.Context) (bool, string) {
	device := e.shell.Run(ctx, "Get-PnpDevice -Class Bluetooth | Format-List FriendlyName, Status")
	service := e.shell.Run(ctx, "Get-Service bthserv | Format-List Name, Status")

	deviceOK := hasFieldValue(device.Output, "Status", "OK")
	serviceOK := hasFieldValue(service.Output, "Status", "Running")
	if deviceOK && serviceOK {
		return true, "Bluetooth device reports OK and the support service is running."
	}
	return false, "Bluetooth device or service is still unhealthy."
}

func (e *Executor) verifyNetwork(ctx context.Context) (bool, string) {
	adapter := e.shell.Run(ctx, "Get-NetAdapter | Format-List Name, Status")
	ping := e.shell.Run(ctx, "Test-Connection -ComputerName 8.8.8.8 -Count 1 -Quiet")

	adapterUp := hasFieldValue(adapter.Output, "Status", "Up")
	connected := strings.EqualFold(strings.TrimSpace(ping.Output), "True")
	if adapterUp && connected {
		return true, "A network adapter is up and external connectivity was confirmed."
	}
	return false, "The network adapter or connectivity check still fails."
}

func (e *Executor) verifyDiskSpace(ctx context.Context) (bool, string) {
	drive := e.shell.Run(ctx, "Get-PSDrive C | Format-List Free")
	for _, line := range strings.Split(drive.Output, "\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "Free") {
			continue
		}
		if strings.TrimSpace(value) != "" && strings.TrimSpace(value) != "0" {
			return true, "Free space is available on drive C."
		}
	}
	return false, "Drive C still reports no free space."
}

// hasFieldValue reports whether any "key : value" line in the output carries
// the wanted value, case-insensitively.
func hasFieldValue(output, key, want string) bool {
	for _, line := range strings.Split(output, "\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(name), key) && strings.EqualFold(strings.TrimSpace(value), want) {
			return true
		}
	}
	return false
}
