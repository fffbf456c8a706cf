package shell

import (
	"context"
	"fmt"
	"strings"
	"time"

	"deskfix/internal/policy"
	"deskfix/internal/types"

	"go.uber.org/zap"
)

// DefaultCommandTimeout bounds every external command.
const DefaultCommandTimeout = 60 * time.Second

// AuditSink receives one entry per command attempt, allowed or not. Session
// transcripts implement this; a nil sink disables auditing.
type AuditSink interface {
	RecordCommand(result types.CommandResult)
}

// Runner executes one command at a time: policy gate first, then the
// executor. A denied command never reaches the executor.
type Runner struct {
	filter  *policy.Filter
	exec    Executor
	timeout time.Duration
	audit   AuditSink
	logger  *zap.Logger
}

// NewRunner wires the gate, the executor, and the audit sink.
func NewRunner(filter *policy.Filter, exec Executor, audit AuditSink, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		filter:  filter,
		exec:    exec,
		timeout: DefaultCommandTimeout,
		audit:   audit,
		logger:  logger,
	}
}

// SetTimeout overrides the per-command timeout.
func (r *Runner) SetTimeout(d time.Duration) {
	if d > 0 {
		r.timeout = d
	}
}

// Run attempts one command. Policy rejections come back with Allowed=false,
// empty output, and the denial reason. Execution faults (spawn error,
// timeout) come back with Allowed=true, empty output, the fault text, and a
// nil return code, distinguishing policy rejection from runtime failure.
func (r *Runner) Run(ctx context.Context, command string) types.CommandResult {
	allowed, reason := r.filter.IsAllowed(command)
	if !allowed {
		r.logger.Info("command blocked", zap.String("command", command), zap.String("reason", reason))
		result := types.CommandResult{Command: command, Allowed: false, Error: reason}
		r.record(result)
		return result
	}

	r.logger.Info("command run", zap.String("command", command))
	outcome := r.exec.Execute(ctx, command, r.timeout)

	if outcome.Err != nil {
		fault := outcome.Err.Error()
		if outcome.Err == context.DeadlineExceeded {
			fault = fmt.Sprintf("command timed out after %s", r.timeout)
		}
		r.logger.Warn("command fault", zap.String("command", command), zap.String("fault", fault))
		result := types.CommandResult{Command: command, Allowed: true, Error: fault}
		r.record(result)
		return result
	}

	code := outcome.ExitCode
	result := types.CommandResult{
		Command:    command,
		Allowed:    true,
		Output:     strings.TrimSpace(outcome.Stdout),
		Error:      strings.TrimSpace(outcome.Stderr),
		ReturnCode: &code,
	}
	r.logger.Debug("command exit",
		zap.String("command", command),
		zap.Int("code", code),
		zap.Int("stdout_bytes", len(result.Output)))
	r.record(result)
	return result
}

func (r *Runner) record(result types.CommandResult) {
	if r.audit != nil {
		r.audit.RecordCommand(result)
	}
}
