// Package shell executes single commands through the host shell behind the
// policy gate. The Executor interface is the process-execution collaborator;
// HostExecutor is the real implementation and tests substitute fakes.
package shell

import (
	"bytes"
	"context"
	"os/exec"
	"runtime"
	"time"
)

// ExecOutcome is the raw result of one process execution. Non-zero exit codes
// and non-empty stderr are data, not faults; Err is set only for failures to
// run at all (spawn errors, timeouts).
type ExecOutcome struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// Executor runs one command through the host's default interactive shell
// with a bounded timeout.
type Executor interface {
	Execute(ctx context.Context, command string, timeout time.Duration) ExecOutcome
}

// HostExecutor runs commands via PowerShell on Windows and sh elsewhere.
type HostExecutor struct{}

// NewHostExecutor returns the platform shell executor.
func NewHostExecutor() *HostExecutor {
	return &HostExecutor{}
}

// Execute runs command and captures stdout, stderr, and the exit code. A
// deadline overrun surfaces as Err == context.DeadlineExceeded with whatever
// output was captured before the kill.
func (e *HostExecutor) Execute(ctx context.Context, command string, timeout time.Duration) ExecOutcome {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(execCtx, "powershell", "-NoProfile", "-Command", command)
	} else {
		cmd = exec.CommandContext(execCtx, "sh", "-c", command)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	outcome := ExecOutcome{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if execCtx.Err() == context.DeadlineExceeded {
		outcome.Err = context.DeadlineExceeded
		return outcome
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			outcome.ExitCode = exitErr.ExitCode()
			return outcome
		}
		outcome.Err = err
		return outcome
	}

	outcome.ExitCode = 0
	return outcome
}
