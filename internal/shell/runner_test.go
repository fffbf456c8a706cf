package shell

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"deskfix/internal/policy"
	"deskfix/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeExecutor records invocations and plays back a canned outcome.
type fakeExecutor struct {
	calls    []string
	outcome  ExecOutcome
	lastWait time.Duration
}

func (f *fakeExecutor) Execute(_ context.Context, command string, timeout time.Duration) ExecOutcome {
	f.calls = append(f.calls, command)
	f.lastWait = timeout
	return f.outcome
}

type captureSink struct {
	results []types.CommandResult
}

func (c *captureSink) RecordCommand(r types.CommandResult) { c.results = append(c.results, r) }

func newTestFilter(t *testing.T, patterns string) *policy.Filter {
	t.Helper()
	path := filepath.Join(t.TempDir(), "denylist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(patterns), 0644))
	f, err := policy.NewFilter(path, zap.NewNop())
	require.NoError(t, err)
	return f
}

func TestRunner_DeniedCommandNeverReachesExecutor(t *testing.T) {
	filter := newTestFilter(t, "commands:\n  - \"format *\"\n")
	exec := &fakeExecutor{}
	sink := &captureSink{}
	runner := NewRunner(filter, exec, sink, zap.NewNop())

	result := runner.Run(context.Background(), "format c: /FS:NTFS")

	assert.False(t, result.Allowed)
	assert.Empty(t, result.Output)
	assert.Equal(t, policy.DenialReason, result.Error)
	assert.Nil(t, result.ReturnCode)
	assert.Empty(t, exec.calls, "executor must not be invoked for denied commands")
	require.Len(t, sink.results, 1)
	assert.False(t, sink.results[0].Allowed)
}

func TestRunner_CapturesTrimmedOutputAndExitCode(t *testing.T) {
	filter := newTestFilter(t, "commands: []\n")
	exec := &fakeExecutor{outcome: ExecOutcome{Stdout: "  OSBuildNumber : 22631  \n", Stderr: "\n", ExitCode: 0}}
	runner := NewRunner(filter, exec, nil, zap.NewNop())

	result := runner.Run(context.Background(), "Get-ComputerInfo")

	assert.True(t, result.Allowed)
	assert.Equal(t, "OSBuildNumber : 22631", result.Output)
	assert.Empty(t, result.Error)
	require.NotNil(t, result.ReturnCode)
	assert.Equal(t, 0, *result.ReturnCode)
	assert.Equal(t, DefaultCommandTimeout, exec.lastWait)
}

func TestRunner_NonZeroExitIsDataNotFault(t *testing.T) {
	filter := newTestFilter(t, "commands: []\n")
	exec := &fakeExecutor{outcome: ExecOutcome{Stderr: "service not found", ExitCode: 1}}
	runner := NewRunner(filter, exec, nil, zap.NewNop())

	result := runner.Run(context.Background(), "Get-Service nope")

	assert.True(t, result.Allowed)
	assert.Equal(t, "service not found", result.Error)
	require.NotNil(t, result.ReturnCode)
	assert.Equal(t, 1, *result.ReturnCode)
}

func TestRunner_TimeoutRecordedAsAttemptedFault(t *testing.T) {
	filter := newTestFilter(t, "commands: []\n")
	exec := &fakeExecutor{outcome: ExecOutcome{Err: context.DeadlineExceeded}}
	runner := NewRunner(filter, exec, nil, zap.NewNop())

	result := runner.Run(context.Background(), "Start-Sleep 120")

	assert.True(t, result.Allowed, "a timeout is a permitted attempt, not a policy rejection")
	assert.Empty(t, result.Output)
	assert.Contains(t, result.Error, "timed out")
	assert.Nil(t, result.ReturnCode)
}

func TestRunner_SpawnFaultCaptured(t *testing.T) {
	filter := newTestFilter(t, "commands: []\n")
	exec := &fakeExecutor{outcome: ExecOutcome{Err: errors.New("exec: \"powershell\": executable file not found")}}
	runner := NewRunner(filter, exec, nil, zap.NewNop())

	result := runner.Run(context.Background(), "Get-Date")

	assert.True(t, result.Allowed)
	assert.Contains(t, result.Error, "not found")
	assert.Nil(t, result.ReturnCode)
}
