package diagnose

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskfix/internal/action"
	"deskfix/internal/classify"
	"deskfix/internal/policy"
	"deskfix/internal/research"
	"deskfix/internal/shell"
	"deskfix/internal/summarize"
	"deskfix/internal/types"
)

type fakeExecutor struct {
	commands []string
}

func (f *fakeExecutor) Execute(_ context.Context, command string, _ time.Duration) shell.ExecOutcome {
	f.commands = append(f.commands, command)
	return shell.ExecOutcome{Stdout: "Status : Up", ExitCode: 0}
}

func newTestAgent(t *testing.T, exec shell.Executor, patterns ...string) *Agent {
	t.Helper()
	path := filepath.Join(t.TempDir(), "denylist.yaml")
	content := "commands:\n"
	for _, p := range patterns {
		content += "  - \"" + p + "\"\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	filter, err := policy.NewFilter(path, nil)
	require.NoError(t, err)

	aggregator := research.NewAggregator(nil, nil, 0, nil)
	classifier := classify.NewClassifier(nil, nil)
	planner := classify.NewPlanner(classifier, nil, nil)
	runner := action.NewRunner(shell.NewRunner(filter, exec, nil, nil), nil, nil)
	summarizer := summarize.NewSummarizer(nil, nil)
	return NewAgent(aggregator, planner, runner, summarizer, nil)
}

func TestDiagnoseRunsTemplateBattery(t *testing.T) {
	exec := &fakeExecutor{}
	agent := newTestAgent(t, exec)

	result := agent.Diagnose(context.Background(), "my wifi keeps dropping", 1)
	assert.Equal(t, types.IssueNetwork, result.IssueType)
	assert.Equal(t, 1, result.FixStage)

	steps := classify.TemplatePlan(types.IssueNetwork, "")
	require.Len(t, result.CommandResults, len(steps))
	require.Len(t, result.ActionPlan, len(steps))
	assert.Len(t, exec.commands, len(steps))
	assert.NotEmpty(t, result.Findings)
	assert.Empty(t, result.BlockedCommands)
}

func TestDiagnoseRecordsBlockedCommands(t *testing.T) {
	exec := &fakeExecutor{}
	agent := newTestAgent(t, exec, "*test-connection*")

	result := agent.Diagnose(context.Background(), "my wifi keeps dropping", 2)
	require.NotEmpty(t, result.BlockedCommands)
	assert.Contains(t, result.BlockedCommands[0], "Test-Connection")
	assert.Equal(t, 2, result.FixStage)

	// Blocked step still occupies its slot in the audit trail.
	steps := classify.TemplatePlan(types.IssueNetwork, "")
	assert.Len(t, result.CommandResults, len(steps))
}

func TestDiagnoseChitchatShortCircuits(t *testing.T) {
	exec := &fakeExecutor{}
	agent := newTestAgent(t, exec)

	result := agent.Diagnose(context.Background(), "hello!", 1)
	assert.Equal(t, types.IssueChitchat, result.IssueType)
	assert.Empty(t, result.CommandResults)
	assert.Empty(t, exec.commands)
	assert.NotEmpty(t, result.Findings)
}
