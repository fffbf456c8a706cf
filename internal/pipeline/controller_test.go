package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskfix/internal/action"
	"deskfix/internal/classify"
	"deskfix/internal/diagnose"
	"deskfix/internal/fixer"
	"deskfix/internal/policy"
	"deskfix/internal/research"
	"deskfix/internal/shell"
	"deskfix/internal/summarize"
	"deskfix/internal/types"
)

type script struct {
	marker  string
	outcome shell.ExecOutcome
}

// scriptedExecutor matches commands against an ordered script; the first
// matching marker wins.
type scriptedExecutor struct {
	scripts  []script
	commands []string
}

func (s *scriptedExecutor) Execute(_ context.Context, command string, _ time.Duration) shell.ExecOutcome {
	s.commands = append(s.commands, command)
	for _, entry := range s.scripts {
		if strings.Contains(command, entry.marker) {
			return entry.outcome
		}
	}
	return shell.ExecOutcome{ExitCode: 0}
}

func (s *scriptedExecutor) countContaining(marker string) int {
	n := 0
	for _, command := range s.commands {
		if strings.Contains(command, marker) {
			n++
		}
	}
	return n
}

func newController(t *testing.T, exec shell.Executor) *Controller {
	t.Helper()
	path := filepath.Join(t.TempDir(), "denylist.yaml")
	require.NoError(t, os.WriteFile(path, []byte("commands: []\n"), 0o644))
	filter, err := policy.NewFilter(path, nil)
	require.NoError(t, err)
	sh := shell.NewRunner(filter, exec, nil, nil)

	classifier := classify.NewClassifier(nil, nil)
	agent := diagnose.NewAgent(
		research.NewAggregator(nil, nil, 0, nil),
		classify.NewPlanner(classifier, nil, nil),
		action.NewRunner(sh, nil, nil),
		summarize.NewSummarizer(nil, nil),
		nil,
	)
	answerer := summarize.NewAnswerer(nil, nil)
	return NewController(
		agent,
		fixer.NewPlanner(nil, answerer, nil),
		fixer.NewExecutor(sh, nil),
		summarize.NewGatekeeper(nil, nil),
		nil,
	)
}

func TestHandleResolvesWhenFixVerifies(t *testing.T) {
	exec := &scriptedExecutor{scripts: []script{
		{"Get-NetAdapter", shell.ExecOutcome{Stdout: "Name   : Wi-Fi\nStatus : Up"}},
		{"Test-Connection", shell.ExecOutcome{Stdout: "True"}},
	}}
	c := newController(t, exec)

	outcome := c.Handle(context.Background(), "my wifi is down")
	assert.Equal(t, StatusResolved, outcome.Status)
	assert.Equal(t, 1, outcome.StageReached)
	assert.Equal(t, types.MinFixStage, c.Stage())
	assert.Contains(t, outcome.Message, "applied and verified")
	assert.Equal(t, []string{"Restart-Service WlanSvc -Force"}, outcome.Fix.Commands)
}

func TestHandleExhaustsAllFourStages(t *testing.T) {
	exec := &scriptedExecutor{scripts: []script{
		{"Get-NetAdapter | Format-List Name, Status, LinkSpeed", shell.ExecOutcome{Stdout: "Name   : Wi-Fi\nStatus : Disconnected"}},
		{"Get-NetAdapter", shell.ExecOutcome{Stdout: "Name   : Wi-Fi\nStatus : Disconnected"}},
		{"Test-Connection", shell.ExecOutcome{Stdout: "False"}},
	}}
	c := newController(t, exec)

	outcome := c.Handle(context.Background(), "my wifi is down")
	assert.Equal(t, StatusEscalate, outcome.Status)
	assert.Equal(t, types.MaxFixStage, outcome.StageReached)
	assert.Contains(t, outcome.Message, "escalate")

	// The full diagnostic battery ran once per stage.
	assert.Equal(t, 4, exec.countContaining("ipconfig /all"))
	// Stage 2 and 4 power-cycle the adapter found in the diagnostics.
	assert.GreaterOrEqual(t, exec.countContaining(`Disable-NetAdapter -Name "Wi-Fi"`), 2)
	// Stage 4 removed and rescanned the device ladder's last rung.
	assert.Equal(t, 1, exec.countContaining("pnputil /scan-devices"))
}

func TestHandleMixedResultRequestsManualRetry(t *testing.T) {
	exec := &scriptedExecutor{scripts: []script{
		{"Restart-Service WlanSvc", shell.ExecOutcome{Stderr: "Access is denied.", ExitCode: 1}},
		{"Get-NetAdapter", shell.ExecOutcome{Stdout: "Name   : Wi-Fi\nStatus : Up"}},
		{"Test-Connection", shell.ExecOutcome{Stdout: "True"}},
	}}
	c := newController(t, exec)

	outcome := c.Handle(context.Background(), "my wifi is down")
	assert.Equal(t, StatusManualRetry, outcome.Status)
	assert.Equal(t, 1, outcome.StageReached)
	assert.Equal(t, []string{"Restart-Service WlanSvc -Force"}, outcome.FailedCommands)

	// Reporting the same issue again is a manual retry at the same stage.
	outcome = c.Handle(context.Background(), "my wifi is down")
	assert.Equal(t, StatusManualRetry, outcome.Status)
	assert.Equal(t, 1, outcome.StageReached)
}

func TestHandleNewIssueResetsStage(t *testing.T) {
	exec := &scriptedExecutor{scripts: []script{
		{"Restart-Service WlanSvc", shell.ExecOutcome{Stderr: "Access is denied.", ExitCode: 1}},
		{"Get-NetAdapter", shell.ExecOutcome{Stdout: "Status : Up"}},
		{"Test-Connection", shell.ExecOutcome{Stdout: "True"}},
		{"Get-ComputerInfo", shell.ExecOutcome{Stdout: "OsBuildNumber : 22631"}},
	}}
	c := newController(t, exec)

	_ = c.Handle(context.Background(), "my wifi is down")
	outcome := c.Handle(context.Background(), "what is my os build?")
	assert.Equal(t, StatusResolved, outcome.Status)
	assert.Equal(t, 1, outcome.StageReached)
}

func TestHandleInformationalQuestionAnswersDirectly(t *testing.T) {
	exec := &scriptedExecutor{scripts: []script{
		{"Get-ComputerInfo", shell.ExecOutcome{Stdout: "OsName        : Microsoft Windows 11 Pro\nOsBuildNumber : 22631"}},
	}}
	c := newController(t, exec)

	outcome := c.Handle(context.Background(), "what is my os build?")
	assert.Equal(t, StatusResolved, outcome.Status)
	assert.Equal(t, "Your Windows build number is 22631.", outcome.Message)
	assert.Empty(t, outcome.Fix.Commands)
}

func TestHandleChitchat(t *testing.T) {
	exec := &scriptedExecutor{}
	c := newController(t, exec)

	outcome := c.Handle(context.Background(), "hello!")
	assert.Equal(t, StatusResolved, outcome.Status)
	assert.NotEmpty(t, outcome.Message)
	assert.Empty(t, exec.commands)
}
