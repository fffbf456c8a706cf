package classify

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskfix/internal/types"
)

// scriptedClient returns a canned response for every prompt.
type scriptedClient struct {
	response string
	lastUser string
}

func (s *scriptedClient) Available() bool { return true }

func (s *scriptedClient) Generate(_ context.Context, _, user string) string {
	s.lastUser = user
	return s.response
}

func TestClassifyByRules(t *testing.T) {
	cases := []struct {
		text string
		want types.IssueType
	}{
		{"my wifi keeps dropping every few minutes", types.IssueNetwork},
		{"Bluetooth headphones won't pair", types.IssueBluetooth},
		{"my c drive is full", types.IssueDiskSpace},
		{"the laptop is really slow lately", types.IssuePerformance},
		{"what is my os build number", types.IssueSystemInfo},
		{"I forgot my password and I'm locked out", types.IssueAccount},
		{"Excel keeps crashing on startup", types.IssueAppError},
		{"hi", types.IssueChitchat},
		{"thanks, that fixed it", types.IssueChitchat},
		{"the thing is broken somehow", types.IssueGeneral},
	}

	for _, tc := range cases {
		got, _ := classifyByRules(tc.text)
		assert.Equal(t, tc.want, got, "text: %q", tc.text)
	}
}

func TestClassifyByRulesExtractsAppName(t *testing.T) {
	issueType, app := classifyByRules("Please install Zoom for me")
	assert.Equal(t, types.IssueInstallApp, issueType)
	assert.Equal(t, "zoom", app)

	issueType, app = classifyByRules("install")
	assert.Equal(t, types.IssueInstallApp, issueType)
	assert.Empty(t, app)
}

func TestClassifierUsesModelWhenParseable(t *testing.T) {
	client := &scriptedClient{response: `{"issue_type": "bluetooth", "install_app": ""}`}
	c := NewClassifier(client, nil)

	issueType, app := c.Classify(context.Background(), "my headset is acting up")
	assert.Equal(t, types.IssueBluetooth, issueType)
	assert.Empty(t, app)
}

func TestClassifierFallsBackOnGarbage(t *testing.T) {
	cases := []string{
		"I think this is a network problem.",
		`{"issue_type": "made_up_category"}`,
		"",
	}
	for _, response := range cases {
		c := NewClassifier(&scriptedClient{response: response}, nil)
		issueType, _ := c.Classify(context.Background(), "my wifi is down")
		assert.Equal(t, types.IssueNetwork, issueType, "response: %q", response)
	}
}

func TestClassifierUnavailableClientUsesRules(t *testing.T) {
	c := NewClassifier(nil, nil)
	issueType, _ := c.Classify(context.Background(), "disk almost out of space")
	assert.Equal(t, types.IssueDiskSpace, issueType)
}

func TestTemplatePlanSubstitutesApp(t *testing.T) {
	steps := TemplatePlan(types.IssueInstallApp, "zoom")
	require.Len(t, steps, 2)
	assert.Contains(t, steps[1].Command, `winget search "zoom"`)
	for _, step := range steps {
		assert.NotContains(t, step.Command, AppPlaceholder)
	}
}

func TestTemplatePlanUnresolvedPlaceholderSurvives(t *testing.T) {
	steps := TemplatePlan(types.IssueInstallApp, "")
	require.Len(t, steps, 2)
	assert.Contains(t, steps[1].Command, AppPlaceholder)
}

func TestTemplatePlanDiskSpaceCoversUsageAndTemp(t *testing.T) {
	steps := TemplatePlan(types.IssueDiskSpace, "")
	require.NotEmpty(t, steps)

	var sawUsage, sawTemp bool
	for _, step := range steps {
		if strings.Contains(step.Command, "Get-PSDrive") {
			sawUsage = true
		}
		if strings.Contains(step.Command, "$env:TEMP") {
			sawTemp = true
		}
	}
	assert.True(t, sawUsage, "drive usage step missing")
	assert.True(t, sawTemp, "temp folder step missing")
}

func TestTemplatePlanUnknownTypeFallsBackToGeneral(t *testing.T) {
	assert.Equal(t, TemplatePlan(types.IssueGeneral, ""), TemplatePlan(types.IssueType("bogus"), ""))
}

func TestBuildPlanChitchatShortCircuits(t *testing.T) {
	classifier := NewClassifier(nil, nil)
	planner := NewPlanner(classifier, nil, nil)

	plan := planner.BuildPlan(context.Background(), "hello!", "", nil)
	assert.True(t, plan.IsChat)
	assert.Equal(t, types.IssueChitchat, plan.IssueType)
	assert.Empty(t, plan.Steps)
	assert.NotEmpty(t, plan.Summary)
}

func TestBuildPlanTemplateFallback(t *testing.T) {
	classifier := NewClassifier(nil, nil)
	planner := NewPlanner(classifier, nil, nil)

	plan := planner.BuildPlan(context.Background(), "my wifi is broken", "", nil)
	assert.Equal(t, types.IssueNetwork, plan.IssueType)
	assert.Equal(t, TemplatePlan(types.IssueNetwork, ""), plan.Steps)
	assert.Equal(t, TemplateSummary(types.IssueNetwork), plan.Summary)
	assert.Empty(t, plan.SOPUsed)
}

func TestBuildPlanUsesGeneratedSteps(t *testing.T) {
	client := &scriptedClient{response: `Here is the plan:
{"summary": "Adapter state will be inspected.", "steps": [
  {"description": "Check adapters", "command": "Get-NetAdapter"},
  {"description": "", "command": "  "}
]}`}
	classifier := NewClassifier(&scriptedClient{response: `{"issue_type": "network"}`}, nil)
	planner := NewPlanner(classifier, client, nil)

	plan := planner.BuildPlan(context.Background(), "no internet", "TC-1001: wifi down -> toggled adapter", nil)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "Get-NetAdapter", plan.Steps[0].Command)
	assert.Equal(t, "Adapter state will be inspected.", plan.Summary)
	assert.Equal(t, "TC-1001: wifi down -> toggled adapter", plan.SOPUsed)
	assert.Contains(t, client.lastUser, "Relevant past resolution")
}

func TestBuildPlanEmptyGeneratedStepsFallBack(t *testing.T) {
	client := &scriptedClient{response: `{"summary": "nothing", "steps": []}`}
	classifier := NewClassifier(&scriptedClient{response: `{"issue_type": "network"}`}, nil)
	planner := NewPlanner(classifier, client, nil)

	plan := planner.BuildPlan(context.Background(), "no internet", "", nil)
	assert.Equal(t, TemplatePlan(types.IssueNetwork, ""), plan.Steps)
}
