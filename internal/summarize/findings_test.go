package summarize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"deskfix/internal/types"
)

func TestFindingsUsesModelWhenOutputPresent(t *testing.T) {
	client := &scriptedClient{response: "The adapter was found to be disabled."}
	s := NewSummarizer(client, nil)

	result := types.DiagnosisResult{
		IssueType:      types.IssueNetwork,
		CommandResults: []types.CommandResult{{Command: "Get-NetAdapter", Allowed: true, Output: "Status : Disabled"}},
	}
	got := s.Findings(context.Background(), "wifi down", "", result)
	assert.Equal(t, "The adapter was found to be disabled.", got)
}

func TestFindingsFallbackPerCategory(t *testing.T) {
	s := NewSummarizer(nil, nil)
	result := types.DiagnosisResult{IssueType: types.IssueBluetooth}
	got := s.Findings(context.Background(), "headset broken", "", result)
	assert.Equal(t, fallbackFindings[types.IssueBluetooth], got)
}

func TestFindingsEmptyOutputSkipsModel(t *testing.T) {
	client := &scriptedClient{response: "should not be used"}
	s := NewSummarizer(client, nil)
	result := types.DiagnosisResult{IssueType: types.IssueNetwork}
	got := s.Findings(context.Background(), "wifi down", "", result)
	assert.Equal(t, fallbackFindings[types.IssueNetwork], got)
	assert.Zero(t, client.calls)
}

func TestFindingsUnknownCategoryGeneric(t *testing.T) {
	s := NewSummarizer(nil, nil)
	result := types.DiagnosisResult{IssueType: types.IssueChitchat}
	got := s.Findings(context.Background(), "hi", "", result)
	assert.Equal(t, "Diagnostics complete.", got)
}
