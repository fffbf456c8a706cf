package fixer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskfix/internal/classify"
	"deskfix/internal/summarize"
	"deskfix/internal/types"
)

type scriptedClient struct {
	response string
}

func (s *scriptedClient) Available() bool { return true }

func (s *scriptedClient) Generate(context.Context, string, string) string { return s.response }

const pnpDeviceOutput = `FriendlyName : Intel(R) Wireless Bluetooth(R)
Status       : Error
InstanceId   : USB\VID_8087&PID_0026\5&2A3B4C5D&0&10`

const netAdapterOutput = `Name      : Wi-Fi
Status    : Disconnected
LinkSpeed : 0 bps`

func bluetoothDiagnosis(stage int) types.DiagnosisResult {
	return types.DiagnosisResult{
		IssueType: types.IssueBluetooth,
		FixStage:  stage,
		CommandResults: []types.CommandResult{
			{Command: "Get-PnpDevice -Class Bluetooth | Format-List FriendlyName, Status, InstanceId", Allowed: true, Output: pnpDeviceOutput},
		},
	}
}

func TestBluetoothLadderEscalates(t *testing.T) {
	p := NewPlanner(nil, nil, nil)

	stage1 := p.Propose(context.Background(), "bluetooth broken", bluetoothDiagnosis(1))
	assert.Equal(t, []string{"Restart-Service bthserv -Force"}, stage1.Commands)

	stage2 := p.Propose(context.Background(), "bluetooth broken", bluetoothDiagnosis(2))
	require.Len(t, stage2.Commands, 3)
	assert.Contains(t, stage2.Commands[1], "Disable-PnpDevice")
	assert.Contains(t, stage2.Commands[1], `USB\VID_8087&PID_0026\5&2A3B4C5D&0&10`)

	stage4 := p.Propose(context.Background(), "bluetooth broken", bluetoothDiagnosis(4))
	require.Len(t, stage4.Commands, 2)
	assert.Contains(t, stage4.Commands[0], "pnputil /remove-device")
	assert.Contains(t, stage4.Commands[0], `USB\VID_8087&PID_0026\5&2A3B4C5D&0&10`)
	assert.Equal(t, "pnputil /scan-devices", stage4.Commands[1])
}

func TestBluetoothStageFourWithoutInstanceFallsBack(t *testing.T) {
	p := NewPlanner(nil, nil, nil)
	diagnosis := types.DiagnosisResult{IssueType: types.IssueBluetooth, FixStage: 4}

	plan := p.Propose(context.Background(), "bluetooth broken", diagnosis)
	for _, command := range plan.Commands {
		assert.NotContains(t, command, "pnputil /remove-device")
	}
}

func TestNetworkLadderUsesAdapterName(t *testing.T) {
	p := NewPlanner(nil, nil, nil)
	diagnosis := types.DiagnosisResult{
		IssueType: types.IssueNetwork,
		FixStage:  2,
		CommandResults: []types.CommandResult{
			{Command: "Get-NetAdapter | Format-List Name, Status, LinkSpeed", Allowed: true, Output: netAdapterOutput},
		},
	}

	plan := p.Propose(context.Background(), "no internet", diagnosis)
	require.Len(t, plan.Commands, 4)
	assert.Contains(t, plan.Commands[0], `Disable-NetAdapter -Name "Wi-Fi"`)
	assert.Equal(t, "ipconfig /renew", plan.Commands[3])
}

func TestNetworkStageFourTargetsDiagnosedDevice(t *testing.T) {
	p := NewPlanner(nil, nil, nil)

	var pnpStep types.PlanStep
	for _, step := range classify.TemplatePlan(types.IssueNetwork, "") {
		if strings.Contains(step.Command, "Get-PnpDevice -Class Net") {
			pnpStep = step
		}
	}
	require.NotEmpty(t, pnpStep.Command, "network battery must query the PnP device")

	diagnosis := types.DiagnosisResult{
		IssueType: types.IssueNetwork,
		FixStage:  4,
		CommandResults: []types.CommandResult{
			{Command: "Get-NetAdapter | Format-List Name, Status, LinkSpeed", Allowed: true, Output: netAdapterOutput},
			{Command: pnpStep.Command, Allowed: true, Output: "FriendlyName : Intel(R) Wi-Fi 6 AX201\nStatus       : Error\nInstanceId   : PCI\\VEN_8086&DEV_A0F0\\3&11583659&0&A3"},
		},
	}

	plan := p.Propose(context.Background(), "no internet", diagnosis)
	require.NotEmpty(t, plan.Commands)
	assert.Contains(t, plan.Commands[0], "pnputil /remove-device")
	assert.Contains(t, plan.Commands[0], `PCI\VEN_8086&DEV_A0F0\3&11583659&0&A3`)
	assert.Equal(t, "pnputil /scan-devices", plan.Commands[len(plan.Commands)-1])
}

func TestNetworkStageFourWithoutInstanceFallsBack(t *testing.T) {
	p := NewPlanner(nil, nil, nil)
	diagnosis := types.DiagnosisResult{
		IssueType: types.IssueNetwork,
		FixStage:  4,
		CommandResults: []types.CommandResult{
			{Command: "Get-NetAdapter | Format-List Name, Status, LinkSpeed", Allowed: true, Output: netAdapterOutput},
		},
	}

	plan := p.Propose(context.Background(), "no internet", diagnosis)
	require.NotEmpty(t, plan.Commands)
	for _, command := range plan.Commands {
		assert.NotContains(t, command, "pnputil /remove-device")
	}
	assert.Contains(t, plan.Commands[len(plan.Commands)-1], "pnputil /scan-devices")
}

func TestNetworkStageOneIsServiceRestart(t *testing.T) {
	p := NewPlanner(nil, nil, nil)
	diagnosis := types.DiagnosisResult{IssueType: types.IssueNetwork, FixStage: 1}

	plan := p.Propose(context.Background(), "no internet", diagnosis)
	assert.Equal(t, []string{"Restart-Service WlanSvc -Force"}, plan.Commands)
}

func TestDiskSpaceCleanupCommands(t *testing.T) {
	p := NewPlanner(nil, nil, nil)
	diagnosis := types.DiagnosisResult{IssueType: types.IssueDiskSpace, FixStage: 1}

	plan := p.Propose(context.Background(), "c drive is full", diagnosis)
	require.Len(t, plan.Commands, 2)
	assert.Contains(t, plan.Commands[0], "$env:TEMP")
	assert.Contains(t, plan.Commands[1], "Clear-RecycleBin")
	assert.Contains(t, plan.Summary, "confirm")
}

func TestInstallPlanRequiresApp(t *testing.T) {
	p := NewPlanner(nil, nil, nil)

	withApp := p.Propose(context.Background(), "install zoom", types.DiagnosisResult{IssueType: types.IssueInstallApp, InstallApp: "zoom"})
	require.Len(t, withApp.Commands, 1)
	assert.Contains(t, withApp.Commands[0], `winget install`)
	assert.Contains(t, withApp.Commands[0], `"zoom"`)

	withoutApp := p.Propose(context.Background(), "install", types.DiagnosisResult{IssueType: types.IssueInstallApp})
	assert.Empty(t, withoutApp.Commands)
}

func TestInformationalCategoryAnswersDirectly(t *testing.T) {
	answerer := summarize.NewAnswerer(nil, nil)
	p := NewPlanner(nil, answerer, nil)

	zero := 0
	diagnosis := types.DiagnosisResult{
		IssueType: types.IssueSystemInfo,
		CommandResults: []types.CommandResult{
			{Command: "Get-ComputerInfo | Format-List", Allowed: true, Output: "OsBuildNumber : 22631", ReturnCode: &zero},
		},
	}

	plan := p.Propose(context.Background(), "what is my os build?", diagnosis)
	assert.Empty(t, plan.Commands)
	assert.Equal(t, "Your Windows build number is 22631.", plan.Summary)
}

func TestProposePrefersGeneratedFix(t *testing.T) {
	client := &scriptedClient{response: `{"summary": "The service will be restarted.", "commands": ["Restart-Service WlanSvc -Force", " "]}`}
	p := NewPlanner(client, nil, nil)

	plan := p.Propose(context.Background(), "no internet", types.DiagnosisResult{IssueType: types.IssueNetwork, FixStage: 3})
	assert.Equal(t, []string{"Restart-Service WlanSvc -Force"}, plan.Commands)
	assert.Equal(t, "The service will be restarted.", plan.Summary)
}

func TestProposeGenerationGarbageFallsBackToTable(t *testing.T) {
	client := &scriptedClient{response: "no json here"}
	p := NewPlanner(client, nil, nil)

	plan := p.Propose(context.Background(), "no internet", types.DiagnosisResult{IssueType: types.IssueNetwork, FixStage: 1})
	assert.Equal(t, []string{"Restart-Service WlanSvc -Force"}, plan.Commands)
}

func TestDeviceInstanceFromResults(t *testing.T) {
	results := []types.CommandResult{
		{Command: "Get-Service bthserv", Allowed: true, Output: "Status : Running"},
		{Command: "Get-PnpDevice", Allowed: true, Output: pnpDeviceOutput},
	}
	assert.Equal(t, `USB\VID_8087&PID_0026\5&2A3B4C5D&0&10`, deviceInstanceFromResults(results))
	assert.Empty(t, deviceInstanceFromResults(nil))
}
