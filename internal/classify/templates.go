package classify

import (
	"strings"

	"deskfix/internal/types"
)

// AppPlaceholder marks where the extracted application name is substituted
// into install_app template commands. A step still carrying the placeholder
// after substitution fails the action runner's preflight.
const AppPlaceholder = "{app}"

// diagnosticTemplates is the hand-authored, read-only inspection battery per
// category. Commands must not mutate host state; remediation lives in the fix
// tables, never here.
var diagnosticTemplates = map[types.IssueType][]types.PlanStep{
	types.IssueSystemInfo: {
		{Description: "Collect OS name, version, and build", Command: "Get-ComputerInfo | Select-Object OsName, OsVersion, OsBuildNumber | Format-List"},
		{Description: "Collect processor details", Command: "Get-CimInstance Win32_Processor | Select-Object Name | Format-List"},
		{Description: "Collect memory totals", Command: "Get-CimInstance Win32_OperatingSystem | Select-Object TotalVisibleMemorySize, FreePhysicalMemory | Format-List"},
		{Description: "Collect IPv4 addresses", Command: "Get-NetIPAddress -AddressFamily IPv4 | Select-Object IPAddress | Format-List"},
		{Description: "Collect drive usage", Command: "Get-PSDrive -PSProvider FileSystem | Format-List Name, Used, Free"},
	},
	types.IssueNetwork: {
		{Description: "Check adapter status", Command: "Get-NetAdapter | Format-List Name, Status, LinkSpeed"},
		{Description: "Identify the network device", Command: "Get-PnpDevice -Class Net | Format-List FriendlyName, Status, InstanceId"},
		{Description: "Collect IP configuration", Command: "ipconfig /all"},
		{Description: "Test external connectivity", Command: "Test-Connection -ComputerName 8.8.8.8 -Count 2"},
		{Description: "Test name resolution", Command: "Resolve-DnsName example.com"},
		{Description: "Check WLAN service state", Command: "Get-Service WlanSvc | Format-List Name, Status"},
	},
	types.IssueBluetooth: {
		{Description: "Enumerate Bluetooth devices", Command: "Get-PnpDevice -Class Bluetooth | Format-List FriendlyName, Status, InstanceId"},
		{Description: "Check Bluetooth support service", Command: "Get-Service bthserv | Format-List Name, Status"},
	},
	types.IssueDiskSpace: {
		{Description: "Inspect drive usage", Command: "Get-PSDrive -PSProvider FileSystem | Format-List Name, Used, Free"},
		{Description: "Measure temp folder size", Command: "Get-ChildItem $env:TEMP -Recurse -ErrorAction SilentlyContinue | Measure-Object -Property Length -Sum | Format-List Sum"},
	},
	types.IssuePerformance: {
		{Description: "List top CPU consumers", Command: "Get-Process | Sort-Object CPU -Descending | Select-Object -First 5 Name, CPU, WS | Format-List"},
		{Description: "Collect memory totals", Command: "Get-CimInstance Win32_OperatingSystem | Select-Object TotalVisibleMemorySize, FreePhysicalMemory | Format-List"},
		{Description: "List startup programs", Command: "Get-CimInstance Win32_StartupCommand | Select-Object Name, Command | Format-List"},
	},
	types.IssueInstallApp: {
		{Description: "Check package manager availability", Command: "winget --version"},
		{Description: "Search for the requested application", Command: "winget search \"" + AppPlaceholder + "\""},
	},
	types.IssueAccount: {
		{Description: "Identify the signed-in user", Command: "whoami"},
		{Description: "Inspect the local account", Command: "net user $env:USERNAME"},
	},
	types.IssueAppError: {
		{Description: "Collect recent application errors", Command: "Get-WinEvent -LogName Application -MaxEvents 20 | Where-Object { $_.LevelDisplayName -eq 'Error' } | Format-List TimeCreated, ProviderName, Message"},
		{Description: "List unresponsive processes", Command: "Get-Process | Where-Object { -not $_.Responding } | Format-List Name, Id"},
	},
	types.IssueGeneral: {
		{Description: "Collect OS name, version, and build", Command: "Get-ComputerInfo | Select-Object OsName, OsVersion, OsBuildNumber | Format-List"},
		{Description: "Collect recent system errors", Command: "Get-WinEvent -LogName System -MaxEvents 10 | Where-Object { $_.LevelDisplayName -eq 'Error' } | Format-List TimeCreated, ProviderName, Message"},
	},
	types.IssueChitchat: {},
}

// TemplatePlan returns the diagnostic battery for a category with the
// application placeholder resolved. Unknown categories get the general
// battery.
func TemplatePlan(issueType types.IssueType, installApp string) []types.PlanStep {
	steps, ok := diagnosticTemplates[issueType]
	if !ok {
		steps = diagnosticTemplates[types.IssueGeneral]
	}

	out := make([]types.PlanStep, len(steps))
	for i, step := range steps {
		out[i] = step
		if installApp != "" {
			out[i].Command = strings.ReplaceAll(step.Command, AppPlaceholder, installApp)
		}
	}
	return out
}

// templateSummary is the deterministic per-category plan summary used when
// the generation collaborator has no opinion.
var templateSummary = map[types.IssueType]string{
	types.IssueSystemInfo:  "Standard system inventory checks will be run to answer the question.",
	types.IssueNetwork:     "Standard network diagnostics will be run: adapter state, IP configuration, and connectivity.",
	types.IssueBluetooth:   "Standard Bluetooth diagnostics will be run: device enumeration and service state.",
	types.IssueDiskSpace:   "Standard storage diagnostics will be run: drive usage and temp folder size.",
	types.IssuePerformance: "Standard performance diagnostics will be run: top processes, memory, and startup programs.",
	types.IssueInstallApp:  "The package manager will be checked and the requested application looked up.",
	types.IssueAccount:     "Standard account diagnostics will be run for the signed-in user.",
	types.IssueAppError:    "Recent application errors and unresponsive processes will be collected.",
	types.IssueGeneral:     "General system diagnostics will be run.",
}

// ChitchatSummary is the friendly no-op response for small talk.
const ChitchatSummary = "Hi! How can I help you with your Windows issue today?"

// TemplateSummary returns the deterministic plan summary for a category.
func TemplateSummary(issueType types.IssueType) string {
	if issueType == types.IssueChitchat {
		return ChitchatSummary
	}
	if s, ok := templateSummary[issueType]; ok {
		return s
	}
	return templateSummary[types.IssueGeneral]
}
