package fixer

import (
	"fmt"
	"strings"

	"deskfix/internal/types"
)

// Staged remediation ladders. Stage 1 is the conservative service restart;
// each later stage is more invasive, ending with device removal and rescan at
// stage 4. Stages outside the table clamp to the nearest defined one.

func networkFixCommands(stage int, adapterName, instanceID string) ([]string, string) {
	if adapterName == "" {
		adapterName = "Wi-Fi"
	}
	switch {
	case stage <= 1:
		return []string{
			"Restart-Service WlanSvc -Force",
		}, "The wireless service will be restarted."
	case stage == 2:
		return []string{
			fmt.Sprintf("Disable-NetAdapter -Name \"%s\" -Confirm:$false", adapterName),
			fmt.Sprintf("Enable-NetAdapter -Name \"%s\" -Confirm:$false", adapterName),
			"ipconfig /release",
			"ipconfig /renew",
		}, "The network adapter will be power-cycled and the IP lease renewed."
	case stage == 3:
		return []string{
			fmt.Sprintf("Disable-NetAdapter -Name \"%s\" -Confirm:$false", adapterName),
			"Restart-Service WlanSvc -Force",
			fmt.Sprintf("Enable-NetAdapter -Name \"%s\" -Confirm:$false", adapterName),
			"ipconfig /flushdns",
			"netsh winsock reset",
			"netsh int ip reset",
		}, "A full adapter and service cycle will be performed and the network stack reset."
	default:
		if instanceID == "" {
			return []string{
				fmt.Sprintf("Disable-NetAdapter -Name \"%s\" -Confirm:$false", adapterName),
				fmt.Sprintf("Enable-NetAdapter -Name \"%s\" -Confirm:$false", adapterName),
				"pnputil /scan-devices",
			}, "No device instance was identified; the adapter will be cycled and devices rescanned."
		}
		return []string{
			fmt.Sprintf("pnputil /remove-device \"%s\"", instanceID),
			"pnputil /scan-devices",
		}, "The network device will be removed and redetected."
	}
}

func bluetoothFixCommands(stage int, instanceID string) ([]string, string) {
	switch {
	case stage <= 1:
		return []string{
			"Restart-Service bthserv -Force",
		}, "The Bluetooth support service will be restarted."
	case stage == 2:
		commands := []string{"Restart-Service bthserv -Force"}
		if instanceID != "" {
			commands = append(commands,
				fmt.Sprintf("Disable-PnpDevice -InstanceId \"%s\" -Confirm:$false", instanceID),
				fmt.Sprintf("Enable-PnpDevice -InstanceId \"%s\" -Confirm:$false", instanceID),
			)
		}
		return commands, "The Bluetooth radio will be power-cycled."
	case stage == 3:
		commands := []string{
			"Stop-Service bthserv -Force",
			"Start-Service bthserv",
		}
		if instanceID != "" {
			commands = append(commands,
				fmt.Sprintf("Disable-PnpDevice -InstanceId \"%s\" -Confirm:$false", instanceID),
				fmt.Sprintf("Enable-PnpDevice -InstanceId \"%s\" -Confirm:$false", instanceID),
			)
		}
		return commands, "A full Bluetooth service and device cycle will be performed."
	default:
		if instanceID == "" {
			return []string{
				"Restart-Service bthserv -Force",
				"pnputil /scan-devices",
			}, "No device instance was identified; the service will be restarted and devices rescanned."
		}
		return []string{
			fmt.Sprintf("pnputil /remove-device \"%s\"", instanceID),
			"pnputil /scan-devices",
		}, "The Bluetooth device will be removed and redetected."
	}
}

func diskSpaceFixCommands() ([]string, string) {
	return []string{
		"Remove-Item \"$env:TEMP\\*\" -Recurse -Force -ErrorAction SilentlyContinue",
		"Clear-RecycleBin -Force -ErrorAction SilentlyContinue",
	}, "Temporary files will be removed and the recycle bin cleared. Please confirm before applying."
}

func installFixCommands(app string) ([]string, string) {
	if app == "" {
		return nil, ""
	}
	return []string{
		fmt.Sprintf("winget install --silent --accept-package-agreements --accept-source-agreements \"%s\"", app),
	}, fmt.Sprintf("The application %q will be installed via the package manager.", app)
}

// deviceInstanceFromResults scans prior diagnostic output for the first
// "InstanceId : <id>" line, as produced by Get-PnpDevice Format-List.
func deviceInstanceFromResults(results []types.CommandResult) string {
	for _, result := range results {
		if !result.Allowed || result.Output == "" {
			continue
		}
		for _, line := range strings.Split(result.Output, "\n") {
			name, value, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(name), "InstanceId") {
				if value = strings.TrimSpace(value); value != "" {
					return value
				}
			}
		}
	}
	return ""
}

// adapterNameFromResults scans Get-NetAdapter output for the first named
// adapter. Format-List emits one "Name : <adapter>" line per adapter.
func adapterNameFromResults(results []types.CommandResult) string {
	for _, result := range results {
		if !result.Allowed || !strings.Contains(result.Command, "Get-NetAdapter") {
			continue
		}
		for _, line := range strings.Split(result.Output, "\n") {
			name, value, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(name), "Name") {
				if value = strings.TrimSpace(value); value != "" {
					return value
				}
			}
		}
	}
	return ""
}
