package summarize

import (
	"fmt"
	"strconv"
	"strings"

	"deskfix/internal/types"
)

// The extractors below parse PowerShell Format-List output, which is
// colon-delimited "Key : Value" lines with blank lines between objects.
// They are deliberately literal about that format; anything else yields "".

const (
	kibPerGiB   = 1024 * 1024
	bytesPerGiB = 1024 * 1024 * 1024
)

// fieldValue returns the value of the first "Key : Value" line whose key
// matches, case-insensitively.
func fieldValue(output, key string) string {
	for _, value := range fieldValues(output, key) {
		return value
	}
	return ""
}

// fieldValues returns every value for the key, in order of appearance.
func fieldValues(output, key string) []string {
	var values []string
	for _, line := range strings.Split(output, "\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(name), key) {
			continue
		}
		if value = strings.TrimSpace(value); value != "" {
			values = append(values, value)
		}
	}
	return values
}

// outputFor returns the stdout of the first permitted result whose command
// contains the marker.
func outputFor(results []types.CommandResult, marker string) string {
	for _, result := range results {
		if result.Allowed && strings.Contains(result.Command, marker) {
			return result.Output
		}
	}
	return ""
}

// OSBuild answers build-number questions from Get-ComputerInfo output.
func OSBuild(results []types.CommandResult) string {
	build := fieldValue(outputFor(results, "Get-ComputerInfo"), "OsBuildNumber")
	if build == "" {
		return ""
	}
	return fmt.Sprintf("Your Windows build number is %s.", build)
}

// OSVersion answers version questions from Get-ComputerInfo output.
func OSVersion(results []types.CommandResult) string {
	output := outputFor(results, "Get-ComputerInfo")
	name := fieldValue(output, "OsName")
	version := fieldValue(output, "OsVersion")
	if name == "" && version == "" {
		return ""
	}
	if name == "" {
		return fmt.Sprintf("Your Windows version is %s.", version)
	}
	if version == "" {
		return fmt.Sprintf("You are running %s.", name)
	}
	return fmt.Sprintf("You are running %s, version %s.", name, version)
}

// IPAddress answers address questions from Get-NetIPAddress output, ignoring
// loopback and link-local addresses.
func IPAddress(results []types.CommandResult) string {
	var addrs []string
	for _, addr := range fieldValues(outputFor(results, "Get-NetIPAddress"), "IPAddress") {
		if strings.HasPrefix(addr, "127.") || strings.HasPrefix(addr, "169.254.") {
			continue
		}
		addrs = append(addrs, addr)
	}
	switch len(addrs) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("Your IP address is %s.", addrs[0])
	default:
		return fmt.Sprintf("Your IP addresses are %s.", strings.Join(addrs, ", "))
	}
}

// CPUName answers processor questions from Win32_Processor output.
func CPUName(results []types.CommandResult) string {
	name := fieldValue(outputFor(results, "Win32_Processor"), "Name")
	if name == "" {
		return ""
	}
	return fmt.Sprintf("Your processor is %s.", name)
}

// MemoryTotals answers RAM questions from Win32_OperatingSystem output.
// Values come back in kilobytes and are reported in gigabytes.
func MemoryTotals(results []types.CommandResult) string {
	output := outputFor(results, "Win32_OperatingSystem")
	total, okTotal := parseNumber(fieldValue(output, "TotalVisibleMemorySize"))
	if !okTotal {
		return ""
	}
	free, okFree := parseNumber(fieldValue(output, "FreePhysicalMemory"))
	if !okFree {
		return fmt.Sprintf("You have %.1f GB of RAM installed.", total/kibPerGiB)
	}
	return fmt.Sprintf("You have %.1f GB of RAM installed (%.1f GB currently free).", total/kibPerGiB, free/kibPerGiB)
}

// DiskUsage answers storage questions from Get-PSDrive Format-List output.
// Drives reporting zero capacity (optical, empty card readers) are skipped.
func DiskUsage(results []types.CommandResult) string {
	output := outputFor(results, "Get-PSDrive")
	if output == "" {
		return ""
	}

	var lines []string
	for _, block := range strings.Split(output, "\n\n") {
		name := fieldValue(block, "Name")
		used, okUsed := parseNumber(fieldValue(block, "Used"))
		free, okFree := parseNumber(fieldValue(block, "Free"))
		if name == "" || !okUsed || !okFree || used+free == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("Drive %s: has %.1f GB free of %.1f GB total.",
			name, free/bytesPerGiB, (used+free)/bytesPerGiB))
	}
	return strings.Join(lines, "\n")
}

// SystemDetails assembles the composite inventory view from whatever the
// diagnostics managed to collect.
func SystemDetails(results []types.CommandResult) string {
	info := outputFor(results, "Get-ComputerInfo")
	mem := outputFor(results, "Win32_OperatingSystem")

	type row struct{ label, value string }
	rows := []row{
		{"OS", fieldValue(info, "OsName")},
		{"Version", fieldValue(info, "OsVersion")},
		{"Build", fieldValue(info, "OsBuildNumber")},
		{"CPU", fieldValue(outputFor(results, "Win32_Processor"), "Name")},
	}
	if total, ok := parseNumber(fieldValue(mem, "TotalVisibleMemorySize")); ok {
		rows = append(rows, row{"RAM", fmt.Sprintf("%.1f GB", total/kibPerGiB)})
	}
	for _, addr := range fieldValues(outputFor(results, "Get-NetIPAddress"), "IPAddress") {
		if !strings.HasPrefix(addr, "127.") && !strings.HasPrefix(addr, "169.254.") {
			rows = append(rows, row{"IP", addr})
			break
		}
	}

	var sb strings.Builder
	for _, r := range rows {
		if r.value == "" {
			continue
		}
		fmt.Fprintf(&sb, "%-8s: %s\n", r.label, r.value)
	}
	details := strings.TrimRight(sb.String(), "\n")
	if details == "" {
		return ""
	}
	return "Here are your system details:\n" + details
}

func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(s, ",", "")
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
