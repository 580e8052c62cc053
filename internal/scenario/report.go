package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GenerateTimeline renders a human-readable report of a replay
func GenerateTimeline(result *TestResult) string {
	var sb strings.Builder

	sb.WriteString("╔══════════════════════════════════════════════════════════╗\n")
	sb.WriteString(fmt.Sprintf("║  Scenario: %-46s║\n", truncate(result.Scenario.Name, 46)))
	sb.WriteString(fmt.Sprintf("║  User:     %-46s║\n", truncate(result.Scenario.Setup.UserID, 46)))
	sb.WriteString("╚══════════════════════════════════════════════════════════╝\n\n")

	start := result.Scenario.startTime
	for _, entry := range result.Timeline {
		sb.WriteString(fmt.Sprintf("[+%8s] → %-8s: %s\n",
			entry.At.Sub(start).String(),
			entry.Signal,
			entry.Description))
		for _, category := range entry.Events {
			sb.WriteString(fmt.Sprintf("             ! %s\n", category))
		}
		if entry.Escalated {
			sb.WriteString("             ⚠ escalation sent\n")
		}
	}

	sb.WriteString("\n=== Expectations ===\n")
	for _, res := range result.Expectations {
		icon := "✓"
		if !res.Passed {
			icon = "✗"
		}
		sb.WriteString(fmt.Sprintf("  %s %s", icon, res.Expectation.Description))
		if !res.Passed {
			sb.WriteString(": " + res.Reason)
		}
		sb.WriteString("\n")
	}

	status := "PASSED"
	if !result.Passed {
		status = "FAILED"
	}
	sb.WriteString(fmt.Sprintf("\nResult: %s (%d passed, %d failed, %d events, %d escalations)\n",
		status, result.PassedCount, result.FailedCount, len(result.Events), len(result.Escalations)))

	return sb.String()
}

// SaveSummary saves a JSON summary of the replay
func SaveSummary(result *TestResult, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
