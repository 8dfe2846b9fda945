package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a ReplayResult as a human-readable text timeline.
func FormatTimeline(result *ReplayResult) string {
	if len(result.Entries) == 0 {
		return "No entries found.\n"
	}

	var b strings.Builder

	first := formatDateRange(result.Summary.FirstTimestamp)
	last := formatTimeOnly(result.Summary.LastTimestamp)
	b.WriteString(fmt.Sprintf("Decisions | %s–%s UTC\n", first, last))
	b.WriteString(separator + "\n")

	for _, e := range result.Entries {
		ts := formatTimeOnly(e.Timestamp)
		decision := strings.ToUpper(e.Decision)
		subject := truncate(e.Subject, 36)
		margin := ""
		if e.CompositeMargin != nil {
			margin = fmt.Sprintf("m=%.3f", *e.CompositeMargin)
		}
		b.WriteString(fmt.Sprintf("%-10s %-9s %-8s %-36s %-24s %s\n",
			ts, e.Kind, decision, subject, truncate(e.Detail, 24), margin))
	}

	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(result.Summary))

	return b.String()
}

// FormatJSON renders a ReplayResult as indented JSON.
func FormatJSON(result *ReplayResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal replay result: %w", err)
	}
	return string(data), nil
}

func formatDateRange(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatTimeOnly(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}

func formatSummary(s ReplaySummary) string {
	parts := []string{}
	if s.AllowCount > 0 {
		parts = append(parts, fmt.Sprintf("%d allow", s.AllowCount))
	}
	if s.CautionCount > 0 {
		parts = append(parts, fmt.Sprintf("%d caution", s.CautionCount))
	}
	if s.DenyCount > 0 {
		parts = append(parts, fmt.Sprintf("%d deny", s.DenyCount))
	}
	if s.HardDenyCount > 0 {
		parts = append(parts, fmt.Sprintf("%d hard-deny", s.HardDenyCount))
	}

	line := fmt.Sprintf("Summary: %d entries", s.Total)
	if len(parts) > 0 {
		line += " | " + strings.Join(parts, ", ")
	}
	if s.LowestMargin > 0 {
		line += fmt.Sprintf(" | lowest margin %.3f", s.LowestMargin)
	}
	return line + "\n"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
