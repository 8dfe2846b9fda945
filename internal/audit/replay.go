package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// TimestampFormat is the layout used in audit entry timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// ReplayFilter holds filtering criteria. Empty fields match everything.
type ReplayFilter struct {
	TraceID string
	Subject string
	Kind    string
	From    time.Time // zero value = no lower bound
	To      time.Time // zero value = no upper bound
}

func (f ReplayFilter) match(e AuditEntry) bool {
	if f.TraceID != "" && e.TraceID != f.TraceID {
		return false
	}
	if f.Subject != "" && e.Subject != f.Subject {
		return false
	}
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if !f.From.IsZero() || !f.To.IsZero() {
		ts, err := time.Parse(TimestampFormat, e.Timestamp)
		if err != nil {
			return false
		}
		if !f.From.IsZero() && ts.Before(f.From) {
			return false
		}
		if !f.To.IsZero() && ts.After(f.To) {
			return false
		}
	}
	return true
}

// ReplaySummary holds decision counts for the replayed entries.
type ReplaySummary struct {
	Total          int     `json:"total"`
	AllowCount     int     `json:"allow_count"`
	CautionCount   int     `json:"caution_count"`
	DenyCount      int     `json:"deny_count"`
	HardDenyCount  int     `json:"hard_deny_count"`
	LowestMargin   float32 `json:"lowest_margin,omitempty"`
	FirstTimestamp string  `json:"first_timestamp"`
	LastTimestamp  string  `json:"last_timestamp"`
}

// ReplayResult holds filtered entries and summary.
type ReplayResult struct {
	Filter  ReplayFilter  `json:"-"`
	Entries []AuditEntry  `json:"entries"`
	Summary ReplaySummary `json:"summary"`
}

// Replay reads the audit log and returns entries matching the filter.
func Replay(path string, filter ReplayFilter) (*ReplayResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	result := &ReplayResult{Filter: filter}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		var entry AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue // skip malformed lines
		}
		if !filter.match(entry) {
			continue
		}
		result.Entries = append(result.Entries, entry)
		updateSummary(&result.Summary, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	return result, nil
}

func updateSummary(s *ReplaySummary, entry AuditEntry) {
	s.Total++

	switch entry.Decision {
	case "allow":
		s.AllowCount++
	case "caution":
		s.CautionCount++
	case "deny":
		s.DenyCount++
	}
	if entry.Detail == "hard_deny" {
		s.HardDenyCount++
	}

	if entry.CompositeMargin != nil {
		if s.LowestMargin == 0 || *entry.CompositeMargin < s.LowestMargin {
			s.LowestMargin = *entry.CompositeMargin
		}
	}

	if s.FirstTimestamp == "" {
		s.FirstTimestamp = entry.Timestamp
	}
	s.LastTimestamp = entry.Timestamp
}
