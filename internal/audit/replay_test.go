package audit

import (
	"path/filepath"
	"testing"
	"time"
)

func margin(v float32) *float32 { return &v }

// writeTestLog creates a temp audit log with known entries for testing.
func writeTestLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test-audit.jsonl")
	log, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer log.Close()

	base := time.Date(2026, 1, 15, 14, 0, 0, 0, time.UTC)
	ts := func(s int) string { return base.Add(time.Duration(s) * time.Second).Format(TimestampFormat) }
	desert := "did:example:corridor:phoenix-desert"

	entries := []AuditEntry{
		{Timestamp: ts(0), TraceID: "t-aaa", Kind: KindEnvelope, Subject: "r-1", Decision: "allow", Detail: "safe", CompositeMargin: margin(1.25)},
		{Timestamp: ts(2), TraceID: "t-aaa", Kind: KindEnvelope, Subject: "r-2", Decision: "caution", Detail: "caution", CompositeMargin: margin(1.0)},
		{Timestamp: ts(4), TraceID: "t-bbb", Kind: KindAction, Subject: desert, Decision: "allow"},
		{Timestamp: ts(6), TraceID: "t-aaa", Kind: KindEnvelope, Subject: "r-3", Decision: "deny", Detail: "hard_deny", CompositeMargin: margin(0.5)},
		{Timestamp: ts(8), TraceID: "t-aaa", Kind: KindAction, Subject: desert, Decision: "deny", Detail: "consent_missing", Reason: "no consent"},
		{Timestamp: ts(10), TraceID: "t-aaa", Kind: KindAccess, Subject: "anonymous", Decision: "allow"},
	}

	for _, e := range entries {
		if _, err := log.Record(e); err != nil {
			t.Fatal(err)
		}
	}

	return path
}

func TestReplayFiltersByTraceID(t *testing.T) {
	path := writeTestLog(t)

	result, err := Replay(path, ReplayFilter{TraceID: "t-aaa"})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Entries) != 5 {
		t.Errorf("expected 5 entries for t-aaa, got %d", len(result.Entries))
	}
	for _, e := range result.Entries {
		if e.TraceID != "t-aaa" {
			t.Errorf("unexpected trace ID: %s", e.TraceID)
		}
	}
}

func TestReplayFiltersBySubjectAndKind(t *testing.T) {
	path := writeTestLog(t)

	result, err := Replay(path, ReplayFilter{Subject: "did:example:corridor:phoenix-desert"})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Entries) != 2 {
		t.Errorf("expected 2 entries for corridor, got %d", len(result.Entries))
	}

	result, err = Replay(path, ReplayFilter{Kind: KindEnvelope})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Entries) != 3 {
		t.Errorf("expected 3 envelope entries, got %d", len(result.Entries))
	}
}

func TestReplayNoFilterReturnsAll(t *testing.T) {
	result, err := Replay(writeTestLog(t), ReplayFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if result.Summary.Total != 6 {
		t.Errorf("expected 6, got %d", result.Summary.Total)
	}
}

func TestReplayTimeRange(t *testing.T) {
	path := writeTestLog(t)

	from := time.Date(2026, 1, 15, 14, 0, 1, 0, time.UTC)
	to := time.Date(2026, 1, 15, 14, 0, 7, 0, time.UTC)
	result, err := Replay(path, ReplayFilter{TraceID: "t-aaa", From: from, To: to})
	if err != nil {
		t.Fatal(err)
	}
	// 14:00:02 and 14:00:06
	if len(result.Entries) != 2 {
		t.Errorf("expected 2 entries in time window, got %d", len(result.Entries))
	}
}

func TestReplayEmptyResult(t *testing.T) {
	result, err := Replay(writeTestLog(t), ReplayFilter{TraceID: "t-nonexistent"})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Entries) != 0 || result.Summary.Total != 0 {
		t.Errorf("expected empty result, got %+v", result.Summary)
	}
}

func TestReplaySummaryCountsCorrect(t *testing.T) {
	result, err := Replay(writeTestLog(t), ReplayFilter{TraceID: "t-aaa"})
	if err != nil {
		t.Fatal(err)
	}

	s := result.Summary
	if s.Total != 5 {
		t.Errorf("total: expected 5, got %d", s.Total)
	}
	if s.AllowCount != 2 {
		t.Errorf("allow: expected 2, got %d", s.AllowCount)
	}
	if s.CautionCount != 1 {
		t.Errorf("caution: expected 1, got %d", s.CautionCount)
	}
	if s.DenyCount != 2 {
		t.Errorf("deny: expected 2, got %d", s.DenyCount)
	}
	if s.HardDenyCount != 1 {
		t.Errorf("hard deny: expected 1, got %d", s.HardDenyCount)
	}
	if s.LowestMargin != 0.5 {
		t.Errorf("lowest margin: expected 0.5, got %v", s.LowestMargin)
	}
}

func TestReplayMissingFile(t *testing.T) {
	if _, err := Replay(filepath.Join(t.TempDir(), "none.jsonl"), ReplayFilter{}); err == nil {
		t.Fatal("expected error for missing log")
	}
}
