package alert

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// fastSender retries without sleeping between attempts.
func fastSender() *sender {
	return &sender{
		client:   &http.Client{Timeout: time.Second},
		attempts: 3,
		backoff:  func(int) time.Duration { return 0 },
	}
}

func counter(t *testing.T, called *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDispatchMatchesEvents(t *testing.T) {
	var called atomic.Int32
	srv := counter(t, &called)

	d := NewDispatcher([]AlertConfig{
		{URL: srv.URL, Format: "generic", Events: []string{"hard_deny"}},
	})

	d.Dispatch(AlertEvent{Kind: "envelope", Decision: "hard_deny", Subject: "telemetry"})
	d.Wait()

	if called.Load() != 1 {
		t.Errorf("expected 1 call, got %d", called.Load())
	}
}

func TestDispatchSkipsNonMatching(t *testing.T) {
	var called atomic.Int32
	srv := counter(t, &called)

	d := NewDispatcher([]AlertConfig{
		{URL: srv.URL, Format: "generic", Events: []string{"deny"}},
	})

	d.Dispatch(AlertEvent{Kind: "envelope", Decision: "caution"})
	d.Wait()

	if called.Load() != 0 {
		t.Errorf("expected 0 calls for non-matching event, got %d", called.Load())
	}
}

func TestDispatchMultipleWebhooks(t *testing.T) {
	var called atomic.Int32
	srv1 := counter(t, &called)
	srv2 := counter(t, &called)

	d := NewDispatcher([]AlertConfig{
		{URL: srv1.URL, Format: "generic", Events: []string{"deny"}},
		{URL: srv2.URL, Format: "slack", Events: []string{"deny", "caution"}},
	})

	d.Dispatch(AlertEvent{Kind: "action", Decision: "deny", Subject: "eco:x"})
	d.Wait()

	if called.Load() != 2 {
		t.Errorf("expected 2 calls (both webhooks match), got %d", called.Load())
	}
}

func TestDispatchMatchesDenialType(t *testing.T) {
	var called atomic.Int32
	srv := counter(t, &called)

	d := NewDispatcher([]AlertConfig{
		{URL: srv.URL, Format: "generic", Events: []string{"consent_missing"}},
	})

	d.Dispatch(AlertEvent{Kind: "action", Decision: "deny", Type: "consent_missing", Subject: "eco:x"})
	d.Wait()

	if called.Load() != 1 {
		t.Errorf("expected 1 call for type match, got %d", called.Load())
	}
}

func TestRetryOnServerError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := fastSender().send(AlertConfig{URL: srv.URL, Format: "generic"}, AlertEvent{Decision: "deny"})
	if err != nil {
		t.Errorf("expected success after retries, got: %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	err := fastSender().send(AlertConfig{URL: srv.URL, Format: "generic"}, AlertEvent{Decision: "deny"})
	if !errors.Is(err, ErrRejected) {
		t.Errorf("expected ErrRejected on 400, got %v", err)
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt (no retry on 4xx), got %d", attempts.Load())
	}
}

func TestSendSetsCorrelationHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := AlertConfig{URL: srv.URL, Headers: map[string]string{"X-Token": "abc"}}
	event := AlertEvent{
		TraceID:  "t-abc123",
		ConfigID: "bafkreiconfig",
		Kind:     "action",
		Decision: "deny",
		Type:     "consent_missing",
	}
	if err := Send(cfg, event); err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		"User-Agent": userAgent,
		"X-Token":    "abc",
		HeaderTrace:  "t-abc123",
		HeaderConfig: "bafkreiconfig",
		HeaderEvent:  "consent_missing",
		HeaderKind:   "action",
	}
	for k, v := range want {
		if got.Get(k) != v {
			t.Errorf("%s = %q, want %q", k, got.Get(k), v)
		}
	}
}

func TestSendOmitsEmptyCorrelationHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	if err := Send(AlertConfig{URL: srv.URL}, AlertEvent{Decision: "hard_deny"}); err != nil {
		t.Fatal(err)
	}
	if _, ok := got[HeaderTrace]; ok {
		t.Error("trace header should be absent when the event has no trace id")
	}
	if got.Get(HeaderEvent) != "hard_deny" {
		t.Errorf("event header should fall back to the decision, got %q", got.Get(HeaderEvent))
	}
}

func TestRetryOnThrottleHonoursRetryAfter(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	start := time.Now()
	if err := fastSender().send(AlertConfig{URL: srv.URL}, AlertEvent{Decision: "deny"}); err != nil {
		t.Fatalf("expected success after throttle, got %v", err)
	}
	if attempts.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts.Load())
	}
	if time.Since(start) < time.Second {
		t.Error("expected the Retry-After delay to be honoured")
	}
}

func TestRetryAfterParsing(t *testing.T) {
	cases := map[string]time.Duration{
		"":    0,
		"abc": 0,
		"-3":  0,
		"2":   2 * time.Second,
		"600": maxRetryAfter,
	}
	for in, want := range cases {
		if got := retryAfter(in); got != want {
			t.Errorf("retryAfter(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestGiveUpAfterAttempts(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := fastSender().send(AlertConfig{URL: srv.URL}, AlertEvent{Decision: "deny"})
	if err == nil || errors.Is(err, ErrRejected) {
		t.Fatalf("expected retry exhaustion error, got %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestFormatGenericJSON(t *testing.T) {
	margin := float32(0.5)
	event := AlertEvent{
		Timestamp:       "2026-01-15T14:00:00.000Z",
		TraceID:         "t-123",
		Kind:            "envelope",
		Subject:         "telemetry",
		Decision:        "hard_deny",
		Reason:          "Hard deny: envelope violated.",
		CompositeMargin: &margin,
	}

	data, err := FormatPayload("generic", event)
	if err != nil {
		t.Fatal(err)
	}

	var parsed AlertEvent
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("generic format is not valid JSON: %v", err)
	}
	if parsed.TraceID != "t-123" {
		t.Errorf("expected trace_id t-123, got %s", parsed.TraceID)
	}
	if parsed.CompositeMargin == nil || *parsed.CompositeMargin != 0.5 {
		t.Errorf("expected composite margin 0.5, got %v", parsed.CompositeMargin)
	}
}

func TestFormatSlackBlockKit(t *testing.T) {
	margin := float32(1.05)
	event := AlertEvent{
		Kind:            "envelope",
		Subject:         "telemetry",
		Decision:        "caution",
		Reason:          "approaching boundary",
		CompositeMargin: &margin,
	}

	data, err := FormatPayload("slack", event)
	if err != nil {
		t.Fatal(err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("slack format is not valid JSON: %v", err)
	}

	blocks, ok := parsed["blocks"].([]any)
	if !ok || len(blocks) < 2 {
		t.Fatalf("expected at least 2 blocks, got %v", parsed["blocks"])
	}

	header, _ := blocks[0].(map[string]any)
	if header["type"] != "header" {
		t.Errorf("expected header block, got %s", header["type"])
	}

	section, _ := blocks[1].(map[string]any)
	fields, ok := section["fields"].([]any)
	if !ok || len(fields) != 5 {
		t.Errorf("expected 5 fields including margin, got %v", fields)
	}
}

func TestFormatPagerDutySeverity(t *testing.T) {
	cases := map[string]string{
		"hard_deny": "critical",
		"deny":      "error",
		"caution":   "warning",
		"allow":     "info",
	}
	for decision, want := range cases {
		data, err := FormatPayload("pagerduty", AlertEvent{Decision: decision, Subject: "eco:x"})
		if err != nil {
			t.Fatal(err)
		}
		var parsed map[string]any
		if err := json.Unmarshal(data, &parsed); err != nil {
			t.Fatalf("pagerduty format is not valid JSON: %v", err)
		}
		payload, ok := parsed["payload"].(map[string]any)
		if !ok {
			t.Fatal("expected payload object")
		}
		if payload["severity"] != want {
			t.Errorf("%s: expected severity %s, got %v", decision, want, payload["severity"])
		}
		if payload["source"] != "corridorwatch" {
			t.Errorf("expected source corridorwatch, got %v", payload["source"])
		}
	}
}

func TestNewDispatcherNilOnEmpty(t *testing.T) {
	if d := NewDispatcher(nil); d != nil {
		t.Error("expected nil dispatcher for empty configs")
	}
	if d := NewDispatcher([]AlertConfig{}); d != nil {
		t.Error("expected nil dispatcher for zero-length configs")
	}
}
