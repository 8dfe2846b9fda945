package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/corridorwatch/internal/auth"
	"github.com/ppiankov/corridorwatch/internal/corridor"
	"github.com/ppiankov/corridorwatch/internal/gate"
	"github.com/ppiankov/corridorwatch/internal/metrics"
	"github.com/ppiankov/corridorwatch/internal/model"
	"github.com/ppiankov/corridorwatch/internal/ratelimit"
	"github.com/ppiankov/corridorwatch/internal/rpc"
	"github.com/ppiankov/corridorwatch/internal/server"
)

func newTestServer(t *testing.T) (*httptest.Server, *server.Server) {
	t.Helper()
	sink := metrics.NewPrometheus()
	srv, err := server.New(server.Config{
		ConfigPath: filepath.Join(t.TempDir(), "config.yaml"),
		Metrics:    sink,
	})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	ts := httptest.NewServer(NewHandler(srv, Config{Metrics: sink.Handler()}))
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return ts, srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if body := decode[map[string]string](t, resp); body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestEvaluateEnvelope(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := postJSON(t, ts.URL+"/evaluate/envelope", rpc.EnvelopeRequest{
		Telemetry: model.InterfaceTelemetry{MechDensity: 0.5, InterfaceCoherence: 0.84},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got := decode[rpc.EnvelopeResponse](t, resp)
	if got.Recommendation.Evaluation.Status != model.StatusCaution {
		t.Errorf("status = %s, want caution", got.Recommendation.Evaluation.Status)
	}
	if got.Recommendation.Message != "CAUTION_SCALE_THRESHOLD_APPROACHED" {
		t.Errorf("message = %q", got.Recommendation.Message)
	}
}

func TestEvaluateActionDenialIsInBand(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := postJSON(t, ts.URL+"/evaluate/action", rpc.ActionRequest{
		Request: corridor.ActionRequest{CorridorID: corridor.MustID("eco:nowhere"), RequiredMinEcoScore: 0.2},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got := decode[rpc.ActionResponse](t, resp)
	if got.Allowed || got.Denial == nil || got.Denial.Kind != gate.KindNotFound {
		t.Errorf("expected corridor_not_found, got %+v", got)
	}
}

func TestEvaluateActionRejectsBadInput(t *testing.T) {
	ts, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"empty corridor id", `{"request":{"corridor_id":"","required_min_eco_score":0.5}}`},
		{"score out of range", `{"request":{"corridor_id":"eco:a","required_min_eco_score":2}}`},
		{"unknown field", `{"request":{"corridor_id":"eco:a"},"bogus":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/evaluate/action", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestEvaluateMFAReturnsPolicy(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := postJSON(t, ts.URL+"/evaluate/mfa", rpc.AccessRequest{
		Context: auth.Context{Knowledge: true, Possession: true, Biometric: &auth.BiometricFactor{Confidence: 0.5}},
	})
	got := decode[rpc.AccessResponse](t, resp)
	if got.Evaluation.Decision != auth.RequireAdditionalFactors {
		t.Errorf("decision = %s", got.Evaluation.Decision)
	}
	if got.Verdict.Allowed {
		t.Error("require_additional_factors should not be allowed")
	}
	if !got.Policy.Compliance.GDPR {
		t.Error("expected policy in response")
	}
}

func TestCorridorRoutes(t *testing.T) {
	ts, srv := newTestServer(t)

	eco, err := corridor.NewEcoImpactMetrics(0.6, 0.6, 0.6, 0.6)
	if err != nil {
		t.Fatal(err)
	}
	c := corridor.Corridor{ID: corridor.MustID("eco:wetland:b"), Kind: corridor.KindWetland, Eco: eco, FPIC: corridor.FPICPending()}
	if _, err := srv.PutCorridor(rpc.UpsertRequest{Corridor: c}); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(ts.URL + "/corridors/eco:wetland:b")
	if err != nil {
		t.Fatal(err)
	}
	rec := decode[rpc.CorridorRecord](t, resp)
	if rec.Corridor.ID != c.ID {
		t.Errorf("id = %s", rec.Corridor.ID)
	}

	resp, err = http.Get(ts.URL + "/corridors/eco:missing")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/corridors")
	if err != nil {
		t.Fatal(err)
	}
	if list := decode[rpc.ListResponse](t, resp); len(list.Corridors) != 1 {
		t.Errorf("expected 1 corridor, got %d", len(list.Corridors))
	}
}

func TestMetricsExposed(t *testing.T) {
	ts, _ := newTestServer(t)
	postJSON(t, ts.URL+"/evaluate/envelope", rpc.EnvelopeRequest{
		Telemetry: model.InterfaceTelemetry{MechDensity: 2.0, InterfaceCoherence: 0.9},
	}).Body.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "corridorwatch_envelope_hard_deny_total 1") {
		t.Errorf("metrics missing hard deny count:\n%s", body)
	}
}

func TestStartAndStop(t *testing.T) {
	_, srv := newTestServer(t)
	s := NewServer(srv, Config{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.StartOn(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if s.Addr() != ln.Addr().String() {
		t.Errorf("Addr = %s, want %s", s.Addr(), ln.Addr())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("StartOn: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRateLimitedEvaluate(t *testing.T) {
	_, srv := newTestServer(t)
	ts := httptest.NewServer(NewHandler(srv, Config{
		RateLimits: ratelimit.Config{"envelope": {MaxRequests: 2, Window: time.Minute}},
	}))
	defer ts.Close()

	req := rpc.EnvelopeRequest{Telemetry: model.InterfaceTelemetry{MechDensity: 0.5, InterfaceCoherence: 0.95}}
	for i := 0; i < 2; i++ {
		resp := postJSON(t, ts.URL+"/evaluate/envelope", req)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, resp.StatusCode)
		}
	}

	resp := postJSON(t, ts.URL+"/evaluate/envelope", req)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	body := decode[map[string]map[string]string](t, resp)
	if body["error"]["code"] != "rate_limited" {
		t.Errorf("error = %v", body)
	}

	// Other categories are unaffected.
	mfa := postJSON(t, ts.URL+"/evaluate/mfa", rpc.AccessRequest{Context: auth.Context{Knowledge: true}})
	mfa.Body.Close()
	if mfa.StatusCode != http.StatusOK {
		t.Errorf("mfa status = %d", mfa.StatusCode)
	}
}
