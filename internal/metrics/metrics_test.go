package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/ppiankov/corridorwatch/internal/gate"
	"github.com/ppiankov/corridorwatch/internal/model"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		t.Fatal(err)
	}
	if out.Counter != nil {
		return out.GetCounter().GetValue()
	}
	return out.GetGauge().GetValue()
}

func TestObserveCountsByStatus(t *testing.T) {
	p := NewPrometheus()
	p.Observe(model.StatusSafe, 1.25)
	p.Observe(model.StatusCaution, 1.0)
	p.Observe(model.StatusHardDeny, 0.5)
	p.Observe(model.StatusHardDeny, 0.4)

	if got := value(t, p.caution); got != 1 {
		t.Errorf("caution: expected 1, got %v", got)
	}
	if got := value(t, p.hardDeny); got != 2 {
		t.Errorf("hard deny: expected 2, got %v", got)
	}
	if got := value(t, p.marginX100); got != 40 {
		t.Errorf("margin gauge should hold latest x100, got %v", got)
	}
	if got := value(t, p.evaluated.WithLabelValues("safe")); got != 1 {
		t.Errorf("safe: expected 1, got %v", got)
	}
}

func TestObserveDenial(t *testing.T) {
	p := NewPrometheus()
	p.ObserveDenial(gate.KindConsentMissing)
	p.ObserveDenial(gate.KindConsentMissing)

	if got := value(t, p.denials.WithLabelValues(string(gate.KindConsentMissing))); got != 2 {
		t.Errorf("expected 2, got %v", got)
	}
	if got := value(t, p.denials.WithLabelValues(string(gate.KindMismatch))); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
}

func TestHandlerExportsText(t *testing.T) {
	p := NewPrometheus()
	p.Observe(model.StatusCaution, 1.05)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		"corridorwatch_envelope_margin_x100 105",
		"corridorwatch_envelope_caution_total 1",
		"corridorwatch_envelope_hard_deny_total 0",
		`corridorwatch_gate_denials_total{kind="eco_threshold"} 0`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}

func TestSeparateInstancesDoNotCollide(t *testing.T) {
	a := NewPrometheus()
	b := NewPrometheus()
	a.Observe(model.StatusCaution, 1.0)
	if got := value(t, b.caution); got != 0 {
		t.Errorf("instances share state: %v", got)
	}
}

var _ Sink = Nop{}
var _ Sink = (*Prometheus)(nil)
