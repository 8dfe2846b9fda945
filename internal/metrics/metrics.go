// Package metrics exports envelope and gate observations.
package metrics

import (
	"math"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/corridorwatch/internal/gate"
	"github.com/ppiankov/corridorwatch/internal/model"
)

// Sink accepts observations from evaluations.
type Sink interface {
	Observe(status model.EnvelopeStatus, composite float32)
	ObserveDenial(kind gate.Kind)
}

// Nop discards observations.
type Nop struct{}

func (Nop) Observe(model.EnvelopeStatus, float32) {}
func (Nop) ObserveDenial(gate.Kind)               {}

// Prometheus keeps its own registry so several servers can run in one
// process (tests) without colliding on the default registerer.
type Prometheus struct {
	registry *prometheus.Registry

	marginX100 prometheus.Gauge
	evaluated  *prometheus.CounterVec
	caution    prometheus.Counter
	hardDeny   prometheus.Counter
	denials    *prometheus.CounterVec
}

// NewPrometheus creates and registers the collectors.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		marginX100: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "corridorwatch_envelope_margin_x100",
			Help: "Latest composite envelope margin multiplied by 100.",
		}),
		evaluated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corridorwatch_envelope_evaluations_total",
			Help: "Envelope evaluations by status.",
		}, []string{"status"}),
		caution: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corridorwatch_envelope_caution_total",
			Help: "Envelope evaluations that ended in caution.",
		}),
		hardDeny: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corridorwatch_envelope_hard_deny_total",
			Help: "Envelope evaluations that ended in hard deny.",
		}),
		denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corridorwatch_gate_denials_total",
			Help: "Precondition gate denials by kind.",
		}, []string{"kind"}),
	}
	p.registry.MustRegister(
		p.marginX100, p.evaluated, p.caution, p.hardDeny, p.denials,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	for _, s := range []model.EnvelopeStatus{model.StatusSafe, model.StatusCaution, model.StatusHardDeny} {
		p.evaluated.WithLabelValues(string(s))
	}
	for _, k := range gate.Kinds {
		p.denials.WithLabelValues(string(k))
	}
	return p
}

// Observe records one envelope evaluation.
func (p *Prometheus) Observe(status model.EnvelopeStatus, composite float32) {
	p.marginX100.Set(math.Round(float64(composite) * 100))
	p.evaluated.WithLabelValues(string(status)).Inc()
	switch status {
	case model.StatusCaution:
		p.caution.Inc()
	case model.StatusHardDeny:
		p.hardDeny.Inc()
	}
}

// ObserveDenial records one gate denial.
func (p *Prometheus) ObserveDenial(kind gate.Kind) {
	p.denials.WithLabelValues(string(kind)).Inc()
}

// Registry exposes the underlying registry for gathering.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
