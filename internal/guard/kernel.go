// Package guard wraps the envelope evaluator into a per-sample
// recommendation. It is purely analytical: no actuation, only advice.
package guard

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ppiankov/corridorwatch/internal/envelope"
	"github.com/ppiankov/corridorwatch/internal/model"
)

// Recommendation is the output of one guard evaluation.
type Recommendation struct {
	ID                string              `json:"id"`
	Evaluation        envelope.Evaluation `json:"evaluation"`
	Message           string              `json:"message"`
	RecommendedAction string              `json:"recommended_action"`
}

// Kernel evaluates telemetry samples against a fixed, validated envelope config.
// A Kernel is immutable and safe for concurrent use.
type Kernel struct {
	cfg   envelope.Config
	newID func() string
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithIDSource overrides recommendation ID generation.
func WithIDSource(fn func() string) Option {
	return func(k *Kernel) { k.newID = fn }
}

// NewKernel validates cfg and returns a Kernel. Invalid config is rejected
// here so that Evaluate never fails.
func NewKernel(cfg envelope.Config, opts ...Option) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("guard kernel: %w", err)
	}
	k := &Kernel{
		cfg:   cfg,
		newID: func() string { return uuid.New().String() },
	}
	for _, o := range opts {
		o(k)
	}
	return k, nil
}

// Config returns the envelope config this kernel evaluates against.
func (k *Kernel) Config() envelope.Config {
	return k.cfg
}

// Evaluate runs the envelope and attaches the status template.
// Every call gets a fresh ID; nothing is cached.
func (k *Kernel) Evaluate(t model.InterfaceTelemetry) Recommendation {
	eval := envelope.Evaluate(k.cfg, t)
	message, action := Template(eval.Status)
	return Recommendation{
		ID:                k.newID(),
		Evaluation:        eval,
		Message:           message,
		RecommendedAction: action,
	}
}

// Template returns the fixed message and recommended action for a status.
func Template(s model.EnvelopeStatus) (message, action string) {
	switch s {
	case model.StatusSafe:
		return "Within safety envelope.",
			"Maintain current parameters; continue monitoring."
	case model.StatusCaution:
		return "CAUTION_SCALE_THRESHOLD_APPROACHED",
			"Do not increase integration density or field intensity; prefer down-scaling or simulations only."
	default:
		return "HARD_DENY: envelope breached.",
			"Reduce load, density, and exposure in models; consult safety governance before any further scaling."
	}
}
