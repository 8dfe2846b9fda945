package guard

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/ppiankov/corridorwatch/internal/envelope"
	"github.com/ppiankov/corridorwatch/internal/model"
)

func newTestKernel(t *testing.T, opts ...Option) *Kernel {
	t.Helper()
	k, err := NewKernel(envelope.DefaultConfig(), opts...)
	if err != nil {
		t.Fatalf("NewKernel: %v", err)
	}
	return k
}

func TestNewKernelRejectsInvalidConfig(t *testing.T) {
	cfg := envelope.DefaultConfig()
	cfg.CautionLower, cfg.CautionUpper = 2, 1

	_, err := NewKernel(cfg)
	if !errors.Is(err, envelope.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestSafeRecommendation(t *testing.T) {
	k := newTestKernel(t)

	rec := k.Evaluate(model.InterfaceTelemetry{InterfaceCoherence: 1})

	if rec.Evaluation.Status != model.StatusSafe {
		t.Fatalf("expected safe, got %s", rec.Evaluation.Status)
	}
	if rec.Message != "Within safety envelope." {
		t.Errorf("unexpected message %q", rec.Message)
	}
	if rec.RecommendedAction != "Maintain current parameters; continue monitoring." {
		t.Errorf("unexpected action %q", rec.RecommendedAction)
	}
}

func TestCautionRecommendation(t *testing.T) {
	k := newTestKernel(t)

	rec := k.Evaluate(model.InterfaceTelemetry{
		MechDensity: 1, InterfaceCoherence: 0.8, EmField: 1,
		ThermalLoad: 1, Inflammation: 1, SpikeEnergy: 1,
	})

	if rec.Evaluation.Status != model.StatusCaution {
		t.Fatalf("expected caution, got %s", rec.Evaluation.Status)
	}
	if rec.Message != "CAUTION_SCALE_THRESHOLD_APPROACHED" {
		t.Errorf("unexpected message %q", rec.Message)
	}
}

func TestHardDenyRecommendation(t *testing.T) {
	k := newTestKernel(t)

	rec := k.Evaluate(model.InterfaceTelemetry{InterfaceCoherence: 0})

	if rec.Evaluation.Status != model.StatusHardDeny {
		t.Fatalf("expected hard_deny, got %s", rec.Evaluation.Status)
	}
	if rec.Message != "HARD_DENY: envelope breached." {
		t.Errorf("unexpected message %q", rec.Message)
	}
}

func TestFreshIDPerCall(t *testing.T) {
	k := newTestKernel(t)
	tel := model.InterfaceTelemetry{InterfaceCoherence: 1}

	a := k.Evaluate(tel)
	b := k.Evaluate(tel)

	if a.ID == b.ID {
		t.Error("expected distinct IDs for repeated evaluations")
	}
	if _, err := uuid.Parse(a.ID); err != nil {
		t.Errorf("expected UUID, got %q: %v", a.ID, err)
	}
	if a.Evaluation != b.Evaluation {
		t.Errorf("expected identical evaluations, got %+v and %+v", a.Evaluation, b.Evaluation)
	}
}

func TestWithIDSource(t *testing.T) {
	n := 0
	k := newTestKernel(t, WithIDSource(func() string {
		n++
		return fmt.Sprintf("rec-%d", n)
	}))

	if id := k.Evaluate(model.InterfaceTelemetry{}).ID; id != "rec-1" {
		t.Errorf("expected rec-1, got %s", id)
	}
	if id := k.Evaluate(model.InterfaceTelemetry{}).ID; id != "rec-2" {
		t.Errorf("expected rec-2, got %s", id)
	}
}
