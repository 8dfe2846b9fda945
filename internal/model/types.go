package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrScoreOutOfRange is returned when a Score is constructed outside [0, 1].
var ErrScoreOutOfRange = errors.New("score must be within [0.0, 1.0]")

// Score is a normalized value in [0.0, 1.0]. 1.0 is best (least harm, highest
// integrity). The zero value is a valid score of 0.
type Score struct {
	v float32
}

// NewScore validates v and returns a Score. NaN and infinities are rejected.
func NewScore(v float32) (Score, error) {
	f := float64(v)
	if math.IsNaN(f) || f < 0 || f > 1 {
		return Score{}, fmt.Errorf("%w: got %v", ErrScoreOutOfRange, v)
	}
	return Score{v: v}, nil
}

// MustScore is NewScore for literals known to be in range. Panics otherwise.
func MustScore(v float32) Score {
	s, err := NewScore(v)
	if err != nil {
		panic(err)
	}
	return s
}

// Value returns the underlying float.
func (s Score) Value() float32 { return s.v }

// MarshalJSON encodes the score as a bare number.
func (s Score) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.v)
}

// UnmarshalJSON decodes a bare number, rejecting out-of-range values.
func (s *Score) UnmarshalJSON(data []byte) error {
	var v float32
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := NewScore(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Telemetry dimensions. Readings are unconstrained sensor values; range
// enforcement happens in the envelope, not here.

// MechDensity is normalized density of non-organic material per tissue volume.
type MechDensity float32

// InterfaceCoherence is boundary crispness: 1.0 crisp, 0.0 fully blurred.
type InterfaceCoherence float32

// EmFieldIntensity is normalized EM field intensity at the interface.
type EmFieldIntensity float32

// ThermalLoad is normalized thermal load.
type ThermalLoad float32

// InflammationIndex is a normalized systemic inflammation marker.
type InflammationIndex float32

// SpikeEnergy is a normalized neuromorphic spike energy proxy.
type SpikeEnergy float32

// Salience is how urgently monitoring should surface a warning. Never negative.
type Salience float32

// InterfaceTelemetry is one telemetry sample across all six dimensions.
type InterfaceTelemetry struct {
	MechDensity        MechDensity        `json:"mech_density" yaml:"mech_density"`
	InterfaceCoherence InterfaceCoherence `json:"interface_coherence" yaml:"interface_coherence"`
	EmField            EmFieldIntensity   `json:"em_field" yaml:"em_field"`
	ThermalLoad        ThermalLoad        `json:"thermal_load" yaml:"thermal_load"`
	Inflammation       InflammationIndex  `json:"inflammation" yaml:"inflammation"`
	SpikeEnergy        SpikeEnergy        `json:"spike_energy" yaml:"spike_energy"`
}

// Decision is the coarse outcome reported to audit, alerts, and transports.
type Decision string

const (
	Allow   Decision = "allow"
	Caution Decision = "caution"
	Deny    Decision = "deny"
)

// DecisionForStatus maps an envelope status onto the coarse decision.
func DecisionForStatus(s EnvelopeStatus) Decision {
	switch s {
	case StatusSafe:
		return Allow
	case StatusCaution:
		return Caution
	default:
		return Deny
	}
}
