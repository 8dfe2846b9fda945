package envelope

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig wraps every envelope configuration error.
var ErrInvalidConfig = errors.New("invalid envelope config")

// Config holds the per-dimension bounds and the caution band.
// It is a plain value: pass it into every evaluation explicitly.
type Config struct {
	MechDensityMax        float32 `yaml:"mech_density_max" json:"mech_density_max"`
	InterfaceCoherenceMin float32 `yaml:"interface_coherence_min" json:"interface_coherence_min"`
	EmFieldMax            float32 `yaml:"em_field_max" json:"em_field_max"`
	ThermalMax            float32 `yaml:"thermal_max" json:"thermal_max"`
	InflammationMax       float32 `yaml:"inflammation_max" json:"inflammation_max"`
	SpikeEnergyMax        float32 `yaml:"spike_energy_max" json:"spike_energy_max"`
	CautionLower          float32 `yaml:"caution_lower" json:"caution_lower"`
	CautionUpper          float32 `yaml:"caution_upper" json:"caution_upper"`
}

// DefaultConfig returns the reference thresholds.
func DefaultConfig() Config {
	return Config{
		MechDensityMax:        1.0,
		InterfaceCoherenceMin: 0.8,
		EmFieldMax:            1.0,
		ThermalMax:            1.0,
		InflammationMax:       1.0,
		SpikeEnergyMax:        1.0,
		CautionLower:          1.0,
		CautionUpper:          1.1,
	}
}

// NewConfig validates cfg and returns it unchanged on success.
func NewConfig(cfg Config) (Config, error) {
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every bound is positive and finite and that
// caution_lower <= caution_upper.
func (c Config) Validate() error {
	bounds := []struct {
		name string
		v    float32
	}{
		{"mech_density_max", c.MechDensityMax},
		{"interface_coherence_min", c.InterfaceCoherenceMin},
		{"em_field_max", c.EmFieldMax},
		{"thermal_max", c.ThermalMax},
		{"inflammation_max", c.InflammationMax},
		{"spike_energy_max", c.SpikeEnergyMax},
	}
	for _, b := range bounds {
		if !finite(b.v) || b.v <= 0 {
			return fmt.Errorf("%w: %s must be positive and finite, got %v", ErrInvalidConfig, b.name, b.v)
		}
	}
	if !finite(c.CautionLower) || !finite(c.CautionUpper) {
		return fmt.Errorf("%w: caution band must be finite", ErrInvalidConfig)
	}
	if c.CautionLower < 0 {
		return fmt.Errorf("%w: caution_lower must not be negative, got %v", ErrInvalidConfig, c.CautionLower)
	}
	if c.CautionLower > c.CautionUpper {
		return fmt.Errorf("%w: caution_lower %v > caution_upper %v", ErrInvalidConfig, c.CautionLower, c.CautionUpper)
	}
	return nil
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
