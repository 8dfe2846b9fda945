// Package envelope turns one telemetry sample into per-dimension safety
// margins, a weakest-link composite, and a three-state status.
//
// A margin of 1.0 is just-safe, above 1.0 is headroom, below 1.0 is a breach.
package envelope

import (
	"github.com/ppiankov/corridorwatch/internal/model"
)

// ZeroReadingMargin is the margin reported for an upper-bounded dimension
// whose reading is exactly zero (or negative).
const ZeroReadingMargin float32 = 2.0

// Margins holds one derived ratio per dimension.
type Margins struct {
	MechDensity        float32 `json:"mech_density_margin"`
	InterfaceCoherence float32 `json:"interface_coherence_margin"`
	EmField            float32 `json:"em_field_margin"`
	Thermal            float32 `json:"thermal_margin"`
	Inflammation       float32 `json:"inflammation_margin"`
	SpikeEnergy        float32 `json:"spike_energy_margin"`
}

// ByDimension returns the margin for d.
func (m Margins) ByDimension(d model.Dimension) float32 {
	switch d {
	case model.DimMechDensity:
		return m.MechDensity
	case model.DimInterfaceCoherence:
		return m.InterfaceCoherence
	case model.DimEmField:
		return m.EmField
	case model.DimThermal:
		return m.Thermal
	case model.DimInflammation:
		return m.Inflammation
	case model.DimSpikeEnergy:
		return m.SpikeEnergy
	default:
		return 0
	}
}

// Composite is the minimum margin across all dimensions.
func (m Margins) Composite() float32 {
	_, v := m.Weakest()
	return v
}

// Weakest returns the dimension that sets the composite and its margin.
// Ties resolve to the earlier dimension in model.Dimensions.
func (m Margins) Weakest() (model.Dimension, float32) {
	weakest := model.Dimensions[0]
	lowest := m.ByDimension(weakest)
	for _, d := range model.Dimensions[1:] {
		if v := m.ByDimension(d); v < lowest {
			weakest, lowest = d, v
		}
	}
	return weakest, lowest
}

// Evaluation is the full result for one sample.
type Evaluation struct {
	Margins         Margins              `json:"margins"`
	CompositeMargin float32              `json:"composite_margin"`
	Status          model.EnvelopeStatus `json:"status"`
	Salience        model.Salience       `json:"salience"`
	Weakest         model.Dimension      `json:"weakest_dimension"`
}

// Evaluate is Evaluate(c, t).
func (c Config) Evaluate(t model.InterfaceTelemetry) Evaluation {
	return Evaluate(c, t)
}

// Evaluate computes margins, composite, status and salience. It is total and
// has no side effects; callers are expected to pass a validated Config.
func Evaluate(cfg Config, t model.InterfaceTelemetry) Evaluation {
	margins := Margins{
		MechDensity:        upperBoundedMargin(float32(t.MechDensity), cfg.MechDensityMax),
		InterfaceCoherence: lowerBoundedMargin(float32(t.InterfaceCoherence), cfg.InterfaceCoherenceMin),
		EmField:            upperBoundedMargin(float32(t.EmField), cfg.EmFieldMax),
		Thermal:            upperBoundedMargin(float32(t.ThermalLoad), cfg.ThermalMax),
		Inflammation:       upperBoundedMargin(float32(t.Inflammation), cfg.InflammationMax),
		SpikeEnergy:        upperBoundedMargin(float32(t.SpikeEnergy), cfg.SpikeEnergyMax),
	}
	weakest, composite := margins.Weakest()

	return Evaluation{
		Margins:         margins,
		CompositeMargin: composite,
		Status:          Classify(cfg, composite),
		Salience:        salience(cfg, composite),
		Weakest:         weakest,
	}
}

// Classify maps a composite margin onto a status using the caution band.
// A NaN composite is a hard deny.
func Classify(cfg Config, composite float32) model.EnvelopeStatus {
	switch {
	case composite != composite, composite < cfg.CautionLower:
		return model.StatusHardDeny
	case composite < cfg.CautionUpper:
		return model.StatusCaution
	default:
		return model.StatusSafe
	}
}

// A non-finite reading is a breach in either direction.
func upperBoundedMargin(value, bound float32) float32 {
	if !finite(value) {
		return 0
	}
	if value <= 0 {
		return ZeroReadingMargin
	}
	return bound / value
}

// Zero coherence is a complete breach, not maximal safety.
func lowerBoundedMargin(value, required float32) float32 {
	if !finite(value) || value <= 0 {
		return 0
	}
	return value / required
}

func salience(cfg Config, composite float32) model.Salience {
	s := cfg.CautionUpper - composite
	if s != s || s < 0 {
		return 0
	}
	return model.Salience(s)
}
