package model

// EnvelopeStatus is the three-state regime of a composite safety margin.
type EnvelopeStatus string

const (
	// StatusSafe is well inside the safe corridor.
	StatusSafe EnvelopeStatus = "safe"
	// StatusCaution is nearing the boundary; do not scale up.
	StatusCaution EnvelopeStatus = "caution"
	// StatusHardDeny is outside the envelope; scaling should be rolled back.
	StatusHardDeny EnvelopeStatus = "hard_deny"
)

// StatusRank maps status to a comparable integer, higher is more severe.
var StatusRank = map[EnvelopeStatus]int{
	StatusSafe:     0,
	StatusCaution:  1,
	StatusHardDeny: 2,
}

// Worse returns the more severe of two statuses.
func Worse(a, b EnvelopeStatus) EnvelopeStatus {
	if StatusRank[b] > StatusRank[a] {
		return b
	}
	return a
}

func (s EnvelopeStatus) String() string {
	switch s {
	case StatusSafe:
		return "SAFE"
	case StatusCaution:
		return "CAUTION"
	case StatusHardDeny:
		return "HARD_DENY"
	default:
		return "UNKNOWN"
	}
}

// Dimension names one telemetry dimension.
type Dimension string

const (
	DimMechDensity        Dimension = "mech_density"
	DimInterfaceCoherence Dimension = "interface_coherence"
	DimEmField            Dimension = "em_field"
	DimThermal            Dimension = "thermal"
	DimInflammation       Dimension = "inflammation"
	DimSpikeEnergy        Dimension = "spike_energy"
)

// Dimensions lists every dimension in evaluation order.
var Dimensions = []Dimension{
	DimMechDensity,
	DimInterfaceCoherence,
	DimEmField,
	DimThermal,
	DimInflammation,
	DimSpikeEnergy,
}
