package corridor

import (
	"errors"
	"fmt"
)

// ErrInvalidCorridor wraps record-level validation failures.
var ErrInvalidCorridor = errors.New("invalid corridor")

// Kind is a descriptive ecological category. Values outside the list are
// treated as community-defined custom kinds.
type Kind string

const (
	KindForest      Kind = "forest"
	KindWetland     Kind = "wetland"
	KindDesert      Kind = "desert"
	KindRiver       Kind = "river"
	KindCoast       Kind = "coast"
	KindMountain    Kind = "mountain"
	KindUrbanBuffer Kind = "urban_buffer"
)

// IsCustom reports whether k is not one of the built-in kinds.
func (k Kind) IsCustom() bool {
	switch k {
	case KindForest, KindWetland, KindDesert, KindRiver, KindCoast, KindMountain, KindUrbanBuffer:
		return false
	}
	return true
}

// Corridor is the canonical, read-only snapshot of one governed corridor.
type Corridor struct {
	ID            ID                 `json:"id"`
	Kind          Kind               `json:"kind,omitempty"`
	Name          string             `json:"name,omitempty"`
	Description   string             `json:"description,omitempty"`
	Eco           EcoImpactMetrics   `json:"eco"`
	FPIC          FPICStatus         `json:"fpic"`
	Consent       *VerifiableConsent `json:"consent,omitempty"`
	IDS           IDSScope           `json:"ids_scope"`
	Rights        RightsConstraints  `json:"rights"`
	CulturalNotes string             `json:"cultural_notes,omitempty"`
}

// Validate checks the invariants a decoded record cannot enforce by type.
func (c Corridor) Validate() error {
	if c.ID.IsZero() {
		return fmt.Errorf("%w: %w", ErrInvalidCorridor, ErrEmptyID)
	}
	if c.FPIC.Status != "" && !c.FPIC.Status.Valid() {
		return fmt.Errorf("%w: unknown fpic status %q", ErrInvalidCorridor, c.FPIC.Status)
	}
	if c.Consent != nil && !c.Consent.Status.Valid() {
		return fmt.Errorf("%w: unknown consent status %q", ErrInvalidCorridor, c.Consent.Status)
	}
	return nil
}

// HasActiveFPIC reports whether FPIC is granted.
func (c Corridor) HasActiveFPIC() bool {
	return c.FPIC.IsActiveGrant()
}

// RequiresNonActuating reports whether any system touching this corridor
// must remain observational.
func (c Corridor) RequiresNonActuating() bool {
	return c.Rights.RequireNonActuation
}

// Advisory risk labels. For dashboards and audits only; never wire these to
// enforcement.
const (
	RiskBlockedFPICWithheld = "blocked_fpic_withheld"
	RiskHoldFPICPending     = "hold_fpic_pending"
	RiskLowObservational    = "low_risk_observational"
	RiskMediumReview        = "medium_risk_review"
	RiskHighReview          = "high_risk_review"
)

// AdvisoryRiskLabel classifies the corridor by FPIC state and eco aggregate.
func (c Corridor) AdvisoryRiskLabel() string {
	eco := c.Eco.Aggregate().Value()
	switch c.FPIC.Status {
	case ConsentWithheld, ConsentRevoked:
		return RiskBlockedFPICWithheld
	case ConsentGranted:
		switch {
		case eco >= 0.8:
			return RiskLowObservational
		case eco >= 0.5:
			return RiskMediumReview
		default:
			return RiskHighReview
		}
	default:
		return RiskHoldFPICPending
	}
}

func wrapField(field string, err error) error {
	return fmt.Errorf("%s: %w", field, err)
}
