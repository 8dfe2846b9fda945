// Package gate evaluates the preconditions a proposed action must clear
// before a high-impact system may touch a corridor. It only returns a
// verdict; it never actuates.
package gate

import (
	"errors"
	"fmt"

	"github.com/ppiankov/corridorwatch/internal/corridor"
)

// Kind identifies which guard denied a request.
type Kind string

const (
	KindNotFound              Kind = "corridor_not_found"
	KindMismatch              Kind = "corridor_mismatch"
	KindEcoThreshold          Kind = "eco_threshold"
	KindConsentMissing        Kind = "consent_missing"
	KindConsentNotGranted     Kind = "consent_not_granted"
	KindRightsCoercion        Kind = "rights_coercion"
	KindRightsCovertInference Kind = "rights_covert_inference"
	KindRightsManipulation    Kind = "rights_manipulation"

	// KindConsentUnverified is produced by callers that verify consent
	// signatures after the gate passes. The gate never checks signatures.
	KindConsentUnverified Kind = "consent_unverified"
)

// Kinds lists every denial kind in the order the checks run.
var Kinds = []Kind{
	KindNotFound,
	KindMismatch,
	KindEcoThreshold,
	KindConsentMissing,
	KindConsentNotGranted,
	KindRightsCoercion,
	KindRightsCovertInference,
	KindRightsManipulation,
	KindConsentUnverified,
}

// Deny builds a denial of the given kind.
func Deny(kind Kind, reason string) *Denial {
	return deny(kind, reason)
}

// Denial is an expected outcome, not a failure. Required and Actual are set
// only for eco threshold denials.
type Denial struct {
	Kind     Kind     `json:"kind"`
	Reason   string   `json:"reason"`
	Required *float32 `json:"required,omitempty"`
	Actual   *float32 `json:"actual,omitempty"`
}

func (d *Denial) Error() string {
	return fmt.Sprintf("denied (%s): %s", d.Kind, d.Reason)
}

// IsDenial reports whether err carries a *Denial.
func IsDenial(err error) bool {
	var d *Denial
	return errors.As(err, &d)
}

// AsDenial extracts the *Denial from err, if any.
func AsDenial(err error) (*Denial, bool) {
	var d *Denial
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

func deny(kind Kind, reason string) *Denial {
	return &Denial{Kind: kind, Reason: reason}
}

// CheckPreconditions runs the guards in order and returns the first denial,
// or nil when every guard passes. Order is fixed so denial reasons are
// reproducible.
func CheckPreconditions(c corridor.Corridor, req corridor.ActionRequest) error {
	if req.CorridorID != c.ID {
		return deny(KindMismatch, fmt.Sprintf("corridor mismatch: request targets %q, record is %q",
			req.CorridorID, c.ID))
	}

	actual := c.Eco.Aggregate().Value()
	if req.RequiredMinEcoScore > actual {
		required := req.RequiredMinEcoScore
		return &Denial{
			Kind:     KindEcoThreshold,
			Reason:   fmt.Sprintf("eco score too low: required %.3f, actual %.3f", required, actual),
			Required: &required,
			Actual:   &actual,
		}
	}

	if req.HighImpact {
		if c.Consent == nil {
			return deny(KindConsentMissing, "high-impact action requires a consent credential; none present")
		}
		if !c.Consent.EffectivelyGranted() {
			return deny(KindConsentNotGranted, fmt.Sprintf("consent credential is not granted or has been revoked (status %s)",
				c.Consent.Status))
		}
	}

	r := c.Rights
	switch {
	case req.MayUseFearPainChannels && r.ForbidCoerciveSignaling:
		return deny(KindRightsCoercion, "corridor forbids coercive signaling; action may use fear/pain channels")
	case req.MayInferMentalState && r.ForbidCovertInference:
		return deny(KindRightsCovertInference, "corridor forbids covert inference; action may infer mental state")
	case req.MayAttemptBeliefShaping && r.ForbidBeliefManipulation:
		return deny(KindRightsManipulation, "corridor forbids belief manipulation; action may attempt belief shaping")
	}

	return nil
}

// Lookup resolves a corridor by id. Registries satisfy it.
type Lookup interface {
	Get(id corridor.ID) (corridor.Corridor, bool)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(id corridor.ID) (corridor.Corridor, bool)

// Get calls f.
func (f LookupFunc) Get(id corridor.ID) (corridor.Corridor, bool) { return f(id) }

// CheckRegistered resolves the request's corridor and then runs
// CheckPreconditions. An unregistered corridor is its own denial kind.
func CheckRegistered(lookup Lookup, req corridor.ActionRequest) error {
	c, ok := lookup.Get(req.CorridorID)
	if !ok {
		return NotRegistered(req.CorridorID)
	}
	return CheckPreconditions(c, req)
}

// NotRegistered is the denial for a request whose corridor is unknown.
func NotRegistered(id corridor.ID) *Denial {
	return deny(KindNotFound, fmt.Sprintf("corridor %q is not registered", id))
}
