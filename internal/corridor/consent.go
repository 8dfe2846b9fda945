package corridor

import (
	"time"
)

// ConsentStatus is the snapshot of an FPIC/IDS decision. Only granted
// authorizes; transitions are owned by an external ledger.
type ConsentStatus string

const (
	ConsentPending  ConsentStatus = "pending"
	ConsentGranted  ConsentStatus = "granted"
	ConsentWithheld ConsentStatus = "withheld"
	ConsentRevoked  ConsentStatus = "revoked"
)

// Valid reports whether s is a known status.
func (s ConsentStatus) Valid() bool {
	switch s {
	case ConsentPending, ConsentGranted, ConsentWithheld, ConsentRevoked:
		return true
	}
	return false
}

// FPICStatus is the community-level FPIC decision for a corridor.
// Granted carries communities and terms; Withheld carries a reason.
type FPICStatus struct {
	Status      ConsentStatus `json:"status"`
	At          *time.Time    `json:"at,omitempty"`
	Communities []string      `json:"communities,omitempty"`
	TermsRef    string        `json:"terms_ref,omitempty"`
	Reason      string        `json:"reason,omitempty"`
}

// FPICPending is a corridor with no FPIC decision yet.
func FPICPending() FPICStatus {
	return FPICStatus{Status: ConsentPending}
}

// FPICGranted records a grant under specific terms.
func FPICGranted(at time.Time, communities []string, termsRef string) FPICStatus {
	return FPICStatus{
		Status:      ConsentGranted,
		At:          &at,
		Communities: append([]string(nil), communities...),
		TermsRef:    termsRef,
	}
}

// FPICWithheld records a withheld or revoked decision.
func FPICWithheld(at time.Time, reason string) FPICStatus {
	return FPICStatus{Status: ConsentWithheld, At: &at, Reason: reason}
}

// IsActiveGrant reports whether FPIC is currently granted.
func (f FPICStatus) IsActiveGrant() bool {
	return f.Status == ConsentGranted
}

// VerifiableConsent is a minimal consent credential in the shape of a W3C VC.
// The signature is carried, not checked: cryptographic validity belongs to an
// external verifier.
type VerifiableConsent struct {
	IssuerDID         string        `json:"issuer_did"`
	SubjectCorridorID string        `json:"subject_corridor_id"`
	Status            ConsentStatus `json:"status"`
	IssuedAt          time.Time     `json:"issued_at"`
	RevokedAt         *time.Time    `json:"revoked_at,omitempty"`
	Signature         string        `json:"signature,omitempty"`
}

// EffectivelyGranted is true only for granted status with no revocation.
func (vc VerifiableConsent) EffectivelyGranted() bool {
	return vc.Status == ConsentGranted && vc.RevokedAt == nil
}

// IDSScope tags Indigenous Data Sovereignty governance for a corridor.
type IDSScope struct {
	ContainsIndigenousData bool   `json:"contains_indigenous_data"`
	GovernedByIDSFramework bool   `json:"governed_by_ids_framework"`
	GovernanceRef          string `json:"governance_ref,omitempty"`
}
