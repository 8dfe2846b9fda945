package corridor

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidRequest wraps action request validation failures.
var ErrInvalidRequest = errors.New("invalid action request")

// ActionRequest describes a proposed action that must be checked against a
// corridor before any high-impact system considers running.
type ActionRequest struct {
	CorridorID ID `json:"corridor_id"`
	// RequiredMinEcoScore is the lowest corridor aggregate the action accepts.
	RequiredMinEcoScore     float32 `json:"required_min_eco_score"`
	HighImpact              bool    `json:"high_impact"`
	MayUseFearPainChannels  bool    `json:"may_use_fear_pain_channels"`
	MayInferMentalState     bool    `json:"may_infer_mental_state"`
	MayAttemptBeliefShaping bool    `json:"may_attempt_belief_shaping"`
}

// NewActionRequest builds and validates a request.
func NewActionRequest(id ID, minEco float32, highImpact, fearPain, inferMental, beliefShaping bool) (ActionRequest, error) {
	r := ActionRequest{
		CorridorID:              id,
		RequiredMinEcoScore:     minEco,
		HighImpact:              highImpact,
		MayUseFearPainChannels:  fearPain,
		MayInferMentalState:     inferMental,
		MayAttemptBeliefShaping: beliefShaping,
	}
	if err := r.Validate(); err != nil {
		return ActionRequest{}, err
	}
	return r, nil
}

// Validate checks a decoded request.
func (r ActionRequest) Validate() error {
	if r.CorridorID.IsZero() {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, ErrEmptyID)
	}
	v := float64(r.RequiredMinEcoScore)
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%w: required_min_eco_score must be within [0.0, 1.0], got %v",
			ErrInvalidRequest, r.RequiredMinEcoScore)
	}
	return nil
}
