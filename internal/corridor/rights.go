package corridor

// RightsConstraints are declarative neurorights obligations attached to a
// corridor. They label obligations; nothing here changes state.
type RightsConstraints struct {
	ForbidCoerciveSignaling  bool   `json:"forbid_coercive_signaling"`
	ForbidCovertInference    bool   `json:"forbid_covert_inference"`
	ForbidBeliefManipulation bool   `json:"forbid_belief_manipulation"`
	RequireNonActuation      bool   `json:"require_non_actuation"`
	EnvelopeRef              string `json:"envelope_ref,omitempty"`
}

// StrictFloor sets every obligation.
func StrictFloor() RightsConstraints {
	return RightsConstraints{
		ForbidCoerciveSignaling:  true,
		ForbidCovertInference:    true,
		ForbidBeliefManipulation: true,
		RequireNonActuation:      true,
	}
}

// IsEmpty reports whether no obligation is set.
func (r RightsConstraints) IsEmpty() bool {
	return !r.ForbidCoerciveSignaling && !r.ForbidCovertInference &&
		!r.ForbidBeliefManipulation && !r.RequireNonActuation
}
