package scenario

import (
	"github.com/ppiankov/corridorwatch/internal/auth"
	"github.com/ppiankov/corridorwatch/internal/model"
)

// Case kinds, named by the field that is set.
const (
	KindEnvelope = "envelope"
	KindAction   = "action"
	KindAccess   = "access"
)

// ScenarioAction is a proposed action in YAML form.
type ScenarioAction struct {
	CorridorID              string  `yaml:"corridor_id"`
	RequiredMinEcoScore     float32 `yaml:"required_min_eco_score"`
	HighImpact              bool    `yaml:"high_impact,omitempty"`
	MayUseFearPainChannels  bool    `yaml:"may_use_fear_pain_channels,omitempty"`
	MayInferMentalState     bool    `yaml:"may_infer_mental_state,omitempty"`
	MayAttemptBeliefShaping bool    `yaml:"may_attempt_belief_shaping,omitempty"`
}

// Case is one test case within a scenario. Exactly one of Envelope, Action
// or Access is set.
//
// Expect is matched against:
//   - envelope: the status (safe, caution, hard_deny) or decision (allow, deny)
//   - action: "allow", "deny", or a denial kind such as consent_missing
//   - access: the factor decision (allow, require_additional_factors, deny),
//     or "allowed"/"blocked" for the policy verdict
type Case struct {
	Name     string                    `yaml:"name,omitempty"`
	Envelope *model.InterfaceTelemetry `yaml:"envelope,omitempty"`
	Action   *ScenarioAction           `yaml:"action,omitempty"`
	Access   *auth.Context             `yaml:"access,omitempty"`
	Expect   string                    `yaml:"expect"`
}

// Scenario is a named collection of test cases. Corridors use the registry
// seed file shape and are visible only to this scenario.
type Scenario struct {
	Name      string `yaml:"name"`
	Corridors []any  `yaml:"corridors,omitempty"`
	Cases     []Case `yaml:"cases"`
}

// CaseResult is the outcome of evaluating one test case.
type CaseResult struct {
	Index    int    `json:"index"`
	Passed   bool   `json:"passed"`
	Kind     string `json:"kind"`
	Subject  string `json:"subject"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Reason   string `json:"reason"`
}

// RunResult is the outcome of running all cases in one scenario file.
type RunResult struct {
	File   string       `json:"file"`
	Name   string       `json:"name"`
	Total  int          `json:"total"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Error  string       `json:"error,omitempty"`
	Cases  []CaseResult `json:"cases"`

	// WorstStatus is the most severe status any envelope case produced.
	WorstStatus model.EnvelopeStatus `json:"worst_status,omitempty"`
}
