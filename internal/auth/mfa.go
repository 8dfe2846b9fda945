// Package auth folds authentication factors into a decision and folds that
// decision with access-policy flags into a verdict.
package auth

// HighConfidence is the minimum biometric-like factor confidence that
// counts as satisfied.
const HighConfidence = 0.9

// Decision is the outcome of multi-factor evaluation.
type Decision string

const (
	Deny                     Decision = "deny"
	RequireAdditionalFactors Decision = "require_additional_factors"
	Allow                    Decision = "allow"
)

// BiometricFactor is metadata about a biometric-like factor. No raw
// biometrics are carried, only a hash reference and a confidence.
type BiometricFactor struct {
	ID            string  `json:"id" yaml:"id"`
	HashReference string  `json:"hash_reference" yaml:"hash_reference"`
	Confidence    float32 `json:"confidence" yaml:"confidence"`
}

// Context holds the three independent factors.
type Context struct {
	Knowledge  bool             `json:"knowledge" yaml:"knowledge"`
	Possession bool             `json:"possession" yaml:"possession"`
	Biometric  *BiometricFactor `json:"biometric,omitempty" yaml:"biometric,omitempty"`
}

// Evaluation is the decision plus its fixed explanation.
type Evaluation struct {
	Decision    Decision `json:"decision"`
	Explanation string   `json:"explanation"`
}

var explanations = map[Decision]string{
	Allow:                    "All three layers satisfied (knowledge, possession, biometric-like factor).",
	RequireAdditionalFactors: "Knowledge and possession present; biometric-like factor insufficient or missing.",
	Deny:                     "Authentication factors incomplete; access denied by policy.",
}

// EvaluateMFA applies the decision table. A missing biometric factor counts
// as failing.
func EvaluateMFA(ctx Context) Evaluation {
	high := ctx.Biometric != nil && ctx.Biometric.Confidence >= HighConfidence

	d := Deny
	if ctx.Knowledge && ctx.Possession {
		if high {
			d = Allow
		} else {
			d = RequireAdditionalFactors
		}
	}
	return Evaluation{Decision: d, Explanation: explanations[d]}
}
