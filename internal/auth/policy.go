package auth

// Compliance records which frameworks a deployment claims to follow. The
// flags are reported alongside verdicts and do not affect them.
type Compliance struct {
	GDPR     bool `json:"gdpr" yaml:"gdpr"`
	ISO27001 bool `json:"iso27001" yaml:"iso27001"`
	SOC2     bool `json:"soc2" yaml:"soc2"`
}

// AccessPolicy is the set of governance flags a verdict is checked against.
type AccessPolicy struct {
	RoleBasedAccess  bool       `json:"role_based_access" yaml:"role_based_access"`
	AccessLogging    bool       `json:"access_logging" yaml:"access_logging"`
	DataMinimization bool       `json:"data_minimization" yaml:"data_minimization"`
	LawfulProcessing bool       `json:"lawful_processing" yaml:"lawful_processing"`
	Compliance       Compliance `json:"compliance" yaml:"compliance"`
}

// DefaultAccessPolicy has every flag enabled.
func DefaultAccessPolicy() AccessPolicy {
	return AccessPolicy{
		RoleBasedAccess:  true,
		AccessLogging:    true,
		DataMinimization: true,
		LawfulProcessing: true,
		Compliance:       Compliance{GDPR: true, ISO27001: true, SOC2: true},
	}
}

// Verdict is the folded access decision.
type Verdict struct {
	Allowed bool     `json:"allowed"`
	Reasons []string `json:"reasons"`
}

// PolicyOption adjusts EvaluatePolicy.
type PolicyOption func(*policyOptions)

type policyOptions struct {
	strict bool
}

// Strict makes every disabled governance flag deny the request. Without it,
// disabled flags are reported as reasons but an Allow decision stays allowed.
func Strict(on bool) PolicyOption {
	return func(o *policyOptions) { o.strict = on }
}

// EvaluatePolicy folds an MFA evaluation and a policy into a verdict.
func EvaluatePolicy(eval Evaluation, policy AccessPolicy, opts ...PolicyOption) Verdict {
	var o policyOptions
	for _, opt := range opts {
		opt(&o)
	}

	reasons := []string{}
	allowed := false
	switch eval.Decision {
	case Allow:
		allowed = true
	case RequireAdditionalFactors:
		reasons = append(reasons, "Additional authentication factors required.")
	default:
		reasons = append(reasons, "Authentication decision = Deny.")
	}

	gaps := 0
	if !policy.RoleBasedAccess {
		reasons = append(reasons, "Role-based access control disabled; policy expects RBAC.")
		gaps++
	}
	if !policy.AccessLogging {
		reasons = append(reasons, "Access logging disabled; policy expects full audit trail.")
		gaps++
	}
	if !policy.DataMinimization {
		reasons = append(reasons, "Data minimization not enforced.")
		gaps++
	}
	if !policy.LawfulProcessing {
		reasons = append(reasons, "Lawful processing flag is false.")
		gaps++
	}

	if o.strict && gaps > 0 {
		allowed = false
	}
	return Verdict{Allowed: allowed, Reasons: reasons}
}
