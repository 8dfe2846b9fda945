package scenario

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/corridorwatch/internal/auth"
	"github.com/ppiankov/corridorwatch/internal/config"
	"github.com/ppiankov/corridorwatch/internal/consentsig"
	"github.com/ppiankov/corridorwatch/internal/corridor"
	"github.com/ppiankov/corridorwatch/internal/gate"
	"github.com/ppiankov/corridorwatch/internal/guard"
	"github.com/ppiankov/corridorwatch/internal/model"
	"github.com/ppiankov/corridorwatch/internal/registry"
)

// Run evaluates all cases in a scenario against cfg. Corridors come from
// base (may be nil) overlaid with the scenario's own. Cases are independent.
// Actions see the same registry options and consent signature step as the
// server built from cfg.
func Run(s *Scenario, cfg *config.Config, base []corridor.Corridor) *RunResult {
	result := &RunResult{
		Name:  s.Name,
		Total: len(s.Cases),
	}

	kernel, err := guard.NewKernel(cfg.Envelope, guard.WithIDSource(func() string { return "scenario" }))
	if err != nil {
		return fail(result, err)
	}

	verifier, err := consentsig.NewVerifier(cfg.Consent.TrustedKeys)
	if err != nil {
		return fail(result, err)
	}

	reg := registry.NewMemory(registry.RequireDID(cfg.Registry.RequireDID))
	if err := registry.Seed(reg, base); err != nil {
		return fail(result, err)
	}
	if len(s.Corridors) > 0 {
		data, err := yaml.Marshal(registry.SeedFile{Corridors: s.Corridors})
		if err != nil {
			return fail(result, err)
		}
		own, err := registry.ParseSeed(data)
		if err != nil {
			return fail(result, err)
		}
		if err := registry.Seed(reg, own); err != nil {
			return fail(result, err)
		}
	}

	for i, c := range s.Cases {
		cr := CaseResult{
			Index:    i + 1,
			Expected: strings.ToLower(strings.TrimSpace(c.Expect)),
		}

		var accepted []string
		switch {
		case c.Envelope != nil:
			rec := kernel.Evaluate(*c.Envelope)
			cr.Kind = KindEnvelope
			cr.Subject = fmt.Sprintf("composite %.3f", rec.Evaluation.CompositeMargin)
			cr.Actual = string(rec.Evaluation.Status)
			if result.WorstStatus == "" {
				result.WorstStatus = rec.Evaluation.Status
			} else {
				result.WorstStatus = model.Worse(result.WorstStatus, rec.Evaluation.Status)
			}
			cr.Reason = rec.Message
			accepted = []string{cr.Actual, string(model.DecisionForStatus(rec.Evaluation.Status))}

		case c.Action != nil:
			cr.Kind = KindAction
			cr.Subject = c.Action.CorridorID
			req, err := actionRequest(c.Action)
			if err != nil {
				cr.Actual = "invalid"
				cr.Reason = err.Error()
				break
			}
			if c, ok := reg.Get(req.CorridorID); ok {
				err = verifier.CheckAction(c, req)
			} else {
				err = gate.NotRegistered(req.CorridorID)
			}
			if d, ok := gate.AsDenial(err); ok {
				cr.Actual = string(d.Kind)
				cr.Reason = d.Reason
				accepted = []string{cr.Actual, "deny"}
			} else {
				cr.Actual = "allow"
				cr.Reason = "all preconditions satisfied"
				accepted = []string{cr.Actual}
			}

		case c.Access != nil:
			eval := auth.EvaluateMFA(*c.Access)
			verdict := auth.EvaluatePolicy(eval, cfg.Access.Policy, auth.Strict(cfg.Access.Strict))
			cr.Kind = KindAccess
			cr.Subject = "mfa"
			cr.Actual = string(eval.Decision)
			cr.Reason = eval.Explanation
			if verdict.Allowed {
				accepted = []string{cr.Actual, "allowed"}
			} else {
				accepted = []string{cr.Actual, "blocked"}
			}

		default:
			cr.Actual = "invalid"
			cr.Reason = "case sets none of envelope, action, access"
		}
		if c.Name != "" {
			cr.Subject = c.Name
		}

		for _, a := range accepted {
			if a == cr.Expected {
				cr.Passed = true
			}
		}
		if cr.Passed {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Cases = append(result.Cases, cr)
	}

	return result
}

func fail(r *RunResult, err error) *RunResult {
	r.Error = err.Error()
	r.Failed = r.Total
	return r
}

func actionRequest(a *ScenarioAction) (corridor.ActionRequest, error) {
	id, err := corridor.NewID(a.CorridorID)
	if err != nil {
		return corridor.ActionRequest{}, err
	}
	return corridor.NewActionRequest(id, a.RequiredMinEcoScore, a.HighImpact,
		a.MayUseFearPainChannels, a.MayInferMentalState, a.MayAttemptBeliefShaping)
}

// Parse decodes a scenario document.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadAndRun loads a scenario YAML file and the config, and runs. Corridors
// from the config's registry file are visible to every case.
func LoadAndRun(path, configPath string) (*RunResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}

	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var base []corridor.Corridor
	if cfg.Registry.File != "" {
		base, err = registry.LoadFile(cfg.Registry.File)
		if err != nil {
			return nil, fmt.Errorf("load registry: %w", err)
		}
	}

	result := Run(s, cfg, base)
	result.File = path

	return result, nil
}
