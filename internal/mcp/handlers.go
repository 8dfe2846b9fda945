package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/corridorwatch/internal/auth"
	"github.com/ppiankov/corridorwatch/internal/corridor"
	"github.com/ppiankov/corridorwatch/internal/model"
	"github.com/ppiankov/corridorwatch/internal/rpc"
)

// --- Input/Output types ---

// EnvelopeInput defines parameters for the corridor_envelope tool.
type EnvelopeInput struct {
	TraceID            string  `json:"trace_id,omitempty" jsonschema:"trace id to correlate evaluations"`
	MechDensity        float64 `json:"mech_density" jsonschema:"mechanical integration density"`
	InterfaceCoherence float64 `json:"interface_coherence" jsonschema:"interface coherence, higher is better"`
	EmField            float64 `json:"em_field" jsonschema:"electromagnetic field intensity"`
	ThermalLoad        float64 `json:"thermal_load" jsonschema:"thermal load"`
	Inflammation       float64 `json:"inflammation" jsonschema:"inflammation index"`
	SpikeEnergy        float64 `json:"spike_energy" jsonschema:"spike energy"`
}

// EnvelopeOutput contains the recommendation.
type EnvelopeOutput struct {
	TraceID           string  `json:"trace_id"`
	RecommendationID  string  `json:"recommendation_id"`
	Decision          string  `json:"decision"`
	Status            string  `json:"status"`
	CompositeMargin   float64 `json:"composite_margin"`
	WeakestDimension  string  `json:"weakest_dimension"`
	Message           string  `json:"message"`
	RecommendedAction string  `json:"recommended_action"`
}

// ActionInput defines parameters for the corridor_check_action tool.
type ActionInput struct {
	TraceID                 string  `json:"trace_id,omitempty" jsonschema:"trace id to correlate evaluations"`
	CorridorID              string  `json:"corridor_id" jsonschema:"target corridor id"`
	RequiredMinEcoScore     float64 `json:"required_min_eco_score" jsonschema:"minimum aggregate eco score, 0 to 1"`
	HighImpact              bool    `json:"high_impact,omitempty" jsonschema:"action needs a granted consent credential"`
	MayUseFearPainChannels  bool    `json:"may_use_fear_pain_channels,omitempty" jsonschema:"action may use fear or pain channels"`
	MayInferMentalState     bool    `json:"may_infer_mental_state,omitempty" jsonschema:"action may infer mental state"`
	MayAttemptBeliefShaping bool    `json:"may_attempt_belief_shaping,omitempty" jsonschema:"action may attempt belief shaping"`
}

// ActionOutput contains the gate verdict.
type ActionOutput struct {
	TraceID   string `json:"trace_id,omitempty"`
	Allowed   bool   `json:"allowed"`
	Kind      string `json:"kind,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RiskLabel string `json:"advisory_risk_label,omitempty"`
}

// AccessInput defines parameters for the corridor_access tool.
type AccessInput struct {
	TraceID             string   `json:"trace_id,omitempty" jsonschema:"trace id to correlate evaluations"`
	Knowledge           bool     `json:"knowledge" jsonschema:"knowledge factor present"`
	Possession          bool     `json:"possession" jsonschema:"possession factor present"`
	BiometricID         string   `json:"biometric_id,omitempty" jsonschema:"biometric factor id"`
	BiometricConfidence *float64 `json:"biometric_confidence,omitempty" jsonschema:"biometric match confidence, 0 to 1; omit when absent"`
}

// AccessOutput contains the decision and policy verdict.
type AccessOutput struct {
	TraceID     string   `json:"trace_id"`
	Decision    string   `json:"decision"`
	Explanation string   `json:"explanation"`
	Allowed     bool     `json:"allowed"`
	Reasons     []string `json:"reasons,omitempty"`
}

// ListInput is empty; no parameters needed.
type ListInput struct{}

// ListOutput lists registered corridors.
type ListOutput struct {
	Corridors []CorridorItem `json:"corridors"`
}

// CorridorItem summarizes one corridor.
type CorridorItem struct {
	ID        string  `json:"id"`
	Kind      string  `json:"kind,omitempty"`
	EcoScore  float64 `json:"eco_score"`
	RiskLabel string  `json:"advisory_risk_label"`
}

// --- Handlers ---

func (s *Server) handleEnvelope(ctx context.Context, req *mcpsdk.CallToolRequest, input EnvelopeInput) (*mcpsdk.CallToolResult, EnvelopeOutput, error) {
	resp := s.eval.Envelope(rpc.EnvelopeRequest{
		TraceID: input.TraceID,
		Telemetry: model.InterfaceTelemetry{
			MechDensity:        model.MechDensity(input.MechDensity),
			InterfaceCoherence: model.InterfaceCoherence(input.InterfaceCoherence),
			EmField:            model.EmFieldIntensity(input.EmField),
			ThermalLoad:        model.ThermalLoad(input.ThermalLoad),
			Inflammation:       model.InflammationIndex(input.Inflammation),
			SpikeEnergy:        model.SpikeEnergy(input.SpikeEnergy),
		},
	})
	rec := resp.Recommendation
	return nil, EnvelopeOutput{
		TraceID:           resp.TraceID,
		RecommendationID:  rec.ID,
		Decision:          string(resp.Decision),
		Status:            string(rec.Evaluation.Status),
		CompositeMargin:   float64(rec.Evaluation.CompositeMargin),
		WeakestDimension:  string(rec.Evaluation.Weakest),
		Message:           rec.Message,
		RecommendedAction: rec.RecommendedAction,
	}, nil
}

func (s *Server) handleCheckAction(ctx context.Context, req *mcpsdk.CallToolRequest, input ActionInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	id, err := corridor.NewID(input.CorridorID)
	if err != nil {
		return nil, ActionOutput{}, err
	}
	resp, err := s.eval.Action(rpc.ActionRequest{
		TraceID: input.TraceID,
		Request: corridor.ActionRequest{
			CorridorID:              id,
			RequiredMinEcoScore:     float32(input.RequiredMinEcoScore),
			HighImpact:              input.HighImpact,
			MayUseFearPainChannels:  input.MayUseFearPainChannels,
			MayInferMentalState:     input.MayInferMentalState,
			MayAttemptBeliefShaping: input.MayAttemptBeliefShaping,
		},
	})
	if err != nil {
		return nil, ActionOutput{}, err
	}

	out := ActionOutput{TraceID: resp.TraceID, Allowed: resp.Allowed, RiskLabel: resp.RiskLabel}
	if resp.Denial != nil {
		out.Kind = string(resp.Denial.Kind)
		out.Reason = resp.Denial.Reason
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func (s *Server) handleAccess(ctx context.Context, req *mcpsdk.CallToolRequest, input AccessInput) (*mcpsdk.CallToolResult, AccessOutput, error) {
	actx := auth.Context{Knowledge: input.Knowledge, Possession: input.Possession}
	if input.BiometricConfidence != nil {
		actx.Biometric = &auth.BiometricFactor{ID: input.BiometricID, Confidence: float32(*input.BiometricConfidence)}
	}
	resp := s.eval.Access(rpc.AccessRequest{TraceID: input.TraceID, Context: actx})
	return nil, AccessOutput{
		TraceID:     resp.TraceID,
		Decision:    string(resp.Evaluation.Decision),
		Explanation: resp.Evaluation.Explanation,
		Allowed:     resp.Verdict.Allowed,
		Reasons:     resp.Verdict.Reasons,
	}, nil
}

func (s *Server) handleList(ctx context.Context, req *mcpsdk.CallToolRequest, input ListInput) (*mcpsdk.CallToolResult, ListOutput, error) {
	list := s.eval.Corridors()
	out := ListOutput{Corridors: make([]CorridorItem, len(list.Corridors))}
	for i, r := range list.Corridors {
		out.Corridors[i] = CorridorItem{
			ID:        r.Corridor.ID.String(),
			Kind:      string(r.Corridor.Kind),
			EcoScore:  float64(r.Corridor.Eco.Aggregate().Value()),
			RiskLabel: r.RiskLabel,
		}
	}
	return nil, out, nil
}
