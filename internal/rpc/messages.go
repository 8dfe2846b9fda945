// Package rpc defines the corridorwatch.v1 gRPC service. Messages travel as
// google.protobuf.Struct carrying the JSON form of the Go types below, so no
// protoc step is needed.
package rpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/corridorwatch/internal/auth"
	"github.com/ppiankov/corridorwatch/internal/corridor"
	"github.com/ppiankov/corridorwatch/internal/gate"
	"github.com/ppiankov/corridorwatch/internal/guard"
	"github.com/ppiankov/corridorwatch/internal/model"
)

// EnvelopeRequest asks for one guard evaluation.
type EnvelopeRequest struct {
	TraceID   string                   `json:"trace_id,omitempty"`
	Telemetry model.InterfaceTelemetry `json:"telemetry"`
}

// EnvelopeResponse carries the recommendation and its coarse decision.
type EnvelopeResponse struct {
	TraceID        string               `json:"trace_id"`
	Decision       model.Decision       `json:"decision"`
	Recommendation guard.Recommendation `json:"recommendation"`
}

// ActionRequest asks the gate about a proposed action.
type ActionRequest struct {
	TraceID string                 `json:"trace_id,omitempty"`
	Request corridor.ActionRequest `json:"request"`
}

// ActionResponse is the gate verdict. Denial is nil when Allowed.
type ActionResponse struct {
	TraceID   string       `json:"trace_id"`
	Allowed   bool         `json:"allowed"`
	Denial    *gate.Denial `json:"denial,omitempty"`
	RiskLabel string       `json:"advisory_risk_label,omitempty"`
}

// AccessRequest carries the factor context. Policy overrides the configured
// policy when set.
type AccessRequest struct {
	TraceID string             `json:"trace_id,omitempty"`
	Context auth.Context       `json:"context"`
	Policy  *auth.AccessPolicy `json:"policy,omitempty"`
}

// AccessResponse is the MFA evaluation, the folded verdict and the policy
// that produced it.
type AccessResponse struct {
	TraceID    string            `json:"trace_id"`
	Evaluation auth.Evaluation   `json:"evaluation"`
	Verdict    auth.Verdict      `json:"verdict"`
	Policy     auth.AccessPolicy `json:"policy"`
	Strict     bool              `json:"strict"`
}

// CorridorRequest names one corridor.
type CorridorRequest struct {
	ID string `json:"id"`
}

// CorridorRecord is a stored corridor plus its advisory label.
type CorridorRecord struct {
	Corridor  corridor.Corridor `json:"corridor"`
	RiskLabel string            `json:"advisory_risk_label"`
}

// UpsertRequest replaces one corridor record.
type UpsertRequest struct {
	TraceID  string            `json:"trace_id,omitempty"`
	Corridor corridor.Corridor `json:"corridor"`
}

// ListRequest is empty; it exists so every method takes a Struct.
type ListRequest struct{}

// ListResponse holds every registered corridor sorted by id.
type ListResponse struct {
	Corridors []CorridorRecord `json:"corridors"`
}

// Record builds a CorridorRecord.
func Record(c corridor.Corridor) CorridorRecord {
	return CorridorRecord{Corridor: c, RiskLabel: c.AdvisoryRiskLabel()}
}

// ToStruct encodes v through its JSON form.
func ToStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return s, nil
}

// FromStruct decodes s into v through its JSON form. A nil Struct decodes
// as an empty object.
func FromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}
