package audit

// Evaluation kinds recorded in the log.
const (
	KindEnvelope = "envelope"
	KindAction   = "action"
	KindAccess   = "access"
	KindUpsert   = "upsert"
)

// AuditEntry is one line in the hash-chained JSONL audit log.
// All fields are scalars or pointers (no map[string]any) so json.Marshal
// field order is deterministic and hashing is reproducible.
type AuditEntry struct {
	Timestamp string `json:"ts"`
	TraceID   string `json:"trace_id"`
	Kind      string `json:"kind"`
	// Subject is the corridor id for action and upsert entries, the
	// recommendation id for envelope entries. Access entries carry the
	// biometric factor id, or "anonymous" when none was presented.
	Subject  string `json:"subject"`
	Decision string `json:"decision"`
	// Detail narrows Decision: envelope status or gate denial kind.
	Detail          string   `json:"detail,omitempty"`
	Reason          string   `json:"reason"`
	CompositeMargin *float32 `json:"composite_margin,omitempty"`
	ConfigID        string   `json:"config_id"`
	PrevHash        string   `json:"prev_hash"`
}
