package alert

// AlertConfig defines a webhook alert destination.
type AlertConfig struct {
	URL     string            `yaml:"url"     json:"url"`
	Format  string            `yaml:"format"  json:"format"` // "generic", "slack", "pagerduty"
	Events  []string          `yaml:"events"  json:"events"` // ["hard_deny", "caution", "deny", "consent_missing"]
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// AlertEvent is the payload sent to webhook endpoints.
type AlertEvent struct {
	Timestamp string `json:"timestamp"`
	TraceID   string `json:"trace_id"`
	// Kind is the evaluation that fired: envelope, action or access.
	Kind     string `json:"kind"`
	Subject  string `json:"subject"`
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
	// Type narrows Decision, e.g. the gate denial kind.
	Type            string   `json:"type,omitempty"`
	CompositeMargin *float32 `json:"composite_margin,omitempty"`
	ConfigID        string   `json:"config_id"`
}
