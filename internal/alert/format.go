package alert

import (
	"encoding/json"
	"fmt"
)

// FormatPayload builds the webhook body for the given format.
func FormatPayload(format string, event AlertEvent) ([]byte, error) {
	switch format {
	case "slack":
		return formatSlack(event)
	case "pagerduty":
		return formatPagerDuty(event)
	default:
		return formatGeneric(event)
	}
}

func formatGeneric(event AlertEvent) ([]byte, error) {
	return json.Marshal(event)
}

func formatSlack(event AlertEvent) ([]byte, error) {
	fields := []any{
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Kind:* %s", event.Kind)},
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Subject:* %s", event.Subject)},
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Severity:* %s", severityFor(event.Decision))},
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Reason:* %s", event.Reason)},
	}
	if event.CompositeMargin != nil {
		fields = append(fields, map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Composite margin:* %.3f", *event.CompositeMargin)})
	}

	payload := map[string]any{
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("corridorwatch: %s", event.Decision),
				},
			},
			map[string]any{
				"type":   "section",
				"fields": fields,
			},
		},
	}
	return json.Marshal(payload)
}

func formatPagerDuty(event AlertEvent) ([]byte, error) {
	payload := map[string]any{
		"event_action": "trigger",
		"payload": map[string]any{
			"summary":  fmt.Sprintf("corridorwatch %s: %s", event.Decision, event.Subject),
			"severity": severityFor(event.Decision),
			"source":   "corridorwatch",
			"custom_details": map[string]any{
				"kind":      event.Kind,
				"subject":   event.Subject,
				"type":      event.Type,
				"reason":    event.Reason,
				"trace_id":  event.TraceID,
				"config_id": event.ConfigID,
			},
		},
	}
	return json.Marshal(payload)
}

func severityFor(decision string) string {
	switch decision {
	case "hard_deny":
		return "critical"
	case "deny":
		return "error"
	case "caution":
		return "warning"
	default:
		return "info"
	}
}
