package alert

import (
	"encoding/json"
	"fmt"
)

// FormatPayload builds the request body for the given format.
// The nats format publishes the generic JSON body.
func FormatPayload(format string, event Event) ([]byte, error) {
	switch format {
	case FormatSlack:
		return formatSlack(event)
	case FormatPagerDuty:
		return formatPagerDuty(event)
	default:
		return json.Marshal(event)
	}
}

func formatSlack(event Event) ([]byte, error) {
	fields := []any{
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Subject:* %s", event.Subject)},
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Severity:* %s", event.Severity)},
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Reason:* %s", event.Reason)},
	}
	if event.RiskScore > 0 {
		fields = append(fields, map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Risk score:* %d", event.RiskScore)})
	}

	payload := map[string]any{
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("sentinel: %s", event.Type),
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

func formatPagerDuty(event Event) ([]byte, error) {
	severity := "warning"
	if event.Severity == "critical" {
		severity = "critical"
	}

	payload := map[string]any{
		"event_action": "trigger",
		"payload": map[string]any{
			"summary":  fmt.Sprintf("sentinel %s: %s", event.Type, event.Subject),
			"severity": severity,
			"source":   "sentinel",
			"custom_details": map[string]any{
				"subject":          event.Subject,
				"reason":           event.Reason,
				"risk_score":       event.RiskScore,
				"constraints_hash": event.ConstraintsHash,
			},
		},
	}
	return json.Marshal(payload)
}
