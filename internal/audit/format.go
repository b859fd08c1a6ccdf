package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a query result as a text timeline.
func FormatTimeline(res *QueryResult) string {
	if len(res.Entries) == 0 {
		return "No audit entries found.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Audit: %s – %s UTC\n", formatStamp(res.Summary.First, "2006-01-02 15:04:05"), formatStamp(res.Summary.Last, "15:04:05"))
	b.WriteString(separator + "\n")

	for _, e := range res.Entries {
		risk := ""
		if e.RiskScore > 0 {
			risk = fmt.Sprintf("risk=%d", e.RiskScore)
		}
		fmt.Fprintf(&b, "%-9s %-19s %-22s %-38s %s\n",
			formatStamp(e.Timestamp, "15:04:05"),
			e.Event,
			strings.ToUpper(e.Decision),
			truncate(e.Subject, 38),
			risk)
	}

	b.WriteString(separator + "\n")
	s := res.Summary
	fmt.Fprintf(&b, "Summary: %d entries | %d checks (%d failed, %d shutdown) | %d assessments | %d transitions | max risk %d\n",
		s.Total, s.Checks, s.Failed, s.Shutdowns, s.Assessments, s.Transitions, s.MaxRisk)
	return b.String()
}

// FormatJSON renders a query result as indented JSON.
func FormatJSON(res *QueryResult) (string, error) {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", fmt.Errorf("audit: marshal result: %w", err)
	}
	return string(data), nil
}

func formatStamp(ts, layout string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format(layout)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
