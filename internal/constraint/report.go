package constraint

import (
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/sentinel/internal/model"
)

// ShouldShutdown reports whether any violation is critical.
func ShouldShutdown(result model.ConstraintCheckResult) bool {
	for _, v := range result.Violations {
		if v.Severity == model.LevelCritical {
			return true
		}
	}
	return false
}

// FormatCheckResult renders a human-readable summary of a check.
func FormatCheckResult(result model.ConstraintCheckResult) string {
	var b strings.Builder
	if result.Passed {
		b.WriteString("PASSED: no constraint violations\n")
		return b.String()
	}

	fmt.Fprintf(&b, "FAILED: %d constraint violation(s)\n", len(result.Violations))
	for _, v := range result.Violations {
		fmt.Fprintf(&b, "  [%s] %s: %s\n", strings.ToUpper(string(v.Severity)), v.ConstraintName, v.Reason)
	}
	if ShouldShutdown(result) {
		b.WriteString("\n!!! SHUTDOWN REQUIRED: critical constraint violated, action must not proceed !!!\n")
	}
	return b.String()
}

// ReportViolation is a violation annotated with remediation advice.
type ReportViolation struct {
	ConstraintID   string                `json:"constraintId"`
	ConstraintName string                `json:"constraintName"`
	Severity       model.ConstraintLevel `json:"severity"`
	Reason         string                `json:"reason"`
	Recommendation string                `json:"recommendation"`
}

// Report is the structured form of a check, suitable for display or storage.
type Report struct {
	Action               string            `json:"action"`
	Passed               bool              `json:"passed"`
	ShouldShutdown       bool              `json:"shouldShutdown"`
	Summary              string            `json:"summary"`
	Violations           []ReportViolation `json:"violations"`
	SuggestedAlternative string            `json:"suggestedAlternative,omitempty"`
	CheckedAt            time.Time         `json:"checkedAt"`
}

// GenerateReport wraps a check result with per-violation recommendations
// and a single suggested alternative. The alternative follows a fixed
// priority: violence, then autonomous action, then privacy, then monitoring.
func GenerateReport(result model.ConstraintCheckResult, action string) Report {
	r := Report{
		Action:         action,
		Passed:         result.Passed,
		ShouldShutdown: ShouldShutdown(result),
		Summary:        FormatCheckResult(result),
		Violations:     make([]ReportViolation, 0, len(result.Violations)),
		CheckedAt:      result.Timestamp,
	}

	violated := make(map[string]bool, len(result.Violations))
	for _, v := range result.Violations {
		violated[v.ConstraintID] = true
		rec, ok := recommendations[v.ConstraintID]
		if !ok {
			rec = defaultRecommendation
		}
		r.Violations = append(r.Violations, ReportViolation{
			ConstraintID:   v.ConstraintID,
			ConstraintName: v.ConstraintName,
			Severity:       v.Severity,
			Reason:         v.Reason,
			Recommendation: rec,
		})
	}

	if len(result.Violations) > 0 {
		switch {
		case violated[NoViolence]:
			r.SuggestedAlternative = alternativeViolence
		case violated[NoAutonomousAction]:
			r.SuggestedAlternative = alternativeAutonomous
		case violated[PrivacyProtection]:
			r.SuggestedAlternative = alternativePrivacy
		default:
			r.SuggestedAlternative = alternativeMonitor
		}
	}
	return r
}
