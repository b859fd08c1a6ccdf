package assessment

import (
	"math"

	"github.com/ppiankov/sentinel/internal/model"
)

// RiskLevel is the display band of a risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

var probabilityScores = map[model.Probability]float64{
	model.ProbabilityVeryLow:  10,
	model.ProbabilityLow:      25,
	model.ProbabilityMedium:   50,
	model.ProbabilityHigh:     75,
	model.ProbabilityVeryHigh: 90,
}

var severityScores = map[model.Severity]float64{
	model.SeverityMinor:    10,
	model.SeverityModerate: 30,
	model.SeveritySerious:  50,
	model.SeveritySevere:   75,
	model.SeverityCritical: 95,
}

const (
	probabilityWeight = 0.4
	severityWeight    = 0.6
)

// ScoreEstimate computes the 0-100 risk score of an estimate.
// Unknown enum values contribute zero.
func ScoreEstimate(est model.ThreatEstimate) int {
	score := probabilityScores[est.Probability]*probabilityWeight + severityScores[est.Severity]*severityWeight
	return int(math.Round(score))
}

// CalculateRiskScore computes the risk score of an assessment from its
// estimate. It is never stored on the assessment.
func CalculateRiskScore(a *model.RiskAssessment) int {
	return ScoreEstimate(a.Estimate)
}

// GetRiskLevel maps a score to its band.
func GetRiskLevel(score int) RiskLevel {
	switch {
	case score >= 80:
		return RiskCritical
	case score >= 60:
		return RiskHigh
	case score >= 40:
		return RiskMedium
	default:
		return RiskLow
	}
}
