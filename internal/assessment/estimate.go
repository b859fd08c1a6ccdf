package assessment

import (
	"fmt"
	"strings"

	"github.com/ppiankov/sentinel/internal/model"
)

// EstimateThreat derives probability, severity and uncertainty from the
// identification using the fixed rule table.
func EstimateThreat(ident model.ThreatIdentification) model.ThreatEstimate {
	probability := model.ProbabilityMedium
	severity := model.SeverityModerate
	uncertainty := model.UncertaintyMedium
	dataQuality := model.DataQualityFair

	switch ident.TimeFrame {
	case model.TimeFrameImminent:
		probability = model.ProbabilityHigh
	case model.TimeFrameLongTerm:
		probability = model.ProbabilityLow
		uncertainty = model.UncertaintyLow
	}

	switch ident.HarmType {
	case model.HarmPhysicalViolence, model.HarmSelfHarm:
		severity = model.SeveritySevere
	case model.HarmPsychologicalAbuse:
		severity = model.SeveritySerious
	}

	// Only the high and medium rungs step down; very-high and very-low are
	// left untouched.
	if ident.Perpetrator == "" {
		switch uncertainty {
		case model.UncertaintyHigh:
			uncertainty = model.UncertaintyMedium
		case model.UncertaintyMedium:
			uncertainty = model.UncertaintyLow
		}
	}

	return model.ThreatEstimate{
		Probability:    probability,
		Severity:       severity,
		Uncertainty:    uncertainty,
		DataQuality:    dataQuality,
		RationaleBrief: rationale(ident, probability, severity),
	}
}

func rationale(ident model.ThreatIdentification, p model.Probability, s model.Severity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Harm type: %s. ", ident.HarmType)
	fmt.Fprintf(&b, "Timeframe: %s. ", ident.TimeFrame)
	fmt.Fprintf(&b, "Estimated probability: %s. ", p)
	fmt.Fprintf(&b, "Estimated severity: %s. ", s)
	if ident.Perpetrator != "" {
		b.WriteString("Perpetrator known.")
	} else {
		b.WriteString("Perpetrator unknown.")
	}
	return b.String()
}
