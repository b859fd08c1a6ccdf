package assessment

import (
	"fmt"
	"strings"

	"github.com/ppiankov/sentinel/internal/model"
)

const imminentContextPrefix = "Imminent threat: "

// GenerateOptions builds the monitor and alert options, plus intervene when
// the threat is imminent and severe or critical. Each option description is
// run through the constraint checker with the harm description as context.
func (e *Engine) GenerateOptions(ident model.ThreatIdentification, est model.ThreatEstimate) []model.InterventionOption {
	who := strings.Join(ident.WhoAtRisk, ", ")

	monitor := model.InterventionOption{
		ID:              model.OptionMonitor,
		Description:     fmt.Sprintf("Continue monitoring the situation affecting %s and gather additional information", who),
		ExpectedOutcome: "Better information for a later decision; no immediate change to the situation",
		Risks: []string{
			"The situation may escalate while monitoring continues",
			"Delayed response if the threat materializes",
		},
		Benefits: []string{
			"No intrusion on the people involved",
			"Fully reversible",
			"Improves the quality of any later decision",
		},
		RequiresApproval:       false,
		IsReversible:           true,
		EstimatedEffectiveness: model.EffectivenessLow,
		CollateralImpact:       model.CollateralMinimal,
		LegalStatus:            model.LegalLegal,
	}

	alertEffectiveness := model.EffectivenessMedium
	if est.Probability == model.ProbabilityVeryHigh {
		alertEffectiveness = model.EffectivenessHigh
	}
	alert := model.InterventionOption{
		ID:              model.OptionAlert,
		Description:     fmt.Sprintf("Alert appropriate authorities or support services about the potential %s risk to %s", ident.HarmType, who),
		ExpectedOutcome: "Qualified humans assess the situation and decide on a response",
		Risks: []string{
			"The alert cannot be withdrawn once sent",
			"Possible distress or stigma for the people involved if the concern is unfounded",
		},
		Benefits: []string{
			"Puts trained humans in control of the response",
			"Proportionate to a credible concern",
		},
		RequiresApproval:       true,
		IsReversible:           false,
		EstimatedEffectiveness: alertEffectiveness,
		CollateralImpact:       model.CollateralModerate,
		LegalStatus:            model.LegalLegal,
	}

	e.attachCheck(&monitor, ident.HarmDescription)
	e.attachCheck(&alert, ident.HarmDescription)
	options := []model.InterventionOption{monitor, alert}

	if ident.TimeFrame == model.TimeFrameImminent &&
		(est.Severity == model.SeveritySevere || est.Severity == model.SeverityCritical) {
		legal := model.LegalGreyArea
		if est.Severity == model.SeverityCritical {
			legal = model.LegalLegal
		}
		intervene := model.InterventionOption{
			ID:              model.OptionIntervene,
			Description:     fmt.Sprintf("Coordinate an immediate protective response for %s with emergency services", who),
			ExpectedOutcome: "The immediate danger is contained by responders on the scene",
			Risks: []string{
				"Irreversible consequences if the assessment is wrong",
				"Significant disruption for people beyond those at risk",
				"Legal exposure if the intervention is disproportionate",
			},
			Benefits: []string{
				"Fastest path to stopping imminent harm",
				"Highest expected effectiveness",
			},
			RequiresApproval:       true,
			IsReversible:           false,
			EstimatedEffectiveness: model.EffectivenessHigh,
			CollateralImpact:       model.CollateralSignificant,
			LegalStatus:            legal,
		}
		e.attachCheck(&intervene, imminentContextPrefix+ident.HarmDescription)
		options = append(options, intervene)
	}

	return options
}

func (e *Engine) attachCheck(opt *model.InterventionOption, actionContext string) {
	opt.ConstraintCheck = e.checker.Check(opt.Description, actionContext)
	opt.ViolatesConstraints = !opt.ConstraintCheck.Passed
}

// IdentifyFlags derives flags from the options, in option order. Per option
// the order is: constraint violation, irreversibility, legal status,
// collateral impact.
func IdentifyFlags(options []model.InterventionOption) []model.AssessmentFlag {
	flags := []model.AssessmentFlag{}
	for _, opt := range options {
		if opt.ViolatesConstraints {
			flags = append(flags, flag(model.FlagConstraintViolation, model.FlagCritical, opt.ID, "violates one or more constraints"))
		}
		if !opt.IsReversible {
			flags = append(flags, flag(model.FlagIrreversible, model.FlagWarning, opt.ID, "is irreversible"))
		}
		switch opt.LegalStatus {
		case model.LegalIllegal:
			flags = append(flags, flag(model.FlagIllegal, model.FlagCritical, opt.ID, "is illegal"))
		case model.LegalGreyArea:
			flags = append(flags, flag(model.FlagIllegal, model.FlagWarning, opt.ID, "is in a legal grey area"))
		}
		if opt.CollateralImpact == model.CollateralSignificant {
			flags = append(flags, flag(model.FlagCollateralRisk, model.FlagWarning, opt.ID, "has significant collateral impact"))
		}
	}
	return flags
}

func flag(t model.FlagType, sev model.FlagSeverity, id model.OptionID, reason string) model.AssessmentFlag {
	return model.AssessmentFlag{
		Type:     t,
		Severity: sev,
		Message:  fmt.Sprintf("Option %q %s", id, reason),
	}
}

// SelectRecommendation picks one option among those that pass every
// constraint, or returns nil when none do.
func SelectRecommendation(options []model.InterventionOption, est model.ThreatEstimate) *model.OptionID {
	var valid []model.InterventionOption
	for _, opt := range options {
		if !opt.ViolatesConstraints {
			valid = append(valid, opt)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	if est.Severity == model.SeverityCritical && est.Probability == model.ProbabilityVeryHigh {
		best := valid[0]
		for _, opt := range valid[1:] {
			if model.EffectivenessRank[opt.EstimatedEffectiveness] > model.EffectivenessRank[best.EstimatedEffectiveness] {
				best = opt
			}
		}
		return optionID(best.ID)
	}

	var monitor, alert *model.InterventionOption
	for i := range valid {
		switch valid[i].ID {
		case model.OptionMonitor:
			if monitor == nil {
				monitor = &valid[i]
			}
		case model.OptionAlert:
			if alert == nil {
				alert = &valid[i]
			}
		}
	}

	if est.Probability == model.ProbabilityLow || est.Severity == model.SeverityMinor {
		if monitor != nil {
			return optionID(monitor.ID)
		}
	}
	if alert != nil {
		return optionID(alert.ID)
	}
	if monitor != nil {
		return optionID(monitor.ID)
	}
	return nil
}

func optionID(id model.OptionID) *model.OptionID {
	return &id
}
