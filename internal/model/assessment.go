package model

import "time"

// OptionID names one of the fixed intervention options.
type OptionID string

const (
	OptionMonitor   OptionID = "monitor"
	OptionAlert     OptionID = "alert"
	OptionIntervene OptionID = "intervene"
)

// Effectiveness is the five-level scale of how well an option is expected to work.
type Effectiveness string

const (
	EffectivenessVeryLow  Effectiveness = "very-low"
	EffectivenessLow      Effectiveness = "low"
	EffectivenessMedium   Effectiveness = "medium"
	EffectivenessHigh     Effectiveness = "high"
	EffectivenessVeryHigh Effectiveness = "very-high"
)

// EffectivenessRank orders effectiveness levels from very-low to very-high.
var EffectivenessRank = map[Effectiveness]int{
	EffectivenessVeryLow:  0,
	EffectivenessLow:      1,
	EffectivenessMedium:   2,
	EffectivenessHigh:     3,
	EffectivenessVeryHigh: 4,
}

// CollateralImpact is the expected side effect of an option on bystanders.
type CollateralImpact string

const (
	CollateralMinimal     CollateralImpact = "minimal"
	CollateralModerate    CollateralImpact = "moderate"
	CollateralSignificant CollateralImpact = "significant"
)

// LegalStatus is the legal standing of an option.
type LegalStatus string

const (
	LegalLegal    LegalStatus = "legal"
	LegalGreyArea LegalStatus = "grey-area"
	LegalIllegal  LegalStatus = "illegal"
	LegalUnknown  LegalStatus = "unknown"
)

// InterventionOption is one generated response choice.
type InterventionOption struct {
	ID                     OptionID              `json:"id"`
	Description            string                `json:"description"`
	ExpectedOutcome        string                `json:"expectedOutcome"`
	Risks                  []string              `json:"risks"`
	Benefits               []string              `json:"benefits"`
	RequiresApproval       bool                  `json:"requiresApproval"`
	IsReversible           bool                  `json:"isReversible"`
	ViolatesConstraints    bool                  `json:"violatesConstraints"`
	ConstraintCheck        ConstraintCheckResult `json:"constraintCheck"`
	EstimatedEffectiveness Effectiveness         `json:"estimatedEffectiveness"`
	CollateralImpact       CollateralImpact      `json:"collateralImpact"`
	LegalStatus            LegalStatus           `json:"legalStatus"`
}

// FlagType classifies an assessment flag.
type FlagType string

const (
	FlagConstraintViolation FlagType = "constraint-violation"
	FlagIrreversible        FlagType = "irreversible"
	FlagIllegal             FlagType = "illegal"
	FlagHighUncertainty     FlagType = "high-uncertainty"
	FlagCollateralRisk      FlagType = "collateral-risk"
)

// FlagSeverity grades an assessment flag.
type FlagSeverity string

const (
	FlagInfo     FlagSeverity = "info"
	FlagWarning  FlagSeverity = "warning"
	FlagCritical FlagSeverity = "critical"
)

// AssessmentFlag is a warning derived from the generated options.
type AssessmentFlag struct {
	Type     FlagType     `json:"type"`
	Severity FlagSeverity `json:"severity"`
	Message  string       `json:"message"`
}

// Status is the review state of a RiskAssessment. The engine only ever
// sets StatusDraft; every other transition belongs to the store.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pending-approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusExecuted        Status = "executed"
)

// RiskAssessment is the aggregate produced by the engine.
type RiskAssessment struct {
	ID             string               `json:"id"`
	CreatedAt      time.Time            `json:"createdAt"`
	CreatedBy      string               `json:"createdBy"`
	Identification ThreatIdentification `json:"identification"`
	Estimate       ThreatEstimate       `json:"estimate"`
	Options        []InterventionOption `json:"options"`
	Recommendation *OptionID            `json:"recommendation,omitempty"`
	Flags          []AssessmentFlag     `json:"flags"`
	Status         Status               `json:"status"`
}

// Option returns the option with the given id, or nil.
func (a *RiskAssessment) Option(id OptionID) *InterventionOption {
	for i := range a.Options {
		if a.Options[i].ID == id {
			return &a.Options[i]
		}
	}
	return nil
}

// HasCriticalFlag reports whether any flag is critical.
func (a *RiskAssessment) HasCriticalFlag() bool {
	for _, f := range a.Flags {
		if f.Severity == FlagCritical {
			return true
		}
	}
	return false
}
