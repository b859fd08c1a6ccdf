package model

import (
	"errors"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// ErrInvalidInput is returned by boundary validation when a caller supplies
// a value outside the declared shape or enum set.
var ErrInvalidInput = errors.New("invalid input")

// HarmType classifies the kind of harm a threat describes.
type HarmType string

const (
	HarmPhysicalViolence   HarmType = "physical-violence"
	HarmSelfHarm           HarmType = "self-harm"
	HarmPsychologicalAbuse HarmType = "psychological-abuse"
	HarmNeglect            HarmType = "neglect"
	HarmExploitation       HarmType = "exploitation"
	HarmPropertyDamage     HarmType = "property-damage"
	HarmOther              HarmType = "other"
)

// HarmTypes lists every accepted harm type.
var HarmTypes = []HarmType{
	HarmPhysicalViolence,
	HarmSelfHarm,
	HarmPsychologicalAbuse,
	HarmNeglect,
	HarmExploitation,
	HarmPropertyDamage,
	HarmOther,
}

// TimeFrame is how soon the harm is expected.
type TimeFrame string

const (
	TimeFrameImminent   TimeFrame = "imminent"
	TimeFrameNearTerm   TimeFrame = "near-term"
	TimeFrameMediumTerm TimeFrame = "medium-term"
	TimeFrameLongTerm   TimeFrame = "long-term"
)

// TimeFrames lists every accepted time frame.
var TimeFrames = []TimeFrame{
	TimeFrameImminent,
	TimeFrameNearTerm,
	TimeFrameMediumTerm,
	TimeFrameLongTerm,
}

// Probability is the five-level likelihood scale.
type Probability string

const (
	ProbabilityVeryLow  Probability = "very-low"
	ProbabilityLow      Probability = "low"
	ProbabilityMedium   Probability = "medium"
	ProbabilityHigh     Probability = "high"
	ProbabilityVeryHigh Probability = "very-high"
)

// Severity is the five-level impact scale.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySerious  Severity = "serious"
	SeveritySevere   Severity = "severe"
	SeverityCritical Severity = "critical"
)

// Uncertainty is the five-level confidence scale of an estimate.
type Uncertainty string

const (
	UncertaintyVeryLow  Uncertainty = "very-low"
	UncertaintyLow      Uncertainty = "low"
	UncertaintyMedium   Uncertainty = "medium"
	UncertaintyHigh     Uncertainty = "high"
	UncertaintyVeryHigh Uncertainty = "very-high"
)

// DataQuality grades the information an estimate was built from.
type DataQuality string

const (
	DataQualityPoor      DataQuality = "poor"
	DataQualityFair      DataQuality = "fair"
	DataQualityGood      DataQuality = "good"
	DataQualityExcellent DataQuality = "excellent"
)

// ThreatIdentification is the caller-supplied description of a threat.
type ThreatIdentification struct {
	WhoAtRisk       []string  `json:"whoAtRisk" yaml:"whoAtRisk"`
	HarmType        HarmType  `json:"harmType" yaml:"harmType"`
	HarmDescription string    `json:"harmDescription" yaml:"harmDescription"`
	TimeFrame       TimeFrame `json:"timeFrame" yaml:"timeFrame"`
	Location        string    `json:"location,omitempty" yaml:"location,omitempty"`
	Perpetrator     string    `json:"perpetrator,omitempty" yaml:"perpetrator,omitempty"`
}

// Validate checks the identification against the declared shape.
// The engine assumes a validated identification; boundaries call this first.
func (ti ThreatIdentification) Validate() error {
	if len(ti.WhoAtRisk) == 0 {
		return goerr.Wrap(ErrInvalidInput, "whoAtRisk must not be empty")
	}
	for i, who := range ti.WhoAtRisk {
		if strings.TrimSpace(who) == "" {
			return goerr.Wrap(ErrInvalidInput, "whoAtRisk entry is blank", goerr.V("index", i))
		}
	}
	if !validHarmType(ti.HarmType) {
		return goerr.Wrap(ErrInvalidInput, "unknown harmType", goerr.V("harmType", ti.HarmType))
	}
	if !validTimeFrame(ti.TimeFrame) {
		return goerr.Wrap(ErrInvalidInput, "unknown timeFrame", goerr.V("timeFrame", ti.TimeFrame))
	}
	return nil
}

func validHarmType(h HarmType) bool {
	for _, known := range HarmTypes {
		if h == known {
			return true
		}
	}
	return false
}

func validTimeFrame(tf TimeFrame) bool {
	for _, known := range TimeFrames {
		if tf == known {
			return true
		}
	}
	return false
}

// ThreatEstimate is derived deterministically from a ThreatIdentification.
type ThreatEstimate struct {
	Probability    Probability `json:"probability"`
	Severity       Severity    `json:"severity"`
	Uncertainty    Uncertainty `json:"uncertainty"`
	DataQuality    DataQuality `json:"dataQuality"`
	RationaleBrief string      `json:"rationaleBrief"`
}
