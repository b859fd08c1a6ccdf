package model

import (
	"errors"
	"testing"
)

func validIdentification() ThreatIdentification {
	return ThreatIdentification{
		WhoAtRisk:       []string{"Alice", "her children"},
		HarmType:        HarmPhysicalViolence,
		HarmDescription: "Threats made by phone",
		TimeFrame:       TimeFrameNearTerm,
	}
}

func TestValidateAcceptsWellFormed(t *testing.T) {
	if err := validIdentification().Validate(); err != nil {
		t.Fatalf("expected valid identification, got %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*ThreatIdentification){
		"empty who":     func(ti *ThreatIdentification) { ti.WhoAtRisk = nil },
		"blank who":     func(ti *ThreatIdentification) { ti.WhoAtRisk = []string{"Alice", "  "} },
		"unknown harm":  func(ti *ThreatIdentification) { ti.HarmType = "cyberbullying" },
		"empty harm":    func(ti *ThreatIdentification) { ti.HarmType = "" },
		"unknown frame": func(ti *ThreatIdentification) { ti.TimeFrame = "soon" },
	}
	for name, mutate := range cases {
		ti := validIdentification()
		mutate(&ti)
		err := ti.Validate()
		if err == nil {
			t.Errorf("%s: expected error", name)
			continue
		}
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}
}

func TestLevelRankOrdering(t *testing.T) {
	if !(LevelRank[LevelCritical] > LevelRank[LevelHigh] &&
		LevelRank[LevelHigh] > LevelRank[LevelMedium] &&
		LevelRank[LevelMedium] > LevelRank[LevelLow]) {
		t.Fatalf("unexpected level ordering: %v", LevelRank)
	}
	if ValidLevel("urgent") {
		t.Fatal("unexpected valid level")
	}
}

func TestAssessmentHelpers(t *testing.T) {
	a := &RiskAssessment{
		Options: []InterventionOption{{ID: OptionMonitor}, {ID: OptionAlert}},
		Flags:   []AssessmentFlag{{Type: FlagIrreversible, Severity: FlagWarning}},
	}
	if a.Option(OptionAlert) == nil || a.Option(OptionIntervene) != nil {
		t.Fatal("Option lookup returned the wrong result")
	}
	if a.HasCriticalFlag() {
		t.Fatal("expected no critical flag")
	}
	a.Flags = append(a.Flags, AssessmentFlag{Type: FlagIllegal, Severity: FlagCritical})
	if !a.HasCriticalFlag() {
		t.Fatal("expected critical flag")
	}
}
