package model

import "time"

// ConstraintLevel is the severity attached to a constraint and to every
// violation it produces.
type ConstraintLevel string

const (
	LevelCritical ConstraintLevel = "critical"
	LevelHigh     ConstraintLevel = "high"
	LevelMedium   ConstraintLevel = "medium"
	LevelLow      ConstraintLevel = "low"
)

// LevelRank maps constraint levels to a comparable integer.
var LevelRank = map[ConstraintLevel]int{
	LevelLow:      0,
	LevelMedium:   1,
	LevelHigh:     2,
	LevelCritical: 3,
}

// ValidLevel reports whether l is one of the four known levels.
func ValidLevel(l ConstraintLevel) bool {
	_, ok := LevelRank[l]
	return ok
}

// ConstraintViolation records one constraint whose triggers matched.
type ConstraintViolation struct {
	ConstraintID   string          `json:"constraintId"`
	ConstraintName string          `json:"constraintName"`
	Severity       ConstraintLevel `json:"severity"`
	Reason         string          `json:"reason"`
	DetectedAt     time.Time       `json:"detectedAt"`
	Context        string          `json:"context,omitempty"`
}

// ConstraintCheckResult is the outcome of checking one action description.
// Passed is true iff Violations is empty.
type ConstraintCheckResult struct {
	Passed     bool                  `json:"passed"`
	Violations []ConstraintViolation `json:"violations"`
	Timestamp  time.Time             `json:"timestamp"`
}
