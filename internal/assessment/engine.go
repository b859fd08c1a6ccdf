// Package assessment turns a threat identification into a risk assessment:
// a threat estimate, a small fixed set of intervention options checked
// against the constraint set, derived flags and a single recommendation.
//
// Everything here is pure and synchronous. The engine reads only its
// arguments and immutable tables, so one Engine may serve any number of
// concurrent callers.
package assessment

import (
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/sentinel/internal/constraint"
	"github.com/ppiankov/sentinel/internal/model"
)

// Engine creates risk assessments.
type Engine struct {
	checker *constraint.Checker
	now     func() time.Time
	newID   func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator overrides the assessment id generator.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		e.newID = gen
	}
}

// New creates an Engine that checks options with checker.
// A nil checker uses the built-in constraint set.
func New(checker *constraint.Checker, opts ...Option) *Engine {
	if checker == nil {
		checker = constraint.NewChecker(nil)
	}
	e := &Engine{
		checker: checker,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Checker returns the constraint checker used for option checks.
func (e *Engine) Checker() *constraint.Checker { return e.checker }

// CreateAssessment runs the full pipeline for ident. The identification is
// assumed valid; see model.ThreatIdentification.Validate.
func (e *Engine) CreateAssessment(ident model.ThreatIdentification, operatorID string) *model.RiskAssessment {
	est := EstimateThreat(ident)
	options := e.GenerateOptions(ident, est)

	return &model.RiskAssessment{
		ID:             e.newID(),
		CreatedAt:      e.now(),
		CreatedBy:      operatorID,
		Identification: copyIdentification(ident),
		Estimate:       est,
		Options:        options,
		Recommendation: SelectRecommendation(options, est),
		Flags:          IdentifyFlags(options),
		Status:         model.StatusDraft,
	}
}

func copyIdentification(ident model.ThreatIdentification) model.ThreatIdentification {
	ident.WhoAtRisk = append([]string(nil), ident.WhoAtRisk...)
	return ident
}
