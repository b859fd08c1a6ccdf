// Package service ties the constraint checker and assessment engine to
// persistence, auditing, alerting and metrics. Every transport (CLI, gRPC,
// HTTP, MCP) goes through a Service.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ppiankov/sentinel/internal/advisor"
	"github.com/ppiankov/sentinel/internal/alert"
	"github.com/ppiankov/sentinel/internal/assessment"
	"github.com/ppiankov/sentinel/internal/audit"
	"github.com/ppiankov/sentinel/internal/constraint"
	"github.com/ppiankov/sentinel/internal/metrics"
	"github.com/ppiankov/sentinel/internal/model"
	"github.com/ppiankov/sentinel/internal/store"
)

// ErrNoStore is returned by persistence operations on a Service built
// without a store.
var ErrNoStore = errors.New("service: no assessment store configured")

// ErrNoAdvisor is returned by Advise when no advisor is configured.
var ErrNoAdvisor = errors.New("service: advisor not configured")

// Reviewer ranks the options of an assessment.
type Reviewer interface {
	Review(ctx context.Context, checker *constraint.Checker, a *model.RiskAssessment) ([]advisor.Suggestion, error)
}

// Options holds the optional collaborators of a Service. Nil fields turn
// the matching concern off.
type Options struct {
	Store   store.Store
	Audit   *audit.Log
	Alerts  *alert.Dispatcher
	Metrics *metrics.Metrics
	Advisor Reviewer
	Logger  *zap.Logger
	// EngineOptions are applied to every engine the service builds,
	// including after a constraint reload.
	EngineOptions  []assessment.Option
	CheckerOptions []constraint.CheckerOption
}

// Service is safe for concurrent use. The constraint set can be swapped at
// runtime with SetConstraints; in-flight calls keep the set they started
// with.
type Service struct {
	mu      sync.RWMutex
	checker *constraint.Checker
	engine  *assessment.Engine

	store   store.Store
	audit   *audit.Log
	alerts  *alert.Dispatcher
	metrics *metrics.Metrics
	advisor Reviewer
	logger  *zap.Logger

	engineOpts  []assessment.Option
	checkerOpts []constraint.CheckerOption
}

// AssessResult is a new assessment together with its derived score.
type AssessResult struct {
	Assessment *model.RiskAssessment `json:"assessment"`
	RiskScore  int                   `json:"riskScore"`
	RiskLevel  assessment.RiskLevel  `json:"riskLevel"`
	Saved      bool                  `json:"saved"`
}

// Score is the derived risk of a stored assessment.
type Score struct {
	ID        string               `json:"id"`
	RiskScore int                  `json:"riskScore"`
	RiskLevel assessment.RiskLevel `json:"riskLevel"`
}

// New creates a Service over set. A nil set uses the built-in constraints.
func New(set *constraint.Set, opts Options) *Service {
	if set == nil {
		set = constraint.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:       opts.Store,
		audit:       opts.Audit,
		alerts:      opts.Alerts,
		metrics:     opts.Metrics,
		advisor:     opts.Advisor,
		logger:      logger,
		engineOpts:  opts.EngineOptions,
		checkerOpts: opts.CheckerOptions,
	}
	s.install(set)
	if s.metrics != nil {
		s.alerts.OnFailure(func(alert.Event, error) { s.metrics.AlertFailuresTotal.Inc() })
	}
	return s
}

func (s *Service) install(set *constraint.Set) {
	checker := constraint.NewChecker(set, s.checkerOpts...)
	engine := assessment.New(checker, s.engineOpts...)

	s.mu.Lock()
	s.checker, s.engine = checker, engine
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ConstraintSetSize.Set(float64(set.Len()))
	}
}

func (s *Service) current() (*constraint.Checker, *assessment.Engine) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checker, s.engine
}

// Constraints returns the active constraint set.
func (s *Service) Constraints() *constraint.Set {
	checker, _ := s.current()
	return checker.Set()
}

// Checker returns the active checker.
func (s *Service) Checker() *constraint.Checker {
	checker, _ := s.current()
	return checker
}

// SetConstraints replaces the active constraint set and audits the change.
func (s *Service) SetConstraints(set *constraint.Set, actor string) error {
	prev := s.Constraints().Hash()
	s.install(set)
	s.logger.Info("constraint set installed",
		zap.Int("constraints", set.Len()),
		zap.String("hash", set.Hash()),
		zap.String("previous", prev))
	return s.record(audit.Entry{
		Event:           audit.EventConstraintsLoaded,
		Actor:           actor,
		Subject:         fmt.Sprintf("%d constraints", set.Len()),
		Decision:        "installed",
		Reason:          "previous " + prev,
		ConstraintsHash: set.Hash(),
	})
}

// ReloadConstraints loads the set at path and installs it. On failure the
// active set is kept.
func (s *Service) ReloadConstraints(path, actor string) error {
	set, err := constraint.LoadSet(path)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ConstraintReloads.WithLabelValues("error").Inc()
		}
		return fmt.Errorf("reload constraints: %w", err)
	}
	if s.metrics != nil {
		s.metrics.ConstraintReloads.WithLabelValues("ok").Inc()
	}
	return s.SetConstraints(set, actor)
}

// Check evaluates action against the active constraints. A critical
// violation raises a shutdown alert.
func (s *Service) Check(ctx context.Context, actor, action, actionContext string) (model.ConstraintCheckResult, error) {
	if err := ctx.Err(); err != nil {
		return model.ConstraintCheckResult{}, err
	}
	checker, _ := s.current()
	result := checker.Check(action, actionContext)
	shutdown := constraint.ShouldShutdown(result)

	decision := audit.DecisionPassed
	switch {
	case shutdown:
		decision = audit.DecisionShutdown
	case !result.Passed:
		decision = audit.DecisionFailed
	}
	s.observeCheck(result, decision)

	if !result.Passed {
		s.logger.Warn("constraint check failed",
			zap.String("actor", actor),
			zap.Int("violations", len(result.Violations)),
			zap.Bool("shutdown", shutdown))
	}
	if shutdown {
		s.alerts.Dispatch(alert.Event{
			Type:            alert.EventShutdown,
			Subject:         action,
			Severity:        string(model.LevelCritical),
			Reason:          violationIDs(result.Violations),
			ConstraintsHash: checker.Set().Hash(),
		})
	}

	err := s.record(audit.Entry{
		Event:           audit.EventConstraintCheck,
		Actor:           actor,
		Subject:         action,
		Decision:        decision,
		Reason:          violationIDs(result.Violations),
		ConstraintsHash: checker.Set().Hash(),
	})
	return result, err
}

// Report is Check followed by constraint.GenerateReport.
func (s *Service) Report(ctx context.Context, actor, action, actionContext string) (constraint.Report, error) {
	result, err := s.Check(ctx, actor, action, actionContext)
	if err != nil && result.Timestamp.IsZero() {
		return constraint.Report{}, err
	}
	return constraint.GenerateReport(result, action), err
}

// Assess validates ident, runs the engine and, if save is set, stores the
// draft. Critical flags and critical risk raise alerts.
func (s *Service) Assess(ctx context.Context, ident model.ThreatIdentification, operator string, save bool) (*AssessResult, error) {
	if err := ident.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(operator) == "" {
		return nil, fmt.Errorf("%w: operator must not be empty", model.ErrInvalidInput)
	}
	if save && s.store == nil {
		return nil, ErrNoStore
	}

	checker, engine := s.current()
	a := engine.CreateAssessment(ident, operator)
	score := assessment.CalculateRiskScore(a)
	level := assessment.GetRiskLevel(score)
	res := &AssessResult{Assessment: a, RiskScore: score, RiskLevel: level}

	if save {
		if err := s.store.Save(ctx, a); err != nil {
			return nil, err
		}
		res.Saved = true
	}

	rec := "none"
	if a.Recommendation != nil {
		rec = string(*a.Recommendation)
	}
	if s.metrics != nil {
		s.metrics.AssessmentsTotal.WithLabelValues(rec).Inc()
		s.metrics.RiskScore.Observe(float64(score))
	}
	s.logger.Info("assessment created",
		zap.String("id", a.ID),
		zap.String("operator", operator),
		zap.String("recommendation", rec),
		zap.Int("risk_score", score),
		zap.Bool("saved", res.Saved))

	if a.HasCriticalFlag() {
		s.alerts.Dispatch(alert.Event{
			Type:            alert.EventCriticalFlag,
			Subject:         a.ID,
			Severity:        string(model.FlagCritical),
			Reason:          criticalFlagMessages(a.Flags),
			RiskScore:       score,
			ConstraintsHash: checker.Set().Hash(),
		})
	}
	if level == assessment.RiskCritical {
		s.alerts.Dispatch(alert.Event{
			Type:            alert.EventRiskCritical,
			Subject:         a.ID,
			Severity:        string(level),
			Reason:          a.Estimate.RationaleBrief,
			RiskScore:       score,
			ConstraintsHash: checker.Set().Hash(),
		})
	}

	err := s.record(audit.Entry{
		Event:           audit.EventAssessmentCreated,
		Actor:           operator,
		Subject:         a.ID,
		Decision:        rec,
		Reason:          fmt.Sprintf("%s/%s", a.Identification.HarmType, a.Identification.TimeFrame),
		RiskScore:       score,
		ConstraintsHash: checker.Set().Hash(),
	})
	return res, err
}

// Get returns a stored assessment.
func (s *Service) Get(ctx context.Context, id string) (*model.RiskAssessment, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.Get(ctx, id)
}

// List returns every stored assessment.
func (s *Service) List(ctx context.Context) ([]*model.RiskAssessment, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.List(ctx)
}

// Score recomputes the risk of a stored assessment.
func (s *Service) Score(ctx context.Context, id string) (Score, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return Score{}, err
	}
	score := assessment.CalculateRiskScore(a)
	return Score{ID: a.ID, RiskScore: score, RiskLevel: assessment.GetRiskLevel(score)}, nil
}

// Transition moves a stored assessment to status to on behalf of actor.
func (s *Service) Transition(ctx context.Context, id string, to model.Status, actor string) (*model.RiskAssessment, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	if strings.TrimSpace(actor) == "" {
		return nil, fmt.Errorf("%w: actor must not be empty", model.ErrInvalidInput)
	}
	a, from, err := s.store.Transition(ctx, id, to)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.TransitionsTotal.WithLabelValues(string(to)).Inc()
	}
	s.logger.Info("assessment status changed",
		zap.String("id", id),
		zap.String("actor", actor),
		zap.String("from", string(from)),
		zap.String("to", string(to)))

	checker, _ := s.current()
	err = s.record(audit.Entry{
		Event:           audit.EventStatusChanged,
		Actor:           actor,
		Subject:         id,
		Decision:        string(to),
		Reason:          "from " + string(from),
		RiskScore:       assessment.CalculateRiskScore(a),
		ConstraintsHash: checker.Set().Hash(),
	})
	return a, err
}

// Advise asks the configured reviewer to rank the options of a stored
// assessment. The assessment is not modified.
func (s *Service) Advise(ctx context.Context, id string) ([]advisor.Suggestion, error) {
	if s.advisor == nil {
		return nil, ErrNoAdvisor
	}
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.AdviseOn(ctx, a)
}

// AdviseOn is Advise for an assessment the caller already holds.
func (s *Service) AdviseOn(ctx context.Context, a *model.RiskAssessment) ([]advisor.Suggestion, error) {
	if s.advisor == nil {
		return nil, ErrNoAdvisor
	}
	checker, _ := s.current()
	return s.advisor.Review(ctx, checker, a)
}

func (s *Service) observeCheck(result model.ConstraintCheckResult, decision string) {
	if s.metrics == nil {
		return
	}
	s.metrics.ChecksTotal.WithLabelValues(decision).Inc()
	for _, v := range result.Violations {
		s.metrics.ViolationsTotal.WithLabelValues(v.ConstraintID, string(v.Severity)).Inc()
	}
	if decision == audit.DecisionShutdown {
		s.metrics.ShutdownsTotal.Inc()
	}
}

func (s *Service) record(e audit.Entry) error {
	if s.audit == nil {
		return nil
	}
	if err := s.audit.Record(e); err != nil {
		s.logger.Error("audit write failed", zap.String("event", string(e.Event)), zap.Error(err))
		return err
	}
	return nil
}

func violationIDs(vs []model.ConstraintViolation) string {
	ids := make([]string, len(vs))
	for i, v := range vs {
		ids[i] = v.ConstraintID
	}
	return strings.Join(ids, ",")
}

func criticalFlagMessages(flags []model.AssessmentFlag) string {
	var msgs []string
	for _, f := range flags {
		if f.Severity == model.FlagCritical {
			msgs = append(msgs, f.Message)
		}
	}
	return strings.Join(msgs, "; ")
}
