package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ppiankov/sentinel/internal/advisor"
	"github.com/ppiankov/sentinel/internal/alert"
	"github.com/ppiankov/sentinel/internal/assessment"
	"github.com/ppiankov/sentinel/internal/audit"
	"github.com/ppiankov/sentinel/internal/constraint"
	"github.com/ppiankov/sentinel/internal/metrics"
	"github.com/ppiankov/sentinel/internal/model"
	"github.com/ppiankov/sentinel/internal/store"
)

type recordingSink struct {
	mu     sync.Mutex
	events []alert.Event
}

func (r *recordingSink) Send(_ context.Context, e alert.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSink) types() []alert.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]alert.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	svc     *Service
	sink    *recordingSink
	alerts  *alert.Dispatcher
	metrics *metrics.Metrics
	audit   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "assessments"))
	if err != nil {
		t.Fatal(err)
	}
	auditPath := filepath.Join(t.TempDir(), "audit.jsonl")
	log, err := audit.Open(auditPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { log.Close() })

	sink := &recordingSink{}
	d := &alert.Dispatcher{}
	d.Add("test", sink, alert.EventShutdown, alert.EventCriticalFlag, alert.EventRiskCritical)

	clock := func() time.Time { return time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC) }
	n := 0
	m := metrics.New()
	svc := New(nil, Options{
		Store:   st,
		Audit:   log,
		Alerts:  d,
		Metrics: m,
		EngineOptions: []assessment.Option{
			assessment.WithClock(clock),
			assessment.WithIDGenerator(func() string { n++; return fmt.Sprintf("a-%d", n) }),
		},
	})
	return &fixture{svc: svc, sink: sink, alerts: d, metrics: m, audit: auditPath}
}

func violence() model.ThreatIdentification {
	return model.ThreatIdentification{
		WhoAtRisk:       []string{"Alice"},
		HarmType:        model.HarmPhysicalViolence,
		HarmDescription: "Threats made by phone",
		TimeFrame:       model.TimeFrameImminent,
	}
}

func TestCheckShutdownAlertsAuditsAndCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Check(ctx, "agent-1", "Kill the process owner", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Passed || !constraint.ShouldShutdown(res) {
		t.Fatalf("expected shutdown result, got %+v", res)
	}
	if _, err := f.svc.Check(ctx, "agent-1", "send a reminder email", ""); err != nil {
		t.Fatal(err)
	}
	f.alerts.Wait()

	if got := f.sink.types(); len(got) != 1 || got[0] != alert.EventShutdown {
		t.Fatalf("expected one shutdown alert, got %v", got)
	}
	if got := testutil.ToFloat64(f.metrics.ShutdownsTotal); got != 1 {
		t.Errorf("expected 1 shutdown counted, got %v", got)
	}
	if got := testutil.ToFloat64(f.metrics.ChecksTotal.WithLabelValues(audit.DecisionPassed)); got != 1 {
		t.Errorf("expected 1 passed check, got %v", got)
	}

	q, err := audit.Query(f.audit, audit.Filter{Event: audit.EventConstraintCheck})
	if err != nil {
		t.Fatal(err)
	}
	if q.Summary.Checks != 2 || q.Summary.Shutdowns != 1 {
		t.Fatalf("unexpected audit summary %+v", q.Summary)
	}
	if q.Entries[0].ConstraintsHash != constraint.Default().Hash() || q.Entries[0].Reason != constraint.NoViolence {
		t.Fatalf("unexpected audit entry %+v", q.Entries[0])
	}
	if v := audit.Verify(f.audit); !v.Valid {
		t.Fatalf("audit chain broken: %+v", v)
	}
}

func TestReportUsesActiveSet(t *testing.T) {
	f := newFixture(t)
	r, err := f.svc.Report(context.Background(), "agent", "track his phone", "")
	if err != nil {
		t.Fatal(err)
	}
	if r.Passed || r.SuggestedAlternative == "" || r.ShouldShutdown {
		t.Fatalf("unexpected report %+v", r)
	}
}

func TestAssessSaveAndTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Assess(ctx, violence(), "op-1", true)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Saved || res.Assessment.ID != "a-1" || res.RiskScore != 75 || res.RiskLevel != assessment.RiskHigh {
		t.Fatalf("unexpected result %+v", res)
	}

	got, err := f.svc.Get(ctx, "a-1")
	if err != nil || got.Status != model.StatusDraft {
		t.Fatalf("expected stored draft, got %+v, %v", got, err)
	}

	for _, to := range []model.Status{model.StatusPendingApproval, model.StatusApproved, model.StatusExecuted} {
		if _, err := f.svc.Transition(ctx, "a-1", to, "reviewer"); err != nil {
			t.Fatalf("transition to %s: %v", to, err)
		}
	}
	if _, err := f.svc.Transition(ctx, "a-1", model.StatusRejected, "reviewer"); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	sc, err := f.svc.Score(ctx, "a-1")
	if err != nil || sc.RiskScore != 75 {
		t.Fatalf("unexpected score %+v, %v", sc, err)
	}

	q, _ := audit.Query(f.audit, audit.Filter{Subject: "a-1"})
	if q.Summary.Assessments != 1 || q.Summary.Transitions != 3 {
		t.Fatalf("unexpected audit summary %+v", q.Summary)
	}
	if got := testutil.ToFloat64(f.metrics.TransitionsTotal.WithLabelValues(string(model.StatusExecuted))); got != 1 {
		t.Errorf("expected executed transition counted, got %v", got)
	}
}

func TestAssessRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	ident := violence()
	ident.HarmType = "unknown"
	if _, err := f.svc.Assess(context.Background(), ident, "op", false); !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := f.svc.Assess(context.Background(), violence(), " ", false); !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank operator, got %v", err)
	}
}

func TestAssessCriticalAlerts(t *testing.T) {
	f := newFixture(t)
	ident := violence()
	ident.WhoAtRisk = []string{"the bomb squad"}

	res, err := f.svc.Assess(context.Background(), ident, "op", false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Saved {
		t.Fatal("expected unsaved assessment")
	}
	f.alerts.Wait()
	if got := f.sink.types(); len(got) != 1 || got[0] != alert.EventCriticalFlag {
		t.Fatalf("expected critical_flag alert, got %v", got)
	}
}

func TestSetConstraintsSwapsChecker(t *testing.T) {
	f := newFixture(t)
	set, err := constraint.NewSet([]constraint.Constraint{{
		ID: "no-email", Name: "No email", Level: model.LevelHigh, TriggerPhrases: []string{"email"},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.SetConstraints(set, "reloader"); err != nil {
		t.Fatal(err)
	}
	res, _ := f.svc.Check(context.Background(), "agent", "send a reminder email", "")
	if res.Passed {
		t.Fatal("expected new constraint to apply")
	}
	if f.svc.Constraints().Len() != 1 {
		t.Fatalf("expected 1 constraint, got %d", f.svc.Constraints().Len())
	}
	if got := testutil.ToFloat64(f.metrics.ConstraintSetSize); got != 1 {
		t.Fatalf("expected gauge 1, got %v", got)
	}
}

func TestWithoutStore(t *testing.T) {
	svc := New(nil, Options{})
	ctx := context.Background()
	if _, err := svc.Assess(ctx, violence(), "op", true); !errors.Is(err, ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
	if _, err := svc.Assess(ctx, violence(), "op", false); err != nil {
		t.Fatalf("unsaved assess should work without a store: %v", err)
	}
	if _, err := svc.List(ctx); !errors.Is(err, ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
	if _, err := svc.AdviseOn(ctx, &model.RiskAssessment{}); !errors.Is(err, ErrNoAdvisor) {
		t.Fatalf("expected ErrNoAdvisor, got %v", err)
	}
}

type stubReviewer struct{ got *model.RiskAssessment }

func (s *stubReviewer) Review(_ context.Context, _ *constraint.Checker, a *model.RiskAssessment) ([]advisor.Suggestion, error) {
	s.got = a
	return []advisor.Suggestion{{Rank: 1, OptionID: model.OptionAlert, Rationale: "ok"}}, nil
}

func TestAdviseLoadsStoredAssessment(t *testing.T) {
	st, _ := store.NewFileStore(t.TempDir())
	rv := &stubReviewer{}
	svc := New(nil, Options{Store: st, Advisor: rv})
	ctx := context.Background()

	res, err := svc.Assess(ctx, violence(), "op", true)
	if err != nil {
		t.Fatal(err)
	}
	out, err := svc.Advise(ctx, res.Assessment.ID)
	if err != nil || len(out) != 1 {
		t.Fatalf("unexpected advice %v, %v", out, err)
	}
	if rv.got == nil || rv.got.ID != res.Assessment.ID {
		t.Fatal("reviewer did not receive the stored assessment")
	}
}

func TestReloadConstraintsKeepsSetOnError(t *testing.T) {
	f := newFixture(t)
	bad := filepath.Join(t.TempDir(), "constraints.yaml")
	if err := os.WriteFile(bad, []byte("constraints: []\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.ReloadConstraints(bad, "test"); err == nil {
		t.Fatal("expected reload error for empty set")
	}
	if f.svc.Constraints().Len() != 7 {
		t.Fatalf("expected built-in set kept, got %d constraints", f.svc.Constraints().Len())
	}
	if got := testutil.ToFloat64(f.metrics.ConstraintReloads.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected reload error counted, got %v", got)
	}
}
