package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/sentinel/internal/model"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	ss, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sentinel.db"))
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	t.Cleanup(func() { ss.Close() })
	return map[string]Store{DriverFile: fs, DriverSQLite: ss}
}

func draft(id string, created time.Time) *model.RiskAssessment {
	rec := model.OptionAlert
	return &model.RiskAssessment{
		ID:        id,
		CreatedAt: created,
		CreatedBy: "op-1",
		Identification: model.ThreatIdentification{
			WhoAtRisk: []string{"Alice"},
			HarmType:  model.HarmNeglect,
			TimeFrame: model.TimeFrameNearTerm,
		},
		Options:        []model.InterventionOption{{ID: model.OptionMonitor}, {ID: model.OptionAlert}},
		Recommendation: &rec,
		Flags:          []model.AssessmentFlag{},
		Status:         model.StatusDraft,
	}
}

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestSaveAndGet(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		if err := s.Save(ctx, draft("a1", t0)); err != nil {
			t.Fatalf("%s: save: %v", name, err)
		}
		got, err := s.Get(ctx, "a1")
		if err != nil {
			t.Fatalf("%s: get: %v", name, err)
		}
		if got.CreatedBy != "op-1" || got.Status != model.StatusDraft || !got.CreatedAt.Equal(t0) {
			t.Errorf("%s: unexpected record %+v", name, got)
		}
		if got.Recommendation == nil || *got.Recommendation != model.OptionAlert {
			t.Errorf("%s: recommendation lost: %v", name, got.Recommendation)
		}
	}
}

func TestSaveDuplicate(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		s.Save(ctx, draft("a1", t0))
		err := s.Save(ctx, draft("a1", t0))
		if !errors.Is(err, ErrExists) {
			t.Errorf("%s: expected ErrExists, got %v", name, err)
		}
	}
}

func TestGetMissing(t *testing.T) {
	for name, s := range stores(t) {
		_, err := s.Get(context.Background(), "nope")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("%s: expected ErrNotFound, got %v", name, err)
		}
	}
}

func TestInvalidIDs(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		for _, id := range []string{"", "../etc/passwd", "a/b", "a b"} {
			if _, err := s.Get(ctx, id); !errors.Is(err, model.ErrInvalidInput) {
				t.Errorf("%s: id %q: expected ErrInvalidInput, got %v", name, id, err)
			}
		}
	}
}

func TestListOrdered(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		s.Save(ctx, draft("c", t0.Add(2*time.Minute)))
		s.Save(ctx, draft("b", t0))
		s.Save(ctx, draft("a", t0))

		list, err := s.List(ctx)
		if err != nil {
			t.Fatalf("%s: list: %v", name, err)
		}
		var ids []string
		for _, a := range list {
			ids = append(ids, a.ID)
		}
		if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
			t.Errorf("%s: unexpected order %v", name, ids)
		}
	}
}

func TestTransitionHappyPath(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		s.Save(ctx, draft("a1", t0))
		steps := []model.Status{model.StatusPendingApproval, model.StatusApproved, model.StatusExecuted}
		prev := model.StatusDraft
		for _, to := range steps {
			a, from, err := s.Transition(ctx, "a1", to)
			if err != nil {
				t.Fatalf("%s: %s → %s: %v", name, prev, to, err)
			}
			if from != prev || a.Status != to {
				t.Fatalf("%s: expected %s → %s, got %s → %s", name, prev, to, from, a.Status)
			}
			prev = to
		}
		got, _ := s.Get(ctx, "a1")
		if got.Status != model.StatusExecuted {
			t.Errorf("%s: expected executed on disk, got %s", name, got.Status)
		}
	}
}

func TestTransitionRejected(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		s.Save(ctx, draft("a1", t0))

		if _, _, err := s.Transition(ctx, "a1", model.StatusApproved); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s: draft → approved: expected ErrInvalidTransition, got %v", name, err)
		}
		s.Transition(ctx, "a1", model.StatusPendingApproval)
		if _, _, err := s.Transition(ctx, "a1", model.StatusRejected); err != nil {
			t.Fatalf("%s: reject: %v", name, err)
		}
		for _, to := range []model.Status{model.StatusApproved, model.StatusExecuted, model.StatusDraft} {
			if _, from, err := s.Transition(ctx, "a1", to); !errors.Is(err, ErrInvalidTransition) || from != model.StatusRejected {
				t.Errorf("%s: rejected → %s: expected ErrInvalidTransition from rejected, got %v (%s)", name, to, err, from)
			}
		}
		if _, _, err := s.Transition(ctx, "missing", model.StatusPendingApproval); !errors.Is(err, ErrNotFound) {
			t.Errorf("%s: expected ErrNotFound, got %v", name, err)
		}
	}
}

func TestConcurrentTransitionsSingleWinner(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		s.Save(ctx, draft("a1", t0))
		s.Transition(ctx, "a1", model.StatusPendingApproval)

		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				to := model.StatusApproved
				if i%2 == 1 {
					to = model.StatusRejected
				}
				if _, _, err := s.Transition(ctx, "a1", to); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()
		if wins != 1 {
			t.Errorf("%s: expected exactly one transition to win, got %d", name, wins)
		}
	}
}

func TestStateMachineTable(t *testing.T) {
	if !IsTerminal(model.StatusRejected) || !IsTerminal(model.StatusExecuted) {
		t.Fatal("rejected and executed must be terminal")
	}
	if IsTerminal(model.StatusApproved) {
		t.Fatal("approved must not be terminal")
	}
	if CanTransition(model.StatusApproved, model.StatusRejected) {
		t.Fatal("approved → rejected must not be allowed")
	}
}

func TestOpenDrivers(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(DriverFile, filepath.Join(dir, "files"))
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	s.Close()
	if _, err := os.Stat(filepath.Join(dir, "files")); err != nil {
		t.Fatalf("expected store directory: %v", err)
	}

	s, err = Open(DriverSQLite, filepath.Join(dir, "db", "s.db"))
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	s.Close()

	if _, err := Open("postgres", dir); err == nil {
		t.Fatal("expected unknown driver error")
	}
}
