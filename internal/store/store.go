// Package store persists risk assessments and owns their review state
// machine. The assessment engine only ever creates drafts; every later
// status change goes through Transition.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ppiankov/sentinel/internal/model"
)

var (
	// ErrNotFound is returned when no assessment has the requested id.
	ErrNotFound = errors.New("store: assessment not found")
	// ErrExists is returned by Save when the id is already stored.
	ErrExists = errors.New("store: assessment already exists")
	// ErrInvalidTransition is returned when a status change is not allowed
	// from the assessment's current status.
	ErrInvalidTransition = errors.New("store: invalid status transition")
)

// Driver names accepted by Open.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Store is a persistent collection of risk assessments.
type Store interface {
	Save(ctx context.Context, a *model.RiskAssessment) error
	Get(ctx context.Context, id string) (*model.RiskAssessment, error)
	List(ctx context.Context) ([]*model.RiskAssessment, error)
	// Transition moves an assessment to status to and returns the updated
	// record together with the status it left.
	Transition(ctx context.Context, id string, to model.Status) (*model.RiskAssessment, model.Status, error)
	Close() error
}

// Open returns the store named by driver rooted at path. For the file
// driver path is a directory; for sqlite it is the database file.
func Open(driver, path string) (Store, error) {
	switch driver {
	case "", DriverFile:
		return NewFileStore(path)
	case DriverSQLite:
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", driver)
	}
}

// DefaultPath returns the default location for the given driver.
func DefaultPath(driver string) string {
	base := filepath.Join(os.TempDir(), "sentinel")
	if home, err := os.UserHomeDir(); err == nil {
		base = filepath.Join(home, ".sentinel")
	}
	if driver == DriverSQLite {
		return filepath.Join(base, "assessments.db")
	}
	return filepath.Join(base, "assessments")
}

var transitions = map[model.Status][]model.Status{
	model.StatusDraft:           {model.StatusPendingApproval},
	model.StatusPendingApproval: {model.StatusApproved, model.StatusRejected},
	model.StatusApproved:        {model.StatusExecuted},
}

// CanTransition reports whether from → to is an allowed status change.
func CanTransition(from, to model.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s model.Status) bool {
	return len(transitions[s]) == 0
}

func checkTransition(id string, from, to model.Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s cannot move from %s to %s", ErrInvalidTransition, id, from, to)
	}
	return nil
}

// validID matches alphanumeric, dash, underscore, and dot characters only.
var validID = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// validateID rejects ids that could escape the store directory.
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: id must not be empty", model.ErrInvalidInput)
	}
	if strings.Contains(id, "..") {
		return fmt.Errorf("%w: id must not contain '..'", model.ErrInvalidInput)
	}
	if !validID.MatchString(id) {
		return fmt.Errorf("%w: id %q contains invalid characters", model.ErrInvalidInput, id)
	}
	return nil
}

func sortByCreated(list []*model.RiskAssessment) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}
