package constraint

import (
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/sentinel/internal/model"
)

// Checker scans action descriptions against a constraint Set.
// It holds no mutable state and is safe for concurrent use.
type Checker struct {
	set *Set
	now func() time.Time
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithClock overrides the time source used for result timestamps.
func WithClock(now func() time.Time) CheckerOption {
	return func(c *Checker) {
		c.now = now
	}
}

// NewChecker creates a Checker over set. A nil set means Default().
func NewChecker(set *Set, opts ...CheckerOption) *Checker {
	if set == nil {
		set = Default()
	}
	c := &Checker{
		set: set,
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Set returns the constraint set the checker was built with.
func (c *Checker) Set() *Set { return c.set }

// Check tests action against every constraint in order. Matching is
// case-insensitive substring containment; one violation is recorded per
// matching constraint, naming the first trigger that matched. A match on
// a constraint with exceptions is dropped when actionContext contains one
// of them.
func (c *Checker) Check(action, actionContext string) model.ConstraintCheckResult {
	now := c.now()
	lowerAction := strings.ToLower(action)
	lowerContext := strings.ToLower(actionContext)

	violations := []model.ConstraintViolation{}
	if lowerAction != "" {
		for _, con := range c.set.constraints {
			phrase, ok := firstMatch(lowerAction, con.TriggerPhrases)
			if !ok {
				continue
			}
			if _, excepted := firstMatch(lowerContext, con.Exceptions); excepted {
				continue
			}
			violations = append(violations, model.ConstraintViolation{
				ConstraintID:   con.ID,
				ConstraintName: con.Name,
				Severity:       con.Level,
				Reason:         fmt.Sprintf("action contains prohibited phrase %q", phrase),
				DetectedAt:     now,
				Context:        actionContext,
			})
		}
	}

	return model.ConstraintCheckResult{
		Passed:     len(violations) == 0,
		Violations: violations,
		Timestamp:  now,
	}
}

var defaultChecker = NewChecker(nil)

// Check runs the built-in constraint set against action.
func Check(action, actionContext string) model.ConstraintCheckResult {
	return defaultChecker.Check(action, actionContext)
}

func firstMatch(text string, phrases []string) (string, bool) {
	if text == "" {
		return "", false
	}
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return p, true
		}
	}
	return "", false
}
