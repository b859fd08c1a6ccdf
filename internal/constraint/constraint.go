package constraint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/sentinel/internal/model"
)

// Constraint is a named rule with a severity level and the textual
// triggers the checker scans for. A match is suppressed when the check
// context contains any of the Exceptions.
type Constraint struct {
	ID             string                `yaml:"id"                   json:"id"`
	Name           string                `yaml:"name"                 json:"name"`
	Description    string                `yaml:"description"          json:"description"`
	Level          model.ConstraintLevel `yaml:"level"                json:"level"`
	TriggerPhrases []string              `yaml:"triggers"             json:"triggerPhrases"`
	Exceptions     []string              `yaml:"exceptions,omitempty" json:"exceptions,omitempty"`
}

// Set is an immutable, ordered constraint table. Build one with NewSet,
// Default or LoadSet and share it freely between goroutines.
type Set struct {
	constraints []Constraint
	hash        string
}

// file is the on-disk YAML shape of a constraint set.
type file struct {
	Constraints []Constraint `yaml:"constraints"`
}

// NewSet validates the given constraints and returns an immutable Set.
// Trigger and exception phrases are stored lower-cased.
func NewSet(cs []Constraint) (*Set, error) {
	seen := make(map[string]bool, len(cs))
	out := make([]Constraint, 0, len(cs))
	for i, c := range cs {
		if c.ID == "" {
			return nil, fmt.Errorf("constraint %d: id is required", i)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("constraint %q: duplicate id", c.ID)
		}
		seen[c.ID] = true
		if !model.ValidLevel(c.Level) {
			return nil, fmt.Errorf("constraint %q: unknown level %q", c.ID, c.Level)
		}
		if len(c.TriggerPhrases) == 0 {
			return nil, fmt.Errorf("constraint %q: at least one trigger is required", c.ID)
		}
		if c.Name == "" {
			c.Name = c.ID
		}
		c.TriggerPhrases = lowerAll(c.TriggerPhrases)
		c.Exceptions = lowerAll(c.Exceptions)
		out = append(out, c)
	}
	return &Set{constraints: out, hash: emptyHash()}, nil
}

// Default returns the built-in seven-constraint set.
func Default() *Set {
	s, err := NewSet(DefaultConstraints)
	if err != nil {
		panic("constraint: invalid built-in table: " + err.Error())
	}
	return s
}

// DefaultPath returns ~/.sentinel/constraints.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".sentinel", "constraints.yaml")
}

// LoadSet reads a constraint set from YAML. Empty path falls back to
// DefaultPath; a missing file yields the built-in set. The returned set
// carries the SHA-256 of the file bytes (or of empty input for defaults).
func LoadSet(path string) (*Set, error) {
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read constraints: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse constraints: %w", err)
	}
	if len(f.Constraints) == 0 {
		return nil, fmt.Errorf("constraints file %s defines no constraints", path)
	}

	s, err := NewSet(f.Constraints)
	if err != nil {
		return nil, err
	}
	h := sha256.Sum256(data)
	s.hash = "sha256:" + hex.EncodeToString(h[:])
	return s, nil
}

// Constraints returns a copy of the table in check order.
func (s *Set) Constraints() []Constraint {
	out := make([]Constraint, len(s.constraints))
	for i, c := range s.constraints {
		c.TriggerPhrases = append([]string(nil), c.TriggerPhrases...)
		c.Exceptions = append([]string(nil), c.Exceptions...)
		out[i] = c
	}
	return out
}

// Get returns the constraint with the given id.
func (s *Set) Get(id string) (Constraint, bool) {
	for _, c := range s.constraints {
		if c.ID == id {
			c.TriggerPhrases = append([]string(nil), c.TriggerPhrases...)
			c.Exceptions = append([]string(nil), c.Exceptions...)
			return c, true
		}
	}
	return Constraint{}, false
}

// Len returns the number of constraints.
func (s *Set) Len() int { return len(s.constraints) }

// Hash identifies the source the set was loaded from.
func (s *Set) Hash() string { return s.hash }

// Marshal renders the set in the YAML file format accepted by LoadSet.
func (s *Set) Marshal() ([]byte, error) {
	return yaml.Marshal(file{Constraints: s.Constraints()})
}

func lowerAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func emptyHash() string {
	h := sha256.Sum256(nil)
	return "sha256:" + hex.EncodeToString(h[:])
}
