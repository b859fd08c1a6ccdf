package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ppiankov/sentinel/internal/model"
)

// FileStore keeps one JSON document per assessment in a directory.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a FileStore backed by dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("store: cannot create directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Save writes a new assessment. It fails with ErrExists if the id is taken.
func (s *FileStore) Save(_ context.Context, a *model.RiskAssessment) error {
	if err := validateID(a.ID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(a.ID)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, a.ID)
	}
	return writeAtomic(path, a)
}

// Get reads the assessment with the given id.
func (s *FileStore) Get(_ context.Context, id string) (*model.RiskAssessment, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.read(id)
}

// List returns every stored assessment ordered by creation time.
// Unreadable files are skipped.
func (s *FileStore) List(_ context.Context) ([]*model.RiskAssessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: %w", err)
	}

	var list []*model.RiskAssessment
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		a, err := s.read(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue
		}
		list = append(list, a)
	}
	sortByCreated(list)
	return list, nil
}

// Transition moves an assessment along the review state machine.
func (s *FileStore) Transition(_ context.Context, id string, to model.Status) (*model.RiskAssessment, model.Status, error) {
	if err := validateID(id); err != nil {
		return nil, "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.read(id)
	if err != nil {
		return nil, "", err
	}
	from := a.Status
	if err := checkTransition(id, from, to); err != nil {
		return nil, from, err
	}

	a.Status = to
	if err := writeAtomic(s.path(id), a); err != nil {
		return nil, from, err
	}
	return a, from, nil
}

// Close is a no-op; FileStore holds no open handles.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *FileStore) read(id string) (*model.RiskAssessment, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("store: %w", err)
	}

	var a model.RiskAssessment
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", id, err)
	}
	return &a, nil
}

func writeAtomic(path string, a *model.RiskAssessment) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return os.Rename(tmp, path)
}
