package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/sentinel/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS assessments (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	created_by TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	body       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_assessments_created ON assessments(created_at, id);
`

// SQLiteStore keeps assessments in a single SQLite table. The full
// assessment is stored as JSON; status is mirrored in its own column so
// transitions can be guarded by the database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path. The special path
// ":memory:" opens a private in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("store: cannot create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	// one writer; also keeps ":memory:" on a single connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save inserts a new assessment. It fails with ErrExists if the id is taken.
func (s *SQLiteStore) Save(ctx context.Context, a *model.RiskAssessment) error {
	if err := validateID(a.ID); err != nil {
		return err
	}
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO assessments (id, status, created_by, created_at, updated_at, body)
		 VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		a.ID, string(a.Status), a.CreatedBy,
		a.CreatedAt.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
		string(body))
	if err != nil {
		return fmt.Errorf("store: insert %s: %w", a.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrExists, a.ID)
	}
	return nil
}

// Get reads the assessment with the given id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.RiskAssessment, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	return getRow(ctx, s.db, id)
}

// List returns every stored assessment ordered by creation time.
func (s *SQLiteStore) List(ctx context.Context) ([]*model.RiskAssessment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM assessments`)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var list []*model.RiskAssessment
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		var a model.RiskAssessment
		if err := json.Unmarshal([]byte(body), &a); err != nil {
			return nil, fmt.Errorf("store: decode: %w", err)
		}
		list = append(list, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	sortByCreated(list)
	return list, nil
}

// Transition moves an assessment along the review state machine inside a
// single transaction.
func (s *SQLiteStore) Transition(ctx context.Context, id string, to model.Status) (*model.RiskAssessment, model.Status, error) {
	if err := validateID(id); err != nil {
		return nil, "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	a, err := getRow(ctx, tx, id)
	if err != nil {
		return nil, "", err
	}
	from := a.Status
	if err := checkTransition(id, from, to); err != nil {
		return nil, from, err
	}

	a.Status = to
	body, err := json.Marshal(a)
	if err != nil {
		return nil, from, fmt.Errorf("store: encode: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE assessments SET status = ?, updated_at = ?, body = ? WHERE id = ? AND status = ?`,
		string(to), time.Now().UTC().Format(time.RFC3339Nano), string(body), id, string(from))
	if err != nil {
		return nil, from, fmt.Errorf("store: update %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return nil, from, fmt.Errorf("%w: %s changed concurrently", ErrInvalidTransition, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, from, fmt.Errorf("store: commit: %w", err)
	}
	return a, from, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getRow(ctx context.Context, q queryer, id string) (*model.RiskAssessment, error) {
	var body string
	err := q.QueryRowContext(ctx, `SELECT body FROM assessments WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", id, err)
	}

	var a model.RiskAssessment
	if err := json.Unmarshal([]byte(body), &a); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", id, err)
	}
	return &a, nil
}
