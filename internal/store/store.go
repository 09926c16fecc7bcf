// Package store persists assessment history and recorded outcomes for calibration.
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

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/credence/internal/model"
)

// ErrNotFound is returned when an assessment id is unknown
var ErrNotFound = errors.New("assessment not found")

const schema = `
CREATE TABLE IF NOT EXISTS assessments (
	id              TEXT PRIMARY KEY,
	created_at      TEXT NOT NULL,
	domain          TEXT NOT NULL,
	user_role       TEXT,
	score           INTEGER NOT NULL,
	level           TEXT NOT NULL,
	recommendation  TEXT NOT NULL,
	text_hash       TEXT NOT NULL,
	breakdown_json  TEXT,
	outcome         INTEGER,
	outcome_at      TEXT
);

CREATE INDEX IF NOT EXISTS idx_assessments_outcome ON assessments(outcome_at) WHERE outcome IS NOT NULL;
`

// timeFormat keeps a fixed width so stored timestamps sort lexically
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Record is one stored assessment
type Record struct {
	ID             string                `json:"id"`
	CreatedAt      time.Time             `json:"created_at"`
	Domain         string                `json:"domain"`
	UserRole       string                `json:"user_role,omitempty"`
	Score          int                   `json:"score"`
	Level          model.ConfidenceLevel `json:"level"`
	Recommendation model.Recommendation  `json:"recommendation"`
	TextHash       string                `json:"text_hash"`
	Breakdown      map[string]float64    `json:"factor_breakdown,omitempty"`
	Outcome        *bool                 `json:"outcome,omitempty"`
	OutcomeAt      *time.Time            `json:"outcome_at,omitempty"`
}

// Store manages assessment history in SQLite
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and runs migrations
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Record persists an assessment. An assessment without an id is given one.
func (s *Store) Record(ctx context.Context, a *model.Assessment) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	createdAt := a.ScoredAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	breakdown, err := json.Marshal(a.Result.FactorBreakdown)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO assessments (id, created_at, domain, user_role, score, level, recommendation, text_hash, breakdown_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   created_at = excluded.created_at, score = excluded.score, level = excluded.level,
		   recommendation = excluded.recommendation, breakdown_json = excluded.breakdown_json`,
		a.ID, createdAt.UTC().Format(timeFormat), a.Pack, a.UserRole, a.Result.Score,
		string(a.Result.Level), string(a.Result.Recommendation), a.TextHash, string(breakdown),
	)
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}

// RecordOutcome stores whether the assessed response turned out to be correct
func (s *Store) RecordOutcome(ctx context.Context, id string, correct bool) error {
	outcome := 0
	if correct {
		outcome = 1
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE assessments SET outcome = ?, outcome_at = ? WHERE id = ?`,
		outcome, time.Now().UTC().Format(timeFormat), id,
	)
	if err != nil {
		return fmt.Errorf("update outcome: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Get loads one assessment record
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, domain, user_role, score, level, recommendation, text_hash, breakdown_json, outcome, outcome_at
		 FROM assessments WHERE id = ?`, id)

	var (
		r          Record
		createdAt  string
		userRole   sql.NullString
		breakdown  sql.NullString
		outcome    sql.NullInt64
		outcomeAt  sql.NullString
		level, rec string
	)
	err := row.Scan(&r.ID, &createdAt, &r.Domain, &userRole, &r.Score, &level, &rec, &r.TextHash, &breakdown, &outcome, &outcomeAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query assessment: %w", err)
	}

	r.Level = model.ConfidenceLevel(level)
	r.Recommendation = model.Recommendation(rec)
	r.UserRole = userRole.String
	if r.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if breakdown.Valid && breakdown.String != "" {
		if err := json.Unmarshal([]byte(breakdown.String), &r.Breakdown); err != nil {
			return nil, fmt.Errorf("unmarshal breakdown: %w", err)
		}
	}
	if outcome.Valid {
		correct := outcome.Int64 == 1
		r.Outcome = &correct
	}
	if outcomeAt.Valid {
		t, err := time.Parse(timeFormat, outcomeAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse outcome_at: %w", err)
		}
		r.OutcomeAt = &t
	}
	return &r, nil
}

// Recent returns up to n (score, outcome) pairs for assessments with a recorded
// outcome, newest outcome first
func (s *Store) Recent(ctx context.Context, n int) ([]model.CalibrationSample, error) {
	if n <= 0 {
		return []model.CalibrationSample{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT score, outcome FROM assessments
		 WHERE outcome IS NOT NULL
		 ORDER BY outcome_at DESC, rowid DESC
		 LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	samples := []model.CalibrationSample{}
	for rows.Next() {
		var score, outcome int
		if err := rows.Scan(&score, &outcome); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		samples = append(samples, model.CalibrationSample{Predicted: score, Correct: outcome == 1})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return samples, nil
}

// Stats returns the number of stored assessments and how many have outcomes
func (s *Store) Stats(ctx context.Context) (total, labelled int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(outcome) FROM assessments`).Scan(&total, &labelled)
	if err != nil {
		return 0, 0, fmt.Errorf("count assessments: %w", err)
	}
	return total, labelled, nil
}
