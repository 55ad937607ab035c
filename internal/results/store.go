package results

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/neuroforge/erpbench/internal/eval"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	created_at    TEXT NOT NULL,
	subject       TEXT NOT NULL,
	paradigm      TEXT NOT NULL,
	config_json   TEXT,
	attempted     INTEGER NOT NULL,
	kept          INTEGER NOT NULL,
	boundary      INTEGER NOT NULL,
	artifact      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS scores (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	pipeline      TEXT NOT NULL,
	split_idx     INTEGER NOT NULL,
	metric        REAL NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS failures (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	pipeline      TEXT NOT NULL,
	split_idx     INTEGER NOT NULL,
	reason        TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`
// #endregion schema

// #region types

// RunRecord is one persisted evaluation run: provenance plus the epoch
// drop accounting, so data quality travels with the scores.
type RunRecord struct {
	RunID      string
	CreatedAt  time.Time
	Subject    string
	Paradigm   string
	ConfigJSON string
	Attempted  int
	Kept       int
	Boundary   int
	Artifact   int
}

// #endregion types

// #region store

// Store persists evaluation runs in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) a results database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion store

// #region save

// SaveRun writes a run with its scores and failures in one transaction
// and returns the generated run ID.
func (s *Store) SaveRun(run RunRecord, res eval.Result) (string, error) {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (run_id, created_at, subject, paradigm, config_json, attempted, kept, boundary, artifact)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.CreatedAt.Format(time.RFC3339Nano), run.Subject, run.Paradigm,
		run.ConfigJSON, run.Attempted, run.Kept, run.Boundary, run.Artifact,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for _, r := range res.Records {
		_, err = tx.Exec(
			`INSERT INTO scores (run_id, pipeline, split_idx, metric) VALUES (?, ?, ?, ?)`,
			run.RunID, r.Pipeline, r.Split, r.Metric,
		)
		if err != nil {
			return "", fmt.Errorf("insert score: %w", err)
		}
	}
	for _, f := range res.Failures {
		_, err = tx.Exec(
			`INSERT INTO failures (run_id, pipeline, split_idx, reason) VALUES (?, ?, ?, ?)`,
			run.RunID, f.Pipeline, f.Split, f.Reason,
		)
		if err != nil {
			return "", fmt.Errorf("insert failure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return run.RunID, nil
}

// #endregion save

// #region read

// GetRun retrieves one run by ID.
func (s *Store) GetRun(id string) (RunRecord, error) {
	var rec RunRecord
	var createdStr string
	err := s.db.QueryRow(
		`SELECT run_id, created_at, subject, paradigm, config_json, attempted, kept, boundary, artifact
		 FROM runs WHERE run_id = ?`, id,
	).Scan(&rec.RunID, &createdStr, &rec.Subject, &rec.Paradigm, &rec.ConfigJSON,
		&rec.Attempted, &rec.Kept, &rec.Boundary, &rec.Artifact)
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", id, err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return rec, nil
}

// ListRuns returns the most recent runs.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, created_at, subject, paradigm, config_json, attempted, kept, boundary, artifact
		 FROM runs ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var createdStr string
		if err := rows.Scan(&rec.RunID, &createdStr, &rec.Subject, &rec.Paradigm, &rec.ConfigJSON,
			&rec.Attempted, &rec.Kept, &rec.Boundary, &rec.Artifact); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Scores returns the score records of one run in insertion order.
func (s *Store) Scores(runID string) ([]eval.ScoreRecord, error) {
	rows, err := s.db.Query(
		`SELECT pipeline, split_idx, metric FROM scores WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("scores for %s: %w", runID, err)
	}
	defer rows.Close()

	var out []eval.ScoreRecord
	for rows.Next() {
		var r eval.ScoreRecord
		if err := rows.Scan(&r.Pipeline, &r.Split, &r.Metric); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Failures returns the failure records of one run in insertion order.
func (s *Store) Failures(runID string) ([]eval.Failure, error) {
	rows, err := s.db.Query(
		`SELECT pipeline, split_idx, reason FROM failures WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failures for %s: %w", runID, err)
	}
	defer rows.Close()

	var out []eval.Failure
	for rows.Next() {
		var f eval.Failure
		if err := rows.Scan(&f.Pipeline, &f.Split, &f.Reason); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// #endregion read
