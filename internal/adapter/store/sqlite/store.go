// Package sqlite persists review run history so repeated runs on the
// same pull request can be compared.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/NumeralTiger/AI-PR-Reviewer/internal/domain"
)

// Run is a single recorded pipeline execution.
type Run struct {
	RunID      string
	PRNumber   int
	Repository string
	BaseRef    string
	HeadRef    string
	Timestamp  time.Time
	Advisory   domain.SourceStatus
	Scanner    domain.SourceStatus
	Total      int
}

// Store implements run history persistence using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) a SQLite database at the given path.
// Use ":memory:" for an in-memory database, useful for testing.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	schema := `
	-- Metadata about each pipeline run
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		pr_number INTEGER NOT NULL,
		repository TEXT NOT NULL,
		base_ref TEXT NOT NULL,
		head_ref TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		advisory_status TEXT NOT NULL,
		scanner_status TEXT NOT NULL,
		total_findings INTEGER NOT NULL DEFAULT 0
	);

	-- Individual findings from each run
	CREATE TABLE IF NOT EXISTS findings (
		finding_id TEXT NOT NULL,
		run_id TEXT NOT NULL,
		source TEXT NOT NULL,
		file TEXT NOT NULL,
		line INTEGER,
		severity TEXT NOT NULL,
		message TEXT NOT NULL,
		rule_id TEXT,
		PRIMARY KEY (run_id, finding_id),
		FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_findings_run ON findings(run_id);
	CREATE INDEX IF NOT EXISTS idx_runs_pr ON runs(pr_number, timestamp DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveRun records a run and all of its findings in one transaction.
func (s *Store) SaveRun(ctx context.Context, run Run, findings []domain.Finding) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, pr_number, repository, base_ref, head_ref, timestamp, advisory_status, scanner_status, total_findings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.RunID,
		run.PRNumber,
		run.Repository,
		run.BaseRef,
		run.HeadRef,
		run.Timestamp.Unix(),
		string(run.Advisory),
		string(run.Scanner),
		len(findings),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO findings (finding_id, run_id, source, file, line, severity, message, rule_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare findings insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range findings {
		var line sql.NullInt64
		if f.Line != nil {
			line = sql.NullInt64{Int64: int64(*f.Line), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, f.ID, run.RunID, string(f.Source), f.File, line, string(f.Severity), f.Message, f.RuleID); err != nil {
			return fmt.Errorf("failed to save finding %s: %w", f.ID, err)
		}
	}

	return tx.Commit()
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	var run Run
	var timestamp int64

	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, pr_number, repository, base_ref, head_ref, timestamp, advisory_status, scanner_status, total_findings
		FROM runs
		WHERE run_id = ?
	`, runID).Scan(
		&run.RunID,
		&run.PRNumber,
		&run.Repository,
		&run.BaseRef,
		&run.HeadRef,
		&timestamp,
		&run.Advisory,
		&run.Scanner,
		&run.Total,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return Run{}, fmt.Errorf("run not found: %s", runID)
		}
		return Run{}, fmt.Errorf("failed to get run: %w", err)
	}

	run.Timestamp = time.Unix(timestamp, 0)
	return run, nil
}

// ListRuns retrieves the most recent runs for a pull request.
func (s *Store) ListRuns(ctx context.Context, prNumber, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, pr_number, repository, base_ref, head_ref, timestamp, advisory_status, scanner_status, total_findings
		FROM runs
		WHERE pr_number = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, prNumber, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var timestamp int64
		if err := rows.Scan(
			&run.RunID,
			&run.PRNumber,
			&run.Repository,
			&run.BaseRef,
			&run.HeadRef,
			&timestamp,
			&run.Advisory,
			&run.Scanner,
			&run.Total,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Timestamp = time.Unix(timestamp, 0)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// GetFindings retrieves all findings recorded for a run.
func (s *Store) GetFindings(ctx context.Context, runID string) ([]domain.Finding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT finding_id, source, file, line, severity, message, rule_id
		FROM findings
		WHERE run_id = ?
		ORDER BY file ASC, line ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get findings: %w", err)
	}
	defer rows.Close()

	var findings []domain.Finding
	for rows.Next() {
		var f domain.Finding
		var line sql.NullInt64
		var ruleID sql.NullString
		if err := rows.Scan(&f.ID, &f.Source, &f.File, &line, &f.Severity, &f.Message, &ruleID); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		if line.Valid {
			f.Line = domain.IntPtr(int(line.Int64))
		}
		f.RuleID = ruleID.String
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating findings: %w", err)
	}
	return findings, nil
}
