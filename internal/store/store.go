// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists processing job records in SQLite. The database is
// the source of truth for job status across process restarts; rendered
// artifacts and the document snapshot live on the filesystem next to it.
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

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paperbrief/pkg/types"
)

// ErrNotFound reports a paper id with no job record.
var ErrNotFound = errors.New("job not found")

// Store manages the jobs SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the jobs database at path, creating the schema when
// it does not exist.
func Open(cfg types.StoreConfig) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			paper_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			progress INTEGER NOT NULL DEFAULT 0,
			message TEXT,
			title TEXT,
			authors TEXT,
			source_url TEXT,
			format_used TEXT,
			language TEXT,
			output_path TEXT,
			processing_time REAL,
			retry_count INTEGER NOT NULL DEFAULT 0,
			error_message TEXT,
			last_failed_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Upsert writes the full job record, inserting or replacing by paper id.
// CreatedAt is preserved on update; UpdatedAt always advances.
func (s *Store) Upsert(ctx context.Context, job *types.ProcessingJob) error {
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	authorsJSON, _ := json.Marshal(job.Authors)
	lastFailed := ""
	if job.LastFailedAt != nil {
		lastFailed = job.LastFailedAt.UTC().Format(time.RFC3339Nano)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (paper_id, status, progress, message, title, authors,
			source_url, format_used, language, output_path, processing_time,
			retry_count, error_message, last_failed_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(paper_id) DO UPDATE SET
			status=excluded.status, progress=excluded.progress,
			message=excluded.message, title=excluded.title,
			authors=excluded.authors, source_url=excluded.source_url,
			format_used=excluded.format_used, language=excluded.language,
			output_path=excluded.output_path,
			processing_time=excluded.processing_time,
			retry_count=excluded.retry_count,
			error_message=excluded.error_message,
			last_failed_at=excluded.last_failed_at,
			updated_at=excluded.updated_at`,
		job.PaperID, string(job.Status), job.Progress, job.Message,
		job.Title, string(authorsJSON), job.SourceURL, string(job.FormatUsed),
		job.Language, job.OutputPath, job.ProcessingTime,
		job.RetryCount, job.ErrorMessage, lastFailed,
		job.CreatedAt.UTC().Format(time.RFC3339Nano),
		job.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upserting job %s: %w", job.PaperID, err)
	}
	return nil
}

// Get returns the job record for paperID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, paperID string) (*types.ProcessingJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT paper_id, status, progress, message, title, authors,
			source_url, format_used, language, output_path, processing_time,
			retry_count, error_message, last_failed_at, created_at, updated_at
		 FROM jobs WHERE paper_id = ?`, paperID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, paperID)
	}
	return job, err
}

// List returns all job records, most recently updated first.
func (s *Store) List(ctx context.Context) ([]*types.ProcessingJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT paper_id, status, progress, message, title, authors,
			source_url, format_used, language, output_path, processing_time,
			retry_count, error_message, last_failed_at, created_at, updated_at
		 FROM jobs ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*types.ProcessingJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Delete removes the job record for paperID. Missing records are not an
// error.
func (s *Store) Delete(ctx context.Context, paperID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE paper_id = ?`, paperID); err != nil {
		return fmt.Errorf("deleting job %s: %w", paperID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*types.ProcessingJob, error) {
	var (
		job          types.ProcessingJob
		status       string
		format       string
		authorsJSON  sql.NullString
		message      sql.NullString
		title        sql.NullString
		sourceURL    sql.NullString
		language     sql.NullString
		outputPath   sql.NullString
		procSeconds  sql.NullFloat64
		errorMessage sql.NullString
		lastFailed   sql.NullString
		createdAt    string
		updatedAt    string
	)
	err := row.Scan(&job.PaperID, &status, &job.Progress, &message, &title,
		&authorsJSON, &sourceURL, &format, &language, &outputPath,
		&procSeconds, &job.RetryCount, &errorMessage, &lastFailed,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	job.Status = types.Status(status)
	job.FormatUsed = types.Format(format)
	job.Message = message.String
	job.Title = title.String
	job.SourceURL = sourceURL.String
	job.Language = language.String
	job.OutputPath = outputPath.String
	job.ErrorMessage = errorMessage.String
	if procSeconds.Valid {
		job.ProcessingTime = procSeconds.Float64
	}
	if authorsJSON.Valid && authorsJSON.String != "" {
		if err := json.Unmarshal([]byte(authorsJSON.String), &job.Authors); err != nil {
			return nil, fmt.Errorf("parsing authors for %s: %w", job.PaperID, err)
		}
	}
	if lastFailed.Valid && lastFailed.String != "" {
		t, err := time.Parse(time.RFC3339Nano, lastFailed.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_failed_at for %s: %w", job.PaperID, err)
		}
		job.LastFailedAt = &t
	}
	if job.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at for %s: %w", job.PaperID, err)
	}
	if job.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at for %s: %w", job.PaperID, err)
	}
	return &job, nil
}
