package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/cwygoda/feedgrab/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    profile     TEXT NOT NULL,
    status      TEXT NOT NULL DEFAULT 'running',
    error       TEXT,
    started_at  DATETIME NOT NULL,
    finished_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);

CREATE TABLE IF NOT EXISTS run_categories (
    run_id    TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    name      TEXT NOT NULL,
    posts     INTEGER NOT NULL DEFAULT 0,
    viewable  INTEGER NOT NULL DEFAULT 0,
    attempted INTEGER NOT NULL DEFAULT 0,
    succeeded INTEGER NOT NULL DEFAULT 0,
    failed    INTEGER NOT NULL DEFAULT 0,
    error     TEXT,
    PRIMARY KEY (run_id, name)
);
`

// Repository implements domain.RunRepository using SQLite.
type Repository struct {
	db *sql.DB
}

// New creates a new SQLite repository, initializing the schema if needed.
func New(dbPath string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// Concurrent syncs share one writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Create inserts a new run.
func (r *Repository) Create(ctx context.Context, run *domain.Run) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (id, profile, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Profile, run.Status, run.StartedAt.UTC(),
	)
	return err
}

// Finish stores the final state of a run and its per-category results.
func (r *Repository) Finish(ctx context.Context, run *domain.Run) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		run.Status, nullString(run.Error), run.FinishedAt.UTC(), run.ID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrRunNotFound
	}

	for _, c := range run.Categories {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO run_categories
			 (run_id, name, posts, viewable, attempted, succeeded, failed, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, c.Name, c.Posts, c.Viewable, c.Attempted, c.Succeeded, c.Failed, nullString(c.Error),
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Get retrieves a run and its categories by ID.
func (r *Repository) Get(ctx context.Context, id string) (*domain.Run, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, profile, status, COALESCE(error, ''), started_at, finished_at
		 FROM runs WHERE id = ?`, id,
	)
	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}
	if run.Categories, err = r.categories(ctx, run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

// Recent returns up to limit runs, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]domain.Run, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, profile, status, COALESCE(error, ''), started_at, finished_at
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		if runs[i].Categories, err = r.categories(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// RecoverStale marks runs still running as interrupted (for crash recovery).
func (r *Repository) RecoverStale(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = 'interrupted before completion', finished_at = ?
		 WHERE status = ?`,
		domain.RunInterrupted, time.Now().UTC(), domain.RunRunning,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *Repository) categories(ctx context.Context, runID string) ([]domain.RunCategory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, posts, viewable, attempted, succeeded, failed, COALESCE(error, '')
		 FROM run_categories WHERE run_id = ? ORDER BY name`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RunCategory
	for rows.Next() {
		var c domain.RunCategory
		if err := rows.Scan(&c.Name, &c.Posts, &c.Viewable, &c.Attempted, &c.Succeeded, &c.Failed, &c.Error); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*domain.Run, error) {
	var run domain.Run
	var status string
	var finished sql.NullTime
	err := row.Scan(&run.ID, &run.Profile, &status, &run.Error, &run.StartedAt, &finished)
	if err == sql.ErrNoRows {
		return nil, domain.ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	run.Status = domain.RunStatus(status)
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	return &run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
