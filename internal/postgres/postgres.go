// Package postgres provides the PostgreSQL-backed record store.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/search-runner/internal/store"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Migrate creates the schema if it does not exist and seeds the singleton
// queue state row.
func (db *DB) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS searches (
			slug        TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			payload     TEXT NOT NULL,
			schedule    TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS jobs (
			id            TEXT PRIMARY KEY,
			search_slug   TEXT NOT NULL REFERENCES searches(slug) ON DELETE CASCADE,
			status        TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			started_at    TIMESTAMPTZ,
			completed_at  TIMESTAMPTZ,
			error_message TEXT NOT NULL DEFAULT '',
			title         TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_search_slug ON jobs(search_slug)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`,
		`CREATE TABLE IF NOT EXISTS queue_state (
			id             SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			current_job_id TEXT NOT NULL DEFAULT '',
			queue          JSONB NOT NULL DEFAULT '[]'
		)`,
		`INSERT INTO queue_state (id) VALUES (1) ON CONFLICT (id) DO NOTHING`,
	}

	for _, stmt := range statements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return nil
}

// PutSearch inserts or replaces a search record
func (db *DB) PutSearch(ctx context.Context, search store.Search) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO searches (slug, name, payload, schedule, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (slug) DO UPDATE SET
		   name = $2, payload = $3, schedule = $4, updated_at = $6`,
		search.Slug, search.Name, search.Payload, search.Schedule,
		search.CreatedAt, search.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put search %s: %w", search.Slug, err)
	}
	return nil
}

// GetSearch retrieves a search by slug
func (db *DB) GetSearch(ctx context.Context, slug string) (*store.Search, error) {
	var search store.Search
	err := db.pool.QueryRow(ctx,
		`SELECT slug, name, payload, schedule, created_at, updated_at
		 FROM searches WHERE slug = $1`,
		slug,
	).Scan(&search.Slug, &search.Name, &search.Payload, &search.Schedule,
		&search.CreatedAt, &search.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get search %s: %w", slug, err)
	}
	return &search, nil
}

// ListSearches retrieves all searches, newest first
func (db *DB) ListSearches(ctx context.Context) ([]store.Search, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT slug, name, payload, schedule, created_at, updated_at
		 FROM searches ORDER BY created_at DESC, slug`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list searches: %w", err)
	}
	defer rows.Close()

	var searches []store.Search
	for rows.Next() {
		var search store.Search
		if err := rows.Scan(&search.Slug, &search.Name, &search.Payload,
			&search.Schedule, &search.CreatedAt, &search.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan search: %w", err)
		}
		searches = append(searches, search)
	}
	return searches, nil
}

// DeleteSearch removes a search; its jobs go with it via cascade
func (db *DB) DeleteSearch(ctx context.Context, slug string) error {
	if _, err := db.pool.Exec(ctx, `DELETE FROM searches WHERE slug = $1`, slug); err != nil {
		return fmt.Errorf("failed to delete search %s: %w", slug, err)
	}
	return nil
}

// PutJob inserts or replaces a job record
func (db *DB) PutJob(ctx context.Context, job store.Job) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO jobs (id, search_slug, status, created_at, started_at, completed_at, error_message, title)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   status = $3, started_at = $5, completed_at = $6, error_message = $7, title = $8`,
		job.ID, job.SearchSlug, job.Status, job.CreatedAt,
		job.StartedAt, job.CompletedAt, job.Error, job.Title,
	)
	if err != nil {
		return fmt.Errorf("failed to put job %s: %w", job.ID, err)
	}
	return nil
}

const jobColumns = `id, search_slug, status, created_at, started_at, completed_at, error_message, title`

// GetJob retrieves a job by search slug and job ID
func (db *DB) GetJob(ctx context.Context, slug, id string) (*store.Job, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE search_slug = $1 AND id = $2`,
		slug, id,
	)
	return scanJob(row)
}

// FindJob retrieves a job by ID alone
func (db *DB) FindJob(ctx context.Context, id string) (*store.Job, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`,
		id,
	)
	return scanJob(row)
}

// ListJobs retrieves a search's jobs, newest first
func (db *DB) ListJobs(ctx context.Context, slug string) ([]store.Job, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE search_slug = $1 ORDER BY created_at DESC, id DESC`,
		slug,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ListJobsByStatus retrieves all jobs with the given status across searches
func (db *DB) ListJobsByStatus(ctx context.Context, status store.JobStatus) ([]store.Job, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE status = $1 ORDER BY created_at DESC, id DESC`,
		status,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs by status: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// LastCompletedJob retrieves the most recently completed job of a search
func (db *DB) LastCompletedJob(ctx context.Context, slug string) (*store.Job, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE search_slug = $1 AND status = $2 AND completed_at IS NOT NULL
		 ORDER BY completed_at DESC LIMIT 1`,
		slug, store.StatusCompleted,
	)
	return scanJob(row)
}

// GetQueueState returns the singleton queue state record
func (db *DB) GetQueueState(ctx context.Context) (store.QueueState, error) {
	var state store.QueueState
	var queueJSON []byte
	err := db.pool.QueryRow(ctx,
		`SELECT current_job_id, queue FROM queue_state WHERE id = 1`,
	).Scan(&state.CurrentJobID, &queueJSON)
	if err != nil {
		return store.QueueState{}, fmt.Errorf("failed to get queue state: %w", err)
	}
	if err := json.Unmarshal(queueJSON, &state.Queue); err != nil {
		return store.QueueState{}, fmt.Errorf("failed to decode queue: %w", err)
	}
	return state, nil
}

// PutQueueState replaces the singleton queue state record
func (db *DB) PutQueueState(ctx context.Context, state store.QueueState) error {
	if state.Queue == nil {
		state.Queue = []string{}
	}
	queueJSON, err := json.Marshal(state.Queue)
	if err != nil {
		return fmt.Errorf("failed to encode queue: %w", err)
	}
	_, err = db.pool.Exec(ctx,
		`UPDATE queue_state SET current_job_id = $1, queue = $2 WHERE id = 1`,
		state.CurrentJobID, queueJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to put queue state: %w", err)
	}
	return nil
}

func scanJob(row pgx.Row) (*store.Job, error) {
	var job store.Job
	err := row.Scan(&job.ID, &job.SearchSlug, &job.Status, &job.CreatedAt,
		&job.StartedAt, &job.CompletedAt, &job.Error, &job.Title)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func collectJobs(rows pgx.Rows) ([]store.Job, error) {
	var jobs []store.Job
	for rows.Next() {
		var job store.Job
		if err := rows.Scan(&job.ID, &job.SearchSlug, &job.Status, &job.CreatedAt,
			&job.StartedAt, &job.CompletedAt, &job.Error, &job.Title); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
