package store

import "context"

// Store is the record store contract. All operations are last-writer-wins
// on a whole record; callers read-modify-write. Lookups return (nil, nil)
// when the record does not exist.
type Store interface {
	PutSearch(ctx context.Context, search Search) error
	GetSearch(ctx context.Context, slug string) (*Search, error)
	// ListSearches returns searches ordered by recency (newest first).
	ListSearches(ctx context.Context) ([]Search, error)
	// DeleteSearch removes a search and all of its jobs.
	DeleteSearch(ctx context.Context, slug string) error

	PutJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, slug, id string) (*Job, error)
	// FindJob looks a job up by ID alone; job IDs are globally unique.
	FindJob(ctx context.Context, id string) (*Job, error)
	// ListJobs returns a search's jobs ordered newest first.
	ListJobs(ctx context.Context, slug string) ([]Job, error)
	// ListJobsByStatus returns all jobs in the given status across searches.
	ListJobsByStatus(ctx context.Context, status JobStatus) ([]Job, error)
	// LastCompletedJob returns the most recently completed job of a search.
	LastCompletedJob(ctx context.Context, slug string) (*Job, error)

	GetQueueState(ctx context.Context) (QueueState, error)
	PutQueueState(ctx context.Context, state QueueState) error
}
