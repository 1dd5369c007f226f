// Package store defines the persisted entities of the runner and the
// record store contract they are read and written through.
package store

import "time"

// JobStatus represents the state of a job
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status is an end state.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from s to next is a legal forward
// transition. Jobs only move queued -> running -> completed/failed; a
// terminal record never changes status again.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case StatusQueued:
		return next == StatusRunning || next == StatusFailed
	case StatusRunning:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Search is a named, reusable unit of work
type Search struct {
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Payload   string    `json:"payload"`
	Schedule  string    `json:"schedule,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Job is one execution attempt of a Search
type Job struct {
	ID          string     `json:"id"`
	SearchSlug  string     `json:"search_slug"`
	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	Title       string     `json:"title,omitempty"`
}

// QueueState is the singleton record coordinating the single execution
// slot. CurrentJobID is empty when nothing is running; Queue holds the
// IDs of queued jobs in FIFO order.
type QueueState struct {
	CurrentJobID string   `json:"current_job_id,omitempty"`
	Queue        []string `json:"queue"`
}
