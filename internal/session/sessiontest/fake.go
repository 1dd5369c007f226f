// Package sessiontest provides an in-memory session supervisor for tests.
package sessiontest

import (
	"context"
	"sync"

	"github.com/jonathan/search-runner/internal/session"
	"github.com/jonathan/search-runner/internal/store"
)

// Fake implements session.Supervisor without touching tmux. Sessions
// live until ended explicitly, so tests control exactly when a job's
// session "exits".
type Fake struct {
	mu       sync.Mutex
	alive    map[string]bool
	payloads map[string]string
	launches []string

	// LaunchErr, when set, makes every Launch fail with it.
	LaunchErr error
}

// NewFake creates an empty fake supervisor
func NewFake() *Fake {
	return &Fake{
		alive:    make(map[string]bool),
		payloads: make(map[string]string),
	}
}

// Launch records the launch and marks the session alive
func (f *Fake) Launch(_ context.Context, job store.Job, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LaunchErr != nil {
		return f.LaunchErr
	}
	f.alive[job.ID] = true
	f.payloads[job.ID] = payload
	f.launches = append(f.launches, job.ID)
	return nil
}

// Alive reports whether the job's session is still up
func (f *Fake) Alive(_ context.Context, job store.Job) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive[job.ID]
}

// Terminate kills the session; dead sessions are a no-op
func (f *Fake) Terminate(_ context.Context, job store.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.alive, job.ID)
	return nil
}

// AttachCommand mirrors the tmux supervisor's formatting
func (f *Fake) AttachCommand(job store.Job) string {
	return "tmux attach-session -t " + session.Name(job)
}

// EndSession simulates the session exiting on its own
func (f *Fake) EndSession(jobID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.alive, jobID)
}

// Launches returns the job IDs launched so far, in order
func (f *Fake) Launches() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.launches...)
}

// Payload returns the payload a job was launched with
func (f *Fake) Payload(jobID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payloads[jobID]
}
