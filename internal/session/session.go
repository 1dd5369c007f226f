// Package session supervises job execution inside named, reattachable
// tmux sessions. The session registry is the host's tmux server, so a
// session's liveness can be queried even after the runner itself has
// restarted.
package session

import (
	"context"

	"github.com/jonathan/search-runner/internal/store"
)

// Supervisor owns the mapping from a job to a live execution session.
type Supervisor interface {
	// Launch starts the payload in a new named session. It returns as
	// soon as the session exists; the payload runs out-of-band.
	Launch(ctx context.Context, job store.Job, payload string) error
	// Alive reports whether the job's session still exists. This is a
	// side-channel check, independent of anything the payload emits.
	Alive(ctx context.Context, job store.Job) bool
	// Terminate kills the job's session. Calling it on an already-dead
	// session is a no-op, not an error.
	Terminate(ctx context.Context, job store.Job) error
	// AttachCommand returns the command a user would run locally to
	// re-attach to the live session. Pure string formatting.
	AttachCommand(job store.Job) string
}

// Name returns the deterministic session name for a job, so a session
// can be rediscovered from the job record alone.
func Name(job store.Job) string {
	return "job-" + job.ID
}
