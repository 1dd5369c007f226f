// Package reconcile repairs jobs whose session died without going
// through the normal exit handling path, e.g. after a host crash or a
// kill issued outside the API.
package reconcile

import (
	"context"
	"log"

	"github.com/jonathan/search-runner/internal/queue"
	"github.com/jonathan/search-runner/internal/session"
	"github.com/jonathan/search-runner/internal/store"
)

// Report summarizes what a reconciliation pass changed.
type Report struct {
	Checked        int      `json:"checked"`
	Completed      []string `json:"completed,omitempty"`
	Failed         []string `json:"failed,omitempty"`
	Requeued       []string `json:"requeued,omitempty"`
	ClearedPointer bool     `json:"cleared_pointer,omitempty"`
}

// Changed reports whether the pass made any transition.
func (r Report) Changed() bool {
	return len(r.Completed) > 0 || len(r.Failed) > 0 || len(r.Requeued) > 0 || r.ClearedPointer
}

// Reconciler resolves running jobs with dead sessions to a terminal
// status, re-enqueues orphaned queued jobs, and clears a stale current
// job pointer. It only decides what needs repair; every write goes
// through the queue manager, whose mutex serializes it against the
// watchers and the scheduler. It is a repair pass, invoked on demand;
// running it twice with no intervening change produces no further
// transitions.
type Reconciler struct {
	store    store.Store
	sessions session.Supervisor
	queue    *queue.Manager
}

// New creates a reconciler
func New(st store.Store, sessions session.Supervisor, qm *queue.Manager) *Reconciler {
	return &Reconciler{store: st, sessions: sessions, queue: qm}
}

// Run executes one reconciliation pass
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	var report Report

	running, err := r.store.ListJobsByStatus(ctx, store.StatusRunning)
	if err != nil {
		return report, err
	}
	report.Checked = len(running)

	for _, job := range running {
		if r.sessions.Alive(ctx, job) {
			continue
		}
		status, changed, err := r.queue.ResolveDeadSession(ctx, job)
		if err != nil {
			return report, err
		}
		if !changed {
			// An exit handler or cancel resolved the job first.
			continue
		}
		if status == store.StatusCompleted {
			report.Completed = append(report.Completed, job.ID)
		} else {
			report.Failed = append(report.Failed, job.ID)
		}
		log.Printf("job_id=%s: reconciled to %s", job.ID, status)
	}

	requeued, err := r.queue.RequeueOrphans(ctx)
	if err != nil {
		return report, err
	}
	report.Requeued = requeued

	cleared, err := r.queue.RepairQueuePointer(ctx)
	if err != nil {
		return report, err
	}
	report.ClearedPointer = cleared

	return report, nil
}
