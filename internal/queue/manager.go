// Package queue serializes job execution across the whole runner: at most
// one job runs at a time, everything else waits in FIFO order. The
// manager is the single writer for queue state and job status, so the
// read-check-write of the shared record is atomic in-process.
package queue

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/search-runner/internal/artifacts"
	"github.com/jonathan/search-runner/internal/session"
	"github.com/jonathan/search-runner/internal/store"
)

// ErrNoOutput is the diagnostic recorded when a session ends without a
// usable artifact.
const ErrNoOutput = "session ended without producing output"

// ErrCancelled is the diagnostic recorded on a cancelled job.
const ErrCancelled = "cancelled"

// LaunchError reports that a job's session could not be started. The
// job record is already terminal when this error is returned.
type LaunchError struct {
	JobID string
	Err   error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("job %s: failed to launch session: %v", e.JobID, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// CancelOutcome distinguishes a real cancellation from the benign race
// where the job already finished on its own.
type CancelOutcome string

const (
	Cancelled       CancelOutcome = "cancelled"
	NothingToCancel CancelOutcome = "nothing to cancel"
)

// defaultPollInterval is how often a launched session is checked for exit.
const defaultPollInterval = 3 * time.Second

// Manager enforces the single-runner invariant.
type Manager struct {
	mu         sync.Mutex
	store      store.Store
	sessions   session.Supervisor
	classifier artifacts.Classifier

	pollInterval time.Duration
	stop         chan struct{}
	stopOnce     sync.Once
	watchers     sync.WaitGroup
}

// Option configures a Manager
type Option func(*Manager)

// WithPollInterval overrides how often launched sessions are polled for
// exit. Tests use a short interval.
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) { m.pollInterval = d }
}

// NewManager creates a queue manager
func NewManager(st store.Store, sessions session.Supervisor, classifier artifacts.Classifier, opts ...Option) *Manager {
	m := &Manager{
		store:        st,
		sessions:     sessions,
		classifier:   classifier,
		pollInterval: defaultPollInterval,
		stop:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Close stops the session watchers and waits for them to exit
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.watchers.Wait()
}

// NewJobID returns a time-prefixed, randomly-suffixed job ID. The time
// prefix keeps IDs roughly sortable by creation.
func NewJobID(now time.Time) string {
	return fmt.Sprintf("%s-%s", now.UTC().Format("20060102150405"), uuid.NewString()[:8])
}

// RequestRun creates a job for the search and either launches it
// immediately or appends it to the queue. The returned job is `running`
// when it was promoted, `queued` when something else holds the slot,
// and `failed` alongside a LaunchError when its session would not start.
func (m *Manager) RequestRun(ctx context.Context, search store.Search) (store.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	job := store.Job{
		ID:         NewJobID(now),
		SearchSlug: search.Slug,
		Status:     store.StatusQueued,
		CreatedAt:  now,
	}
	if err := m.store.PutJob(ctx, job); err != nil {
		return store.Job{}, err
	}

	state, err := m.store.GetQueueState(ctx)
	if err != nil {
		return store.Job{}, err
	}

	var promoteErr error
	if state.CurrentJobID == "" {
		if promoteErr = m.promoteLocked(ctx, &job, &state); promoteErr != nil {
			// Launch failed; the job is already terminal. Let the queue
			// advance in case anything else is waiting.
			if ferr := m.finishedLocked(ctx, job, &state); ferr != nil {
				return job, ferr
			}
		}
	} else {
		state.Queue = append(state.Queue, job.ID)
		log.Printf("job_id=%s: queued behind %s (%d waiting)", job.ID, state.CurrentJobID, len(state.Queue))
	}

	if err := m.store.PutQueueState(ctx, state); err != nil {
		return store.Job{}, err
	}
	// The failed launch propagates to the caller along with the terminal
	// job record.
	return job, promoteErr
}

// OnJobFinished clears the current pointer for a terminal job and
// promotes the next queued job, if any. It is invoked by the exit
// handling path and by the reconciler.
func (m *Manager) OnJobFinished(ctx context.Context, job store.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.store.GetQueueState(ctx)
	if err != nil {
		return err
	}
	if err := m.finishedLocked(ctx, job, &state); err != nil {
		return err
	}
	return m.store.PutQueueState(ctx, state)
}

// Cancel stops a running or queued job. Cancelling a job that already
// reached a terminal state is a no-op reported as NothingToCancel, since
// races between a finishing job and a cancel request are expected.
func (m *Manager) Cancel(ctx context.Context, slug, id string) (CancelOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.store.GetJob(ctx, slug, id)
	if err != nil {
		return NothingToCancel, err
	}
	if job == nil {
		return NothingToCancel, fmt.Errorf("job not found: %s/%s", slug, id)
	}
	if job.Status.Terminal() {
		return NothingToCancel, nil
	}

	state, err := m.store.GetQueueState(ctx)
	if err != nil {
		return NothingToCancel, err
	}

	switch job.Status {
	case store.StatusRunning:
		// Status flips to failed immediately; the kill is best-effort and
		// the reconciler is the backstop if the session resists.
		if err := m.sessions.Terminate(ctx, *job); err != nil {
			log.Printf("job_id=%s: terminate failed: %v", job.ID, err)
		}
		if err := m.markTerminalLocked(ctx, job, store.StatusFailed, ErrCancelled); err != nil {
			return NothingToCancel, err
		}
		if err := m.finishedLocked(ctx, *job, &state); err != nil {
			return NothingToCancel, err
		}
	case store.StatusQueued:
		state.Queue = removeID(state.Queue, job.ID)
		if err := m.markTerminalLocked(ctx, job, store.StatusFailed, ErrCancelled); err != nil {
			return NothingToCancel, err
		}
	}

	if err := m.store.PutQueueState(ctx, state); err != nil {
		return NothingToCancel, err
	}
	log.Printf("job_id=%s: cancelled", job.ID)
	return Cancelled, nil
}

// DropSearch purges a search's jobs from the queue ahead of deletion:
// queued jobs are removed outright, and a running job loses its session
// and its slot so the next queued job can start.
func (m *Manager) DropSearch(ctx context.Context, slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.store.GetQueueState(ctx)
	if err != nil {
		return err
	}

	kept := state.Queue[:0]
	for _, id := range state.Queue {
		job, err := m.store.FindJob(ctx, id)
		if err != nil {
			return err
		}
		if job != nil && job.SearchSlug == slug {
			continue
		}
		kept = append(kept, id)
	}
	state.Queue = kept

	if state.CurrentJobID != "" {
		current, err := m.store.FindJob(ctx, state.CurrentJobID)
		if err != nil {
			return err
		}
		if current != nil && current.SearchSlug == slug {
			if err := m.sessions.Terminate(ctx, *current); err != nil {
				log.Printf("job_id=%s: terminate failed: %v", current.ID, err)
			}
			if err := m.finishedLocked(ctx, *current, &state); err != nil {
				return err
			}
		}
	}

	return m.store.PutQueueState(ctx, state)
}

// promoteLocked moves a queued job into the execution slot and launches
// its session. On launch failure the job is marked failed and the error
// returned; the caller decides whether the queue should advance.
func (m *Manager) promoteLocked(ctx context.Context, job *store.Job, state *store.QueueState) error {
	search, err := m.store.GetSearch(ctx, job.SearchSlug)
	if err != nil {
		return err
	}
	if search == nil {
		err := fmt.Errorf("search no longer exists: %s", job.SearchSlug)
		if merr := m.markTerminalLocked(ctx, job, store.StatusFailed, err.Error()); merr != nil {
			return merr
		}
		return err
	}

	now := time.Now().UTC()
	job.Status = store.StatusRunning
	job.StartedAt = &now
	if err := m.store.PutJob(ctx, *job); err != nil {
		return err
	}
	state.CurrentJobID = job.ID

	if err := m.sessions.Launch(ctx, *job, search.Payload); err != nil {
		log.Printf("job_id=%s: launch failed: %v", job.ID, err)
		state.CurrentJobID = ""
		if merr := m.markTerminalLocked(ctx, job, store.StatusFailed, err.Error()); merr != nil {
			return merr
		}
		return &LaunchError{JobID: job.ID, Err: err}
	}

	log.Printf("job_id=%s: session launched for search %s", job.ID, job.SearchSlug)
	m.watchers.Add(1)
	go m.watch(*job)
	return nil
}

// finishedLocked releases the slot held by job and promotes the next
// viable queued job. Jobs that vanished or are no longer queued (e.g.
// cancelled while waiting) are skipped.
func (m *Manager) finishedLocked(ctx context.Context, job store.Job, state *store.QueueState) error {
	if state.CurrentJobID == job.ID {
		state.CurrentJobID = ""
	}
	for state.CurrentJobID == "" && len(state.Queue) > 0 {
		id := state.Queue[0]
		state.Queue = state.Queue[1:]
		next, err := m.store.FindJob(ctx, id)
		if err != nil {
			return err
		}
		if next == nil || next.Status != store.StatusQueued {
			continue
		}
		if err := m.promoteLocked(ctx, next, state); err != nil {
			// promoteLocked already marked the job failed; keep popping.
			continue
		}
	}
	return nil
}

// markTerminalLocked writes a terminal status after re-reading the record
// and checking the transition is still legal, so a concurrent finisher
// can never regress or double-write a terminal state.
func (m *Manager) markTerminalLocked(ctx context.Context, job *store.Job, status store.JobStatus, errMsg string) error {
	current, err := m.store.GetJob(ctx, job.SearchSlug, job.ID)
	if err != nil {
		return err
	}
	if current == nil {
		return nil
	}
	if !current.Status.CanTransition(status) {
		*job = *current
		return nil
	}
	now := time.Now().UTC()
	current.Status = status
	current.CompletedAt = &now
	if status == store.StatusFailed {
		current.Error = errMsg
	}
	if err := m.store.PutJob(ctx, *current); err != nil {
		return err
	}
	*job = *current
	return nil
}

// watch polls the job's session until it disappears, then runs the exit
// handling path: classify the artifact, record the terminal status, and
// advance the queue.
func (m *Manager) watch(job store.Job) {
	defer m.watchers.Done()
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			ctx := context.Background()
			if m.sessions.Alive(ctx, job) {
				continue
			}
			if err := m.handleExit(ctx, job); err != nil {
				log.Printf("job_id=%s: exit handling failed: %v", job.ID, err)
			}
			return
		}
	}
}

// handleExit resolves a dead session to a terminal job status. If the
// job already went terminal through cancel, this is a no-op.
func (m *Manager) handleExit(ctx context.Context, job store.Job) error {
	_, _, err := m.ResolveDeadSession(ctx, job)
	return err
}

// ResolveDeadSession records the outcome of a job whose session is gone,
// then advances the queue. All writes happen under the manager's mutex,
// so racing resolvers (the watcher, the reconciler) cannot regress a
// terminal status: whichever runs second sees the terminal record and
// leaves it alone. Returns the job's resulting status and whether this
// call made the transition.
func (m *Manager) ResolveDeadSession(ctx context.Context, job store.Job) (store.JobStatus, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.store.GetJob(ctx, job.SearchSlug, job.ID)
	if err != nil {
		return "", false, err
	}
	if current == nil {
		return "", false, nil
	}
	if current.Status.Terminal() {
		return current.Status, false, nil
	}

	outcome, err := m.classifier.Classify(job.SearchSlug, job.ID)
	if err != nil {
		return "", false, err
	}
	status := store.StatusCompleted
	errMsg := ""
	if outcome == artifacts.OutcomeFailed {
		status = store.StatusFailed
		errMsg = ErrNoOutput
	}
	if err := m.markTerminalLocked(ctx, current, status, errMsg); err != nil {
		return "", false, err
	}
	if current.Status != status {
		// A concurrent finisher won the markTerminal re-read; report its
		// result, not ours.
		return current.Status, false, nil
	}
	log.Printf("job_id=%s: session exited, job %s", job.ID, status)

	state, err := m.store.GetQueueState(ctx)
	if err != nil {
		return status, true, err
	}
	if err := m.finishedLocked(ctx, *current, &state); err != nil {
		return status, true, err
	}
	return status, true, m.store.PutQueueState(ctx, state)
}

// RepairQueuePointer clears a current-job pointer left at a record that
// is no longer running, e.g. after a crash between writing the job and
// the queue state, then promotes the next queued job. The read and
// write share the manager's mutex so a concurrent promotion can never
// be clobbered by a stale snapshot.
func (m *Manager) RepairQueuePointer(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.store.GetQueueState(ctx)
	if err != nil {
		return false, err
	}
	if state.CurrentJobID == "" {
		return false, nil
	}
	current, err := m.store.FindJob(ctx, state.CurrentJobID)
	if err != nil {
		return false, err
	}
	if current != nil && current.Status == store.StatusRunning {
		return false, nil
	}

	state.CurrentJobID = ""
	if err := m.finishedLocked(ctx, store.Job{}, &state); err != nil {
		return false, err
	}
	if err := m.store.PutQueueState(ctx, state); err != nil {
		return false, err
	}
	log.Printf("queue: cleared stale current job pointer")
	return true, nil
}

// RequeueOrphans re-enqueues queued jobs missing from the queue state,
// which happens when a crash lands between writing the job record and
// the queue entry. Orphans are appended in ID order, which is creation
// order. Returns the IDs it re-enqueued.
func (m *Manager) RequeueOrphans(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	queued, err := m.store.ListJobsByStatus(ctx, store.StatusQueued)
	if err != nil {
		return nil, err
	}
	if len(queued) == 0 {
		return nil, nil
	}

	state, err := m.store.GetQueueState(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(state.Queue)+1)
	known[state.CurrentJobID] = true
	for _, id := range state.Queue {
		known[id] = true
	}

	var orphans []string
	for _, job := range queued {
		if !known[job.ID] {
			orphans = append(orphans, job.ID)
		}
	}
	if len(orphans) == 0 {
		return nil, nil
	}
	sort.Strings(orphans)
	state.Queue = append(state.Queue, orphans...)
	log.Printf("queue: re-enqueued %d orphaned job(s)", len(orphans))

	if state.CurrentJobID == "" {
		if err := m.finishedLocked(ctx, store.Job{}, &state); err != nil {
			return orphans, err
		}
	}
	return orphans, m.store.PutQueueState(ctx, state)
}

func removeID(queue []string, id string) []string {
	kept := queue[:0]
	for _, qid := range queue {
		if qid != id {
			kept = append(kept, qid)
		}
	}
	return kept
}
