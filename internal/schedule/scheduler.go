package schedule

import (
	"context"
	"log"
	"time"

	"github.com/jonathan/search-runner/internal/queue"
	"github.com/jonathan/search-runner/internal/store"
)

// DefaultTickInterval is how often the scheduler scans for due searches.
const DefaultTickInterval = time.Minute

// Scheduler periodically enqueues recurring searches. A search is due
// when its interval has elapsed since its last completed job; a search
// that never completed is due immediately. There is no catch-up or
// backfill: a run missed while the machine was off simply becomes due on
// the next tick.
type Scheduler struct {
	store    store.Store
	queue    *queue.Manager
	interval time.Duration
	now      func() time.Time
}

// NewScheduler creates a scheduler ticking at the given interval. A
// non-positive interval falls back to DefaultTickInterval.
func NewScheduler(st store.Store, qm *queue.Manager, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Scheduler{store: st, queue: qm, interval: interval, now: time.Now}
}

// Run ticks until the context is cancelled
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("scheduler: ticking every %s", s.interval)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				log.Printf("scheduler: tick failed: %v", err)
			}
		}
	}
}

// Tick runs one scheduling pass and returns the job it dispatched, if
// any. At most one search is dispatched per tick, and nothing is
// dispatched while a job holds the execution slot; recurring searches
// never stack behind each other.
func (s *Scheduler) Tick(ctx context.Context) (*store.Job, error) {
	state, err := s.store.GetQueueState(ctx)
	if err != nil {
		return nil, err
	}
	if state.CurrentJobID != "" {
		return nil, nil
	}

	searches, err := s.store.ListSearches(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	for _, search := range searches {
		if search.Schedule == "" {
			continue
		}
		interval, err := Parse(search.Schedule)
		if err != nil {
			// A malformed schedule never becomes due; it must not take
			// down the loop.
			log.Printf("scheduler: skipping search %s: %v", search.Slug, err)
			continue
		}
		due, err := s.isDue(ctx, search.Slug, interval, now)
		if err != nil {
			return nil, err
		}
		if !due {
			continue
		}

		job, err := s.queue.RequestRun(ctx, search)
		if err != nil {
			return nil, err
		}
		log.Printf("scheduler: dispatched search %s as job %s", search.Slug, job.ID)
		return &job, nil
	}
	return nil, nil
}

// isDue anchors the next due time on the last completed job rather than
// wall-clock alignment.
func (s *Scheduler) isDue(ctx context.Context, slug string, interval time.Duration, now time.Time) (bool, error) {
	last, err := s.store.LastCompletedJob(ctx, slug)
	if err != nil {
		return false, err
	}
	if last == nil || last.CompletedAt == nil {
		return true, nil
	}
	return !now.Before(last.CompletedAt.Add(interval)), nil
}
