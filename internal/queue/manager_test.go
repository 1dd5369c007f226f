package queue

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/search-runner/internal/artifacts"
	"github.com/jonathan/search-runner/internal/session/sessiontest"
	"github.com/jonathan/search-runner/internal/store"
)

const testPoll = 2 * time.Millisecond

type fixture struct {
	store    *store.Memory
	sessions *sessiontest.Fake
	dir      *artifacts.Dir
	manager  *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemory()
	sessions := sessiontest.NewFake()
	dir := artifacts.NewDir(t.TempDir())
	m := NewManager(st, sessions, artifacts.NewSizeClassifier(dir, 100), WithPollInterval(testPoll))
	t.Cleanup(m.Close)
	return &fixture{store: st, sessions: sessions, dir: dir, manager: m}
}

func (f *fixture) addSearch(t *testing.T, slug string) store.Search {
	t.Helper()
	search := store.Search{
		Slug:      slug,
		Name:      slug,
		Payload:   "find deals on " + slug,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.store.PutSearch(context.Background(), search))
	return search
}

func (f *fixture) jobStatus(t *testing.T, slug, id string) store.JobStatus {
	t.Helper()
	job, err := f.store.GetJob(context.Background(), slug, id)
	require.NoError(t, err)
	require.NotNil(t, job)
	return job.Status
}

func TestNewJobIDSortsByTime(t *testing.T) {
	early := NewJobID(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	late := NewJobID(time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC))
	assert.True(t, strings.HasPrefix(early, "20260102030405-"))
	assert.Less(t, early, late)
}

func TestRequestRunLaunchesImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	search := f.addSearch(t, "desk-deals")

	job, err := f.manager.RequestRun(ctx, search)
	require.NoError(t, err)
	assert.Equal(t, store.StatusRunning, job.Status)
	require.NotNil(t, job.StartedAt)

	state, err := f.store.GetQueueState(ctx)
	require.NoError(t, err)
	assert.Equal(t, job.ID, state.CurrentJobID)
	assert.Empty(t, state.Queue)

	assert.Equal(t, search.Payload, f.sessions.Payload(job.ID))
}

func TestSessionExitWithArtifactCompletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	search := f.addSearch(t, "desk-deals")

	job, err := f.manager.RequestRun(ctx, search)
	require.NoError(t, err)

	require.NoError(t, f.dir.Write(search.Slug, job.ID, strings.Repeat("x", 500)))
	f.sessions.EndSession(job.ID)

	require.Eventually(t, func() bool {
		return f.jobStatus(t, search.Slug, job.ID) == store.StatusCompleted
	}, time.Second, testPoll)

	state, err := f.store.GetQueueState(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.CurrentJobID)

	done, err := f.store.GetJob(ctx, search.Slug, job.ID)
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	assert.Empty(t, done.Error)
}

func TestSessionExitWithoutArtifactFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	search := f.addSearch(t, "desk-deals")

	job, err := f.manager.RequestRun(ctx, search)
	require.NoError(t, err)

	f.sessions.EndSession(job.ID)

	require.Eventually(t, func() bool {
		return f.jobStatus(t, search.Slug, job.ID) == store.StatusFailed
	}, time.Second, testPoll)

	failed, err := f.store.GetJob(ctx, search.Slug, job.ID)
	require.NoError(t, err)
	assert.Equal(t, ErrNoOutput, failed.Error)
}

func TestSecondRequestQueues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	search := f.addSearch(t, "desk-deals")

	first, err := f.manager.RequestRun(ctx, search)
	require.NoError(t, err)
	second, err := f.manager.RequestRun(ctx, search)
	require.NoError(t, err)

	assert.Equal(t, store.StatusRunning, first.Status)
	assert.Equal(t, store.StatusQueued, second.Status)

	state, err := f.store.GetQueueState(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, state.CurrentJobID)
	assert.Equal(t, []string{second.ID}, state.Queue)

	// Finishing the first promotes the second automatically
	require.NoError(t, f.dir.Write(search.Slug, first.ID, strings.Repeat("x", 500)))
	f.sessions.EndSession(first.ID)

	require.Eventually(t, func() bool {
		return f.jobStatus(t, search.Slug, second.ID) == store.StatusRunning
	}, time.Second, testPoll)

	state, err = f.store.GetQueueState(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, state.CurrentJobID)
	assert.Empty(t, state.Queue)
}

func TestFIFOFairness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	search := f.addSearch(t, "desk-deals")

	c, err := f.manager.RequestRun(ctx, search)
	require.NoError(t, err)
	a, err := f.manager.RequestRun(ctx, search)
	require.NoError(t, err)
	b, err := f.manager.RequestRun(ctx, search)
	require.NoError(t, err)

	finish := func(id string) {
		require.NoError(t, f.dir.Write(search.Slug, id, strings.Repeat("x", 500)))
		f.sessions.EndSession(id)
	}

	finish(c.ID)
	require.Eventually(t, func() bool {
		return f.jobStatus(t, search.Slug, a.ID) == store.StatusRunning
	}, time.Second, testPoll)
	assert.Equal(t, store.StatusQueued, f.jobStatus(t, search.Slug, b.ID))

	finish(a.ID)
	require.Eventually(t, func() bool {
		return f.jobStatus(t, search.Slug, b.ID) == store.StatusRunning
	}, time.Second, testPoll)

	assert.Equal(t, []string{c.ID, a.ID, b.ID}, f.sessions.Launches())
}

func TestSingleRunnerInvariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	search := f.addSearch(t, "desk-deals")

	var jobs []store.Job
	for i := 0; i < 5; i++ {
		job, err := f.manager.RequestRun(ctx, search)
		require.NoError(t, err)
		jobs = append(jobs, job)

		running, err := f.store.ListJobsByStatus(ctx, store.StatusRunning)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(running), 1)
	}

	for range jobs {
		running, err := f.store.ListJobsByStatus(ctx, store.StatusRunning)
		require.NoError(t, err)
		require.Len(t, running, 1)

		require.NoError(t, f.dir.Write(search.Slug, running[0].ID, strings.Repeat("x", 500)))
		f.sessions.EndSession(running[0].ID)

		current := running[0]
		require.Eventually(t, func() bool {
			return f.jobStatus(t, search.Slug, current.ID) == store.StatusCompleted
		}, time.Second, testPoll)

		running, err = f.store.ListJobsByStatus(ctx, store.StatusRunning)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(running), 1)
	}
}

func TestCancelRunningJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	search := f.addSearch(t, "desk-deals")

	first, err := f.manager.RequestRun(ctx, search)
	require.NoError(t, err)
	second, err := f.manager.RequestRun(ctx, search)
	require.NoError(t, err)

	outcome, err := f.manager.Cancel(ctx, search.Slug, first.ID)
	require.NoError(t, err)
	assert.Equal(t, Cancelled, outcome)

	cancelled, err := f.store.GetJob(ctx, search.Slug, first.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, cancelled.Status)
	assert.Equal(t, ErrCancelled, cancelled.Error)
	assert.False(t, f.sessions.Alive(ctx, *cancelled))

	// The queued job takes the slot
	assert.Equal(t, store.StatusRunning, f.jobStatus(t, search.Slug, second.ID))
	state, err := f.store.GetQueueState(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, state.CurrentJobID)
}

func TestCancelQueuedJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	search := f.addSearch(t, "desk-deals")

	first, err := f.manager.RequestRun(ctx, search)
	require.NoError(t, err)
	second, err := f.manager.RequestRun(ctx, search)
	require.NoError(t, err)

	outcome, err := f.manager.Cancel(ctx, search.Slug, second.ID)
	require.NoError(t, err)
	assert.Equal(t, Cancelled, outcome)

	assert.Equal(t, store.StatusFailed, f.jobStatus(t, search.Slug, second.ID))
	// No session ever existed for it
	assert.Equal(t, []string{first.ID}, f.sessions.Launches())

	state, err := f.store.GetQueueState(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.Queue)
	assert.Equal(t, first.ID, state.CurrentJobID)
}

func TestCancelTerminalJobIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	search := f.addSearch(t, "desk-deals")

	job, err := f.manager.RequestRun(ctx, search)
	require.NoError(t, err)
	f.sessions.EndSession(job.ID)

	require.Eventually(t, func() bool {
		return f.jobStatus(t, search.Slug, job.ID) == store.StatusFailed
	}, time.Second, testPoll)

	outcome, err := f.manager.Cancel(ctx, search.Slug, job.ID)
	require.NoError(t, err)
	assert.Equal(t, NothingToCancel, outcome)

	// The terminal record is untouched
	after, err := f.store.GetJob(ctx, search.Slug, job.ID)
	require.NoError(t, err)
	assert.Equal(t, ErrNoOutput, after.Error)
}

func TestCancelUnknownJob(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.Cancel(context.Background(), "desk-deals", "nope")
	assert.Error(t, err)
}

func TestLaunchFailureFailsJobAndAdvances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	search := f.addSearch(t, "desk-deals")
	f.sessions.LaunchErr = errors.New("tmux: no server running")

	job, err := f.manager.RequestRun(ctx, search)
	var lerr *LaunchError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, job.ID, lerr.JobID)
	assert.Equal(t, store.StatusFailed, job.Status)
	assert.Contains(t, job.Error, "no server running")

	state, err := f.store.GetQueueState(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.CurrentJobID)

	// A later request succeeds once launching works again
	f.sessions.LaunchErr = nil
	next, err := f.manager.RequestRun(ctx, search)
	require.NoError(t, err)
	assert.Equal(t, store.StatusRunning, next.Status)
}

func TestDropSearchPurgesQueueAndSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doomed := f.addSearch(t, "doomed")
	other := f.addSearch(t, "other")

	running, err := f.manager.RequestRun(ctx, doomed)
	require.NoError(t, err)
	queuedDoomed, err := f.manager.RequestRun(ctx, doomed)
	require.NoError(t, err)
	queuedOther, err := f.manager.RequestRun(ctx, other)
	require.NoError(t, err)

	require.NoError(t, f.manager.DropSearch(ctx, "doomed"))

	// The other search's queued job got the freed slot
	assert.Equal(t, store.StatusRunning, f.jobStatus(t, other.Slug, queuedOther.ID))
	assert.False(t, f.sessions.Alive(ctx, running))

	state, err := f.store.GetQueueState(ctx)
	require.NoError(t, err)
	assert.Equal(t, queuedOther.ID, state.CurrentJobID)
	assert.NotContains(t, state.Queue, queuedDoomed.ID)
}

func TestForwardOnlyTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	search := f.addSearch(t, "desk-deals")

	job, err := f.manager.RequestRun(ctx, search)
	require.NoError(t, err)

	// Cancel resolves the job first; the watcher noticing the dead
	// session afterwards must not rewrite the terminal record.
	outcome, err := f.manager.Cancel(ctx, search.Slug, job.ID)
	require.NoError(t, err)
	require.Equal(t, Cancelled, outcome)

	time.Sleep(20 * testPoll)

	after, err := f.store.GetJob(ctx, search.Slug, job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, after.Status)
	assert.Equal(t, ErrCancelled, after.Error)
}
