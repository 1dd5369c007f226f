package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatusTransitions(t *testing.T) {
	assert.True(t, StatusQueued.CanTransition(StatusRunning))
	assert.True(t, StatusQueued.CanTransition(StatusFailed))
	assert.True(t, StatusRunning.CanTransition(StatusCompleted))
	assert.True(t, StatusRunning.CanTransition(StatusFailed))

	// Terminal states never move again
	assert.False(t, StatusCompleted.CanTransition(StatusRunning))
	assert.False(t, StatusCompleted.CanTransition(StatusQueued))
	assert.False(t, StatusFailed.CanTransition(StatusRunning))
	assert.False(t, StatusFailed.CanTransition(StatusCompleted))

	// No skipping queued -> completed
	assert.False(t, StatusQueued.CanTransition(StatusCompleted))
}

func TestMemorySearchCRUD(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	search := Search{
		Slug:      "desk-deals",
		Name:      "Desk Deals",
		Payload:   "find standing desk deals",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, m.PutSearch(ctx, search))

	got, err := m.GetSearch(ctx, "desk-deals")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Desk Deals", got.Name)

	missing, err := m.GetSearch(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryListSearchesNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Now().UTC()

	for i, slug := range []string{"old", "mid", "new"} {
		require.NoError(t, m.PutSearch(ctx, Search{
			Slug:      slug,
			Name:      slug,
			Payload:   "p",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	searches, err := m.ListSearches(ctx)
	require.NoError(t, err)
	require.Len(t, searches, 3)
	assert.Equal(t, "new", searches[0].Slug)
	assert.Equal(t, "old", searches[2].Slug)
}

func TestMemoryDeleteSearchCascades(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.PutSearch(ctx, Search{Slug: "s", Name: "s", Payload: "p"}))
	require.NoError(t, m.PutJob(ctx, Job{ID: "j1", SearchSlug: "s", Status: StatusCompleted}))
	require.NoError(t, m.PutJob(ctx, Job{ID: "j2", SearchSlug: "s", Status: StatusFailed}))

	require.NoError(t, m.DeleteSearch(ctx, "s"))

	jobs, err := m.ListJobs(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, jobs)

	job, err := m.FindJob(ctx, "j1")
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestMemoryListJobsNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Now().UTC()

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, m.PutJob(ctx, Job{
			ID:         id,
			SearchSlug: "s",
			Status:     StatusQueued,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}))
	}

	jobs, err := m.ListJobs(ctx, "s")
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "c", jobs[0].ID)
	assert.Equal(t, "a", jobs[2].ID)
}

func TestMemoryListJobsByStatus(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.PutJob(ctx, Job{ID: "r1", SearchSlug: "a", Status: StatusRunning}))
	require.NoError(t, m.PutJob(ctx, Job{ID: "r2", SearchSlug: "b", Status: StatusRunning}))
	require.NoError(t, m.PutJob(ctx, Job{ID: "q1", SearchSlug: "a", Status: StatusQueued}))

	running, err := m.ListJobsByStatus(ctx, StatusRunning)
	require.NoError(t, err)
	assert.Len(t, running, 2)
}

func TestMemoryLastCompletedJob(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Now().UTC()

	early := base.Add(-2 * time.Hour)
	late := base.Add(-1 * time.Hour)
	require.NoError(t, m.PutJob(ctx, Job{ID: "j1", SearchSlug: "s", Status: StatusCompleted, CompletedAt: &early}))
	require.NoError(t, m.PutJob(ctx, Job{ID: "j2", SearchSlug: "s", Status: StatusCompleted, CompletedAt: &late}))
	require.NoError(t, m.PutJob(ctx, Job{ID: "j3", SearchSlug: "s", Status: StatusFailed, CompletedAt: &base}))

	last, err := m.LastCompletedJob(ctx, "s")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "j2", last.ID)

	none, err := m.LastCompletedJob(ctx, "other")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestMemoryQueueStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	state, err := m.GetQueueState(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.CurrentJobID)
	assert.Empty(t, state.Queue)

	state.CurrentJobID = "j1"
	state.Queue = []string{"j2", "j3"}
	require.NoError(t, m.PutQueueState(ctx, state))

	// Mutating the caller's slice must not leak into the store
	state.Queue[0] = "mutated"

	got, err := m.GetQueueState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "j1", got.CurrentJobID)
	assert.Equal(t, []string{"j2", "j3"}, got.Queue)
}
