package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-memory Store implementation. It backs tests and the
// --storage memory mode; records do not survive a restart.
type Memory struct {
	mu       sync.RWMutex
	searches map[string]Search
	jobs     map[string]map[string]Job // searchSlug -> jobID -> Job
	state    QueueState
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		searches: make(map[string]Search),
		jobs:     make(map[string]map[string]Job),
	}
}

// PutSearch inserts or replaces a search record
func (m *Memory) PutSearch(_ context.Context, search Search) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches[search.Slug] = search
	return nil
}

// GetSearch retrieves a search by slug
func (m *Memory) GetSearch(_ context.Context, slug string) (*Search, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	search, ok := m.searches[slug]
	if !ok {
		return nil, nil
	}
	return &search, nil
}

// ListSearches returns all searches, newest first
func (m *Memory) ListSearches(_ context.Context) ([]Search, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	searches := make([]Search, 0, len(m.searches))
	for _, s := range m.searches {
		searches = append(searches, s)
	}
	sort.Slice(searches, func(i, j int) bool {
		if !searches[i].CreatedAt.Equal(searches[j].CreatedAt) {
			return searches[i].CreatedAt.After(searches[j].CreatedAt)
		}
		return searches[i].Slug < searches[j].Slug
	})
	return searches, nil
}

// DeleteSearch removes a search and all of its jobs
func (m *Memory) DeleteSearch(_ context.Context, slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.searches, slug)
	delete(m.jobs, slug)
	return nil
}

// PutJob inserts or replaces a job record
func (m *Memory) PutJob(_ context.Context, job Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID, ok := m.jobs[job.SearchSlug]
	if !ok {
		byID = make(map[string]Job)
		m.jobs[job.SearchSlug] = byID
	}
	byID[job.ID] = job
	return nil
}

// GetJob retrieves a job by search slug and job ID
func (m *Memory) GetJob(_ context.Context, slug, id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[slug][id]
	if !ok {
		return nil, nil
	}
	return &job, nil
}

// FindJob retrieves a job by ID alone
func (m *Memory) FindJob(_ context.Context, id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, byID := range m.jobs {
		if job, ok := byID[id]; ok {
			return &job, nil
		}
	}
	return nil, nil
}

// ListJobs returns a search's jobs, newest first
func (m *Memory) ListJobs(_ context.Context, slug string) ([]Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]Job, 0, len(m.jobs[slug]))
	for _, j := range m.jobs[slug] {
		jobs = append(jobs, j)
	}
	sortJobs(jobs)
	return jobs, nil
}

// ListJobsByStatus returns all jobs with the given status across searches
func (m *Memory) ListJobsByStatus(_ context.Context, status JobStatus) ([]Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var jobs []Job
	for _, byID := range m.jobs {
		for _, j := range byID {
			if j.Status == status {
				jobs = append(jobs, j)
			}
		}
	}
	sortJobs(jobs)
	return jobs, nil
}

// LastCompletedJob returns the most recently completed job of a search
func (m *Memory) LastCompletedJob(_ context.Context, slug string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var last *Job
	for _, j := range m.jobs[slug] {
		if j.Status != StatusCompleted || j.CompletedAt == nil {
			continue
		}
		if last == nil || j.CompletedAt.After(*last.CompletedAt) {
			job := j
			last = &job
		}
	}
	return last, nil
}

// GetQueueState returns the singleton queue state record
func (m *Memory) GetQueueState(_ context.Context) (QueueState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state := m.state
	state.Queue = append([]string(nil), m.state.Queue...)
	return state, nil
}

// PutQueueState replaces the singleton queue state record
func (m *Memory) PutQueueState(_ context.Context, state QueueState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state.Queue = append([]string(nil), state.Queue...)
	m.state = state
	return nil
}

func sortJobs(jobs []Job) {
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
		}
		return jobs[i].ID > jobs[j].ID
	})
}
