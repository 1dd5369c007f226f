// Package runner exposes the operation contract the CLI and HTTP API
// call into: search CRUD, run/cancel, job listing, artifact access, and
// reconciliation. It composes the record store, artifact store, session
// supervisor, queue manager, and reconciler.
package runner

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/search-runner/internal/artifacts"
	"github.com/jonathan/search-runner/internal/queue"
	"github.com/jonathan/search-runner/internal/reconcile"
	"github.com/jonathan/search-runner/internal/schedule"
	"github.com/jonathan/search-runner/internal/session"
	"github.com/jonathan/search-runner/internal/store"
)

// Service implements the operation contract.
type Service struct {
	store      store.Store
	artifacts  *artifacts.Dir
	sessions   session.Supervisor
	queue      *queue.Manager
	reconciler *reconcile.Reconciler
	validate   *validator.Validate
}

// New creates a service over the given collaborators
func New(st store.Store, art *artifacts.Dir, sessions session.Supervisor, qm *queue.Manager, rec *reconcile.Reconciler) *Service {
	return &Service{
		store:      st,
		artifacts:  art,
		sessions:   sessions,
		queue:      qm,
		reconciler: rec,
		validate:   validator.New(),
	}
}

// CreateSearchInput holds the fields for creating a search
type CreateSearchInput struct {
	Name     string `json:"name" validate:"required,min=1,max=120"`
	Payload  string `json:"payload" validate:"required"`
	Schedule string `json:"schedule,omitempty"`
}

// UpdateSearchInput holds the mutable fields of a search. Nil means
// leave unchanged; an empty schedule string clears the schedule.
type UpdateSearchInput struct {
	Payload  *string `json:"payload,omitempty"`
	Schedule *string `json:"schedule,omitempty"`
}

// CreateSearch validates the input, derives a slug, and stores a new
// search. Creating a search whose slug is already taken is rejected.
func (s *Service) CreateSearch(ctx context.Context, in CreateSearchInput) (*store.Search, error) {
	if err := s.checkInput(in); err != nil {
		return nil, err
	}
	if in.Schedule != "" {
		if _, err := schedule.Parse(in.Schedule); err != nil {
			return nil, &ErrValidation{Field: "schedule", Message: err.Error()}
		}
	}

	slug := Slugify(in.Name)
	if slug == "" {
		return nil, &ErrValidation{Field: "name", Message: "name must contain at least one letter or digit"}
	}
	existing, err := s.store.GetSearch(ctx, slug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &ErrSearchExists{Slug: slug}
	}

	now := time.Now().UTC()
	search := store.Search{
		Slug:      slug,
		Name:      in.Name,
		Payload:   in.Payload,
		Schedule:  in.Schedule,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.PutSearch(ctx, search); err != nil {
		return nil, err
	}
	log.Printf("search %s created", slug)
	return &search, nil
}

// UpdateSearch mutates a search's payload and/or schedule
func (s *Service) UpdateSearch(ctx context.Context, slug string, in UpdateSearchInput) (*store.Search, error) {
	search, err := s.store.GetSearch(ctx, slug)
	if err != nil {
		return nil, err
	}
	if search == nil {
		return nil, &ErrSearchNotFound{Slug: slug}
	}

	if in.Payload != nil {
		if *in.Payload == "" {
			return nil, &ErrValidation{Field: "payload", Message: "payload must not be empty"}
		}
		search.Payload = *in.Payload
	}
	if in.Schedule != nil {
		if *in.Schedule != "" {
			if _, err := schedule.Parse(*in.Schedule); err != nil {
				return nil, &ErrValidation{Field: "schedule", Message: err.Error()}
			}
		}
		search.Schedule = *in.Schedule
	}

	search.UpdatedAt = time.Now().UTC()
	if err := s.store.PutSearch(ctx, *search); err != nil {
		return nil, err
	}
	return search, nil
}

// GetSearch retrieves a search by slug
func (s *Service) GetSearch(ctx context.Context, slug string) (*store.Search, error) {
	search, err := s.store.GetSearch(ctx, slug)
	if err != nil {
		return nil, err
	}
	if search == nil {
		return nil, &ErrSearchNotFound{Slug: slug}
	}
	return search, nil
}

// ListSearches returns all searches, newest first
func (s *Service) ListSearches(ctx context.Context) ([]store.Search, error) {
	return s.store.ListSearches(ctx)
}

// DeleteSearch removes a search, its jobs, and its artifacts. Queued
// jobs of the search are purged from the queue and a running one loses
// its session, so nothing dangling survives the cascade.
func (s *Service) DeleteSearch(ctx context.Context, slug string) error {
	search, err := s.store.GetSearch(ctx, slug)
	if err != nil {
		return err
	}
	if search == nil {
		return &ErrSearchNotFound{Slug: slug}
	}

	if err := s.queue.DropSearch(ctx, slug); err != nil {
		return err
	}
	if err := s.store.DeleteSearch(ctx, slug); err != nil {
		return err
	}
	if err := s.artifacts.RemoveAll(slug); err != nil {
		return err
	}
	log.Printf("search %s deleted", slug)
	return nil
}

// RunNow requests an immediate run of a search
func (s *Service) RunNow(ctx context.Context, slug string) (*store.Job, error) {
	search, err := s.store.GetSearch(ctx, slug)
	if err != nil {
		return nil, err
	}
	if search == nil {
		return nil, &ErrSearchNotFound{Slug: slug}
	}
	job, err := s.queue.RequestRun(ctx, *search)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Cancel stops a running or queued job
func (s *Service) Cancel(ctx context.Context, slug, id string) (queue.CancelOutcome, error) {
	job, err := s.store.GetJob(ctx, slug, id)
	if err != nil {
		return queue.NothingToCancel, err
	}
	if job == nil {
		return queue.NothingToCancel, &ErrJobNotFound{ID: id}
	}
	return s.queue.Cancel(ctx, slug, id)
}

// ListJobs returns a search's jobs, newest first
func (s *Service) ListJobs(ctx context.Context, slug string) ([]store.Job, error) {
	search, err := s.store.GetSearch(ctx, slug)
	if err != nil {
		return nil, err
	}
	if search == nil {
		return nil, &ErrSearchNotFound{Slug: slug}
	}
	return s.store.ListJobs(ctx, slug)
}

// GetJob retrieves one job
func (s *Service) GetJob(ctx context.Context, slug, id string) (*store.Job, error) {
	job, err := s.store.GetJob(ctx, slug, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, &ErrJobNotFound{ID: id}
	}
	return job, nil
}

// SetJobTitle assigns a human label to a job after the fact
func (s *Service) SetJobTitle(ctx context.Context, slug, id, title string) (*store.Job, error) {
	job, err := s.store.GetJob(ctx, slug, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, &ErrJobNotFound{ID: id}
	}
	job.Title = title
	if err := s.store.PutJob(ctx, *job); err != nil {
		return nil, err
	}
	return job, nil
}

// GetArtifact returns a job's artifact text. The second return is false
// when no artifact exists.
func (s *Service) GetArtifact(ctx context.Context, slug, id string) (string, bool, error) {
	job, err := s.store.GetJob(ctx, slug, id)
	if err != nil {
		return "", false, err
	}
	if job == nil {
		return "", false, &ErrJobNotFound{ID: id}
	}
	return s.artifacts.Read(slug, id)
}

// Reconcile runs the repair pass on demand
func (s *Service) Reconcile(ctx context.Context) (reconcile.Report, error) {
	return s.reconciler.Run(ctx)
}

// AttachCommand returns the command a user runs to attach to a job's
// session
func (s *Service) AttachCommand(ctx context.Context, id string) (string, error) {
	job, err := s.store.FindJob(ctx, id)
	if err != nil {
		return "", err
	}
	if job == nil {
		return "", &ErrJobNotFound{ID: id}
	}
	return s.sessions.AttachCommand(*job), nil
}

// checkInput maps validator failures onto the typed validation error
func (s *Service) checkInput(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		first := verrs[0]
		return &ErrValidation{Field: first.Field(), Message: "failed " + first.Tag() + " validation"}
	}
	return err
}
