package server

import (
	"encoding/json"
	"net/http"

	"github.com/jonathan/search-runner/internal/runner"
)

// CancelResponse represents the response for a cancel request
type CancelResponse struct {
	Result string `json:"result"`
}

// ArtifactResponse represents the response for an artifact request
type ArtifactResponse struct {
	SearchSlug string `json:"search_slug"`
	JobID      string `json:"job_id"`
	Content    string `json:"content"`
}

// AttachResponse represents the response for an attach-command request
type AttachResponse struct {
	JobID   string `json:"job_id"`
	Command string `json:"command"`
}

// TitleRequest represents the request body for setting a job title
type TitleRequest struct {
	Title string `json:"title"`
}

// handleCreateSearch creates a new search
func (s *Server) handleCreateSearch(w http.ResponseWriter, r *http.Request) {
	var in runner.CreateSearchInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	search, err := s.svc.CreateSearch(r.Context(), in)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, search)
}

// handleListSearches lists all searches
func (s *Server) handleListSearches(w http.ResponseWriter, r *http.Request) {
	searches, err := s.svc.ListSearches(r.Context())
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, searches)
}

// handleGetSearch retrieves one search
func (s *Server) handleGetSearch(w http.ResponseWriter, r *http.Request) {
	search, err := s.svc.GetSearch(r.Context(), r.PathValue("slug"))
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, search)
}

// handleUpdateSearch mutates a search's payload and/or schedule
func (s *Server) handleUpdateSearch(w http.ResponseWriter, r *http.Request) {
	var in runner.UpdateSearchInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	search, err := s.svc.UpdateSearch(r.Context(), r.PathValue("slug"), in)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, search)
}

// handleDeleteSearch removes a search with its jobs and artifacts
func (s *Server) handleDeleteSearch(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteSearch(r.Context(), r.PathValue("slug")); err != nil {
		s.serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRunNow requests an immediate run
func (s *Server) handleRunNow(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.RunNow(r.Context(), r.PathValue("slug"))
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusAccepted, job)
}

// handleListJobs lists a search's jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.svc.ListJobs(r.Context(), r.PathValue("slug"))
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, jobs)
}

// handleGetJob retrieves one job
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.GetJob(r.Context(), r.PathValue("slug"), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

// handleSetJobTitle assigns a label to a job
func (s *Server) handleSetJobTitle(w http.ResponseWriter, r *http.Request) {
	var req TitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	job, err := s.svc.SetJobTitle(r.Context(), r.PathValue("slug"), r.PathValue("id"), req.Title)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

// handleCancel stops a running or queued job
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.svc.Cancel(r.Context(), r.PathValue("slug"), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, CancelResponse{Result: string(outcome)})
}

// handleArtifact returns a job's artifact text
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	slug, id := r.PathValue("slug"), r.PathValue("id")
	content, exists, err := s.svc.GetArtifact(r.Context(), slug, id)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	if !exists {
		s.errorResponse(w, http.StatusNotFound, "Artifact not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, ArtifactResponse{SearchSlug: slug, JobID: id, Content: content})
}

// handleAttach returns the command to re-attach to a job's session
func (s *Server) handleAttach(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	command, err := s.svc.AttachCommand(r.Context(), id)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, AttachResponse{JobID: id, Command: command})
}

// handleReconcile runs the repair pass on demand
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.Reconcile(r.Context())
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, report)
}
