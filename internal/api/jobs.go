package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nyashahama/kpi-copilot-backend/internal/jobs"
)

// ─── POST /v1/agent/query-async ──────────────────────────────────────────────

// handleAgentQueryAsync accepts a question for background resolution and
// returns immediately with a pollable job ID. If the worker queue is full the
// job record is failed on the spot so the client still gets a consistent
// terminal state when polling.
func (s *Server) handleAgentQueryAsync(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decode(w, r, &req) {
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		respondErr(w, http.StatusBadRequest, "question is required")
		return
	}

	job := s.jobs.Create(jobs.Payload{
		Type:  "agent_query",
		Input: jobs.Input{Question: question},
	})

	if err := s.enqueuer.Submit(r.Context(), job.JobID, question); err != nil {
		s.logger.Warn("async submit rejected", "job_id", job.JobID, "error", err, logField(r))
		s.jobs.MarkFailed(job.JobID, "worker queue is full, try again shortly")
	}

	respond(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"job_id": job.JobID,
		"poll":   "/v1/jobs/" + job.JobID,
	})
}

// ─── GET /v1/jobs/{jobID} ────────────────────────────────────────────────────

// handleGetJob returns the full job record, including the orchestration
// result once the job has succeeded.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, ok := s.jobs.Get(jobID)
	if !ok {
		respondErrCode(w, http.StatusNotFound, "NOT_FOUND", "Job not found")
		return
	}
	respond(w, http.StatusOK, job)
}

// ─── GET /v1/jobs ────────────────────────────────────────────────────────────

// handleListJobs returns recent jobs, newest first.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	respond(w, http.StatusOK, map[string]any{"data": s.jobs.List(limit)})
}
