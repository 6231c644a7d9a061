// Package jobs tracks asynchronous orchestration runs. The Store is a
// volatile in-memory registry with process lifetime only — no persistence,
// no eviction; acceptable for the intended low-QPS workload. It is an
// explicitly constructed, injectable object so tests can run isolated stores
// side by side.
package jobs

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nyashahama/kpi-copilot-backend/internal/agent"
)

// Status is the job lifecycle state. Transitions are strictly
// PENDING → RUNNING → {SUCCEEDED | FAILED}; nothing moves after a terminal
// state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Input is the submitted request.
type Input struct {
	Question string `json:"question"`
}

// Payload describes what the job was asked to do.
type Payload struct {
	Type  string `json:"type"`
	Input Input  `json:"input"`
}

// Job is one tracked orchestration run. The Store owns the record for its
// entire lifetime; callers hold only the JobID and receive copies.
type Job struct {
	JobID     string        `json:"job_id"`
	Status    Status        `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Payload   Payload       `json:"payload"`
	Result    *agent.Result `json:"result"`
	Error     string        `json:"error,omitempty"`
}

// Store is the concurrency-safe registry. A single mutex guards the whole
// map; it is held only for the duration of a map read/write, never across
// I/O or an LLM call.
type Store struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

// NewStore returns an empty registry.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job)}
}

// newJobID returns an opaque 32-char hex token. Collision probability over a
// process lifetime is negligible.
func newJobID() string {
	return fmt.Sprintf("%x", [16]byte(uuid.New()))
}

// Create inserts a PENDING record and returns a copy.
func (s *Store) Create(p Payload) Job {
	now := time.Now()
	job := &Job{
		JobID:     newJobID(),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Payload:   p,
	}

	s.mu.Lock()
	s.jobs[job.JobID] = job
	s.mu.Unlock()

	return *job
}

// MarkRunning transitions a job to RUNNING. Unknown IDs and jobs already in
// a terminal state are ignored — mutators never raise.
func (s *Store) MarkRunning(id string) {
	s.update(id, func(j *Job) {
		j.Status = StatusRunning
	})
}

// MarkSucceeded records the success payload and terminates the job.
func (s *Store) MarkSucceeded(id string, result agent.Result) {
	s.update(id, func(j *Job) {
		j.Status = StatusSucceeded
		j.Result = &result
		j.Error = ""
	})
}

// MarkFailed records a human-readable failure message and terminates the job.
func (s *Store) MarkFailed(id string, errMsg string) {
	s.update(id, func(j *Job) {
		j.Status = StatusFailed
		j.Result = nil
		j.Error = errMsg
	})
}

func (s *Store) update(id string, fn func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status.Terminal() {
		return
	}
	fn(job)
	job.UpdatedAt = time.Now()
}

// Get returns a snapshot of the job, or false if the ID is unknown.
func (s *Store) Get(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// List returns snapshots of recent jobs, newest-first by creation time.
// limit is clamped to [1, 200].
func (s *Store) List(limit int) []Job {
	if limit < 1 {
		limit = 1
	}
	if limit > 200 {
		limit = 200
	}

	s.mu.Lock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	s.mu.Unlock()

	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.After(out[b].CreatedAt)
		}
		return out[a].JobID < out[b].JobID
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
