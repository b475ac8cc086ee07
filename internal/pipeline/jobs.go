package pipeline

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/pdfloc/internal/job"
)

// JobStatus represents the state of an annotation job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusConverting JobStatus = "converting"
	StatusCompleted  JobStatus = "completed"
	StatusPartial    JobStatus = "partial"
	StatusFailed     JobStatus = "failed"
)

// Job tracks one asynchronous annotation of an uploaded document.
type Job struct {
	mu sync.Mutex

	ID       string    `json:"job_id"`
	Filename string    `json:"filename"`
	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	requests []job.Job
	full     bool
	output   []byte
	errors   []string
}

// Progress counts the conversion requests of a job.
type Progress struct {
	Requests    int      `json:"requests"`
	Converted   int      `json:"converted"`
	Annotations int      `json:"annotations"`
	Errors      []string `json:"errors"`
}

// NewJob returns a queued job for the document in data. With full set the
// result is the whole annotated file instead of only the appended update.
func NewJob(filename string, data []byte, requests []job.Job, full bool) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Filename:  filename,
		Status:    StatusQueued,
		Phase:     "queued",
		Progress:  Progress{Requests: len(requests)},
		CreatedAt: now,
		UpdatedAt: now,
		fileData:  data,
		requests:  requests,
		full:      full,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(j *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = j
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, j := range s.jobs {
		j.mu.Lock()
		expired := now.Sub(j.UpdatedAt) > s.ttl
		j.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// Finish stores the output and the counts of a processed job. The input
// document is released.
func (j *Job) Finish(output []byte, converted, annotations int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.output = output
	j.fileData = nil
	j.Progress.Converted = converted
	j.Progress.Annotations = annotations
	j.UpdatedAt = time.Now()
}

// Output returns the annotated bytes and whether they are ready.
func (j *Job) Output() ([]byte, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	done := j.Status == StatusCompleted || j.Status == StatusPartial
	return j.output, done && j.output != nil
}

// Full reports whether the output is the whole annotated file.
func (j *Job) Full() bool {
	return j.full
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID       string    `json:"job_id"`
	Filename string    `json:"filename"`
	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Progress Progress  `json:"progress"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	return JobSnapshot{
		ID:       j.ID,
		Filename: j.Filename,
		Status:   j.Status,
		Phase:    j.Phase,
		Progress: Progress{
			Requests:    j.Progress.Requests,
			Converted:   j.Progress.Converted,
			Annotations: j.Progress.Annotations,
			Errors:      slices.Clone(errs),
		},
	}
}
