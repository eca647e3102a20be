package export

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Format selects the output file type for an export job.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// JobStatus tracks an export job through its lifecycle.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job is one report export request and its progress.
type Job struct {
	ID           uuid.UUID `json:"id"`
	ReportID     string    `json:"reportId"`
	ReportName   string    `json:"reportName"`
	Format       Format    `json:"format"`
	Status       JobStatus `json:"status"`
	RowsExported int       `json:"rowsExported"`
	BytesWritten int64     `json:"bytesWritten"`
	FilePath     string    `json:"-"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	CompletedAt  time.Time `json:"completedAt,omitzero"`
}

// registry is the in-memory job store. Export jobs do not survive a process
// restart; completed files on disk are orphaned and re-requested.
type registry struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]Job
}

func newRegistry() *registry {
	return &registry{jobs: make(map[uuid.UUID]Job)}
}

func (r *registry) put(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
}

func (r *registry) get(id uuid.UUID) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	return job, ok
}

// update applies fn to the stored job under the registry lock and returns
// the updated copy.
func (r *registry) update(id uuid.UUID, fn func(*Job)) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	fn(&job)
	r.jobs[id] = job
	return job, true
}

// list returns jobs newest first, optionally filtered by status.
func (r *registry) list(statuses []JobStatus, limit int) []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[JobStatus]struct{}, len(statuses))
	for _, s := range statuses {
		wanted[s] = struct{}{}
	}

	jobs := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		if len(wanted) > 0 {
			if _, ok := wanted[job.Status]; !ok {
				continue
			}
		}
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs
}
