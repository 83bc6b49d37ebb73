package lead

import (
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of one scraping run.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Job is one scraping run. It is owned exclusively by the runner while the
// run is in flight; external callers only read it.
//
// Transitions are monotonic: once terminal, a job never moves back to
// pending or running.
type Job struct {
	ID         string         `json:"id"`
	SourceType string         `json:"source_type"`
	TargetURL  string         `json:"target_url"`
	Status     JobStatus      `json:"status"`
	Progress   int            `json:"progress"` // 0-100
	Found      int            `json:"leads_found"`
	Qualified  int            `json:"leads_qualified"`
	Logs       []string       `json:"logs,omitempty"`
	Errors     []string       `json:"errors,omitempty"`
	Config     map[string]any `json:"config,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewJob creates a pending job for the given source and target.
func NewJob(id, sourceType, targetURL string, config map[string]any) *Job {
	return &Job{
		ID:         id,
		SourceType: sourceType,
		TargetURL:  targetURL,
		Status:     JobPending,
		Config:     config,
		CreatedAt:  time.Now().UTC(),
	}
}

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool {
	switch j.Status {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// Start moves a pending job to running and records the start time.
// A no-op on any other state.
func (j *Job) Start() {
	if j.Status != JobPending {
		return
	}
	now := time.Now().UTC()
	j.Status = JobRunning
	j.StartedAt = &now
}

// Complete moves a running job to completed with final counts. Progress is
// forced to 100 so completed is the only state that reports full progress.
func (j *Job) Complete(found, qualified int) {
	if j.Terminal() {
		return
	}
	now := time.Now().UTC()
	j.Status = JobCompleted
	j.CompletedAt = &now
	j.Found = found
	j.Qualified = qualified
	j.Progress = 100
}

// Fail moves the job to failed and records the error.
func (j *Job) Fail(errMsg string) {
	if j.Terminal() {
		return
	}
	now := time.Now().UTC()
	j.Status = JobFailed
	j.CompletedAt = &now
	j.Errors = append(j.Errors, errMsg)
}

// Cancel moves the job to cancelled. Used when the run's context is
// cancelled from outside; never triggered by the run itself.
func (j *Job) Cancel(reason string) {
	if j.Terminal() {
		return
	}
	now := time.Now().UTC()
	j.Status = JobCancelled
	j.CompletedAt = &now
	if reason != "" {
		j.AddLog("cancelled: " + reason)
	}
}

// SetProgress clamps p to [0,100]. Progress never decreases within a run.
func (j *Job) SetProgress(p int) {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	if p > j.Progress {
		j.Progress = p
	}
}

// AddLog appends a timestamp-prefixed log line.
func (j *Job) AddLog(msg string) {
	j.Logs = append(j.Logs, fmt.Sprintf("[%s] %s", time.Now().UTC().Format("15:04:05"), msg))
}

// Duration returns the wall time of a finished run, or zero if the job has
// not both started and finished.
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}
