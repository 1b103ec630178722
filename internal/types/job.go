package types

import (
	"fmt"
	"time"
)

// JobType categorises a WorkflowJob.
type JobType string

const (
	JobTypeGenerate  JobType = "generate"
	JobTypePost      JobType = "post"
	JobTypeAnalytics JobType = "analytics"
)

// JobStatus is the state of a WorkflowJob.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Valid reports whether t is a known job type.
func (t JobType) Valid() bool {
	switch t {
	case JobTypeGenerate, JobTypePost, JobTypeAnalytics:
		return true
	}
	return false
}

// Valid reports whether s is a known job status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusRunning, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the job has finished.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// WorkflowJob is the bookkeeping record for one orchestration run.
type WorkflowJob struct {
	ID          string     `json:"id"`
	Type        JobType    `json:"type"`
	Status      JobStatus  `json:"status"`
	NicheID     string     `json:"niche_id"`
	VideoID     string     `json:"video_id,omitempty"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	RetryOf     string     `json:"retry_of,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewJob returns a queued job. The ID is assigned by the store.
func NewJob(jobType JobType, nicheID string) *WorkflowJob {
	return &WorkflowJob{
		Type:    jobType,
		Status:  JobStatusQueued,
		NicheID: nicheID,
	}
}

// Start moves a queued job to running and stamps StartedAt.
func (j *WorkflowJob) Start(now time.Time) error {
	if j.Status != JobStatusQueued {
		return &TransitionError{JobID: j.ID, From: j.Status, To: JobStatusRunning}
	}
	j.Status = JobStatusRunning
	j.StartedAt = &now
	return nil
}

// Complete moves a running job to completed and stamps CompletedAt.
func (j *WorkflowJob) Complete(now time.Time) error {
	return j.finish(JobStatusCompleted, "", now)
}

// Fail moves a running job to failed, records the reason and stamps CompletedAt.
func (j *WorkflowJob) Fail(reason string, now time.Time) error {
	return j.finish(JobStatusFailed, reason, now)
}

func (j *WorkflowJob) finish(to JobStatus, reason string, now time.Time) error {
	if j.Status != JobStatusRunning {
		return &TransitionError{JobID: j.ID, From: j.Status, To: to}
	}
	j.Status = to
	j.Error = reason
	j.CompletedAt = &now
	return nil
}

// TransitionError is returned for an invalid job state change.
type TransitionError struct {
	JobID string
	From  JobStatus
	To    JobStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("job %s: invalid status transition %s -> %s", e.JobID, e.From, e.To)
}

// JobFilters holds optional filters for listing jobs.
type JobFilters struct {
	NicheID string
	Type    JobType
	Status  JobStatus
	Limit   int
}
