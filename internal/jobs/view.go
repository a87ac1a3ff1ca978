package jobs

import (
	"time"

	"github.com/sevigo/commit-digest/internal/core"
)

// JobView is the wire shape of a job for the HTTP API and the CLI.
type JobView struct {
	ID           string         `json:"id" yaml:"id"`
	Type         core.JobType   `json:"type" yaml:"type"`
	Status       core.JobStatus `json:"status" yaml:"status"`
	Priority     int            `json:"priority" yaml:"priority"`
	ProjectID    string         `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	CommitID     string         `json:"commit_id,omitempty" yaml:"commit_id,omitempty"`
	Attempts     int            `json:"attempts" yaml:"attempts"`
	MaxAttempts  int            `json:"max_attempts" yaml:"max_attempts"`
	Data         core.Payload   `json:"data,omitempty" yaml:"data,omitempty"`
	Result       map[string]any `json:"result,omitempty" yaml:"result,omitempty"`
	Error        string         `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorDetails map[string]any `json:"error_details,omitempty" yaml:"error_details,omitempty"`
	DependsOn    []string       `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	RetryAfter   *time.Time     `json:"retry_after,omitempty" yaml:"retry_after,omitempty"`
	ScheduledFor time.Time      `json:"scheduled_for" yaml:"scheduled_for"`
	StartedAt    *time.Time     `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" yaml:"updated_at"`
}

// NewJobView flattens a job and its dependency edges.
func NewJobView(job *core.Job, deps []core.JobDependency) JobView {
	v := JobView{
		ID:           job.ID,
		Type:         job.Type,
		Status:       job.Status,
		Priority:     job.Priority,
		Attempts:     job.Attempts,
		MaxAttempts:  job.MaxAttempts,
		Data:         job.Data,
		ErrorDetails: job.ErrorDetails,
		RetryAfter:   job.RetryAfter,
		ScheduledFor: job.ScheduledFor,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
		ExpiresAt:    job.ExpiresAt,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
	if job.ProjectID != nil {
		v.ProjectID = *job.ProjectID
	}
	if job.CommitID != nil {
		v.CommitID = *job.CommitID
	}
	if job.ErrorMessage != nil {
		v.Error = *job.ErrorMessage
	}
	if res, ok := job.Result(); ok {
		v.Result = res
	}
	for _, d := range deps {
		v.DependsOn = append(v.DependsOn, d.DependsOnJobID)
	}
	return v
}
