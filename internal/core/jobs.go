// Package core defines the essential interfaces and data structures that form the
// backbone of the application. These components are designed to be abstract,
// allowing for flexible and decoupled implementations of the application's logic.
package core

import (
	"errors"
	"fmt"
	"time"
)

// JobType is the dispatch key of a job. The set is closed.
type JobType string

const (
	JobTypeFetchDiff         JobType = "fetch_diff"
	JobTypeGenerateSummary   JobType = "generate_summary"
	JobTypeSendEmail         JobType = "send_email"
	JobTypeWebhookProcessing JobType = "webhook_processing"
)

// AllJobTypes lists every known job type in pipeline order.
var AllJobTypes = []JobType{
	JobTypeWebhookProcessing,
	JobTypeFetchDiff,
	JobTypeGenerateSummary,
	JobTypeSendEmail,
}

// Valid reports whether t is one of the known job types.
func (t JobType) Valid() bool {
	switch t {
	case JobTypeFetchDiff, JobTypeGenerateSummary, JobTypeSendEmail, JobTypeWebhookProcessing:
		return true
	default:
		return false
	}
}

// JobStatus is a state of the job state machine:
// pending -> running -> {completed | pending (retry) | failed}; cancelled is administrative.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// AllJobStatuses lists every job status.
var AllJobStatuses = []JobStatus{
	JobStatusPending,
	JobStatusRunning,
	JobStatusCompleted,
	JobStatusFailed,
	JobStatusCancelled,
}

// Valid reports whether s is a legal status value.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions happen under normal execution.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

const (
	MinPriority        = 0
	MaxPriority        = 100
	DefaultMaxAttempts = 3
	MinMaxAttempts     = 1
	MaxMaxAttempts     = 10

	// ResultContextKey is where a completed job's result is stored inside Context.
	ResultContextKey = "result"
)

// ErrInvalidJob is returned for malformed job input. Such jobs are never dispatched.
var ErrInvalidJob = errors.New("invalid job")

// Job is a unit of deferred work.
type Job struct {
	ID           string
	Type         JobType
	Status       JobStatus
	Priority     int
	Data         Payload
	Context      map[string]any
	CommitID     *string
	ProjectID    *string
	Attempts     int
	MaxAttempts  int
	RetryAfter   *time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage *string
	ErrorDetails map[string]any
	ScheduledFor time.Time
	ExpiresAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Result returns the stored result of a completed job, if any.
func (j *Job) Result() (map[string]any, bool) {
	if j == nil || j.Context == nil {
		return nil, false
	}
	res, ok := j.Context[ResultContextKey].(map[string]any)
	return res, ok
}

// RemainingAttempts is the number of executions left before the job fails permanently.
func (j *Job) RemainingAttempts() int {
	if n := j.MaxAttempts - j.Attempts; n > 0 {
		return n
	}
	return 0
}

// ReadyJob is the partial row returned by ready-job selection.
type ReadyJob struct {
	ID           string
	Type         JobType
	Priority     int
	ScheduledFor time.Time
}

// NewJob is the input for creating a job. Zero values select defaults:
// priority 0, DefaultMaxAttempts, scheduled now.
type NewJob struct {
	Type         JobType
	Data         Payload
	Priority     int
	MaxAttempts  int
	Context      map[string]any
	CommitID     *string
	ProjectID    *string
	ScheduledFor time.Time
	ExpiresAt    *time.Time
	// DependsOn lists job ids that must complete before this job is ready.
	DependsOn []string
}

// Validate checks type, payload presence and ranges.
func (n *NewJob) Validate() error {
	if !n.Type.Valid() {
		return fmt.Errorf("%w: unknown job type %q", ErrInvalidJob, n.Type)
	}
	if n.Data == nil {
		return fmt.Errorf("%w: payload is required for %s", ErrInvalidJob, n.Type)
	}
	if n.Data.JobType() != n.Type {
		return fmt.Errorf("%w: payload of type %s does not match job type %s", ErrInvalidJob, n.Data.JobType(), n.Type)
	}
	if err := n.Data.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}
	if err := ValidatePriority(n.Priority); err != nil {
		return err
	}
	if n.MaxAttempts != 0 {
		if err := ValidateMaxAttempts(n.MaxAttempts); err != nil {
			return err
		}
	}
	if n.ExpiresAt != nil && !n.ScheduledFor.IsZero() && !n.ExpiresAt.After(n.ScheduledFor) {
		return fmt.Errorf("%w: expires_at must be after scheduled_for", ErrInvalidJob)
	}
	for _, dep := range n.DependsOn {
		if dep == "" {
			return fmt.Errorf("%w: empty dependency id", ErrInvalidJob)
		}
	}
	return nil
}

// ValidatePriority rejects priorities outside [MinPriority, MaxPriority].
func ValidatePriority(p int) error {
	if p < MinPriority || p > MaxPriority {
		return fmt.Errorf("%w: priority %d out of range [%d,%d]", ErrInvalidJob, p, MinPriority, MaxPriority)
	}
	return nil
}

// ValidateMaxAttempts rejects ceilings outside [MinMaxAttempts, MaxMaxAttempts].
func ValidateMaxAttempts(n int) error {
	if n < MinMaxAttempts || n > MaxMaxAttempts {
		return fmt.Errorf("%w: max_attempts %d out of range [%d,%d]", ErrInvalidJob, n, MinMaxAttempts, MaxMaxAttempts)
	}
	return nil
}

// JobUpdate is a partial update; nil fields are left untouched.
type JobUpdate struct {
	Status       *JobStatus
	Priority     *int
	Data         Payload
	Context      map[string]any
	Attempts     *int
	MaxAttempts  *int
	RetryAfter   *time.Time
	ScheduledFor *time.Time
	ExpiresAt    *time.Time
	ErrorMessage *string
}

// Validate checks enum and range fields of the update.
func (u *JobUpdate) Validate() error {
	if u.Status != nil && !u.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidJob, *u.Status)
	}
	if u.Priority != nil {
		if err := ValidatePriority(*u.Priority); err != nil {
			return err
		}
	}
	if u.MaxAttempts != nil {
		if err := ValidateMaxAttempts(*u.MaxAttempts); err != nil {
			return err
		}
	}
	if u.Attempts != nil && *u.Attempts < 0 {
		return fmt.Errorf("%w: attempts cannot be negative", ErrInvalidJob)
	}
	if u.Data != nil {
		if err := u.Data.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidJob, err)
		}
	}
	return nil
}

// JobFailure describes a failed execution handed to the store.
type JobFailure struct {
	Message string
	Details map[string]any
	// Terminal skips the retry ladder regardless of remaining attempts.
	Terminal bool
	// RetryAfter is the earliest re-pickup time. When nil the store applies its
	// own backoff policy.
	RetryAfter *time.Time
}

// JobDependency is the edge "JobID does not start until DependsOnJobID completed".
type JobDependency struct {
	ID             string
	JobID          string
	DependsOnJobID string
	CreatedAt      time.Time
}

// JobFilter selects jobs for observability queries. Empty fields do not filter.
type JobFilter struct {
	Statuses      []JobStatus
	Types         []JobType
	ProjectID     string
	CommitID      string
	MinPriority   *int
	MaxPriority   *int
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

// QueueStats aggregates job counts per status.
type QueueStats struct {
	Counts             map[JobStatus]int64
	Total              int64
	OldestPendingSince *time.Time
}

// JobResult is what a handler returns. Handlers never return errors past their
// own boundary; expected failures are reported with Success=false.
type JobResult struct {
	Success  bool
	Data     map[string]any
	Error    string
	Metadata map[string]any
	// Terminal is set when the error wraps ErrTerminal. Whether the job is
	// retried is still up to the processor.
	Terminal bool
}

// Reason returns the structured failure reason, if the handler provided one.
func (r *JobResult) Reason() string {
	if r == nil || r.Metadata == nil {
		return ""
	}
	reason, _ := r.Metadata["reason"].(string)
	return reason
}

// Succeeded builds a successful result.
func Succeeded(data map[string]any) *JobResult {
	if data == nil {
		data = map[string]any{}
	}
	return &JobResult{Success: true, Data: data}
}

// Failed builds a failed result with a structured reason. The result is terminal
// when err wraps ErrTerminal.
func Failed(reason string, err error, metadata map[string]any) *JobResult {
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["reason"] = reason
	msg := reason
	if err != nil {
		msg = err.Error()
	}
	return &JobResult{
		Success:  false,
		Error:    msg,
		Metadata: metadata,
		Terminal: errors.Is(err, ErrTerminal),
	}
}
