// Package jobs runs the durable job pipeline: a polling processor that claims
// ready jobs from the store and the handlers that fetch diffs, summarize them
// and send notification emails.
package jobs

import (
	"context"
	"time"

	"github.com/sevigo/commit-digest/internal/core"
)

// Handler executes one job type. Handlers report expected failures through
// the returned JobResult; a returned error is treated as retryable unless it
// wraps core.ErrTerminal.
type Handler interface {
	Type() core.JobType
	Handle(ctx context.Context, job *core.Job) (*core.JobResult, error)
}

// Validator is implemented by handlers that can reject a job before running it.
// A validation failure is never retried.
type Validator interface {
	Validate(job *core.Job) error
}

// DurationEstimator is implemented by handlers that know roughly how long a
// job takes. It is informational and shown in processor stats.
type DurationEstimator interface {
	EstimatedDuration(job *core.Job) time.Duration
}

// payloadOf asserts the payload type of a job.
func payloadOf[T core.Payload](job *core.Job) (T, error) {
	var zero T
	p, ok := job.Data.(T)
	if !ok {
		return zero, &payloadError{want: job.Type, got: job.Data}
	}
	return p, nil
}

type payloadError struct {
	want core.JobType
	got  core.Payload
}

func (e *payloadError) Error() string {
	if e.got == nil {
		return "job " + string(e.want) + " has no payload"
	}
	return "job " + string(e.want) + " carries a " + string(e.got.JobType()) + " payload"
}

func (e *payloadError) Unwrap() error { return core.ErrTerminal }

// validatePayload is the shared Validate implementation of the handlers.
func validatePayload[T core.Payload](job *core.Job) error {
	p, err := payloadOf[T](job)
	if err != nil {
		return err
	}
	return p.Validate()
}
