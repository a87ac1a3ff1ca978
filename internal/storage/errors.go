package storage

import (
	"errors"

	"github.com/sevigo/commit-digest/internal/core"
)

var (
	// ErrNotFound aliases core.ErrNotFound so callers outside storage can match it.
	ErrNotFound = core.ErrNotFound

	// ErrJobNotClaimable is returned when a conditional claim loses the race:
	// the job exists but is no longer pending.
	ErrJobNotClaimable = errors.New("job is not claimable")

	// ErrInvalidTransition is returned when a lifecycle transition does not
	// apply to the job's current status.
	ErrInvalidTransition = errors.New("invalid job status transition")

	ErrSelfDependency      = errors.New("job cannot depend on itself")
	ErrDuplicateDependency = errors.New("dependency already exists")
	ErrDependencyCycle     = errors.New("dependency would create a cycle")

	ErrInsufficientCredits = errors.New("insufficient credits")
)

// isDomainError reports errors that retrying the same write cannot change.
func isDomainError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrJobNotClaimable) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, core.ErrInvalidJob) ||
		errors.Is(err, ErrSelfDependency) ||
		errors.Is(err, ErrDuplicateDependency) ||
		errors.Is(err, ErrDependencyCycle)
}
