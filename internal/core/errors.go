package core

import "errors"

var (
	// ErrTerminal marks failures that retrying cannot fix. Wrap it with %w to
	// skip the retry ladder.
	ErrTerminal = errors.New("terminal failure")

	// ErrNotFound is returned by data access when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRefNotFound is returned by a DiffProvider when a commit or ref is
	// unknown to the code host.
	ErrRefNotFound = errors.New("git ref not found")
)
