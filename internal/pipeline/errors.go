package pipeline

import "errors"

var (
	// ErrDependencyNotMet means a chain step's prerequisite ticket did not
	// complete. Fatal to the run; never retried within it.
	ErrDependencyNotMet = errors.New("pipeline: dependency not met")

	// ErrActiveRun means the deliverable already has a generating version.
	// At most one run may be active per deliverable at any time.
	ErrActiveRun = errors.New("pipeline: deliverable already has an active run")

	// ErrExternalCall means a source fetch or draft call failed after
	// bounded retries. Surfaces as a step failure.
	ErrExternalCall = errors.New("pipeline: external call failed")
)
