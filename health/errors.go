package health

import "errors"

var (
	// ErrCheckFailed indicates a health check failed.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout indicates a health check exceeded its time budget.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckCancelled indicates a check was abandoned because the caller's
	// context was cancelled before the check's own deadline.
	ErrCheckCancelled = errors.New("health: check cancelled")

	// ErrCheckPanicked indicates a check function panicked during execution.
	ErrCheckPanicked = errors.New("health: check panicked")

	// ErrCheckerNotFound indicates a checker was not found.
	ErrCheckerNotFound = errors.New("health: checker not found")
)
