package health

import (
	"context"
	"encoding/json"
	"time"
)

// Status represents the health status of a component.
// Higher values take precedence when aggregating.
type Status int

const (
	// StatusHealthy indicates the component is functioning normally.
	StatusHealthy Status = iota
	// StatusDegraded indicates the component is functioning but with issues.
	StatusDegraded
	// StatusUnhealthy indicates the component is not functioning properly.
	StatusUnhealthy
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the status as its lowercase string form.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Result contains the outcome of a single health check. Immutable once
// produced by the Runner.
type Result struct {
	// Name is the check that produced this result.
	Name string `json:"name"`

	// Status is the health status.
	Status Status `json:"status"`

	// LatencyMS is how long the check took, in milliseconds. For a timed-out
	// check this is the configured timeout, not the unmeasured true duration.
	LatencyMS int64 `json:"latency_ms"`

	// Message provides additional context about the status.
	Message string `json:"message,omitempty"`

	// Details contains arbitrary metadata about the check.
	Details map[string]any `json:"details,omitempty"`

	// Timestamp is when the check was started.
	Timestamp time.Time `json:"timestamp"`

	// Err is the error if the check failed. Not serialized; Message carries
	// the human-readable form.
	Err error `json:"-"`
}

// Healthy creates a healthy result.
func Healthy(message string) Result {
	return Result{
		Status:    StatusHealthy,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Degraded creates a degraded result.
func Degraded(message string) Result {
	return Result{
		Status:    StatusDegraded,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Unhealthy creates an unhealthy result. If message is empty the error's
// message is used verbatim.
func Unhealthy(message string, err error) Result {
	if message == "" && err != nil {
		message = err.Error()
	}
	return Result{
		Status:    StatusUnhealthy,
		Message:   message,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// WithDetails adds details to a result.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// Checker is the interface for health checks.
type Checker interface {
	// Name returns the name of this checker.
	Name() string

	// Check performs the health check and returns the result.
	Check(ctx context.Context) Result
}

// CheckerFunc is an adapter to allow ordinary functions to be used as Checkers.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc creates a new CheckerFunc.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

// Name returns the name of this checker.
func (f *CheckerFunc) Name() string {
	return f.name
}

// Check performs the health check.
func (f *CheckerFunc) Check(ctx context.Context) Result {
	return f.fn(ctx)
}

// Well-known dependency check names. The orchestrator treats database and
// auth as load-bearing for readiness.
const (
	CheckDatabase      = "database"
	CheckStorage       = "storage"
	CheckAuth          = "auth"
	CheckEdgeFunctions = "edge_functions"
	CheckMemory        = "memory"
)

// Thresholds maps a check name to the latency above which a successful check
// is reported Degraded instead of Healthy.
type Thresholds map[string]time.Duration

// DefaultThresholds holds the per-dependency latency budgets.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CheckDatabase: 2 * time.Second,
		CheckAuth:     1 * time.Second,
	}
}

// Classify downgrades a healthy result to degraded when the observed latency
// exceeds the check's threshold. Checks without a threshold are unaffected.
func (t Thresholds) Classify(name string, status Status, latency time.Duration) Status {
	if status != StatusHealthy {
		return status
	}
	limit, ok := t[name]
	if !ok || limit <= 0 {
		return status
	}
	if latency > limit {
		return StatusDegraded
	}
	return status
}
