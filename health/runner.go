package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// RunnerConfig configures the check runner.
type RunnerConfig struct {
	// Timeout is the per-check time budget.
	// Default: 5 seconds
	Timeout time.Duration

	// Thresholds maps check names to latency budgets for degraded status.
	// Default: DefaultThresholds()
	Thresholds Thresholds

	// MaxInFlight bounds the number of concurrently executing check
	// functions, including abandoned ones whose results were already
	// discarded after a timeout. Default: 64
	MaxInFlight int64
}

// Runner executes a single checker under a bounded timeout, normalizing both
// successful and failed outcomes into a Result.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: Run never panics and never returns an error; every failure mode
//   of the checker (error, panic, timeout) becomes an Unhealthy Result.
type Runner struct {
	config RunnerConfig
	sem    *semaphore.Weighted
}

// NewRunner creates a new check runner.
func NewRunner(config ...RunnerConfig) *Runner {
	cfg := RunnerConfig{
		Timeout:     5 * time.Second,
		MaxInFlight: 64,
	}
	if len(config) > 0 {
		cfg = config[0]
		if cfg.Timeout <= 0 {
			cfg.Timeout = 5 * time.Second
		}
		if cfg.MaxInFlight <= 0 {
			cfg.MaxInFlight = 64
		}
	}
	if cfg.Thresholds == nil {
		cfg.Thresholds = DefaultThresholds()
	}

	return &Runner{
		config: cfg,
		sem:    semaphore.NewWeighted(cfg.MaxInFlight),
	}
}

// Config returns the runner configuration.
func (r *Runner) Config() RunnerConfig {
	return r.config
}

// Run executes the checker and returns its result. If the checker does not
// finish within the timeout, an Unhealthy result is returned immediately and
// the in-flight check is abandoned; its eventual result is discarded. The
// checker receives a context cancelled at the deadline, but cancellation at
// the I/O level is not guaranteed.
func (r *Runner) Run(ctx context.Context, checker Checker) Result {
	return r.run(ctx, checker, r.config.Timeout)
}

// RunWithTimeout is Run with an explicit per-call timeout.
func (r *Runner) RunWithTimeout(ctx context.Context, checker Checker, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = r.config.Timeout
	}
	return r.run(ctx, checker, timeout)
}

func (r *Runner) run(ctx context.Context, checker Checker, timeout time.Duration) Result {
	name := checker.Name()
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// The permit is held until the check function actually returns, even
	// after its result has been abandoned. When the limit is hit, waiting
	// for a permit counts against this check's own budget.
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return r.abortResult(ctx, name, timeout, start)
	}

	resultCh := make(chan Result, 1)

	go func() {
		defer r.sem.Release(1)
		defer func() {
			if rec := recover(); rec != nil {
				resultCh <- Unhealthy(fmt.Sprintf("%s panicked: %v", name, rec), ErrCheckPanicked)
			}
		}()
		resultCh <- checker.Check(ctx)
	}()

	select {
	case res := <-resultCh:
		latency := time.Since(start)
		res.Name = name
		res.LatencyMS = latency.Milliseconds()
		res.Timestamp = start
		res.Status = r.config.Thresholds.Classify(name, res.Status, latency)
		return res
	case <-ctx.Done():
		return r.abortResult(ctx, name, timeout, start)
	}
}

// abortResult distinguishes why the check was abandoned: a deadline produces
// the timeout result, while cancellation of the caller's context is reported
// as a cancellation, not a timeout.
func (r *Runner) abortResult(ctx context.Context, name string, timeout time.Duration, start time.Time) Result {
	if errors.Is(ctx.Err(), context.Canceled) {
		return Result{
			Name:      name,
			Status:    StatusUnhealthy,
			LatencyMS: time.Since(start).Milliseconds(),
			Message:   fmt.Sprintf("%s cancelled before completion", name),
			Timestamp: start,
			Err:       ErrCheckCancelled,
		}
	}
	return r.timeoutResult(name, timeout, start)
}

func (r *Runner) timeoutResult(name string, timeout time.Duration, start time.Time) Result {
	return Result{
		Name:      name,
		Status:    StatusUnhealthy,
		LatencyMS: timeout.Milliseconds(),
		Message:   fmt.Sprintf("%s timed out after %dms", name, timeout.Milliseconds()),
		Timestamp: start,
		Err:       ErrCheckTimeout,
	}
}

// RunAll executes all checkers concurrently and returns their results in
// input order regardless of completion order. Total latency is bounded by
// the slowest single check, not the sum.
func (r *Runner) RunAll(ctx context.Context, checkers []Checker) []Result {
	results := make([]Result, len(checkers))

	var wg sync.WaitGroup
	for i, checker := range checkers {
		wg.Add(1)
		go func(i int, checker Checker) {
			defer wg.Done()
			results[i] = r.Run(ctx, checker)
		}(i, checker)
	}
	wg.Wait()

	return results
}
