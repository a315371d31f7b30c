package probe

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/uptimeops/observe"
)

// Scheduler owns one recurring timer per enabled probe. Failures pass
// through consecutive-failure counting and maintenance suppression before
// reaching the Notifier.
//
// Contract:
//   - While running there is exactly one timer goroutine per enabled probe.
//   - Stop cancels every timer and waits for in-flight executions; no probe
//     executes after Stop returns.
//   - Start is a no-op when monitoring is disabled or already running.
//   - One successful execution resets a probe's failure count to zero.
type Scheduler struct {
	mu      sync.Mutex
	running bool
	config  MonitoringConfig
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup

	executor *Executor
	notifier Notifier
	tracker  *failureTracker
	logger   observe.Logger
}

// NewScheduler creates a Scheduler. A nil notifier falls back to logging
// alerts; a nil logger discards log output.
func NewScheduler(config MonitoringConfig, executor *Executor, notifier Notifier, logger observe.Logger) *Scheduler {
	if logger == nil {
		logger = observe.NopLogger()
	}
	if executor == nil {
		executor = NewExecutor(logger, nil, nil)
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	return &Scheduler{
		config:   config,
		cancels:  make(map[string]context.CancelFunc),
		executor: executor,
		notifier: notifier,
		tracker:  newFailureTracker(),
		logger:   logger,
	}
}

// Start launches one timer goroutine per enabled probe. It is a no-op when
// monitoring is disabled or the scheduler is already running.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || !s.config.Enabled {
		return
	}
	s.running = true
	for _, p := range s.config.Probes {
		if p.Enabled {
			s.startTimerLocked(p)
		}
	}
	s.logger.Info(context.Background(), "uptime scheduler started",
		observe.Field{Key: "probes", Value: len(s.cancels)},
	)
}

// Stop cancels all probe timers and blocks until in-flight executions
// finish. Safe to call when not running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = make(map[string]context.CancelFunc)
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info(context.Background(), "uptime scheduler stopped")
}

// Running reports whether the scheduler has active timers.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// TimerCount returns the number of active probe timers.
func (s *Scheduler) TimerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cancels)
}

// AddProbe registers a probe, replacing any existing probe with the same
// name. If the scheduler is running and the probe is enabled, its timer
// starts immediately.
func (s *Scheduler) AddProbe(p Probe) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := false
	for i := range s.config.Probes {
		if s.config.Probes[i].Name == p.Name {
			s.config.Probes[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		s.config.Probes = append(s.config.Probes, p)
	}

	if cancel, ok := s.cancels[p.Name]; ok {
		cancel()
		delete(s.cancels, p.Name)
	}
	if s.running && p.Enabled {
		s.startTimerLocked(p)
	}
	return nil
}

// RemoveProbe stops and deregisters the named probe. Removing an unknown
// probe is a no-op.
func (s *Scheduler) RemoveProbe(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.config.Probes {
		if s.config.Probes[i].Name == name {
			s.config.Probes = append(s.config.Probes[:i], s.config.Probes[i+1:]...)
			break
		}
	}
	if cancel, ok := s.cancels[name]; ok {
		cancel()
		delete(s.cancels, name)
	}
	s.tracker.reset(name)
}

// CheckNow runs every enabled probe once, concurrently, outside the timer
// schedule. Results are positional, matching the enabled probe order.
// On-demand runs do not touch failure counters or trigger alerts.
func (s *Scheduler) CheckNow(ctx context.Context) []Result {
	s.mu.Lock()
	probes := s.config.EnabledProbes()
	s.mu.Unlock()

	results := make([]Result, len(probes))
	var wg sync.WaitGroup
	for i, p := range probes {
		wg.Add(1)
		go func(i int, p Probe) {
			defer wg.Done()
			results[i] = s.executor.Execute(ctx, p)
		}(i, p)
	}
	wg.Wait()
	return results
}

// startTimerLocked launches the timer goroutine for one probe. Caller holds
// s.mu.
func (s *Scheduler) startTimerLocked(p Probe) {
	p = p.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancels[p.Name] = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(p.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.runScheduled(ctx, p)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// runScheduled executes one scheduled tick for a probe and applies the
// failure policy to the outcome.
func (s *Scheduler) runScheduled(ctx context.Context, p Probe) {
	res := s.executor.Execute(ctx, p)
	if res.Up {
		if s.tracker.reset(p.Name) {
			s.logger.Info(ctx, "probe recovered",
				observe.Field{Key: "probe", Value: p.Name},
			)
		}
		return
	}
	s.handleFailure(ctx, p, res)
}

func (s *Scheduler) handleFailure(ctx context.Context, p Probe, res Result) {
	count := s.tracker.record(p.Name)

	s.logger.Warn(ctx, "probe failed",
		observe.Field{Key: "probe", Value: p.Name},
		observe.Field{Key: "consecutive_failures", Value: count},
		observe.Field{Key: "status_code", Value: res.StatusCode},
		observe.Field{Key: "latency_ms", Value: res.LatencyMS},
		observe.Field{Key: "message", Value: res.Message},
	)

	// Below the threshold a failure is transient: counted, logged, not alerted.
	if count < p.Alert.FailureThreshold {
		return
	}

	now := time.Now()
	s.mu.Lock()
	suppressed := s.config.InMaintenance(p.Name, now)
	s.mu.Unlock()
	if suppressed {
		s.logger.Info(ctx, "probe alert suppressed by maintenance window",
			observe.Field{Key: "probe", Value: p.Name},
		)
		return
	}

	s.notifier.Notify(ctx, Alert{
		Probe:               p.Name,
		Channels:            p.Alert.Channels,
		Escalate:            p.Alert.Escalate,
		ConsecutiveFailures: count,
		Message:             res.Message,
		StatusCode:          res.StatusCode,
		LatencyMS:           res.LatencyMS,
		Timestamp:           now,
	})
}
