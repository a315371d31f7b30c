package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/uptimeops/observe"
)

// BuildInfo carries build metadata embedded in every snapshot. It is injected
// at construction time rather than read from the process environment inside
// check logic.
type BuildInfo struct {
	Commit    string `json:"commit,omitempty"`
	Branch    string `json:"branch,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
}

// Snapshot is the result of one full orchestrator pass. Produced atomically;
// never partially updated. Its Status is always the precedence-max of the
// statuses in Checks.
type Snapshot struct {
	Status      Status     `json:"status"`
	Version     string     `json:"version"`
	UptimeMS    int64      `json:"uptime_ms"`
	Timestamp   time.Time  `json:"timestamp"`
	Checks      []Result   `json:"checks"`
	Environment string     `json:"environment"`
	Build       *BuildInfo `json:"build,omitempty"`
}

// Liveness is the response to a liveness query. It proves the process is
// responsive and nothing more.
type Liveness struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Config configures the orchestrator.
type Config struct {
	// PerCheckTimeout is the time budget for each dependency check.
	// Default: 5 seconds
	PerCheckTimeout time.Duration

	// CacheTTL is how long a snapshot is served from cache before checks
	// re-run. Default: 30 seconds
	CacheTTL time.Duration

	// EnabledChecks names the built-in dependency checks to run.
	// Default: database, storage, auth, edge_functions
	EnabledChecks []string

	// Thresholds maps check names to degraded-latency budgets.
	Thresholds Thresholds

	// MaxInFlight bounds concurrently executing check functions.
	MaxInFlight int64

	// Memory configures the in-process memory check.
	Memory MemoryCheckerConfig

	// Version, Environment and Build are stamped verbatim on every snapshot.
	Version     string
	Environment string
	Build       *BuildInfo

	// Logger, Metrics and Tracer receive per-pass telemetry. Nil values
	// disable.
	Logger  observe.Logger
	Metrics observe.Metrics
	Tracer  observe.Tracer
}

// ConfigUpdate is a partial reconfiguration. Nil fields retain their prior
// values.
type ConfigUpdate struct {
	PerCheckTimeout *time.Duration
	CacheTTL        *time.Duration
	EnabledChecks   []string
}

// readinessChecks are the dependencies considered load-bearing for serving
// traffic. Readiness aggregates over these only.
var readinessChecks = map[string]bool{
	CheckDatabase: true,
	CheckAuth:     true,
}

type cachedSnapshot struct {
	snapshot Snapshot
	cachedAt time.Time
}

// Orchestrator owns the configured set of checks, runs them concurrently
// through a Runner, aggregates the results, and applies a time-windowed
// snapshot cache.
//
// Contract:
// - Concurrency: safe for concurrent use; overlapping refreshes collapse
//   into a single check pass.
// - Errors: no failure in any check propagates; the only failure signal is
//   the aggregate status.
type Orchestrator struct {
	mu      sync.Mutex
	config  Config
	enabled map[string]bool
	deps    []Checker // configuration order
	custom  map[string]Checker
	order   []string // custom registration order
	cache   *cachedSnapshot

	runner  *Runner
	memory  *MemoryChecker
	group   singleflight.Group
	started time.Time
	logger  observe.Logger
	metrics observe.Metrics
	tracer  observe.Tracer
}

// NewOrchestrator creates an orchestrator over the given dependency checkers.
// The checkers' order is preserved in every snapshot; only those whose name
// appears in EnabledChecks are run.
func NewOrchestrator(config Config, deps ...Checker) *Orchestrator {
	if config.PerCheckTimeout <= 0 {
		config.PerCheckTimeout = 5 * time.Second
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 30 * time.Second
	}
	if config.EnabledChecks == nil {
		config.EnabledChecks = []string{CheckDatabase, CheckStorage, CheckAuth, CheckEdgeFunctions}
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	if config.Metrics == nil {
		config.Metrics = observe.NopMetrics()
	}
	if config.Tracer == nil {
		config.Tracer = observe.NopTracer()
	}

	enabled := make(map[string]bool, len(config.EnabledChecks))
	for _, name := range config.EnabledChecks {
		enabled[name] = true
	}

	return &Orchestrator{
		config:  config,
		enabled: enabled,
		deps:    deps,
		custom:  make(map[string]Checker),
		order:   make([]string, 0),
		runner: NewRunner(RunnerConfig{
			Timeout:     config.PerCheckTimeout,
			Thresholds:  config.Thresholds,
			MaxInFlight: config.MaxInFlight,
		}),
		memory:  NewMemoryChecker(config.Memory),
		started: time.Now(),
		logger:  config.Logger,
		metrics: config.Metrics,
		tracer:  config.Tracer,
	}
}

// AddCheck registers a custom check under the given name, replacing any
// existing check with that name. Registration order is preserved in
// snapshots.
func (o *Orchestrator) AddCheck(name string, checker Checker) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.custom[name]; !exists {
		o.order = append(o.order, name)
	}
	o.custom[name] = checker
}

// RemoveCheck removes a custom check. Removing an absent name is a no-op.
func (o *Orchestrator) RemoveCheck(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.custom[name]; !exists {
		return
	}
	delete(o.custom, name)

	for i, n := range o.order {
		if n == name {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
}

// CheckNames returns the names of all checks a full pass would run, in pass
// order: enabled built-ins, then custom checks, then memory.
func (o *Orchestrator) CheckNames() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	names := make([]string, 0, len(o.deps)+len(o.order)+1)
	for _, dep := range o.deps {
		if o.enabled[dep.Name()] {
			names = append(names, dep.Name())
		}
	}
	names = append(names, o.order...)
	return append(names, CheckMemory)
}

// Configure shallow-merges the update into the live configuration.
// Unspecified fields retain their prior values.
func (o *Orchestrator) Configure(update ConfigUpdate) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if update.PerCheckTimeout != nil && *update.PerCheckTimeout > 0 {
		o.config.PerCheckTimeout = *update.PerCheckTimeout
	}
	if update.CacheTTL != nil && *update.CacheTTL > 0 {
		o.config.CacheTTL = *update.CacheTTL
	}
	if update.EnabledChecks != nil {
		o.config.EnabledChecks = update.EnabledChecks
		o.enabled = make(map[string]bool, len(update.EnabledChecks))
		for _, name := range update.EnabledChecks {
			o.enabled[name] = true
		}
	}
}

// ClearCache forces the next CheckHealth to re-run checks.
func (o *Orchestrator) ClearCache() {
	o.mu.Lock()
	o.cache = nil
	o.mu.Unlock()
}

// CheckHealth returns the current health snapshot. While the cached snapshot
// is fresh and force is false, it is returned unchanged without running any
// checks; checks hit live dependencies and the cache is a deliberate
// load-shedding measure. A forced call bypasses the cache but still updates
// it.
func (o *Orchestrator) CheckHealth(ctx context.Context, force bool) Snapshot {
	if !force {
		if snap, ok := o.cachedSnapshot(); ok {
			return snap
		}
	}

	// Overlapping refreshes, forced or not, collapse into one check pass.
	v, _, _ := o.group.Do("snapshot", func() (any, error) {
		return o.refresh(ctx), nil
	})
	return v.(Snapshot)
}

// CheckOne runs a single named check outside the snapshot cache. The name
// may be an enabled built-in dependency, a custom check, or CheckMemory.
// Unknown names return ErrCheckerNotFound.
func (o *Orchestrator) CheckOne(ctx context.Context, name string) (Result, error) {
	if name == CheckMemory {
		res := o.memory.Check(ctx)
		res.Name = CheckMemory
		return res, nil
	}

	o.mu.Lock()
	var checker Checker
	if c, ok := o.custom[name]; ok {
		checker = c
	} else {
		for _, dep := range o.deps {
			if dep.Name() == name && o.enabled[name] {
				checker = dep
				break
			}
		}
	}
	timeout := o.config.PerCheckTimeout
	o.mu.Unlock()

	if checker == nil {
		return Result{}, ErrCheckerNotFound
	}

	spanCtx, span := o.tracer.StartSpan(ctx, observe.CheckMeta{Name: name, Kind: "check"})
	res := o.runner.RunWithTimeout(spanCtx, checker, timeout)
	o.tracer.EndSpan(span, res.Err)
	return res, nil
}

// CheckLiveness reports that the process is responsive. It performs no
// dependency checks and returns immediately.
func (o *Orchestrator) CheckLiveness() Liveness {
	return Liveness{Status: "ok", Timestamp: time.Now()}
}

// CheckReadiness runs only the load-bearing dependency checks (database and
// auth, intersected with the enabled set) and aggregates over those. It
// never consults or updates the snapshot cache.
func (o *Orchestrator) CheckReadiness(ctx context.Context) Snapshot {
	o.mu.Lock()
	var checkers []Checker
	for _, dep := range o.deps {
		if readinessChecks[dep.Name()] && o.enabled[dep.Name()] {
			checkers = append(checkers, dep)
		}
	}
	timeout := o.config.PerCheckTimeout
	o.mu.Unlock()

	results := o.runChecks(ctx, checkers, timeout)
	return o.snapshot(results)
}

func (o *Orchestrator) cachedSnapshot() (Snapshot, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.cache == nil {
		return Snapshot{}, false
	}
	if time.Since(o.cache.cachedAt) >= o.config.CacheTTL {
		return Snapshot{}, false
	}
	return o.cache.snapshot, true
}

func (o *Orchestrator) refresh(ctx context.Context) Snapshot {
	o.mu.Lock()
	checkers := make([]Checker, 0, len(o.deps)+len(o.order))
	for _, dep := range o.deps {
		if o.enabled[dep.Name()] {
			checkers = append(checkers, dep)
		}
	}
	for _, name := range o.order {
		checkers = append(checkers, o.custom[name])
	}
	timeout := o.config.PerCheckTimeout
	o.mu.Unlock()

	results := o.runChecks(ctx, checkers, timeout)

	// The memory check is in-process, needs no timeout, and always runs last.
	mem := o.memory.Check(ctx)
	mem.Name = CheckMemory
	results = append(results, mem)

	snap := o.snapshot(results)

	o.mu.Lock()
	o.cache = &cachedSnapshot{snapshot: snap, cachedAt: snap.Timestamp}
	o.mu.Unlock()

	o.logger.Debug(ctx, "health snapshot refreshed",
		observe.Field{Key: "status", Value: snap.Status.String()},
		observe.Field{Key: "checks", Value: len(snap.Checks)},
	)
	return snap
}

// runChecks fans the checkers out concurrently and collects results
// positionally, so snapshot order matches configuration order regardless of
// completion order. Each run gets its own span.
func (o *Orchestrator) runChecks(ctx context.Context, checkers []Checker, timeout time.Duration) []Result {
	results := make([]Result, len(checkers))

	var wg sync.WaitGroup
	for i, checker := range checkers {
		wg.Add(1)
		go func(i int, checker Checker) {
			defer wg.Done()
			meta := observe.CheckMeta{Name: checker.Name(), Kind: "check"}
			spanCtx, span := o.tracer.StartSpan(ctx, meta)
			res := o.runner.RunWithTimeout(spanCtx, checker, timeout)
			o.tracer.EndSpan(span, res.Err)
			results[i] = res
		}(i, checker)
	}
	wg.Wait()

	for _, res := range results {
		meta := observe.CheckMeta{Name: res.Name, Kind: "check"}
		o.metrics.RecordCheck(ctx, meta, time.Duration(res.LatencyMS)*time.Millisecond, res.Status.String())
	}
	return results
}

func (o *Orchestrator) snapshot(results []Result) Snapshot {
	o.mu.Lock()
	version := o.config.Version
	environment := o.config.Environment
	build := o.config.Build
	o.mu.Unlock()

	return Snapshot{
		Status:      Aggregate(results),
		Version:     version,
		UptimeMS:    time.Since(o.started).Milliseconds(),
		Timestamp:   time.Now(),
		Checks:      results,
		Environment: environment,
		Build:       build,
	}
}
