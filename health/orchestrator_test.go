package health

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jonwraymond/uptimeops/observe"
)

func healthyChecker(name string) Checker {
	return NewCheckerFunc(name, func(ctx context.Context) Result {
		return Healthy("ok")
	})
}

func allDeps() []Checker {
	return []Checker{
		healthyChecker(CheckDatabase),
		healthyChecker(CheckStorage),
		healthyChecker(CheckAuth),
		healthyChecker(CheckEdgeFunctions),
	}
}

func TestOrchestrator_SnapshotMetadata(t *testing.T) {
	orch := NewOrchestrator(Config{
		Version:     "1.4.2",
		Environment: "production",
		Build:       &BuildInfo{Commit: "abc123", Branch: "main"},
	}, allDeps()...)

	snap := orch.CheckHealth(context.Background(), false)

	if snap.Version != "1.4.2" {
		t.Errorf("Version = %v, want '1.4.2'", snap.Version)
	}
	if snap.Environment != "production" {
		t.Errorf("Environment = %v, want 'production'", snap.Environment)
	}
	if snap.Build == nil || snap.Build.Commit != "abc123" {
		t.Errorf("Build = %+v, want commit abc123", snap.Build)
	}
	if snap.UptimeMS < 0 {
		t.Errorf("UptimeMS = %v, want >= 0", snap.UptimeMS)
	}
	if snap.Status != StatusHealthy {
		t.Errorf("Status = %v, want StatusHealthy", snap.Status)
	}
}

func TestOrchestrator_ChecksOrderStable(t *testing.T) {
	orch := NewOrchestrator(Config{}, allDeps()...)
	orch.AddCheck("queue-depth", healthyChecker("queue-depth"))
	orch.AddCheck("cdn", healthyChecker("cdn"))

	snap := orch.CheckHealth(context.Background(), false)

	want := []string{CheckDatabase, CheckStorage, CheckAuth, CheckEdgeFunctions, "queue-depth", "cdn", CheckMemory}
	if len(snap.Checks) != len(want) {
		t.Fatalf("got %d checks, want %d", len(snap.Checks), len(want))
	}
	for i, name := range want {
		if snap.Checks[i].Name != name {
			t.Errorf("Checks[%d].Name = %v, want %v", i, snap.Checks[i].Name, name)
		}
	}
}

func TestOrchestrator_StatusIsAggregateOfChecks(t *testing.T) {
	orch := NewOrchestrator(Config{}, allDeps()...)
	orch.AddCheck("flaky", NewCheckerFunc("flaky", func(ctx context.Context) Result {
		return Degraded("slow responses")
	}))

	snap := orch.CheckHealth(context.Background(), false)

	if snap.Status != Aggregate(snap.Checks) {
		t.Errorf("Status = %v, want the aggregate of checks %v", snap.Status, Aggregate(snap.Checks))
	}
	if snap.Status != StatusDegraded {
		t.Errorf("Status = %v, want StatusDegraded", snap.Status)
	}
}

func TestOrchestrator_CustomCheckPanic(t *testing.T) {
	orch := NewOrchestrator(Config{}, allDeps()...)
	orch.AddCheck("queue-depth", NewCheckerFunc("queue-depth", func(ctx context.Context) Result {
		panic(errors.New("boom"))
	}))

	snap := orch.CheckHealth(context.Background(), false)

	if snap.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want StatusUnhealthy", snap.Status)
	}

	var found *Result
	for i := range snap.Checks {
		if snap.Checks[i].Name == "queue-depth" {
			found = &snap.Checks[i]
		}
	}
	if found == nil {
		t.Fatal("queue-depth check missing from snapshot")
	}
	if found.Status != StatusUnhealthy {
		t.Errorf("queue-depth status = %v, want StatusUnhealthy", found.Status)
	}
	if !strings.Contains(found.Message, "boom") {
		t.Errorf("queue-depth message = %q, want it to contain 'boom'", found.Message)
	}
}

func TestOrchestrator_CacheCoherence(t *testing.T) {
	runs := 0
	counting := NewCheckerFunc(CheckDatabase, func(ctx context.Context) Result {
		runs++
		return Healthy("ok")
	})

	orch := NewOrchestrator(Config{CacheTTL: 150 * time.Millisecond}, counting)

	first := orch.CheckHealth(context.Background(), false)
	second := orch.CheckHealth(context.Background(), false)

	if !first.Timestamp.Equal(second.Timestamp) {
		t.Error("two calls within the TTL should return the identical snapshot")
	}
	if runs != 1 {
		t.Errorf("checks ran %d times, want 1 (cache hit must not re-run checks)", runs)
	}

	forced := orch.CheckHealth(context.Background(), true)
	if forced.Timestamp.Equal(first.Timestamp) {
		t.Error("forced refresh should produce a new snapshot")
	}
	if runs != 2 {
		t.Errorf("checks ran %d times after force, want 2", runs)
	}

	time.Sleep(160 * time.Millisecond)
	expired := orch.CheckHealth(context.Background(), false)
	if expired.Timestamp.Equal(forced.Timestamp) {
		t.Error("call after TTL expiry should produce a new snapshot")
	}
}

func TestOrchestrator_ClearCache(t *testing.T) {
	orch := NewOrchestrator(Config{CacheTTL: time.Hour}, allDeps()...)

	first := orch.CheckHealth(context.Background(), false)
	orch.ClearCache()
	second := orch.CheckHealth(context.Background(), false)

	if first.Timestamp.Equal(second.Timestamp) {
		t.Error("ClearCache should force the next call to re-run checks")
	}
}

func TestOrchestrator_ForcedRefreshUpdatesCache(t *testing.T) {
	orch := NewOrchestrator(Config{CacheTTL: time.Hour}, allDeps()...)

	forced := orch.CheckHealth(context.Background(), true)
	cached := orch.CheckHealth(context.Background(), false)

	if !forced.Timestamp.Equal(cached.Timestamp) {
		t.Error("forced refresh must still update the cache")
	}
}

func TestOrchestrator_ReadinessSubset(t *testing.T) {
	orch := NewOrchestrator(Config{}, allDeps()...)
	orch.AddCheck("queue-depth", healthyChecker("queue-depth"))

	snap := orch.CheckReadiness(context.Background())

	want := map[string]bool{CheckDatabase: true, CheckAuth: true}
	if len(snap.Checks) != 2 {
		t.Fatalf("readiness ran %d checks, want 2", len(snap.Checks))
	}
	for _, res := range snap.Checks {
		if !want[res.Name] {
			t.Errorf("readiness included %q; only database and auth may appear", res.Name)
		}
	}
}

func TestOrchestrator_ReadinessRespectsEnabledSet(t *testing.T) {
	orch := NewOrchestrator(Config{
		EnabledChecks: []string{CheckStorage, CheckAuth},
	}, allDeps()...)

	snap := orch.CheckReadiness(context.Background())

	if len(snap.Checks) != 1 || snap.Checks[0].Name != CheckAuth {
		t.Errorf("readiness checks = %v, want exactly [auth]", snap.Checks)
	}
}

func TestOrchestrator_ReadinessFailureIs503Material(t *testing.T) {
	deps := []Checker{
		NewCheckerFunc(CheckDatabase, func(ctx context.Context) Result {
			return Unhealthy("connection refused", errors.New("dial tcp: refused"))
		}),
		healthyChecker(CheckStorage),
		healthyChecker(CheckAuth),
	}
	orch := NewOrchestrator(Config{}, deps...)

	snap := orch.CheckReadiness(context.Background())
	if snap.Status != StatusUnhealthy {
		t.Errorf("readiness status = %v, want StatusUnhealthy", snap.Status)
	}
}

func TestOrchestrator_Liveness(t *testing.T) {
	// Liveness must answer without running any dependency checks.
	stuck := NewCheckerFunc(CheckDatabase, func(ctx context.Context) Result {
		<-ctx.Done()
		return Unhealthy("stuck", ctx.Err())
	})
	orch := NewOrchestrator(Config{}, stuck)

	start := time.Now()
	live := orch.CheckLiveness()
	if time.Since(start) > 50*time.Millisecond {
		t.Error("CheckLiveness should return immediately")
	}
	if live.Status != "ok" {
		t.Errorf("Status = %v, want 'ok'", live.Status)
	}
	if live.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
}

func TestOrchestrator_AddRemoveCheck(t *testing.T) {
	orch := NewOrchestrator(Config{}, allDeps()...)

	orch.AddCheck("queue-depth", healthyChecker("queue-depth"))
	names := orch.CheckNames()
	found := false
	for _, n := range names {
		if n == "queue-depth" {
			found = true
		}
	}
	if !found {
		t.Errorf("CheckNames() = %v, want it to contain queue-depth", names)
	}

	orch.RemoveCheck("queue-depth")
	for _, n := range orch.CheckNames() {
		if n == "queue-depth" {
			t.Error("queue-depth still present after RemoveCheck")
		}
	}

	// Removing an absent name is a no-op, not an error.
	orch.RemoveCheck("nonexistent")
}

func TestOrchestrator_ConfigurePartialMerge(t *testing.T) {
	orch := NewOrchestrator(Config{
		PerCheckTimeout: 2 * time.Second,
		CacheTTL:        time.Minute,
	}, allDeps()...)

	ttl := 5 * time.Second
	orch.Configure(ConfigUpdate{CacheTTL: &ttl})

	orch.mu.Lock()
	gotTimeout := orch.config.PerCheckTimeout
	gotTTL := orch.config.CacheTTL
	orch.mu.Unlock()

	if gotTimeout != 2*time.Second {
		t.Errorf("PerCheckTimeout = %v, unspecified field must retain prior value", gotTimeout)
	}
	if gotTTL != 5*time.Second {
		t.Errorf("CacheTTL = %v, want 5s", gotTTL)
	}
}

func TestOrchestrator_ConfigureEnabledChecks(t *testing.T) {
	orch := NewOrchestrator(Config{}, allDeps()...)

	orch.Configure(ConfigUpdate{EnabledChecks: []string{CheckDatabase}})
	snap := orch.CheckHealth(context.Background(), true)

	// database plus the always-on memory check
	if len(snap.Checks) != 2 {
		t.Fatalf("got %d checks, want 2", len(snap.Checks))
	}
	if snap.Checks[0].Name != CheckDatabase {
		t.Errorf("Checks[0].Name = %v, want database", snap.Checks[0].Name)
	}
	if snap.Checks[1].Name != CheckMemory {
		t.Errorf("Checks[1].Name = %v, want memory", snap.Checks[1].Name)
	}
}

func TestOrchestrator_CheckOne(t *testing.T) {
	orch := NewOrchestrator(Config{}, allDeps()...)
	orch.AddCheck("queue-depth", NewCheckerFunc("queue-depth", func(ctx context.Context) Result {
		return Degraded("backlog growing")
	}))

	res, err := orch.CheckOne(context.Background(), CheckDatabase)
	if err != nil {
		t.Fatalf("CheckOne(database): %v", err)
	}
	if res.Name != CheckDatabase || res.Status != StatusHealthy {
		t.Errorf("result = %+v", res)
	}

	res, err = orch.CheckOne(context.Background(), "queue-depth")
	if err != nil {
		t.Fatalf("CheckOne(queue-depth): %v", err)
	}
	if res.Status != StatusDegraded {
		t.Errorf("custom check status = %v, want degraded", res.Status)
	}

	res, err = orch.CheckOne(context.Background(), CheckMemory)
	if err != nil {
		t.Fatalf("CheckOne(memory): %v", err)
	}
	if res.Name != CheckMemory {
		t.Errorf("memory result name = %q", res.Name)
	}

	if _, err := orch.CheckOne(context.Background(), "ghost"); !errors.Is(err, ErrCheckerNotFound) {
		t.Errorf("CheckOne(ghost) error = %v, want ErrCheckerNotFound", err)
	}
}

func TestOrchestrator_CheckOne_DisabledDependency(t *testing.T) {
	orch := NewOrchestrator(Config{EnabledChecks: []string{CheckDatabase}}, allDeps()...)

	if _, err := orch.CheckOne(context.Background(), CheckStorage); !errors.Is(err, ErrCheckerNotFound) {
		t.Errorf("disabled dependency error = %v, want ErrCheckerNotFound", err)
	}
}

func TestOrchestrator_MemoryCheckAlwaysPresent(t *testing.T) {
	orch := NewOrchestrator(Config{EnabledChecks: []string{}})

	snap := orch.CheckHealth(context.Background(), false)

	if len(snap.Checks) != 1 {
		t.Fatalf("got %d checks, want only the memory check", len(snap.Checks))
	}
	if snap.Checks[0].Name != CheckMemory {
		t.Errorf("Checks[0].Name = %v, want memory", snap.Checks[0].Name)
	}
}

func TestOrchestrator_ConcurrentCallsShareOneRefresh(t *testing.T) {
	runs := 0
	slow := NewCheckerFunc(CheckDatabase, func(ctx context.Context) Result {
		runs++
		time.Sleep(50 * time.Millisecond)
		return Healthy("ok")
	})
	orch := NewOrchestrator(Config{CacheTTL: time.Hour}, slow)

	done := make(chan Snapshot, 2)
	for i := 0; i < 2; i++ {
		go func() {
			done <- orch.CheckHealth(context.Background(), true)
		}()
	}
	first := <-done
	second := <-done

	if !first.Timestamp.Equal(second.Timestamp) {
		t.Error("overlapping forced refreshes should collapse into one pass")
	}
	if runs != 1 {
		t.Errorf("checks ran %d times, want 1", runs)
	}
}

func TestOrchestrator_ChecksProduceSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	orch := NewOrchestrator(Config{
		Tracer: observe.NewTracer(tp.Tracer("test")),
	}, healthyChecker(CheckDatabase), healthyChecker(CheckAuth))

	orch.CheckHealth(context.Background(), true)

	names := make(map[string]bool)
	for _, span := range recorder.Ended() {
		names[span.Name()] = true
	}
	for _, want := range []string{"monitor.check.database", "monitor.check.auth"} {
		if !names[want] {
			t.Errorf("no span named %q recorded, got %v", want, names)
		}
	}
}
