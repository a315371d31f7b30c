package health

import (
	"context"
	"fmt"
	"runtime"
)

// MemoryCheckerConfig configures the memory health checker.
type MemoryCheckerConfig struct {
	// WarningThreshold is the fraction of heap usage that triggers degraded
	// status. Value should be between 0 and 1. Default: 0.75 (75%)
	WarningThreshold float64

	// CriticalThreshold is the fraction of heap usage that triggers unhealthy
	// status. Value should be between 0 and 1. Default: 0.90 (90%)
	CriticalThreshold float64

	// MaxHeap is the maximum expected heap size in bytes.
	// If zero, the heap reserved from the OS is used as the ceiling.
	// Default: 0 (auto-detect)
	MaxHeap uint64
}

// MemoryChecker checks process heap usage. It performs no I/O and needs no
// timeout; the orchestrator runs it synchronously on every pass.
type MemoryChecker struct {
	config MemoryCheckerConfig
}

// NewMemoryChecker creates a new memory health checker.
func NewMemoryChecker(config MemoryCheckerConfig) *MemoryChecker {
	if config.WarningThreshold <= 0 || config.WarningThreshold >= 1 {
		config.WarningThreshold = 0.75
	}
	if config.CriticalThreshold <= 0 || config.CriticalThreshold >= 1 {
		config.CriticalThreshold = 0.90
	}
	if config.CriticalThreshold < config.WarningThreshold {
		config.CriticalThreshold = config.WarningThreshold + 0.1
		if config.CriticalThreshold > 1 {
			config.CriticalThreshold = 0.99
		}
	}

	return &MemoryChecker{config: config}
}

// Name returns the name of this checker.
func (m *MemoryChecker) Name() string {
	return CheckMemory
}

// Check performs the memory health check. When heap statistics are
// unavailable the result is Healthy with an explanatory message; absence of
// the capability is not itself a failure.
func (m *MemoryChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	maxHeap := m.config.MaxHeap
	if maxHeap == 0 {
		maxHeap = stats.HeapSys
	}

	if maxHeap == 0 {
		return Healthy("memory stats unavailable").WithDetails(map[string]any{
			"alloc":       stats.Alloc,
			"total_alloc": stats.TotalAlloc,
			"num_gc":      stats.NumGC,
		})
	}

	usageRatio := float64(stats.HeapAlloc) / float64(maxHeap)

	details := map[string]any{
		"heap_alloc":    stats.HeapAlloc,
		"heap_sys":      stats.HeapSys,
		"heap_idle":     stats.HeapIdle,
		"heap_in_use":   stats.HeapInuse,
		"heap_objects":  stats.HeapObjects,
		"max_heap":      maxHeap,
		"usage_percent": usageRatio * 100,
		"num_gc":        stats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	switch m.classify(usageRatio) {
	case StatusUnhealthy:
		return Unhealthy(
			fmt.Sprintf("heap usage critical: %.1f%%", usageRatio*100),
			ErrCheckFailed,
		).WithDetails(details)
	case StatusDegraded:
		return Degraded(
			fmt.Sprintf("heap usage high: %.1f%%", usageRatio*100),
		).WithDetails(details)
	}

	return Healthy(
		fmt.Sprintf("heap usage normal: %.1f%%", usageRatio*100),
	).WithDetails(details)
}

// classify maps a heap usage ratio to a status. Thresholds are exclusive:
// usage sitting exactly on a threshold does not cross it.
func (m *MemoryChecker) classify(usageRatio float64) Status {
	switch {
	case usageRatio > m.config.CriticalThreshold:
		return StatusUnhealthy
	case usageRatio > m.config.WarningThreshold:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}
