package probe

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/uptimeops/observe"
)

// Alert is an alert-worthy probe failure: the probe has failed at least
// FailureThreshold times in a row and is not in maintenance.
type Alert struct {
	Probe               string    `json:"probe"`
	Channels            []string  `json:"channels,omitempty"`
	Escalate            bool      `json:"escalate"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Message             string    `json:"message,omitempty"`
	StatusCode          int       `json:"status_code,omitempty"`
	LatencyMS           int64     `json:"latency_ms"`
	Timestamp           time.Time `json:"timestamp"`
}

// Notifier delivers alerts. Implementations must not block indefinitely;
// the scheduler calls Notify inline from a probe's timer goroutine.
type Notifier interface {
	Notify(ctx context.Context, alert Alert)
}

// LogNotifier is a Notifier that writes alerts to the structured log.
// It is the default delivery path when no channel integration is wired.
type LogNotifier struct {
	logger observe.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger discards alerts.
func NewLogNotifier(logger observe.Logger) *LogNotifier {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the alert. Escalated alerts log at error level, the rest at
// warn.
func (n *LogNotifier) Notify(ctx context.Context, alert Alert) {
	fields := []observe.Field{
		{Key: "probe", Value: alert.Probe},
		{Key: "consecutive_failures", Value: alert.ConsecutiveFailures},
		{Key: "channels", Value: alert.Channels},
		{Key: "latency_ms", Value: alert.LatencyMS},
		{Key: "message", Value: alert.Message},
	}
	if alert.StatusCode != 0 {
		fields = append(fields, observe.Field{Key: "status_code", Value: alert.StatusCode})
	}
	if alert.Escalate {
		n.logger.Error(ctx, "probe alert", fields...)
		return
	}
	n.logger.Warn(ctx, "probe alert", fields...)
}

// failureTracker counts consecutive failures per probe. A single success
// resets the probe's count to zero.
type failureTracker struct {
	mu     sync.Mutex
	counts map[string]int
}

func newFailureTracker() *failureTracker {
	return &failureTracker{counts: make(map[string]int)}
}

// record increments the probe's consecutive-failure count and returns the
// new count.
func (t *failureTracker) record(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[name]++
	return t.counts[name]
}

// reset clears the probe's count and reports whether it had been failing.
func (t *failureTracker) reset(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasFailing := t.counts[name] > 0
	delete(t.counts, name)
	return wasFailing
}

// count returns the current consecutive-failure count for a probe.
func (t *failureTracker) count(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[name]
}
