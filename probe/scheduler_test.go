package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// recordingNotifier captures alerts for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	alerts []Alert
}

func (n *recordingNotifier) Notify(ctx context.Context, alert Alert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

func (n *recordingNotifier) last() Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.alerts[len(n.alerts)-1]
}

func countingServer(status int, hits *atomic.Int64) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
	}))
}

func fastProbe(name, url string, threshold int) Probe {
	return Probe{
		Name:     name,
		URL:      url,
		Kind:     KindHTTP,
		Interval: 20 * time.Millisecond,
		Timeout:  time.Second,
		Enabled:  true,
		Alert:    AlertPolicy{FailureThreshold: threshold},
	}
}

func TestScheduler_StartStop(t *testing.T) {
	var hits atomic.Int64
	srv := countingServer(http.StatusOK, &hits)
	defer srv.Close()

	sched := NewScheduler(MonitoringConfig{
		Enabled: true,
		Probes:  []Probe{fastProbe("web", srv.URL, 3)},
	}, nil, nil, nil)

	sched.Start()
	if !sched.Running() {
		t.Fatal("Running() = false after Start")
	}
	if sched.TimerCount() != 1 {
		t.Errorf("TimerCount() = %d, want 1", sched.TimerCount())
	}

	time.Sleep(100 * time.Millisecond)
	sched.Stop()

	if sched.Running() {
		t.Error("Running() = true after Stop")
	}
	if sched.TimerCount() != 0 {
		t.Errorf("TimerCount() = %d after Stop, want 0", sched.TimerCount())
	}
	if hits.Load() == 0 {
		t.Error("probe never executed while running")
	}

	// No executions after Stop returns.
	settled := hits.Load()
	time.Sleep(100 * time.Millisecond)
	if got := hits.Load(); got != settled {
		t.Errorf("probe executed after Stop: %d -> %d", settled, got)
	}
}

func TestScheduler_DisabledConfig(t *testing.T) {
	sched := NewScheduler(MonitoringConfig{
		Enabled: false,
		Probes:  []Probe{fastProbe("web", "https://example.com", 3)},
	}, nil, nil, nil)

	sched.Start()
	if sched.Running() {
		t.Error("Running() = true with monitoring disabled")
	}
	if sched.TimerCount() != 0 {
		t.Errorf("TimerCount() = %d, want 0", sched.TimerCount())
	}
}

func TestScheduler_DoubleStart(t *testing.T) {
	var hits atomic.Int64
	srv := countingServer(http.StatusOK, &hits)
	defer srv.Close()

	sched := NewScheduler(MonitoringConfig{
		Enabled: true,
		Probes:  []Probe{fastProbe("web", srv.URL, 3)},
	}, nil, nil, nil)

	sched.Start()
	sched.Start()
	defer sched.Stop()

	if sched.TimerCount() != 1 {
		t.Errorf("TimerCount() after double Start = %d, want 1", sched.TimerCount())
	}
}

func TestScheduler_DisabledProbeGetsNoTimer(t *testing.T) {
	enabled := fastProbe("on", "https://example.com", 3)
	disabled := fastProbe("off", "https://example.com", 3)
	disabled.Enabled = false

	sched := NewScheduler(MonitoringConfig{
		Enabled: true,
		Probes:  []Probe{enabled, disabled},
	}, nil, nil, nil)

	sched.Start()
	defer sched.Stop()

	if sched.TimerCount() != 1 {
		t.Errorf("TimerCount() = %d, want 1 (disabled probe must not get a timer)", sched.TimerCount())
	}
}

func TestScheduler_AlertAfterThreshold(t *testing.T) {
	var hits atomic.Int64
	srv := countingServer(http.StatusInternalServerError, &hits)
	defer srv.Close()

	notifier := &recordingNotifier{}
	sched := NewScheduler(MonitoringConfig{
		Enabled: true,
		Probes:  []Probe{fastProbe("failing", srv.URL, 3)},
	}, nil, notifier, nil)

	sched.Start()
	defer sched.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for notifier.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if notifier.count() == 0 {
		t.Fatal("no alert delivered for persistently failing probe")
	}
	alert := notifier.last()
	if alert.Probe != "failing" {
		t.Errorf("alert.Probe = %q, want %q", alert.Probe, "failing")
	}
	if alert.ConsecutiveFailures < 3 {
		t.Errorf("alert.ConsecutiveFailures = %d, want >= 3", alert.ConsecutiveFailures)
	}
	if hits.Load() < 3 {
		t.Errorf("server hits = %d, want >= 3 before first alert", hits.Load())
	}
}

func TestScheduler_NoAlertBelowThreshold(t *testing.T) {
	var hits atomic.Int64
	srv := countingServer(http.StatusInternalServerError, &hits)
	defer srv.Close()

	notifier := &recordingNotifier{}
	sched := NewScheduler(MonitoringConfig{
		Enabled: true,
		Probes:  []Probe{fastProbe("failing", srv.URL, 1000)},
	}, nil, notifier, nil)

	sched.Start()
	time.Sleep(150 * time.Millisecond)
	sched.Stop()

	if notifier.count() != 0 {
		t.Errorf("alerts = %d below threshold, want 0", notifier.count())
	}
	if hits.Load() == 0 {
		t.Error("probe never executed")
	}
}

func TestScheduler_MaintenanceSuppressesAlerts(t *testing.T) {
	var hits atomic.Int64
	srv := countingServer(http.StatusInternalServerError, &hits)
	defer srv.Close()

	now := time.Now()
	notifier := &recordingNotifier{}
	sched := NewScheduler(MonitoringConfig{
		Enabled: true,
		Probes:  []Probe{fastProbe("failing", srv.URL, 1)},
		MaintenanceWindows: []MaintenanceWindow{
			{Start: now.Add(-time.Hour), End: now.Add(time.Hour)},
		},
	}, nil, notifier, nil)

	sched.Start()
	time.Sleep(150 * time.Millisecond)
	sched.Stop()

	if notifier.count() != 0 {
		t.Errorf("alerts = %d during maintenance, want 0", notifier.count())
	}
}

func TestScheduler_FailureCountResetsOnSuccess(t *testing.T) {
	// Fail twice, then recover. With threshold 3 no alert may fire, and the
	// counter must be back at zero after the success.
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := &recordingNotifier{}
	sched := NewScheduler(MonitoringConfig{
		Enabled: true,
		Probes:  []Probe{fastProbe("flaky", srv.URL, 3)},
	}, nil, notifier, nil)

	sched.Start()
	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 4 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	sched.Stop()

	if notifier.count() != 0 {
		t.Errorf("alerts = %d, want 0 (recovery before threshold)", notifier.count())
	}
	if got := sched.tracker.count("flaky"); got != 0 {
		t.Errorf("failure count after recovery = %d, want 0", got)
	}
}

func TestScheduler_AddRemoveProbe(t *testing.T) {
	var hits atomic.Int64
	srv := countingServer(http.StatusOK, &hits)
	defer srv.Close()

	sched := NewScheduler(MonitoringConfig{Enabled: true}, nil, nil, nil)
	sched.Start()
	defer sched.Stop()

	if err := sched.AddProbe(fastProbe("web", srv.URL, 3)); err != nil {
		t.Fatalf("AddProbe: %v", err)
	}
	if sched.TimerCount() != 1 {
		t.Errorf("TimerCount() = %d after AddProbe, want 1", sched.TimerCount())
	}

	if err := sched.AddProbe(Probe{URL: srv.URL}); err == nil {
		t.Error("AddProbe accepted a probe without a name")
	}

	sched.RemoveProbe("web")
	if sched.TimerCount() != 0 {
		t.Errorf("TimerCount() = %d after RemoveProbe, want 0", sched.TimerCount())
	}

	// Removing an unknown probe is a no-op.
	sched.RemoveProbe("ghost")
}

func TestScheduler_AddProbeReplacesExisting(t *testing.T) {
	var hits atomic.Int64
	srv := countingServer(http.StatusOK, &hits)
	defer srv.Close()

	sched := NewScheduler(MonitoringConfig{Enabled: true}, nil, nil, nil)
	sched.Start()
	defer sched.Stop()

	if err := sched.AddProbe(fastProbe("web", srv.URL, 3)); err != nil {
		t.Fatalf("AddProbe: %v", err)
	}
	if err := sched.AddProbe(fastProbe("web", srv.URL, 5)); err != nil {
		t.Fatalf("AddProbe replace: %v", err)
	}
	if sched.TimerCount() != 1 {
		t.Errorf("TimerCount() = %d after replacing probe, want 1", sched.TimerCount())
	}
}

func TestScheduler_CheckNow(t *testing.T) {
	okSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer okSrv.Close()
	badSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer badSrv.Close()

	notifier := &recordingNotifier{}
	sched := NewScheduler(MonitoringConfig{
		Enabled: true,
		Probes: []Probe{
			fastProbe("ok", okSrv.URL, 1),
			fastProbe("bad", badSrv.URL, 1),
		},
	}, nil, notifier, nil)

	results := sched.CheckNow(context.Background())
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Probe != "ok" || !results[0].Up {
		t.Errorf("results[0] = %+v, want ok/up", results[0])
	}
	if results[1].Probe != "bad" || results[1].Up {
		t.Errorf("results[1] = %+v, want bad/down", results[1])
	}

	// On-demand runs never touch failure counters or alerts.
	if got := sched.tracker.count("bad"); got != 0 {
		t.Errorf("failure count after CheckNow = %d, want 0", got)
	}
	if notifier.count() != 0 {
		t.Errorf("alerts after CheckNow = %d, want 0", notifier.count())
	}
}

func TestScheduler_StopIdempotent(t *testing.T) {
	sched := NewScheduler(MonitoringConfig{Enabled: true}, nil, nil, nil)
	sched.Start()
	sched.Stop()
	sched.Stop()
}
