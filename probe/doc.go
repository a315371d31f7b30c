// Package probe implements scheduled external uptime monitoring.
//
// A Probe describes one externally reachable endpoint and how to watch it:
// protocol kind (HTTP, TCP, Ping, DNS, SSL), polling interval, timeout,
// response expectations, and an alert policy. The Executor runs a single
// probe and classifies the outcome; the Scheduler owns one recurring timer
// per enabled probe and routes failures through consecutive-failure counting
// before they become alert-worthy.
//
// Probes are distinct from in-process dependency checks (package health):
// they exercise the public surface from the outside, on their own clocks.
//
// # Basic Usage
//
//	cfg := probe.MonitoringConfig{
//	    Enabled: true,
//	    Probes: []probe.Probe{{
//	        Name:     "homepage",
//	        URL:      "https://example.com",
//	        Kind:     probe.KindHTTP,
//	        Interval: 60 * time.Second,
//	        Enabled:  true,
//	        Alert:    probe.AlertPolicy{Channels: []string{"ops"}, FailureThreshold: 3},
//	    }},
//	}
//
//	sched := probe.NewScheduler(cfg, probe.NewExecutor(logger, metrics, tracer), probe.NewLogNotifier(logger), logger)
//	sched.Start()
//	defer sched.Stop()
package probe
