// Package health implements dependency health checking and aggregation.
//
// This package provides the building blocks for a service health surface: a
// Checker interface for individual dependency checks, a Runner that executes
// checks under per-check timeouts without ever propagating a failure, a pure
// status aggregation function, and an Orchestrator that owns the configured
// check set, caches snapshots, and answers liveness and readiness queries.
//
// # Core Concepts
//
// A Checker is any component that can report its health status. The Status
// type represents the health state: Healthy, Degraded, or Unhealthy. A single
// Unhealthy check forces the whole snapshot Unhealthy; health reporting
// favors false alarms over masking a broken dependency.
//
// # Basic Usage
//
//	dbCheck := health.NewCheckerFunc(health.CheckDatabase, func(ctx context.Context) health.Result {
//	    if err := pool.Ping(ctx); err != nil {
//	        return health.Unhealthy("database unreachable", err)
//	    }
//	    return health.Healthy("connected")
//	})
//
//	orch := health.NewOrchestrator(health.Config{
//	    Version:     "1.4.2",
//	    Environment: "production",
//	}, dbCheck)
//
//	snap := orch.CheckHealth(ctx, false)
//	if snap.Status == health.StatusUnhealthy {
//	    // shed traffic
//	}
//
// # HTTP Endpoints
//
// The package provides HTTP handlers for the standard probe endpoints:
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, orch)
//	// GET /health        full snapshot, 503 when unhealthy
//	// GET /health/live   liveness, always 200
//	// GET /health/ready  load-bearing checks only
package health
