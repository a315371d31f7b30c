package health

import (
	"encoding/json"
	"net/http"
)

// statusCode maps an aggregate status to the HTTP response code. Unhealthy
// fails health-check consumers; degraded still serves traffic.
func statusCode(status Status) int {
	if status == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// HealthHandler returns an HTTP handler serving the full health snapshot.
// A "force=true" query parameter bypasses the snapshot cache.
func HealthHandler(o *Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		force := r.URL.Query().Get("force") == "true"
		snap := o.CheckHealth(r.Context(), force)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode(snap.Status))
		_ = json.NewEncoder(w).Encode(snap)
	}
}

// LivenessHandler returns an HTTP handler for liveness probes. It always
// responds 200 unless the process cannot respond at all.
func LivenessHandler(o *Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(o.CheckLiveness())
	}
}

// ReadinessHandler returns an HTTP handler for readiness probes. It runs
// only the load-bearing dependency checks.
func ReadinessHandler(o *Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := o.CheckReadiness(r.Context())

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode(snap.Status))
		_ = json.NewEncoder(w).Encode(snap)
	}
}

// RegisterHandlers registers the health endpoints on the given mux.
func RegisterHandlers(mux *http.ServeMux, o *Orchestrator) {
	mux.HandleFunc("/health", HealthHandler(o))
	mux.HandleFunc("/health/live", LivenessHandler(o))
	mux.HandleFunc("/health/ready", ReadinessHandler(o))
}
