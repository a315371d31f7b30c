package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestMux(deps ...Checker) *http.ServeMux {
	orch := NewOrchestrator(Config{Version: "test"}, deps...)
	mux := http.NewServeMux()
	RegisterHandlers(mux, orch)
	return mux
}

func TestHealthHandler_Healthy(t *testing.T) {
	mux := newTestMux(healthyChecker(CheckDatabase), healthyChecker(CheckAuth))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status code = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %v, want application/json", ct)
	}

	var snap Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("response is not a valid snapshot: %v", err)
	}
	if snap.Version != "test" {
		t.Errorf("Version = %v, want 'test'", snap.Version)
	}
}

func TestHealthHandler_Unhealthy503(t *testing.T) {
	broken := NewCheckerFunc(CheckDatabase, func(ctx context.Context) Result {
		return Unhealthy("connection refused", errors.New("dial tcp: refused"))
	})
	mux := newTestMux(broken)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status code = %d, want 503", rec.Code)
	}
}

func TestHealthHandler_Degraded200(t *testing.T) {
	slow := NewCheckerFunc(CheckDatabase, func(ctx context.Context) Result {
		return Degraded("slow responses")
	})
	mux := newTestMux(slow)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status code = %d, degraded should still be 200", rec.Code)
	}
}

func TestHealthHandler_ForceQuery(t *testing.T) {
	runs := 0
	counting := NewCheckerFunc(CheckDatabase, func(ctx context.Context) Result {
		runs++
		return Healthy("ok")
	})
	mux := newTestMux(counting)

	for _, path := range []string{"/health", "/health", "/health?force=true"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		mux.ServeHTTP(httptest.NewRecorder(), req)
	}

	// First call populates the cache, second hits it, forced call re-runs.
	if runs != 2 {
		t.Errorf("checks ran %d times, want 2", runs)
	}
}

func TestLivenessHandler_AlwaysOK(t *testing.T) {
	broken := NewCheckerFunc(CheckDatabase, func(ctx context.Context) Result {
		return Unhealthy("down", errors.New("down"))
	})
	mux := newTestMux(broken)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status code = %d, liveness must be 200 regardless of dependency health", rec.Code)
	}

	var live Liveness
	if err := json.Unmarshal(rec.Body.Bytes(), &live); err != nil {
		t.Fatalf("response is not valid: %v", err)
	}
	if live.Status != "ok" {
		t.Errorf("Status = %v, want 'ok'", live.Status)
	}
}

func TestReadinessHandler_SubsetAndCode(t *testing.T) {
	brokenStorage := NewCheckerFunc(CheckStorage, func(ctx context.Context) Result {
		return Unhealthy("bucket list failed", errors.New("forbidden"))
	})
	mux := newTestMux(healthyChecker(CheckDatabase), brokenStorage, healthyChecker(CheckAuth))

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	// Storage is not load-bearing; readiness ignores it.
	if rec.Code != http.StatusOK {
		t.Errorf("status code = %d, want 200", rec.Code)
	}

	var snap Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("response is not a valid snapshot: %v", err)
	}
	for _, res := range snap.Checks {
		if res.Name != CheckDatabase && res.Name != CheckAuth {
			t.Errorf("readiness response includes %q; only database and auth may appear", res.Name)
		}
	}
}

func TestReadinessHandler_Unready503(t *testing.T) {
	brokenAuth := NewCheckerFunc(CheckAuth, func(ctx context.Context) Result {
		return Unhealthy("session fetch failed", errors.New("timeout"))
	})
	mux := newTestMux(healthyChecker(CheckDatabase), brokenAuth)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status code = %d, want 503", rec.Code)
	}
}
