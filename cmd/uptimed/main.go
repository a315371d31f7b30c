// Command uptimed runs the health and uptime monitoring daemon: it serves
// the health endpoints for this service's dependencies and schedules the
// configured uptime probes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jonwraymond/uptimeops/config"
	"github.com/jonwraymond/uptimeops/export"
	"github.com/jonwraymond/uptimeops/health"
	"github.com/jonwraymond/uptimeops/observe"
	"github.com/jonwraymond/uptimeops/probe"
)

// Stamped at build time via -ldflags.
var (
	commit    = "unknown"
	branch    = "unknown"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to the config file (default: search for uptimeops.yaml)")
	exportProvider := flag.String("export", "", "render the probe config for a provider (uptimerobot|pingdom|betterstack) and exit")
	flag.Parse()

	if err := run(*configPath, *exportProvider); err != nil {
		fmt.Fprintf(os.Stderr, "uptimed: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, exportProvider string) error {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "uptimed: loading .env: %v\n", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := export.ValidateMappings(); err != nil {
		return err
	}

	mon, err := cfg.ProbeConfig()
	if err != nil {
		return err
	}

	if exportProvider != "" {
		doc, err := export.Export(mon, export.Provider(exportProvider))
		if err != nil {
			return err
		}
		fmt.Println(doc)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs, err := observe.NewObserver(ctx, cfg.ObserveConfig())
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "uptimed: telemetry shutdown: %v\n", err)
		}
	}()
	logger := obs.Logger()

	metrics, err := observe.NewMetrics(obs.Meter())
	if err != nil {
		return err
	}
	tracer := observe.NewTracer(obs.Tracer())

	build := &health.BuildInfo{Commit: commit, Branch: branch, BuildTime: buildTime}
	orch := health.NewOrchestrator(
		cfg.HealthConfig(build, logger, metrics, tracer),
		dependencyCheckers(cfg.Health.Dependencies)...,
	)

	executor := probe.NewExecutor(logger, metrics, tracer)
	sched := probe.NewScheduler(mon, executor, probe.NewLogNotifier(logger), logger)
	sched.Start()
	defer sched.Stop()

	mux := http.NewServeMux()
	health.RegisterHandlers(mux, orch)

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "http server listening",
			observe.Field{Key: "addr", Value: srv.Addr},
			observe.Field{Key: "environment", Value: cfg.Service.Environment},
			observe.Field{Key: "version", Value: cfg.Service.Version},
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// dependencyCheckers builds an HTTP checker per configured dependency URL,
// in stable name order.
func dependencyCheckers(deps map[string]string) []health.Checker {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	client := &http.Client{}
	checkers := make([]health.Checker, 0, len(names))
	for _, name := range names {
		checkers = append(checkers, httpChecker(name, deps[name], client))
	}
	return checkers
}

// httpChecker reports a dependency healthy when its health URL answers with
// a non-5xx status. Latency classification against thresholds happens in
// the runner, not here.
func httpChecker(name, url string, client *http.Client) health.Checker {
	return health.NewCheckerFunc(name, func(ctx context.Context) health.Result {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return health.Unhealthy(fmt.Sprintf("invalid health url %q", url), err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return health.Unhealthy("", fmt.Errorf("%w: %v", health.ErrCheckFailed, err))
		}
		resp.Body.Close()
		if resp.StatusCode >= http.StatusInternalServerError {
			return health.Unhealthy(fmt.Sprintf("dependency returned %s", resp.Status), health.ErrCheckFailed)
		}
		return health.Healthy(fmt.Sprintf("dependency returned %s", resp.Status))
	})
}
