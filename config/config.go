// Package config loads service configuration from YAML files and
// environment variables and converts it into the typed configs the other
// packages consume.
//
// Precedence, highest first: environment variables (UPTIMEOPS_ prefix, keys
// joined with underscores, e.g. UPTIMEOPS_SERVER_PORT), the config file
// (uptimeops.yaml in ./config or the working directory), built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonwraymond/uptimeops/health"
	"github.com/jonwraymond/uptimeops/observe"
	"github.com/jonwraymond/uptimeops/probe"
)

// ErrInvalid indicates configuration that loaded but failed validation.
var ErrInvalid = errors.New("config: invalid configuration")

// Config is the full service configuration tree.
type Config struct {
	Service    ServiceConfig    `mapstructure:"service"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Health     HealthConfig     `mapstructure:"health"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServiceConfig identifies the service instance.
type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// TelemetryConfig configures tracing and metrics.
type TelemetryConfig struct {
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	TraceExporter  string  `mapstructure:"trace_exporter"`
	SamplePct      float64 `mapstructure:"sample_pct"`
	MetricsEnabled bool    `mapstructure:"metrics_enabled"`
	MetricExporter string  `mapstructure:"metric_exporter"`
}

// HealthConfig configures the health orchestrator.
type HealthConfig struct {
	PerCheckTimeout time.Duration            `mapstructure:"per_check_timeout"`
	CacheTTL        time.Duration            `mapstructure:"cache_ttl"`
	EnabledChecks   []string                 `mapstructure:"enabled_checks"`
	Thresholds      map[string]time.Duration `mapstructure:"thresholds"`
	MaxInFlight     int64                    `mapstructure:"max_in_flight"`
	MemoryWarning   float64                  `mapstructure:"memory_warning_threshold"`
	MemoryCritical  float64                  `mapstructure:"memory_critical_threshold"`

	// Dependencies maps dependency check names to the URLs probed for
	// their health (e.g. database -> http://db-proxy/healthz).
	Dependencies map[string]string `mapstructure:"dependencies"`
}

// MonitoringConfig configures uptime probes.
type MonitoringConfig struct {
	Enabled            bool                      `mapstructure:"enabled"`
	Provider           string                    `mapstructure:"provider"`
	Probes             []ProbeConfig             `mapstructure:"probes"`
	StatusPage         StatusPageConfig          `mapstructure:"status_page"`
	MaintenanceWindows []MaintenanceWindowConfig `mapstructure:"maintenance_windows"`
}

// ProbeConfig is a single probe definition as it appears in the file.
type ProbeConfig struct {
	Name                  string            `mapstructure:"name"`
	URL                   string            `mapstructure:"url"`
	Kind                  string            `mapstructure:"kind"`
	Interval              time.Duration     `mapstructure:"interval"`
	Timeout               time.Duration     `mapstructure:"timeout"`
	Enabled               bool              `mapstructure:"enabled"`
	Regions               []string          `mapstructure:"regions"`
	ExpectedStatusCodes   []int             `mapstructure:"expected_status_codes"`
	ExpectedBodySubstring string            `mapstructure:"expected_body_substring"`
	Headers               map[string]string `mapstructure:"headers"`
	Alert                 AlertConfig       `mapstructure:"alert"`
	SSL                   *SSLConfig        `mapstructure:"ssl"`
}

// AlertConfig is a probe's alert policy as it appears in the file.
type AlertConfig struct {
	Channels         []string `mapstructure:"channels"`
	FailureThreshold int      `mapstructure:"failure_threshold"`
	Escalate         bool     `mapstructure:"escalate"`
}

// SSLConfig is a probe's certificate policy as it appears in the file.
type SSLConfig struct {
	CheckCert            bool `mapstructure:"check_cert"`
	WarnDaysBeforeExpiry int  `mapstructure:"warn_days_before_expiry"`
}

// StatusPageConfig describes the public status page.
type StatusPageConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Title   string `mapstructure:"title"`
	URL     string `mapstructure:"url"`
}

// MaintenanceWindowConfig is a maintenance window with RFC 3339 bounds.
type MaintenanceWindowConfig struct {
	Start  string   `mapstructure:"start"`
	End    string   `mapstructure:"end"`
	Probes []string `mapstructure:"probes"`
}

// Load reads configuration from defaults, an optional config file, and the
// environment. A non-empty path pins the config file; otherwise
// uptimeops.yaml is searched for in ./config and the working directory, and
// a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("uptimeops")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("UPTIMEOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "uptimeops")
	v.SetDefault("service.version", "dev")
	v.SetDefault("service.environment", "development")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("log.level", "info")

	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.trace_exporter", "stdout")
	v.SetDefault("telemetry.sample_pct", 1.0)
	v.SetDefault("telemetry.metrics_enabled", false)
	v.SetDefault("telemetry.metric_exporter", "stdout")

	v.SetDefault("health.per_check_timeout", "5s")
	v.SetDefault("health.cache_ttl", "30s")
	v.SetDefault("health.enabled_checks", []string{
		health.CheckDatabase, health.CheckStorage, health.CheckAuth, health.CheckEdgeFunctions,
	})
	v.SetDefault("health.max_in_flight", 64)
	v.SetDefault("health.memory_warning_threshold", 0.75)
	v.SetDefault("health.memory_critical_threshold", 0.90)

	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.provider", "uptimerobot")
}

// Validate checks the loaded configuration, including every probe
// definition and maintenance window.
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("%w: service.name is required", ErrInvalid)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalid, c.Server.Port)
	}
	if c.Health.PerCheckTimeout < 0 || c.Health.CacheTTL < 0 {
		return fmt.Errorf("%w: health timeouts must not be negative", ErrInvalid)
	}
	if _, err := c.ProbeConfig(); err != nil {
		return err
	}
	return nil
}

// ObserveConfig converts the telemetry and logging sections into an
// observability config.
func (c *Config) ObserveConfig() observe.Config {
	return observe.Config{
		ServiceName: c.Service.Name,
		Version:     c.Service.Version,
		Tracing: observe.TracingConfig{
			Enabled:   c.Telemetry.TracingEnabled,
			Exporter:  c.Telemetry.TraceExporter,
			SamplePct: c.Telemetry.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.Telemetry.MetricsEnabled,
			Exporter: c.Telemetry.MetricExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   c.Log.Level,
		},
	}
}

// HealthConfig converts the health section into an orchestrator config.
// Build information and telemetry sinks are supplied by the caller.
func (c *Config) HealthConfig(build *health.BuildInfo, logger observe.Logger, metrics observe.Metrics, tracer observe.Tracer) health.Config {
	return health.Config{
		PerCheckTimeout: c.Health.PerCheckTimeout,
		CacheTTL:        c.Health.CacheTTL,
		EnabledChecks:   c.Health.EnabledChecks,
		Thresholds:      health.Thresholds(c.Health.Thresholds),
		MaxInFlight:     c.Health.MaxInFlight,
		Memory: health.MemoryCheckerConfig{
			WarningThreshold:  c.Health.MemoryWarning,
			CriticalThreshold: c.Health.MemoryCritical,
		},
		Version:     c.Service.Version,
		Environment: c.Service.Environment,
		Build:       build,
		Logger:      logger,
		Metrics:     metrics,
		Tracer:      tracer,
	}
}

// ProbeConfig converts the monitoring section into a probe configuration,
// parsing maintenance window bounds and validating every probe.
func (c *Config) ProbeConfig() (probe.MonitoringConfig, error) {
	cfg := probe.MonitoringConfig{
		Enabled:  c.Monitoring.Enabled,
		Provider: c.Monitoring.Provider,
		Probes:   make([]probe.Probe, 0, len(c.Monitoring.Probes)),
	}

	for _, p := range c.Monitoring.Probes {
		converted := probe.Probe{
			Name:                  p.Name,
			URL:                   p.URL,
			Kind:                  probe.Kind(p.Kind),
			Interval:              p.Interval,
			Timeout:               p.Timeout,
			Enabled:               p.Enabled,
			Regions:               p.Regions,
			ExpectedStatusCodes:   p.ExpectedStatusCodes,
			ExpectedBodySubstring: p.ExpectedBodySubstring,
			Headers:               p.Headers,
			Alert: probe.AlertPolicy{
				Channels:         p.Alert.Channels,
				FailureThreshold: p.Alert.FailureThreshold,
				Escalate:         p.Alert.Escalate,
			},
		}
		if p.SSL != nil {
			converted.SSL = &probe.SSLPolicy{
				CheckCert:            p.SSL.CheckCert,
				WarnDaysBeforeExpiry: p.SSL.WarnDaysBeforeExpiry,
			}
		}
		cfg.Probes = append(cfg.Probes, converted)
	}

	if c.Monitoring.StatusPage.Enabled || c.Monitoring.StatusPage.URL != "" {
		sp := c.Monitoring.StatusPage
		cfg.StatusPage = &probe.StatusPageConfig{Enabled: sp.Enabled, Title: sp.Title, URL: sp.URL}
	}

	for _, w := range c.Monitoring.MaintenanceWindows {
		start, err := time.Parse(time.RFC3339, w.Start)
		if err != nil {
			return probe.MonitoringConfig{}, fmt.Errorf("%w: maintenance window start %q: %v", ErrInvalid, w.Start, err)
		}
		end, err := time.Parse(time.RFC3339, w.End)
		if err != nil {
			return probe.MonitoringConfig{}, fmt.Errorf("%w: maintenance window end %q: %v", ErrInvalid, w.End, err)
		}
		if !end.After(start) {
			return probe.MonitoringConfig{}, fmt.Errorf("%w: maintenance window ends before it starts", ErrInvalid)
		}
		cfg.MaintenanceWindows = append(cfg.MaintenanceWindows, probe.MaintenanceWindow{
			Start: start, End: end, Probes: w.Probes,
		})
	}

	if err := cfg.Validate(); err != nil {
		return probe.MonitoringConfig{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return cfg, nil
}
