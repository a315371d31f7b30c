package probe

import (
	"fmt"
	"time"
)

// Kind selects the protocol a probe uses against its target.
type Kind string

const (
	KindHTTP Kind = "http"
	KindTCP  Kind = "tcp"
	KindPing Kind = "ping"
	KindDNS  Kind = "dns"
	KindSSL  Kind = "ssl"
)

// Default probe settings applied where a definition leaves a field zero.
const (
	DefaultInterval         = 60 * time.Second
	DefaultTimeout          = 10 * time.Second
	DefaultFailureThreshold = 3
	DefaultWarnDaysExpiry   = 14
)

// AlertPolicy controls when and where a probe's failures are reported.
type AlertPolicy struct {
	// Channels are opaque notification channel names (e.g. "ops", "pager").
	Channels []string `json:"channels,omitempty"`

	// FailureThreshold is the number of consecutive failures required
	// before a failure is treated as alert-worthy. Defaults to 3.
	FailureThreshold int `json:"failure_threshold,omitempty"`

	// Escalate marks alerts from this probe as high severity.
	Escalate bool `json:"escalate,omitempty"`
}

// SSLPolicy controls certificate expiry checking for KindSSL probes.
type SSLPolicy struct {
	CheckCert bool `json:"check_cert"`

	// WarnDaysBeforeExpiry is how close to NotAfter a certificate may get
	// before the probe reports it as failing. Defaults to 14.
	WarnDaysBeforeExpiry int `json:"warn_days_before_expiry,omitempty"`
}

// Probe describes one monitored endpoint.
type Probe struct {
	Name     string        `json:"name"`
	URL      string        `json:"url"`
	Kind     Kind          `json:"kind"`
	Interval time.Duration `json:"interval"`
	Timeout  time.Duration `json:"timeout"`
	Enabled  bool          `json:"enabled"`

	// Regions is advisory placement metadata carried through to exports.
	Regions []string `json:"regions,omitempty"`

	// ExpectedStatusCodes lists HTTP status codes treated as success.
	// Empty means any status below 400 passes.
	ExpectedStatusCodes []int `json:"expected_status_codes,omitempty"`

	// ExpectedBodySubstring, when set, requires the response body to
	// contain the given text for the probe to pass.
	ExpectedBodySubstring string `json:"expected_body_substring,omitempty"`

	Headers map[string]string `json:"headers,omitempty"`

	Alert AlertPolicy `json:"alert,omitempty"`

	SSL *SSLPolicy `json:"ssl,omitempty"`
}

// withDefaults returns a copy of the probe with zero fields filled in.
func (p Probe) withDefaults() Probe {
	if p.Kind == "" {
		p.Kind = KindHTTP
	}
	if p.Interval <= 0 {
		p.Interval = DefaultInterval
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	if p.Alert.FailureThreshold <= 0 {
		p.Alert.FailureThreshold = DefaultFailureThreshold
	}
	if p.SSL != nil && p.SSL.WarnDaysBeforeExpiry <= 0 {
		p.SSL.WarnDaysBeforeExpiry = DefaultWarnDaysExpiry
	}
	return p
}

// Validate reports whether the probe definition is usable.
func (p Probe) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProbe)
	}
	if p.URL == "" {
		return fmt.Errorf("%w: %s: url is required", ErrInvalidProbe, p.Name)
	}
	switch p.Kind {
	case "", KindHTTP, KindTCP, KindPing, KindDNS, KindSSL:
	default:
		return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidProbe, p.Name, p.Kind)
	}
	if p.Interval < 0 {
		return fmt.Errorf("%w: %s: interval must be positive", ErrInvalidProbe, p.Name)
	}
	return nil
}

// MaintenanceWindow suppresses alerting for a span of time. An empty Probes
// list applies the window to every probe.
type MaintenanceWindow struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Probes []string  `json:"probes,omitempty"`
}

// StatusPageConfig describes the public status page tied to this monitor.
type StatusPageConfig struct {
	Enabled bool   `json:"enabled"`
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
}

// MonitoringConfig is the full uptime monitoring definition: the probe set
// plus provider, status page, and maintenance metadata.
type MonitoringConfig struct {
	Enabled            bool                `json:"enabled"`
	Provider           string              `json:"provider,omitempty"`
	Probes             []Probe             `json:"probes"`
	StatusPage         *StatusPageConfig   `json:"status_page,omitempty"`
	MaintenanceWindows []MaintenanceWindow `json:"maintenance_windows,omitempty"`
}

// Validate checks every probe definition and rejects duplicate names.
func (m MonitoringConfig) Validate() error {
	seen := make(map[string]struct{}, len(m.Probes))
	for _, p := range m.Probes {
		if err := p.Validate(); err != nil {
			return err
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("%w: duplicate probe name %q", ErrInvalidProbe, p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return nil
}

// EnabledProbes returns the subset of probes that are enabled, with
// defaults applied.
func (m MonitoringConfig) EnabledProbes() []Probe {
	out := make([]Probe, 0, len(m.Probes))
	for _, p := range m.Probes {
		if p.Enabled {
			out = append(out, p.withDefaults())
		}
	}
	return out
}

// InMaintenance reports whether the named probe is inside any maintenance
// window at the given instant.
func (m MonitoringConfig) InMaintenance(name string, at time.Time) bool {
	for _, w := range m.MaintenanceWindows {
		if at.Before(w.Start) || !at.Before(w.End) {
			continue
		}
		if len(w.Probes) == 0 {
			return true
		}
		for _, p := range w.Probes {
			if p == name {
				return true
			}
		}
	}
	return false
}
