// Package export renders a monitoring configuration into the configuration
// format of an external uptime provider. The output is a declarative JSON
// document suitable for that provider's import tooling; nothing here talks
// to a provider API.
package export

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/jonwraymond/uptimeops/probe"
)

// Provider identifies a supported external uptime provider.
type Provider string

const (
	ProviderUptimeRobot Provider = "uptimerobot"
	ProviderPingdom     Provider = "pingdom"
	ProviderBetterStack Provider = "betterstack"
)

// Providers lists every provider with a dedicated output format.
func Providers() []Provider {
	return []Provider{ProviderUptimeRobot, ProviderPingdom, ProviderBetterStack}
}

// kindCodes maps each probe kind to its type code per provider. Every
// kind/provider pair must have an entry; ValidateMappings enforces that at
// startup so a gap fails loudly instead of exporting a broken document.
var kindCodes = map[probe.Kind]map[Provider]string{
	probe.KindHTTP: {
		ProviderUptimeRobot: "1",
		ProviderPingdom:     "http",
		ProviderBetterStack: "status",
	},
	probe.KindTCP: {
		ProviderUptimeRobot: "4",
		ProviderPingdom:     "tcp",
		ProviderBetterStack: "tcp",
	},
	probe.KindPing: {
		ProviderUptimeRobot: "3",
		ProviderPingdom:     "ping",
		ProviderBetterStack: "ping",
	},
	probe.KindDNS: {
		ProviderUptimeRobot: "5",
		ProviderPingdom:     "dns",
		ProviderBetterStack: "dns",
	},
	probe.KindSSL: {
		ProviderUptimeRobot: "2",
		ProviderPingdom:     "http",
		ProviderBetterStack: "ssl",
	},
}

var allKinds = []probe.Kind{probe.KindHTTP, probe.KindTCP, probe.KindPing, probe.KindDNS, probe.KindSSL}

// code returns the provider's type code for a kind. A kind with no table
// entry passes through unchanged rather than exporting an empty code.
func code(kind probe.Kind, provider Provider) string {
	if c := kindCodes[kind][provider]; c != "" {
		return c
	}
	return string(kind)
}

// ValidateMappings verifies the kind/provider code table is complete.
// Call it at configuration load time.
func ValidateMappings() error {
	for _, kind := range allKinds {
		codes, ok := kindCodes[kind]
		if !ok {
			return fmt.Errorf("export: no provider codes for kind %q", kind)
		}
		for _, p := range Providers() {
			if codes[p] == "" {
				return fmt.Errorf("export: kind %q has no code for provider %q", kind, p)
			}
		}
	}
	return nil
}

// Export renders the enabled probes of a monitoring configuration in the
// given provider's format. An unrecognized provider falls back to a raw
// passthrough dump of the probe definitions; Export fails only when JSON
// marshaling itself fails.
func Export(cfg probe.MonitoringConfig, provider Provider) (string, error) {
	probes := cfg.EnabledProbes()

	var doc any
	switch provider {
	case ProviderUptimeRobot:
		doc = uptimeRobotDocument(probes)
	case ProviderPingdom:
		doc = pingdomDocument(probes)
	case ProviderBetterStack:
		doc = betterStackDocument(cfg, probes)
	default:
		doc = passthroughDocument{Provider: string(provider), Probes: probes}
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("export: marshaling %s document: %w", provider, err)
	}
	return string(out), nil
}

type uptimeRobotMonitor struct {
	FriendlyName string `json:"friendly_name"`
	URL          string `json:"url"`
	Type         string `json:"type"`
	Interval     int    `json:"interval"` // seconds
}

type uptimeRobotDoc struct {
	Monitors []uptimeRobotMonitor `json:"monitors"`
}

func uptimeRobotDocument(probes []probe.Probe) uptimeRobotDoc {
	doc := uptimeRobotDoc{Monitors: make([]uptimeRobotMonitor, 0, len(probes))}
	for _, p := range probes {
		doc.Monitors = append(doc.Monitors, uptimeRobotMonitor{
			FriendlyName: p.Name,
			URL:          p.URL,
			Type:         code(p.Kind, ProviderUptimeRobot),
			Interval:     int(p.Interval.Seconds()),
		})
	}
	return doc
}

type pingdomCheck struct {
	Name       string   `json:"name"`
	Host       string   `json:"host"`
	Type       string   `json:"type"`
	Resolution int      `json:"resolution"` // minutes
	Tags       []string `json:"tags,omitempty"`
}

type pingdomDoc struct {
	Checks []pingdomCheck `json:"checks"`
}

func pingdomDocument(probes []probe.Probe) pingdomDoc {
	doc := pingdomDoc{Checks: make([]pingdomCheck, 0, len(probes))}
	for _, p := range probes {
		doc.Checks = append(doc.Checks, pingdomCheck{
			Name:       p.Name,
			Host:       p.URL,
			Type:       code(p.Kind, ProviderPingdom),
			Resolution: minutesRoundedUp(p.Interval),
			Tags:       p.Regions,
		})
	}
	return doc
}

type betterStackMonitor struct {
	Name           string   `json:"name"`
	URL            string   `json:"url"`
	MonitorType    string   `json:"monitor_type"`
	CheckFrequency int      `json:"check_frequency"` // seconds
	Regions        []string `json:"regions,omitempty"`
	Escalate       bool     `json:"escalate,omitempty"`
}

type betterStackStatusPage struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url,omitempty"`
}

type betterStackDoc struct {
	Monitors   []betterStackMonitor   `json:"monitors"`
	StatusPage *betterStackStatusPage `json:"status_page,omitempty"`
}

func betterStackDocument(cfg probe.MonitoringConfig, probes []probe.Probe) betterStackDoc {
	doc := betterStackDoc{Monitors: make([]betterStackMonitor, 0, len(probes))}
	for _, p := range probes {
		doc.Monitors = append(doc.Monitors, betterStackMonitor{
			Name:           p.Name,
			URL:            p.URL,
			MonitorType:    code(p.Kind, ProviderBetterStack),
			CheckFrequency: int(p.Interval.Seconds()),
			Regions:        p.Regions,
			Escalate:       p.Alert.Escalate,
		})
	}
	if cfg.StatusPage != nil && cfg.StatusPage.Enabled {
		doc.StatusPage = &betterStackStatusPage{Title: cfg.StatusPage.Title, URL: cfg.StatusPage.URL}
	}
	return doc
}

// passthroughDocument is the fallback format for providers without a
// dedicated renderer.
type passthroughDocument struct {
	Provider string        `json:"provider"`
	Probes   []probe.Probe `json:"probes"`
}

// minutesRoundedUp converts an interval to whole minutes, rounding up with a
// floor of one minute.
func minutesRoundedUp(d time.Duration) int {
	m := int(math.Ceil(d.Minutes()))
	if m < 1 {
		return 1
	}
	return m
}
