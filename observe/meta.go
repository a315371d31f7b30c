package observe

// CheckMeta contains metadata about a health check or uptime probe for
// telemetry purposes.
type CheckMeta struct {
	Name   string // Check or probe name (required)
	Kind   string // Probe kind (http, tcp, ping, dns, ssl) or "check" for dependency checks
	Target string // URL or address the check runs against (optional)
}

// SpanName returns the deterministic span name for this check.
// Format: monitor.check.<name>
func (m CheckMeta) SpanName() string {
	return "monitor.check." + m.Name
}
