// Package observe provides observability primitives for health checks and
// uptime probes.
//
// It is a pure instrumentation library: no check execution, no transport, no
// I/O beyond exporter setup. Consumers wire the observer into the health
// orchestrator, the probe scheduler, or server middleware.
package observe
