// Package metrics keeps the in-process counters behind tokengate's
// Prometheus and OpenTelemetry exporters.
//
// Every counter is an atomic.Uint64 padded to its own cache line. The only
// histogram is authenticate latency, eight fixed buckets from 100µs to +Inf.
// Recording never allocates. [Metrics.Snapshot] copies the current values for
// the exporters under metrics/export.
//
// The package performs no I/O and imports nothing from tokengate.
package metrics
