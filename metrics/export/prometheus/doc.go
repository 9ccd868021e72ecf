// Package prometheus renders tokengate metrics in Prometheus text exposition
// format.
//
// Counter names are tokengate_*_total; the single histogram is
// tokengate_authenticate_latency_seconds. Nothing is registered globally:
// callers mount [PrometheusExporter.Handler] where they want it.
package prometheus
