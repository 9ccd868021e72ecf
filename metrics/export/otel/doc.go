// Package otel publishes tokengate counters and the authenticate latency
// histogram through OpenTelemetry observable instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per counter. The
// histogram becomes a "_bucket" gauge with one data point per "le" bound plus
// a "_count" gauge. A single callback reads a metrics snapshot on each
// collection cycle. Callers own the MeterProvider.
package otel
