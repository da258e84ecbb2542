// Package otel exposes fleet metrics through OpenTelemetry.
//
// Counters become Int64ObservableCounters named like their Prometheus
// counterparts. The authenticate latency histogram is flattened to one
// cumulative gauge per bucket. Extra [Gauge] values, such as live real-time
// connections, are sampled on the same callback.
//
// The caller owns the MeterProvider and passes a Meter in.
package otel
