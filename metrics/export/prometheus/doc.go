// Package prometheus renders goFleet metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] accepts a [goFleet.Engine] and exposes an
// [http.Handler] for the /metrics route. Counter names are prefixed
// gofleet_*_total; the single histogram is
// gofleet_authenticate_latency_seconds. Extra gauges, such as live
// connection counts, are added with [PrometheusExporter.WithGauge].
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
