// Package prometheus exposes authcore metrics through client_golang.
//
// [Exporter] is a prometheus.Collector that reads
// [authcore.Engine.MetricsSnapshot] on every scrape. Counter names are
// prefixed authcore_*_total; the single histogram is
// authcore_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry. Callers register the
//     collector or mount [Exporter.Handler], which uses a private registry.
//   - Mutate engine state.
package prometheus
