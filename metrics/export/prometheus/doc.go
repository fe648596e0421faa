// Package prometheus exposes engine metrics to Prometheus.
//
// [NewCollector] wraps an engine as a [prometheus.Collector]; [Collector.Handler]
// mounts it on a private registry and returns the scrape endpoint.
// Counter names are prefixed authcore_*_total; the single histogram is
// authcore_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
