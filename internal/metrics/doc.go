// Package metrics is the in-process metrics registry: lock-free atomic
// counters plus optional latency histograms, snapshotted for export.
// Exporters live under metrics/export.
package metrics
