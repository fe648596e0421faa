// Package otel bridges engine metrics to OpenTelemetry.
//
// [NewExporter] registers an Int64ObservableCounter per engine counter
// and an Int64ObservableGauge per histogram bucket on the caller's
// Meter. A single callback reads a metrics snapshot on each collection
// cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider; callers supply the Meter.
//   - Mutate engine state.
package otel
