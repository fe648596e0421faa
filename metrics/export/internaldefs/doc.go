// Package internaldefs exposes the stable metric name and bucket
// definitions shared by the exporter implementations.
//
// Counter and histogram definitions live here so the Prometheus and
// OTel exporters expose identical names, help strings, and bucket
// boundaries for the same engine metric. Changes here affect all
// exporters simultaneously.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
