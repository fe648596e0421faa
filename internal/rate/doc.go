// Package rate enforces the policy document's named rate-limit rules.
//
// # Window semantics
//
// The Redis limiter uses fixed-window counters (INCR + EXPIRE on first
// hit) under the "arl:<rule>:<identifier>" key layout. The local limiter
// approximates the same budgets with token buckets for single-process
// embedding without Redis.
//
// # What this package must NOT do
//
//   - Choose which rule applies to an operation (the engine does).
//   - Be imported outside the authcore module.
package rate
