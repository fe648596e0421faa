// Package audit provides the buffered audit dispatcher and the sink
// implementations the engine fans events out to. The admin plane's
// durable audit log is separate: it persists entries synchronously with
// the mutating operation, while this dispatcher is the asynchronous
// observability stream.
package audit
