// Package logx wraps zerolog behind a small structured-logging API.
//
// The zero Logger value is a safe no-op. Loggers created from a Service stay
// "live" across Service.Apply() calls, so sinks and levels can be swapped at
// runtime (config hot reload) without re-wiring components.
package logx
