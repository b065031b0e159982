// Package authsdk is a client-embeddable authentication session manager. It
// acquires, persists, refreshes, and invalidates credential tokens against an
// envelope-style auth backend, drives a one-time-passcode login flow, and
// classifies failures into recoverable vs. fatal outcomes.
//
// The package is designed for concurrent client workloads: Client methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build]. Credential refresh is single-flight, so any number of
// concurrent 401s collapse into one refresh round trip.
//
// # Architecture boundaries
//
// authsdk is the public surface. It exposes [Client], [Builder], [Config],
// [Classify], and value types (SessionState, MetricsSnapshot, AuditEvent).
// All internal coordination (transport, refresh single-flight, OTP challenge
// bookkeeping, audit dispatch) lives under internal/ and is never exported.
// The credential store is the one public leaf package ([credstore]) so
// embedding applications can supply their own medium or cipher.
//
// # What this package must NOT do
//
//   - Expose HTTP clients, internal stores, or encoding details in its public API.
//   - Perform I/O outside of Client methods (construction via Builder is
//     allocation-only until Build).
//   - Import any sub-package that re-imports authsdk (no import cycles).
package authsdk
