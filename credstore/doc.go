// Package credstore persists the client's credential pair and user profile
// between process runs.
//
// A [Store] is a small pipeline: a TokenPair is encoded into a versioned
// binary record, sealed by a pluggable [Cipher], and written to a pluggable
// [Medium]. When the medium rejects a write the store degrades to a
// process-local memory holder for the remainder of the process lifetime;
// persisted data older than the staleness ceiling is evicted on load.
//
// The cipher is a reversible transform, not a security boundary. The default
// [Base64Cipher] matches what shipped originally; production embedders are
// expected to substitute a real cipher without touching the Store contract.
package credstore
