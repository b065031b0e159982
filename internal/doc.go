// Package internal groups helpers that are intentionally private to authsdk.
//
// # Sub-packages
//
//   - audit — async event dispatch (Dispatcher + Sink implementations)
//   - otp — login OTP challenge state machine
//   - refresh — single-flight credential refresh coordinator and proactive loop
//   - transport — envelope-shaped HTTP gateway with refresh-and-replay
//   - validate — request input validation ahead of any network call
//
// # What this package must NOT do
//
//   - Export types that appear in the public authsdk API.
//   - Be imported by any package outside the authsdk module.
package internal
