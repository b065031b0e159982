// Package otp owns the life of one verification-code challenge: issuance,
// client-side expiry, bounded verification attempts, and resend cooldown.
//
// The machine never sees the code the server generated. Client-side expiry
// and the attempt bound are optimistic UX signals; the backend verify call,
// supplied by the caller as a delegate, is the sole source of truth.
package otp
