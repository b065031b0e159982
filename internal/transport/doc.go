// Package transport is the HTTP gateway to the authentication backend.
//
// Every backend response carries a uniform envelope with a success flag,
// a human-readable message and an opaque data payload. The gateway decodes
// the envelope, converts failures into APIError values and, for a 401 on an
// authenticated call, coordinates exactly one credential refresh followed by
// a single replay of the original request.
package transport
