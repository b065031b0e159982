// Package prometheus renders client metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] accepts an [authsdk.Client] and exposes an
// [net/http.Handler] that renders every counter and the request-latency
// histogram. Counter names are prefixed authsdk_*_total; the histogram is
// authsdk_request_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry; callers mount the Handler.
//   - Mutate client state.
package prometheus
