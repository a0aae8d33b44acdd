// Package physics is the HTTP client for the remote physics service.
//
// Every call is a POST of a JSON-encoded RocketState to one of four paths:
//
//	/physics/force       -> ForceBreakdown
//	/physics/trajectory  -> Trajectory (stored verbatim)
//	/physics/integrate   -> RocketState
//	/physics/vector      -> Vector
//
// All four go through a single helper that encodes the body, performs the
// request, optionally checks the response status and decodes the JSON reply.
//
// Status policy:
//
// By default only the vector call rejects a non-2xx response with an
// *HTTPError; the other three decode whatever body comes back. Pass
// WithUniformStatusCheck to apply the status check to all four.
//
// Errors:
//
//   - *HTTPError: non-2xx status on a checked path
//   - *DecodeError: the body was not valid JSON for the expected type
//   - anything else: transport failure, wrapped with the request path
//
// Timeouts come from the caller's context and, if configured, from the
// underlying http.Client. The client never retries.
package physics
