// Package api provides the HTTP REST API for rocketflight dashboards.
//
// Endpoints:
//
// Flight Management:
//   - POST /api/flights - Create a flight ({"preset": "heavy"}, optional)
//   - GET /api/flights - List flights (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/flights/{id} - Get a flight
//   - DELETE /api/flights/{id} - Delete a flight
//
// State:
//   - GET /api/flights/{id}/state - Current store snapshot
//   - PUT /api/flights/{id}/rocket - Replace the rocket state
//   - POST /api/flights/{id}/reset - Back to the flight's preset
//
// Physics:
//   - POST /api/flights/{id}/force
//   - POST /api/flights/{id}/trajectory
//   - POST /api/flights/{id}/integrate
//   - POST /api/flights/{id}/vector
//   - POST /api/flights/{id}/step - {"steps": N} or ?steps=N, 1 to 100
//   - POST /api/flights/{id}/refresh - force, trajectory and vector at once
//
// The four single requests accept an optional RocketState body that
// replaces the flight's current state for that request only.
//
// Presets:
//   - GET /api/presets
//   - GET /api/presets/{name}
//
// Other:
//   - GET /ws?flight={id} - WebSocket commit stream
//   - GET /healthz
//
// Errors:
//
// Failures return {"error": "..."}. Unknown flights and presets are 404, a
// response discarded as stale is 409, and physics service failures are 502.
// When the physics service answered with an error status the body also
// carries "upstream_status".
package api
