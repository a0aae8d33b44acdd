// Package mcp exposes rocketflight to AI agents over the Model Context
// Protocol.
//
// The Client is a thin MCP server whose tools proxy to the REST API, so an
// agent and a dashboard watching the same flight see the same commits.
//
// MCP Tools:
//   - create_flight, list_flights, get_flight: flight management
//   - flight_state, set_rocket_state, reset_flight: state inspection and edits
//   - request_force, request_trajectory, integrate, request_vector: one
//     physics round-trip each, with an optional rocket state override
//   - step: several integrations back to back
//   - refresh: force, trajectory and vector at once
//   - list_presets: available launch presets
//
// Transport Modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer())
//   - HTTP: client.Handler() mounted at POST /mcp
package mcp
