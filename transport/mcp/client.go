package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/mcp-training/rocketflight/flight/physics"
	"github.com/wricardo/mcp-training/rocketflight/flight/service"
	"github.com/wricardo/mcp-training/rocketflight/flight/store"
)

// Version reported to MCP clients
const Version = "1.0.0"

// rocketStateFields are the numeric fields set_rocket_state accepts
var rocketStateFields = []string{"x", "y", "vx", "vy", "ax", "ay", "fuel", "mass", "thrust"}

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Rocket Flight",
		Version,
		server.WithToolCapabilities(true),
		server.WithInstructions(`Rocket Flight - MCP Interface

This is a thin client that proxies all requests to the rocketflight REST API.

Each flight holds a rocket state (x, y, vx, vy, ax, ay, fuel, mass, thrust)
plus the last force breakdown, trajectory and vector the physics service
returned for it.

TYPICAL LOOP:
1. create_flight (optionally with a preset from list_presets)
2. refresh to see forces, the predicted trajectory and the vector
3. step to advance the simulation, or set_rocket_state to change thrust
4. flight_state to inspect

The four single physics tools accept an optional "state" object that is used
for that request instead of the flight's current rocket state. Only integrate
changes the rocket state.`),
	)

	c.registerTools()
}

func flightIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Flight ID",
	}
}

func stateProperty() map[string]interface{} {
	props := make(map[string]interface{}, len(rocketStateFields))
	for _, field := range rocketStateFields {
		props[field] = map[string]interface{}{"type": "number"}
	}
	return map[string]interface{}{
		"type":        "object",
		"description": "Rocket state fields to use for this request; omitted fields keep the flight's current values (optional)",
		"properties":  props,
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Flight management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_flight",
		Description: "Create a new flight, optionally from a named preset",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"preset": map[string]interface{}{
					"type":        "string",
					"description": "Preset ID (optional, see list_presets)",
				},
			},
		},
	}, c.handleCreateFlight)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_flights",
		Description: "List all active flights",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListFlights)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_flight",
		Description: "Get details of a specific flight",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"flight_id": flightIDProperty()},
			Required:   []string{"flight_id"},
		},
	}, c.handleGetFlight)

	// State
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "flight_state",
		Description: "Get the flight's rocket state, force breakdown, trajectory and vector",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"flight_id": flightIDProperty()},
			Required:   []string{"flight_id"},
		},
	}, c.handleFlightState)

	setProps := map[string]interface{}{"flight_id": flightIDProperty()}
	for _, field := range rocketStateFields {
		setProps[field] = map[string]interface{}{
			"type":        "number",
			"description": fmt.Sprintf("New %s (optional, unchanged when omitted)", field),
		}
	}
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "set_rocket_state",
		Description: "Change fields of the flight's rocket state",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: setProps,
			Required:   []string{"flight_id"},
		},
	}, c.handleSetRocketState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_flight",
		Description: "Reset the flight to its preset and clear derived values",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"flight_id": flightIDProperty()},
			Required:   []string{"flight_id"},
		},
	}, c.handleReset)

	// Physics
	physicsTools := []struct {
		name, path, description string
	}{
		{"request_force", "force", "Compute the force breakdown (thrust, gravity, resultant)"},
		{"request_trajectory", "trajectory", "Compute the predicted trajectory"},
		{"integrate", "integrate", "Advance the rocket state by one physics step"},
		{"request_vector", "vector", "Compute the display vector"},
	}
	for _, tool := range physicsTools {
		c.mcpServer.AddTool(mcp.Tool{
			Name:        tool.name,
			Description: tool.description,
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"flight_id": flightIDProperty(),
					"state":     stateProperty(),
				},
				Required: []string{"flight_id"},
			},
		}, c.physicsHandler(tool.path))
	}

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "step",
		Description: "Run several integrations back to back",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"flight_id": flightIDProperty(),
				"steps": map[string]interface{}{
					"type":        "integer",
					"minimum":     service.MinSteps,
					"maximum":     service.MaxSteps,
					"description": "Number of integrations (default 1)",
				},
			},
			Required: []string{"flight_id"},
		},
	}, c.handleStep)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "refresh",
		Description: "Request force, trajectory and vector for the current state at once",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"flight_id": flightIDProperty()},
			Required:   []string{"flight_id"},
		},
	}, c.handleRefresh)

	// Presets
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_presets",
		Description: "List available launch presets",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListPresets)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Handler serves single JSON-RPC messages over HTTP POST
func (c *Client) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := c.mcpServer.HandleMessage(r.Context(), body)

		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(responseData)
	})
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error          string `json:"error"`
			UpstreamStatus int    `json:"upstream_status"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			if errResp.UpstreamStatus != 0 {
				return fmt.Errorf("%s (physics service status %d)", errResp.Error, errResp.UpstreamStatus)
			}
			return fmt.Errorf("%s", errResp.Error)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// arguments returns the tool call arguments as a map
func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

// requireFlightID reads flight_id from args. IDs that would change the
// proxied path are rejected.
func requireFlightID(args map[string]interface{}) (string, error) {
	flightID, _ := args["flight_id"].(string)
	flightID = strings.TrimSpace(flightID)
	switch {
	case flightID == "":
		return "", fmt.Errorf("flight_id is required")
	case flightID == "." || flightID == "..":
		return "", fmt.Errorf("invalid flight_id %q", flightID)
	}
	return flightID, nil
}

func flightPath(flightID, suffix string) string {
	return "/api/flights/" + url.PathEscape(flightID) + suffix
}

// Tool handlers

func (c *Client) handleCreateFlight(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	preset, _ := args["preset"].(string)

	body := map[string]string{}
	if preset != "" {
		body["preset"] = preset
	}

	var flight service.FlightInfo
	if err := c.apiCall(ctx, "POST", "/api/flights", body, &flight); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatFlightInfo(&flight)), nil
}

func (c *Client) handleListFlights(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count   int                  `json:"count"`
		Flights []service.FlightInfo `json:"flights"`
	}

	if err := c.apiCall(ctx, "GET", "/api/flights", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Flights (%d):\n\n", response.Count)
	for _, f := range response.Flights {
		rs := f.State.RocketState
		fmt.Fprintf(&b, "- %s (Preset: %s, y=%.2f, fuel=%.2f, Created: %s)\n",
			f.ID, f.PresetName, rs.Y, rs.Fuel, f.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetFlight(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	flightID, err := requireFlightID(arguments(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var flight service.FlightInfo
	if err := c.apiCall(ctx, "GET", flightPath(flightID, ""), nil, &flight); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatFlightInfo(&flight)), nil
}

func (c *Client) handleFlightState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	flightID, err := requireFlightID(arguments(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var snap store.Snapshot
	if err := c.apiCall(ctx, "GET", flightPath(flightID, "/state"), nil, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSnapshot(&snap)), nil
}

func (c *Client) handleSetRocketState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	flightID, err := requireFlightID(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var snap store.Snapshot
	if err := c.apiCall(ctx, "GET", flightPath(flightID, "/state"), nil, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	state, changed := applyStateArgs(snap.RocketState, args)
	if len(changed) == 0 {
		return mcp.NewToolResultError("no rocket state fields given"), nil
	}

	if err := c.apiCall(ctx, "PUT", flightPath(flightID, "/rocket"), state, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Updated %s\n\n%s", strings.Join(changed, ", "), formatSnapshot(&snap))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	flightID, err := requireFlightID(arguments(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var snap store.Snapshot
	if err := c.apiCall(ctx, "POST", flightPath(flightID, "/reset"), nil, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("Flight reset to preset\n\n" + formatSnapshot(&snap)), nil
}

// physicsHandler proxies one of the four single physics requests
func (c *Client) physicsHandler(path string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := arguments(request)
		flightID, err := requireFlightID(args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var snap store.Snapshot
		var body interface{}
		if raw, ok := args["state"].(map[string]interface{}); ok {
			if err := c.apiCall(ctx, "GET", flightPath(flightID, "/state"), nil, &snap); err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			state, _ := applyStateArgs(snap.RocketState, raw)
			body = state
		}

		if err := c.apiCall(ctx, "POST", flightPath(flightID, "/"+path), body, &snap); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(formatSnapshot(&snap)), nil
	}
}

func (c *Client) handleStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	flightID, err := requireFlightID(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	steps := 1
	if v, ok := args["steps"].(float64); ok {
		steps = int(v)
	}

	var result service.StepResult
	if err := c.apiCall(ctx, "POST", flightPath(flightID, "/step"), map[string]int{"steps": steps}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatStepResult(flightID, &result)), nil
}

func (c *Client) handleRefresh(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	flightID, err := requireFlightID(arguments(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var snap store.Snapshot
	if err := c.apiCall(ctx, "POST", flightPath(flightID, "/refresh"), nil, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSnapshot(&snap)), nil
}

func (c *Client) handleListPresets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Presets []service.PresetInfo `json:"presets"`
	}
	if err := c.apiCall(ctx, "GET", "/api/presets", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Presets:\n\n")
	for _, p := range response.Presets {
		rs := p.RocketState
		fmt.Fprintf(&b, "- %s: %s (fuel=%g, mass=%g, thrust=%g)\n", p.PresetID, p.Name, rs.Fuel, rs.Mass, rs.Thrust)
		if p.Description != "" {
			fmt.Fprintf(&b, "  %s\n", p.Description)
		}
	}

	return mcp.NewToolResultText(b.String()), nil
}

// applyStateArgs copies numeric fields present in args onto state and
// returns the names it changed.
func applyStateArgs(state physics.RocketState, args map[string]interface{}) (physics.RocketState, []string) {
	targets := map[string]*float64{
		"x": &state.X, "y": &state.Y,
		"vx": &state.Vx, "vy": &state.Vy,
		"ax": &state.Ax, "ay": &state.Ay,
		"fuel": &state.Fuel, "mass": &state.Mass, "thrust": &state.Thrust,
	}

	var changed []string
	for _, field := range rocketStateFields {
		if v, ok := args[field].(float64); ok {
			*targets[field] = v
			changed = append(changed, field)
		}
	}
	return state, changed
}

// Formatting

func formatFlightInfo(flight *service.FlightInfo) string {
	return fmt.Sprintf("Flight: %s\nPreset: %s\nCreated: %s\n\n%s",
		flight.ID, flight.PresetName, flight.CreatedAt.Format(time.RFC3339), formatSnapshot(&flight.State))
}

func formatSnapshot(snap *store.Snapshot) string {
	var b strings.Builder
	rs := snap.RocketState

	b.WriteString("Rocket:\n")
	fmt.Fprintf(&b, "  position: (%.2f, %.2f)\n", rs.X, rs.Y)
	fmt.Fprintf(&b, "  velocity: (%.2f, %.2f)\n", rs.Vx, rs.Vy)
	fmt.Fprintf(&b, "  acceleration: (%.2f, %.2f)\n", rs.Ax, rs.Ay)
	fmt.Fprintf(&b, "  fuel: %.2f  mass: %.2f  thrust: %.2f\n", rs.Fuel, rs.Mass, rs.Thrust)

	f := snap.Force
	fmt.Fprintf(&b, "Force: thrust %.2f, gravity %.2f, resultant %.2f\n", f.ThrustY, f.GravityY, f.ResultFY)
	fmt.Fprintf(&b, "Vector: (%.2f, %.2f)\n", snap.Vector.X, snap.Vector.Y)
	b.WriteString(formatTrajectory(snap.Trajectory))

	return b.String()
}

func formatTrajectory(t physics.Trajectory) string {
	if t.IsEmpty() {
		return "Trajectory: none\n"
	}
	points, err := t.Points()
	if err != nil {
		return fmt.Sprintf("Trajectory: %s\n", string(t))
	}
	if len(points) == 0 {
		return "Trajectory: 0 points\n"
	}

	first, last := points[0], points[len(points)-1]
	apex := first
	for _, p := range points {
		if p.Y > apex.Y {
			apex = p
		}
	}
	return fmt.Sprintf("Trajectory: %d points from (%.2f, %.2f) to (%.2f, %.2f), apex y=%.2f\n",
		len(points), first.X, first.Y, last.X, last.Y, apex.Y)
}

func formatStepResult(flightID string, result *service.StepResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Flight %s: %d/%d steps executed\n", flightID, result.StepsExecuted, result.RequestedSteps)
	if result.StoppedReason != "" {
		fmt.Fprintf(&b, "Stopped: %s\n", result.StoppedReason)
	}
	start, end := result.Start, result.State.RocketState
	fmt.Fprintf(&b, "Altitude: %.2f -> %.2f\n", start.Y, end.Y)
	fmt.Fprintf(&b, "Fuel: %.2f -> %.2f\n\n", start.Fuel, end.Fuel)
	b.WriteString(formatSnapshot(&result.State))
	return b.String()
}
