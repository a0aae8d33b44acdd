package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wricardo/mcp-training/rocketflight/flight/physics"
	"github.com/wricardo/mcp-training/rocketflight/flight/service"
	"github.com/wricardo/mcp-training/rocketflight/flight/store"
)

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

type recordedCall struct {
	Method string
	Path   string
	Body   map[string]interface{}
}

// apiStub answers REST calls from a path table and records them
func apiStub(t *testing.T, responses map[string]interface{}) (*Client, *[]recordedCall) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []recordedCall
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := recordedCall{Method: r.Method, Path: r.URL.Path}
		_ = json.NewDecoder(r.Body).Decode(&call.Body)
		mu.Lock()
		calls = append(calls, call)
		mu.Unlock()

		resp, ok := responses[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "flight not found"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return NewClient(server.URL), &calls
}

func sampleSnapshot() store.Snapshot {
	snap := store.New(nil).Snapshot()
	snap.RocketState.Y = 12.5
	snap.Force = physics.ForceBreakdown{ThrustY: 10, GravityY: -5, ResultFY: 5}
	snap.Vector = physics.Vector{X: 1, Y: 2}
	snap.Trajectory = physics.Trajectory(`{"x":[0,1,2],"y":[0,9,4]}`)
	return snap
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8090/")

	require.NotNil(t, client)
	assert.Equal(t, "http://localhost:8090", client.baseURL)
	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.GetMCPServer())
}

func TestClient_apiCall(t *testing.T) {
	client, calls := apiStub(t, map[string]interface{}{
		"POST /api/flights": service.FlightInfo{ID: "f-1"},
	})

	var flight service.FlightInfo
	err := client.apiCall(context.Background(), "POST", "/api/flights", map[string]string{"preset": "heavy"}, &flight)
	require.NoError(t, err)
	assert.Equal(t, "f-1", flight.ID)
	require.Len(t, *calls, 1)
	assert.Equal(t, "heavy", (*calls)[0].Body["preset"])
}

func TestClient_apiCall_Errors(t *testing.T) {
	t.Run("error body", func(t *testing.T) {
		client, _ := apiStub(t, nil)
		err := client.apiCall(context.Background(), "GET", "/api/flights/x", nil, nil)
		require.Error(t, err)
		assert.Equal(t, "flight not found", err.Error())
	})

	t.Run("upstream status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"error":"physics /physics/vector: HTTP error 500","upstream_status":500}`))
		}))
		defer server.Close()

		err := NewClient(server.URL).apiCall(context.Background(), "POST", "/api/flights/x/vector", nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "physics service status 500")
	})

	t.Run("bare status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		err := NewClient(server.URL).apiCall(context.Background(), "GET", "/", nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "API error: 500")
	})

	t.Run("unreachable", func(t *testing.T) {
		err := NewClient("http://127.0.0.1:1").apiCall(context.Background(), "GET", "/", nil, nil)
		assert.Error(t, err)
	})
}

func TestClient_createFlight(t *testing.T) {
	client, calls := apiStub(t, map[string]interface{}{
		"POST /api/flights": service.FlightInfo{ID: "f-42", PresetName: "Heavy", State: sampleSnapshot()},
	})

	result, err := client.handleCreateFlight(context.Background(), callRequest("create_flight", map[string]interface{}{"preset": "heavy"}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "Flight: f-42")
	assert.Contains(t, text, "Preset: Heavy")
	assert.Equal(t, "heavy", (*calls)[0].Body["preset"])
}

func TestClient_nilArguments(t *testing.T) {
	client, _ := apiStub(t, map[string]interface{}{
		"GET /api/flights": map[string]interface{}{"count": 0, "flights": []interface{}{}},
	})

	result, err := client.handleListFlights(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "Active Flights (0)")
}

func TestClient_flightStateNotFound(t *testing.T) {
	client, _ := apiStub(t, nil)

	result, err := client.handleFlightState(context.Background(), callRequest("flight_state", map[string]interface{}{"flight_id": "nope"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "flight not found")
}

func TestClient_setRocketStateMergesFields(t *testing.T) {
	snap := sampleSnapshot()
	client, calls := apiStub(t, map[string]interface{}{
		"GET /api/flights/f-1/state":  snap,
		"PUT /api/flights/f-1/rocket": snap,
	})

	result, err := client.handleSetRocketState(context.Background(), callRequest("set_rocket_state", map[string]interface{}{
		"flight_id": "f-1",
		"thrust":    float64(250),
		"fuel":      float64(40),
	}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "Updated fuel, thrust")

	require.Len(t, *calls, 2)
	put := (*calls)[1]
	assert.Equal(t, "PUT", put.Method)
	assert.Equal(t, 250.0, put.Body["thrust"])
	assert.Equal(t, 40.0, put.Body["fuel"])
	assert.Equal(t, 12.5, put.Body["y"])
	assert.Equal(t, 500.0, put.Body["mass"])
}

func TestClient_setRocketStateRequiresFields(t *testing.T) {
	client, _ := apiStub(t, map[string]interface{}{
		"GET /api/flights/f-1/state": sampleSnapshot(),
	})

	result, err := client.handleSetRocketState(context.Background(), callRequest("set_rocket_state", map[string]interface{}{"flight_id": "f-1"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestClient_physicsTools(t *testing.T) {
	snap := sampleSnapshot()
	for _, path := range []string{"force", "trajectory", "integrate", "vector"} {
		t.Run(path, func(t *testing.T) {
			client, calls := apiStub(t, map[string]interface{}{
				"GET /api/flights/f-1/state":    snap,
				"POST /api/flights/f-1/" + path: snap,
			})
			handler := client.physicsHandler(path)

			result, err := handler(context.Background(), callRequest(path, map[string]interface{}{"flight_id": "f-1"}))
			require.NoError(t, err)
			assert.Contains(t, resultText(t, result), "Force: thrust 10.00")
			require.Len(t, *calls, 1)
			assert.Nil(t, (*calls)[0].Body)
		})
	}
}

func TestClient_physicsToolOverlaysCurrentState(t *testing.T) {
	snap := sampleSnapshot()
	client, calls := apiStub(t, map[string]interface{}{
		"GET /api/flights/f-1/state":  snap,
		"POST /api/flights/f-1/force": snap,
	})

	override := map[string]interface{}{"y": float64(100)}
	result, err := client.physicsHandler("force")(context.Background(), callRequest("force", map[string]interface{}{"flight_id": "f-1", "state": override}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	require.Len(t, *calls, 2)
	post := (*calls)[1]
	assert.Equal(t, "POST", post.Method)
	assert.Equal(t, 100.0, post.Body["y"])
	assert.Equal(t, 500.0, post.Body["mass"], "omitted fields keep the flight's values")
	assert.Equal(t, 100.0, post.Body["fuel"])
	assert.Equal(t, 100.0, post.Body["thrust"])
}

func TestClient_flightIDValidation(t *testing.T) {
	client, calls := apiStub(t, nil)

	for _, id := range []interface{}{nil, "", "  ", ".", ".."} {
		result, err := client.handleFlightState(context.Background(), callRequest("flight_state", map[string]interface{}{"flight_id": id}))
		require.NoError(t, err)
		assert.True(t, result.IsError, "flight_id %v", id)
	}
	assert.Empty(t, *calls, "invalid IDs never reach the API")
}

func TestFlightPath(t *testing.T) {
	assert.Equal(t, "/api/flights/f-1/state", flightPath("f-1", "/state"))
	assert.Equal(t, "/api/flights/a%2F..%2Fpresets/state", flightPath("a/../presets", "/state"))
	assert.Equal(t, "/api/flights/with%20space", flightPath("with space", ""))
}

func TestClient_step(t *testing.T) {
	start := physics.DefaultRocketState()
	end := sampleSnapshot()
	client, calls := apiStub(t, map[string]interface{}{
		"POST /api/flights/f-1/step": service.StepResult{RequestedSteps: 3, StepsExecuted: 3, Start: start, State: end},
	})

	result, err := client.handleStep(context.Background(), callRequest("step", map[string]interface{}{"flight_id": "f-1", "steps": float64(3)}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "3/3 steps executed")
	assert.Contains(t, text, "Altitude: 0.00 -> 12.50")
	assert.Equal(t, 3.0, (*calls)[0].Body["steps"])
}

func TestClient_listPresets(t *testing.T) {
	client, _ := apiStub(t, map[string]interface{}{
		"GET /api/presets": map[string]interface{}{
			"presets": []service.PresetInfo{{PresetID: "heavy", Name: "Heavy Lift", Description: "Big", RocketState: physics.RocketState{Fuel: 400, Mass: 2000, Thrust: 450}}},
		},
	})

	result, err := client.handleListPresets(context.Background(), callRequest("list_presets", nil))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "heavy: Heavy Lift (fuel=400, mass=2000, thrust=450)")
	assert.Contains(t, text, "Big")
}

func TestFormatTrajectory(t *testing.T) {
	assert.Equal(t, "Trajectory: none\n", formatTrajectory(nil))
	assert.Contains(t, formatTrajectory(physics.Trajectory(`{"x":[0,1,2],"y":[0,9,4]}`)), "3 points from (0.00, 0.00) to (2.00, 4.00), apex y=9.00")
	assert.Equal(t, "Trajectory: \"opaque\"\n", formatTrajectory(physics.Trajectory(`"opaque"`)))
}

func TestHandler(t *testing.T) {
	client := NewClient("http://localhost:8090")
	handler := client.Handler()

	t.Run("rejects GET", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/mcp", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})

	t.Run("initialize", func(t *testing.T) {
		body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1"}}}`
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("POST", "/mcp", strings.NewReader(body)))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Rocket Flight")
	})

	t.Run("lists tools", func(t *testing.T) {
		body := `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("POST", "/mcp", strings.NewReader(body)))

		require.Equal(t, http.StatusOK, w.Code)
		for _, name := range []string{"create_flight", "list_flights", "get_flight", "flight_state", "set_rocket_state",
			"request_force", "request_trajectory", "integrate", "request_vector", "step", "refresh", "reset_flight", "list_presets"} {
			assert.Contains(t, w.Body.String(), `"`+name+`"`)
		}
	})
}
