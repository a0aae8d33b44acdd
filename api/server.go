package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/wricardo/mcp-training/rocketflight/flight/physics"
	"github.com/wricardo/mcp-training/rocketflight/flight/service"
	"github.com/wricardo/mcp-training/rocketflight/flight/store"
	physicsapi "github.com/wricardo/mcp-training/rocketflight/transport/physics"
	"github.com/wricardo/mcp-training/rocketflight/transport/websocket"
	"go.uber.org/zap"
)

// Server represents the REST API server
type Server struct {
	service service.FlightService
	hub     *websocket.Hub
	router  *mux.Router
	logger  *zap.Logger
}

// Option configures the server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new API server. hub may be nil, in which case /ws
// answers 503.
func NewServer(flightService service.FlightService, hub *websocket.Hub, opts ...Option) *Server {
	s := &Server{
		service: flightService,
		hub:     hub,
		router:  mux.NewRouter(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Flight management
	api.HandleFunc("/flights", s.handleCreateFlight).Methods("POST")
	api.HandleFunc("/flights", s.handleListFlights).Methods("GET")
	api.HandleFunc("/flights/{id}", s.handleGetFlight).Methods("GET")
	api.HandleFunc("/flights/{id}", s.handleDeleteFlight).Methods("DELETE")

	// State
	api.HandleFunc("/flights/{id}/state", s.handleGetState).Methods("GET")
	api.HandleFunc("/flights/{id}/rocket", s.handleSetRocketState).Methods("PUT")
	api.HandleFunc("/flights/{id}/reset", s.handleReset).Methods("POST")

	// Physics round-trips
	api.HandleFunc("/flights/{id}/force", s.roundTrip(s.service.RequestForce)).Methods("POST")
	api.HandleFunc("/flights/{id}/trajectory", s.roundTrip(s.service.RequestTrajectory)).Methods("POST")
	api.HandleFunc("/flights/{id}/integrate", s.roundTrip(s.service.Integrate)).Methods("POST")
	api.HandleFunc("/flights/{id}/vector", s.roundTrip(s.service.RequestVector)).Methods("POST")
	api.HandleFunc("/flights/{id}/step", s.handleStep).Methods("POST")
	api.HandleFunc("/flights/{id}/refresh", s.handleRefresh).Methods("POST")

	// Presets
	api.HandleFunc("/presets", s.handleListPresets).Methods("GET")
	api.HandleFunc("/presets/{name}", s.handleGetPreset).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
}

// Mount attaches an extra handler at path, e.g. the MCP endpoint
func (s *Server) Mount(path string, handler http.Handler) {
	s.router.Handle(path, handler)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service errors to HTTP statuses. extra fields are
// merged into the body.
func (s *Server) respondServiceError(w http.ResponseWriter, err error, extra map[string]interface{}) {
	status := statusFor(err)
	body := map[string]interface{}{"error": err.Error()}

	var httpErr *physicsapi.HTTPError
	if errors.As(err, &httpErr) {
		body["upstream_status"] = httpErr.StatusCode
	}
	for k, v := range extra {
		body[k] = v
	}

	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed", zap.Int("status", status), zap.Error(err))
	}
	respondJSON(w, status, body)
}

func statusFor(err error) int {
	var (
		httpErr   *physicsapi.HTTPError
		decodeErr *physicsapi.DecodeError
		urlErr    *url.Error
	)
	switch {
	case errors.Is(err, service.ErrFlightNotFound), errors.Is(err, service.ErrPresetNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidSteps):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrStaleResponse):
		return http.StatusConflict
	case errors.Is(err, store.ErrNoPhysicsClient):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &httpErr), errors.As(err, &decodeErr), errors.As(err, &urlErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeOptional reads an optional JSON body into v. It reports false when
// the body is empty.
func decodeOptional(r *http.Request, v interface{}) (bool, error) {
	if r.Body == nil {
		return false, nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Flight Handlers

func (s *Server) handleCreateFlight(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Preset string `json:"preset,omitempty"`
	}
	if _, err := decodeOptional(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Preset == "" {
		req.Preset = r.URL.Query().Get("preset")
	}

	flight, err := s.service.CreateFlight(r.Context(), req.Preset)
	if err != nil {
		s.respondServiceError(w, err, nil)
		return
	}

	respondJSON(w, http.StatusCreated, flight)
}

func (s *Server) handleListFlights(w http.ResponseWriter, r *http.Request) {
	flights, err := s.service.ListFlights(r.Context())
	if err != nil {
		s.respondServiceError(w, err, nil)
		return
	}

	query := r.URL.Query()
	sortBy := query.Get("sort") // "created", "accessed" (default)
	order := query.Get("order") // "asc", "desc" (default)
	if sortBy == "" {
		sortBy = "accessed"
	}
	if order == "" {
		order = "desc"
	}

	sort.Slice(flights, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = flights[i].CreatedAt, flights[j].CreatedAt
		} else {
			ti, tj = flights[i].LastAccessedAt, flights[j].LastAccessedAt
		}
		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	total := len(flights)
	if l, err := strconv.Atoi(query.Get("limit")); err == nil && l > 0 && l < len(flights) {
		flights = flights[:l]
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(flights),
		"total":   total,
		"flights": flights,
		"sort":    sortBy,
		"order":   order,
	})
}

func (s *Server) handleGetFlight(w http.ResponseWriter, r *http.Request) {
	flight, err := s.service.GetFlight(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, err, nil)
		return
	}
	respondJSON(w, http.StatusOK, flight)
}

func (s *Server) handleDeleteFlight(w http.ResponseWriter, r *http.Request) {
	flightID := mux.Vars(r)["id"]

	if err := s.service.DeleteFlight(r.Context(), flightID); err != nil {
		s.respondServiceError(w, err, nil)
		return
	}

	if s.hub != nil {
		s.hub.BroadcastEvent(flightID, websocket.EventDeleted)
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Flight %s deleted", flightID),
	})
}

// State Handlers

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.GetState(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, err, nil)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleSetRocketState(w http.ResponseWriter, r *http.Request) {
	var state physics.RocketState
	ok, err := decodeOptional(r, &state)
	if err != nil || !ok {
		respondError(w, http.StatusBadRequest, "rocket state body required")
		return
	}

	snap, err := s.service.SetRocketState(r.Context(), mux.Vars(r)["id"], state)
	if err != nil {
		s.respondServiceError(w, err, nil)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.Reset(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, err, nil)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// Physics Handlers

type roundTripFunc func(ctx context.Context, flightID string, override *physics.RocketState) (*store.Snapshot, error)

// roundTrip serves one physics request. An optional RocketState body
// overrides the flight's current state for this request only.
func (s *Server) roundTrip(call roundTripFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var state physics.RocketState
		ok, err := decodeOptional(r, &state)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid rocket state body")
			return
		}

		var override *physics.RocketState
		if ok {
			override = &state
		}

		snap, err := call(r.Context(), mux.Vars(r)["id"], override)
		if err != nil {
			s.respondServiceError(w, err, nil)
			return
		}
		respondJSON(w, http.StatusOK, snap)
	}
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Steps int `json:"steps"`
	}{Steps: 1}
	if _, err := decodeOptional(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if v := r.URL.Query().Get("steps"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "steps must be an integer")
			return
		}
		req.Steps = n
	}

	result, err := s.service.Step(r.Context(), mux.Vars(r)["id"], req.Steps)
	if err != nil {
		var extra map[string]interface{}
		if result != nil {
			extra = map[string]interface{}{"result": result}
		}
		s.respondServiceError(w, err, extra)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.Refresh(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		var extra map[string]interface{}
		if snap != nil {
			extra = map[string]interface{}{"state": snap}
		}
		s.respondServiceError(w, err, extra)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// Preset Handlers

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := s.service.ListPresets(r.Context())
	if err != nil {
		s.respondServiceError(w, err, nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(presets),
		"presets": presets,
	})
}

func (s *Server) handleGetPreset(w http.ResponseWriter, r *http.Request) {
	preset, err := s.service.GetPreset(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		s.respondServiceError(w, err, nil)
		return
	}
	respondJSON(w, http.StatusOK, preset)
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "websocket hub not running")
		return
	}

	flightID := r.URL.Query().Get("flight")
	if flightID == "" {
		respondError(w, http.StatusBadRequest, "flight parameter required")
		return
	}

	snap, err := s.service.GetState(r.Context(), flightID)
	if err != nil {
		s.respondServiceError(w, err, nil)
		return
	}

	s.hub.ServeWS(w, r, flightID, snap)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
