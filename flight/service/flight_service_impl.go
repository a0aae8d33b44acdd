package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/wricardo/mcp-training/rocketflight/flight/physics"
	"github.com/wricardo/mcp-training/rocketflight/flight/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// flightServiceImpl implements the FlightService interface
type flightServiceImpl struct {
	flights  FlightManager
	presets  PresetManager
	notifier Notifier
	logger   *zap.Logger

	mu            sync.Mutex
	unsubscribers map[string]func()
}

// Option configures the flight service
type Option func(*flightServiceImpl)

// WithNotifier publishes every store commit of flights created by the service
func WithNotifier(notifier Notifier) Option {
	return func(s *flightServiceImpl) {
		s.notifier = notifier
	}
}

// WithLogger sets the service logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *flightServiceImpl) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewFlightService creates a new flight service instance
func NewFlightService(flights FlightManager, presets PresetManager, opts ...Option) FlightService {
	s := &flightServiceImpl{
		flights:       flights,
		presets:       presets,
		logger:        zap.NewNop(),
		unsubscribers: make(map[string]func()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateFlight launches a new flight from a preset. An empty name uses the
// default preset.
func (s *flightServiceImpl) CreateFlight(ctx context.Context, presetName string) (*FlightInfo, error) {
	var preset *Preset
	if presetName == "" {
		preset = s.presets.GetDefault()
	} else {
		var err error
		preset, err = s.presets.LoadPreset(presetName)
		if err != nil {
			if errors.Is(err, ErrPresetNotFound) {
				return nil, s.presetNotFound(presetName)
			}
			return nil, fmt.Errorf("failed to load preset %s: %w", presetName, err)
		}
	}

	flight, err := s.flights.Create("", preset)
	if err != nil {
		return nil, fmt.Errorf("failed to create flight: %w", err)
	}

	if s.notifier != nil {
		id := flight.ID
		unsubscribe := flight.Store.Subscribe(func(change store.Change) {
			s.notifier.Publish(id, change)
		})
		s.mu.Lock()
		s.unsubscribers[strings.ToLower(id)] = unsubscribe
		s.mu.Unlock()
	}

	s.logger.Info("flight created",
		zap.String("flight_id", flight.ID),
		zap.String("preset", preset.Name),
	)

	return s.info(flight), nil
}

// GetFlight retrieves flight information
func (s *flightServiceImpl) GetFlight(ctx context.Context, flightID string) (*FlightInfo, error) {
	flight, err := s.touch(flightID)
	if err != nil {
		return nil, err
	}
	return s.info(flight), nil
}

// ListFlights returns all active flights
func (s *flightServiceImpl) ListFlights(ctx context.Context) ([]*FlightInfo, error) {
	flights := s.flights.List()
	result := make([]*FlightInfo, 0, len(flights))
	for _, flight := range flights {
		result = append(result, s.info(flight))
	}
	return result, nil
}

// DeleteFlight removes a flight and stops publishing its changes
func (s *flightServiceImpl) DeleteFlight(ctx context.Context, flightID string) error {
	if err := s.flights.Delete(flightID); err != nil {
		return fmt.Errorf("failed to delete flight %s: %w", flightID, err)
	}

	s.mu.Lock()
	key := strings.ToLower(flightID)
	unsubscribe := s.unsubscribers[key]
	delete(s.unsubscribers, key)
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	s.logger.Info("flight deleted", zap.String("flight_id", flightID))
	return nil
}

// GetState returns the flight's current snapshot
func (s *flightServiceImpl) GetState(ctx context.Context, flightID string) (*store.Snapshot, error) {
	flight, err := s.touch(flightID)
	if err != nil {
		return nil, err
	}
	snap := flight.Store.Snapshot()
	return &snap, nil
}

// SetRocketState replaces the flight's rocket state
func (s *flightServiceImpl) SetRocketState(ctx context.Context, flightID string, state physics.RocketState) (*store.Snapshot, error) {
	flight, err := s.touch(flightID)
	if err != nil {
		return nil, err
	}
	flight.Store.SetRocketState(state)
	snap := flight.Store.Snapshot()
	return &snap, nil
}

// Reset puts the flight back to its preset and clears derived values
func (s *flightServiceImpl) Reset(ctx context.Context, flightID string) (*store.Snapshot, error) {
	flight, err := s.touch(flightID)
	if err != nil {
		return nil, err
	}

	initial := physics.DefaultRocketState()
	if flight.Preset != nil {
		initial = flight.Preset.RocketState
	}

	flight.Store.SetRocketState(initial)
	flight.Store.SetForce(physics.ForceBreakdown{})
	flight.Store.SetTrajectory(nil)
	flight.Store.SetVector(physics.Vector{})

	s.logger.Debug("flight reset", zap.String("flight_id", flight.ID))

	snap := flight.Store.Snapshot()
	return &snap, nil
}

// RequestForce asks the physics service for the force breakdown
func (s *flightServiceImpl) RequestForce(ctx context.Context, flightID string, override *physics.RocketState) (*store.Snapshot, error) {
	return s.roundTrip(ctx, flightID, override, "force", (*store.Store).RequestForce)
}

// RequestTrajectory asks the physics service for the predicted trajectory
func (s *flightServiceImpl) RequestTrajectory(ctx context.Context, flightID string, override *physics.RocketState) (*store.Snapshot, error) {
	return s.roundTrip(ctx, flightID, override, "trajectory", (*store.Store).RequestTrajectory)
}

// Integrate advances the flight's rocket state by one physics step
func (s *flightServiceImpl) Integrate(ctx context.Context, flightID string, override *physics.RocketState) (*store.Snapshot, error) {
	return s.roundTrip(ctx, flightID, override, "integrate", (*store.Store).RequestIntegration)
}

// RequestVector asks the physics service for the display vector
func (s *flightServiceImpl) RequestVector(ctx context.Context, flightID string, override *physics.RocketState) (*store.Snapshot, error) {
	return s.roundTrip(ctx, flightID, override, "vector", (*store.Store).RequestVector)
}

type storeRequest func(*store.Store, context.Context, physics.RocketState) error

func (s *flightServiceImpl) roundTrip(ctx context.Context, flightID string, override *physics.RocketState, name string, request storeRequest) (*store.Snapshot, error) {
	flight, err := s.touch(flightID)
	if err != nil {
		return nil, err
	}

	state := flight.Store.RocketState()
	if override != nil {
		state = *override
	}

	if err := request(flight.Store, ctx, state); err != nil {
		s.logger.Warn("physics request failed",
			zap.String("flight_id", flight.ID),
			zap.String("request", name),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%s request for flight %s: %w", name, flight.ID, err)
	}

	snap := flight.Store.Snapshot()
	return &snap, nil
}

// Step runs sequential integrations starting from the current rocket state
func (s *flightServiceImpl) Step(ctx context.Context, flightID string, steps int) (*StepResult, error) {
	if steps < MinSteps || steps > MaxSteps {
		return nil, fmt.Errorf("%w: %d (must be between %d and %d)", ErrInvalidSteps, steps, MinSteps, MaxSteps)
	}

	flight, err := s.touch(flightID)
	if err != nil {
		return nil, err
	}

	result := &StepResult{
		RequestedSteps: steps,
		Start:          flight.Store.RocketState(),
	}

	var stepErr error
	for i := 0; i < steps; i++ {
		if err := flight.Store.RequestIntegration(ctx, flight.Store.RocketState()); err != nil {
			stepErr = fmt.Errorf("step %d for flight %s: %w", i+1, flight.ID, err)
			result.StoppedReason = err.Error()
			break
		}
		result.StepsExecuted++
	}

	result.State = flight.Store.Snapshot()

	s.logger.Debug("flight stepped",
		zap.String("flight_id", flight.ID),
		zap.Int("requested", steps),
		zap.Int("executed", result.StepsExecuted),
	)

	return result, stepErr
}

// Refresh requests force, trajectory and vector for the current rocket
// state concurrently. Every request runs to completion; the first failure
// is returned.
func (s *flightServiceImpl) Refresh(ctx context.Context, flightID string) (*store.Snapshot, error) {
	flight, err := s.touch(flightID)
	if err != nil {
		return nil, err
	}

	state := flight.Store.RocketState()

	var g errgroup.Group
	g.Go(func() error { return flight.Store.RequestForce(ctx, state) })
	g.Go(func() error { return flight.Store.RequestTrajectory(ctx, state) })
	g.Go(func() error { return flight.Store.RequestVector(ctx, state) })

	err = g.Wait()
	snap := flight.Store.Snapshot()
	if err != nil {
		return &snap, fmt.Errorf("refresh flight %s: %w", flight.ID, err)
	}
	return &snap, nil
}

// ListPresets returns all available presets
func (s *flightServiceImpl) ListPresets(ctx context.Context) ([]*PresetInfo, error) {
	return s.presets.ListPresets()
}

// GetPreset retrieves a specific preset
func (s *flightServiceImpl) GetPreset(ctx context.Context, name string) (*Preset, error) {
	preset, err := s.presets.LoadPreset(name)
	if err != nil {
		if errors.Is(err, ErrPresetNotFound) {
			return nil, s.presetNotFound(name)
		}
		return nil, fmt.Errorf("failed to load preset %s: %w", name, err)
	}
	return preset, nil
}

// touch looks up a flight and refreshes its last access time
func (s *flightServiceImpl) touch(flightID string) (*Flight, error) {
	flight, err := s.flights.Get(flightID)
	if err != nil {
		return nil, fmt.Errorf("flight %s: %w", flightID, err)
	}
	_ = s.flights.UpdateLastAccessed(flightID)
	return flight, nil
}

func (s *flightServiceImpl) info(flight *Flight) *FlightInfo {
	presetName := ""
	if flight.Preset != nil {
		presetName = flight.Preset.Name
	}
	return &FlightInfo{
		ID:             flight.ID,
		PresetName:     presetName,
		CreatedAt:      flight.CreatedAt,
		LastAccessedAt: flight.LastAccessedAt,
		State:          flight.Store.Snapshot(),
	}
}

// presetNotFound lists the available preset IDs alongside the error
func (s *flightServiceImpl) presetNotFound(name string) error {
	infos, err := s.presets.ListPresets()
	if err != nil || len(infos) == 0 {
		return fmt.Errorf("%w: '%s'. Use /api/presets to list available presets", ErrPresetNotFound, name)
	}
	ids := make([]string, 0, len(infos))
	for _, info := range infos {
		ids = append(ids, info.PresetID)
	}
	return fmt.Errorf("%w: '%s'. Available presets: %v", ErrPresetNotFound, name, ids)
}
