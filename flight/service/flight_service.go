package service

import (
	"context"
	"time"

	"github.com/wricardo/mcp-training/rocketflight/flight/physics"
	"github.com/wricardo/mcp-training/rocketflight/flight/store"
)

// FlightService defines all flight-related operations
type FlightService interface {
	// Flight management
	CreateFlight(ctx context.Context, presetName string) (*FlightInfo, error)
	GetFlight(ctx context.Context, flightID string) (*FlightInfo, error)
	ListFlights(ctx context.Context) ([]*FlightInfo, error)
	DeleteFlight(ctx context.Context, flightID string) error

	// State
	GetState(ctx context.Context, flightID string) (*store.Snapshot, error)
	SetRocketState(ctx context.Context, flightID string, state physics.RocketState) (*store.Snapshot, error)
	Reset(ctx context.Context, flightID string) (*store.Snapshot, error)

	// Physics round-trips. A nil override uses the flight's current rocket state.
	RequestForce(ctx context.Context, flightID string, override *physics.RocketState) (*store.Snapshot, error)
	RequestTrajectory(ctx context.Context, flightID string, override *physics.RocketState) (*store.Snapshot, error)
	Integrate(ctx context.Context, flightID string, override *physics.RocketState) (*store.Snapshot, error)
	RequestVector(ctx context.Context, flightID string, override *physics.RocketState) (*store.Snapshot, error)
	Step(ctx context.Context, flightID string, steps int) (*StepResult, error)
	Refresh(ctx context.Context, flightID string) (*store.Snapshot, error)

	// Presets
	ListPresets(ctx context.Context) ([]*PresetInfo, error)
	GetPreset(ctx context.Context, name string) (*Preset, error)
}

// FlightManager defines flight storage operations
type FlightManager interface {
	Create(id string, preset *Preset) (*Flight, error)
	Get(id string) (*Flight, error)
	List() []*Flight
	Delete(id string) error
	UpdateLastAccessed(id string) error
}

// PresetManager handles launch preset loading
type PresetManager interface {
	LoadPreset(name string) (*Preset, error)
	ListPresets() ([]*PresetInfo, error)
	GetDefault() *Preset
}

// Notifier receives every commit made to a flight's store
type Notifier interface {
	Publish(flightID string, change store.Change)
}

// Flight represents an active flight and its state store
type Flight struct {
	ID             string
	Preset         *Preset
	Store          *store.Store
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
