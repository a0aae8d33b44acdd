package store

import (
	"context"
	"errors"
	"sync"

	"github.com/wricardo/mcp-training/rocketflight/flight/physics"
	"go.uber.org/zap"
)

// ErrStaleResponse is returned when the stale-response guard drops a reply
// because a newer request for the same entity has already committed.
var ErrStaleResponse = errors.New("stale response discarded")

// Entity names one of the four pieces of state
type Entity string

const (
	EntityRocketState Entity = "rocket_state"
	EntityForce       Entity = "force"
	EntityTrajectory  Entity = "trajectory"
	EntityVector      Entity = "vector"
)

// PhysicsClient is the remote service the request operations call
type PhysicsClient interface {
	Force(ctx context.Context, state physics.RocketState) (physics.ForceBreakdown, error)
	Trajectory(ctx context.Context, state physics.RocketState) (physics.Trajectory, error)
	Integrate(ctx context.Context, state physics.RocketState) (physics.RocketState, error)
	Vector(ctx context.Context, state physics.RocketState) (physics.Vector, error)
}

// Snapshot is a copy of all four entities at one instant
type Snapshot struct {
	RocketState physics.RocketState    `json:"rocket_state"`
	Force       physics.ForceBreakdown `json:"force"`
	Trajectory  physics.Trajectory     `json:"trajectory"`
	Vector      physics.Vector         `json:"vector"`
}

// Change describes one commit
type Change struct {
	Entity   Entity   `json:"entity"`
	Snapshot Snapshot `json:"state"`
}

// Listener receives every commit
type Listener func(Change)

// Store is the state container for one flight
type Store struct {
	mu          sync.RWMutex
	rocketState physics.RocketState
	force       physics.ForceBreakdown
	trajectory  physics.Trajectory
	vector      physics.Vector

	physics PhysicsClient
	logger  *zap.Logger

	guard     bool
	issued    map[Entity]uint64
	committed map[Entity]uint64

	// notifyMu is taken before mu and held until listeners return, so
	// listeners see commits in the order they were applied.
	notifyMu sync.Mutex

	listenersMu  sync.RWMutex
	listeners    map[int]Listener
	nextListener int
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the store logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStaleResponseGuard drops replies that arrive after a newer request for
// the same entity has committed.
func WithStaleResponseGuard() Option {
	return func(s *Store) {
		s.guard = true
	}
}

// WithInitialRocketState overrides the default starting rocket state
func WithInitialRocketState(state physics.RocketState) Option {
	return func(s *Store) {
		s.rocketState = state
	}
}

// New creates a store with default entity values
func New(client PhysicsClient, opts ...Option) *Store {
	s := &Store{
		rocketState: physics.DefaultRocketState(),
		trajectory:  physics.Trajectory("[]"),
		physics:     client,
		logger:      zap.NewNop(),
		issued:      make(map[Entity]uint64),
		committed:   make(map[Entity]uint64),
		listeners:   make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mutations

// SetRocketState replaces the rocket state
func (s *Store) SetRocketState(state physics.RocketState) {
	s.apply(EntityRocketState, func() { s.rocketState = state })
}

// SetForce replaces the force breakdown
func (s *Store) SetForce(force physics.ForceBreakdown) {
	s.apply(EntityForce, func() { s.force = force })
}

// SetTrajectory replaces the trajectory. The store keeps its own copy.
func (s *Store) SetTrajectory(trajectory physics.Trajectory) {
	s.apply(EntityTrajectory, func() { s.trajectory = trajectory.Clone() })
}

// SetVector replaces the vector
func (s *Store) SetVector(vector physics.Vector) {
	s.apply(EntityVector, func() { s.vector = vector })
}

// Getters

// RocketState returns the current rocket state
func (s *Store) RocketState() physics.RocketState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rocketState
}

// Force returns the current force breakdown
func (s *Store) Force() physics.ForceBreakdown {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.force
}

// Trajectory returns a copy of the current trajectory
func (s *Store) Trajectory() physics.Trajectory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trajectory.Clone()
}

// Vector returns the current vector
func (s *Store) Vector() physics.Vector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vector
}

// Snapshot returns a copy of all four entities
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		RocketState: s.rocketState,
		Force:       s.force,
		Trajectory:  s.trajectory.Clone(),
		Vector:      s.vector,
	}
}

// Subscribe registers fn for every subsequent commit and returns a function
// that removes it.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.listenersMu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			delete(s.listeners, id)
			s.listenersMu.Unlock()
		})
	}
}

// apply runs write under the state lock and then notifies listeners.
// Concurrent writers are serialized through notification, so the last
// Change a listener receives always matches the store.
func (s *Store) apply(entity Entity, write func()) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	write()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(entity, snap)
}

func (s *Store) notify(entity Entity, snap Snapshot) {
	s.listenersMu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.listenersMu.RUnlock()

	change := Change{Entity: entity, Snapshot: snap}
	for _, fn := range listeners {
		fn(change)
	}
}
