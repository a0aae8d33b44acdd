package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wricardo/mcp-training/rocketflight/flight/service"
	"github.com/wricardo/mcp-training/rocketflight/flight/store"
	"go.uber.org/zap"
)

var (
	ErrFlightNotFound      = service.ErrFlightNotFound
	ErrFlightAlreadyExists = errors.New("flight already exists")
	ErrInvalidPreset       = errors.New("invalid preset")
)

// StoreFactory builds the store for a new flight, seeded with the preset's
// rocket state.
type StoreFactory func(preset *service.Preset) *store.Store

// DefaultStoreFactory builds stores without a physics client. Requests on
// such stores fail with store.ErrNoPhysicsClient.
func DefaultStoreFactory(preset *service.Preset) *store.Store {
	return store.New(nil, store.WithInitialRocketState(preset.RocketState))
}

// Manager handles flight lifecycle
type Manager struct {
	flights  map[string]*service.Flight
	newStore StoreFactory
	logger   *zap.Logger
	now      func() time.Time
	mu       sync.RWMutex
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the manager's logger
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a new flight manager. A nil factory falls back to
// DefaultStoreFactory.
func NewManager(newStore StoreFactory, opts ...Option) *Manager {
	if newStore == nil {
		newStore = DefaultStoreFactory
	}
	m := &Manager{
		flights:  make(map[string]*service.Flight),
		newStore: newStore,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create creates a new flight with the given ID and preset
func (m *Manager) Create(id string, preset *service.Preset) (*service.Flight, error) {
	if preset == nil {
		return nil, fmt.Errorf("%w: nil preset", ErrInvalidPreset)
	}
	if id == "" {
		id = generateFlightID()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(id)
	if _, exists := m.flights[key]; exists {
		return nil, ErrFlightAlreadyExists
	}

	now := m.now()
	flight := &service.Flight{
		ID:             id,
		Preset:         preset,
		Store:          m.newStore(preset),
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	m.flights[key] = flight

	m.logger.Debug("flight created", zap.String("flight_id", id), zap.String("preset", preset.Name))
	return flight, nil
}

// Get retrieves a flight by ID (case-insensitive)
func (m *Manager) Get(id string) (*service.Flight, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	flight, exists := m.flights[strings.ToLower(id)]
	if !exists {
		return nil, ErrFlightNotFound
	}
	return flight, nil
}

// GetOrCreate gets an existing flight or creates a new one
func (m *Manager) GetOrCreate(id string, preset *service.Preset) (*service.Flight, error) {
	flight, err := m.Get(id)
	if err == nil {
		return flight, nil
	}
	if errors.Is(err, ErrFlightNotFound) {
		return m.Create(id, preset)
	}
	return nil, err
}

// List returns all active flights
func (m *Manager) List() []*service.Flight {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*service.Flight, 0, len(m.flights))
	for _, flight := range m.flights {
		result = append(result, flight)
	}
	return result
}

// Delete removes a flight
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(id)
	if _, exists := m.flights[key]; !exists {
		return ErrFlightNotFound
	}
	delete(m.flights, key)

	m.logger.Debug("flight deleted", zap.String("flight_id", id))
	return nil
}

// UpdateLastAccessed updates the last accessed time for a flight
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	flight, exists := m.flights[strings.ToLower(id)]
	if !exists {
		return ErrFlightNotFound
	}
	flight.LastAccessedAt = m.now()
	return nil
}

// CleanupExpiredFlights removes flights that haven't been accessed in maxAge
func (m *Manager) CleanupExpiredFlights(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxAge)
	removed := 0
	for key, flight := range m.flights {
		if flight.LastAccessedAt.Before(cutoff) {
			delete(m.flights, key)
			removed++
		}
	}

	if removed > 0 {
		m.logger.Info("expired flights removed", zap.Int("count", removed))
	}
	return removed
}

// Count returns the number of active flights
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.flights)
}

// generateFlightID returns the first block of a random UUID
func generateFlightID() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}
