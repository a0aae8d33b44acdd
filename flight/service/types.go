package service

import (
	"time"

	"github.com/wricardo/mcp-training/rocketflight/flight/physics"
	"github.com/wricardo/mcp-training/rocketflight/flight/store"
)

// Step bounds for a single Step call
const (
	MinSteps = 1
	MaxSteps = 100
)

// Preset is a named initial rocket state
type Preset struct {
	Name        string              `json:"name" yaml:"name"`
	Description string              `json:"description,omitempty" yaml:"description,omitempty"`
	RocketState physics.RocketState `json:"rocket_state" yaml:"rocket_state"`
}

// PresetInfo provides information about a preset file
type PresetInfo struct {
	Filename    string              `json:"filename,omitempty"`
	PresetID    string              `json:"preset_id"` // identifier to use for flight creation
	Name        string              `json:"name"`
	Description string              `json:"description"`
	RocketState physics.RocketState `json:"rocket_state"`
}

// FlightInfo provides information about a flight
type FlightInfo struct {
	ID             string         `json:"id"`
	PresetName     string         `json:"preset_name"`
	CreatedAt      time.Time      `json:"created_at"`
	LastAccessedAt time.Time      `json:"last_accessed_at"`
	State          store.Snapshot `json:"state"`
}

// StepResult contains the outcome of several sequential integrations
type StepResult struct {
	RequestedSteps int                 `json:"requested_steps"`
	StepsExecuted  int                 `json:"steps_executed"`
	StoppedReason  string              `json:"stopped_reason,omitempty"`
	Start          physics.RocketState `json:"start"`
	State          store.Snapshot      `json:"state"`
}
