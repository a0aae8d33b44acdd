package socket

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wricardo/mcp-training/rocketflight/flight/physics"
)

// ErrNotEnvelope is returned when a payload has no type tag
var ErrNotEnvelope = errors.New("payload is not a tagged envelope")

// Message types carried in an Envelope
const (
	TypeRocketState = "rocket_state"
	TypeUpdate      = "update"
)

// Envelope is a tagged message: Type names the shape of Data
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope encodes v as the data of a typed envelope
func NewEnvelope(typ string, v interface{}) (Envelope, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s envelope: %w", typ, err)
	}
	return Envelope{Type: typ, Data: data}, nil
}

// Marshal returns the wire form of the envelope
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Decode unmarshals the envelope data into v
func (e Envelope) Decode(v interface{}) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s envelope has no data", e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s envelope: %w", e.Type, err)
	}
	return nil
}

// DecodeEnvelope parses a tagged envelope
func DecodeEnvelope(payload []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, ErrNotEnvelope
	}
	return env, nil
}

// Update is the untagged reply the physics service pushes after it receives
// a rocket state on the socket. Absent fields stay nil.
type Update struct {
	Force           *physics.ForceBreakdown `json:"force,omitempty"`
	Vector          *physics.Vector         `json:"vector,omitempty"`
	Trajectory      physics.Trajectory      `json:"trajectory,omitempty"`
	IntegratedState *physics.RocketState    `json:"integratedState,omitempty"`
}

// DecodeUpdate parses a pushed update
func DecodeUpdate(payload []byte) (*Update, error) {
	var u Update
	if err := json.Unmarshal(payload, &u); err != nil {
		return nil, fmt.Errorf("decode update: %w", err)
	}
	return &u, nil
}
