package physics

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Initial rocket values used when a store is created without a preset.
const (
	DefaultFuel   = 100
	DefaultMass   = 500
	DefaultThrust = 100
)

// RocketState represents the rocket's position, velocity, acceleration and resources
type RocketState struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Vx     float64 `json:"vx" yaml:"vx"`
	Vy     float64 `json:"vy" yaml:"vy"`
	Ax     float64 `json:"ax" yaml:"ax"`
	Ay     float64 `json:"ay" yaml:"ay"`
	Fuel   float64 `json:"fuel" yaml:"fuel"`
	Mass   float64 `json:"mass" yaml:"mass"`
	Thrust float64 `json:"thrust" yaml:"thrust"`
}

// DefaultRocketState returns the state a new flight starts from
func DefaultRocketState() RocketState {
	return RocketState{
		Fuel:   DefaultFuel,
		Mass:   DefaultMass,
		Thrust: DefaultThrust,
	}
}

// ForceBreakdown is the force decomposition returned by /physics/force.
// Field names match the service's JSON keys.
type ForceBreakdown struct {
	ThrustY  float64 `json:"ThrustY"`
	GravityY float64 `json:"GravityY"`
	ResultFY float64 `json:"ResultFY"`
}

// Vector represents a 2D quantity
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Point is a single position on a decoded trajectory
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Trajectory is the predicted flight path exactly as the physics service sent it.
// The client never interprets it on commit; Points offers a best-effort view.
type Trajectory json.RawMessage

var emptyTrajectory = []byte("[]")

// ErrUnknownTrajectoryShape is returned by Points when the raw JSON is neither
// a list of points/states nor a pair of coordinate series.
var ErrUnknownTrajectoryShape = errors.New("unknown trajectory shape")

// MarshalJSON writes the raw trajectory, or an empty list when unset
func (t Trajectory) MarshalJSON() ([]byte, error) {
	if len(bytes.TrimSpace(t)) == 0 {
		return emptyTrajectory, nil
	}
	return t, nil
}

// UnmarshalJSON stores a copy of the raw bytes without interpreting them
func (t *Trajectory) UnmarshalJSON(data []byte) error {
	if t == nil {
		return errors.New("physics.Trajectory: UnmarshalJSON on nil pointer")
	}
	*t = append((*t)[0:0], data...)
	return nil
}

// Clone returns an independent copy
func (t Trajectory) Clone() Trajectory {
	if t == nil {
		return nil
	}
	return append(Trajectory(nil), t...)
}

// IsEmpty reports whether the trajectory has no data or is an empty list
func (t Trajectory) IsEmpty() bool {
	trimmed := bytes.TrimSpace(t)
	return len(trimmed) == 0 || bytes.Equal(trimmed, emptyTrajectory) || bytes.Equal(trimmed, []byte("null"))
}

// Points decodes the two shapes the physics service is known to produce:
// a list of objects carrying x/y, or an object of parallel "x" and "y" series.
func (t Trajectory) Points() ([]Point, error) {
	if t.IsEmpty() {
		return []Point{}, nil
	}

	trimmed := bytes.TrimSpace(t)
	switch trimmed[0] {
	case '[':
		var points []Point
		if err := json.Unmarshal(trimmed, &points); err != nil {
			return nil, fmt.Errorf("decode trajectory points: %w", err)
		}
		return points, nil

	case '{':
		var series struct {
			X []float64 `json:"x"`
			Y []float64 `json:"y"`
		}
		if err := json.Unmarshal(trimmed, &series); err != nil {
			return nil, fmt.Errorf("decode trajectory series: %w", err)
		}
		if len(series.X) != len(series.Y) {
			return nil, fmt.Errorf("trajectory series length mismatch: x=%d y=%d", len(series.X), len(series.Y))
		}
		points := make([]Point, len(series.X))
		for i := range series.X {
			points[i] = Point{X: series.X[i], Y: series.Y[i]}
		}
		return points, nil
	}

	return nil, ErrUnknownTrajectoryShape
}
