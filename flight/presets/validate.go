package presets

import (
	"fmt"
	"math"
	"strings"

	"github.com/wricardo/mcp-training/rocketflight/flight/service"
)

// Validate checks a preset and returns every problem found, wrapped in
// ErrInvalidPreset.
func Validate(preset *service.Preset) error {
	if preset == nil {
		return fmt.Errorf("%w: nil preset", ErrInvalidPreset)
	}

	var problems []string
	if strings.TrimSpace(preset.Name) == "" {
		problems = append(problems, "name is required")
	}

	rs := preset.RocketState
	fields := map[string]float64{
		"x": rs.X, "y": rs.Y, "vx": rs.Vx, "vy": rs.Vy, "ax": rs.Ax, "ay": rs.Ay,
		"fuel": rs.Fuel, "mass": rs.Mass, "thrust": rs.Thrust,
	}
	for _, key := range []string{"x", "y", "vx", "vy", "ax", "ay", "fuel", "mass", "thrust"} {
		if v := fields[key]; math.IsNaN(v) || math.IsInf(v, 0) {
			problems = append(problems, fmt.Sprintf("%s must be finite", key))
		}
	}

	if rs.Mass <= 0 {
		problems = append(problems, fmt.Sprintf("mass must be positive (got %g)", rs.Mass))
	}
	if rs.Fuel < 0 {
		problems = append(problems, fmt.Sprintf("fuel must not be negative (got %g)", rs.Fuel))
	}
	if rs.Thrust < 0 {
		problems = append(problems, fmt.Sprintf("thrust must not be negative (got %g)", rs.Thrust))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPreset, strings.Join(problems, "; "))
	}
	return nil
}
