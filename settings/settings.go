// Package settings loads rocketflight configuration from the environment.
//
// Values come from process environment variables, optionally seeded from a
// .env file. Command-line flags override them in the command layer.
package settings

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/wricardo/mcp-training/rocketflight/logging"
)

// Settings holds every tunable of the rocketflight binary
type Settings struct {
	PhysicsBaseURL   string        `env:"PHYSICS_BASE_URL" envDefault:"http://localhost:8086"`
	PhysicsSocketURL string        `env:"PHYSICS_SOCKET_URL" envDefault:"ws://localhost:8086/ws"`
	RequestTimeout   time.Duration `env:"PHYSICS_REQUEST_TIMEOUT"` // zero means no timeout
	DiscardStale     bool          `env:"ROCKETFLIGHT_DISCARD_STALE"`
	StrictStatus     bool          `env:"ROCKETFLIGHT_STRICT_STATUS"`

	PresetDir string        `env:"PRESET_DIR" envDefault:"presets"`
	Addr      string        `env:"ROCKETFLIGHT_ADDR" envDefault:"localhost:8090"`
	FlightTTL time.Duration `env:"FLIGHT_TTL" envDefault:"24h"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Debug    bool   `env:"DEBUG"`

	NgrokEnabled   bool   `env:"NGROK_ENABLED"`
	NgrokAuthToken string `env:"NGROK_AUTHTOKEN"`
	NgrokDomain    string `env:"NGROK_DOMAIN"`
}

// Load reads the given env files (".env" when none are named) and then the
// environment. Only a missing implicit .env is ignored; named files must exist.
func Load(envFiles ...string) (Settings, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		if len(envFiles) > 0 || !errors.Is(err, os.ErrNotExist) {
			return Settings{}, fmt.Errorf("load env file: %w", err)
		}
	}

	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}

	if s.NgrokAuthToken == "" {
		s.NgrokAuthToken = os.Getenv("NGROK_AUTH_TOKEN")
	}

	return s, nil
}

// Validate reports the first invalid setting
func (s Settings) Validate() error {
	if err := checkURL(s.PhysicsBaseURL, "http", "https"); err != nil {
		return fmt.Errorf("PHYSICS_BASE_URL: %w", err)
	}
	if err := checkURL(s.PhysicsSocketURL, "ws", "wss"); err != nil {
		return fmt.Errorf("PHYSICS_SOCKET_URL: %w", err)
	}
	if s.RequestTimeout < 0 {
		return fmt.Errorf("PHYSICS_REQUEST_TIMEOUT: must not be negative (got %s)", s.RequestTimeout)
	}
	if s.FlightTTL <= 0 {
		return fmt.Errorf("FLIGHT_TTL: must be positive (got %s)", s.FlightTTL)
	}
	if s.Addr == "" {
		return errors.New("ROCKETFLIGHT_ADDR: must not be empty")
	}
	if _, err := logging.ParseLevel(s.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, scheme := range schemes {
		if u.Scheme == scheme {
			if u.Host == "" {
				return fmt.Errorf("missing host in %q", raw)
			}
			return nil
		}
	}
	return fmt.Errorf("scheme must be one of %v (got %q)", schemes, u.Scheme)
}
