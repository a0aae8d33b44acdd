// Command rocketflight drives rocket flights against the physics service.
//
// It supports these modes:
//  1. "serve" (default) – runs the HTTP server exposing the REST API, the change
//     WebSocket and an /mcp HTTP endpoint
//  2. "mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//  3. "force", "trajectory", "integrate", "vector" – one physics round-trip on a fresh store
//  4. "watch" – opens the physics socket and logs what the server sends
//  5. "validate" – checks the preset files in a directory
//
// Settings come from the environment (and a .env file); flags override them.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"github.com/wricardo/mcp-training/rocketflight/flight/presets"
	"github.com/wricardo/mcp-training/rocketflight/flight/service"
	"github.com/wricardo/mcp-training/rocketflight/flight/session"
	"github.com/wricardo/mcp-training/rocketflight/flight/store"
	"github.com/wricardo/mcp-training/rocketflight/logging"
	"github.com/wricardo/mcp-training/rocketflight/settings"
	physicsapi "github.com/wricardo/mcp-training/rocketflight/transport/physics"
	"go.uber.org/zap"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Rocket Flight"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newApp builds the command tree. Flags declared on the root are visible to
// every subcommand.
func newApp() *cli.Command {
	return &cli.Command{
		Name:    "rocketflight",
		Usage:   AppName + " client and dashboard server",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Usage: "load environment variables from this file instead of .env"},
			&cli.StringFlag{Name: "physics-url", Usage: "physics service base URL (PHYSICS_BASE_URL)"},
			&cli.StringFlag{Name: "socket-url", Usage: "physics socket URL (PHYSICS_SOCKET_URL)"},
			&cli.DurationFlag{Name: "timeout", Usage: "per-request timeout for physics calls, 0 for none (PHYSICS_REQUEST_TIMEOUT)"},
			&cli.BoolFlag{Name: "discard-stale", Usage: "drop responses superseded by a newer request (ROCKETFLIGHT_DISCARD_STALE)"},
			&cli.BoolFlag{Name: "strict-status", Usage: "treat non-2xx responses as errors on every endpoint (ROCKETFLIGHT_STRICT_STATUS)"},
			&cli.StringFlag{Name: "preset-dir", Usage: "directory containing launch presets (PRESET_DIR)"},
			&cli.StringFlag{Name: "addr", Usage: "HTTP listen address (ROCKETFLIGHT_ADDR)"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error (LOG_LEVEL)"},
			&cli.BoolFlag{Name: "debug", Usage: "human-readable debug logging (DEBUG)"},
		},
		Action: runServe,
		Commands: []*cli.Command{
			serveCommand(),
			mcpCommand(),
			physicsCommand("force", "request the force breakdown", (*store.Store).RequestForce),
			physicsCommand("trajectory", "request the predicted trajectory", (*store.Store).RequestTrajectory),
			physicsCommand("integrate", "advance the rocket state by one integration step", (*store.Store).RequestIntegration),
			physicsCommand("vector", "request the velocity vector", (*store.Store).RequestVector),
			watchCommand(),
			validateCommand(),
		},
	}
}

// app holds what every command needs after settings are resolved
type app struct {
	cfg    settings.Settings
	logger *zap.Logger

	presetDirExplicit bool
}

// setup loads settings, applies flag overrides and builds the logger
func setup(cmd *cli.Command) (*app, error) {
	var envFiles []string
	if f := cmd.String("env-file"); f != "" {
		envFiles = append(envFiles, f)
	}

	cfg, err := settings.Load(envFiles...)
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("physics-url") {
		cfg.PhysicsBaseURL = cmd.String("physics-url")
	}
	if cmd.IsSet("socket-url") {
		cfg.PhysicsSocketURL = cmd.String("socket-url")
	}
	if cmd.IsSet("timeout") {
		cfg.RequestTimeout = cmd.Duration("timeout")
	}
	if cmd.IsSet("discard-stale") {
		cfg.DiscardStale = cmd.Bool("discard-stale")
	}
	if cmd.IsSet("strict-status") {
		cfg.StrictStatus = cmd.Bool("strict-status")
	}
	if cmd.IsSet("preset-dir") {
		cfg.PresetDir = cmd.String("preset-dir")
	}
	if cmd.IsSet("addr") {
		cfg.Addr = cmd.String("addr")
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
	if cmd.IsSet("debug") {
		cfg.Debug = cmd.Bool("debug")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Debug)
	if err != nil {
		return nil, err
	}

	_, presetEnvSet := os.LookupEnv("PRESET_DIR")
	return &app{
		cfg:               cfg,
		logger:            logger,
		presetDirExplicit: cmd.IsSet("preset-dir") || presetEnvSet,
	}, nil
}

// physicsClient builds the HTTP client for the physics service
func (a *app) physicsClient() *physicsapi.Client {
	opts := []physicsapi.Option{physicsapi.WithLogger(a.logger.Named("physics"))}
	if a.cfg.RequestTimeout > 0 {
		opts = append(opts, physicsapi.WithTimeout(a.cfg.RequestTimeout))
	}
	if a.cfg.StrictStatus {
		opts = append(opts, physicsapi.WithUniformStatusCheck())
	}
	return physicsapi.NewClient(a.cfg.PhysicsBaseURL, opts...)
}

// newStore builds a store seeded with state and bound to client
func (a *app) newStore(client store.PhysicsClient, state store.Option) *store.Store {
	opts := []store.Option{store.WithLogger(a.logger.Named("store")), state}
	if a.cfg.DiscardStale {
		opts = append(opts, store.WithStaleResponseGuard())
	}
	return store.New(client, opts...)
}

// presetManager opens the preset directory. The default directory may be
// absent, in which case only the built-in preset is available.
func (a *app) presetManager() (*presets.Manager, error) {
	dir := a.cfg.PresetDir
	if !a.presetDirExplicit {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			a.logger.Debug("preset directory not found, using built-in preset only", zap.String("dir", dir))
			dir = ""
		}
	}

	manager, err := presets.NewManager(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create preset manager: %w", err)
	}
	return manager, nil
}

// initializeServices wires the flight registry, presets and the flight
// service. Every flight store shares one physics client.
func (a *app) initializeServices(notifier service.Notifier) (service.FlightService, *session.Manager, error) {
	presetManager, err := a.presetManager()
	if err != nil {
		return nil, nil, err
	}

	client := a.physicsClient()
	factory := func(preset *service.Preset) *store.Store {
		return a.newStore(client, store.WithInitialRocketState(preset.RocketState))
	}
	flights := session.NewManager(factory, session.WithLogger(a.logger.Named("flights")))

	opts := []service.Option{service.WithLogger(a.logger.Named("service"))}
	if notifier != nil {
		opts = append(opts, service.WithNotifier(notifier))
	}
	return service.NewFlightService(flights, presetManager, opts...), flights, nil
}
