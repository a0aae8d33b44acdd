package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/mcp-training/rocketflight/api"
	"github.com/wricardo/mcp-training/rocketflight/flight/physics"
	"github.com/wricardo/mcp-training/rocketflight/flight/session"
	"github.com/wricardo/mcp-training/rocketflight/flight/store"
	"github.com/wricardo/mcp-training/rocketflight/transport/mcp"
	"github.com/wricardo/mcp-training/rocketflight/transport/socket"
	"github.com/wricardo/mcp-training/rocketflight/transport/websocket"
	"github.com/wricardo/mcp-training/rocketflight/validate"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"
)

const (
	cleanupInterval = time.Hour
	shutdownTimeout = 10 * time.Second
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP server with REST API, WebSocket and MCP endpoint (default)",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "flight-ttl", Usage: "remove flights idle for longer than this (FLIGHT_TTL)"},
			&cli.BoolFlag{Name: "ngrok", Usage: "expose the server through an ngrok tunnel (NGROK_ENABLED)"},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "ngrok auth token (NGROK_AUTHTOKEN or NGROK_AUTH_TOKEN)"},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "custom ngrok domain (NGROK_DOMAIN)"},
		},
		Action: runServe,
	}
}

// runServe starts the HTTP server with REST API, WebSocket hub and an /mcp
// endpoint. It returns after SIGINT or SIGTERM once the server has drained.
func runServe(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	if cmd.IsSet("flight-ttl") {
		a.cfg.FlightTTL = cmd.Duration("flight-ttl")
	}
	if cmd.IsSet("ngrok") {
		a.cfg.NgrokEnabled = cmd.Bool("ngrok")
	}
	if cmd.IsSet("ngrok-auth") {
		a.cfg.NgrokAuthToken = cmd.String("ngrok-auth")
	}
	if cmd.IsSet("ngrok-domain") {
		a.cfg.NgrokDomain = cmd.String("ngrok-domain")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewHub(a.logger.Named("hub"))
	flightService, flights, err := a.initializeServices(hub)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	apiServer := api.NewServer(flightService, hub, api.WithLogger(a.logger.Named("api")))
	mcpClient := mcp.NewClient("http://" + a.cfg.Addr)
	apiServer.Mount("/mcp", mcpClient.Handler())

	httpServer := &http.Server{
		Addr:         a.cfg.Addr,
		Handler:      apiServer,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	a.logger.Info("starting server",
		zap.String("app", AppName),
		zap.String("version", Version),
		zap.String("addr", a.cfg.Addr),
		zap.String("physics_url", a.cfg.PhysicsBaseURL),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		a.logger.Info("http server listening",
			zap.String("api", "http://"+a.cfg.Addr+"/api"),
			zap.String("websocket", "ws://"+a.cfg.Addr+"/ws?flight=<flight_id>"),
			zap.String("mcp", "http://"+a.cfg.Addr+"/mcp"),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		cleanupRoutine(gctx, flights, a.cfg.FlightTTL, a.logger)
		return nil
	})
	if a.cfg.NgrokEnabled {
		g.Go(func() error {
			a.serveNgrok(gctx, apiServer)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	a.logger.Info("server stopped")
	return err
}

// cleanupRoutine periodically removes flights that have not been accessed
// within maxAge.
func cleanupRoutine(ctx context.Context, flights *session.Manager, maxAge time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := flights.CleanupExpiredFlights(maxAge); removed > 0 {
				logger.Info("cleaned up expired flights", zap.Int("removed", removed))
			}
		}
	}
}

// serveNgrok exposes handler through an ngrok tunnel until ctx is done.
// Tunnel failures are logged and never stop the local server.
func (a *app) serveNgrok(ctx context.Context, handler http.Handler) {
	if a.cfg.NgrokAuthToken == "" {
		a.logger.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN or NGROK_AUTH_TOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if a.cfg.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(a.cfg.NgrokDomain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(a.cfg.NgrokAuthToken))
	if err != nil {
		a.logger.Error("failed to start ngrok tunnel", zap.Error(err))
		return
	}
	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			a.logger.Warn("failed to close ngrok tunnel", zap.Error(err))
		}
	}()

	ngrokURL := tun.URL()
	a.logger.Info("ngrok tunnel established",
		zap.String("url", ngrokURL),
		zap.String("api", ngrokURL+"/api"),
		zap.String("mcp", ngrokURL+"/mcp"),
	)

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		a.logger.Error("ngrok server error", zap.Error(err))
	}
	a.logger.Info("ngrok tunnel closed")
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "run an MCP stdio server backed by the REST API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "api-url", Value: "http://localhost:8090", Usage: "REST API to reuse when it is reachable"},
		},
		Action: runMCP,
	}
}

// runMCP serves MCP over stdio. It reuses the API at --api-url when it
// answers its health check; otherwise it starts an internal HTTP API bound
// to a random loopback port and targets that.
func runMCP(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	baseURL := strings.TrimSuffix(cmd.String("api-url"), "/")
	if apiReachable(ctx, baseURL) {
		a.logger.Info("external API server found, using it for MCP", zap.String("url", baseURL))
	} else {
		a.logger.Info("no external API server found, starting internal HTTP server")

		internalURL, shutdown, err := a.startInternalAPI(ctx)
		if err != nil {
			return err
		}
		defer shutdown()
		baseURL = internalURL
	}

	mcpClient := mcp.NewClient(baseURL)
	a.logger.Info("MCP stdio server ready", zap.String("api", baseURL))

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

func apiReachable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// startInternalAPI serves the REST API on a loopback port and returns its
// base URL and a shutdown function.
func (a *app) startInternalAPI(ctx context.Context) (string, func(), error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("failed to get available port: %w", err)
	}

	hub := websocket.NewHub(a.logger.Named("hub"))
	flightService, _, err := a.initializeServices(hub)
	if err != nil {
		listener.Close()
		return "", nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	go hub.Run(ctx)

	httpServer := &http.Server{Handler: api.NewServer(flightService, hub, api.WithLogger(a.logger.Named("api")))}
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("internal HTTP server error", zap.Error(err))
		}
	}()

	addr := listener.Addr().String()
	a.logger.Info("internal HTTP server started", zap.String("addr", addr))

	shutdown := func() {
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		httpServer.Shutdown(shutdownCtx)
	}
	return "http://" + addr, shutdown, nil
}

// storeRequest is one of the store's physics request methods
type storeRequest func(*store.Store, context.Context, physics.RocketState) error

func seedFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "preset", Value: "default", Usage: "launch preset to seed the rocket state from"},
		&cli.StringFlag{Name: "state", Usage: `rocket state JSON applied over the preset, e.g. '{"y": 100}'`},
	}
}

func physicsCommand(name, usage string, request storeRequest) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage + " and print the resulting state",
		Flags: seedFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			seed, err := a.seedState(cmd)
			if err != nil {
				return err
			}

			s := a.newStore(a.physicsClient(), store.WithInitialRocketState(seed))
			requestErr := request(s, ctx, s.RocketState())

			if err := writeJSON(stdout(cmd), s.Snapshot()); err != nil {
				return err
			}
			if requestErr != nil {
				return fmt.Errorf("%s request failed: %w", name, requestErr)
			}
			return nil
		},
	}
}

// seedState resolves --preset and overlays --state on top of it
func (a *app) seedState(cmd *cli.Command) (physics.RocketState, error) {
	manager, err := a.presetManager()
	if err != nil {
		return physics.RocketState{}, err
	}

	preset, err := manager.LoadPreset(cmd.String("preset"))
	if err != nil {
		return physics.RocketState{}, fmt.Errorf("failed to load preset %q: %w", cmd.String("preset"), err)
	}

	state := preset.RocketState
	if raw := cmd.String("state"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &state); err != nil {
			return physics.RocketState{}, fmt.Errorf("invalid --state: %w", err)
		}
	}
	return state, nil
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "open the physics socket and log every message until interrupted",
		Flags: append(seedFlags(),
			&cli.BoolFlag{Name: "send-state", Usage: "send the seed rocket state once after connecting"},
			&cli.BoolFlag{Name: "envelope", Usage: `wrap the sent state as {"type":"rocket_state","data":...}`},
		),
		Action: runWatch,
	}
}

func runWatch(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := a.logger.Named("socket")
	ch, err := socket.Open(ctx, a.cfg.PhysicsSocketURL,
		socket.WithLogger(logger),
		socket.WithMessageHandler(logInbound(logger)),
	)
	if err != nil {
		return err
	}
	defer ch.Close()

	if cmd.Bool("send-state") {
		seed, err := a.seedState(cmd)
		if err != nil {
			return err
		}
		msg, err := stateMessage(seed, cmd.Bool("envelope"))
		if err != nil {
			return err
		}
		if err := ch.SendJSON(msg); err != nil {
			return fmt.Errorf("failed to send rocket state: %w", err)
		}
		logger.Info("sent rocket state", zap.Any("state", seed))
	}

	select {
	case <-ctx.Done():
		logger.Info("interrupted, closing socket")
	case <-ch.Done():
		logger.Info("socket closed by server")
	}
	return nil
}

// stateMessage is what --send-state writes: the bare rocket state the
// physics service reads, or a tagged envelope when asked for.
func stateMessage(seed physics.RocketState, envelope bool) (interface{}, error) {
	if !envelope {
		return seed, nil
	}
	return socket.NewEnvelope(socket.TypeRocketState, seed)
}

// logInbound logs tagged envelopes by type and everything else raw
func logInbound(logger *zap.Logger) socket.Handler {
	return func(payload []byte) {
		env, err := socket.DecodeEnvelope(payload)
		if err != nil {
			logger.Info("data from server", zap.ByteString("payload", payload))
			return
		}
		logger.Info("data from server", zap.String("type", env.Type), zap.ByteString("data", env.Data))
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "validate every preset file in a directory",
		ArgsUsage: "[dir]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			dir := a.cfg.PresetDir
			if cmd.Args().Present() {
				dir = cmd.Args().First()
			}

			results, err := validate.Dir(dir)
			if err != nil {
				return err
			}
			if !validate.WriteReport(stdout(cmd), results) {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
