package physics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/wricardo/mcp-training/rocketflight/flight/physics"
	"go.uber.org/zap"
)

// DefaultBaseURL is the physics service address used when none is configured
const DefaultBaseURL = "http://localhost:8086"

// Service paths
const (
	PathForce      = "/physics/force"
	PathTrajectory = "/physics/trajectory"
	PathIntegrate  = "/physics/integrate"
	PathVector     = "/physics/vector"
)

// Client calls the physics service over HTTP
type Client struct {
	baseURL       string
	httpClient    *http.Client
	logger        *zap.Logger
	uniformStatus bool
	metrics       *clientMetrics
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithTimeout sets a per-request timeout on the underlying http.Client.
// Zero leaves requests bounded only by the caller's context.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithUniformStatusCheck makes force, trajectory and integrate reject non-2xx
// responses the same way vector does.
func WithUniformStatusCheck() Option {
	return func(c *Client) {
		c.uniformStatus = true
	}
}

// NewClient creates a physics client for baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.metrics = newClientMetrics(c.logger)

	return c
}

// BaseURL returns the service address the client targets
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Force asks the service for the force decomposition of state
func (c *Client) Force(ctx context.Context, state physics.RocketState) (physics.ForceBreakdown, error) {
	var force physics.ForceBreakdown
	err := c.post(ctx, PathForce, state, &force, c.uniformStatus)
	return force, err
}

// Trajectory asks the service for the predicted flight path starting at state
func (c *Client) Trajectory(ctx context.Context, state physics.RocketState) (physics.Trajectory, error) {
	var trajectory physics.Trajectory
	err := c.post(ctx, PathTrajectory, state, &trajectory, c.uniformStatus)
	return trajectory, err
}

// Integrate asks the service to advance state by one integration step
func (c *Client) Integrate(ctx context.Context, state physics.RocketState) (physics.RocketState, error) {
	var next physics.RocketState
	err := c.post(ctx, PathIntegrate, state, &next, c.uniformStatus)
	return next, err
}

// Vector asks the service for the vector associated with state.
// The response status is always checked.
func (c *Client) Vector(ctx context.Context, state physics.RocketState) (physics.Vector, error) {
	var vector physics.Vector
	err := c.post(ctx, PathVector, state, &vector, true)
	return vector, err
}

// post sends body as JSON to path and decodes the reply into result
func (c *Client) post(ctx context.Context, path string, body interface{}, result interface{}, checkStatus bool) (err error) {
	start := time.Now()
	status := 0
	defer func() {
		c.metrics.record(ctx, path, status, err, time.Since(start))
	}()

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("physics %s: encode request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("physics %s: build request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("physics %s: %w", path, err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	c.logger.Debug("physics response",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if checkStatus && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return &HTTPError{Path: path, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &DecodeError{Path: path, Err: err}
	}

	return nil
}
