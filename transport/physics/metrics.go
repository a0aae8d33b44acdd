package physics

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/wricardo/mcp-training/rocketflight/transport/physics"

type clientMetrics struct {
	requests metric.Int64Counter
	failures metric.Int64Counter
	latency  metric.Float64Histogram
}

func newClientMetrics(logger *zap.Logger) *clientMetrics {
	m := otel.Meter(instrumentationName)
	cm := &clientMetrics{}

	var err error
	cm.requests, err = m.Int64Counter(
		"rocketflight.physics.requests",
		metric.WithDescription("Physics service requests by path and status"),
	)
	if err != nil {
		logger.Warn("create requests counter", zap.Error(err))
	}

	cm.failures, err = m.Int64Counter(
		"rocketflight.physics.failures",
		metric.WithDescription("Physics service requests that returned an error"),
	)
	if err != nil {
		logger.Warn("create failures counter", zap.Error(err))
	}

	cm.latency, err = m.Float64Histogram(
		"rocketflight.physics.latency",
		metric.WithDescription("Physics service round-trip time"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		logger.Warn("create latency histogram", zap.Error(err))
	}

	return cm
}

func (cm *clientMetrics) record(ctx context.Context, path string, status int, err error, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("path", path),
		attribute.String("status", strconv.Itoa(status)),
	)

	if cm.requests != nil {
		cm.requests.Add(ctx, 1, attrs)
	}
	if err != nil && cm.failures != nil {
		cm.failures.Add(ctx, 1, attrs)
	}
	if cm.latency != nil {
		cm.latency.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
	}
}
