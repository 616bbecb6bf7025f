// Package telemetry installs the process-wide OpenTelemetry meter provider
// that the sync counters report through.
package telemetry

import (
	"context"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/julianstephens/quitlog/internal/constants"
	"github.com/julianstephens/quitlog/internal/logger"
)

const (
	// EnvEndpoint is the standard OTLP endpoint variable.
	EnvEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
	// EnvInsecure disables TLS to the collector when set to true or 1.
	EnvInsecure = "OTEL_EXPORTER_OTLP_INSECURE"

	exportTimeout  = 10 * time.Second
	exportInterval = 15 * time.Second
)

// Config controls metric export. Export is off unless an endpoint is set.
type Config struct {
	Endpoint string
	Insecure bool
	Interval time.Duration
}

// Enabled reports whether a collector endpoint was configured.
func (c Config) Enabled() bool { return strings.TrimSpace(c.Endpoint) != "" }

// ConfigFromEnv reads the OTLP settings, preferring an explicit endpoint.
func ConfigFromEnv(endpoint string) Config {
	if endpoint == "" {
		endpoint = os.Getenv(EnvEndpoint)
	}
	insecure := os.Getenv(EnvInsecure)
	return Config{
		Endpoint: endpoint,
		Insecure: insecure == "true" || insecure == "1",
		Interval: exportInterval,
	}
}

// Telemetry owns the installed meter provider.
type Telemetry struct {
	provider *sdkmetric.MeterProvider
}

// Initialize builds an OTLP metric pipeline and installs it globally. A
// disabled config leaves the no-op provider in place.
func Initialize(ctx context.Context, cfg Config) (*Telemetry, error) {
	log := logger.Component("telemetry")
	if !cfg.Enabled() {
		log.Debug("Metric export disabled", "env", EnvEndpoint)
		return &Telemetry{}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(constants.AppName),
			semconv.ServiceVersion(constants.Version),
			attribute.String("quitlog.component", "cli"),
		),
	)
	if err != nil {
		return nil, err
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
		otlpmetricgrpc.WithTimeout(exportTimeout),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = exportInterval
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(interval),
		)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	log.Info("Metric export enabled", "endpoint", cfg.Endpoint)

	return &Telemetry{provider: mp}, nil
}

// MeterProvider returns the installed provider, or a no-op one when export
// is disabled.
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	if t == nil || t.provider == nil {
		return noop.NewMeterProvider()
	}
	return t.provider
}

// Shutdown flushes pending measurements. Short-lived commands rely on it to
// export anything before the process exits.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
