// Package telemetry exports story metrics through OpenTelemetry with a
// Prometheus scrape endpoint.
package telemetry

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"

	"github.com/4ndr3jS/TravelStory/pkg/config"
	"github.com/4ndr3jS/TravelStory/pkg/version"
)

const meterName = "github.com/4ndr3jS/TravelStory"

// Telemetry owns the meter provider and the scrape handler.
type Telemetry struct {
	provider *sdkmetric.MeterProvider
	handler  http.Handler
	meter    metric.Meter
}

// Setup builds a meter provider exporting to a dedicated Prometheus
// registry. A disabled config yields a no-op Telemetry with a nil handler.
func Setup(ctx context.Context, cfg config.TelemetryConfig) (*Telemetry, error) {
	if !cfg.Enabled {
		provider := sdkmetric.NewMeterProvider()
		return &Telemetry{provider: provider, meter: provider.Meter(meterName)}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(version.Version),
		),
	)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	slog.Info("Telemetry initialized", "exporter", "prometheus", "service", cfg.ServiceName)

	return &Telemetry{
		provider: provider,
		handler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		meter:    provider.Meter(meterName),
	}, nil
}

// Handler serves /metrics. It is nil when telemetry is disabled.
func (t *Telemetry) Handler() http.Handler { return t.handler }

// Meter returns the service meter.
func (t *Telemetry) Meter() metric.Meter { return t.meter }

// Shutdown flushes and stops the meter provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

func attrs(kv ...attribute.KeyValue) metric.MeasurementOption {
	return metric.WithAttributes(kv...)
}
