// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package metrics builds the OpenTelemetry meter behind the credential
// instruments and exposes the Prometheus gatherer scraped by the admin server.
package metrics

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/exporters/autoexport"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const (
	// defaultServiceName is reported when OTEL_SERVICE_NAME is not set.
	defaultServiceName = "portdash"
	meterName          = "github.com/envoyproxy/portdash/internal/metrics"

	exporterNone       = "none"
	exporterOTLP       = "otlp"
	exporterPrometheus = "prometheus"
)

// Metrics owns the meter provider the credential instruments are created from.
type Metrics interface {
	// Meter returns the meter for creating instruments.
	Meter() metric.Meter
	// Gatherer returns the Prometheus gatherer to scrape, nil when metrics are pushed or disabled.
	Gatherer() prometheus.Gatherer
	// Shutdown flushes and stops the meter provider.
	Shutdown(context.Context) error
}

var (
	_ Metrics = (*provider)(nil)
	_ Metrics = NoopMetrics{}
)

type provider struct {
	mp       *sdkmetric.MeterProvider
	registry *prometheus.Registry
}

func (p *provider) Meter() metric.Meter { return p.mp.Meter(meterName) }

func (p *provider) Gatherer() prometheus.Gatherer {
	if p.registry == nil {
		return nil
	}
	return p.registry
}

func (p *provider) Shutdown(ctx context.Context) error { return p.mp.Shutdown(ctx) }

// NoopMetrics records nothing. It backs components constructed without metrics.
type NoopMetrics struct{}

// Meter returns a no-op meter.
func (NoopMetrics) Meter() metric.Meter { return noop.NewMeterProvider().Meter(meterName) }

// Gatherer returns nil: there is nothing to scrape.
func (NoopMetrics) Gatherer() prometheus.Gatherer { return nil }

// Shutdown is a no-op.
func (NoopMetrics) Shutdown(context.Context) error { return nil }

// NewMetricsFromEnv builds the meter provider selected by the standard OTEL
// environment variables. Metrics are scraped through the admin server's
// /metrics endpoint unless an OTLP endpoint or another exporter is configured.
func NewMetricsFromEnv(ctx context.Context) (Metrics, error) {
	exporter, enabled := exporterFromEnv()
	if !enabled {
		return NoopMetrics{}, nil
	}

	res, err := serviceResource(ctx)
	if err != nil {
		return nil, err
	}

	if exporter == exporterPrometheus {
		registry := prometheus.NewRegistry()
		reader, err := otelprom.New(otelprom.WithRegisterer(registry))
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		return &provider{
			mp:       sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res)),
			registry: registry,
		}, nil
	}

	reader, err := autoexport.NewMetricReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s exporter: %w", exporter, err)
	}
	return &provider{mp: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))}, nil
}

// exporterFromEnv returns the exporter to use, and false when metrics are disabled.
func exporterFromEnv() (string, bool) {
	if os.Getenv("OTEL_SDK_DISABLED") == "true" {
		return "", false
	}
	switch exporter := os.Getenv("OTEL_METRICS_EXPORTER"); {
	case exporter == exporterNone:
		return "", false
	case exporter != "":
		return exporter, true
	case os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT") != "", os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "":
		// autoexport defaults to OTLP and resolves the endpoint itself.
		return exporterOTLP, true
	default:
		return exporterPrometheus, true
	}
}

// serviceResource names the service portdash unless OTEL_SERVICE_NAME or
// OTEL_RESOURCE_ATTRIBUTES say otherwise.
func serviceResource(ctx context.Context) (*resource.Resource, error) {
	envRes, err := resource.New(ctx, resource.WithFromEnv(), resource.WithTelemetrySDK())
	if err != nil {
		return nil, fmt.Errorf("failed to create resource from env: %w", err)
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(semconv.ServiceName(defaultServiceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to merge default resources: %w", err)
	}
	if res, err = resource.Merge(res, envRes); err != nil {
		return nil, fmt.Errorf("failed to merge env resource: %w", err)
	}
	return res, nil
}
