// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package metrics

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestNewMetricsFromEnv(t *testing.T) {
	tests := []struct {
		name           string
		env            map[string]string
		expectNoop     bool
		expectRegistry bool
	}{
		{
			name:           "prometheus default when no metrics exporter set",
			env:            map[string]string{},
			expectRegistry: true,
		},
		{
			name: "explicit prometheus exporter",
			env: map[string]string{
				"OTEL_METRICS_EXPORTER": "prometheus",
			},
			expectRegistry: true,
		},
		{
			name: "console exporter has no registry",
			env: map[string]string{
				"OTEL_METRICS_EXPORTER": "console",
				"OTEL_SERVICE_NAME":     "custom-service",
			},
		},
		{
			name: "uses OTLP when generic endpoint is configured",
			env: map[string]string{
				"OTEL_EXPORTER_OTLP_ENDPOINT": "http://localhost:4317",
			},
		},
		{
			name: "disabled when OTEL_SDK_DISABLED is true",
			env: map[string]string{
				"OTEL_SDK_DISABLED":     "true",
				"OTEL_METRICS_EXPORTER": "console",
			},
			expectNoop: true,
		},
		{
			name: "disabled when OTEL_METRICS_EXPORTER is none",
			env: map[string]string{
				"OTEL_METRICS_EXPORTER":       "none",
				"OTEL_EXPORTER_OTLP_ENDPOINT": "http://localhost:4317",
			},
			expectNoop: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			result, err := NewMetricsFromEnv(t.Context())
			require.NoError(t, err)
			t.Cleanup(func() {
				_ = result.Shutdown(context.Background())
			})

			_, isNoop := result.(NoopMetrics)
			require.Equal(t, tt.expectNoop, isNoop)
			if tt.expectNoop {
				return
			}

			meter := result.Meter()
			require.NotNil(t, meter)
			_, ok := meter.(noop.Meter)
			require.False(t, ok, "expected a real meter")

			if tt.expectRegistry {
				require.NotNil(t, result.Gatherer(), "expected prometheus gatherer")
			} else {
				require.Nil(t, result.Gatherer())
			}
		})
	}
}

func TestNewMetricsFromEnv_PrometheusGathersCredentials(t *testing.T) {
	t.Setenv("OTEL_METRICS_EXPORTER", "prometheus")

	result, err := NewMetricsFromEnv(t.Context())
	require.NoError(t, err)
	t.Cleanup(func() { _ = result.Shutdown(context.Background()) })

	c := NewCredentials(result.Meter())
	c.RecordRotation(t.Context(), "generated", 0)

	families, err := result.Gatherer().Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		// The exported name depends on the exporter's translation strategy.
		if strings.Contains(f.GetName(), "credentials") && strings.Contains(f.GetName(), "rotations") {
			found = true
		}
	}
	require.True(t, found, "expected the rotation counter to be gathered")
}

func TestExporterFromEnv(t *testing.T) {
	tests := []struct {
		name       string
		env        map[string]string
		expName    string
		expEnabled bool
	}{
		{name: "prometheus by default", expName: "prometheus", expEnabled: true},
		{
			name:       "otlp when the generic endpoint is set",
			env:        map[string]string{"OTEL_EXPORTER_OTLP_ENDPOINT": "http://localhost:4317"},
			expName:    "otlp",
			expEnabled: true,
		},
		{
			name:       "otlp when the metrics endpoint is set",
			env:        map[string]string{"OTEL_EXPORTER_OTLP_METRICS_ENDPOINT": "http://localhost:4318/v1/metrics"},
			expName:    "otlp",
			expEnabled: true,
		},
		{
			name: "explicit exporter wins over endpoints",
			env: map[string]string{
				"OTEL_METRICS_EXPORTER":       "console",
				"OTEL_EXPORTER_OTLP_ENDPOINT": "http://localhost:4317",
			},
			expName:    "console",
			expEnabled: true,
		},
		{name: "none disables", env: map[string]string{"OTEL_METRICS_EXPORTER": "none"}},
		{
			name: "sdk disabled wins",
			env:  map[string]string{"OTEL_SDK_DISABLED": "true", "OTEL_METRICS_EXPORTER": "prometheus"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{
				"OTEL_SDK_DISABLED", "OTEL_METRICS_EXPORTER",
				"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_METRICS_ENDPOINT",
			} {
				t.Setenv(k, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			name, enabled := exporterFromEnv()
			require.Equal(t, tt.expName, name)
			require.Equal(t, tt.expEnabled, enabled)
		})
	}
}

func TestNoopMetrics(t *testing.T) {
	var m Metrics = NoopMetrics{}
	_, ok := m.Meter().(noop.Meter)
	require.True(t, ok)
	require.Nil(t, m.Gatherer())
	require.NoError(t, m.Shutdown(t.Context()))
}
