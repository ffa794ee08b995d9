// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestCredentials(t *testing.T) (Credentials, *sdkmetric.ManualReader) {
	t.Helper()
	mr := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(mr)).Meter("test")
	return NewCredentials(meter), mr
}

func TestCredentials_RecordRotation(t *testing.T) {
	c, mr := newTestCredentials(t)

	c.RecordRotation(t.Context(), "generated", 2*time.Second)
	c.RecordRotation(t.Context(), "generated", time.Second)
	c.RecordRotation(t.Context(), "noop", 0)

	generated := attribute.NewSet(attribute.Key(credentialsAttributeOutcome).String("generated"))
	noop := attribute.NewSet(attribute.Key(credentialsAttributeOutcome).String("noop"))

	assert.Equal(t, int64(2), getCounterValue(t, mr, credentialsMetricRotations, generated))
	assert.Equal(t, int64(1), getCounterValue(t, mr, credentialsMetricRotations, noop))

	count, sum := getHistogramValues(t, mr, credentialsMetricRotationDuration, generated)
	assert.Equal(t, uint64(2), count)
	assert.Equal(t, 3.0, sum)
}

func TestCredentials_RecordValidation(t *testing.T) {
	c, mr := newTestCredentials(t)

	c.RecordValidation(t.Context(), true, 100*time.Millisecond)
	c.RecordValidation(t.Context(), false, 100*time.Millisecond)
	c.RecordValidation(t.Context(), false, 100*time.Millisecond)

	valid := attribute.NewSet(attribute.Key(credentialsAttributeResult).String(resultValid))
	invalid := attribute.NewSet(attribute.Key(credentialsAttributeResult).String(resultInvalid))
	assert.Equal(t, int64(1), getCounterValue(t, mr, credentialsMetricValidations, valid))
	assert.Equal(t, int64(2), getCounterValue(t, mr, credentialsMetricValidations, invalid))

	count, _ := getHistogramValues(t, mr, credentialsMetricValidationDur, invalid)
	assert.Equal(t, uint64(2), count)
}

func TestCredentials_RecordIssuance(t *testing.T) {
	c, mr := newTestCredentials(t)

	c.RecordIssuance(t.Context(), true, 500*time.Millisecond)
	c.RecordIssuance(t.Context(), false, 250*time.Millisecond)

	success := attribute.NewSet(attribute.Key(credentialsAttributeResult).String(resultSuccess))
	failure := attribute.NewSet(attribute.Key(credentialsAttributeResult).String(resultFailure))
	assert.Equal(t, int64(1), getCounterValue(t, mr, credentialsMetricIssuances, success))
	assert.Equal(t, int64(1), getCounterValue(t, mr, credentialsMetricIssuances, failure))

	count, sum := getHistogramValues(t, mr, credentialsMetricIssuanceDuration, success)
	assert.Equal(t, uint64(1), count)
	assert.Equal(t, 0.5, sum)
}

// getCounterValue collects the reader and returns the counter value for the given attribute set.
func getCounterValue(t *testing.T, mr *sdkmetric.ManualReader, name string, attrs attribute.Set) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, mr.Collect(t.Context(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				if dp.Attributes.Equals(&attrs) {
					return dp.Value
				}
			}
		}
	}
	t.Fatalf("no data point for %s with attributes %v", name, attrs.Encoded(attribute.DefaultEncoder()))
	return 0
}

// getHistogramValues collects the reader and returns the count and sum of the histogram for the given attribute set.
func getHistogramValues(t *testing.T, mr *sdkmetric.ManualReader, name string, attrs attribute.Set) (uint64, float64) {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, mr.Collect(t.Context(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			hist, ok := m.Data.(metricdata.Histogram[float64])
			require.True(t, ok, "metric %s is not a float64 histogram", name)
			for _, dp := range hist.DataPoints {
				if dp.Attributes.Equals(&attrs) {
					return dp.Count, dp.Sum
				}
			}
		}
	}
	t.Fatalf("no data point for %s with attributes %v", name, attrs.Encoded(attribute.DefaultEncoder()))
	return 0, 0
}
