// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	credentialsMetricRotations        = "portdash.credentials.rotations"
	credentialsMetricRotationDuration = "portdash.credentials.rotation.duration"
	credentialsMetricValidations      = "portdash.credentials.validations"
	credentialsMetricValidationDur    = "portdash.credentials.validation.duration"
	credentialsMetricIssuances        = "portdash.credentials.issuances"
	credentialsMetricIssuanceDuration = "portdash.credentials.issuance.duration"

	credentialsAttributeOutcome = "outcome"
	credentialsAttributeResult  = "result"

	resultValid   = "valid"
	resultInvalid = "invalid"
	resultSuccess = "success"
	resultFailure = "failure"
)

// Credentials records the activity of the credential lifecycle manager.
type Credentials interface {
	// RecordRotation records one finished rotation attempt and how long it took.
	RecordRotation(ctx context.Context, outcome string, duration time.Duration)
	// RecordValidation records one token validation call.
	RecordValidation(ctx context.Context, valid bool, duration time.Duration)
	// RecordIssuance records one token issuance call.
	RecordIssuance(ctx context.Context, success bool, duration time.Duration)
}

type credentials struct {
	rotations        metric.Int64Counter
	rotationDuration metric.Float64Histogram
	validations      metric.Int64Counter
	validationDur    metric.Float64Histogram
	issuances        metric.Int64Counter
	issuanceDuration metric.Float64Histogram
}

// NewCredentials creates the credential instruments on the given meter.
func NewCredentials(meter metric.Meter) Credentials {
	return &credentials{
		rotations: mustInt64Counter(meter, credentialsMetricRotations,
			metric.WithDescription("Number of finished credential rotation attempts by outcome.")),
		rotationDuration: mustFloat64Histogram(meter, credentialsMetricRotationDuration,
			metric.WithDescription("Time spent in one rotation attempt."),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30)),
		validations: mustInt64Counter(meter, credentialsMetricValidations,
			metric.WithDescription("Number of token validation calls by result.")),
		validationDur: mustFloat64Histogram(meter, credentialsMetricValidationDur,
			metric.WithDescription("Time spent validating a token against the upstream."),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10)),
		issuances: mustInt64Counter(meter, credentialsMetricIssuances,
			metric.WithDescription("Number of token issuance calls by result.")),
		issuanceDuration: mustFloat64Histogram(meter, credentialsMetricIssuanceDuration,
			metric.WithDescription("Time spent exchanging client credentials for a token."),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10)),
	}
}

// RecordRotation implements [Credentials.RecordRotation].
func (c *credentials) RecordRotation(ctx context.Context, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.Key(credentialsAttributeOutcome).String(outcome))
	c.rotations.Add(ctx, 1, attrs)
	c.rotationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordValidation implements [Credentials.RecordValidation].
func (c *credentials) RecordValidation(ctx context.Context, valid bool, duration time.Duration) {
	result := resultInvalid
	if valid {
		result = resultValid
	}
	attrs := metric.WithAttributes(attribute.Key(credentialsAttributeResult).String(result))
	c.validations.Add(ctx, 1, attrs)
	c.validationDur.Record(ctx, duration.Seconds(), attrs)
}

// RecordIssuance implements [Credentials.RecordIssuance].
func (c *credentials) RecordIssuance(ctx context.Context, success bool, duration time.Duration) {
	result := resultFailure
	if success {
		result = resultSuccess
	}
	attrs := metric.WithAttributes(attribute.Key(credentialsAttributeResult).String(result))
	c.issuances.Add(ctx, 1, attrs)
	c.issuanceDuration.Record(ctx, duration.Seconds(), attrs)
}

// mustInt64Counter panics on error since instrument creation only fails on invalid names.
func mustInt64Counter(meter metric.Meter, name string, opts ...metric.Int64CounterOption) metric.Int64Counter {
	c, err := meter.Int64Counter(name, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

func mustFloat64Histogram(meter metric.Meter, name string, opts ...metric.Float64HistogramOption) metric.Float64Histogram {
	h, err := meter.Float64Histogram(name, opts...)
	if err != nil {
		panic(err)
	}
	return h
}
