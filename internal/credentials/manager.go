// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/envoyproxy/portdash/internal/metrics"
)

// DefaultRotationInterval is how often the scheduler runs a rotation attempt.
const DefaultRotationInterval = 150 * time.Minute

// Manager keeps exactly one usable bearer token in its Store. It runs the
// rotation decision tree on a fixed interval and on demand, and never runs
// two attempts at once.
type Manager struct {
	*Store

	logger    logr.Logger
	validator Validator
	generator Generator
	metrics   metrics.Credentials
	now       func() time.Time

	// wg tracks background attempts started by Start.
	wg sync.WaitGroup
}

// NewManager creates a Manager seeded with cfg.PrimaryToken as the current token.
// A non-positive interval uses DefaultRotationInterval and a nil m records nothing.
func NewManager(logger logr.Logger, cfg Config, interval time.Duration, v Validator, g Generator, m metrics.Credentials) *Manager {
	if interval <= 0 {
		interval = DefaultRotationInterval
	}
	if m == nil {
		m = metrics.NewCredentials(metrics.NoopMetrics{}.Meter())
	}
	return &Manager{
		Store:     newStore(cfg, interval, time.Now()),
		logger:    logger.WithName("credentials"),
		validator: v,
		generator: g,
		metrics:   m,
		now:       time.Now,
	}
}

// Rotate runs one rotation attempt. It returns ErrRotationInProgress, without
// issuing any request, when another attempt holds the guard. Every other
// failure is contained and reported through the returned Outcome.
//
// The attempt is detached from ctx cancellation: in-flight calls run until
// they complete or hit their own timeout.
func (m *Manager) Rotate(ctx context.Context) (out Outcome, err error) {
	if !m.rotating.CompareAndSwap(false, true) {
		return Outcome{}, ErrRotationInProgress
	}
	defer m.rotating.Store(false)

	ctx = context.WithoutCancel(ctx)
	log := m.logger.WithValues("attempt", uuid.NewString())
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Kind: OutcomeNoneValid, Err: fmt.Errorf("rotation attempt panicked: %v", r)}
			err = nil
			log.Error(out.Err, "rotation attempt aborted")
		}
		m.metrics.RecordRotation(ctx, out.Kind.String(), time.Since(start))
	}()

	current, _ := m.CurrentToken()
	out = decide(ctx, m.cfg, current,
		meteredValidator{next: m.validator, metrics: m.metrics},
		meteredGenerator{next: m.generator, metrics: m.metrics})

	if out.Err != nil {
		log.Error(out.Err, "failed to generate a new token")
	}
	switch {
	case out.adopts():
		m.adopt(out.Token, m.now())
		kv := []any{"source", out.Source, "tokenLength", len(out.Token)}
		if !out.Expiry.IsZero() {
			kv = append(kv, "expiry", out.Expiry.UTC().Format(time.RFC3339))
		}
		log.Info("adopted bearer token", kv...)
	case out.Kind == OutcomeNoOp:
		log.V(1).Info("current token is still valid")
	default:
		log.Error(ErrNoValidToken, "keeping the current token state", "hasCurrentToken", current != "")
	}
	return out, nil
}

// ManualRotate forces an out-of-band rotation attempt. It shares the entry
// guard with the scheduler, so it is a no-op while another attempt runs.
func (m *Manager) ManualRotate(ctx context.Context) (Outcome, error) {
	m.logger.Info("manual rotation requested")
	return m.Rotate(ctx)
}

// Start runs the rotation scheduler until ctx is done. When no primary token is
// configured but client credentials are, one attempt is started in the
// background right away; its failure is logged and never stops the scheduler.
// Start waits for its background attempts before returning.
func (m *Manager) Start(ctx context.Context) error {
	if m.cfg.PrimaryToken == "" && m.cfg.HasClientCredentials() {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.logger.Info("no primary token configured, generating one in the background")
			m.scheduled(ctx, "startup")
		}()
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	m.logger.Info("credential rotation scheduler started", "interval", m.interval.String())

	for {
		select {
		case <-ctx.Done():
			m.wg.Wait()
			m.logger.Info("credential rotation scheduler stopped")
			return nil
		case <-ticker.C:
			m.scheduled(ctx, "interval")
		}
	}
}

func (m *Manager) scheduled(ctx context.Context, trigger string) {
	out, err := m.Rotate(ctx)
	if errors.Is(err, ErrRotationInProgress) {
		m.logger.V(1).Info("rotation skipped, another attempt is running", "trigger", trigger)
		return
	}
	m.logger.V(1).Info("rotation attempt finished", "trigger", trigger, "outcome", out.Kind.String())
}

type meteredValidator struct {
	next    Validator
	metrics metrics.Credentials
}

func (v meteredValidator) Validate(ctx context.Context, token string) bool {
	start := time.Now()
	ok := v.next.Validate(ctx, token)
	v.metrics.RecordValidation(ctx, ok, time.Since(start))
	return ok
}

type meteredGenerator struct {
	next    Generator
	metrics metrics.Credentials
}

func (g meteredGenerator) Generate(ctx context.Context) (*oauth2.Token, error) {
	start := time.Now()
	token, err := g.next.Generate(ctx)
	g.metrics.RecordIssuance(ctx, err == nil, time.Since(start))
	return token, err
}
