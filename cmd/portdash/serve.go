// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/envoyproxy/portdash/internal/admin"
	"github.com/envoyproxy/portdash/internal/credentials"
	"github.com/envoyproxy/portdash/internal/metrics"
	"github.com/envoyproxy/portdash/internal/version"
)

func serve(ctx context.Context, c cmdServe, stderr io.Writer) error {
	logger, err := newLogger(c.LogLevel, stderr)
	if err != nil {
		return err
	}

	m, err := metrics.NewMetricsFromEnv(ctx)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}
	defer func() {
		if err := m.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Error(err, "failed to shut down metrics")
		}
	}()

	cfg := c.credentialsConfig()
	client := &http.Client{}
	mgr := credentials.NewManager(logger, cfg, c.RotationInterval,
		credentials.NewHTTPValidator(c.BaseURL, client, c.RequestTimeout, logger),
		credentials.NewHTTPGenerator(c.BaseURL, cfg, client, c.RequestTimeout, logger),
		metrics.NewCredentials(m.Meter()))

	srv := admin.NewServer(logger, c.Listen, mgr, mgr, m.Gatherer())

	logger.Info("starting portdash",
		"version", version.Version,
		"baseURL", c.BaseURL,
		"rotationInterval", c.RotationInterval.String(),
		"hasPrimaryToken", cfg.PrimaryToken != "",
		"hasSecondaryToken", cfg.SecondaryToken != "",
		"hasClientCredentials", cfg.HasClientCredentials())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mgr.Start(gctx) })
	g.Go(func() error { return srv.Run(gctx) })
	return g.Wait()
}

// newLogger returns a JSON zap logger on w behind logr.
func newLogger(level string, w io.Writer) (logr.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return logr.Discard(), fmt.Errorf("invalid log level: %s", level)
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(w), zapLevel)
	return zapr.NewLogger(zap.New(core)), nil
}
