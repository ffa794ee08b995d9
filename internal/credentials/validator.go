// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package credentials

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-logr/logr"
)

const (
	// validationPath is a cheap authenticated read on the Port API.
	validationPath = "/v1/blueprints"
	// DefaultRequestTimeout bounds every outbound validation and issuance call.
	DefaultRequestTimeout = 10 * time.Second
	// maxDrainBytes caps how much of a validation response is read before closing it.
	maxDrainBytes = 4 << 10
)

// Validator confirms whether a bearer token is currently accepted by the remote service.
type Validator interface {
	// Validate returns true only when the remote service explicitly accepted the token.
	// Transport errors, timeouts and non-success statuses all yield false.
	Validate(ctx context.Context, token string) bool
}

// httpValidator implements Validator against the Port API.
type httpValidator struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
	logger   logr.Logger
}

// NewHTTPValidator returns a Validator that issues GET {baseURL}/v1/blueprints with the token.
// A nil client uses http.DefaultClient and a non-positive timeout uses DefaultRequestTimeout.
func NewHTTPValidator(baseURL string, client *http.Client, timeout time.Duration, logger logr.Logger) Validator {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &httpValidator{
		endpoint: strings.TrimSuffix(baseURL, "/") + validationPath,
		client:   client,
		timeout:  timeout,
		logger:   logger.WithName("validator"),
	}
}

// Validate implements [Validator.Validate].
func (v *httpValidator) Validate(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint, nil)
	if err != nil {
		v.logger.Error(err, "failed to create validation request")
		return false
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.V(1).Info("token validation request failed", "error", err.Error())
		return false
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		v.logger.V(1).Info("token rejected by upstream", "status", resp.StatusCode)
		return false
	}
	return true
}
