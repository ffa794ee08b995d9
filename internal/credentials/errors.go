// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package credentials

import (
	"errors"
	"fmt"
)

var (
	// ErrCredentialsMissing is returned by a Generator when the client id or secret is not configured.
	ErrCredentialsMissing = errors.New("client credentials are not configured")
	// ErrIssuanceFailed matches every *IssuanceError.
	ErrIssuanceFailed = errors.New("token issuance failed")
	// ErrRotationInProgress is returned by Manager.Rotate when another attempt holds the guard.
	ErrRotationInProgress = errors.New("rotation already in progress")
	// ErrNoToken is returned by Store.Token when no token is currently held.
	ErrNoToken = errors.New("no bearer token available")
	// ErrNoValidToken is logged when no source produced a valid token.
	ErrNoValidToken = errors.New("no valid token could be obtained from any source")
)

// maxErrorBodyLen bounds how much of an upstream error payload is kept.
const maxErrorBodyLen = 512

// IssuanceError describes a failed token exchange.
type IssuanceError struct {
	// StatusCode is the upstream HTTP status, zero on transport failures.
	StatusCode int
	// Message is the human-readable reason reported by the upstream, if any.
	Message string
	// Body is the raw upstream payload, truncated.
	Body string
	// Err is the underlying transport or decoding error, if any.
	Err error
}

// Error implements error.
func (e *IssuanceError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode == 0:
		return fmt.Sprintf("token issuance failed: %v", e.Err)
	case e.Err != nil:
		return fmt.Sprintf("token issuance failed with status %d: %v", e.StatusCode, e.Err)
	case e.Message != "":
		return fmt.Sprintf("token issuance failed with status %d: %s", e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("token issuance failed with status %d", e.StatusCode)
	}
}

// Unwrap returns the underlying error.
func (e *IssuanceError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrIssuanceFailed) hold for every IssuanceError.
func (e *IssuanceError) Is(target error) bool { return target == ErrIssuanceFailed }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
