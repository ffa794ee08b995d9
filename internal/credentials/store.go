// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package credentials

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"
)

// isoMillis matches the ISO-8601 form the dashboard renders.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// Status is a point-in-time snapshot of the credential state. It never contains a token value.
type Status struct {
	HasPrimaryToken   bool   `json:"hasPrimaryToken"`
	HasSecondaryToken bool   `json:"hasSecondaryToken"`
	HasServiceToken   bool   `json:"hasServiceToken"`
	HasClientID       bool   `json:"hasClientId"`
	HasClientSecret   bool   `json:"hasClientSecret"`
	HasCurrentToken   bool   `json:"hasCurrentToken"`
	LastRotation      string `json:"lastRotation"`
	NextRotation      string `json:"nextRotation"`
	RotationInterval  string `json:"rotationInterval"`
	IsRotating        bool   `json:"isRotating"`
}

// Store holds the immutable Config and the single mutable current token.
// Reads do not wait for a rotation in progress; the mutex only covers the
// final assignment of an attempt.
type Store struct {
	cfg      Config
	interval time.Duration

	mu           sync.RWMutex
	currentToken string
	lastRotation time.Time

	// rotating is the entry guard taken by Manager.Rotate.
	rotating atomic.Bool
}

var _ oauth2.TokenSource = (*Store)(nil)

func newStore(cfg Config, interval time.Duration, now time.Time) *Store {
	return &Store{
		cfg:          cfg,
		interval:     interval,
		currentToken: cfg.PrimaryToken,
		lastRotation: now,
	}
}

// CurrentToken returns the token other components must use. ok is false when no token is held.
func (s *Store) CurrentToken() (token string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentToken, s.currentToken != ""
}

// Status returns a snapshot of the presence flags and rotation bookkeeping.
func (s *Store) Status() Status {
	s.mu.RLock()
	hasCurrent := s.currentToken != ""
	last := s.lastRotation
	s.mu.RUnlock()

	return Status{
		HasPrimaryToken:   s.cfg.PrimaryToken != "",
		HasSecondaryToken: s.cfg.SecondaryToken != "",
		HasServiceToken:   s.cfg.ServiceToken != "",
		HasClientID:       s.cfg.ClientID != "",
		HasClientSecret:   s.cfg.ClientSecret != "",
		HasCurrentToken:   hasCurrent,
		LastRotation:      last.UTC().Format(isoMillis),
		NextRotation:      last.Add(s.interval).UTC().Format(isoMillis),
		RotationInterval:  s.interval.String(),
		IsRotating:        s.rotating.Load(),
	}
}

// Token implements oauth2.TokenSource so the current token can authenticate upstream calls.
// It is the read path for the proxy layer that forwards dashboard requests to the Port API.
func (s *Store) Token() (*oauth2.Token, error) {
	token, ok := s.CurrentToken()
	if !ok {
		return nil, ErrNoToken
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}

// Client returns an HTTP client that sets the token current at send time on every request.
// The proxy layer uses it for upstream Port API calls. A nil base uses http.DefaultTransport.
func (s *Store) Client(base http.RoundTripper) *http.Client {
	return &http.Client{Transport: &oauth2.Transport{Source: s, Base: base}}
}

// adopt replaces the current token and stamps the rotation time.
func (s *Store) adopt(token string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentToken = token
	s.lastRotation = at
}
