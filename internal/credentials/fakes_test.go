// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package credentials

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
	"golang.org/x/oauth2"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// Idle keep-alive connections of httptest clients wind down after the test returns.
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

// fakeValidator accepts the tokens marked valid and records every call.
type fakeValidator struct {
	mu    sync.Mutex
	valid map[string]bool
	calls []string
	// ctxErrs records ctx.Err() as seen by each call.
	ctxErrs []error
	// entered, when set, receives one value per call before it blocks on release.
	entered chan struct{}
	release chan struct{}
	panics  bool
}

func (f *fakeValidator) Validate(ctx context.Context, token string) bool {
	f.mu.Lock()
	f.calls = append(f.calls, token)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	entered, release, panics := f.entered, f.release, f.panics
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}
	if panics {
		panic("validator exploded")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.valid[token]
}

func (f *fakeValidator) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeGenerator returns a fixed token or error and counts calls.
type fakeGenerator struct {
	mu     sync.Mutex
	token  string
	expiry time.Time
	err    error
	calls  int
}

func (f *fakeGenerator) Generate(context.Context) (*oauth2.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &oauth2.Token{AccessToken: f.token, TokenType: "Bearer", Expiry: f.expiry}, nil
}

func (f *fakeGenerator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recordingMetrics implements metrics.Credentials in memory.
type recordingMetrics struct {
	mu          sync.Mutex
	rotations   []string
	validations []bool
	issuances   []bool
}

func (r *recordingMetrics) RecordRotation(_ context.Context, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rotations = append(r.rotations, outcome)
}

func (r *recordingMetrics) RecordValidation(_ context.Context, valid bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validations = append(r.validations, valid)
}

func (r *recordingMetrics) RecordIssuance(_ context.Context, success bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issuances = append(r.issuances, success)
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// endlessBody is a response body that never reaches EOF and counts the bytes read from it.
type endlessBody struct {
	fill byte
	read atomic.Int64
}

func (b *endlessBody) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = b.fill
	}
	b.read.Add(int64(len(p)))
	return len(p), nil
}

func (b *endlessBody) Close() error { return nil }

// endlessClient answers every request with status and an endless body.
func endlessClient(status int, body *endlessBody) *http.Client {
	return &http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: status, Header: http.Header{}, Body: body}, nil
	})}
}
