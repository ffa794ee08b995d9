// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

const (
	issuancePath = "/v1/auth/access_token"
	// maxResponseBytes caps how much of an issuance response is read.
	maxResponseBytes = 64 << 10
	// maxExpiresInSeconds is the largest expiresIn a time.Duration can hold.
	maxExpiresInSeconds = float64(math.MaxInt64 / int64(time.Second))
)

// Generator exchanges client credentials for a freshly issued bearer token.
type Generator interface {
	// Generate returns the newly issued token. It fails with ErrCredentialsMissing when
	// the client id or secret is not configured, and with an *IssuanceError otherwise.
	Generate(ctx context.Context) (*oauth2.Token, error)
}

type accessTokenRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

// httpGenerator implements Generator against the Port API.
type httpGenerator struct {
	endpoint     string
	clientID     string
	clientSecret string
	client       *http.Client
	timeout      time.Duration
	logger       logr.Logger
	now          func() time.Time
}

// NewHTTPGenerator returns a Generator that issues POST {baseURL}/v1/auth/access_token.
// A nil client uses http.DefaultClient and a non-positive timeout uses DefaultRequestTimeout.
func NewHTTPGenerator(baseURL string, cfg Config, client *http.Client, timeout time.Duration, logger logr.Logger) Generator {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &httpGenerator{
		endpoint:     strings.TrimSuffix(baseURL, "/") + issuancePath,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		client:       client,
		timeout:      timeout,
		logger:       logger.WithName("generator"),
		now:          time.Now,
	}
}

// Generate implements [Generator.Generate].
func (g *httpGenerator) Generate(ctx context.Context) (*oauth2.Token, error) {
	if g.clientID == "" || g.clientSecret == "" {
		return nil, ErrCredentialsMissing
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	body, err := json.Marshal(accessTokenRequest{ClientID: g.clientID, ClientSecret: g.clientSecret})
	if err != nil {
		return nil, &IssuanceError{Err: fmt.Errorf("failed to encode request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &IssuanceError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &IssuanceError{Err: fmt.Errorf("token request failed: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &IssuanceError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &IssuanceError{
			StatusCode: resp.StatusCode,
			Message:    upstreamMessage(raw),
			Body:       truncate(string(raw), maxErrorBodyLen),
		}
	}

	if !gjson.ValidBytes(raw) {
		return nil, &IssuanceError{StatusCode: resp.StatusCode, Err: errors.New("failed to parse response: invalid JSON")}
	}
	parsed := gjson.ParseBytes(raw)
	accessToken := parsed.Get("accessToken")
	if accessToken.Type != gjson.String || accessToken.Str == "" {
		return nil, &IssuanceError{StatusCode: resp.StatusCode, Message: "response did not contain an access token"}
	}

	token := &oauth2.Token{
		AccessToken: accessToken.Str,
		TokenType:   parsed.Get("tokenType").String(),
	}
	expiresIn, ok := expiresInSeconds(parsed.Get("expiresIn"))
	if ok {
		token.Expiry = g.now().Add(time.Duration(expiresIn * float64(time.Second)))
	}
	// Expiry is only observed. Periodic validation decides when the token is replaced.
	g.logger.Info("access token issued",
		"tokenType", token.TokenType,
		"expiresIn", expiresIn,
		"tokenLength", len(token.AccessToken))
	return token, nil
}

// expiresInSeconds reads expiresIn as a JSON number or a numeric string.
// ok is false when the value is missing, unparsable or not positive.
func expiresInSeconds(v gjson.Result) (secs float64, ok bool) {
	switch v.Type {
	case gjson.Number:
		secs = v.Num
	case gjson.String:
		f, err := strconv.ParseFloat(v.Str, 64)
		if err != nil {
			return 0, false
		}
		secs = f
	default:
		return 0, false
	}
	// Also rejects NaN and values that overflow a time.Duration.
	if !(secs > 0) || secs > maxExpiresInSeconds {
		return 0, false
	}
	return secs, true
}

// upstreamMessage extracts a readable reason from a rejected issuance payload.
func upstreamMessage(raw []byte) string {
	if !gjson.ValidBytes(raw) {
		return ""
	}
	for _, path := range []string{"message", "error_description", "error", "details.message"} {
		if v := gjson.GetBytes(raw, path); v.Exists() && v.Type == gjson.String {
			return v.String()
		}
	}
	return ""
}
