// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package credentials

// Config is the static credential configuration loaded once at startup.
// An empty string means the value is not configured.
type Config struct {
	// PrimaryToken is the preferred pre-provisioned bearer token.
	PrimaryToken string
	// SecondaryToken is the pre-provisioned token used when the primary stops validating.
	SecondaryToken string
	// ServiceToken is only reported in the status. It never takes part in rotation.
	ServiceToken string
	// ClientID and ClientSecret are exchanged for freshly issued tokens.
	ClientID     string
	ClientSecret string
}

// HasClientCredentials reports whether both the client id and secret are configured.
func (c Config) HasClientCredentials() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// fallbackFor returns the static token to try when current stopped validating:
// the secondary when current is the primary, the primary otherwise.
func (c Config) fallbackFor(current string) string {
	if current == c.PrimaryToken {
		return c.SecondaryToken
	}
	return c.PrimaryToken
}

// staticTokens returns the configured static tokens in probing order.
func (c Config) staticTokens() []string {
	var tokens []string
	for _, t := range []string{c.PrimaryToken, c.SecondaryToken} {
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}
