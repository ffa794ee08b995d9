// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package credentials

import (
	"context"
	"time"
)

// OutcomeKind tags the result of one rotation attempt.
type OutcomeKind int

const (
	// OutcomeNoOp means the held token is still valid and nothing changed.
	OutcomeNoOp OutcomeKind = iota
	// OutcomeGenerated means a freshly issued token was adopted.
	OutcomeGenerated
	// OutcomeFellBack means a static token passed validation and was adopted.
	OutcomeFellBack
	// OutcomeNoneValid means no source produced a valid token and nothing changed.
	OutcomeNoneValid
)

// String returns the label used in logs and metrics.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeNoOp:
		return "noop"
	case OutcomeGenerated:
		return "generated"
	case OutcomeFellBack:
		return "fell_back"
	case OutcomeNoneValid:
		return "none_valid"
	default:
		return "unknown"
	}
}

// MarshalText lets the kind be rendered by name in JSON responses.
func (k OutcomeKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Outcome is the decision taken by one rotation attempt.
type Outcome struct {
	Kind OutcomeKind `json:"kind"`
	// Token is the token to adopt for OutcomeGenerated and OutcomeFellBack.
	Token string `json:"-"`
	// Source names where an adopted token came from: "generated", "primary" or "secondary".
	Source string `json:"source,omitempty"`
	// Expiry is the advertised expiry of a generated token, zero if unknown.
	Expiry time.Time `json:"-"`
	// Err is the generation failure seen during the attempt, if any.
	Err error `json:"-"`
}

// adopts reports whether the outcome replaces the current token.
func (o Outcome) adopts() bool {
	return o.Kind == OutcomeGenerated || o.Kind == OutcomeFellBack
}

// decide runs the rotation decision tree for the given current token.
// It performs the network calls through v and g but never mutates state.
//
// Preference order: keep a token that still validates, then a generated
// token, then the other static token.
func decide(ctx context.Context, cfg Config, current string, v Validator, g Generator) Outcome {
	canGenerate := cfg.HasClientCredentials()
	var genErr error

	if current == "" && canGenerate {
		out, err := generate(ctx, g)
		if err == nil {
			return out
		}
		genErr = err
		// Still no token: try the static ones below.
	}

	if current != "" {
		if v.Validate(ctx, current) {
			return Outcome{Kind: OutcomeNoOp}
		}
		if canGenerate {
			out, err := generate(ctx, g)
			if err == nil {
				return out
			}
			genErr = err
		}
		// A fallback equal to current is already known to be invalid.
		if fallback := cfg.fallbackFor(current); fallback != "" && fallback != current && v.Validate(ctx, fallback) {
			return cfg.fellBackTo(fallback, genErr)
		}
		return Outcome{Kind: OutcomeNoneValid, Err: genErr}
	}

	for _, t := range cfg.staticTokens() {
		if v.Validate(ctx, t) {
			return cfg.fellBackTo(t, genErr)
		}
	}
	return Outcome{Kind: OutcomeNoneValid, Err: genErr}
}

func generate(ctx context.Context, g Generator) (Outcome, error) {
	token, err := g.Generate(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if token == nil || token.AccessToken == "" {
		return Outcome{}, &IssuanceError{Message: "generator returned an empty token"}
	}
	return Outcome{Kind: OutcomeGenerated, Token: token.AccessToken, Source: "generated", Expiry: token.Expiry}, nil
}

func (c Config) fellBackTo(token string, genErr error) Outcome {
	source := "secondary"
	if token == c.PrimaryToken {
		source = "primary"
	}
	return Outcome{Kind: OutcomeFellBack, Token: token, Source: source, Err: genErr}
}
