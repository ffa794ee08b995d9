// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v3"
)

// yamlConfig is a kong.ConfigurationLoader for YAML files. Keys are flag
// names in snake case, e.g. rotation_interval: 1h. A value from the file
// never replaces one taken from a set environment variable.
func yamlConfig(r io.Reader) (kong.Resolver, error) {
	values := map[string]any{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode YAML config: %w", err)
	}
	// The JSON resolver already implements kong's flag name matching.
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("failed to convert YAML config: %w", err)
	}
	resolver, err := kong.JSON(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return envFirstResolver{Resolver: resolver}, nil
}

// envFirstResolver leaves a flag unresolved when one of its env variables is set.
type envFirstResolver struct {
	kong.Resolver
}

func (r envFirstResolver) Resolve(ctx *kong.Context, parent *kong.Path, flag *kong.Flag) (any, error) {
	for _, env := range flag.Envs {
		if _, ok := os.LookupEnv(env); ok {
			return nil, nil
		}
	}
	return r.Resolver.Resolve(ctx, parent, flag)
}
