// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package version holds the build version of portdash.
package version

// Version is overridden at build time with -ldflags "-X github.com/envoyproxy/portdash/internal/version.Version=...".
var Version = "dev"
