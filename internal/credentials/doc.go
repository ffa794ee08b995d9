// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

/*
Package credentials keeps one usable bearer token for the Port API.

# Components

  - Config: the static credentials loaded once at startup (primary, secondary and
    service tokens plus a client id/secret pair).
  - Store: the single current token and its rotation bookkeeping. It is the only
    read path for other components: CurrentToken, Status, and the oauth2.TokenSource
    adapter used to authenticate upstream calls.
  - Validator: GET /v1/blueprints with the token; only a 200 counts as valid.
  - Generator: POST /v1/auth/access_token with the client credentials.
  - Manager: runs the rotation decision tree on a ticker and on demand.

# Rotation

One attempt runs the following steps:

 1. No current token and client credentials are configured: generate. On success
    the generated token is adopted.
 2. A current token is held: validate it. A valid token ends the attempt with no
    change. Otherwise generate (when credentials exist), then fall back to the
    other static token if it validates.
 3. No current token and generation is not possible or failed: try the primary,
    then the secondary token.

A token is only adopted after it was issued or validated, and the rotation time
is only stamped on adoption. When nothing validates the state is left as it was
and the condition is logged.

# Concurrency

Rotate takes an atomic guard with compare-and-swap. A second trigger while an
attempt is running returns ErrRotationInProgress immediately, without queuing and
without network calls. Every outbound call has its own timeout, so the guard is
always released in bounded time.
*/
package credentials
