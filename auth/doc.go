// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package auth provides credential agents for the robust HTTP client,
// relay.Client. An agent supplies the Authorization header attached to
// each request attempt and, in the RefreshAgent variant, replaces a
// credential the server rejected with 401 Unauthorized so the request
// can be replayed once.
//
// Static schemes are covered by Basic and Bearer. OAuth 2.0 token
// sources plug in through OAuth2 and ClientCredentials, which cache
// tokens across executions and collapse concurrent mints into a
// single upstream call. Anything else can be adapted with Agent.
package auth
