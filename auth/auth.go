// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"context"

	"github.com/gogama/relay/request"
)

// A CredentialAgent mints the Authorization header value the robust
// HTTP client (relay.Client) attaches to each request attempt.
//
// Header returns the current header value, for example "Bearer abc" or
// "Basic dXNlcjpwYXNz". An empty value means no Authorization header
// should be attached. A non-nil error resolves the execution
// terminally before any transport call is made.
//
// The agent is inactive for plans which carry their own Authorization
// header: an explicitly set header always wins.
//
// Implementations of CredentialAgent must be safe for concurrent use
// by multiple goroutines.
type CredentialAgent interface {
	Header(ctx context.Context) (string, error)
}

// A RefreshAgent is a CredentialAgent able to replace its credential
// after the server rejects it.
//
// When an attempt comes back 401 Unauthorized and the client's agent
// is a RefreshAgent, the client calls Refresh once and replays the
// rejected request with the header value a fresh Header call returns.
// The refresh happens at most once per execution: a 401 on the
// replayed request, or on an execution whose refresh is already spent,
// is terminal. The replay is not counted against the retry budget.
//
// Refresh blocks until the new credential is ready or ctx is done. An
// implementation doing its work asynchronously should adapt to this
// contract by waiting on its completion and on ctx.Done, whichever
// comes first. A non-nil error resolves the execution terminally.
type RefreshAgent interface {
	CredentialAgent
	Refresh(ctx context.Context, e *request.Execution) error
}

// Basic returns a CredentialAgent supplying an HTTP Basic
// Authentication header with the given username and password on every
// attempt. The credential is static, so a 401 stays terminal.
func Basic(username, password string) CredentialAgent {
	return static("Basic " + request.BasicAuth(username, password))
}

// Bearer returns a CredentialAgent supplying a fixed OAuth 2.0 bearer
// token on every attempt. The credential is static, so a 401 stays
// terminal. For a token that renews itself, use OAuth2 or
// ClientCredentials.
func Bearer(token string) CredentialAgent {
	return static("Bearer " + token)
}

type static string

func (s static) Header(_ context.Context) (string, error) {
	return string(s), nil
}

// An Agent adapts ordinary functions into a RefreshAgent, for
// credential schemes this package has no built-in support for.
//
// HeaderFunc supplies the Authorization header value per attempt; a
// nil HeaderFunc attaches no header. RefreshFunc replaces the
// credential after a 401; a nil RefreshFunc makes the refresh a no-op,
// so the rejected request is replayed once with an unchanged
// credential.
type Agent struct {
	HeaderFunc  func(ctx context.Context) (string, error)
	RefreshFunc func(ctx context.Context, e *request.Execution) error
}

// Header calls HeaderFunc if it is set.
func (a Agent) Header(ctx context.Context) (string, error) {
	if a.HeaderFunc == nil {
		return "", nil
	}
	return a.HeaderFunc(ctx)
}

// Refresh calls RefreshFunc if it is set.
func (a Agent) Refresh(ctx context.Context, e *request.Execution) error {
	if a.RefreshFunc == nil {
		return nil
	}
	return a.RefreshFunc(ctx, e)
}
