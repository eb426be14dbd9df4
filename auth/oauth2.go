// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"context"
	"sync"
	"time"

	"github.com/gogama/relay/request"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

// mintTimeout bounds a mint call, which runs detached from the callers
// waiting on it, so a dead token endpoint cannot hold the shared mint
// open forever.
const mintTimeout = 30 * time.Second

// OAuth2 returns a RefreshAgent which attaches tokens minted by an
// oauth2.TokenSource.
//
// The agent caches the most recent token and reuses it while it
// remains valid, consulting src only when the cache is empty, expired,
// or invalidated by a refresh. Concurrent executions needing a token
// at the same moment share a single call to src.
//
// A refresh invalidates the cache and asks src for a replacement. Note
// that a source which itself caches tokens, such as one returned by
// oauth2.ReuseTokenSource, cannot mint a replacement for a token the
// server rejected before its expiry; the replayed request then fails
// terminally. For client-credentials flows prefer ClientCredentials,
// which mints a genuinely fresh token on every refresh.
func OAuth2(src oauth2.TokenSource) RefreshAgent {
	if src == nil {
		panic("relay/auth: nil token source")
	}
	return &tokenAgent{mint: func(_ context.Context) (*oauth2.Token, error) {
		return src.Token()
	}}
}

// ClientCredentials returns a RefreshAgent implementing the OAuth 2.0
// client credentials flow described by cfg.
//
// The agent caches each minted token and reuses it while it remains
// valid. A refresh discards the cached token and requests a fresh one
// from the token endpoint, so a token the server revoked early is
// replaced rather than replayed. Concurrent executions needing a
// token at the same moment share a single token endpoint call.
func ClientCredentials(cfg *clientcredentials.Config) RefreshAgent {
	if cfg == nil {
		panic("relay/auth: nil config")
	}
	return &tokenAgent{mint: cfg.Token}
}

type tokenAgent struct {
	mint  func(ctx context.Context) (*oauth2.Token, error)
	group singleflight.Group
	lock  sync.Mutex
	token *oauth2.Token
}

func (a *tokenAgent) Header(ctx context.Context) (string, error) {
	a.lock.Lock()
	t := a.token
	a.lock.Unlock()
	if t.Valid() {
		return authHeader(t), nil
	}
	return a.refill(ctx)
}

func (a *tokenAgent) Refresh(ctx context.Context, _ *request.Execution) error {
	a.lock.Lock()
	a.token = nil
	a.lock.Unlock()
	_, err := a.refill(ctx)
	return err
}

// refill mints a token, collapsing concurrent callers onto a single
// mint call, and caches the result. The mint runs on its own context,
// not the initiating caller's, so one caller canceling cannot fail the
// shared call for everyone else: a caller whose ctx is done unblocks
// early, leaving the mint to finish and fill the cache for later
// attempts.
func (a *tokenAgent) refill(ctx context.Context) (string, error) {
	ch := a.group.DoChan("token", func() (interface{}, error) {
		mintCtx, cancel := context.WithTimeout(context.Background(), mintTimeout)
		defer cancel()
		t, err := a.mint(mintCtx)
		if err != nil {
			return nil, err
		}
		a.lock.Lock()
		a.token = t
		a.lock.Unlock()
		return t, nil
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case result := <-ch:
		if result.Err != nil {
			return "", result.Err
		}
		return authHeader(result.Val.(*oauth2.Token)), nil
	}
}

func authHeader(t *oauth2.Token) string {
	return t.Type() + " " + t.AccessToken
}
