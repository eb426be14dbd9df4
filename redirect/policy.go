// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package redirect

import (
	"github.com/gogama/relay/request"
)

// A Policy decides whether the robust HTTP client (relay.Client)
// should follow a redirect response. It is consulted once per
// redirect-eligible response, i.e. a response whose status is one of
// the five redirect codes and which carries a Location header.
//
// When the policy declines, the execution resolves terminally with a
// RedirectError carrying the refused response.
//
// Implementations of Policy must be safe for concurrent use by
// multiple goroutines.
type Policy interface {
	// Follow returns true if the redirect response on the current
	// execution should be followed, and false if the execution should
	// stop here.
	//
	// Parameter e contains the current state of the HTTP request plan
	// execution. The count of hops already followed is e.Redirects,
	// and the redirect response is e.Response.
	Follow(e *request.Execution) bool
}

// DefaultLimit is the number of redirect hops DefaultPolicy follows,
// matching the limit used by net/http.
const DefaultLimit = 10

// DefaultPolicy is the default redirect policy. It follows up to
// DefaultLimit hops.
var DefaultPolicy Policy = Limit(DefaultLimit)

// Never is a policy that never follows redirects, so the first
// redirect response resolves the execution with a RedirectError.
var Never Policy = Limit(0)

// Limit constructs a redirect policy which follows up to n hops. The
// returned policy returns true while the execution hop count
// e.Redirects is less than n, and false otherwise.
func Limit(n int) Policy {
	return limit(n)
}

type limit int

func (l limit) Follow(e *request.Execution) bool {
	return e.Redirects < int(l)
}
