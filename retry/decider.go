// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"time"

	"github.com/gogama/relay/request"
	"github.com/gogama/relay/transient"
)

// A Decider decides if a retry should be done.
//
// Implementations of Decider must be safe for concurrent use by
// multiple goroutines.
//
// Use the built-in constructors Times, Total, StatusCode, and Before,
// and the built-in deciders ConnReset and TransientErr; or implement
// your own Decider. Use DeciderFunc to convert an ordinary function
// into a Decider, and to compose deciders logically using
// DeciderFunc.And and DeciderFunc.Or.
type Decider interface {
	Decide(e *request.Execution) bool
}

// The DeciderFunc type is an adapter to allow the use of ordinary
// functions as retry deciders. It implements the Decider interface, and
// also provides the logical composition methods And and Or.
//
// Every DeciderFunc must be safe for concurrent use by multiple
// goroutines.
//
// Simple DeciderFunc functions can be composed into complex decision
// trees using the logical composition functions DeciderFunc.And and
// DeciderFunc.Or. Because of this composition ability, it will often
// be convenient to work directly with DeciderFunc rather than with
// Decider.
type DeciderFunc func(e *request.Execution) bool

// DefaultTimes is the number of times DefaultPolicy will retry.
const DefaultTimes = 5

// DefaultDecider is a general-purpose retry decider suitable for
// common use cases. It will allow up to DefaultTimes retries (i.e. up
// to 6 total attempts), and will retry if the server throttled the
// attempt with status code 429 (Too Many Requests) or the connection
// was reset by the peer before a response arrived.
//
// DefaultDecider deliberately does not retry other status codes or
// error categories. A 5xx response may follow a state-changing write
// that partially succeeded, and a timed-out attempt is resolved
// terminally by the executing client before any retry decider runs, so
// listing timeouts here would have no effect.
var DefaultDecider = Times(DefaultTimes).And(StatusCode(429).Or(ConnReset))

// ConnReset is a decider that indicates a retry if the current error
// is a connection reset, i.e. transient.Categorize classifies it as
// transient.ConnReset.
//
// A reset connection is the one network failure mode where the peer
// affirmatively refused or dropped the exchange, so resending is safe.
// ConnReset only looks at the error, so it will always return false if
// a valid HTTP response was received.
var ConnReset DeciderFunc = connReset

// TransientErr is a decider that indicates a retry if the current
// error is transient according to transient.Categorize.
//
// TransientErr is broader than ConnReset: it matches every category
// reported by transient.Categorize, including refused connections and
// prematurely closed response bodies. Note that a timed-out attempt is
// resolved terminally by the executing client before the retry policy
// is consulted, so including TransientErr in a policy does not
// resurrect timeouts.
//
// TransientErr only looks at the error, so it will always return false
// if a valid HTTP response is returned. Compose it with other deciders,
// for example a status code decider constructed with StatusCode, to
// get more complex functionality.
var TransientErr DeciderFunc = transientErr

// Decide returns true if a retry should be done, and false otherwise,
// after examining the current HTTP request plan execution state.
func (f DeciderFunc) Decide(e *request.Execution) bool {
	return f(e)
}

// And composes two retry deciders into a new decider which returns true
// if both sub-deciders return true, and false otherwise.
//
// Short-circuit logic is used, so g will not be evaluated if f returns
// false.
func (f DeciderFunc) And(g DeciderFunc) DeciderFunc {
	return func(e *request.Execution) bool {
		return f(e) && g(e)
	}
}

// Or composes two retry deciders into a new decider which returns
// true if either of the two sub-deciders returns true, but false if
// they both return false.
//
// Short-circuit logic is used, so g will not be evaluated if f returns
// true.
func (f DeciderFunc) Or(g DeciderFunc) DeciderFunc {
	return func(e *request.Execution) bool {
		return f(e) || g(e)
	}
}

// Times constructs a retry decider which allows up to n retries. The
// returned decider returns true while the execution attempt index
// e.Attempt is less than n, and false otherwise.
//
// Redirect hops and credential refresh replays do not advance
// e.Attempt, so they never consume the retry budget.
func Times(n int) DeciderFunc {
	return func(e *request.Execution) bool {
		return e.Attempt < n
	}
}

// Total constructs a retry decider which allows up to n total attempts,
// i.e. up to n-1 retries. It is equivalent to Times(n-1) and exists for
// callers who think in terms of an overall attempt budget rather than a
// retry count.
func Total(n int) DeciderFunc {
	return func(e *request.Execution) bool {
		return e.Attempt+1 < n
	}
}

// Before constructs a retry decider allowing retries until a certain
// amount of time has elapsed since the start of the logical HTTP request
// plan execution. The returned decider returns true while the execution
// duration is less than d, and false afterward.
func Before(d time.Duration) DeciderFunc {
	return func(e *request.Execution) bool {
		return e.Duration() < d
	}
}

// StatusCode constructs a retry decider allowing retries based on the
// HTTP response status code. If the most recent request attempt within
// the plan execution received a valid HTTP response, and the response
// status code is contained in the list ss, the decider returns true.
// Otherwise, it returns false.
func StatusCode(ss ...int) DeciderFunc {
	ss2 := make([]int, len(ss))
	copy(ss2, ss)
	return func(e *request.Execution) bool {
		for _, s := range ss2 {
			if e.StatusCode() == s {
				return true
			}
		}
		return false
	}
}

func connReset(e *request.Execution) bool {
	return transient.Categorize(e.Err) == transient.ConnReset
}

func transientErr(e *request.Execution) bool {
	return transient.Categorize(e.Err) != transient.Not
}
