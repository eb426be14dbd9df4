// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package timeout

import (
	"time"

	"github.com/gogama/relay/request"
)

// A Policy defines a timeout policy which may be plugged into the
// robust HTTP client (relay.Client) to direct how to set the request
// timeout for the initial attempt, as well as for any subsequent
// retries.
//
// An attempt which exceeds its timeout resolves the whole execution
// terminally: the client never retries a timed-out attempt, since the
// attempt may have reached the server and done its work. Pick attempt
// timeouts accordingly. To bound the whole logical request rather than
// each attempt, put a deadline on the plan's context instead.
//
// Implementations of Policy must be safe for concurrent use by multiple
// goroutines.
type Policy interface {
	// Timeout returns the timeout to set on the next HTTP request
	// attempt within the plan execution
	//
	// Parameter e contains the current state of the HTTP request plan
	// execution. The return value is the timeout to set on the next
	// request attempt within the execution.
	Timeout(e *request.Execution) time.Duration
}

// DefaultPolicy is the default timeout policy. It never times an
// attempt out, leaving the plan's context deadline, if any, as the
// only clock on the execution. Because a timed-out attempt is
// terminal, a finite default here would quietly convert slow requests
// into hard failures; opt into that with Fixed.
var DefaultPolicy = Infinite

// Infinite is a built-in timeout policy which never times out.
var Infinite Policy = Fixed(1<<63 - 1)

// Fixed constructs a timeout policy that uses the same value to set
// every attempt timeout. The return value is a timeout policy that
// always returns the value d.
//
// Use Fixed to create the typical timeout behavior supported by most
// HTTP client software.
func Fixed(d time.Duration) Policy {
	return policy(d)
}

type policy time.Duration

func (p policy) Timeout(_ *request.Execution) time.Duration {
	return time.Duration(p)
}
