// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gogama/relay/request"
)

// DefaultRetryAfterMax is the longest Retry-After hint DefaultPolicy
// will honor. Hints above this value are truncated to it.
const DefaultRetryAfterMax = 2 * time.Minute

// RespectRetryAfter decorates a Waiter so that a Retry-After header on
// the most recent response overrides the wait the decorated Waiter
// would compute. The hint wins whenever it is present and parseable,
// even if it is shorter than the computed wait.
//
// The header value may be a delay in seconds or an HTTP-date, per RFC
// 7231 section 7.1.3. A hint longer than max is truncated to max, so a
// hostile or misconfigured server cannot stall executions arbitrarily
// long. Responses without a parseable hint fall through to the
// decorated Waiter.
func RespectRetryAfter(w Waiter, max time.Duration) Waiter {
	if w == nil {
		panic("relay/retry: nil waiter")
	}
	if max < 1 {
		panic("relay/retry: max must be positive")
	}
	return &retryAfterWaiter{next: w, max: max}
}

type retryAfterWaiter struct {
	next Waiter
	max  time.Duration
}

func (w *retryAfterWaiter) Wait(e *request.Execution) time.Duration {
	if d, ok := retryAfterHint(e.Header().Get("Retry-After"), time.Now()); ok {
		if d > w.max {
			d = w.max
		}
		return d
	}
	return w.next.Wait(e)
}

// retryAfterHint parses a Retry-After header value, which may be a
// non-negative delay in seconds or an HTTP-date. A date in the past,
// or a negative delay, yields a zero wait.
func retryAfterHint(value string, now time.Time) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			secs = 0
		}
		return time.Duration(secs) * time.Second, true
	}
	if date, err := http.ParseTime(value); err == nil {
		d := date.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
