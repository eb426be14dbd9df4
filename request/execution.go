// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gogama/relay/transient"
)

// An Execution represents the state of a single Plan execution.
//
// When an HTTP request plan execution is requested, an Execution is
// created for it. The Execution is updated as the plan execution
// progresses (for example when the HTTP response becomes available,
// or when a retry, redirect, or credential refresh is needed) and is
// ultimately returned as the return value of the plan execution.
//
// Timeout, retry, and redirect policies and event handlers may set
// values on an Execution using its SetValue method and read them back
// using the Value method. However, they should treat the structure's
// exported field values as immutable and leave them unmodified, as the
// execution state is vital to the correct functioning of the plan
// execution logic. Limited exceptions to this rule include making
// reasonable changes to the http.Request before it is sent (for
// example, to support an OAuth or AWS signing use case), or adjusting
// the Working request before a redirect hop is followed.
type Execution struct {
	// Plan specifies the HTTP request plan being executed. It is never
	// nil.
	Plan *Plan

	// State is the execution's position in the attempt loop. It is
	// Idle before the execution starts and Resolved permanently once
	// the execution settles.
	State State

	// Start is the start time of the HTTP request plan execution. It
	// is assigned a non-zero value when the plan execution starts, and
	// this value remains constant thereafter.
	Start time.Time

	// End is the end time of the HTTP request plan execution. It
	// contains the zero value until the plan execution ends, when
	// it is set to the current time.
	End time.Time

	// Attempt is the zero-based number of the current HTTP request
	// attempt during the plan execution. It is set to zero on the
	// initial attempt and increments on each retry.
	//
	// Attempt counts retries only. Followed redirect hops are counted
	// by Redirects, and the replay after a credential refresh is not
	// counted at all, so an execution's total number of transport
	// calls may exceed Attempt+1.
	Attempt int

	// Redirects is the count of redirect hops followed so far during
	// the execution. It is bounded by the client's redirect policy.
	Redirects int

	// Refreshed records whether the credential refresh has already
	// been spent. A refresh happens at most once per execution: after
	// Refreshed is set, an authorization failure is terminal.
	Refreshed bool

	// Working is the mutable request state the execution will send on
	// its next attempt. It is derived from the plan when the execution
	// starts and evolves as redirects are followed and credentials are
	// refreshed.
	Working *Working

	// Request specifies the HTTP request to be made in the current
	// attempt, or already made in the last attempt.
	Request *http.Request

	// Response specifies the HTTP response received in the most recent
	// request attempt. It will be nil if the most recent attempt ended
	// in an error, or if a current attempt is underway, or before the
	// execution starts.
	Response *http.Response

	// Err indicates the error received while making the most recent
	// request attempt, or the terminal error the execution resolved
	// with. It will be nil if the most recent attempt ended without an
	// error, or if a current attempt is underway, or before the
	// execution starts.
	//
	// While an execution is in-flight, Err may fluctuate between nil
	// and various non-nil error values. Once the execution has Ended,
	// Err will not change and has the same value as the error value
	// returned by the robust client's executing method.
	Err error

	// Body is the complete response body read from the response after
	// the most recent request attempt. It will be nil if the most
	// recent attempt ended in an error, or if a current attempt is
	// underway, or if the execution streamed the response body instead
	// of buffering it.
	//
	// Note that it is possible that both Body and Err are non-nil, if
	// a read of the body was partially successful. The Body field
	// of a completed execution should be treated as invalid unless Err
	// is nil or Err carries the response itself (for example a status
	// error).
	Body []byte

	// Parsed is the value the plan's Parser produced from Body, if the
	// plan has a Parser and the execution resolved successfully with a
	// parseable response. It is nil otherwise, in particular on a 204
	// response, which is never parsed.
	Parsed interface{}

	// data contains arbitrary user data. The relay library will not
	// touch this field, and it will typically be nil unless used by
	// event handler writers.
	//
	// Event handlers may interact with this via the Value and SetValue
	// methods.
	data context.Context
}

// StatusCode returns the status code of the HTTP response from the
// most recent request attempt in the execution. If there is no HTTP
// response, 0 is returned.
//
// A zero value due to no HTTP response will be returned if the most
// recent attempt ended in error, or if a current attempt is underway,
// or before the execution starts.
func (e *Execution) StatusCode() int {
	if e.Response == nil {
		return 0
	}

	return e.Response.StatusCode
}

// Header returns the HTTP response headers from the most recent request
// attempt in the execution. If there is no HTTP response, the nil
// header is returned.
//
// A nil header due to no HTTP response will be returned if the most
// recent attempt ended in error, or if a current attempt is underway,
// or before the execution starts.
//
// Note that a nil return value is always safe for read-only operations,
// since http.Header is a map type. There should never be a reason to
// write to the returned value, since it represents the response headers.
func (e *Execution) Header() http.Header {
	if e.Response == nil {
		var nilHeader http.Header
		return nilHeader
	}

	return e.Response.Header
}

// Cookies parses and returns the cookies set in the most recent
// response's Set-Cookie headers. If there is no HTTP response, a nil
// slice is returned.
func (e *Execution) Cookies() []*http.Cookie {
	if e.Response == nil {
		return nil
	}

	return e.Response.Cookies()
}

// DecodeJSON decodes the buffered response body into v using
// encoding/json. It is a convenience for the common case of a typed
// JSON response and does not require a Parser on the plan.
func (e *Execution) DecodeJSON(v interface{}) error {
	return json.Unmarshal(e.Body, v)
}

// Duration returns the duration of the execution.
//
// If the execution has not yet started, the duration is zero. If the
// execution has Ended, the duration returned is equal to End minus
// Start. Otherwise, it is equal to the current time minus Start. The
// return value is thus monotonically increasing over the life of
// the execution, and becomes static when the execution has ended.
func (e *Execution) Duration() time.Duration {
	if !e.Started() {
		return time.Duration(0)
	} else if !e.Ended() {
		return time.Now().Sub(e.Start)
	}

	return e.End.Sub(e.Start)
}

// Started indicates whether the execution has started.
//
// If the return value is false, the execution has not started yet. If
// the return value is true, then the execution has started, and Start
// is a non-zero time, indicating the execution start time.
func (e *Execution) Started() bool {
	return e.Start != (time.Time{})
}

// Ended indicates whether the execution has ended.
//
// If the return value is false, the execution is still in-flight. If
// the return value is true, then the execution is over, End is a
// non-zero time, and there will be no further changes to the execution.
func (e *Execution) Ended() bool {
	return e.End != (time.Time{})
}

// Timeout indicates whether Err currently contains a non-nil value
// which indicates a timeout. The timeout may have been caused by an
// HTTP request attempt timeout, or by a plan timeout detected after
// the most recent request attempt.
//
// A timeout is always terminal: the executing client resolves the
// execution without consulting the retry policy.
func (e *Execution) Timeout() bool {
	cat := transient.Categorize(e.Err)
	return cat == transient.Timeout
}

// SetValue allows event handlers to store arbitrary data in the request
// plan execution.
//
// The key must follow the same rules as the key parameter in
// context.WithValue, namely it:
//
// • it may not be nil;
//
// • it must be comparable;
//
// • it should not be of type string or any other built-in type to avoid
// collisions between different event handlers putting data into the
// same request execution.
func (e *Execution) SetValue(key, value interface{}) {
	ctx := e.data
	if ctx == nil {
		ctx = context.Background()
	}

	e.data = context.WithValue(ctx, key, value)
}

// Value returns the data value associated with this execution for key,
// or nil if there is no value associated with key.
func (e *Execution) Value(key interface{}) interface{} {
	ctx := e.data
	if ctx == nil {
		return nil
	}

	return ctx.Value(key)
}
