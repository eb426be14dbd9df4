// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package relay

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gogama/relay/request"
)

// A StatusError is the terminal error of an execution whose final
// response had a status code outside the 2xx range and was not
// consumed by the retry, redirect, or refresh flows. The response
// body has been fully read and buffered by the time the error is
// returned.
//
// Client wraps a StatusError in a *url.Error, so match it with
// errors.As:
//
//	_, err := client.Get("https://example.com/busy")
//	var statusErr *relay.StatusError
//	if errors.As(err, &statusErr) {
//		fmt.Println(statusErr.StatusCode)
//	}
//
// A 204 response is a success, not a StatusError.
type StatusError struct {
	// Status is the response status line text, e.g. "503 Service
	// Unavailable".
	Status string
	// StatusCode is the response status code, e.g. 503.
	StatusCode int
	// Header contains the response headers.
	Header http.Header
	// Body is the raw response body.
	Body []byte
	// Detail is the response body decoded as JSON, if the body
	// parsed as JSON, and nil otherwise. Decoding is best-effort:
	// a structured error payload is available here without a second
	// parse, but nothing is reported if the body is not JSON.
	Detail interface{}
}

func newStatusError(resp *http.Response, body []byte) *StatusError {
	e := &StatusError{
		Status:     resp.Status,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}
	if len(body) > 0 {
		var detail interface{}
		if err := json.Unmarshal(body, &detail); err == nil {
			e.Detail = detail
		}
	}
	return e
}

func (e *StatusError) Error() string {
	return "relay: unexpected status " + e.Status
}

// A RedirectError is the terminal error of an execution which received
// a followable redirect response it could not follow: the redirect
// budget was spent, the Location header value was unusable, or the
// execution mode cannot replay the request. It carries the redirect
// response's status and headers.
//
// Client wraps a RedirectError in a *url.Error, so match it with
// errors.As. A 3xx response without a Location header is not a
// redirect at all and produces a StatusError instead.
type RedirectError struct {
	// StatusCode is the status code of the redirect response, e.g.
	// 302.
	StatusCode int
	// Header contains the redirect response's headers.
	Header http.Header
	// Location is the raw Location header value.
	Location string
	// Redirects is the number of redirect hops the execution had
	// already followed when it stopped.
	Redirects int
	// Err is the underlying cause, or nil if the redirect policy
	// declined to follow.
	Err error
}

func (e *RedirectError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("relay: cannot follow redirect to %q: %v", e.Location, e.Err)
	}
	return fmt.Sprintf("relay: stopped after %d redirects", e.Redirects)
}

// Unwrap returns the underlying cause, if any.
func (e *RedirectError) Unwrap() error {
	return e.Err
}

// urlErrorWrap dresses a terminal error originated by this package in
// the same *url.Error clothing the http.Client transport uses, tagged
// with the current attempt's method and URL. An error which is
// already a *url.Error, such as a transport error received from an
// http.Client, is returned as is.
func urlErrorWrap(e *request.Execution, err error) error {
	if _, ok := err.(*url.Error); ok {
		return err
	}

	op := "Get"
	urlStr := ""
	if w := e.Working; w != nil {
		op = urlErrorOp(w.Method)
		if w.URL != nil {
			urlStr = w.URL.String()
		}
	}
	return &url.Error{
		Op:  op,
		URL: urlStr,
		Err: err,
	}
}

// urlErrorOp is lifted verbatim from net/http/client.go
func urlErrorOp(method string) string {
	if method == "" {
		return "Get"
	}
	return method[:1] + strings.ToLower(method[1:])
}
