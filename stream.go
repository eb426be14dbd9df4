// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package relay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gogama/relay/redirect"
	"github.com/gogama/relay/request"
)

var errStreamRedirect = errors.New("streaming mode cannot follow a 307 or 308 redirect")

// A Stream is the result of a successful streaming execution started
// with Client.Stream. It exposes the response status and headers,
// which are available immediately, and reads the response body
// directly from the transport, so backpressure from a slow consumer
// reaches the server.
//
// A Stream must be closed. Close drains whatever body remains so the
// underlying connection can be reused.
//
// A Stream is not safe for concurrent use by multiple goroutines.
type Stream struct {
	e      *request.Execution
	body   io.ReadCloser
	cancel context.CancelFunc
	once   sync.Once
}

// Stream executes an HTTP request plan for streaming consumption and,
// on success, returns a Stream reading the response body.
//
// Streaming trades the robustness features of Do for constant memory
// use: the response body is never buffered, so retries, backoff, and
// credential refresh are disabled and the execution makes exactly one
// request attempt. Redirects are still followed within the redirect
// policy's budget, but only 301, 302, and 303, which rewrite the
// follow-up to a bodyless GET; a 307 or 308, which would need to
// replay the request body, resolves the execution with a
// *RedirectError. Unless the plan sets its own Accept-Encoding,
// identity encoding is requested so reads see the wire bytes.
//
// The request body streams as well. A plan whose BodyReader field is
// set sends bytes to the transport as the reader produces them, with
// nothing retained, so pairing BodyReader with an io.Pipe makes the
// exchange full duplex: the caller writes the request body into the
// pipe while reading the response body from the Stream. Upload
// progress reaches the plan's OnUploadProgress callback either way.
//
// A response with a non-2xx final status is not returned as a Stream:
// its body is read, buffered, and attached to the execution, and the
// execution resolves with a *StatusError exactly as under Do. A 204
// response is a success and returns an immediately empty Stream.
//
// The attempt timeout from the client's timeout policy spans the
// whole life of the Stream, from sending the request until Close,
// because the attempt does not end until the body is consumed.
func (c *Client) Stream(p *request.Plan) (*Stream, error) {
	e := request.Execution{
		Plan: p,
	}
	return c.stream(&e)
}

func (c *Client) stream(e *request.Execution) (*Stream, error) {
	p := e.Plan
	doer := c.doer()
	timeoutPolicy := c.timeoutPolicy()
	redirectPolicy := c.redirectPolicy()
	handlers := c.handlerGroup()

	handlers.run(BeforeExecutionStart, e)
	e.Start = time.Now()
	e.Working = p.Derive()
	if _, ok := e.Working.Header["Accept-Encoding"]; !ok {
		e.Working.Header.Set("Accept-Encoding", "identity")
	}

	if !applyCredential(e, c.agent(p)) {
		return nil, settleStream(e, handlers)
	}

	for {
		if !c.throttle(e) {
			return nil, settleStream(e, handlers)
		}
		ctx, cancel := context.WithTimeout(p.Context(), timeoutPolicy.Timeout(e))
		e.Request = e.Working.ToRequest(ctx)
		e.State = request.Sending
		handlers.run(BeforeAttempt, e)
		resp, err := doer.Do(e.Request)
		e.Response = resp
		if err != nil {
			cancel()
			e.Err = urlErrorWrap(e, err)
			if e.Timeout() {
				handlers.run(AfterAttemptTimeout, e)
			}
			handlers.run(AfterAttempt, e)
			return nil, settleStream(e, handlers)
		}
		handlers.run(AfterAttempt, e)

		planCtxErr := p.Context().Err()
		if planCtxErr != nil {
			drainAndClose(resp.Body)
			cancel()
			e.Err = urlErrorWrap(e, planCtxErr)
			if planCtxErr == context.DeadlineExceeded {
				handlers.run(AfterPlanTimeout, e)
			}
			return nil, settleStream(e, handlers)
		}

		loc := resp.Header.Get("Location")
		if redirect.IsRedirect(resp.StatusCode) && loc != "" {
			drainAndClose(resp.Body)
			if !redirect.Rewrites(resp.StatusCode) {
				cancel()
				e.Err = urlErrorWrap(e, &RedirectError{
					StatusCode: resp.StatusCode,
					Header:     resp.Header,
					Location:   loc,
					Redirects:  e.Redirects,
					Err:        errStreamRedirect,
				})
				return nil, settleStream(e, handlers)
			}
			if !followRedirect(e, redirectPolicy, handlers, loc) {
				cancel()
				return nil, settleStream(e, handlers)
			}
			cancel()
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			readBody(e, handlers)
			cancel()
			if e.Err == nil {
				e.Err = urlErrorWrap(e, newStatusError(resp, e.Body))
			}
			return nil, settleStream(e, handlers)
		}

		body := io.ReadCloser(resp.Body)
		if onProgress := p.OnDownloadProgress; onProgress != nil {
			body = request.ProgressReader(resp.Body, resp.ContentLength, onProgress)
		}
		settleStream(e, handlers)
		return &Stream{e: e, body: body, cancel: cancel}, nil
	}
}

func settleStream(e *request.Execution, handlers *HandlerGroup) error {
	e.End = time.Now()
	e.State = request.Resolved
	handlers.run(AfterExecutionEnd, e)
	return e.Err
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}

// StatusCode returns the status code of the streamed response.
func (s *Stream) StatusCode() int {
	return s.e.Response.StatusCode
}

// Header returns the headers of the streamed response.
func (s *Stream) Header() http.Header {
	return s.e.Response.Header
}

// Execution returns the resolved execution behind the stream. Its
// Body field is nil: the response body belongs to the Stream.
func (s *Stream) Execution() *request.Execution {
	return s.e
}

// Read reads the next chunk of the response body from the transport.
// It returns io.EOF when the body is exhausted.
func (s *Stream) Read(b []byte) (int, error) {
	return s.body.Read(b)
}

// Close drains any unread remainder of the response body, so the
// underlying connection can be reused, and releases the stream's
// resources. Close is idempotent.
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		_, _ = io.Copy(io.Discard, s.body)
		err = s.body.Close()
		s.cancel()
	})
	return err
}
