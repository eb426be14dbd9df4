// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package relay

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gogama/relay/auth"
	"github.com/gogama/relay/redirect"
	"github.com/gogama/relay/request"
	"github.com/gogama/relay/retry"
	"github.com/gogama/relay/timeout"
)

// An HTTPDoer implements a Do method in the same manner as the GoLang
// standard library http.Client from the net/http package.
type HTTPDoer interface {
	// Do sends an HTTP request and returns an HTTP response following
	// policy (such as cookies and proxies) configured on the HTTPDoer.
	//
	// The Do method must follow the contract documented on the GoLang
	// standard library http.Client from the net/http package, with one
	// restriction: it must not follow redirects itself. Client owns
	// the redirect flow, so an http.Client used as the HTTPDoer should
	// set CheckRedirect to return http.ErrUseLastResponse.
	Do(r *http.Request) (*http.Response, error)
}

// A Limiter bounds the rate at which a Client opens transport calls.
// Wait blocks until the next call may proceed or ctx is done, in
// which case it returns ctx's error.
//
// *rate.Limiter from the golang.org/x/time/rate package satisfies
// Limiter directly.
type Limiter interface {
	Wait(ctx context.Context) error
}

var emptyHandlers = HandlerGroup{}

// defaultDoer leaves redirect responses to the robust client rather
// than following them inside net/http. It shares the default
// transport's connection pool.
var defaultDoer HTTPDoer = &http.Client{
	CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

// A Client is a robust HTTP client with retry, redirect, and
// credential refresh support. Its zero value is a valid configuration.
//
// The zero value client uses a default HTTPDoer built on the standard
// net/http transport, timeout.DefaultPolicy as the timeout policy,
// retry.DefaultPolicy as the retry policy, redirect.DefaultPolicy as
// the redirect policy, no credential agent, no rate limiter, and an
// empty handler group (no event handlers/plug-ins).
//
// Client's HTTPDoer typically has an internal state (cached TCP
// connections) so Client instances should be reused instead of created
// as needed. Client is safe for concurrent use by multiple goroutines.
//
// A Client is higher-level than an HTTPDoer. The HTTPDoer is
// responsible for the mechanics of sending one HTTP request and
// receiving its response, while Client drives the whole logical
// request on top of it:
//
// • Client reads and buffers the entire HTTP response body into a
// []byte (returned as the Execution.Body field);
//
// • Client retries failed request attempts using a customizable retry
// policy, backing off between attempts and honoring the Retry-After
// response header;
//
// • Client follows redirect responses itself, bounded by a
// customizable redirect policy, rewriting the method and body on 301,
// 302, and 303 and preserving them on 307 and 308;
//
// • Client attaches the Authorization header supplied by a credential
// agent and, when the agent supports it, refreshes a rejected
// credential once and replays the request;
//
// • Client sets individual request attempt timeouts using a
// customizable timeout policy, and treats a timed-out attempt as
// terminal;
//
// • Client invokes user-provided handler functions at designated
// plug-in points within the attempt loop, allowing new features to be
// mixed in from outside libraries; and
//
// • Client implements the relay.Executor interface.
//
// Because Client owns the redirect flow, an http.Client installed as
// the HTTPDoer must not follow redirects itself: set its CheckRedirect
// to return http.ErrUseLastResponse. The default HTTPDoer is already
// configured this way.
//
// Client's HTTP methods should feel familiar to anyone who has used
// the Go standard HTTP client (http.Client). The methods use the same
// names, and follow the same rough parameter schema, as the Go
// standard client. The main differences are:
//
// • instead of consuming an http.Request, which is only suitable for
// making a one-off request attempt, Client.Do consumes a request.Plan
// which is suitable for making multiple attempts if necessary (the
// plan execution logic converts the plan into http.Request as
// needed); and
//
// • instead of producing an http.Response, all of Client's HTTP
// methods return a request.Execution, which contains some metadata
// about the plan execution as well as a fully-buffered response body.
type Client struct {
	// HTTPDoer specifies the mechanics of sending HTTP requests and
	// receiving responses.
	//
	// If HTTPDoer is nil, a default doer sharing the standard net/http
	// transport is used. The doer must not follow redirects; see the
	// HTTPDoer interface documentation.
	HTTPDoer HTTPDoer
	// RetryPolicy decides when to retry failed attempts and how long
	// to sleep after a failed attempt before retrying.
	//
	// If RetryPolicy is nil, retry.DefaultPolicy is used.
	RetryPolicy retry.Policy
	// TimeoutPolicy specifies how to set timeouts on individual
	// request attempts. A timed-out attempt resolves the execution
	// terminally and is never retried.
	//
	// If TimeoutPolicy is nil, timeout.DefaultPolicy is used.
	TimeoutPolicy timeout.Policy
	// RedirectPolicy bounds how many redirect hops an execution may
	// follow. When the policy declines to follow a redirect, the
	// execution resolves with a *RedirectError.
	//
	// If RedirectPolicy is nil, redirect.DefaultPolicy is used.
	RedirectPolicy redirect.Policy
	// Auth optionally supplies the Authorization header for each
	// request attempt. If the agent also implements auth.RefreshAgent,
	// a 401 response triggers a one-time credential refresh and
	// replay.
	//
	// A plan which sets its own Authorization header bypasses the
	// agent entirely for that execution.
	Auth auth.CredentialAgent
	// Limiter optionally bounds the rate of transport calls made by
	// the client, counting initial attempts, retries, redirect hops,
	// and refresh replays alike. All executions of this client share
	// the limiter.
	//
	// If Limiter is nil, transport calls are not rate limited.
	Limiter Limiter
	// Handlers allows custom handler chains to be invoked when
	// designated events occur during execution of a request plan.
	//
	// If Handlers is nil, no custom handlers will be run.
	Handlers *HandlerGroup
}

// Do executes an HTTP request plan and returns the results, following
// the retry, timeout, redirect, and credential policies set on Client,
// and low-level policy set on the underlying HTTPDoer.
//
// The result returned is the result after the final HTTP request
// attempt made during the plan execution: redirects are followed
// within the redirect policy's budget, failed attempts are retried as
// the retry policy directs, and a 401 is replayed once if the client's
// credential agent can refresh the credential.
//
// An error is returned if the execution did not resolve with a 2xx
// response. Alongside transport-level failures (for example a network
// connectivity problem or a timeout), a final response with a non-2xx
// status code resolves the execution with a *StatusError, and a
// redirect that could not be followed resolves it with a
// *RedirectError, both wrapped in a *url.Error.
//
// The returned Execution is never nil, but may contain a nil Response
// and will contain a nil Body if an error occurred (if the final
// HTTP request attempt caused an error, both Response and Body are
// nil, but if the attempt received a response, the response and its
// buffered body travel on the execution even when the status code
// turned into a *StatusError). If an error was returned, the Err
// field of the Execution always references the same error.
//
// If the returned error is nil, the returned Execution will contain
// both a non-nil Response and a non-nil Body (although Body may have
// zero length), and the response status code is in the 2xx range.
//
// Any returned error will be of type *url.Error. The url.Error's
// Timeout method, and the Execution's Timeout method, will return
// true if the final request attempt timed out, or if the entire plan
// timed out.
//
// For simple use cases, the Get, Head, Post, and PostForm methods may
// prove easier to use than Do.
func (c *Client) Do(p *request.Plan) (*request.Execution, error) {
	e := request.Execution{
		Plan: p,
	}
	c.execute(&e)
	return &e, e.Err
}

func (c *Client) execute(e *request.Execution) {
	handlers := c.handlerGroup()
	handlers.run(BeforeExecutionStart, e)
	if e.Plan == nil {
		panic("relay: plan deleted from execution")
	}
	e.Start = time.Now()
	e.Working = e.Plan.Derive()

	agent := c.agent(e.Plan)
	if bufferBody(e) && applyCredential(e, agent) {
		c.attemptLoop(e, agent)
	}

	if e.Err == nil && e.Response != nil {
		conclude(e)
	}

	e.End = time.Now()
	e.State = request.Resolved
	handlers.run(AfterExecutionEnd, e)
}

func (c *Client) attemptLoop(e *request.Execution, agent auth.CredentialAgent) {
	p := e.Plan
	doer := c.doer()
	timeoutPolicy := c.timeoutPolicy()
	retryPolicy := c.retryPolicy()
	redirectPolicy := c.redirectPolicy()
	handlers := c.handlerGroup()
	refresher, _ := agent.(auth.RefreshAgent)

	for {
		if !c.throttle(e) {
			return
		}
		sendAndReceive(e, doer, handlers, timeoutPolicy)
		if e.Timeout() {
			handlers.run(AfterAttemptTimeout, e)
		}
		handlers.run(AfterAttempt, e)
		planCtxErr := p.Context().Err()
		if planCtxErr != nil {
			if e.Err == nil {
				e.Err = urlErrorWrap(e, planCtxErr)
			}
			if planCtxErr == context.DeadlineExceeded {
				handlers.run(AfterPlanTimeout, e)
			}
			return
		}
		if e.Timeout() {
			return
		}
		if e.Err == nil && e.Response != nil {
			loc := e.Response.Header.Get("Location")
			if redirect.IsRedirect(e.Response.StatusCode) && loc != "" {
				if !followRedirect(e, redirectPolicy, handlers, loc) {
					return
				}
				continue
			}
			if e.Response.StatusCode == http.StatusUnauthorized && refresher != nil && !e.Refreshed {
				if !refreshCredential(e, refresher, handlers) {
					return
				}
				continue
			}
		}
		if !retryPolicy.Decide(e) {
			return
		}
		e.State = request.BackingOff
		wait := retryPolicy.Wait(e)
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-p.Context().Done():
			timer.Stop()
			err := p.Context().Err()
			e.Err = urlErrorWrap(e, err)
			if err == context.DeadlineExceeded {
				handlers.run(AfterPlanTimeout, e)
			}
			return
		}
		resetAttempt(e)
		e.Attempt++
	}
}

func (c *Client) throttle(e *request.Execution) bool {
	if c.Limiter == nil {
		return true
	}
	if err := c.Limiter.Wait(e.Plan.Context()); err != nil {
		e.Err = urlErrorWrap(e, err)
		return false
	}
	return true
}

func sendAndReceive(e *request.Execution, doer HTTPDoer, handlers *HandlerGroup, timeoutPolicy timeout.Policy) {
	ctx, cancel := context.WithTimeout(e.Plan.Context(), timeoutPolicy.Timeout(e))
	defer cancel()
	e.Request = e.Working.ToRequest(ctx)
	e.State = request.Sending
	handlers.run(BeforeAttempt, e)
	var err error
	e.Response, err = doer.Do(e.Request)
	if err != nil {
		e.Err = urlErrorWrap(e, err)
	} else {
		readBody(e, handlers)
	}
}

// readBody drains the response body to EOF even when the execution is
// about to retry, redirect, or replay, so the transport connection is
// free for reuse.
func readBody(e *request.Execution, handlers *HandlerGroup) {
	defer func() {
		_ = e.Response.Body.Close()
	}()
	handlers.run(BeforeReadBody, e)
	body := io.Reader(e.Response.Body)
	if onProgress := e.Plan.OnDownloadProgress; onProgress != nil {
		body = request.ProgressReader(e.Response.Body, e.Response.ContentLength, onProgress)
	}
	var err error
	e.Body, err = io.ReadAll(body)
	if err != nil {
		e.Err = urlErrorWrap(e, err)
	}
}

// bufferBody drains a plan's BodyReader into the working body, so that
// every attempt in a buffered execution resends identical bytes. It
// reports false, with the execution error set, if the reader failed.
func bufferBody(e *request.Execution) bool {
	w := e.Working
	if w.BodyReader == nil {
		return true
	}
	data, err := request.BodyBytes(w.BodyReader)
	if err != nil {
		e.Err = urlErrorWrap(e, err)
		return false
	}
	w.Body = data
	w.BodyReader = nil
	return true
}

// applyCredential puts the agent's Authorization header on the working
// request. It reports false, with the execution error set, if the
// agent could not produce a credential.
func applyCredential(e *request.Execution, agent auth.CredentialAgent) bool {
	if agent == nil {
		return true
	}
	value, err := agent.Header(e.Plan.Context())
	if err != nil {
		e.Err = urlErrorWrap(e, err)
		return false
	}
	if value != "" {
		e.Working.Header.Set("Authorization", value)
	}
	return true
}

func followRedirect(e *request.Execution, policy redirect.Policy, handlers *HandlerGroup, loc string) bool {
	resp := e.Response
	if !policy.Follow(e) {
		e.Err = urlErrorWrap(e, &RedirectError{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Location:   loc,
			Redirects:  e.Redirects,
		})
		return false
	}
	u, err := redirect.Resolve(e.Working.URL, loc)
	if err != nil {
		e.Err = urlErrorWrap(e, &RedirectError{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Location:   loc,
			Redirects:  e.Redirects,
			Err:        err,
		})
		return false
	}
	e.Redirects++
	e.State = request.Redirecting
	handlers.run(BeforeRedirect, e)
	w := e.Working
	if redirect.Rewrites(resp.StatusCode) {
		w.Method = "GET"
		w.Body = nil
		w.BodyReader = nil
		w.Header.Del("Content-Type")
		w.Header.Del("Content-Length")
		w.Header.Del("Content-Encoding")
	}
	w.URL = u
	w.Host = ""
	resetAttempt(e)
	return true
}

func refreshCredential(e *request.Execution, refresher auth.RefreshAgent, handlers *HandlerGroup) bool {
	ctx := e.Plan.Context()
	e.State = request.Refreshing
	handlers.run(BeforeRefresh, e)
	e.Refreshed = true
	if err := refresher.Refresh(ctx, e); err != nil {
		e.Err = urlErrorWrap(e, err)
		return false
	}
	value, err := refresher.Header(ctx)
	if err != nil {
		e.Err = urlErrorWrap(e, err)
		return false
	}
	if value != "" {
		e.Working.Header.Set("Authorization", value)
	}
	resetAttempt(e)
	return true
}

// conclude resolves an execution which ran out of attempt loop work
// with a response in hand: a non-2xx status becomes a *StatusError,
// and a 2xx body other than 204's is handed to the plan's parser.
func conclude(e *request.Execution) {
	resp := e.Response
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e.Err = urlErrorWrap(e, newStatusError(resp, e.Body))
		return
	}
	if resp.StatusCode == http.StatusNoContent || e.Plan.Parser == nil {
		return
	}
	parsed, err := e.Plan.Parser.Parse(resp, e.Body)
	if err != nil {
		// Parser errors surface to the caller verbatim.
		e.Err = err
		return
	}
	e.Parsed = parsed
}

func resetAttempt(e *request.Execution) {
	e.Response = nil
	e.Err = nil
	e.Body = nil
}

// Get issues a GET to the specified URL, using the same policies
// followed by Do.
//
// To make a request plan with custom headers, use request.NewPlan and
// Client.Do.
func (c *Client) Get(url string) (*request.Execution, error) {
	return Get(c, url)
}

// Head issues a HEAD to the specified URL, using the same policies
// followed by Do.
//
// To make a request plan with custom headers, use request.NewPlan and
// Client.Do.
func (c *Client) Head(url string) (*request.Execution, error) {
	return Head(c, url)
}

// Post issues a POST to the specified URL, using the same policies
// followed by Do.
//
// The body parameter may be nil for an empty body, or may be any of
// the logical body values supported by request.NewPlan: a string,
// []byte, io.Reader, or io.ReadCloser passed through as raw bytes;
// url.Values to be form-encoded; or a map or struct to be
// JSON-encoded. The explicit contentType overrides the content type
// the serialization would otherwise propose.
//
// To make a request plan with custom headers, use request.NewPlan and
// Client.Do.
func (c *Client) Post(url, contentType string, body interface{}) (*request.Execution, error) {
	return Post(c, url, contentType, body)
}

// PostForm issues a POST to the specified URL, with data's keys and
// values URL-encoded as the request body.
//
// The Content-Type header is set to application/x-www-form-urlencoded.
// To set other headers, use request.NewPlan and Client.Do.
func (c *Client) PostForm(url string, data url.Values) (*request.Execution, error) {
	return PostForm(c, url, data)
}

// CloseIdleConnections invokes the same method on the client's
// underlying HTTPDoer.
//
// If the HTTPDoer has no CloseIdleConnections method, this method does
// nothing.
//
// If the HTTPDoer does have a CloseIdleConnections method, then the
// effect of this method depends entirely on its implementation in the
// HTTPDoer. For example, the http.Client type forwards the call to its
// Transport, but only if the Transport itself has a CloseIdleConnections
// method (otherwise it does nothing).
func (c *Client) CloseIdleConnections() {
	doer := c.doer()
	if ic, ok := doer.(IdleCloser); ok {
		ic.CloseIdleConnections()
	}
}

func (c *Client) doer() HTTPDoer {
	if c.HTTPDoer == nil {
		return defaultDoer
	}

	return c.HTTPDoer
}

func (c *Client) retryPolicy() retry.Policy {
	if c.RetryPolicy == nil {
		return retry.DefaultPolicy
	}

	return c.RetryPolicy
}

func (c *Client) timeoutPolicy() timeout.Policy {
	if c.TimeoutPolicy == nil {
		return timeout.DefaultPolicy
	}

	return c.TimeoutPolicy
}

func (c *Client) redirectPolicy() redirect.Policy {
	if c.RedirectPolicy == nil {
		return redirect.DefaultPolicy
	}

	return c.RedirectPolicy
}

func (c *Client) handlerGroup() *HandlerGroup {
	if c.Handlers == nil {
		return &emptyHandlers
	}

	return c.Handlers
}

// agent returns the credential agent in force for an execution of p,
// which is nil when the plan carries its own Authorization header.
func (c *Client) agent(p *request.Plan) auth.CredentialAgent {
	if c.Auth == nil || p.Header.Has("Authorization") {
		return nil
	}

	return c.Auth
}
