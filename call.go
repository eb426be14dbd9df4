// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package relay

import (
	"context"
	"sync"

	"github.com/gogama/relay/request"
)

// A Call is the handle to an asynchronous plan execution started with
// Client.Send. It settles exactly once, with the final execution
// state, unless it is canceled first.
//
// Wait for settlement by selecting on Done, by blocking in Result, or
// by registering a completion callback with OnComplete. All three
// observe the same single settlement.
//
// Cancel stops the execution and suppresses settlement entirely: after
// Cancel returns, completion callbacks are guaranteed never to run and
// the Done channel is guaranteed never to close, even if a response
// was already in flight. A goroutine that cancels a Call must
// therefore not wait on it afterward.
type Call struct {
	done   chan struct{}
	cancel context.CancelFunc

	mu        sync.Mutex
	e         *request.Execution
	settled   bool
	canceled  bool
	callbacks []func(*request.Execution)
}

// Send begins executing an HTTP request plan asynchronously and
// returns a Call handle for it. The execution follows the same
// policies as Do.
//
// Any callbacks given are registered with OnComplete before the
// execution starts. Callbacks run sequentially, in registration
// order, on the execution's goroutine.
//
// The execution runs on a context derived from the plan's context, so
// canceling the plan's own context also stops the execution; unlike
// Call.Cancel, however, it settles the Call with the cancellation
// error.
func (c *Client) Send(p *request.Plan, callbacks ...func(*request.Execution)) *Call {
	ctx, cancel := context.WithCancel(p.Context())
	p = p.WithContext(ctx)
	call := &Call{
		done:      make(chan struct{}),
		cancel:    cancel,
		callbacks: append([]func(*request.Execution){}, callbacks...),
	}
	go func() {
		e, _ := c.Do(p)
		call.settle(e)
	}()
	return call
}

// Done returns a channel that is closed when the call settles. It is
// never closed if the call is canceled before settling.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Result blocks until the call settles and returns the final
// execution state and error, exactly as Client.Do would have. The
// returned error is the same value as the execution's Err field.
//
// Result never returns if the call is canceled before settling. Use
// Done with a select to wait with an escape hatch.
func (c *Call) Result() (*request.Execution, error) {
	<-c.done
	c.mu.Lock()
	e := c.e
	c.mu.Unlock()
	return e, e.Err
}

// OnComplete registers f to run when the call settles, receiving the
// final execution state. If the call has already settled, f runs
// immediately on the calling goroutine; otherwise it runs on the
// execution's goroutine after any previously registered callbacks.
//
// If the call is canceled before settling, f never runs.
func (c *Call) OnComplete(f func(*request.Execution)) {
	c.mu.Lock()
	if c.canceled {
		c.mu.Unlock()
		return
	}
	if !c.settled {
		c.callbacks = append(c.callbacks, f)
		c.mu.Unlock()
		return
	}
	e := c.e
	c.mu.Unlock()
	f(e)
}

// Cancel stops the execution and suppresses settlement. The in-flight
// attempt, if any, is aborted through its context. Cancel is
// idempotent, and calling it after the call has settled has no
// effect beyond releasing the execution's context resources.
func (c *Call) Cancel() {
	c.mu.Lock()
	if !c.settled {
		c.canceled = true
		c.callbacks = nil
	}
	c.mu.Unlock()
	c.cancel()
}

func (c *Call) settle(e *request.Execution) {
	c.mu.Lock()
	if c.canceled {
		c.mu.Unlock()
		return
	}
	c.e = e
	c.settled = true
	callbacks := c.callbacks
	c.callbacks = nil
	c.mu.Unlock()

	close(c.done)
	for _, f := range callbacks {
		f(e)
	}
	c.cancel()
}
