// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package relay

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gogama/relay/request"
	"github.com/gogama/relay/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCall(t *testing.T) {
	t.Run("result", testCallResult)
	t.Run("callbacks", testCallCallbacks)
	t.Run("cancel", testCallCancel)
	t.Run("plan context cancel", testCallPlanContextCancel)
	t.Run("end to end", testCallEndToEnd)
}

func testCallResult(t *testing.T) {
	t.Parallel()

	mockDoer := newMockHTTPDoer(t)
	mockDoer.On("Do", mock.Anything).Return(&http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(strings.NewReader("hi")),
	}, nil).Once()
	cl := &Client{HTTPDoer: mockDoer}
	p, err := request.NewPlan("GET", "test", nil)
	require.NoError(t, err)

	call := cl.Send(p)
	e, err := call.Result()

	mockDoer.AssertExpectations(t)
	require.NotNil(t, e)
	assert.NoError(t, err)
	assert.Equal(t, 200, e.StatusCode())
	assert.Equal(t, []byte("hi"), e.Body)
	select {
	case <-call.Done():
	default:
		t.Error("Done channel not closed after Result returned")
	}

	// Result is repeatable and always observes the same settlement.
	e2, err2 := call.Result()
	assert.Same(t, e, e2)
	assert.NoError(t, err2)
}

func testCallCallbacks(t *testing.T) {
	t.Parallel()

	mockDoer := newMockHTTPDoer(t)
	gate := make(chan struct{})
	mockDoer.On("Do", mock.Anything).Run(func(_ mock.Arguments) {
		<-gate
	}).Return(&http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(strings.NewReader("done")),
	}, nil).Once()
	cl := &Client{HTTPDoer: mockDoer}
	p, err := request.NewPlan("GET", "test", nil)
	require.NoError(t, err)

	var mu sync.Mutex
	var order []int
	var seen []*request.Execution
	last := make(chan struct{})
	record := func(n int) func(*request.Execution) {
		return func(e *request.Execution) {
			mu.Lock()
			order = append(order, n)
			seen = append(seen, e)
			mu.Unlock()
			if n == 3 {
				close(last)
			}
		}
	}

	// Callbacks 1 and 2 register through Send, 3 through OnComplete
	// while the execution is still blocked in the transport.
	call := cl.Send(p, record(1), record(2))
	call.OnComplete(record(3))
	close(gate)

	e, err := call.Result()
	<-last

	mockDoer.AssertExpectations(t)
	require.NotNil(t, e)
	assert.NoError(t, err)
	mu.Lock()
	assert.Equal(t, []int{1, 2, 3}, order)
	for _, got := range seen {
		assert.Same(t, e, got)
	}
	mu.Unlock()

	// After settlement a callback runs immediately on the calling
	// goroutine.
	ran := false
	call.OnComplete(func(got *request.Execution) {
		ran = true
		assert.Same(t, e, got)
	})
	assert.True(t, ran)
}

func testCallCancel(t *testing.T) {
	t.Parallel()
	t.Run("before settlement", testCallCancelBeforeSettlement)
	t.Run("after settlement", testCallCancelAfterSettlement)
}

func testCallCancelBeforeSettlement(t *testing.T) {
	t.Parallel()

	mockDoer := newMockHTTPDoer(t)
	started := make(chan struct{})
	mockDoer.On("Do", mock.Anything).Run(func(args mock.Arguments) {
		close(started)
		r := args.Get(0).(*http.Request)
		<-r.Context().Done()
	}).Return(nil, context.Canceled).Once()
	cl := &Client{HTTPDoer: mockDoer}
	p, err := request.NewPlan("GET", "test", nil)
	require.NoError(t, err)

	call := cl.Send(p, func(_ *request.Execution) {
		t.Error("callback ran on a canceled call")
	})
	<-started
	call.Cancel()
	call.Cancel() // Idempotent.

	// A canceled call never settles: Done must stay open and late
	// callbacks must never run.
	call.OnComplete(func(_ *request.Execution) {
		t.Error("late callback ran on a canceled call")
	})
	select {
	case <-call.Done():
		t.Error("Done channel closed on a canceled call")
	case <-time.After(50 * time.Millisecond):
	}
	mockDoer.AssertExpectations(t)
}

func testCallCancelAfterSettlement(t *testing.T) {
	t.Parallel()

	mockDoer := newMockHTTPDoer(t)
	mockDoer.On("Do", mock.Anything).Return(&http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(strings.NewReader("settled")),
	}, nil).Once()
	cl := &Client{HTTPDoer: mockDoer}
	p, err := request.NewPlan("GET", "test", nil)
	require.NoError(t, err)

	call := cl.Send(p)
	e, err := call.Result()
	require.NoError(t, err)

	call.Cancel()

	// Cancel after settlement has no effect on the observed result.
	select {
	case <-call.Done():
	default:
		t.Error("Done channel not closed after settlement")
	}
	e2, err2 := call.Result()
	assert.Same(t, e, e2)
	assert.NoError(t, err2)
}

func testCallPlanContextCancel(t *testing.T) {
	t.Parallel()

	// Canceling the plan's own context stops the execution but, unlike
	// Call.Cancel, still settles the call, with the cancellation error.
	ctx, cancel := context.WithCancel(context.Background())
	mockDoer := newMockHTTPDoer(t)
	started := make(chan struct{})
	mockDoer.On("Do", mock.Anything).Run(func(args mock.Arguments) {
		close(started)
		r := args.Get(0).(*http.Request)
		<-r.Context().Done()
	}).Return(nil, context.Canceled).Once()
	cl := &Client{HTTPDoer: mockDoer}
	p, err := request.NewPlanWithContext(ctx, "GET", "test", nil)
	require.NoError(t, err)

	call := cl.Send(p)
	<-started
	cancel()

	e, err := call.Result()

	mockDoer.AssertExpectations(t)
	require.NotNil(t, e)
	var urlError *url.Error
	require.ErrorAs(t, err, &urlError)
	assert.Same(t, context.Canceled, urlError.Err)
	assert.Same(t, err, e.Err)
}

func testCallEndToEnd(t *testing.T) {
	t.Parallel()

	cl := &Client{
		HTTPDoer:    serverDoers[httpServer],
		RetryPolicy: retry.Never,
	}
	p, err := request.NewPlan("GET", httpServer.URL+"/echo", nil)
	require.NoError(t, err)

	call := cl.Send(p)
	select {
	case <-call.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("call did not settle in time")
	}
	e, err := call.Result()

	require.NotNil(t, e)
	require.NoError(t, err)
	assert.Equal(t, 200, e.StatusCode())
	var echo echoResponse
	require.NoError(t, e.DecodeJSON(&echo))
	assert.Equal(t, "GET", echo.Method)
	assert.Equal(t, "/echo", echo.Path)
}
