// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package reqid

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gogama/relay"
	"github.com/gogama/relay/request"
	"github.com/gogama/relay/retry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doerFunc func(r *http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestHandler(t *testing.T) {
	t.Run("one id per execution", testHandlerOneIDPerExecution)
	t.Run("distinct ids across executions", testHandlerDistinctIDs)
	t.Run("custom header and generator", testHandlerCustom)
}

func testHandlerOneIDPerExecution(t *testing.T) {
	t.Parallel()

	var ids []string
	n := 0
	doer := doerFunc(func(r *http.Request) (*http.Response, error) {
		ids = append(ids, r.Header.Get(DefaultHeader))
		n++
		if n < 3 {
			return &http.Response{
				StatusCode: 429,
				Body:       io.NopCloser(strings.NewReader("")),
			}, nil
		}
		return &http.Response{
			StatusCode: 200,
			Body:       io.NopCloser(strings.NewReader("ok")),
		}, nil
	})
	cl := &relay.Client{
		HTTPDoer: doer,
		RetryPolicy: retry.NewPolicy(
			retry.Times(2).And(retry.StatusCode(429)),
			retry.NewFixedWaiter(time.Millisecond)),
		Handlers: &relay.HandlerGroup{},
	}
	(&Handler{}).Install(cl.Handlers)

	e, err := cl.Get("test")

	require.NoError(t, err)
	assert.Equal(t, 2, e.Attempt)
	require.Len(t, ids, 3)
	assert.NotEmpty(t, ids[0])
	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, ids[0], ids[2])
	_, err = uuid.Parse(ids[0])
	assert.NoError(t, err)
	assert.Equal(t, ids[0], ID(e))
}

func testHandlerDistinctIDs(t *testing.T) {
	t.Parallel()

	doer := doerFunc(func(_ *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: 200,
			Body:       io.NopCloser(strings.NewReader("")),
		}, nil
	})
	cl := &relay.Client{
		HTTPDoer:    doer,
		RetryPolicy: retry.Never,
		Handlers:    &relay.HandlerGroup{},
	}
	(&Handler{}).Install(cl.Handlers)

	e1, err := cl.Get("test")
	require.NoError(t, err)
	e2, err := cl.Get("test")
	require.NoError(t, err)

	assert.NotEmpty(t, ID(e1))
	assert.NotEmpty(t, ID(e2))
	assert.NotEqual(t, ID(e1), ID(e2))
}

func testHandlerCustom(t *testing.T) {
	t.Parallel()

	var got string
	doer := doerFunc(func(r *http.Request) (*http.Response, error) {
		got = r.Header.Get("X-Correlation-ID")
		return &http.Response{
			StatusCode: 200,
			Body:       io.NopCloser(strings.NewReader("")),
		}, nil
	})
	cl := &relay.Client{
		HTTPDoer:    doer,
		RetryPolicy: retry.Never,
		Handlers:    &relay.HandlerGroup{},
	}
	h := &Handler{
		Header: "X-Correlation-ID",
		NewID:  func() string { return "fixed-1" },
	}
	h.Install(cl.Handlers)

	e, err := cl.Get("test")

	require.NoError(t, err)
	assert.Equal(t, "fixed-1", got)
	assert.Equal(t, "fixed-1", ID(e))
}

func TestID(t *testing.T) {
	e := &request.Execution{}

	assert.Equal(t, "", ID(e))
}
