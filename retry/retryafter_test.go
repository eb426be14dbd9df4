// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"net/http"
	"testing"
	"time"

	"github.com/gogama/relay/request"

	"github.com/stretchr/testify/assert"
)

func TestRespectRetryAfter(t *testing.T) {
	computed := 10 * time.Second
	w := RespectRetryAfter(NewFixedWaiter(computed), time.Minute)
	t.Run("invalid arguments", func(t *testing.T) {
		assert.PanicsWithValue(t, "relay/retry: nil waiter", func() {
			RespectRetryAfter(nil, time.Minute)
		})
		assert.PanicsWithValue(t, "relay/retry: max must be positive", func() {
			RespectRetryAfter(NewFixedWaiter(time.Second), 0)
		})
	})
	t.Run("no response falls through", func(t *testing.T) {
		assert.Equal(t, computed, w.Wait(&request.Execution{}))
	})
	t.Run("no header falls through", func(t *testing.T) {
		e := request.Execution{Response: &http.Response{Header: http.Header{}}}
		assert.Equal(t, computed, w.Wait(&e))
	})
	t.Run("unparseable header falls through", func(t *testing.T) {
		e := executionWithRetryAfter("a while")
		assert.Equal(t, computed, w.Wait(&e))
	})
	t.Run("seconds hint wins even when shorter", func(t *testing.T) {
		e := executionWithRetryAfter("1")
		assert.Equal(t, 1*time.Second, w.Wait(&e))
	})
	t.Run("zero seconds", func(t *testing.T) {
		e := executionWithRetryAfter("0")
		assert.Equal(t, time.Duration(0), w.Wait(&e))
	})
	t.Run("negative seconds clamp to zero", func(t *testing.T) {
		e := executionWithRetryAfter("-5")
		assert.Equal(t, time.Duration(0), w.Wait(&e))
	})
	t.Run("hint truncated to max", func(t *testing.T) {
		e := executionWithRetryAfter("3600")
		assert.Equal(t, time.Minute, w.Wait(&e))
	})
	t.Run("future HTTP-date", func(t *testing.T) {
		e := executionWithRetryAfter(time.Now().Add(30 * time.Second).UTC().Format(http.TimeFormat))
		d := w.Wait(&e)
		assert.Greater(t, d, 25*time.Second)
		assert.LessOrEqual(t, d, 30*time.Second)
	})
	t.Run("past HTTP-date clamps to zero", func(t *testing.T) {
		e := executionWithRetryAfter(time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat))
		assert.Equal(t, time.Duration(0), w.Wait(&e))
	})
}

func TestRetryAfterHint(t *testing.T) {
	now := time.Date(2023, time.June, 1, 12, 0, 0, 0, time.UTC)
	testCases := []struct {
		name  string
		value string
		d     time.Duration
		ok    bool
	}{
		{name: "empty", value: "", d: 0, ok: false},
		{name: "garbage", value: "soon", d: 0, ok: false},
		{name: "seconds", value: "120", d: 2 * time.Minute, ok: true},
		{name: "zero", value: "0", d: 0, ok: true},
		{name: "negative", value: "-1", d: 0, ok: true},
		{name: "RFC1123 date", value: "Thu, 01 Jun 2023 12:00:30 GMT", d: 30 * time.Second, ok: true},
		{name: "past date", value: "Thu, 01 Jun 2023 11:00:00 GMT", d: 0, ok: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			d, ok := retryAfterHint(testCase.value, now)
			assert.Equal(t, testCase.ok, ok)
			assert.Equal(t, testCase.d, d)
		})
	}
}

func executionWithRetryAfter(value string) request.Execution {
	return request.Execution{
		Response: &http.Response{
			Header: http.Header{"Retry-After": []string{value}},
		},
	}
}
