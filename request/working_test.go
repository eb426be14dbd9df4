// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan_Derive(t *testing.T) {
	t.Run("copies plan fields", func(t *testing.T) {
		p, err := NewPlan("POST", "http://example.com/things", "body")
		require.NoError(t, err)
		p.Host = "override.example.com"
		w := p.Derive()
		require.NotNil(t, w)
		assert.Equal(t, "POST", w.Method)
		assert.Same(t, p.URL, w.URL)
		assert.Equal(t, []byte("body"), w.Body)
		assert.Equal(t, "override.example.com", w.Host)
		assert.Same(t, p, w.Plan())
	})
	t.Run("header copy is independent", func(t *testing.T) {
		p, err := NewPlan("GET", "http://example.com", nil)
		require.NoError(t, err)
		p.Header.Set("X-A", "1")
		w := p.Derive()
		w.Header.Set("X-A", "2")
		w.Header.Set("X-B", "3")
		assert.Equal(t, "1", p.Header.Get("X-A"))
		assert.False(t, p.Header.Has("X-B"))
	})
	t.Run("merges query without mutating plan URL", func(t *testing.T) {
		p, err := NewPlan("GET", "http://example.com/s?q=1", nil)
		require.NoError(t, err)
		p.Query = url.Values{"r": []string{"2", "3"}}
		w := p.Derive()
		assert.Equal(t, "http://example.com/s?q=1&r=2&r=3", w.URL.String())
		assert.Equal(t, "http://example.com/s?q=1", p.URL.String())
		assert.NotSame(t, p.URL, w.URL)
	})
	t.Run("no query leaves URL alone", func(t *testing.T) {
		p, err := NewPlan("GET", "http://example.com/s?q=1", nil)
		require.NoError(t, err)
		w := p.Derive()
		assert.Same(t, p.URL, w.URL)
	})
	t.Run("copies body reader", func(t *testing.T) {
		p, err := NewPlan("PUT", "http://example.com/up", nil)
		require.NoError(t, err)
		r := strings.NewReader("streamed")
		p.BodyReader = r
		w := p.Derive()
		assert.Same(t, r, w.BodyReader)
	})
}

func TestWorking_ToRequest(t *testing.T) {
	t.Run("reflects redirect rewrite", func(t *testing.T) {
		p, err := NewPlan("POST", "http://example.com/old", "payload")
		require.NoError(t, err)
		w := p.Derive()
		w.Method = "GET"
		w.Body = nil
		u, err := url.Parse("http://elsewhere.com/new")
		require.NoError(t, err)
		w.URL = u
		w.Host = u.Host
		r := w.ToRequest(context.Background())
		require.NotNil(t, r)
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "http://elsewhere.com/new", r.URL.String())
		assert.Nil(t, r.Body)
		assert.Equal(t, int64(0), r.ContentLength)
		assert.Equal(t, "elsewhere.com", r.Host)
	})
	t.Run("upload progress", func(t *testing.T) {
		p, err := NewPlan("PUT", "http://example.com/up", "12345")
		require.NoError(t, err)
		var lastPct float64
		var lastDone, lastTotal int64
		calls := 0
		p.OnUploadProgress = func(pct float64, done, total int64) {
			lastPct, lastDone, lastTotal = pct, done, total
			calls++
		}
		w := p.Derive()
		r := w.ToRequest(context.Background())
		require.NotNil(t, r.Body)
		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "12345", string(b))
		assert.GreaterOrEqual(t, calls, 1)
		assert.Equal(t, float64(100), lastPct)
		assert.Equal(t, int64(5), lastDone)
		assert.Equal(t, int64(5), lastTotal)
		t.Run("GetBody reports progress too", func(t *testing.T) {
			calls = 0
			rc, err := r.GetBody()
			require.NoError(t, err)
			b, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, "12345", string(b))
			assert.GreaterOrEqual(t, calls, 1)
		})
	})
	t.Run("body reader streams without GetBody", func(t *testing.T) {
		p, err := NewPlan("PUT", "http://example.com/up", nil)
		require.NoError(t, err)
		p.BodyReader = strings.NewReader("streamed")
		r := p.Derive().ToRequest(context.Background())
		require.NotNil(t, r.Body)
		assert.Nil(t, r.GetBody)
		assert.Equal(t, int64(8), r.ContentLength)
		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "streamed", string(b))
	})
	t.Run("body reader of unknown length", func(t *testing.T) {
		p, err := NewPlan("PUT", "http://example.com/up", nil)
		require.NoError(t, err)
		var pcts []float64
		var lastTotal int64
		p.OnUploadProgress = func(pct float64, _, total int64) {
			pcts = append(pcts, pct)
			lastTotal = total
		}
		p.BodyReader = io.MultiReader(strings.NewReader("chun"), strings.NewReader("ked"))
		r := p.Derive().ToRequest(context.Background())
		assert.Equal(t, int64(-1), r.ContentLength)
		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "chunked", string(b))
		require.NotEmpty(t, pcts)
		for _, pct := range pcts {
			assert.Equal(t, float64(-1), pct)
		}
		assert.Equal(t, int64(-1), lastTotal)
	})
	t.Run("body reader takes precedence over Body", func(t *testing.T) {
		p, err := NewPlan("PUT", "http://example.com/up", "buffered")
		require.NoError(t, err)
		p.BodyReader = strings.NewReader("streamed")
		r := p.Derive().ToRequest(context.Background())
		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "streamed", string(b))
	})
	t.Run("empty in-memory body reader sends no body", func(t *testing.T) {
		p, err := NewPlan("PUT", "http://example.com/up", nil)
		require.NoError(t, err)
		p.BodyReader = bytes.NewReader(nil)
		r := p.Derive().ToRequest(context.Background())
		assert.Equal(t, http.NoBody, r.Body)
		assert.Equal(t, int64(0), r.ContentLength)
	})
	t.Run("transfer encoding and close from plan", func(t *testing.T) {
		p, err := NewPlan("GET", "http://example.com", nil)
		require.NoError(t, err)
		p.TransferEncoding = []string{"chunked"}
		p.Close = true
		r := p.Derive().ToRequest(context.Background())
		assert.Equal(t, []string{"chunked"}, r.TransferEncoding)
		assert.True(t, r.Close)
	})
	t.Run("directly constructed Working", func(t *testing.T) {
		u, err := url.Parse("http://bare.example.com")
		require.NoError(t, err)
		w := &Working{Method: "GET", URL: u, Header: http.Header{}}
		assert.Nil(t, w.Plan())
		r := w.ToRequest(context.Background())
		require.NotNil(t, r)
		assert.Equal(t, "http://bare.example.com", r.URL.String())
	})
}
