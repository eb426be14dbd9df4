// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"bytes"
	"context"
	"io"
	"net/http"
	urlpkg "net/url"
	"strings"
)

var (
	template, _ = http.NewRequest("GET", "", nil)
)

// A Working is the mutable request state an execution sends on its
// next attempt: the current method, target URL, header set, and body.
//
// A Working starts as a copy of the plan, derived once per execution
// by Derive. It then evolves as the execution progresses: following a
// 301, 302, or 303 redirect rewrites the method to GET, clears the
// body, and strips the body-describing headers; following a 307 or 308
// redirect changes only the URL; and a credential refresh replaces the
// Authorization header. Retries resend the Working as it stands.
//
// A Working is owned by a single execution and is never shared between
// executions, so changes made to it (by the executing client or by
// event handlers) cannot leak across logical requests.
type Working struct {
	// Method is the HTTP method the next attempt will use.
	Method string

	// URL is the target of the next attempt.
	URL *urlpkg.URL

	// Header contains the header fields the next attempt will send,
	// in wire-ready form. The plan's merge-aware header container has
	// already been applied, as have the plan's Query parameters.
	Header http.Header

	// Body is the body the next attempt will send. It is nil after a
	// method-rewriting redirect.
	Body []byte

	// BodyReader, when non-nil, streams the next attempt's body from a
	// reader in place of Body. See the field of the same name on Plan.
	// It is nil after a method-rewriting redirect, and in a buffered
	// execution it is drained into Body before the first attempt.
	BodyReader io.Reader

	// Host optionally overrides the Host header for the next attempt.
	Host string

	plan *Plan
}

// Derive creates the Working copy of the plan that seeds an execution.
// The plan's Query parameters are merged into the URL's query string,
// with multi-valued keys becoming repeated parameters, and the plan's
// header container is converted to a fresh http.Header.
func (p *Plan) Derive() *Working {
	u := p.URL
	if len(p.Query) > 0 && u != nil {
		u2 := *u
		q := u2.Query()
		for k, vs := range p.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u2.RawQuery = q.Encode()
		u = &u2
	}
	return &Working{
		Method:     p.Method,
		URL:        u,
		Header:     p.Header.HTTP(),
		Body:       p.Body,
		BodyReader: p.BodyReader,
		Host:       p.Host,
		plan:       p,
	}
}

// ToRequest builds the HTTP request for the next attempt. The context
// of the new request is set to ctx, which may not be nil.
//
// The request body, if any, reports upload progress to the plan's
// OnUploadProgress callback as it is written. A BodyReader body is
// handed to the transport without buffering and carries no GetBody,
// since the stream cannot be replayed.
func (w *Working) ToRequest(ctx context.Context) *http.Request {
	r := template.WithContext(ctx)
	r.Method = w.Method
	r.URL = w.URL
	r.Header = w.Header
	var onProgress ProgressFunc
	if w.plan != nil {
		onProgress = w.plan.OnUploadProgress
	}
	if w.BodyReader != nil {
		if n := readerLen(w.BodyReader); n == 0 {
			r.Body = http.NoBody
		} else {
			r.Body = ProgressReader(w.BodyReader, n, onProgress)
			r.ContentLength = n
		}
	} else if len(w.Body) > 0 {
		body := w.Body
		r.Body = ProgressReader(bytes.NewReader(body), int64(len(body)), onProgress)
		r.GetBody = func() (io.ReadCloser, error) {
			return ProgressReader(bytes.NewReader(body), int64(len(body)), onProgress), nil
		}
		r.ContentLength = int64(len(body))
	}
	if w.plan != nil {
		r.TransferEncoding = w.plan.TransferEncoding
		r.Close = w.plan.Close
	}
	r.Host = w.Host
	return r
}

// readerLen mirrors net/http.NewRequest's content length detection for
// the common in-memory reader types. Any other reader's length is
// unknown (-1), which the transport sends with chunked encoding.
func readerLen(r io.Reader) int64 {
	switch v := r.(type) {
	case *bytes.Buffer:
		return int64(v.Len())
	case *bytes.Reader:
		return int64(v.Len())
	case *strings.Reader:
		return int64(v.Len())
	default:
		return -1
	}
}

// Plan returns the plan the Working was derived from, or nil if the
// Working was constructed directly.
func (w *Working) Plan() *Plan {
	return w.plan
}
