// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package headers

import (
	"net/http"
	"net/textproto"
	"sort"
)

// A Header is a case-insensitive collection of HTTP request header
// fields with per-field merge semantics.
//
// Header differs from the standard http.Header in how Add combines
// repeated fields. Fields which may only appear once in a request
// (Authorization, Content-Length, Host, User-Agent, and so on) are
// overwritten by Add. Set-Cookie accumulates one element per call.
// Cookie values are folded into a single field joined with "; " per
// RFC 6265 section 5.4, and all remaining fields are folded into a
// single field joined with ", " per RFC 7230 section 3.2.2.
//
// The zero value is not usable; create a Header with New or FromHTTP.
// Header is not safe for concurrent use by multiple goroutines.
type Header map[string][]string

// New allocates an empty Header.
func New() Header {
	return make(Header)
}

// FromHTTP copies an http.Header into a new Header. Repeated fields in
// h are merged one at a time using Add, so the merge semantics
// described on Header apply.
func FromHTTP(h http.Header) Header {
	h2 := make(Header, len(h))
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range h[k] {
			h2.Add(k, v)
		}
	}
	return h2
}

// singleton lists the request header fields which may only appear once.
// Add overwrites any existing value for these fields instead of merging.
// The list matches the discrete header set used by the Node.js HTTP
// stack, which in turn reflects the fields RFC 7230 et seq. define as
// single-valued.
var singleton = map[string]bool{
	"Age":                 true,
	"Authorization":       true,
	"Content-Length":      true,
	"Content-Type":        true,
	"Etag":                true,
	"Expires":             true,
	"From":                true,
	"Host":                true,
	"If-Modified-Since":   true,
	"If-Unmodified-Since": true,
	"Last-Modified":       true,
	"Location":            true,
	"Max-Forwards":        true,
	"Proxy-Authorization": true,
	"Referer":             true,
	"Retry-After":         true,
	"Server":              true,
	"User-Agent":          true,
}

const setCookie = "Set-Cookie"

// Set sets the header field named name to the single value value,
// replacing any existing values.
func (h Header) Set(name, value string) {
	h[canonical(name)] = []string{value}
}

// Add merges the value value into the header field named name.
//
// If the field is absent, Add behaves like Set. Otherwise the merge
// depends on the field: single-valued fields are overwritten;
// Set-Cookie values accumulate as separate list elements; Cookie
// values are joined onto the existing value with "; "; and all other
// fields are joined onto the existing value with ", ".
func (h Header) Add(name, value string) {
	k := canonical(name)
	old, ok := h[k]
	switch {
	case !ok || len(old) == 0 || singleton[k]:
		h[k] = []string{value}
	case k == setCookie:
		h[k] = append(old, value)
	case k == "Cookie":
		h[k] = []string{old[0] + "; " + value}
	default:
		h[k] = []string{old[0] + ", " + value}
	}
}

// Default sets the header field named name to value only if the field
// is absent. It is used to fill in fallback values, for example a
// default Accept or User-Agent, without clobbering caller intent.
func (h Header) Default(name, value string) {
	k := canonical(name)
	if _, ok := h[k]; !ok {
		h[k] = []string{value}
	}
}

// Get returns the first value of the header field named name, or the
// empty string if the field is absent.
func (h Header) Get(name string) string {
	if v := h[canonical(name)]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Values returns all values of the header field named name in the
// order they were added. The returned slice is not a copy; treat it
// as read-only.
func (h Header) Values(name string) []string {
	return h[canonical(name)]
}

// Has reports whether the header field named name is present.
func (h Header) Has(name string) bool {
	_, ok := h[canonical(name)]
	return ok
}

// Del deletes the header field named name. Deleting an absent field is
// a no-op.
func (h Header) Del(name string) {
	delete(h, canonical(name))
}

// Clone returns a deep copy of h.
func (h Header) Clone() Header {
	h2 := make(Header, len(h))
	for k, v := range h {
		v2 := make([]string, len(v))
		copy(v2, v)
		h2[k] = v2
	}
	return h2
}

// HTTP converts h into a freshly allocated http.Header suitable for
// sending with an http.Request. Merge semantics have already been
// applied, so the conversion is a plain copy.
func (h Header) HTTP() http.Header {
	h2 := make(http.Header, len(h))
	for k, v := range h {
		v2 := make([]string, len(v))
		copy(v2, v)
		h2[k] = v2
	}
	return h2
}

func canonical(name string) string {
	return textproto.CanonicalMIMEHeaderKey(name)
}
