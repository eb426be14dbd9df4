// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package redirect

import (
	"errors"
	"net/http"
	urlpkg "net/url"
)

// IsRedirect reports whether statusCode is one of the five redirect
// status codes a client may follow: 301 (Moved Permanently), 302
// (Found), 303 (See Other), 307 (Temporary Redirect), or 308
// (Permanent Redirect).
func IsRedirect(statusCode int) bool {
	switch statusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}

// Rewrites reports whether following a redirect with the given status
// code rewrites the downstream request: 301, 302, and 303 force the
// method to GET, clear the body, and strip the body-describing
// headers, while 307 and 308 preserve method and body.
func Rewrites(statusCode int) bool {
	switch statusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther:
		return true
	default:
		return false
	}
}

// Resolve computes the target of a redirect hop by resolving a
// Location header value against the URL the redirect response came
// from. The location may be an absolute URL or a reference relative to
// base, including same-directory ("./sibling"), parent-relative
// ("../cousin"), and host-relative ("/rooted") forms, per RFC 3986.
func Resolve(base *urlpkg.URL, location string) (*urlpkg.URL, error) {
	if location == "" {
		return nil, errors.New("relay/redirect: empty location")
	}
	ref, err := urlpkg.Parse(location)
	if err != nil {
		return nil, err
	}
	return base.ResolveReference(ref), nil
}
