// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	urlpkg "net/url"
	"strings"

	"github.com/gogama/relay/headers"
)

const (
	nilCtxMsg = "relay/request: nil context"
)

// A Plan contains a logical HTTP request plan for execution by a
// client.
//
// The logical request described by a Plan will typically result in a
// lower-level http.Request (net/http) attempt being made, but may
// result in multiple request attempts, for example if a failed attempt
// needs to be retried, a redirect needs to be followed, or a refreshed
// credential needs to be replayed.
//
// The field structure of Plan mirrors the structure of the lower-level
// http.Request with the following differences. Server-only fields are
// removed (for example Proto) and Trailer is not supported. The Body
// field is simplified to pre-buffered bytes, so that a plan can be
// executed, and its attempts replayed, any number of times, while the
// BodyReader field opts a single execution back into one-shot streaming
// transmission. The Header field uses the merge-aware headers.Header
// container rather than the raw http.Header map, and additional fields
// describe query parameters, response parsing, and progress reporting.
//
// Like the http.Request structure, a Plan has a context which controls
// the overall plan execution and can be used to cancel the inflight
// execution of a Plan at any time.
//
// A Plan must be treated as immutable once its execution starts: the
// executing client derives a Working copy for the attempt loop and
// never writes the Plan itself, so one Plan may be executed many times.
type Plan struct {
	// Method specifies the HTTP method (GET, POST, PUT, etc.).
	// An empty string means GET.
	Method string

	// URL specifies the URL to access.
	//
	// The URL's Host specifies the server to connect to, while
	// the Request's Host field optionally specifies the Host
	// header value to send in the HTTP request.
	URL *urlpkg.URL

	// Header contains the request header fields to be sent by the
	// client. Fields merged with Header.Add follow the per-field
	// merge semantics documented in package headers.
	Header headers.Header

	// Query contains extra query parameters to merge into the URL's
	// query string when each attempt's request is built. Parameters
	// already present in URL are kept, and multi-valued Query keys
	// become repeated query parameters.
	Query urlpkg.Values

	// Body is the pre-buffered request body to be sent. A nil or
	// empty body indicates no request body should be sent, for example
	// on a GET or DELETE request.
	//
	// Use SetBody to fill in Body from a logical value (a struct to be
	// JSON-encoded, form values, a string, a reader, and so on) with
	// the matching Content-Type applied as a side effect.
	Body []byte

	// BodyReader, when non-nil, supplies the request body from a
	// reader, taking precedence over Body.
	//
	// In a streaming execution (Client.Stream) the reader's bytes are
	// handed to the transport as they are read, nothing is buffered,
	// and a redirect that would need to resend them (307 or 308) is
	// refused. Pair BodyReader with an io.Pipe to write the request
	// body while reading the response body from the Stream. In a
	// buffered execution (Client.Do or Client.Send) the reader is
	// drained into the execution's working body before the first
	// attempt, so retries and replays resend identical bytes.
	//
	// Either way the reader is consumed, so a plan with a BodyReader
	// describes a single execution, unlike a plan with only Body. If
	// the reader implements io.Closer it is closed once its bytes have
	// been sent. The content length is known for a *bytes.Buffer,
	// *bytes.Reader, or *strings.Reader, and unknown (chunked transfer
	// encoding) for any other reader. No Content-Type is inferred from
	// a BodyReader; set one on Header if the server needs it.
	BodyReader io.Reader

	// Parser optionally specifies how to interpret the response body
	// of a successful execution. If Parser is nil the body is left as
	// raw bytes on the execution. See the Parser interface for the
	// built-in parse modes.
	Parser Parser

	// OnUploadProgress is called periodically while the request body
	// is written, if non-nil. See ProgressFunc for the callback
	// contract.
	OnUploadProgress ProgressFunc

	// OnDownloadProgress is called periodically while the response
	// body is read, if non-nil. See ProgressFunc for the callback
	// contract.
	OnDownloadProgress ProgressFunc

	// TransferEncoding lists the transfer encodings from outermost to
	// innermost. An empty list denotes the "identity" encoding.
	// TransferEncoding can usually be ignored if using the Go standard
	// http.Client (net/http) as the lower-level HTTPDoer; http.Client
	// automatically adds and removes chunked encoding as necessary when
	// sending requests.
	TransferEncoding []string

	// Close stipulates whether to close the connection after sending
	// each lower-level (net/http) Request and reading the response.
	// Setting this field prevents re-use of TCP connections between
	// request attempts to the same host (including two request attempts
	// coming from the same plan) as if Transport.DisableKeepAlives were
	// set.
	Close bool

	// Host optionally overrides the Host header to send. If empty, the
	// value of URL.Host will be sent. Host may contain an international
	// domain name.
	Host string

	// ctx allows the entire Plan exec to be cancelled. It should only
	// be modified by copying the whole Plan using WithContext.
	ctx context.Context
}

// NewPlan wraps NewPlanWithContext using the background context.
//
// Parameter body may be nil (empty body) or any logical body value
// accepted by SetBody: a string, []byte, io.Reader, or io.ReadCloser
// is passed through as raw bytes; url.Values are form-encoded; and a
// map or struct is JSON-encoded. Any other type results in an
// *InvalidBodyError.
func NewPlan(method, url string, body interface{}) (*Plan, error) {
	return NewPlanWithContext(context.Background(), method, url, body)
}

// NewPlanWithContext returns a new Plan given a method, URL, and
// optional body.
//
// Parameter body may be nil (empty body) or any logical body value
// accepted by SetBody: a string, []byte, io.Reader, or io.ReadCloser
// is passed through as raw bytes; url.Values are form-encoded; and a
// map or struct is JSON-encoded. Any other type results in an
// *InvalidBodyError. To declare the serialization mode explicitly
// instead of relying on inference, construct the plan with a nil body
// and call SetBody.
func NewPlanWithContext(ctx context.Context, method, url string, body interface{}) (*Plan, error) {
	if ctx == nil {
		return nil, errors.New(nilCtxMsg)
	}
	if method == "" {
		method = "GET"
	}
	if !validMethod(method) {
		return nil, fmt.Errorf("relay/request: invalid method %q", method)
	}
	u, err := urlpkg.Parse(url)
	if err != nil {
		return nil, err
	}
	u.Host = removeEmptyPort(u.Host)
	p := &Plan{
		ctx:    ctx,
		Method: method,
		URL:    u,
		Header: headers.New(),
		Host:   u.Host,
	}
	if err = p.SetBody(body, nil); err != nil {
		return nil, err
	}
	return p, nil
}

// Context returns the request plan's context. The context controls
// cancellation of the overall request plan. To change the context, use
// WithContext.
//
// The returned context is always non-nil; it defaults to the
// background context.
func (p *Plan) Context() context.Context {
	if p.ctx != nil {
		return p.ctx
	}
	return context.Background()
}

// WithContext returns a shallow copy of p with its context changed to
// ctx, which must be non-nil.
//
// The context controls the entire lifetime of a logical request plan
// and its execution, including: making individual request attempts
// (obtaining a connection, sending the request, reading the response
// headers and body), following redirects, refreshing credentials,
// running event handlers, and waiting for a retry wait period to
// expire.
//
// To create a new request plan with a context, use NewPlanWithContext.
func (p *Plan) WithContext(ctx context.Context) *Plan {
	if ctx == nil {
		panic(nilCtxMsg)
	}
	p2 := new(Plan)
	*p2 = *p
	p2.ctx = ctx
	return p2
}

// SetBody serializes a logical body value into the plan's Body using
// the given serializer, and fills in the Content-Type header the
// serializer proposes unless the plan already has one. A Content-Type
// the caller set explicitly always wins.
//
// If s is nil, the serialization mode is inferred from the body value:
// a string, []byte, io.Reader, or io.ReadCloser passes through as raw
// bytes; url.Values are form-encoded; a map or struct (or pointer to
// struct) is JSON-encoded. A body value matching none of these results
// in an *InvalidBodyError before any request is sent.
//
// A nil body clears the plan's Body without touching the headers.
func (p *Plan) SetBody(body interface{}, s Serializer) error {
	data, contentType, err := Serialize(body, s)
	if err != nil {
		return err
	}
	p.Body = data
	if contentType != "" && len(data) > 0 {
		p.Header.Default("Content-Type", contentType)
	}
	return nil
}

// AddCookie adds a cookie to the request. Per RFC 6265 section 5.4,
// AddCookie does not attach more than one Cookie header field. That
// means all cookies, if any, are written into the same line,
// separated by semicolons.
//
// AddCookie only sanitizes c's name and value, and does not sanitize
// a Cookie header already present in the request.
func (p *Plan) AddCookie(c *http.Cookie) {
	c2 := &http.Cookie{Name: c.Name, Value: c.Value}
	p.Header.Add("Cookie", c2.String())
}

// SetBasicAuth sets the request plan's Authorization header to use HTTP
// Basic Authentication with the provided username and password.
//
// With HTTP Basic Authentication the provided username and password
// are not encrypted.
//
// Some protocols may impose additional requirements on pre-escaping the
// username and password. For instance, when used with OAuth2, both arguments
// must be URL encoded first with url.QueryEscape.
func (p *Plan) SetBasicAuth(username, password string) {
	p.Header.Set("Authorization", "Basic "+BasicAuth(username, password))
}

// ToRequest creates an HTTP request corresponding to the given request
// plan. The context of the new request is set to ctx, which may not be
// nil.
//
// ToRequest derives a fresh Working copy of the plan on each call, so
// modifying the returned request does not affect the plan.
func (p *Plan) ToRequest(ctx context.Context) *http.Request {
	return p.Derive().ToRequest(ctx)
}

// BasicAuth encodes a username and password pair as required by the
// HTTP Basic Authentication scheme.
//
// See 2 (end of page 4) https://www.ietf.org/rfc/rfc2617.txt
// "To receive authorization, the client sends the userid and password,
// separated by a single colon (":") character, within a base64
// encoded string in the credentials."
// It is not meant to be urlencoded.
func BasicAuth(username, password string) string {
	auth := username + ":" + password
	return base64.StdEncoding.EncodeToString([]byte(auth))
}

func validMethod(method string) bool {
	/*
	     Method         = "OPTIONS"                ; Section 9.2
	                    | "GET"                    ; Section 9.3
	                    | "HEAD"                   ; Section 9.4
	                    | "POST"                   ; Section 9.5
	                    | "PUT"                    ; Section 9.6
	                    | "DELETE"                 ; Section 9.7
	                    | "TRACE"                  ; Section 9.8
	                    | "CONNECT"                ; Section 9.9
	                    | extension-method
	   extension-method = token
	     token          = 1*<any CHAR except CTLs or separators>

	   We don't need to check for length more than 1 because we always
	   interpret the empty string as "GET".
	*/
	return strings.IndexFunc(method, isNotToken) == -1
}

func isNotToken(r rune) bool {
	return !isTokenRune(r)
}

// isTokenRune is lifted verbatim from x/net/http/httpguts/httplex.go
// (but converted to non-exported). It classifies a rune as being valid
// for a token as defined in https://tools.ietf.org/html/rfc7230#section-3.2.6
func isTokenRune(r rune) bool {
	i := int(r)
	return i < len(isTokenTable) && isTokenTable[i]
}

var isTokenTable = [127]bool{
	'!':  true,
	'#':  true,
	'$':  true,
	'%':  true,
	'&':  true,
	'\'': true,
	'*':  true,
	'+':  true,
	'-':  true,
	'.':  true,
	'0':  true,
	'1':  true,
	'2':  true,
	'3':  true,
	'4':  true,
	'5':  true,
	'6':  true,
	'7':  true,
	'8':  true,
	'9':  true,
	'A':  true,
	'B':  true,
	'C':  true,
	'D':  true,
	'E':  true,
	'F':  true,
	'G':  true,
	'H':  true,
	'I':  true,
	'J':  true,
	'K':  true,
	'L':  true,
	'M':  true,
	'N':  true,
	'O':  true,
	'P':  true,
	'Q':  true,
	'R':  true,
	'S':  true,
	'T':  true,
	'U':  true,
	'W':  true,
	'V':  true,
	'X':  true,
	'Y':  true,
	'Z':  true,
	'^':  true,
	'_':  true,
	'`':  true,
	'a':  true,
	'b':  true,
	'c':  true,
	'd':  true,
	'e':  true,
	'f':  true,
	'g':  true,
	'h':  true,
	'i':  true,
	'j':  true,
	'k':  true,
	'l':  true,
	'm':  true,
	'n':  true,
	'o':  true,
	'p':  true,
	'q':  true,
	'r':  true,
	's':  true,
	't':  true,
	'u':  true,
	'v':  true,
	'w':  true,
	'x':  true,
	'y':  true,
	'z':  true,
	'|':  true,
	'~':  true,
}

// hasPort is lifted verbatim from net/http/http.go
//
// Given a string of the form "host", "host:port", or "[ipv6::address]:port",
// return true if the string includes a port.
func hasPort(s string) bool { return strings.LastIndex(s, ":") > strings.LastIndex(s, "]") }

// removeEmptyPort is lifted verbatim from net/http/http.go
//
// removeEmptyPort strips the empty port in ":port" to ""
// as mandated by RFC 3986 Section 6.2.3.
func removeEmptyPort(host string) string {
	if hasPort(host) {
		return strings.TrimSuffix(host, ":")
	}
	return host
}
