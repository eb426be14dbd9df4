// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"encoding/json"
	"net/http"
)

// A Parser interprets the buffered response body of a successful
// execution, producing the value stored in the execution's Parsed
// field.
//
// A Parser runs only after the final attempt of an execution resolves
// with a 2xx status other than 204; it never sees responses that were
// retried, redirected, or replayed away. An error returned by a Parser
// becomes the terminal error of the execution, verbatim.
//
// Implementations of Parser must be safe for concurrent use by
// multiple goroutines if the plan carrying them is executed
// concurrently.
type Parser interface {
	Parse(resp *http.Response, body []byte) (interface{}, error)
}

// The ParserFunc type is an adapter to allow the use of ordinary
// functions as response parsers.
type ParserFunc func(resp *http.Response, body []byte) (interface{}, error)

// Parse calls f(resp, body).
func (f ParserFunc) Parse(resp *http.Response, body []byte) (interface{}, error) {
	return f(resp, body)
}

// JSONParser decodes the response body with encoding/json into a
// generic value (map[string]interface{}, []interface{}, string,
// float64, bool, or nil). To decode into a typed value instead, leave
// the plan's Parser nil and use Execution.DecodeJSON.
var JSONParser Parser = ParserFunc(parseJSON)

func parseJSON(_ *http.Response, body []byte) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	return v, nil
}
