// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"encoding/json"
	"fmt"
	"io"
	urlpkg "net/url"
	"reflect"
)

// A Serializer converts a logical request body value into transport
// bytes and proposes a Content-Type for them. An empty content type
// means the serializer has no opinion.
//
// The built-in serializers are JSON, Form, and Raw. Use SerializerFunc
// to adapt an ordinary function, for example to produce XML or a
// protocol buffer; a custom serializer fully controls the bytes
// produced and may return any error, which is surfaced to the caller
// verbatim.
type Serializer interface {
	Serialize(body interface{}) (data []byte, contentType string, err error)
}

// The SerializerFunc type is an adapter to allow the use of ordinary
// functions as body serializers.
type SerializerFunc func(body interface{}) ([]byte, string, error)

// Serialize calls f(body).
func (f SerializerFunc) Serialize(body interface{}) ([]byte, string, error) {
	return f(body)
}

// JSON serializes the body with encoding/json and proposes the content
// type "application/json".
var JSON Serializer = SerializerFunc(serializeJSON)

// Form URL-encodes the body and proposes the content type
// "application/x-www-form-urlencoded". The body may be a url.Values,
// a map[string][]string, a map[string]string, or a map[string]interface{}
// whose values are scalars or slices of scalars; multi-valued keys are
// flattened into repeated form fields. Any other body shape produces
// an *InvalidBodyError.
var Form Serializer = SerializerFunc(serializeForm)

// Raw passes the body through unencoded and proposes the generic
// content type "application/octet-stream". The body may be a string,
// []byte, io.Reader, or io.ReadCloser; readers are read to the end and
// buffered. Any other body shape produces an *InvalidBodyError.
var Raw Serializer = SerializerFunc(serializeRaw)

// Serialize converts a logical body value to transport bytes using the
// given serializer.
//
// A nil body always serializes to a nil byte slice with no content
// type, whatever the serializer. If s is nil, the serialization mode
// is inferred from the body's shape: a string, []byte, io.Reader, or
// io.ReadCloser passes through as raw bytes; url.Values are
// form-encoded; and a map, struct, or pointer to struct is
// JSON-encoded. A body matching none of these shapes produces an
// *InvalidBodyError.
func Serialize(body interface{}, s Serializer) ([]byte, string, error) {
	if body == nil {
		return nil, "", nil
	}
	if s == nil {
		s = inferSerializer(body)
		if s == nil {
			return nil, "", &InvalidBodyError{Body: body}
		}
	}
	return s.Serialize(body)
}

func inferSerializer(body interface{}) Serializer {
	switch body.(type) {
	case string, []byte, io.ReadCloser, io.Reader:
		return Raw
	case urlpkg.Values:
		return Form
	}
	v := reflect.ValueOf(body)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Map, reflect.Struct:
		return JSON
	}
	return nil
}

func serializeJSON(body interface{}) ([]byte, string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, "", &InvalidBodyError{Body: body, Err: err}
	}
	return data, "application/json", nil
}

func serializeForm(body interface{}) ([]byte, string, error) {
	const contentType = "application/x-www-form-urlencoded"
	var values urlpkg.Values
	switch x := body.(type) {
	case urlpkg.Values:
		values = x
	case map[string][]string:
		values = urlpkg.Values(x)
	case map[string]string:
		values = make(urlpkg.Values, len(x))
		for k, v := range x {
			values.Set(k, v)
		}
	case map[string]interface{}:
		values = make(urlpkg.Values, len(x))
		for k, v := range x {
			switch vv := v.(type) {
			case []string:
				for _, s := range vv {
					values.Add(k, s)
				}
			case []interface{}:
				for _, s := range vv {
					values.Add(k, fmt.Sprint(s))
				}
			default:
				values.Add(k, fmt.Sprint(vv))
			}
		}
	default:
		return nil, "", &InvalidBodyError{Body: body}
	}
	return []byte(values.Encode()), contentType, nil
}

func serializeRaw(body interface{}) ([]byte, string, error) {
	data, err := BodyBytes(body)
	if err != nil {
		return nil, "", err
	}
	return data, "application/octet-stream", nil
}

// An InvalidBodyError reports a logical request body which could not
// be serialized into transport bytes, either because its shape matched
// no serialization mode or because the selected mode failed on it. It
// is always detected before any request is sent.
type InvalidBodyError struct {
	// Body is the offending logical body value.
	Body interface{}
	// Err is the underlying serialization error, if any. It is nil
	// when the body's shape simply matched no serialization mode.
	Err error
}

func (e *InvalidBodyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("relay/request: cannot serialize body of type %T: %v", e.Body, e.Err)
	}
	return fmt.Sprintf("relay/request: cannot serialize body of type %T", e.Body)
}

// Unwrap returns the underlying serialization error, if any.
func (e *InvalidBodyError) Unwrap() error {
	return e.Err
}
