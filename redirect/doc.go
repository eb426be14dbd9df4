// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package redirect provides policies bounding how many redirect hops
// the robust HTTP client will follow during an HTTP request plan
// execution, plus the status code classification and Location
// resolution helpers the client follows redirects with.
//
// The client consults a Policy once per redirect-eligible response. A
// refused redirect resolves the execution with a RedirectError, so a
// chain longer than the policy allows surfaces as an error rather than
// as the intermediate 3xx response.
package redirect
