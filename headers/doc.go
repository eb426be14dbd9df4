// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package headers provides a case-insensitive request header container
// with per-field merge semantics: single-valued fields overwrite,
// Set-Cookie accumulates, Cookie joins with "; ", and everything else
// joins with ", ". It is the header type used by request.Plan, and it
// converts losslessly to and from the standard http.Header.
package headers
