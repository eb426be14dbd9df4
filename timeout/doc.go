// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package timeout defines policies for setting per-attempt HTTP
// timeouts during an HTTP request plan execution. A generic interface
// for timeout policies is provided, Policy, along with the Fixed
// policy constructor and the built-in policies DefaultPolicy and
// Infinite.
//
// A timed-out attempt resolves its execution terminally; see the
// Policy documentation.
package timeout
