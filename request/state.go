// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

// A State identifies where an execution currently is in the attempt
// loop. The executing client advances the state; policies and event
// handlers should treat it as read-only.
//
// The state graph is:
//
//	Idle → Sending → BackingOff  → Sending → … → Resolved
//	               → Redirecting → Sending → …
//	               → Refreshing  → Sending → …
//
// Every execution passes through Sending at least once and ends in
// Resolved, whether it resolved with a response or an error.
type State int

const (
	// Idle is the state of an execution which has not started.
	Idle State = iota
	// Sending is the state of an execution with a request attempt in
	// flight, from just before the request is built until the response
	// body is buffered or the attempt fails.
	Sending
	// BackingOff is the state of an execution waiting out the delay
	// between a failed attempt and its retry.
	BackingOff
	// Redirecting is the state of an execution between receiving a
	// redirect response and sending the attempt for the new target.
	Redirecting
	// Refreshing is the state of an execution waiting for the
	// credential agent to mint a new credential after an authorization
	// failure.
	Refreshing
	// Resolved is the state of an execution which has settled, with a
	// final response or a terminal error. A resolved execution never
	// changes again.
	Resolved
)

var stateNames = []string{
	"Idle",
	"Sending",
	"BackingOff",
	"Redirecting",
	"Refreshing",
	"Resolved",
}

// String returns the name of the state.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Invalid"
	}
	return stateNames[s]
}
