// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package reqid stamps every attempt of a plan execution with a unique
// request ID header, so that all the attempts, redirect hops, and
// replays belonging to one logical request can be correlated in server
// logs.
//
// Install the handler on a client's handler group:
//
//	cl := &relay.Client{Handlers: &relay.HandlerGroup{}}
//	(&reqid.Handler{}).Install(cl.Handlers)
//
// The ID is generated once per execution and repeated verbatim on every
// attempt. Read it back with ID.
package reqid

import (
	"github.com/gogama/relay"
	"github.com/gogama/relay/request"
	"github.com/google/uuid"
)

// DefaultHeader is the header used to convey the request ID when
// Handler does not specify one.
const DefaultHeader = "X-Request-ID"

type key int

const idKey key = 0

// A Handler injects a request ID header into every attempt of a plan
// execution. The zero value is a valid handler which sets an
// X-Request-ID header containing a random UUID.
type Handler struct {
	// Header is the name of the header to inject. If empty,
	// DefaultHeader is used.
	Header string
	// NewID generates the ID for an execution. If nil, a random UUID
	// string is generated.
	NewID func() string
}

// Install registers the handler on the events it consumes.
func (h *Handler) Install(g *relay.HandlerGroup) {
	g.PushBack(relay.BeforeAttempt, h)
}

// Handle implements the relay.Handler interface.
func (h *Handler) Handle(evt relay.Event, e *request.Execution) {
	if evt != relay.BeforeAttempt {
		return
	}
	id, ok := e.Value(idKey).(string)
	if !ok {
		id = h.newID()
		e.SetValue(idKey, id)
	}
	e.Request.Header.Set(h.header(), id)
}

func (h *Handler) header() string {
	if h.Header == "" {
		return DefaultHeader
	}
	return h.Header
}

func (h *Handler) newID() string {
	if h.NewID == nil {
		return uuid.NewString()
	}
	return h.NewID()
}

// ID returns the request ID assigned to the execution, or the empty
// string if no ID has been assigned yet.
func ID(e *request.Execution) string {
	id, _ := e.Value(idKey).(string)
	return id
}
