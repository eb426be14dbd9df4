// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package relaylog emits structured logs for the attempts, redirects,
// credential refreshes, and final resolution of a plan execution, using
// the zerolog logging library.
//
// The relay core deliberately logs nothing itself. Install this
// handler on a client's handler group to watch executions unfold:
//
//	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
//	cl := &relay.Client{Handlers: &relay.HandlerGroup{}}
//	relaylog.New(logger).Install(cl.Handlers)
//
// Individual attempts and redirect hops log at debug level, attempts
// which failed with an error at warn level, and the final resolution at
// info level, or error level if the execution resolved with an error.
package relaylog

import (
	"time"

	"github.com/gogama/relay"
	"github.com/gogama/relay/request"
	"github.com/rs/zerolog"
)

type key int

const startKey key = 0

// A Handler logs the lifecycle of each plan execution to a zerolog
// logger.
type Handler struct {
	logger zerolog.Logger
}

// New constructs a Handler logging to the given logger.
func New(logger zerolog.Logger) *Handler {
	return &Handler{logger: logger}
}

// Install registers the handler on the events it consumes.
func (h *Handler) Install(g *relay.HandlerGroup) {
	g.PushBack(relay.BeforeAttempt, h)
	g.PushBack(relay.AfterAttempt, h)
	g.PushBack(relay.BeforeRedirect, h)
	g.PushBack(relay.BeforeRefresh, h)
	g.PushBack(relay.AfterExecutionEnd, h)
}

// Handle implements the relay.Handler interface.
func (h *Handler) Handle(evt relay.Event, e *request.Execution) {
	switch evt {
	case relay.BeforeAttempt:
		e.SetValue(startKey, time.Now())
	case relay.AfterAttempt:
		h.afterAttempt(e)
	case relay.BeforeRedirect:
		h.logger.Debug().
			Int("status", e.StatusCode()).
			Str("location", e.Response.Header.Get("Location")).
			Int("redirects", e.Redirects).
			Msg("following redirect")
	case relay.BeforeRefresh:
		h.logger.Info().
			Int("status", e.StatusCode()).
			Msg("refreshing credential")
	case relay.AfterExecutionEnd:
		entry := h.logger.Info()
		if e.Err != nil {
			entry = h.logger.Error()
		}
		entry.
			Int("attempt", e.Attempt).
			Int("redirects", e.Redirects).
			Bool("refreshed", e.Refreshed).
			Int("status", e.StatusCode()).
			Dur("duration", e.Duration()).
			Err(e.Err).
			Msg("plan execution complete")
	}
}

func (h *Handler) afterAttempt(e *request.Execution) {
	entry := h.logger.Debug()
	if e.Err != nil {
		entry = h.logger.Warn()
	}
	entry = entry.
		Str("method", e.Request.Method).
		Stringer("url", e.Request.URL).
		Int("attempt", e.Attempt).
		Int("status", e.StatusCode()).
		Int("resp_bytes", len(e.Body)).
		Err(e.Err)
	if start, ok := e.Value(startKey).(time.Time); ok {
		entry = entry.Dur("duration", time.Since(start))
	}
	entry.Msg("attempt complete")
}
