// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package relaytrace opens an OpenTelemetry client span around every
// attempt of a plan execution, records the response status or error on
// it, and injects the trace context into the outgoing request headers.
//
// Install the handler on a client's handler group:
//
//	cl := &relay.Client{Handlers: &relay.HandlerGroup{}}
//	relaytrace.New(otel.GetTracerProvider()).Install(cl.Handlers)
//
// Each attempt gets its own span, so a plan execution which retries or
// follows redirects shows up as a sequence of spans, distinguished by
// their attempt and redirect attributes.
package relaytrace

import (
	"github.com/gogama/relay"
	"github.com/gogama/relay/request"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/gogama/relay/relaytrace"

const (
	attrMethod    = attribute.Key("http.method")
	attrURL       = attribute.Key("http.url")
	attrStatus    = attribute.Key("http.status_code")
	attrAttempt   = attribute.Key("relay.attempt")
	attrRedirects = attribute.Key("relay.redirects")
)

type key int

const spanKey key = 0

// A Handler traces the attempts of a plan execution.
type Handler struct {
	// Propagator injects the span context into the outgoing request
	// headers. If nil, the global otel propagator is used.
	Propagator propagation.TextMapPropagator

	tracer trace.Tracer
}

// New constructs a Handler tracing through the given provider.
func New(tp trace.TracerProvider) *Handler {
	return &Handler{tracer: tp.Tracer(scopeName)}
}

// Install registers the handler on the events it consumes.
func (h *Handler) Install(g *relay.HandlerGroup) {
	g.PushBack(relay.BeforeAttempt, h)
	g.PushBack(relay.AfterAttempt, h)
}

// Handle implements the relay.Handler interface.
func (h *Handler) Handle(evt relay.Event, e *request.Execution) {
	switch evt {
	case relay.BeforeAttempt:
		h.startSpan(e)
	case relay.AfterAttempt:
		h.endSpan(e)
	}
}

func (h *Handler) startSpan(e *request.Execution) {
	r := e.Request
	ctx, span := h.tracer.Start(r.Context(), "HTTP "+r.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attrMethod.String(r.Method),
			attrURL.String(r.URL.String()),
			attrAttempt.Int(e.Attempt),
			attrRedirects.Int(e.Redirects),
		))
	h.propagator().Inject(ctx, propagation.HeaderCarrier(r.Header))
	e.SetValue(spanKey, span)
}

func (h *Handler) endSpan(e *request.Execution) {
	span, ok := e.Value(spanKey).(trace.Span)
	if !ok {
		return
	}
	switch {
	case e.Err != nil:
		span.RecordError(e.Err)
		span.SetStatus(codes.Error, e.Err.Error())
	case e.Response != nil:
		span.SetAttributes(attrStatus.Int(e.Response.StatusCode))
		if e.Response.StatusCode >= 400 {
			span.SetStatus(codes.Error, e.Response.Status)
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
	span.End()
}

func (h *Handler) propagator() propagation.TextMapPropagator {
	if h.Propagator == nil {
		return otel.GetTextMapPropagator()
	}
	return h.Propagator
}

// Span returns the span of the execution's current or most recent
// attempt, or nil if the handler has not started one.
func Span(e *request.Execution) trace.Span {
	span, _ := e.Value(spanKey).(trace.Span)
	return span
}
