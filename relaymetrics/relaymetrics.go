// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package relaymetrics exports Prometheus metrics for plan executions:
// counters for attempts, retries, redirect hops, and credential
// refreshes, and a histogram of attempt durations.
//
// Install the handler on a client's handler group:
//
//	cl := &relay.Client{Handlers: &relay.HandlerGroup{}}
//	relaymetrics.New(prometheus.DefaultRegisterer).Install(cl.Handlers)
//
// Attempts are labeled by request method and final status code, with
// the status "error" standing in for attempts which failed without a
// response.
package relaymetrics

import (
	"strconv"
	"time"

	"github.com/gogama/relay"
	"github.com/gogama/relay/request"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type key int

const (
	startKey key = iota
	attemptKey
)

// A Handler records Prometheus metrics for every plan execution of the
// clients it is installed on.
type Handler struct {
	attempts  *prometheus.CounterVec
	retries   prometheus.Counter
	redirects prometheus.Counter
	refreshes prometheus.Counter
	duration  *prometheus.HistogramVec
}

// New constructs a Handler registering its metrics with reg.
func New(reg prometheus.Registerer) *Handler {
	factory := promauto.With(reg)
	return &Handler{
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "attempts_total",
			Help:      "HTTP request attempts by method and status code.",
		}, []string{"method", "status"}),
		retries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "retries_total",
			Help:      "Request attempts which were retries of a failed attempt.",
		}),
		redirects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "redirects_total",
			Help:      "Redirect hops followed.",
		}),
		refreshes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "refreshes_total",
			Help:      "Credential refreshes triggered by a 401 response.",
		}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "relay",
			Name:      "attempt_duration_seconds",
			Help:      "HTTP request attempt duration by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// Install registers the handler on the events it consumes.
func (h *Handler) Install(g *relay.HandlerGroup) {
	g.PushBack(relay.BeforeAttempt, h)
	g.PushBack(relay.AfterAttempt, h)
	g.PushBack(relay.BeforeRedirect, h)
	g.PushBack(relay.BeforeRefresh, h)
}

// Handle implements the relay.Handler interface.
func (h *Handler) Handle(evt relay.Event, e *request.Execution) {
	switch evt {
	case relay.BeforeAttempt:
		e.SetValue(startKey, time.Now())
		if prev, ok := e.Value(attemptKey).(int); ok && e.Attempt > prev {
			h.retries.Inc()
		}
		e.SetValue(attemptKey, e.Attempt)
	case relay.AfterAttempt:
		h.attempts.WithLabelValues(e.Request.Method, statusLabel(e)).Inc()
		if start, ok := e.Value(startKey).(time.Time); ok {
			h.duration.WithLabelValues(e.Request.Method).Observe(time.Since(start).Seconds())
		}
	case relay.BeforeRedirect:
		h.redirects.Inc()
	case relay.BeforeRefresh:
		h.refreshes.Inc()
	}
}

func statusLabel(e *request.Execution) string {
	if e.Response == nil {
		return "error"
	}
	return strconv.Itoa(e.Response.StatusCode)
}
