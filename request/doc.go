// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package request contains the core types Plan (describes an HTTP request
plan) and Execution (describes a Plan execution). These two types are
fundamental to making reliable HTTP requests.

The first core type is Plan, which represents a logical HTTP request.

A Plan describes how to make a logical HTTP request, potentially
involving repeated HTTP request attempts if a failure needs to be
retried, a redirect needs to be followed, or a refreshed credential
needs to be replayed. For those familiar with the Go standard HTTP
library, net/http, a Plan looks like a stripped-down http.Request
structure with all server-side fields removed, and the body fields
replaced with a simple []byte, because a replayable plan requires a
pre-buffered request body. (The BodyReader field trades replayability
for a streamed body; see its documentation.) Plan fields are named and
typed consistently with http.Request wherever possible.

Create a plan to make a reliable HTTP request:

	p, err := request.NewPlan("GET", "https://example.com", nil)
	...
	e, err := client.Do(p)
	...

The plan body may be a logical value rather than raw bytes. NewPlan
infers the serialization mode from the body's shape, and SetBody
declares it explicitly:

	p, err := request.NewPlan("POST", "https://example.com/things", &thing{Name: "a"})
	... // body JSON-encoded, Content-Type: application/json
	err = p.SetBody(url.Values{"name": {"a"}}, request.Form)
	... // body form-encoded, Content-Type: application/x-www-form-urlencoded

A plan may be assigned a context to allow timeouts to be set on the
entire plan execution, and to allow the plan execution to be cancelled:

	p, err := request.NewPlanWithContext(ctx, "POST", "https://example.com/upload", body)
	...

If a deadline is set on the plan context, it is separate from the
deadlines set on individual request attempts within the plan execution,
which are dictated by the client's timeout.Policy. Either deadline
firing resolves the execution as a timeout.

The second core type is Execution, which represents the state of the
execution of an HTTP request plan. Execution is both the output type for
relay.Client's plan executing methods, and the input type for callbacks
invoked during plan execution: timeout policies, retry policies,
redirect policies, credential agents, and event handlers. You will
typically not allocate Execution instances yourself, but will instead
work with the ones handed out by the client's request plan execution
logic.

Between the two sits Working, the mutable request state an execution
sends on its next attempt. The executing client derives it from the
Plan once per execution and rewrites it as redirects are followed and
credentials are refreshed, leaving the Plan itself untouched.
*/
package request
