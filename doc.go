// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package relay provides a robust HTTP client which retries failed
attempts, follows redirects, refreshes rejected credentials, and
buffers response bodies, behind a simple and familiar interface.

Create a Client to begin making requests.

	client := &relay.Client{}
	ex, err := client.Get("https://www.example.com")
	...
	ex, err := client.Post("https://www.example.com/upload",
		"application/json", &payload)
	...
	ex, err := client.PostForm("http://example.com/form",
		url.Values{"key": {"Value"}, "id": {"123"}})

For full control over the logical request, build a request.Plan and
execute it with Do, or asynchronously with Send:

	p, err := request.NewPlan("PUT", "https://www.example.com/widget/1",
		&widget)
	...
	ex, err := client.Do(p)
	...
	call := client.Send(p, func(ex *request.Execution) {
		log.Printf("settled: %v", ex.StatusCode())
	})
	...
	call.Cancel()

For control over how the client sends HTTP requests and receives HTTP
responses, use a custom HTTPDoer, for example a GoLang standard HTTP
client. Because the relay client owns the redirect flow, the doer must
not follow redirects itself:

	doer := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	client := &relay.Client{
		HTTPDoer: doer,
	}

For control over the client's retry decisions and timing, create a
custom retry policy using components from package retry:

	retryWaiter := retry.NewSlotWaiter(100*time.Millisecond, 5*time.Second, 20*time.Millisecond, time.Now())
	retryPolicy := retry.NewPolicy(retry.DefaultDecider, retry.RespectRetryAfter(retryWaiter, time.Minute))
	client := &relay.Client{
		RetryPolicy: retryPolicy,
	}

Timeout, redirect, and credential behavior are controlled the same
way, using packages timeout, redirect, and auth:

	client := &relay.Client{
		TimeoutPolicy:  timeout.Fixed(10 * time.Second),
		RedirectPolicy: redirect.Limit(3),
		Auth:           auth.ClientCredentials(cfg),
	}

To hook into the fine-grained details of the client's request execution
logic, install a handler into the appropriate handler chain:

	log := log.New(os.Stdout, "", log.LstdFlags)
	handlers := &relay.HandlerGroup{}
	handlers.PushBack(relay.BeforeAttempt, relay.HandlerFunc(
		func(_ relay.Event, e *request.Execution) {
			log.Printf("Attempt %d to %s", e.Attempt, e.Request.URL.String())
		})
	)
	client := &relay.Client{
		Handlers: handlers,
	}

Package relay provides basic interfaces for each method of the robust
client (Doer, Getter, Header, Poster, FormPoster, and IdleCloser); a
combined interface that composes all the basic methods (Executor); and
utility functions for working with a Doer (Inflate, Get, Head, Post,
and PostForm).
*/
package relay
