// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package gotx provides an extensible HTTP client engine with layered
options, hooks, retries, redirects, per-phase timeouts, streaming and
pagination within a simple and familiar interface.

Use the package-level functions to make requests with the Default
instance.

	resp, err := gotx.Get(ctx, "https://www.example.com")
	...
	resp, err := gotx.Post(ctx, "https://www.example.com/upload",
		&request.Options{JSON: payload})
	...
	resp, err := gotx.PostForm(ctx, "http://example.com/form",
		url.Values{"key": {"Value"}, "id": {"123"}})

Create an Instance to share defaults between requests. Options are
merged layer by layer: the built-in defaults, the instance defaults,
then the options of the call.

	api := gotx.New(gotx.Config{
		Name: "api",
		Defaults: &request.Options{
			PrefixURL: "https://api.example.com/v1",
			Timeout:   request.Timeouts{Request: 10 * time.Second},
			Retry:     request.Retry{Limit: request.Int(5)},
		},
	})
	resp, err := api.Get(ctx, "users/42")

Extend combines instances. Their defaults merge in order and their
hooks and middleware are concatenated.

	authed := api.Extend(gotx.New(gotx.Config{
		Name:     "auth",
		Defaults: &request.Options{Hooks: authHooks},
	}))

To hook into the fine-grained details of the request lifecycle, install
a handler into the appropriate hook slot:

	var hooks request.Hooks
	hooks.PushBack(request.BeforeRetry, request.HandlerFunc(
		func(_ request.Event, e *request.Execution) error {
			log.Printf("Retry %d of %s: %v", e.RetryCount, e.Options.URL, e.Err)
			return nil
		}))

An AfterResponse handler may ask for a fresh attempt with new options
by calling Execution.Retry, for example to refresh an access token.

Every request can be consumed in one of three ways: Do returns the
final buffered response, Go returns a Future, and Stream returns an
io.ReadCloser over the response body. Paginate and All iterate over
the items of a paginated resource.

Errors are returned as *request.RequestError or one of the types
embedding it (HTTPError, TimeoutError, CancelError, ...), so they can
be matched with errors.As.

Package gotx provides basic interfaces for each method of an instance
(Doer, Getter, Header, Poster, FormPoster, and IdleCloser); a combined
interface that composes all the basic methods (Executor); and Inflate,
which converts any Doer into an Executor.
*/
package gotx
