// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package request contains the core types Options (describes a logical
HTTP request) and Execution (describes the state of a request in
flight), together with the hook slots and the error taxonomy shared by
every other gotx package.

The first core type is Options. Options values are layered: the
built-in Defaults, the defaults of one or more Instances, and the
options given at the call site are folded together by Merge, and the
result is validated and canonicalized by Normalize:

	o, err := request.Normalize(request.Merge(request.Defaults(), &request.Options{
		Method:    "POST",
		PrefixURL: "https://api.example.com/v1",
		URL:       "users",
		JSON:      user,
	}))

Canonical options always carry an absolute URL and an upper-case
method. Every attempt of a request works on its own clone of them, so a
hook handler which edits the options of one attempt never changes the
record of another.

The second core type is Execution, which represents the state of one
request: its attempts, redirect chain, retry count, and current
response or error. Execution is the output of the request lifecycle and
the input of every hook handler. You will typically not allocate
Execution instances yourself, but will instead work with the ones
handed out by the lifecycle.

Every error produced by a request is a *RequestError, or one of the
more specific types embedding it, which can be told apart with
errors.As:

	var he *request.HTTPError
	if errors.As(err, &he) {
		log.Println(he.Response().StatusCode)
	}
*/
package request
