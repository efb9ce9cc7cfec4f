// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package redirect decides whether and how a redirect response is
followed.

Resolve turns a redirect response into the options of the next attempt:
the Location header is resolved against the URL of the redirected
attempt, 303 responses and (with MethodRewriting) 301 and 302 responses
to POST requests are followed with a body-less GET, and 307 and 308
responses keep the method and body. Credentials are not forwarded to
another host.

The request lifecycle appends the resolved URL to the redirect chain
and runs the BeforeRedirect hooks before the next attempt.
*/
package redirect
