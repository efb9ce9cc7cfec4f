// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"
)

// A Response is the response of one attempt, as delivered to hooks
// and, for the final attempt, to the caller.
//
// Hook handlers may build a synthetic Response and install it in the
// execution (see Init and BeforeRequest); the lifecycle fills in the
// URL and metadata fields they leave empty.
type Response struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// StatusMessage is the reason phrase sent by the server. Use
	// Message for a value that falls back on the standard phrase.
	StatusMessage string
	// Proto is the protocol version, e.g. "HTTP/1.1".
	Proto string
	// Header holds the response header fields.
	Header http.Header
	// Body is the buffered response body. It is nil for streamed
	// requests.
	Body []byte
	// Decoded holds the parsed body when the response type is JSON.
	Decoded interface{}
	// URL is the URL of the attempt that produced the response.
	URL *url.URL
	// RequestURL is the URL of the first attempt of the request.
	RequestURL *url.URL
	// RedirectURLs lists the redirect targets followed so far.
	RedirectURLs []*url.URL
	// RetryCount is the number of retries made before the attempt.
	RetryCount int
	// Timings is the timing breakdown of the attempt.
	Timings Timings
	// IsFromCache reports whether the response was served from the
	// response cache.
	IsFromCache bool
	// IP is the remote address the response came from, if known.
	IP string

	options *Options
}

// Options returns the options snapshot of the attempt which produced
// the response.
func (r *Response) Options() *Options {
	return r.options
}

// SetOptions sets the options snapshot returned by Options.
func (r *Response) SetOptions(o *Options) {
	r.options = o
}

// Message returns the reason phrase, falling back on the standard
// phrase for the status code.
func (r *Response) Message() string {
	if r.StatusMessage != "" {
		return r.StatusMessage
	}
	return statusText(r.StatusCode)
}

// OK reports whether the status code is in the accepted range: 2xx,
// 304, or any 3xx when redirects are not followed.
func (r *Response) OK(followRedirect bool) bool {
	limit := 299
	if !followRedirect {
		limit = 399
	}
	return (r.StatusCode >= 200 && r.StatusCode <= limit) || r.StatusCode == http.StatusNotModified
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// JSON decodes the body into v. A malformed body produces a
// ParseError.
func (r *Response) JSON(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return NewParseError(err, r)
	}
	return nil
}

// Timings records when the milestones of an attempt occurred.
// Milestones that did not occur (for example Lookup on a reused
// connection) are zero.
type Timings struct {
	// Start is when the attempt was dispatched.
	Start time.Time
	// Lookup is when DNS resolution finished.
	Lookup time.Time
	// Connect is when the TCP connection was established.
	Connect time.Time
	// SecureConnect is when the TLS handshake finished.
	SecureConnect time.Time
	// Socket is when the attempt obtained its connection.
	Socket time.Time
	// Upload is when the request was fully written.
	Upload time.Time
	// Response is when the response headers arrived.
	Response time.Time
	// End is when the attempt ended.
	End    time.Time
	Phases Phases
}

// Phases holds the durations between milestones.
type Phases struct {
	Wait      time.Duration
	DNS       time.Duration
	TCP       time.Duration
	TLS       time.Duration
	Request   time.Duration
	FirstByte time.Duration
	Download  time.Duration
	Total     time.Duration
}

// Compute fills in Phases from the milestones.
func (t *Timings) Compute() {
	t.Phases.Wait = since(t.Start, t.Socket)
	t.Phases.DNS = since(t.Start, t.Lookup)
	t.Phases.TCP = since(first(t.Lookup, t.Start), t.Connect)
	t.Phases.TLS = since(t.Connect, t.SecureConnect)
	t.Phases.Request = since(t.Socket, t.Upload)
	t.Phases.FirstByte = since(t.Upload, t.Response)
	t.Phases.Download = since(t.Response, t.End)
	t.Phases.Total = since(t.Start, t.End)
}

func since(a, b time.Time) time.Duration {
	if a.IsZero() || b.IsZero() {
		return 0
	}
	return b.Sub(a)
}

func first(ts ...time.Time) time.Time {
	for _, t := range ts {
		if !t.IsZero() {
			return t
		}
	}
	return time.Time{}
}
