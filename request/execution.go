// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"
)

// An Execution represents the state of one logical request: every
// attempt made on its behalf, the redirect chain, and the current
// outcome.
//
// An Execution is created by the request lifecycle and handed to every
// hook handler. Handlers may modify Options, Response and Err as
// documented on each Event, and may store their own data with SetValue
// and read it back with Value. The remaining fields are maintained by
// the lifecycle and should be treated as read-only.
//
// An Execution belongs to exactly one request and is never shared
// with another.
type Execution struct {
	// ID uniquely identifies the request.
	ID string

	// Options are the options of the current attempt. Each attempt
	// works on its own snapshot, so changes made by handlers never
	// leak into completed attempts.
	Options *Options

	// Start is the start time of the request. It is assigned when the
	// request starts and remains constant thereafter.
	Start time.Time

	// End is the end time of the request. It contains the zero value
	// until the request ends.
	End time.Time

	// Attempt is the zero-based index of the current attempt. Retries
	// and redirects both start a new attempt.
	Attempt int

	// RetryCount is the number of retries made so far, whether
	// scheduled by the retry policy or requested by an AfterResponse
	// handler.
	RetryCount int

	// RedirectURLs lists the redirect targets followed so far, in
	// order.
	RedirectURLs []*url.URL

	// Attempts holds a record of every completed attempt.
	Attempts []Attempt

	// Response is the response of the most recent attempt, or a
	// synthetic response installed by a handler.
	Response *Response

	// Err is the error which ended the most recent attempt, or the
	// error the request is about to fail with.
	Err error

	ctx             context.Context
	data            context.Context
	directive       *Options
	directiveIndex  int
	hookIndex       int
	directedRetries int
	bodySent        bool
}

// NewExecution returns an Execution for a request with the given ID,
// context and options.
func NewExecution(ctx context.Context, id string, o *Options) *Execution {
	if ctx == nil {
		panic("gotx/request: nil context")
	}
	return &Execution{
		ID:      id,
		Options: o,
		ctx:     ctx,
	}
}

// Context returns the context of the request. It is done when the
// request is cancelled.
//
// The returned context is always non-nil; it defaults to the
// background context.
func (e *Execution) Context() context.Context {
	if e.ctx != nil {
		return e.ctx
	}
	return context.Background()
}

// StatusCode returns the status code of the current response, or 0 if
// there is no response.
func (e *Execution) StatusCode() int {
	if e.Response == nil {
		return 0
	}

	return e.Response.StatusCode
}

// Header returns the headers of the current response, or a nil header
// if there is no response.
func (e *Execution) Header() http.Header {
	if e.Response == nil {
		var nilHeader http.Header
		return nilHeader
	}

	return e.Response.Header
}

// Duration returns the duration of the request.
//
// If the request has not yet started, the duration is zero. If the
// request has ended, the duration returned is equal to End minus
// Start. Otherwise, it is equal to the current time minus Start.
func (e *Execution) Duration() time.Duration {
	if !e.Started() {
		return time.Duration(0)
	} else if !e.Ended() {
		return time.Since(e.Start)
	}

	return e.End.Sub(e.Start)
}

// Started indicates whether the request has started.
func (e *Execution) Started() bool {
	return e.Start != (time.Time{})
}

// Ended indicates whether the request has ended.
func (e *Execution) Ended() bool {
	return e.End != (time.Time{})
}

// Timeout indicates whether Err currently holds a TimeoutError.
func (e *Execution) Timeout() bool {
	var te *TimeoutError
	return errors.As(e.Err, &te)
}

// Retry requests an immediate new attempt with overrides merged onto
// the current options. It may only be called by an AfterResponse
// handler, and stops the remaining AfterResponse handlers.
//
// The new attempt is not delayed, is not counted against the retry
// limit, and runs only the AfterResponse handlers which preceded the
// calling handler.
func (e *Execution) Retry(overrides *Options) {
	if overrides == nil {
		overrides = &Options{}
	}
	e.directive = overrides
	e.directiveIndex = e.hookIndex
}

// Directive returns the pending retry directive, if any, and the index
// of the AfterResponse handler which issued it.
func (e *Execution) Directive() (*Options, int, bool) {
	return e.directive, e.directiveIndex, e.directive != nil
}

// ClearDirective removes the pending retry directive and counts it as
// a directed retry.
func (e *Execution) ClearDirective() {
	if e.directive != nil {
		e.directive = nil
		e.directedRetries++
	}
}

// PolicyRetries returns the number of retries scheduled by the retry
// policy, excluding retries requested by AfterResponse handlers.
func (e *Execution) PolicyRetries() int {
	return e.RetryCount - e.directedRetries
}

// MarkBodySent records that the request body has been sent once.
func (e *Execution) MarkBodySent() {
	e.bodySent = true
}

// CanResendBody reports whether the request body can be sent by
// another attempt.
func (e *Execution) CanResendBody() bool {
	return !e.bodySent || e.Options == nil || e.Options.Replayable()
}

// Record appends a to the completed attempts.
func (e *Execution) Record(a Attempt) {
	e.Attempts = append(e.Attempts, a)
}

// SetValue allows hook handlers to store arbitrary data in the
// execution.
//
// The key must follow the same rules as the key parameter in
// context.WithValue, namely it:
//
// • it may not be nil;
//
// • it must be comparable;
//
// • it should not be of type string or any other built-in type to avoid
// collisions between different handlers putting data into the same
// execution.
func (e *Execution) SetValue(key, value interface{}) {
	ctx := e.data
	if ctx == nil {
		ctx = context.Background()
	}

	e.data = context.WithValue(ctx, key, value)
}

// Value returns the data value associated with this execution for key,
// or nil if there is no value associated with key.
func (e *Execution) Value(key interface{}) interface{} {
	ctx := e.data
	if ctx == nil {
		return nil
	}

	return ctx.Value(key)
}

func (e *Execution) wrap(err error) error {
	return AsRequestError(err, e.Options, e.Response)
}

// An Attempt is the record of one completed attempt. It is never
// modified once recorded.
type Attempt struct {
	// Index is the zero-based index of the attempt.
	Index int
	// Options is the options snapshot the attempt was made with.
	Options *Options
	// URL is the target of the attempt.
	URL *url.URL
	// Redirects is the length of the redirect chain when the attempt
	// was dispatched.
	Redirects int
	// Start and End delimit the attempt.
	Start, End time.Time
	// StatusCode is the response status, or 0 if no response.
	StatusCode int
	// Err is the error which ended the attempt, if any.
	Err error
	// Synthetic reports whether the response came from a handler or
	// the cache instead of the transport.
	Synthetic bool
}
