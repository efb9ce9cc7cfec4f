// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

// An Event identifies a hook slot when installing or running a
// Handler. Install handlers in the Hooks of an Options value to extend
// the request lifecycle with custom functionality.
type Event int

const (
	// Init identifies the slot run once per request, after the
	// options are normalized and before the first attempt.
	//
	// Init handlers may modify the execution's options in place,
	// including the target URL. An Init handler may also set the
	// execution's response to a synthetic response, in which case no
	// attempt is made and the request completes with that response.
	Init Event = iota
	// BeforeRequest identifies the slot run before each attempt is
	// dispatched.
	//
	// When BeforeRequest fires, the execution's options are the
	// snapshot for the attempt about to be made, and handlers may
	// modify them. A handler may set the execution's response to a
	// synthetic response, which replaces the outcome of the attempt
	// without involving the transport.
	BeforeRequest
	// BeforeRedirect identifies the slot run after a redirect has been
	// resolved and before the redirected attempt is dispatched.
	//
	// When BeforeRedirect fires, the execution's options are the
	// options of the redirected attempt and the execution's response
	// is the redirect response.
	BeforeRedirect
	// BeforeRetry identifies the slot run after a retry has been
	// scheduled, and after the retry delay, but before the retry
	// attempt is dispatched.
	//
	// When BeforeRetry fires, the execution's options are the
	// options of the retry attempt, the execution's error is the error
	// that caused the retry, and RetryCount is the number of the retry.
	BeforeRetry
	// AfterResponse identifies the slot run after a complete response
	// is received.
	//
	// AfterResponse handlers may modify or replace the execution's
	// response, or call Execution.Retry to request an immediate new
	// attempt. A retry request stops the remaining handlers in the
	// slot.
	//
	// AfterResponse does not fire on streamed requests.
	AfterResponse
	// BeforeError identifies the slot run once before a request fails.
	//
	// When BeforeError fires, the execution's error is the error the
	// request is about to fail with. Handlers may replace it with
	// another non-nil error, either by setting the execution's error
	// or by returning an error. A returned error stops the remaining
	// handlers in the slot.
	BeforeError
	// eventSentinel provides the total number of events typed as an
	// Event.
	eventSentinel

	// numEvents provides the total number of events types as an int.
	numEvents = int(eventSentinel)
)

var eventNames = []string{
	"Init",
	"BeforeRequest",
	"BeforeRedirect",
	"BeforeRetry",
	"AfterResponse",
	"BeforeError",
}

// Events returns a slice containing all hook slots, in the order in
// which they are first reached by a typical request.
func Events() []Event {
	return []Event{
		Init,
		BeforeRequest,
		BeforeRedirect,
		BeforeRetry,
		AfterResponse,
		BeforeError,
	}
}

// Name returns the name of the event.
func (evt Event) Name() string {
	return eventNames[int(evt)]
}

// String returns the name of the event.
func (evt Event) String() string {
	return evt.Name()
}
