// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gogama/gotx/transient"
)

// Error codes carried by RequestError.Code, in addition to the
// transient error codes of package transient.
const (
	CodeHTTPError           = "ERR_NON_2XX_3XX_RESPONSE"
	CodeTimeout             = transient.ETIMEDOUT
	CodeParse               = "ERR_BODY_PARSE_FAILURE"
	CodeCanceled            = "ERR_CANCELED"
	CodeMaxRedirects        = "ERR_TOO_MANY_REDIRECTS"
	CodeUnsupportedProtocol = "ERR_UNSUPPORTED_PROTOCOL"
	CodeUpload              = "ERR_UPLOAD"
	CodeRead                = "ERR_READING_RESPONSE_STREAM"
	CodeRetry               = "ERR_RETRYING"
	CodeInvalidArgument     = "ERR_INVALID_ARGUMENT"
)

// ErrInvalidArgument is matched, via errors.Is, by every error caused
// by invalid options.
var ErrInvalidArgument = errors.New("gotx/request: invalid argument")

// ErrBodyNotReplayable is the cause of the error returned when a
// request whose body can only be read once would need to send it
// again.
var ErrBodyNotReplayable = errors.New("the request body cannot be sent again")

type argumentError struct {
	msg string
}

func (e *argumentError) Error() string {
	return e.msg
}

func (e *argumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

func invalid(format string, args ...interface{}) error {
	return &argumentError{msg: fmt.Sprintf(format, args...)}
}

// A RequestError is the base of the error taxonomy. Every error
// produced by a request lifecycle is a *RequestError, or one of the
// more specific types embedding it (HTTPError, TimeoutError, ...),
// all of which unwrap to their *RequestError.
//
// The options snapshot and the response at the time of failure are
// available from the Options and Response methods. They are not
// exported fields, so encoding an error leaves them out.
type RequestError struct {
	// Code is a short machine-readable error code.
	Code string
	// Message is the error message.
	Message string
	// Err is the underlying cause, if any.
	Err error
	// Timings holds the timing of the failed attempt, if any.
	Timings *Timings

	options  *Options
	response *Response
}

// NewRequestError constructs a RequestError wrapping cause. If code
// is empty, it is derived from cause by transient.Code.
func NewRequestError(code, msg string, cause error, o *Options, r *Response) *RequestError {
	if code == "" {
		code = transient.Code(cause)
	}
	re := &RequestError{
		Code:     code,
		Message:  msg,
		Err:      cause,
		options:  o,
		response: r,
	}
	if r != nil {
		t := r.Timings
		re.Timings = &t
	}
	return re
}

func (e *RequestError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// Options returns the options snapshot of the attempt that failed.
func (e *RequestError) Options() *Options {
	return e.options
}

// Response returns the response received before the failure, or nil.
func (e *RequestError) Response() *Response {
	return e.response
}

// attach fills in the options and response if they are missing.
func (e *RequestError) attach(o *Options, r *Response) {
	if e.options == nil {
		e.options = o
	}
	if e.response == nil {
		e.response = r
	}
}

// AsRequestError converts err into a request error carrying o and r.
// Errors already in the taxonomy are returned as they are, with the
// options and response attached if missing.
func AsRequestError(err error, o *Options, r *Response) error {
	if err == nil {
		return nil
	}
	var re *RequestError
	if errors.As(err, &re) {
		re.attach(o, r)
		return err
	}
	return NewRequestError("", err.Error(), err, o, r)
}

// An HTTPError reports a response whose status code is outside the
// accepted range, when ThrowHTTPErrors is enabled.
type HTTPError struct {
	*RequestError
}

// NewHTTPError constructs an HTTPError for r.
func NewHTTPError(r *Response, o *Options) *HTTPError {
	msg := fmt.Sprintf("Response code %d (%s)", r.StatusCode, r.Message())
	return &HTTPError{NewRequestError(CodeHTTPError, msg, nil, o, r)}
}

// Unwrap returns the embedded RequestError.
func (e *HTTPError) Unwrap() error { return e.RequestError }

// A TimeoutError reports that a phase deadline elapsed.
type TimeoutError struct {
	*RequestError
	// Phase names the phase that timed out.
	Phase string
	// Bound is the configured budget of the phase.
	Bound time.Duration
}

// NewTimeoutError constructs a TimeoutError for phase.
func NewTimeoutError(phase string, bound time.Duration, o *Options, r *Response) *TimeoutError {
	msg := fmt.Sprintf("Timeout awaiting '%s' for %dms", phase, bound.Milliseconds())
	return &TimeoutError{
		RequestError: NewRequestError(CodeTimeout, msg, nil, o, r),
		Phase:        phase,
		Bound:        bound,
	}
}

// Timeout returns true.
func (e *TimeoutError) Timeout() bool { return true }

// Unwrap returns the embedded RequestError.
func (e *TimeoutError) Unwrap() error { return e.RequestError }

// A ParseError reports a response body that could not be decoded.
type ParseError struct {
	*RequestError
}

// NewParseError constructs a ParseError for a decoding failure of r.
func NewParseError(cause error, r *Response) *ParseError {
	u := ""
	if r.URL != nil {
		u = r.URL.String()
	}
	msg := fmt.Sprintf("%s in %q", cause.Error(), u)
	return &ParseError{NewRequestError(CodeParse, msg, cause, r.options, r)}
}

// Unwrap returns the embedded RequestError.
func (e *ParseError) Unwrap() error { return e.RequestError }

// A CancelError reports that the request was cancelled.
type CancelError struct {
	*RequestError
}

// NewCancelError constructs a CancelError. The cause is typically the
// context error.
func NewCancelError(cause error, o *Options) *CancelError {
	return &CancelError{NewRequestError(CodeCanceled, "Request was canceled", cause, o, nil)}
}

// Unwrap returns the embedded RequestError.
func (e *CancelError) Unwrap() error { return e.RequestError }

// A MaxRedirectsError reports that the redirect chain reached its
// bound.
type MaxRedirectsError struct {
	*RequestError
}

// NewMaxRedirectsError constructs a MaxRedirectsError.
func NewMaxRedirectsError(max int, o *Options, r *Response) *MaxRedirectsError {
	msg := fmt.Sprintf("Redirected %d times. Aborting.", max)
	return &MaxRedirectsError{NewRequestError(CodeMaxRedirects, msg, nil, o, r)}
}

// Unwrap returns the embedded RequestError.
func (e *MaxRedirectsError) Unwrap() error { return e.RequestError }

// An UnsupportedProtocolError reports a URL scheme that cannot be
// requested.
type UnsupportedProtocolError struct {
	*RequestError
}

// NewUnsupportedProtocolError constructs an UnsupportedProtocolError
// for scheme.
func NewUnsupportedProtocolError(scheme string, o *Options) *UnsupportedProtocolError {
	msg := fmt.Sprintf("Unsupported protocol %q", scheme+":")
	return &UnsupportedProtocolError{NewRequestError(CodeUnsupportedProtocol, msg, nil, o, nil)}
}

// Unwrap returns the embedded RequestError.
func (e *UnsupportedProtocolError) Unwrap() error { return e.RequestError }

// An UploadError reports a failure to send the request body.
type UploadError struct {
	*RequestError
}

// NewUploadError constructs an UploadError.
func NewUploadError(cause error, o *Options) *UploadError {
	return &UploadError{NewRequestError(CodeUpload, cause.Error(), cause, o, nil)}
}

// Unwrap returns the embedded RequestError.
func (e *UploadError) Unwrap() error { return e.RequestError }

// A ReadError reports a failure to read the response body.
type ReadError struct {
	*RequestError
}

// NewReadError constructs a ReadError.
func NewReadError(cause error, o *Options, r *Response) *ReadError {
	return &ReadError{NewRequestError(CodeRead, cause.Error(), cause, o, r)}
}

// Unwrap returns the embedded RequestError.
func (e *ReadError) Unwrap() error { return e.RequestError }

// A RetryError reports that computing the retry delay failed.
type RetryError struct {
	*RequestError
}

// NewRetryError constructs a RetryError.
func NewRetryError(cause error, o *Options, r *Response) *RetryError {
	return &RetryError{NewRequestError(CodeRetry, cause.Error(), cause, o, r)}
}

// Unwrap returns the embedded RequestError.
func (e *RetryError) Unwrap() error { return e.RequestError }

// statusText returns the standard reason phrase, or "Unknown".
func statusText(code int) string {
	if s := http.StatusText(code); s != "" {
		return s
	}
	return "Unknown"
}
