// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"errors"
	"strings"
	"time"

	"github.com/gogama/gotx/request"
	"github.com/gogama/gotx/transient"
)

// A Decider decides if a retry should be done.
//
// Implementations of Decider must be safe for concurrent use by
// multiple goroutines.
//
// Use the built-in constructors Times, StatusCode, ErrorCode, Method
// and Before, and the built-in decider TransientErr; or implement your
// Decider. Use DeciderFunc to convert an ordinary function into a
// Decider, and to compose deciders logically using DeciderFunc.And and
// DeciderFunc.Or.
type Decider interface {
	Decide(e *request.Execution) bool
}

// The DeciderFunc type is an adapter to allow the use of ordinary
// functions as retry deciders. It implements the Decider interface, and
// also provides the logical composition methods And and Or.
//
// Every DeciderFunc must be safe for concurrent use by multiple
// goroutines.
type DeciderFunc func(e *request.Execution) bool

// TransientErr is a decider that indicates a retry if the current
// error is transient according to transient.Categorize.
//
// TransientErr only looks at the error, so it will always return false
// if there is no error. Compose it with other deciders to get more
// complex functionality.
var TransientErr DeciderFunc = transientErr

// Decide returns true if a retry should be done, and false otherwise,
// after examining the current request execution state.
func (f DeciderFunc) Decide(e *request.Execution) bool {
	return f(e)
}

// And composes two retry deciders into a new decider which returns true
// if both sub-deciders return true, and false otherwise.
//
// Short-circuit logic is used, so g will not be evaluated if f returns
// false.
func (f DeciderFunc) And(g DeciderFunc) DeciderFunc {
	return func(e *request.Execution) bool {
		return f(e) && g(e)
	}
}

// Or composes two retry deciders into a new decider which returns
// true if either of the two sub-deciders returns true, but false if
// they both return false.
//
// Short-circuit logic is used, so g will not be evaluated if f returns
// true.
func (f DeciderFunc) Or(g DeciderFunc) DeciderFunc {
	return func(e *request.Execution) bool {
		return f(e) || g(e)
	}
}

// Times constructs a retry decider which allows up to n retries
// scheduled by the retry policy. Retries requested by AfterResponse
// handlers are not counted.
func Times(n int) DeciderFunc {
	return func(e *request.Execution) bool {
		return e.PolicyRetries() < n
	}
}

// Before constructs a retry decider allowing retries until a certain
// amount of time has elapsed since the start of the request. The
// returned decider returns true while the execution duration is less
// than d, and false afterward.
func Before(d time.Duration) DeciderFunc {
	return func(e *request.Execution) bool {
		return e.Duration() < d
	}
}

// StatusCode constructs a retry decider allowing retries based on the
// HTTP response status code. If the most recent attempt received a
// response, and the response status code is contained in the list ss,
// the decider returns true. Otherwise, it returns false.
func StatusCode(ss ...int) DeciderFunc {
	ss2 := make([]int, len(ss))
	copy(ss2, ss)
	return func(e *request.Execution) bool {
		for _, s := range ss2 {
			if e.StatusCode() == s {
				return true
			}
		}
		return false
	}
}

// ErrorCode constructs a retry decider allowing retries when the code
// of the current error, as reported by Code, is in the list cs.
func ErrorCode(cs ...string) DeciderFunc {
	cs2 := make([]string, len(cs))
	copy(cs2, cs)
	return func(e *request.Execution) bool {
		code := Code(e.Err)
		if code == "" {
			return false
		}
		for _, c := range cs2 {
			if c == code {
				return true
			}
		}
		return false
	}
}

// Method constructs a retry decider allowing retries of requests whose
// method is in the list ms. Methods are compared case-insensitively.
func Method(ms ...string) DeciderFunc {
	ms2 := make([]string, len(ms))
	copy(ms2, ms)
	return func(e *request.Execution) bool {
		if e.Options == nil {
			return false
		}
		for _, m := range ms2 {
			if strings.EqualFold(m, e.Options.Method) {
				return true
			}
		}
		return false
	}
}

// Code returns the error code of err. For a request error it is the
// error's Code field; for any other error it is transient.Code(err).
func Code(err error) string {
	var re *request.RequestError
	if errors.As(err, &re) {
		if re.Code != "" {
			return re.Code
		}
		return transient.Code(re.Err)
	}
	return transient.Code(err)
}

func transientErr(e *request.Execution) bool {
	return transient.Categorize(e.Err) != transient.Not
}
