// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gogama/gotx/request"
)

// A Policy controls if and how retries are done. After every failed
// attempt, a Policy decides whether a retry should be done and, if so,
// how long the wait period should be before retrying.
//
// Implementations of Policy must be safe for concurrent use by multiple
// goroutines.
//
// A Policy is composed of the Decider and Waiter interfaces. Most
// requests use the policy built from their options by FromOptions, but
// a policy can also be assembled with NewPolicy from existing Decider
// and Waiter implementations, and installed with the Retry.Policy
// option.
type Policy interface {
	Decider
	Waiter
}

// DefaultPolicy is the policy built from the default retry options:
// two retries of the default methods, status codes and error codes.
var DefaultPolicy = FromOptions(request.Defaults().Retry)

// Never is a policy that never retries.
var Never Policy = policy{Times(0), DefaultWaiter}

type policy struct {
	decider Decider
	waiter  Waiter
}

// NewPolicy composes a Decider and a Waiter into a retry Policy.
func NewPolicy(d Decider, w Waiter) Policy {
	if d == nil {
		panic("gotx/retry: nil decider")
	}
	if w == nil {
		panic("gotx/retry: nil waiter")
	}
	return policy{decider: d, waiter: w}
}

func (p policy) Decide(e *request.Execution) bool {
	return p.decider.Decide(e)
}

func (p policy) Wait(e *request.Execution) time.Duration {
	return p.waiter.Wait(e)
}

// FromOptions builds the policy described by retry options r. It
// retries when the error code is one of r.ErrorCodes, or when the
// status code is one of r.StatusCodes and the method is one of
// r.Methods, as long as fewer than r.Limit retries have been
// scheduled. Waits grow exponentially from one second, capped at
// r.BackoffLimit.
func FromOptions(r request.Retry) Policy {
	limit := 0
	if r.Limit != nil {
		limit = *r.Limit
	}
	max := r.BackoffLimit
	if max < time.Second {
		max = time.Second
	}
	base := time.Second
	d := Times(limit).And(
		ErrorCode(r.ErrorCodes...).Or(
			StatusCode(r.StatusCodes...).And(Method(r.Methods...))))
	return policy{
		decider: d,
		waiter:  NewExpWaiter(base, max, time.Now()),
	}
}

// For returns the policy of retry options r: r.Policy if it is set,
// and otherwise the policy built by FromOptions.
func For(r request.Retry) Policy {
	if r.Policy != nil {
		return r.Policy
	}
	return FromOptions(r)
}

// A Decision is the outcome of Evaluate.
type Decision struct {
	// Retry reports whether to retry.
	Retry bool
	// Delay is the wait before the retry.
	Delay time.Duration
}

// retryAfterCodes are the status codes whose Retry-After header is
// honored.
var retryAfterCodes = map[int]bool{
	http.StatusRequestEntityTooLarge: true,
	http.StatusTooManyRequests:       true,
	http.StatusServiceUnavailable:    true,
}

// Evaluate decides whether the failed attempt of e is retried, and
// after how long.
//
// No retry is done when the request is cancelled, or when its body
// cannot be sent again. Otherwise p decides, and its waiter computes
// the delay, unless the response carries a Retry-After header on a
// 413, 429 or 503 response: the server's delay is then used, and a
// delay longer than the MaxRetryAfter option cancels the retry.
//
// If the CalculateDelay option is set, it receives the computed delay
// and has the final word: a non-positive result means no retry, and an
// error fails the request with a RetryError.
func Evaluate(p Policy, e *request.Execution) (Decision, error) {
	if e.Context().Err() != nil || !e.CanResendBody() {
		return Decision{}, nil
	}

	var computed time.Duration
	if p.Decide(e) {
		computed = p.Wait(e)
		if ra, ok := retryAfter(e); ok {
			computed = ra
			if max := e.Options.Retry.MaxRetryAfter; max > 0 && ra > max {
				computed = 0
			}
		}
	}

	if e.Options != nil && e.Options.Retry.CalculateDelay != nil {
		d, err := e.Options.Retry.CalculateDelay(request.RetryState{
			AttemptCount:  e.PolicyRetries() + 1,
			Retry:         e.Options.Retry,
			Err:           e.Err,
			ComputedValue: computed,
		})
		if err != nil {
			return Decision{}, request.NewRetryError(err, e.Options, e.Response)
		}
		computed = d
	}

	return Decision{Retry: computed > 0, Delay: computed}, nil
}

func retryAfter(e *request.Execution) (time.Duration, bool) {
	if e.Response == nil || e.Options == nil || !retryAfterCodes[e.Response.StatusCode] {
		return 0, false
	}
	return ParseRetryAfter(e.Response.Header.Get("Retry-After"), time.Now())
}

// ParseRetryAfter parses the value of a Retry-After header, which is
// either a number of seconds or an HTTP date, relative to now. A date
// in the past yields a one millisecond delay.
func ParseRetryAfter(v string, now time.Time) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		if secs < 0 {
			return 0, false
		}
		if secs == 0 {
			return time.Millisecond, true
		}
		return time.Duration(secs) * time.Second, true
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return 0, false
	}
	d := t.Sub(now)
	if d <= 0 {
		d = time.Millisecond
	}
	return d, true
}
