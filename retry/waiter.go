// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"math/rand"
	"sync"
	"time"

	"github.com/gogama/gotx/request"
)

// A Waiter specifies how long to wait before retrying a failed
// attempt.
//
// Implementations of Waiter must be safe for concurrent use by multiple
// goroutines.
//
// Evaluate does not call the Waiter of a policy if the policy Decider
// returned false.
type Waiter interface {
	Wait(e *request.Execution) time.Duration
}

// DefaultWaiter is the default retry wait policy. It uses a jittered
// exponential backoff formula with a base wait of 1 second and a
// maximum wait of 30 seconds.
var DefaultWaiter = NewExpWaiter(time.Second, 30*time.Second, time.Now())

// NewFixedWaiter constructs a Waiter that always returns the given
// duration.
//
// Use NewFixedWaiter to obtain a constant retry backoff.
func NewFixedWaiter(d time.Duration) Waiter {
	return fixedWaiter(d)
}

type fixedWaiter time.Duration

func (w fixedWaiter) Wait(_ *request.Execution) time.Duration {
	return time.Duration(w)
}

// NewExpWaiter constructs a Waiter implementing an exponential backoff
// formula with optional jitter.
//
// Parameters base and max control the exponential calculation of the
// ceiling, where n is the number of retries already scheduled by the
// policy:
//
//	ceil := min(base * 2**n, max)
//
// Base and max must be positive values, and max must be at least equal
// to base.
//
// The jitter is "equal jitter": the wait is a random value between
// ceil/2 and ceil, so it is never zero. To make a waiter that does not
// jitter and simply returns ceil on each attempt, pass nil for jitter.
// Otherwise you may specify either a random number generator seed value
// (as a time.Time, int, or int64) or a random number generator (as a
// rand.Source).
func NewExpWaiter(base, max time.Duration, jitter interface{}) Waiter {
	if base < 1 {
		panic("gotx/retry: base must be positive")
	}
	if max < base {
		panic("gotx/retry: max must be at least base")
	}
	r := jitterToRand(jitter)
	return &jitterExpWaiter{
		base: base,
		max:  max,
		rand: r,
	}
}

type jitterExpWaiter struct {
	base time.Duration
	max  time.Duration
	rand *rand.Rand
	lock sync.Mutex
}

func (w *jitterExpWaiter) Wait(e *request.Execution) time.Duration {
	return w.wait(e.PolicyRetries())
}

func (w *jitterExpWaiter) wait(n int) time.Duration {
	exp := int64(1) << uint(n)
	if n >= 63 || exp < 1 {
		exp = 1<<63 - 1
	}

	ceil := int64(w.base) * exp
	if ceil/exp != int64(w.base) || ceil < int64(w.base) || int64(w.max) < ceil {
		ceil = int64(w.max)
	}

	duration := ceil
	if ceil > 1 && w.rand != nil {
		w.lock.Lock()
		defer w.lock.Unlock()
		half := ceil / 2
		duration = ceil - half + w.rand.Int63n(half+1)
	}

	return time.Duration(duration)
}

func jitterToRand(jitter interface{}) *rand.Rand {
	var s rand.Source
	switch j := jitter.(type) {
	case nil:
		return nil
	case time.Time:
		s = rand.NewSource(j.UnixNano())
	case int:
		s = rand.NewSource(int64(j))
	case int64:
		s = rand.NewSource(j)
	case *rand.Rand:
		if j == nil {
			panic("gotx/retry: jitter may not be a typed nil")
		}
		return j
	case rand.Source:
		s = j
	default:
		panic("gotx/retry: invalid jitter type")
	}
	return rand.New(s)
}
