// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package retry provides flexible policies for retrying failed
// attempts, and how long to wait before retrying.
//
// The interface Policy defines a retry Policy. The request lifecycle
// builds one from the retry options of each attempt with FromOptions,
// and asks Evaluate for a Decision after every failed attempt. A Policy
// instance can also be constructed using NewPolicy by providing a
// decision-maker, Decider, and a wait time calculator, Waiter. Both
// Decider and Waiter have constructors for common use cases:
//
//	decider := retry.Times(3).
//	               And(retry.Before(5 * time.Second)).
//	               And(retry.StatusCode(500).Or(retry.TransientErr))
//	waiter := retry.NewExpWaiter(100*time.Millisecond, 2*time.Second, time.Now())
//	policy := retry.NewPolicy(decider, waiter)
//
// Evaluate layers the request-level rules on top of any Policy: no
// retry after cancellation or once a one-shot body has been sent,
// Retry-After handling, and the CalculateDelay option.
package retry
