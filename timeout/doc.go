// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package timeout enforces per-phase timeout budgets on a request
// attempt.
//
// An attempt moves through the sequential phases Lookup, Connect,
// SecureConnect, Send and Response. Entering a sequential phase stops
// the timer of the phase before it. Two timers run alongside: Request
// bounds the whole attempt, and Socket bounds inactivity on the
// connection, restarting every time data moves.
//
// A Tracker reports the first phase to run out of time on its Expired
// channel.
package timeout
