// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package timeout

import (
	"sync"
	"time"

	"github.com/gogama/gotx/request"
	"github.com/gogama/gotx/transport"
)

// A Phase is a timed phase of a request attempt.
type Phase int

const (
	// Lookup is DNS resolution.
	Lookup Phase = iota
	// Connect is establishing the TCP connection.
	Connect
	// SecureConnect is the TLS handshake.
	SecureConnect
	// Socket is inactivity on the connection.
	Socket
	// Send is writing the request.
	Send
	// Response is waiting for the response headers.
	Response
	// Request is the whole attempt.
	Request
	numPhases = iota
)

var phaseNames = [numPhases]string{
	"lookup", "connect", "secureConnect", "socket", "send", "response", "request",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= numPhases {
		return "unknown"
	}
	return phaseNames[p]
}

func (p Phase) sequential() bool {
	return p != Socket && p != Request
}

// An Expiry reports a phase which ran out of time.
type Expiry struct {
	Phase Phase
	Bound time.Duration
}

// Err converts x into a TimeoutError for a request with options o.
func (x Expiry) Err(o *request.Options, r *request.Response) *request.TimeoutError {
	return request.NewTimeoutError(x.Phase.String(), x.Bound, o, r)
}

// A Tracker enforces the timeout budgets of one attempt. Create one
// with Start. The zero value is not usable.
//
// A Tracker is safe for concurrent use: transport callbacks may enter
// and leave phases while the lifecycle waits on Expired.
type Tracker struct {
	mu      sync.Mutex
	budgets [numPhases]time.Duration
	timers  [numPhases]*time.Timer
	gen     [numPhases]uint64
	current Phase
	fired   bool
	stopped bool
	expired chan Expiry
}

// Start returns a Tracker for the given budgets, with the Request timer
// already running. A zero budget leaves its phase untimed.
func Start(b request.Timeouts) *Tracker {
	t := &Tracker{
		current: -1,
		expired: make(chan Expiry, 1),
	}
	t.budgets = [numPhases]time.Duration{
		Lookup:        b.Lookup,
		Connect:       b.Connect,
		SecureConnect: b.SecureConnect,
		Socket:        b.Socket,
		Send:          b.Send,
		Response:      b.Response,
		Request:       b.Request,
	}
	t.mu.Lock()
	t.arm(Request)
	t.mu.Unlock()
	return t
}

// Expired delivers the first expiry, if any. At most one value is ever
// delivered.
func (t *Tracker) Expired() <-chan Expiry {
	return t.expired
}

// Enter starts the timer of p. Entering a sequential phase stops the
// timer of the sequential phase entered before it.
func (t *Tracker) Enter(p Phase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	if p.sequential() {
		if t.current >= 0 && t.current != p {
			t.disarm(t.current)
		}
		t.current = p
	}
	t.arm(p)
}

// Leave stops the timer of p.
func (t *Tracker) Leave(p Phase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disarm(p)
	if t.current == p {
		t.current = -1
	}
}

// Touch restarts the Socket timer, if it is running.
func (t *Tracker) Touch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.stopped && t.timers[Socket] != nil {
		t.arm(Socket)
	}
}

// Stop stops every timer. No expiry is delivered after Stop returns.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	for p := range t.timers {
		t.disarm(Phase(p))
	}
}

// Observe moves the tracker along with a transport event.
func (t *Tracker) Observe(ev transport.Event) {
	switch ev.Kind {
	case transport.DNSStart:
		t.Enter(Lookup)
	case transport.DNSDone:
		t.Leave(Lookup)
	case transport.ConnectStart:
		t.Enter(Connect)
	case transport.ConnectDone:
		t.Leave(Connect)
	case transport.TLSStart:
		t.Enter(SecureConnect)
	case transport.TLSDone:
		t.Leave(SecureConnect)
	case transport.Socket:
		t.Enter(Send)
		t.Enter(Socket)
	case transport.Wrote:
		t.Enter(Response)
		t.Touch()
	case transport.Headers:
		t.Leave(Response)
		t.Touch()
	case transport.Chunk:
		t.Touch()
	case transport.End, transport.Error:
		t.Stop()
	}
}

func (t *Tracker) arm(p Phase) {
	t.disarm(p)
	d := t.budgets[p]
	if d <= 0 {
		return
	}
	g := t.gen[p]
	t.timers[p] = time.AfterFunc(d, func() {
		t.fire(p, g)
	})
}

func (t *Tracker) disarm(p Phase) {
	if t.timers[p] != nil {
		t.timers[p].Stop()
		t.timers[p] = nil
	}
	t.gen[p]++
}

func (t *Tracker) fire(p Phase, g uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired || t.gen[p] != g {
		return
	}
	t.fired = true
	t.expired <- Expiry{Phase: p, Bound: t.budgets[p]}
}
