// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

// Hooks is a group of hook slots, one handler chain per Event.
//
// The zero value is an empty group. A Hooks value is never modified in
// place: PushBack, Concat and Tag return or install fresh chains, so a
// Hooks value copied out of one Options (or Instance) and extended
// does not affect the original.
//
// Every installed handler is tagged with an origin label recording
// where it came from (for example the name of the Instance that
// contributed it). Origins are informational; merging never
// deduplicates handlers, so installing the same handler twice runs it
// twice.
type Hooks struct {
	slots [numEvents][]entry
}

type entry struct {
	h      Handler
	origin string
}

// A Handler handles the occurrence of an event during a request
// lifecycle.
//
// A non-nil return value fails the request. The error is converted to
// a RequestError, unless it already is one, and the request proceeds
// to the BeforeError slot.
type Handler interface {
	Handle(Event, *Execution) error
}

// The HandlerFunc type is an adapter to allow the use of ordinary
// functions as hook handlers. If f is a function with appropriate
// signature, then HandlerFunc(f) is a Handler that calls f.
type HandlerFunc func(Event, *Execution) error

// Handle calls f(evt, e).
func (f HandlerFunc) Handle(evt Event, e *Execution) error {
	return f(evt, e)
}

// PushBack adds a handler to the back of the handler chain for a
// specific event type.
func (h *Hooks) PushBack(evt Event, handler Handler) {
	h.push(evt, handler, "")
}

// PushBackFrom is like PushBack, but tags the handler with origin.
func (h *Hooks) PushBackFrom(evt Event, handler Handler, origin string) {
	h.push(evt, handler, origin)
}

func (h *Hooks) push(evt Event, handler Handler, origin string) {
	if handler == nil {
		panic("gotx/request: nil handler")
	}
	if evt < 0 || int(evt) >= numEvents {
		panic("gotx/request: unknown event")
	}

	old := h.slots[evt]
	chain := make([]entry, len(old), len(old)+1)
	copy(chain, old)
	h.slots[evt] = append(chain, entry{h: handler, origin: origin})
}

// Len returns the number of handlers in the chain for evt.
func (h Hooks) Len(evt Event) int {
	return len(h.slots[evt])
}

// Handlers returns a copy of the handler chain for evt.
func (h Hooks) Handlers(evt Event) []Handler {
	chain := h.slots[evt]
	hs := make([]Handler, len(chain))
	for i := range chain {
		hs[i] = chain[i].h
	}
	return hs
}

// Origins returns the origin label of each handler in the chain for
// evt.
func (h Hooks) Origins(evt Event) []string {
	chain := h.slots[evt]
	os := make([]string, len(chain))
	for i := range chain {
		os[i] = chain[i].origin
	}
	return os
}

// Empty reports whether h holds no handlers at all.
func (h Hooks) Empty() bool {
	for i := range h.slots {
		if len(h.slots[i]) > 0 {
			return false
		}
	}
	return true
}

// Concat returns a group holding, for every slot, the handlers of h
// followed by the handlers of other.
func (h Hooks) Concat(other Hooks) Hooks {
	var out Hooks
	for i := range h.slots {
		a, b := h.slots[i], other.slots[i]
		switch {
		case len(b) == 0:
			out.slots[i] = a
		case len(a) == 0:
			out.slots[i] = b
		default:
			chain := make([]entry, 0, len(a)+len(b))
			chain = append(chain, a...)
			out.slots[i] = append(chain, b...)
		}
	}
	return out
}

// Tag returns a copy of h in which every handler without an origin
// label is labelled with origin.
func (h Hooks) Tag(origin string) Hooks {
	var out Hooks
	for i := range h.slots {
		chain := make([]entry, len(h.slots[i]))
		for j, en := range h.slots[i] {
			if en.origin == "" {
				en.origin = origin
			}
			chain[j] = en
		}
		if len(chain) > 0 {
			out.slots[i] = chain
		}
	}
	return out
}

// Truncate returns a copy of h whose chain for evt holds only its
// first n handlers.
func (h Hooks) Truncate(evt Event, n int) Hooks {
	out := h
	if n < len(h.slots[evt]) {
		out.slots[evt] = h.slots[evt][:n:n]
	}
	return out
}

// Run runs the handler chain for evt, in order, against e.
//
// For every slot except BeforeError, the first handler error stops
// the chain and is returned as a RequestError. For AfterResponse, a
// handler calling e.Retry also stops the chain.
//
// For BeforeError, Run always returns nil and the outcome is in
// e.Err: a handler may replace e.Err with another error, or return an
// error, which replaces e.Err as a RequestError and stops the chain.
// Clearing e.Err is not a way to rescue the request, and is undone.
func (h Hooks) Run(evt Event, e *Execution) error {
	for i, en := range h.slots[evt] {
		switch evt {
		case BeforeError:
			prev := e.Err
			if err := en.h.Handle(evt, e); err != nil {
				e.Err = e.wrap(err)
				return nil
			}
			if e.Err == nil {
				e.Err = prev
			}
		case AfterResponse:
			e.hookIndex = i
			if err := en.h.Handle(evt, e); err != nil {
				return e.wrap(err)
			}
			if e.directive != nil {
				return nil
			}
		default:
			if err := en.h.Handle(evt, e); err != nil {
				return e.wrap(err)
			}
		}
	}
	return nil
}
