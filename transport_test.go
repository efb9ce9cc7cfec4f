// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gotx

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gogama/gotx/transport"
)

// fakeTransport answers each attempt with the events produced by
// script, given the zero-based attempt number. A script whose events
// do not end with a terminal event leaves the attempt hanging until it
// is aborted.
type fakeTransport struct {
	script func(n int, req *transport.Request) []transport.Event

	mu      sync.Mutex
	reqs    []*transport.Request
	aborted int
}

func (f *fakeTransport) Start(_ context.Context, req *transport.Request) (transport.Handle, error) {
	f.mu.Lock()
	n := len(f.reqs)
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	evs := f.script(n, req)
	h := &fakeHandle{
		events: make(chan transport.Event, len(evs)),
		abort:  make(chan struct{}),
		onAbort: func() {
			f.mu.Lock()
			f.aborted++
			f.mu.Unlock()
		},
	}
	for _, ev := range evs {
		if ev.Time.IsZero() {
			ev.Time = time.Now()
		}
		h.events <- ev
	}
	if len(evs) > 0 && evs[len(evs)-1].Kind.Terminal() {
		close(h.events)
	} else {
		go func() {
			<-h.abort
			close(h.events)
		}()
	}
	return h, nil
}

func (f *fakeTransport) starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func (f *fakeTransport) request(n int) *transport.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[n]
}

type fakeHandle struct {
	events  chan transport.Event
	abort   chan struct{}
	once    sync.Once
	onAbort func()
}

func (h *fakeHandle) Events() <-chan transport.Event {
	return h.events
}

func (h *fakeHandle) Abort() {
	h.once.Do(func() {
		h.onAbort()
		close(h.abort)
	})
}

// reply scripts a complete response.
func reply(status int, header http.Header, body string) []transport.Event {
	evs := headers(status, header)
	if body != "" {
		evs = append(evs, transport.Event{Kind: transport.Chunk, Data: []byte(body)})
	}
	return append(evs, transport.Event{Kind: transport.End})
}

// headers scripts a response whose body never arrives.
func headers(status int, header http.Header) []transport.Event {
	return []transport.Event{
		{Kind: transport.Socket, Addr: "192.0.2.1:443"},
		{Kind: transport.Wrote},
		{Kind: transport.Headers, Response: &transport.Response{
			StatusCode: status,
			Proto:      "HTTP/1.1",
			Header:     header,
		}},
	}
}

func always(evs func() []transport.Event) func(int, *transport.Request) []transport.Event {
	return func(int, *transport.Request) []transport.Event {
		return evs()
	}
}
