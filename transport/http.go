// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/time/rate"
)

const chunkSize = 32 * 1024

// HTTP is the default Transport, built on net/http. Its zero value is
// ready to use.
//
// Requests without an Agent are sent with round trippers owned by HTTP,
// created on first use and cached per Config, so requests with equal
// configs share a connection pool. Caller-supplied agents are used as
// they are, and are never modified or closed.
//
// HTTP is safe for concurrent use by multiple goroutines.
type HTTP struct {
	// Resolver resolves host names for owned round trippers. If nil,
	// net.DefaultResolver is used.
	Resolver Resolver
	// Dialer dials connections for owned round trippers. If nil, a
	// dialer with a 30 second keep-alive is used.
	Dialer *net.Dialer
	// Limiter, if not nil, throttles the rate at which attempts are
	// started. Waiting on the limiter is part of the attempt, and is
	// abandoned if the attempt is aborted.
	Limiter *rate.Limiter

	mu    sync.Mutex
	owned map[ownedKey]*http.Transport
}

type ownedKey struct {
	http2      bool
	decompress bool
	network    string
	tlsKey     string
}

// Start starts an attempt and returns its handle.
func (t *HTTP) Start(ctx context.Context, req *Request) (Handle, error) {
	rt := req.Agent
	if rt == nil {
		var err error
		rt, err = t.roundTripper(req.Config)
		if err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	h := &handle{
		ctx:    ctx,
		cancel: cancel,
		events: make(chan Event, 16),
	}
	hreq, err := h.httpRequest(req)
	if err != nil {
		cancel()
		return nil, err
	}
	go h.run(t.Limiter, rt, hreq)
	return h, nil
}

// CloseIdleConnections closes the idle connections of every owned
// round tripper.
func (t *HTTP) CloseIdleConnections() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, rt := range t.owned {
		rt.CloseIdleConnections()
	}
}

func (t *HTTP) roundTripper(cfg Config) (*http.Transport, error) {
	key := ownedKey{
		http2:      cfg.HTTP2,
		decompress: cfg.Decompress,
		network:    cfg.Network,
		tlsKey:     cfg.TLSKey,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if rt, ok := t.owned[key]; ok {
		return rt, nil
	}

	rt := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           t.dialer(cfg.Network).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   0,
		ExpectContinueTimeout: 1 * time.Second,
		DisableCompression:    !cfg.Decompress,
	}
	if cfg.TLS != nil {
		rt.TLSClientConfig = cfg.TLS.Clone()
	}
	if cfg.HTTP2 {
		if err := http2.ConfigureTransport(rt); err != nil {
			return nil, err
		}
	} else {
		rt.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
	}

	if t.owned == nil {
		t.owned = make(map[ownedKey]*http.Transport)
	}
	t.owned[key] = rt
	return rt, nil
}

func (t *HTTP) dialer(network string) *dialer {
	d := t.Dialer
	if d == nil {
		d = &net.Dialer{KeepAlive: 30 * time.Second}
	}
	return &dialer{
		dialer:   d,
		resolver: t.Resolver,
		network:  network,
	}
}

type handle struct {
	ctx    context.Context
	cancel context.CancelFunc
	events chan Event

	mu     sync.RWMutex
	closed bool
}

func (h *handle) Events() <-chan Event {
	return h.events
}

func (h *handle) Abort() {
	h.cancel()
}

// emit delivers ev unless the attempt has been aborted. Trace callbacks
// may fire from net/http goroutines after run has returned, so emit
// never sends on a closed channel.
func (h *handle) emit(ev Event) bool {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return false
	}
	select {
	case h.events <- ev:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *handle) close() {
	h.mu.Lock()
	h.closed = true
	close(h.events)
	h.mu.Unlock()
}

func (h *handle) httpRequest(req *Request) (*http.Request, error) {
	trace := &httptrace.ClientTrace{
		DNSStart: func(httptrace.DNSStartInfo) {
			h.emit(Event{Kind: DNSStart})
		},
		DNSDone: func(info httptrace.DNSDoneInfo) {
			h.emit(Event{Kind: DNSDone, Err: info.Err})
		},
		ConnectStart: func(string, string) {
			h.emit(Event{Kind: ConnectStart})
		},
		ConnectDone: func(_, _ string, err error) {
			h.emit(Event{Kind: ConnectDone, Err: err})
		},
		TLSHandshakeStart: func() {
			h.emit(Event{Kind: TLSStart})
		},
		TLSHandshakeDone: func(_ tls.ConnectionState, err error) {
			h.emit(Event{Kind: TLSDone, Err: err})
		},
		GotConn: func(info httptrace.GotConnInfo) {
			ev := Event{Kind: Socket, Reused: info.Reused}
			if info.Conn != nil {
				ev.Addr = info.Conn.RemoteAddr().String()
			}
			h.emit(ev)
		},
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			h.emit(Event{Kind: Wrote, Err: info.Err})
		},
	}
	ctx := httptrace.WithClientTrace(h.ctx, trace)

	var body io.ReadCloser
	if req.Body != nil {
		if rc, ok := req.Body.(io.ReadCloser); ok {
			body = rc
		} else {
			body = io.NopCloser(req.Body)
		}
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), body)
	if err != nil {
		return nil, err
	}
	hreq.URL = req.URL
	if req.Header != nil {
		hreq.Header = req.Header.Clone()
	}
	if host := hreq.Header.Get("Host"); host != "" {
		hreq.Host = host
	}
	if req.Body != nil {
		hreq.ContentLength = req.ContentLength
		if hreq.ContentLength == 0 {
			hreq.ContentLength = -1
		}
		hreq.GetBody = req.GetBody
	}
	return hreq, nil
}

func (h *handle) run(limiter *rate.Limiter, rt http.RoundTripper, hreq *http.Request) {
	defer h.close()
	defer h.cancel()

	if limiter != nil {
		if err := limiter.Wait(h.ctx); err != nil {
			h.emit(Event{Kind: Error, Err: err})
			return
		}
	}

	resp, err := rt.RoundTrip(hreq)
	if err != nil {
		h.emit(Event{Kind: Error, Err: err})
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	ok := h.emit(Event{
		Kind: Headers,
		Response: &Response{
			StatusCode: resp.StatusCode,
			Reason:     reason(resp.Status, resp.StatusCode),
			Proto:      resp.Proto,
			Header:     resp.Header,
		},
	})
	if !ok {
		return
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			if !h.emit(Event{Kind: Chunk, Data: data}) {
				return
			}
		}
		if err == io.EOF {
			h.emit(Event{Kind: End})
			return
		} else if err != nil {
			h.emit(Event{Kind: Error, Err: err})
			return
		}
	}
}

// reason extracts the reason phrase from a status line such as
// "404 Not Found".
func reason(status string, code int) string {
	s := strings.TrimSpace(status)
	if i := strings.IndexByte(s, ' '); i >= 0 && strings.HasPrefix(s, strconv.Itoa(code)) {
		return strings.TrimSpace(s[i+1:])
	}
	return ""
}
