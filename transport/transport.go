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
	"net/url"
	"time"
)

// A Transport starts request attempts.
//
// Start must not block on network I/O: it hands back a Handle right
// away and reports the progress of the attempt through the Handle's
// event channel.
type Transport interface {
	Start(ctx context.Context, req *Request) (Handle, error)
}

// A Handle is an in-flight attempt started by a Transport.
//
// The events channel delivers the attempt's phase marks in order, and
// is closed after the terminal event (End or Error), or after Abort.
// Every attempt produces at most one terminal event.
type Handle interface {
	Events() <-chan Event
	// Abort cancels the attempt. It is safe to call Abort more than
	// once, and after the attempt has ended.
	Abort()
}

// A Resolver resolves host names into IP addresses. The network is
// "ip", "ip4" or "ip6". *net.Resolver implements Resolver.
type Resolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
}

// A Request is one attempt as seen by a Transport.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	// Body is the body to send, or nil.
	Body io.Reader
	// GetBody, if not nil, returns a fresh copy of Body.
	GetBody func() (io.ReadCloser, error)
	// ContentLength is the length of Body, or -1 if unknown.
	ContentLength int64
	// Agent is a caller-supplied round tripper to send the request
	// with, or nil to use a transport-owned one.
	Agent http.RoundTripper
	// Config describes the transport-owned round tripper to use when
	// Agent is nil.
	Config Config
}

// Config describes a transport-owned round tripper. Two requests with
// equal configs share connections.
type Config struct {
	// HTTP2 enables HTTP/2 negotiation.
	HTTP2 bool
	// Decompress enables transparent gzip decompression.
	Decompress bool
	// Network is the resolver network: "ip", "ip4" or "ip6".
	Network string
	// TLS is the TLS client configuration, or nil for the default.
	TLS *tls.Config
	// TLSKey identifies TLS. Requests whose TLS configurations are
	// equivalent must use the same key.
	TLSKey string
}

// An EventKind identifies what an Event reports.
type EventKind int

const (
	// DNSStart is emitted when name resolution starts.
	DNSStart EventKind = iota
	// DNSDone is emitted when name resolution ends.
	DNSDone
	// ConnectStart is emitted when a new connection dial starts.
	ConnectStart
	// ConnectDone is emitted when a dial ends.
	ConnectDone
	// TLSStart is emitted when the TLS handshake starts.
	TLSStart
	// TLSDone is emitted when the TLS handshake ends.
	TLSDone
	// Socket is emitted when the attempt obtains a connection, new or
	// reused.
	Socket
	// Wrote is emitted when the request has been written. Err is set
	// if writing failed.
	Wrote
	// Headers is emitted when the response headers arrive.
	Headers
	// Chunk carries a piece of the response body.
	Chunk
	// End is the terminal event of a successful attempt.
	End
	// Error is the terminal event of a failed attempt.
	Error
)

var kindNames = [...]string{
	"DNSStart", "DNSDone", "ConnectStart", "ConnectDone", "TLSStart",
	"TLSDone", "Socket", "Wrote", "Headers", "Chunk", "End", "Error",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "EventKind(?)"
	}
	return kindNames[k]
}

// Terminal reports whether k ends an attempt.
func (k EventKind) Terminal() bool {
	return k == End || k == Error
}

// An Event reports the progress of an attempt.
type Event struct {
	Kind EventKind
	Time time.Time
	// Response is set on Headers.
	Response *Response
	// Data is set on Chunk. It is owned by the receiver.
	Data []byte
	// Err is set on Error, and on DNSDone, ConnectDone, TLSDone and
	// Wrote when the phase failed.
	Err error
	// Addr is the remote address, set on Socket.
	Addr string
	// Reused reports, on Socket, whether the connection was reused.
	Reused bool
}

// A Response holds the response metadata delivered with Headers.
type Response struct {
	StatusCode int
	// Reason is the reason phrase, without the status code.
	Reason string
	Proto  string
	Header http.Header
}
