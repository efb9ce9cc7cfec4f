// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transient

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/bassosimone/errclass"
)

// Error codes reported by Code. The names follow the POSIX errno and
// getaddrinfo names, which is how retry policies list retryable errors.
const (
	ETIMEDOUT    = "ETIMEDOUT"
	ECONNRESET   = "ECONNRESET"
	EADDRINUSE   = "EADDRINUSE"
	ECONNREFUSED = "ECONNREFUSED"
	ECONNABORTED = "ECONNABORTED"
	EPIPE        = "EPIPE"
	ENOTFOUND    = "ENOTFOUND"
	ENETUNREACH  = "ENETUNREACH"
	EHOSTUNREACH = "EHOSTUNREACH"
	EAI_AGAIN    = "EAI_AGAIN"
	// EGENERIC is reported for errors that have no more specific code.
	EGENERIC = "EGENERIC"
)

var errnoCodes = map[syscall.Errno]string{
	syscall.ETIMEDOUT:    ETIMEDOUT,
	syscall.ECONNRESET:   ECONNRESET,
	syscall.EADDRINUSE:   EADDRINUSE,
	syscall.ECONNREFUSED: ECONNREFUSED,
	syscall.ECONNABORTED: ECONNABORTED,
	syscall.EPIPE:        EPIPE,
	syscall.ENETUNREACH:  ENETUNREACH,
	syscall.EHOSTUNREACH: EHOSTUNREACH,
}

// Code returns the error code of err, looking through wrapped causes.
// A nil error has the empty code.
//
// DNS failures are reported as ENOTFOUND when the name does not exist
// and as EAI_AGAIN otherwise, so that they stay distinct from connect
// failures. Any error with a Timeout method reporting true, and
// context.DeadlineExceeded, is ETIMEDOUT. An error closing the
// connection before the response is complete is ECONNRESET. Errors no
// rule matches are classified by package errclass, which falls back on
// EGENERIC.
func Code(err error) string {
	if err == nil {
		return ""
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsNotFound {
			return ENOTFOUND
		}
		return EAI_AGAIN
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		if code, ok := errnoCodes[errno]; ok {
			return code
		}
	}

	var hasTimeout hasTimeout
	if errors.As(err, &hasTimeout) && hasTimeout.Timeout() {
		return ETIMEDOUT
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ETIMEDOUT
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return ECONNRESET
	}

	return errclass.New(err)
}

// A Category is the transience category of a particular error, as
// reported by function Categorize().
//
// The category Not means the error is not transient from the perspective
// of completing an HTTP request attempt successfully, or in other words
// that a retry after encountering this error is very unlikely to succeed.
//
// All other categories indicate the error is transient. Categories are
// coarser than codes and suit bucketing, for example in metrics labels.
type Category int

const (
	// Not indicates any non-transient error.
	Not Category = iota
	// Timeout indicates a client-side timeout. The server may be going
	// through a temporary period of slowness, or the client may succeed
	// on a future attempt waiting longer (increasing its timeout).
	Timeout
	// ConnRefused indicates the remote host refused the connection.
	//
	// Although connection refusal may be a permanent condition, it is
	// classified as transient because it can happen if the service
	// running on the remote host is in the process of starting or
	// restarting.
	ConnRefused
	// ConnReset indicates the remote host returned an RST packet on a
	// previously active TCP connection, or closed the connection before
	// the response was complete.
	ConnReset
	// DNS indicates a failure to resolve the host name.
	DNS
	// Network indicates the network or host was unreachable.
	Network
)

var categoryNames = [...]string{"not", "timeout", "conn_refused", "conn_reset", "dns", "network"}

// String returns the name of the category.
func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "unknown"
	}
	return categoryNames[c]
}

// Categorize returns the transience category of the given error. A
// nil error, and an error that is not transient from the perspective of
// completing an HTTP request attempt, both produce the return value
// Not.
func Categorize(err error) Category {
	switch Code(err) {
	case ETIMEDOUT:
		return Timeout
	case ECONNREFUSED:
		return ConnRefused
	case ECONNRESET, EPIPE, ECONNABORTED:
		return ConnReset
	case ENOTFOUND, EAI_AGAIN:
		return DNS
	case ENETUNREACH, EHOSTUNREACH:
		return Network
	default:
		return Not
	}
}

type hasTimeout interface {
	Timeout() bool
}
