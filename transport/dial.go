// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"errors"
	"net"
	"net/http/httptrace"
)

// A dialer dials TCP connections, resolving host names with the
// configured address family.
//
// With the standard resolver, resolution is left to net.Dialer, which
// reports DNS trace events itself. Any other Resolver is called
// directly, and the DNS trace events are reported here.
type dialer struct {
	dialer   *net.Dialer
	resolver Resolver
	network  string
}

func (d *dialer) DialContext(ctx context.Context, _, addr string) (net.Conn, error) {
	network := tcpNetwork(d.network)
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	std, isStd := d.resolver.(*net.Resolver)
	if d.resolver == nil || isStd || net.ParseIP(host) != nil {
		nd := *d.dialer
		if std != nil {
			nd.Resolver = std
		}
		return nd.DialContext(ctx, network, addr)
	}

	ips, err := d.lookup(ctx, host)
	if err != nil {
		return nil, err
	}
	var firstErr error
	for _, ip := range ips {
		conn, err := d.dialer.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
		if err == nil {
			return conn, nil
		}
		if firstErr == nil {
			firstErr = err
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, firstErr
}

func (d *dialer) lookup(ctx context.Context, host string) ([]net.IP, error) {
	trace := httptrace.ContextClientTrace(ctx)
	if trace != nil && trace.DNSStart != nil {
		trace.DNSStart(httptrace.DNSStartInfo{Host: host})
	}

	ips, err := d.resolver.LookupIP(ctx, ipNetwork(d.network), host)
	if err == nil && len(ips) == 0 {
		err = &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	if err != nil {
		var dnsErr *net.DNSError
		if !errors.As(err, &dnsErr) {
			err = &net.DNSError{
				Err:         err.Error(),
				Name:        host,
				IsTimeout:   errors.Is(err, context.DeadlineExceeded),
				IsTemporary: true,
			}
		}
	}

	if trace != nil && trace.DNSDone != nil {
		addrs := make([]net.IPAddr, len(ips))
		for i, ip := range ips {
			addrs[i] = net.IPAddr{IP: ip}
		}
		trace.DNSDone(httptrace.DNSDoneInfo{Addrs: addrs, Err: err})
	}
	return ips, err
}

func ipNetwork(network string) string {
	switch network {
	case "ip4", "ip6":
		return network
	default:
		return "ip"
	}
}

func tcpNetwork(network string) string {
	switch network {
	case "ip4":
		return "tcp4"
	case "ip6":
		return "tcp6"
	default:
		return "tcp"
	}
}
