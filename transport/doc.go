// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package transport defines the contract between the request
// lifecycle and the component which actually sends an attempt over the
// network, and provides the default implementation, HTTP, built on the
// standard net/http transport.
//
// A Transport reports the progress of an attempt as a stream of events
// (name resolution, connect, TLS handshake, request written, headers,
// body chunks, end) which the lifecycle uses to drive its per-phase
// timeouts and to record timings.
package transport
