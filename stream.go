// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gotx

import (
	"context"
	"io"
	"sync"

	"github.com/gogama/gotx/request"
)

// A Stream is the response body of a request started by
// Instance.Stream. It implements io.ReadCloser.
//
// Read blocks until the response headers arrive. A request which fails
// before then makes Read and Response return the error. A failure
// while the body is read is returned by Read, once, in place of io.EOF:
// a *request.ReadError for a broken transfer, a *request.TimeoutError
// for an expired budget, or a *request.CancelError.
type Stream struct {
	ready  chan struct{}
	once   sync.Once
	cancel context.CancelFunc
	pr     *io.PipeReader
	pw     *io.PipeWriter
	resp   *request.Response
	err    error
}

func newStream(cancel context.CancelFunc) *Stream {
	pr, pw := io.Pipe()
	return &Stream{
		ready:  make(chan struct{}),
		cancel: cancel,
		pr:     pr,
		pw:     pw,
	}
}

// Response blocks until the response headers arrive and returns the
// response metadata. Its Body is nil.
func (s *Stream) Response() (*request.Response, error) {
	<-s.ready
	return s.resp, s.err
}

// Ready returns a channel which is closed when the response headers
// arrive, or the request fails before they do.
func (s *Stream) Ready() <-chan struct{} {
	return s.ready
}

// Read reads from the response body.
func (s *Stream) Read(p []byte) (int, error) {
	<-s.ready
	if s.err != nil {
		return 0, s.err
	}
	return s.pr.Read(p)
}

// Close cancels the request if the body was not read to the end. It
// always returns nil.
func (s *Stream) Close() error {
	s.cancel()
	_ = s.pr.Close()
	return nil
}

func (s *Stream) publish(r *request.Response) {
	s.once.Do(func() {
		s.resp = r
		close(s.ready)
	})
}

// finish delivers the outcome of the request.
func (s *Stream) finish(err error) {
	published := true
	s.once.Do(func() {
		published = false
		s.err = err
		close(s.ready)
	})
	if published {
		_ = s.pw.CloseWithError(err)
	}
}

// abort unblocks a pending body write when the caller's context ends.
func (s *Stream) abort(cause error) {
	s.cancel()
	_ = s.pw.CloseWithError(request.NewCancelError(cause, nil))
}
