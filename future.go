// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gotx

import (
	"context"

	"github.com/gogama/gotx/request"
)

// A Future is the pending result of a request started by Instance.Go.
type Future struct {
	done   chan struct{}
	cancel context.CancelFunc
	resp   *request.Response
	err    error
}

// Wait blocks until the request ends and returns its outcome.
func (f *Future) Wait() (*request.Response, error) {
	<-f.done
	return f.resp, f.err
}

// Done returns a channel which is closed when the request ends.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Cancel cancels the request. The request ends with a
// *request.CancelError unless it already ended. It is safe to call
// Cancel more than once.
func (f *Future) Cancel() {
	f.cancel()
}

// Bytes waits for the request and returns the response body.
func (f *Future) Bytes() ([]byte, error) {
	r, err := f.Wait()
	if err != nil {
		return nil, err
	}
	return r.Body, nil
}

// Text waits for the request and returns the response body as text.
func (f *Future) Text() (string, error) {
	r, err := f.Wait()
	if err != nil {
		return "", err
	}
	return r.Text(), nil
}

// JSON waits for the request and decodes the response body into v. A
// malformed body produces a *request.ParseError.
func (f *Future) JSON(v interface{}) error {
	r, err := f.Wait()
	if err != nil {
		return err
	}
	return r.JSON(v)
}
