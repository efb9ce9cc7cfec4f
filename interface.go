// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gotx

import (
	"context"
	"net/url"

	"github.com/gogama/gotx/request"
)

// Doer is the interface that wraps the basic Do method.
//
// Do makes a request described by the options o and returns its final
// response (and error, if any). Instance implements the Doer interface,
// and any other Doer implementation must behave substantially the same
// as Instance.Do: o is merged onto defaults, never modified, and the
// error is a *request.RequestError or one of the types embedding it.
//
// Any Doer can be converted into an Executor via the Inflate function.
type Doer interface {
	Do(ctx context.Context, o *request.Options) (*request.Response, error)
}

// Getter is the interface that wraps the basic Get method.
//
// Get issues a GET to the specified URL, with the optional options
// layers merged in order. Instance implements the Getter interface.
type Getter interface {
	Get(ctx context.Context, url string, o ...*request.Options) (*request.Response, error)
}

// Header is the interface that wraps the basic Head method.
//
// Head issues a HEAD to the specified URL, with the optional options
// layers merged in order. Instance implements the Header interface.
type Header interface {
	Head(ctx context.Context, url string, o ...*request.Options) (*request.Response, error)
}

// Poster is the interface that wraps the basic Post method.
//
// Post issues a POST to the specified URL. The body is given by the
// Body, JSON or Form field of the options layers.
type Poster interface {
	Post(ctx context.Context, url string, o ...*request.Options) (*request.Response, error)
}

// FormPoster is the interface that wraps the basic PostForm method.
//
// PostForm issues a POST to the specified URL with data's keys and
// values URL-encoded as the request body, and the content type set to
// application/x-www-form-urlencoded.
type FormPoster interface {
	PostForm(ctx context.Context, url string, data url.Values) (*request.Response, error)
}

// IdleCloser is the interface that wraps the basic CloseIdleConnections
// method.
//
// If the underlying implementation supports it, CloseIdleConnections
// closes any connections which were previously connected from previous
// requests but are now sitting idle in a "keep-alive" state. It does
// not interrupt any connections currently in use.
//
// If the underlying implementation does not support this ability,
// CloseIdleConnections does nothing.
type IdleCloser interface {
	CloseIdleConnections()
}

// Executor is the interface that groups the basic Do, Get, Head, Post,
// PostForm, and CloseIdleConnections methods.
//
// Any Doer can be converted into an Executor via the Inflate function.
type Executor interface {
	Doer
	Getter
	Header
	Poster
	FormPoster
	IdleCloser
}

// Get issues a GET to the specified URL.
func (i *Instance) Get(ctx context.Context, url string, o ...*request.Options) (*request.Response, error) {
	return verb(i, ctx, "GET", url, o)
}

// Head issues a HEAD to the specified URL.
func (i *Instance) Head(ctx context.Context, url string, o ...*request.Options) (*request.Response, error) {
	return verb(i, ctx, "HEAD", url, o)
}

// Post issues a POST to the specified URL.
func (i *Instance) Post(ctx context.Context, url string, o ...*request.Options) (*request.Response, error) {
	return verb(i, ctx, "POST", url, o)
}

// Put issues a PUT to the specified URL.
func (i *Instance) Put(ctx context.Context, url string, o ...*request.Options) (*request.Response, error) {
	return verb(i, ctx, "PUT", url, o)
}

// Patch issues a PATCH to the specified URL.
func (i *Instance) Patch(ctx context.Context, url string, o ...*request.Options) (*request.Response, error) {
	return verb(i, ctx, "PATCH", url, o)
}

// Delete issues a DELETE to the specified URL.
func (i *Instance) Delete(ctx context.Context, url string, o ...*request.Options) (*request.Response, error) {
	return verb(i, ctx, "DELETE", url, o)
}

// PostForm issues a form POST to the specified URL.
func (i *Instance) PostForm(ctx context.Context, url string, data url.Values) (*request.Response, error) {
	return postForm(i, ctx, url, data)
}

// Get issues a GET to the specified URL using the Default instance.
func Get(ctx context.Context, url string, o ...*request.Options) (*request.Response, error) {
	return Default.Get(ctx, url, o...)
}

// Head issues a HEAD to the specified URL using the Default instance.
func Head(ctx context.Context, url string, o ...*request.Options) (*request.Response, error) {
	return Default.Head(ctx, url, o...)
}

// Post issues a POST to the specified URL using the Default instance.
func Post(ctx context.Context, url string, o ...*request.Options) (*request.Response, error) {
	return Default.Post(ctx, url, o...)
}

// Put issues a PUT to the specified URL using the Default instance.
func Put(ctx context.Context, url string, o ...*request.Options) (*request.Response, error) {
	return Default.Put(ctx, url, o...)
}

// Patch issues a PATCH to the specified URL using the Default instance.
func Patch(ctx context.Context, url string, o ...*request.Options) (*request.Response, error) {
	return Default.Patch(ctx, url, o...)
}

// Delete issues a DELETE to the specified URL using the Default
// instance.
func Delete(ctx context.Context, url string, o ...*request.Options) (*request.Response, error) {
	return Default.Delete(ctx, url, o...)
}

// PostForm issues a form POST to the specified URL using the Default
// instance.
func PostForm(ctx context.Context, url string, data url.Values) (*request.Response, error) {
	return Default.PostForm(ctx, url, data)
}

// verb merges the layers o, then the method and URL, and makes the
// request with d.
func verb(d Doer, ctx context.Context, method, url string, o []*request.Options) (*request.Response, error) {
	layers := append(append([]*request.Options(nil), o...), &request.Options{Method: method, URL: url})
	return d.Do(ctx, request.Merge(layers...))
}

func postForm(d Doer, ctx context.Context, rawURL string, data url.Values) (*request.Response, error) {
	if data == nil {
		data = url.Values{}
	}
	return verb(d, ctx, "POST", rawURL, []*request.Options{{Form: data}})
}

// Inflate converts any non-nil Doer into an Executor. This may be
// helpful for interop across library boundaries, i.e. if code that only
// has access to a Doer needs to call a function that requires an
// Executor.
func Inflate(d Doer) Executor {
	if d == nil {
		panic("gotx: nil doer")
	}

	if e, ok := d.(Executor); ok {
		return e
	}

	return inflated{d}
}

type inflated struct {
	doer Doer
}

func (i inflated) Do(ctx context.Context, o *request.Options) (*request.Response, error) {
	return i.doer.Do(ctx, o)
}

func (i inflated) Get(ctx context.Context, url string, o ...*request.Options) (*request.Response, error) {
	return verb(i.doer, ctx, "GET", url, o)
}

func (i inflated) Head(ctx context.Context, url string, o ...*request.Options) (*request.Response, error) {
	return verb(i.doer, ctx, "HEAD", url, o)
}

func (i inflated) Post(ctx context.Context, url string, o ...*request.Options) (*request.Response, error) {
	return verb(i.doer, ctx, "POST", url, o)
}

func (i inflated) PostForm(ctx context.Context, url string, data url.Values) (*request.Response, error) {
	return postForm(i.doer, ctx, url, data)
}

func (i inflated) CloseIdleConnections() {
	if ic, ok := i.doer.(IdleCloser); ok {
		ic.CloseIdleConnections()
	}
}
