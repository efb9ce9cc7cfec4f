// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gotx

import (
	"context"

	"github.com/gogama/gotx/request"
	"github.com/gogama/gotx/transport"
	"github.com/rs/zerolog"
)

// An Invoker runs a request with merged options to completion.
type Invoker func(ctx context.Context, o *request.Options) (*request.Response, error)

// A Middleware wraps the requests made by an Instance. It may inspect
// or replace the options and context before calling next, and inspect
// or replace the outcome after.
//
// Middleware wraps buffered requests (Do, Go, and the pages of
// Paginate). Streamed requests bypass it, since they have no outcome
// to hand back until the caller has read the body.
type Middleware func(ctx context.Context, o *request.Options, next Invoker) (*request.Response, error)

// Config configures a new Instance.
type Config struct {
	// Name labels the hooks contributed by Defaults, so their origin
	// can be traced after instances are extended.
	Name string
	// Defaults is the instance default options layer. It is merged
	// onto the built-in defaults, and every request is merged onto it.
	Defaults *request.Options
	// Middleware wraps every buffered request, outermost first.
	Middleware []Middleware
	// Logger receives lifecycle logs. If nil, nothing is logged.
	Logger *zerolog.Logger
	// Transport makes the attempts of requests which do not set their
	// own. If nil, a transport.HTTP owned by the instance is used.
	Transport transport.Transport
	// DeprecationSink receives deprecation warnings, each at most once.
	// If nil, warnings are logged at warn level.
	DeprecationSink func(code, msg string)
}

// An Instance makes requests with a fixed set of default options and
// middleware. Instances are immutable: Extend, With and Use return new
// instances, so an Instance is safe for concurrent use by multiple
// goroutines.
type Instance struct {
	name         string
	layers       []*request.Options
	defaults     *request.Options
	middleware   []Middleware
	invoke       Invoker
	logger       zerolog.Logger
	transport    transport.Transport
	deprecations *request.Deprecations
}

// Default is the instance used by the package-level request
// functions.
var Default = New(Config{Name: "default"})

// New returns a new Instance.
func New(cfg Config) *Instance {
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	tr := cfg.Transport
	if tr == nil {
		tr = &transport.HTTP{}
	}
	sink := cfg.DeprecationSink
	if sink == nil {
		sink = func(code, msg string) {
			logger.Warn().Str("code", code).Msg(msg)
		}
	}

	var layers []*request.Options
	if cfg.Defaults != nil {
		layer := cfg.Defaults.Clone()
		layer.Hooks = layer.Hooks.Tag(cfg.Name)
		layers = append(layers, layer)
	}
	return build(&Instance{
		name:         cfg.Name,
		layers:       layers,
		middleware:   append([]Middleware(nil), cfg.Middleware...),
		logger:       logger,
		transport:    tr,
		deprecations: &request.Deprecations{Sink: sink},
	})
}

// build computes the derived fields of i.
func build(i *Instance) *Instance {
	i.defaults = request.Merge(append([]*request.Options{request.Defaults()}, i.layers...)...)
	inv := Invoker(i.execute)
	for k := len(i.middleware) - 1; k >= 0; k-- {
		m, next := i.middleware[k], inv
		inv = func(ctx context.Context, o *request.Options) (*request.Response, error) {
			return m(ctx, o, next)
		}
	}
	i.invoke = inv
	return i
}

// Name returns the name of the instance.
func (i *Instance) Name() string {
	return i.name
}

// Defaults returns a copy of the merged default options of the
// instance, built-in defaults included.
func (i *Instance) Defaults() *request.Options {
	return i.defaults.Clone()
}

// Hooks returns the hooks installed by the instance defaults.
func (i *Instance) Hooks() request.Hooks {
	return i.defaults.Hooks
}

// Deprecations returns the deprecation warning state of the instance.
// Call Reset on it to emit the warnings again.
func (i *Instance) Deprecations() *request.Deprecations {
	return i.deprecations
}

// Extend returns a new instance whose default layers are the layers of
// i followed by the layers of each of others, and whose middleware is
// concatenated in the same order. Scalars set by a later layer win,
// option groups merge key-wise, and hooks are concatenated. The logger,
// transport and deprecation state of i are kept.
func (i *Instance) Extend(others ...*Instance) *Instance {
	x := i.clone()
	for _, o := range others {
		if o == nil {
			continue
		}
		x.layers = append(x.layers, o.layers...)
		x.middleware = append(x.middleware, o.middleware...)
		if o.name != "" {
			x.name = o.name
		}
	}
	return build(x)
}

// With returns a new instance with o added as its last default layer.
func (i *Instance) With(o *request.Options) *Instance {
	x := i.clone()
	if o != nil {
		layer := o.Clone()
		layer.Hooks = layer.Hooks.Tag(i.name)
		x.layers = append(x.layers, layer)
	}
	return build(x)
}

// Use returns a new instance with m appended to its middleware.
func (i *Instance) Use(m ...Middleware) *Instance {
	x := i.clone()
	x.middleware = append(x.middleware, m...)
	return build(x)
}

func (i *Instance) clone() *Instance {
	return &Instance{
		name:         i.name,
		layers:       append([]*request.Options(nil), i.layers...),
		middleware:   append([]Middleware(nil), i.middleware...),
		logger:       i.logger,
		transport:    i.transport,
		deprecations: i.deprecations,
	}
}

// CloseIdleConnections closes the idle connections of the instance
// transport, if it supports it. Agents and transports supplied in
// request options are never touched.
func (i *Instance) CloseIdleConnections() {
	if ic, ok := i.transport.(IdleCloser); ok {
		ic.CloseIdleConnections()
	}
}

// Do makes a request and returns its final response. The options o
// are merged onto the instance defaults; o itself is never modified.
//
// The error, if any, is a *request.RequestError or one of the types
// embedding it. A request cancelled through ctx ends with a
// *request.CancelError.
func (i *Instance) Do(ctx context.Context, o *request.Options) (*request.Response, error) {
	return i.invoke(ctx, request.Merge(i.defaults, o))
}

// Go starts a request in a new goroutine and returns its Future.
func (i *Instance) Go(ctx context.Context, o *request.Options) *Future {
	ctx, cancel := context.WithCancel(ctx)
	f := &Future{
		done:   make(chan struct{}),
		cancel: cancel,
	}
	merged := request.Merge(i.defaults, o)
	go func() {
		defer cancel()
		f.resp, f.err = i.invoke(ctx, merged)
		close(f.done)
	}()
	return f
}

// Stream starts a request in a new goroutine and returns a Stream over
// its response body. AfterResponse hooks do not run, and redirects and
// retries are resolved when the response headers arrive, before any
// byte of the body is exposed.
func (i *Instance) Stream(ctx context.Context, o *request.Options) *Stream {
	l := newLifecycle(ctx, i, streamed)
	s := newStream(l.cancel)
	l.stream = s
	merged := request.Merge(i.defaults, o)
	stop := context.AfterFunc(ctx, func() { s.abort(context.Cause(ctx)) })
	go func() {
		_, err := l.run(merged)
		stop()
		s.finish(err)
	}()
	return s
}

func (i *Instance) execute(ctx context.Context, o *request.Options) (*request.Response, error) {
	return newLifecycle(ctx, i, buffered).run(o)
}
