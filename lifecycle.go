// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gotx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gogama/gotx/cache"
	"github.com/gogama/gotx/redirect"
	"github.com/gogama/gotx/request"
	"github.com/gogama/gotx/retry"
	"github.com/gogama/gotx/timeout"
	"github.com/gogama/gotx/transport"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// A State is a stage of the request lifecycle. Transitions are logged
// at debug level.
type State int

const (
	// Created is the state of a request whose options are captured.
	Created State = iota
	// Normalizing is the state in which options are normalized and
	// the Init hooks run.
	Normalizing
	// Dispatching is the state in which BeforeRequest hooks run and
	// the attempt is handed to the transport.
	Dispatching
	// AwaitingResponse is the state in which the response of the
	// current attempt arrives.
	AwaitingResponse
	// Redirecting is the state between a followed redirect and the
	// next attempt.
	Redirecting
	// Retrying is the state between a scheduled retry and the next
	// attempt.
	Retrying
	// Completed is the state of a request with a final response.
	Completed
	// Failed is the state in which BeforeError hooks run.
	Failed
	// Terminal is the final state of every request.
	Terminal
)

var stateNames = [...]string{
	"Created", "Normalizing", "Dispatching", "AwaitingResponse",
	"Redirecting", "Retrying", "Completed", "Failed", "Terminal",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "State(?)"
	}
	return stateNames[s]
}

type mode int

const (
	buffered mode = iota
	streamed
)

// An outcome is the result of one attempt.
type outcome int

const (
	completed outcome = iota
	redirected
	directed
	retryable
	fatal
)

// A lifecycle drives one request. It is owned by a single goroutine.
type lifecycle struct {
	inst   *Instance
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	mode   mode
	state  State
	e      *request.Execution

	first      *url.URL
	sent       bool
	redirectTo *request.Options
	parseErr   error

	// Streamed requests only.
	body   *inflight
	stream *Stream
}

func newLifecycle(ctx context.Context, inst *Instance, m mode) *lifecycle {
	ctx, cancel := context.WithCancel(ctx)
	id := newID()
	return &lifecycle{
		inst:   inst,
		log:    inst.logger.With().Str("component", "gotx").Str("request_id", id).Logger(),
		ctx:    ctx,
		cancel: cancel,
		mode:   m,
		e:      request.NewExecution(ctx, id, nil),
	}
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (l *lifecycle) transition(s State) {
	l.log.Debug().
		Stringer("from", l.state).
		Stringer("to", s).
		Int("attempt", l.e.Attempt).
		Msg("state")
	l.state = s
}

// run drives the request described by the merged options o to its
// terminal state. The request context is cancelled on return.
func (l *lifecycle) run(o *request.Options) (*request.Response, error) {
	defer l.cancel()
	e := l.e
	e.Start = time.Now()

	l.transition(Normalizing)
	n, err := request.Normalize(o)
	if err != nil {
		e.Err = err
		return nil, l.terminate()
	}
	e.Options = n
	l.inst.deprecations.Check(n)

	if err = n.Hooks.Run(request.Init, e); err != nil {
		e.Err = err
		return nil, l.fail()
	}
	if e.Response != nil {
		u, _ := e.Options.Target()
		l.first = u
		l.fill(e.Response, u)
		return l.done()
	}
	if e.Options, err = request.Normalize(e.Options); err != nil {
		e.Err = err
		return nil, l.fail()
	}

	for {
		if l.ctx.Err() != nil {
			return nil, l.canceled()
		}
		switch l.attempt() {
		case completed:
			return l.done()
		case redirected:
			if err = l.redirect(); err != nil {
				e.Err = err
				return nil, l.fail()
			}
		case directed:
			if err = l.directed(); err != nil {
				e.Err = err
				return nil, l.fail()
			}
		case retryable:
			if !l.retry() {
				return nil, l.fail()
			}
		case fatal:
			return nil, l.fail()
		}
	}
}

// terminate ends a request whose options could not be normalized. No
// hooks run, since none could be trusted.
func (l *lifecycle) terminate() error {
	l.e.End = time.Now()
	l.log.Debug().Err(l.e.Err).Msg("invalid options")
	l.transition(Terminal)
	return l.e.Err
}

// done completes the request, after exposing the body of a streamed
// response.
func (l *lifecycle) done() (*request.Response, error) {
	if l.mode == streamed {
		if err := l.pump(); err != nil {
			l.e.Err = err
			return nil, l.fail()
		}
	}
	return l.complete()
}

func (l *lifecycle) complete() (*request.Response, error) {
	e := l.e
	l.transition(Completed)
	e.End = time.Now()
	l.log.Debug().
		Int("status", e.Response.StatusCode).
		Int("retry_count", e.RetryCount).
		Dur("duration", e.Duration()).
		Msg("request completed")
	l.transition(Terminal)
	return e.Response, nil
}

// fail runs the BeforeError hooks and returns the final error. A
// cancelled request ends with a CancelError instead, and BeforeError
// does not run.
func (l *lifecycle) fail() error {
	if l.ctx.Err() != nil {
		return l.canceled()
	}
	e := l.e
	l.transition(Failed)
	e.Err = asRequestError(e.Err, e.Options, e.Response)
	_ = e.Options.Hooks.Run(request.BeforeError, e)
	e.End = time.Now()
	l.log.Debug().Err(e.Err).Int("retry_count", e.RetryCount).Msg("request failed")
	l.transition(Terminal)
	return e.Err
}

func (l *lifecycle) canceled() error {
	e := l.e
	e.Err = request.NewCancelError(context.Cause(l.ctx), e.Options)
	e.End = time.Now()
	l.log.Debug().Msg("request cancelled")
	l.transition(Terminal)
	return e.Err
}

func asRequestError(err error, o *request.Options, r *request.Response) error {
	var re *request.RequestError
	if !errors.As(err, &re) && errors.Is(err, request.ErrInvalidArgument) {
		return request.NewRequestError(request.CodeInvalidArgument, err.Error(), err, o, r)
	}
	return request.AsRequestError(err, o, r)
}

// attempt makes one attempt with a snapshot of the current options.
func (l *lifecycle) attempt() outcome {
	e := l.e
	e.Options = e.Options.Clone()
	e.Response = nil
	e.Err = nil
	l.parseErr = nil

	l.transition(Dispatching)
	if err := e.Options.Hooks.Run(request.BeforeRequest, e); err != nil {
		e.Err = err
		return fatal
	}
	o := e.Options
	target, err := o.Target()
	if err != nil {
		e.Err = asRequestError(err, o, nil)
		return fatal
	}
	if l.first == nil {
		l.first = target
	}
	rec := request.Attempt{
		Index:     e.Attempt,
		Options:   o,
		URL:       target,
		Redirects: len(e.RedirectURLs),
		Start:     time.Now(),
	}

	if e.Response != nil {
		rec.Synthetic = true
		l.fill(e.Response, target)
		return l.settle(&rec)
	}

	var stored *cache.Entry
	if l.mode == buffered && o.Cache != nil && cache.Cacheable(o.Method) {
		stored = l.lookup(o)
		if stored != nil && stored.Fresh(time.Now()) {
			rec.Synthetic = true
			e.Response = l.cached(stored, target)
			return l.settle(&rec)
		}
	}

	l.log.Debug().Str("method", o.Method).Str("url", o.URL).Msg("dispatching attempt")
	f, err := l.dispatch(o, target, stored)
	if err != nil {
		e.Err = err
		l.record(&rec)
		return retryable
	}

	if l.mode == streamed {
		e.Response = f.resp
		rec.StatusCode = f.resp.StatusCode
		l.record(&rec)
		out := l.resolve()
		if out == completed {
			l.body = f
		} else {
			f.close()
		}
		return out
	}

	err = l.readBody(f)
	f.close()
	if err != nil {
		e.Response = f.resp
		e.Err = err
		l.record(&rec)
		return retryable
	}
	r := f.resp
	if stored != nil && r.StatusCode == http.StatusNotModified {
		r = l.revalidate(o, stored, r)
	} else if !r.IsFromCache {
		l.store(o, r)
	}
	e.Response = r
	return l.settle(&rec)
}

// settle records a buffered attempt with a complete response, runs the
// AfterResponse hooks, and resolves the outcome.
func (l *lifecycle) settle(rec *request.Attempt) outcome {
	e := l.e
	o := e.Options
	rec.StatusCode = e.Response.StatusCode
	l.record(rec)

	if l.mode == buffered {
		l.decode(e.Response, o)
		if err := o.Hooks.Run(request.AfterResponse, e); err != nil {
			e.Err = err
			return fatal
		}
		if _, _, ok := e.Directive(); ok {
			return directed
		}
		if e.Response == nil {
			e.Err = errors.New("the response was removed by an afterResponse hook")
			return fatal
		}
	}
	return l.resolve()
}

// resolve picks the outcome of an attempt with a response: redirect,
// HTTP error, parse error, or completion.
func (l *lifecycle) resolve() outcome {
	e := l.e
	o := e.Options
	r := e.Response

	next, err := redirect.Resolve(o, r, len(e.RedirectURLs), l.sent)
	if err != nil {
		e.Err = err
		return fatal
	}
	if next != nil {
		l.redirectTo = next
		return redirected
	}
	if o.ThrowsHTTPErrors() && !r.OK(o.FollowsRedirects()) {
		e.Err = request.NewHTTPError(r, o)
		return retryable
	}
	if l.parseErr != nil {
		e.Err = l.parseErr
		return retryable
	}
	return completed
}

// decode parses a JSON body of an accepted response into Decoded.
func (l *lifecycle) decode(r *request.Response, o *request.Options) {
	if o.ResponseType != request.ResponseJSON || len(r.Body) == 0 || r.Decoded != nil {
		return
	}
	if !r.OK(o.FollowsRedirects()) {
		return
	}
	if err := json.Unmarshal(r.Body, &r.Decoded); err != nil {
		r.Decoded = nil
		l.parseErr = request.NewParseError(err, r)
	}
}

func (l *lifecycle) record(rec *request.Attempt) {
	rec.End = time.Now()
	rec.Err = l.e.Err
	l.e.Record(*rec)
}

// fill sets the metadata of r which its producer left empty.
func (l *lifecycle) fill(r *request.Response, u *url.URL) {
	e := l.e
	if r.URL == nil {
		r.URL = u
	}
	if r.RequestURL == nil {
		r.RequestURL = l.first
	}
	if r.RedirectURLs == nil && len(e.RedirectURLs) > 0 {
		r.RedirectURLs = append([]*url.URL(nil), e.RedirectURLs...)
	}
	if r.RetryCount == 0 {
		r.RetryCount = e.RetryCount
	}
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	if r.Options() == nil {
		r.SetOptions(e.Options)
	}
}

func (l *lifecycle) redirect() error {
	e := l.e
	next := l.redirectTo
	l.redirectTo = nil
	u, err := next.Target()
	if err != nil {
		return err
	}

	l.transition(Redirecting)
	l.log.Debug().
		Int("status", e.Response.StatusCode).
		Str("location", next.URL).
		Msg("following redirect")
	e.RedirectURLs = append(e.RedirectURLs, u)
	e.Attempt++
	e.Options = next
	return next.Hooks.Run(request.BeforeRedirect, e)
}

// directed prepares the attempt requested by an AfterResponse hook. The
// hook which asked for it, and the hooks after it, no longer run.
func (l *lifecycle) directed() error {
	e := l.e
	overrides, index, _ := e.Directive()
	e.ClearDirective()

	next := request.Merge(e.Options, overrides)
	next.Hooks = next.Hooks.Truncate(request.AfterResponse, index)
	n, err := request.Normalize(next)
	if err != nil {
		return err
	}

	l.transition(Retrying)
	e.RetryCount++
	e.Attempt++
	e.Options = n
	e.Err = nil
	l.log.Debug().Int("retry_count", e.RetryCount).Msg("retry requested by hook")
	return n.Hooks.Run(request.BeforeRetry, e)
}

// retry consults the retry policy about the failure in e.Err and, if a
// retry is due, waits for the delay and runs the BeforeRetry hooks. It
// reports whether a new attempt should be made.
func (l *lifecycle) retry() bool {
	e := l.e
	d, err := retry.Evaluate(retry.For(e.Options.Retry), e)
	if err != nil {
		e.Err = err
		return false
	}
	if !d.Retry {
		return false
	}

	l.transition(Retrying)
	l.log.Debug().
		Err(e.Err).
		Dur("delay", d.Delay).
		Int("retry_count", e.RetryCount+1).
		Msg("retry scheduled")
	t := time.NewTimer(d.Delay)
	select {
	case <-t.C:
	case <-l.ctx.Done():
		t.Stop()
		return false
	}

	e.RetryCount++
	e.Attempt++
	if err = e.Options.Hooks.Run(request.BeforeRetry, e); err != nil {
		e.Err = err
		return false
	}
	return true
}

// An inflight is an attempt handed to the transport.
type inflight struct {
	o       *request.Options
	h       transport.Handle
	tracker *timeout.Tracker
	resp    *request.Response
	headers bool
	wrote   error
}

func (f *inflight) close() {
	f.tracker.Stop()
	f.h.Abort()
}

// dispatch starts the attempt and waits for the response headers.
func (l *lifecycle) dispatch(o *request.Options, target *url.URL, stored *cache.Entry) (*inflight, error) {
	req := &transport.Request{
		Method:        o.Method,
		URL:           target,
		Header:        o.Header.Clone(),
		ContentLength: -1,
		Agent:         o.AgentFor(target.Scheme),
	}
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	p, err := o.Payload()
	if err != nil {
		return nil, request.NewUploadError(err, o)
	}
	if p != nil {
		if l.sent && !o.Replayable() {
			return nil, request.NewUploadError(request.ErrBodyNotReplayable, o)
		}
		req.Body, req.GetBody, req.ContentLength = p.Reader, p.GetBody, p.Length
	}
	if stored != nil && stored.HasValidators() {
		stored.Conditional(req.Header)
	}
	if req.Agent == nil {
		tc, err := o.HTTPS.TLSConfig()
		if err != nil {
			return nil, asRequestError(err, o, nil)
		}
		req.Config = transport.Config{
			HTTP2:      flag(o.HTTP2, false),
			Decompress: flag(o.Decompress, true),
			Network:    network(o.Family()),
			TLS:        tc,
			TLSKey:     o.HTTPS.Fingerprint(),
		}
	}

	tr := o.Transport
	if tr == nil {
		tr = l.inst.transport
	}
	f := &inflight{
		o:       o,
		tracker: timeout.Start(o.Timeout),
		resp:    &request.Response{},
	}
	f.resp.Timings.Start = time.Now()
	h, err := tr.Start(l.ctx, req)
	if err != nil {
		f.tracker.Stop()
		return nil, request.AsRequestError(err, o, nil)
	}
	f.h = h
	if p != nil {
		l.sent = true
		l.e.MarkBodySent()
	}

	l.transition(AwaitingResponse)
	ev, err := l.await(f)
	if err != nil {
		f.close()
		return nil, err
	}
	if ev.Kind != transport.Headers {
		f.close()
		return nil, request.AsRequestError(io.ErrUnexpectedEOF, o, nil)
	}
	r := f.resp
	r.StatusCode = ev.Response.StatusCode
	r.StatusMessage = ev.Response.Reason
	r.Proto = ev.Response.Proto
	r.Header = ev.Response.Header
	r.Timings.Response = ev.Time
	f.headers = true
	l.fill(r, target)
	return f, nil
}

// await returns the next Headers, Chunk or End event of the attempt,
// recording the phase marks on the way. It fails on a transport error,
// a timeout, or cancellation.
func (l *lifecycle) await(f *inflight) (transport.Event, error) {
	t := &f.resp.Timings
	for {
		select {
		case ev, ok := <-f.h.Events():
			if !ok {
				return transport.Event{}, l.attemptError(f, io.ErrUnexpectedEOF)
			}
			f.tracker.Observe(ev)
			switch ev.Kind {
			case transport.DNSDone:
				t.Lookup = ev.Time
			case transport.ConnectDone:
				t.Connect = ev.Time
			case transport.TLSDone:
				t.SecureConnect = ev.Time
			case transport.Socket:
				t.Socket = ev.Time
				f.resp.IP = remoteIP(ev.Addr)
			case transport.Wrote:
				t.Upload = ev.Time
				f.wrote = ev.Err
			case transport.Headers, transport.Chunk:
				return ev, nil
			case transport.End:
				t.End = ev.Time
				t.Compute()
				return ev, nil
			case transport.Error:
				t.End = ev.Time
				t.Compute()
				return transport.Event{}, l.attemptError(f, ev.Err)
			}
		case x := <-f.tracker.Expired():
			var r *request.Response
			if f.headers {
				r = f.resp
			}
			return transport.Event{}, x.Err(f.o, r)
		case <-l.ctx.Done():
			return transport.Event{}, context.Cause(l.ctx)
		}
	}
}

func (l *lifecycle) attemptError(f *inflight, err error) error {
	switch {
	case l.ctx.Err() != nil:
		return context.Cause(l.ctx)
	case f.headers:
		return request.NewReadError(err, f.o, f.resp)
	case f.wrote != nil:
		return request.NewUploadError(f.wrote, f.o)
	default:
		return request.AsRequestError(err, f.o, nil)
	}
}

func (l *lifecycle) readBody(f *inflight) error {
	var buf bytes.Buffer
	for {
		ev, err := l.await(f)
		if err != nil {
			return err
		}
		switch ev.Kind {
		case transport.Chunk:
			buf.Write(ev.Data)
		case transport.End:
			f.resp.Body = buf.Bytes()
			if f.resp.Body == nil {
				f.resp.Body = []byte{}
			}
			return nil
		}
	}
}

// pump copies the body of a streamed response into the stream. A
// synthetic response has its body already.
func (l *lifecycle) pump() error {
	f := l.body
	if f == nil {
		r := l.e.Response
		l.stream.publish(r)
		if len(r.Body) > 0 {
			if _, err := l.stream.pw.Write(r.Body); err != nil {
				return err
			}
		}
		return l.stream.pw.Close()
	}
	defer f.close()
	l.stream.publish(f.resp)
	for {
		ev, err := l.await(f)
		if err != nil {
			return err
		}
		switch ev.Kind {
		case transport.Chunk:
			if _, err = l.stream.pw.Write(ev.Data); err != nil {
				return err
			}
		case transport.End:
			return l.stream.pw.Close()
		}
	}
}

func (l *lifecycle) lookup(o *request.Options) *cache.Entry {
	entry, err := o.Cache.Get(l.ctx, cache.Key(o.Method, o.URL))
	if err != nil {
		l.log.Warn().Err(err).Msg("cache lookup failed")
		return nil
	}
	return entry
}

func (l *lifecycle) cached(entry *cache.Entry, u *url.URL) *request.Response {
	now := time.Now()
	r := &request.Response{
		StatusCode:    entry.StatusCode,
		StatusMessage: entry.StatusMessage,
		Header:        entry.Header.Clone(),
		Body:          entry.Body,
		IsFromCache:   true,
	}
	r.Timings.Start = now
	r.Timings.End = now
	r.Timings.Compute()
	l.fill(r, u)
	return r
}

func (l *lifecycle) store(o *request.Options, r *request.Response) {
	if o.Cache == nil {
		return
	}
	entry := cache.NewEntry(o.Method, o.URL, r.StatusCode, r.StatusMessage, r.Header, r.Body, time.Now())
	if entry == nil {
		return
	}
	if err := o.Cache.Set(l.ctx, cache.Key(o.Method, o.URL), entry); err != nil {
		l.log.Warn().Err(err).Msg("cache store failed")
	}
}

// revalidate merges a 304 response into the stored entry it validated.
func (l *lifecycle) revalidate(o *request.Options, stored *cache.Entry, r *request.Response) *request.Response {
	entry := stored.Revalidated(r.Header, time.Now())
	if err := o.Cache.Set(l.ctx, cache.Key(o.Method, o.URL), entry); err != nil {
		l.log.Warn().Err(err).Msg("cache store failed")
	}
	merged := l.cached(entry, r.URL)
	merged.Proto = r.Proto
	merged.IP = r.IP
	merged.Timings = r.Timings
	return merged
}

func flag(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func network(family int) string {
	switch family {
	case 4:
		return "ip4"
	case 6:
		return "ip6"
	default:
		return "ip"
	}
}

func remoteIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
