// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package tracing records an OpenTelemetry span for every attempt of a
// request. The instrumentation is a group of hook handlers which can be
// installed on any Instance or call site.
//
// Each span starts when the attempt is dispatched and ends when its
// outcome is known: a complete response, a retry or redirect, a
// failure, or the end of the request. The trace context is injected
// into the request headers of every attempt.
package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/gogama/gotx/request"
	"github.com/gogama/gotx/transient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/gogama/gotx/tracing"

// Tracer creates attempt spans.
type Tracer struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// Option configures a Tracer.
type Option func(*Tracer)

// WithTracerProvider sets the provider spans are created from. The
// default is the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(t *Tracer) {
		t.tracer = tp.Tracer(tracerName)
	}
}

// WithPropagator sets the propagator which injects the trace context
// into request headers. The default is the global propagator.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(t *Tracer) {
		t.propagator = p
	}
}

// New returns a Tracer.
func New(opts ...Option) *Tracer {
	t := &Tracer{
		tracer:     otel.Tracer(tracerName),
		propagator: otel.GetTextMapPropagator(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type spanKey struct{}

// Hooks returns the hook group which records the spans.
func (t *Tracer) Hooks() request.Hooks {
	var h request.Hooks
	h.PushBackFrom(request.BeforeRequest, request.HandlerFunc(t.beforeRequest), "tracing")
	h.PushBackFrom(request.BeforeRetry, request.HandlerFunc(t.beforeRetry), "tracing")
	h.PushBackFrom(request.BeforeRedirect, request.HandlerFunc(t.beforeRedirect), "tracing")
	h.PushBackFrom(request.AfterResponse, request.HandlerFunc(t.afterResponse), "tracing")
	h.PushBackFrom(request.BeforeError, request.HandlerFunc(t.beforeError), "tracing")
	return h
}

func (t *Tracer) beforeRequest(_ request.Event, e *request.Execution) error {
	endSpan(e, nil)

	o := e.Options
	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", o.Method),
		attribute.String("url.full", o.URL),
		attribute.Int("gotx.attempt", e.Attempt),
		attribute.Int("gotx.retry_count", e.RetryCount),
		attribute.String("gotx.request_id", e.ID),
	}
	if u, err := url.Parse(o.URL); err == nil {
		attrs = append(attrs, attribute.String("server.address", u.Hostname()))
	}

	ctx, span := t.tracer.Start(e.Context(), "HTTP "+o.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...))
	context.AfterFunc(e.Context(), func() { span.End() })

	if o.Header == nil {
		o.Header = make(http.Header)
	}
	t.propagator.Inject(ctx, propagation.HeaderCarrier(o.Header))
	e.SetValue(spanKey{}, span)
	return nil
}

func (t *Tracer) beforeRetry(_ request.Event, e *request.Execution) error {
	endSpan(e, e.Err)
	return nil
}

func (t *Tracer) beforeRedirect(_ request.Event, e *request.Execution) error {
	endSpan(e, nil)
	return nil
}

func (t *Tracer) afterResponse(_ request.Event, e *request.Execution) error {
	span, ok := e.Value(spanKey{}).(trace.Span)
	if !ok || e.Response == nil {
		return nil
	}
	span.SetAttributes(
		attribute.Int("http.response.status_code", e.Response.StatusCode),
		attribute.Bool("gotx.from_cache", e.Response.IsFromCache),
	)
	if e.Response.StatusCode >= 500 {
		span.SetStatus(codes.Error, e.Response.Message())
	}
	return nil
}

func (t *Tracer) beforeError(_ request.Event, e *request.Execution) error {
	endSpan(e, e.Err)
	return nil
}

func endSpan(e *request.Execution, err error) {
	span, ok := e.Value(spanKey{}).(trace.Span)
	if !ok || !span.IsRecording() {
		return
	}
	if e.Response != nil {
		span.SetAttributes(attribute.Int("http.response.status_code", e.Response.StatusCode))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var re *request.RequestError
		if errors.As(err, &re) {
			span.SetAttributes(attribute.String("error.type", re.Code))
		}
		if c := transient.Categorize(err); c != transient.Not {
			span.SetAttributes(attribute.String("gotx.error.category", c.String()))
		}
	}
	span.End()
}
