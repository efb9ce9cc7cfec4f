// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package metrics instruments requests with Prometheus metrics. The
// instrumentation is a group of hook handlers which can be installed
// on any Instance or call site.
package metrics

import (
	"errors"
	"net/url"
	"strconv"

	"github.com/gogama/gotx/request"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the request metrics. It is safe for concurrent use.
type Collector struct {
	attempts  *prometheus.CounterVec
	responses *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	retries   *prometheus.CounterVec
	redirects *prometheus.CounterVec
	errors    *prometheus.CounterVec
	cacheHits *prometheus.CounterVec
}

// NewCollector creates a Collector whose metrics are registered with
// registerer. The metric names start with namespace, or "gotx" if
// namespace is empty.
func NewCollector(registerer prometheus.Registerer, namespace string) *Collector {
	if namespace == "" {
		namespace = "gotx"
	}
	f := promauto.With(registerer)
	return &Collector{
		attempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempts_total",
				Help:      "Total number of request attempts dispatched",
			},
			[]string{"method", "host"},
		),
		responses: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "responses_total",
				Help:      "Total number of complete responses received",
			},
			[]string{"method", "host", "status_code"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "attempt_duration_seconds",
				Help:      "Duration of request attempts which received a complete response",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "host"},
		),
		retries: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Total number of retries",
			},
			[]string{"method", "host"},
		),
		redirects: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "redirects_total",
				Help:      "Total number of redirects followed",
			},
			[]string{"method", "host"},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of failed requests, by error code",
			},
			[]string{"method", "host", "code"},
		),
		cacheHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of responses served from the response cache",
			},
			[]string{"method", "host"},
		),
	}
}

// Hooks returns the hook group which feeds the collector.
func (c *Collector) Hooks() request.Hooks {
	var h request.Hooks
	h.PushBackFrom(request.BeforeRequest, request.HandlerFunc(c.beforeRequest), "metrics")
	h.PushBackFrom(request.BeforeRetry, request.HandlerFunc(c.beforeRetry), "metrics")
	h.PushBackFrom(request.BeforeRedirect, request.HandlerFunc(c.beforeRedirect), "metrics")
	h.PushBackFrom(request.AfterResponse, request.HandlerFunc(c.afterResponse), "metrics")
	h.PushBackFrom(request.BeforeError, request.HandlerFunc(c.beforeError), "metrics")
	return h
}

func (c *Collector) beforeRequest(_ request.Event, e *request.Execution) error {
	c.attempts.WithLabelValues(labels(e)...).Inc()
	return nil
}

func (c *Collector) beforeRetry(_ request.Event, e *request.Execution) error {
	c.retries.WithLabelValues(labels(e)...).Inc()
	return nil
}

func (c *Collector) beforeRedirect(_ request.Event, e *request.Execution) error {
	c.redirects.WithLabelValues(labels(e)...).Inc()
	return nil
}

func (c *Collector) afterResponse(_ request.Event, e *request.Execution) error {
	r := e.Response
	if r == nil {
		return nil
	}
	l := labels(e)
	method, host := l[0], l[1]
	if r.IsFromCache {
		c.cacheHits.WithLabelValues(method, host).Inc()
		return nil
	}
	c.responses.WithLabelValues(method, host, strconv.Itoa(r.StatusCode)).Inc()
	if total := r.Timings.Phases.Total; total > 0 {
		c.duration.WithLabelValues(method, host).Observe(total.Seconds())
	}
	return nil
}

func (c *Collector) beforeError(_ request.Event, e *request.Execution) error {
	code := "unknown"
	var re *request.RequestError
	if errors.As(e.Err, &re) && re.Code != "" {
		code = re.Code
	}
	c.errors.WithLabelValues(append(labels(e), code)...).Inc()
	return nil
}

func labels(e *request.Execution) []string {
	if e.Options == nil {
		return []string{"", ""}
	}
	host := ""
	if u, err := url.Parse(e.Options.URL); err == nil {
		host = u.Host
	}
	return []string{e.Options.Method, host}
}
