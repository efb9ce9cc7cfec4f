// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/gogama/gotx/request"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg, "")
	h := c.Hooks()
	assert.Equal(t, []string{"metrics"}, h.Origins(request.BeforeRequest))

	e := request.NewExecution(context.Background(), "id", &request.Options{
		Method: "GET",
		URL:    "https://api.test/x",
	})

	require.NoError(t, h.Run(request.BeforeRequest, e))
	require.NoError(t, h.Run(request.BeforeRetry, e))
	require.NoError(t, h.Run(request.BeforeRequest, e))
	require.NoError(t, h.Run(request.BeforeRedirect, e))

	e.Response = &request.Response{StatusCode: 200}
	e.Response.Timings.Phases.Total = 20 * time.Millisecond
	require.NoError(t, h.Run(request.AfterResponse, e))
	e.Response = &request.Response{StatusCode: 200, IsFromCache: true}
	require.NoError(t, h.Run(request.AfterResponse, e))

	e.Err = request.NewHTTPError(&request.Response{StatusCode: 500}, e.Options)
	require.NoError(t, h.Run(request.BeforeError, e))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.attempts.WithLabelValues("GET", "api.test")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.retries.WithLabelValues("GET", "api.test")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.redirects.WithLabelValues("GET", "api.test")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.responses.WithLabelValues("GET", "api.test", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheHits.WithLabelValues("GET", "api.test")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.errors.WithLabelValues("GET", "api.test", request.CodeHTTPError)))
	assert.Equal(t, 1, testutil.CollectAndCount(c.duration))

	n, err := testutil.GatherAndCount(reg, "gotx_attempts_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCollector_Namespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg, "svc")
	e := request.NewExecution(context.Background(), "id", &request.Options{Method: "GET", URL: "http://h/"})
	require.NoError(t, c.Hooks().Run(request.BeforeRequest, e))
	n, err := testutil.GatherAndCount(reg, "svc_attempts_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCollector_UnknownError(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry(), "")
	e := request.NewExecution(context.Background(), "id", nil)
	e.Err = context.Canceled
	require.NoError(t, c.Hooks().Run(request.BeforeError, e))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.errors.WithLabelValues("", "", "unknown")))
}
