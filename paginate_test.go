// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gotx

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gogama/gotx/request"
	"github.com/gogama/gotx/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linkedPages serves pages of two items each, linked with a Link
// header, up to last.
func linkedPages(last int) *fakeTransport {
	return &fakeTransport{script: func(_ int, req *transport.Request) []transport.Event {
		page := 1
		if p := req.URL.Query().Get("page"); p != "" {
			_, _ = fmt.Sscanf(p, "%d", &page)
		}
		h := http.Header{}
		if page < last {
			h.Set("Link", fmt.Sprintf(`<https://example.com/items?page=%d>; rel="next", <https://example.com/items?page=1>; rel="first"`, page+1))
		}
		return reply(200, h, fmt.Sprintf("[%d,%d]", 2*page-1, 2*page))
	}}
}

func collect(t *testing.T, p *Pages) []interface{} {
	t.Helper()
	var items []interface{}
	for p.Next() {
		items = append(items, p.Item())
	}
	require.NoError(t, p.Err())
	return items
}

func TestPaginate(t *testing.T) {
	t.Run("Link header", func(t *testing.T) {
		f := linkedPages(3)
		items := collect(t, newFakeInstance(f, nil).Paginate(context.Background(), &request.Options{
			URL: "https://example.com/items",
		}))
		assert.Equal(t, []interface{}{1.0, 2.0, 3.0, 4.0, 5.0, 6.0}, items)
		assert.Equal(t, 3, f.starts())
		assert.Equal(t, "https://example.com/items?page=3", f.request(2).URL.String())
	})
	t.Run("k+1 pages with hooks once per page", func(t *testing.T) {
		const k = 3
		f := &fakeTransport{script: always(func() []transport.Event { return reply(200, nil, `["x"]`) })}
		var beforeRequest, afterResponse, paginate int
		var hooks request.Hooks
		hooks.PushBack(request.BeforeRequest, hook(func(*request.Execution) error {
			beforeRequest++
			return nil
		}))
		hooks.PushBack(request.AfterResponse, hook(func(*request.Execution) error {
			afterResponse++
			return nil
		}))
		inst := newFakeInstance(f, &request.Options{Hooks: hooks})
		items := collect(t, inst.Paginate(context.Background(), &request.Options{
			URL: "https://example.com/items",
			Pagination: request.Pagination{
				Paginate: func(st request.PageState) (*request.Options, error) {
					paginate++
					if paginate > k {
						return nil, nil
					}
					return &request.Options{SearchParams: map[string][]string{"page": {fmt.Sprint(paginate + 1)}}}, nil
				},
			},
		}))
		assert.Len(t, items, k+1)
		assert.Equal(t, k+1, f.starts())
		assert.Equal(t, k+1, beforeRequest)
		assert.Equal(t, k+1, afterResponse)
		assert.Equal(t, "https://example.com/items?page=4", f.request(3).URL.String())
	})
	t.Run("own options reused", func(t *testing.T) {
		f := &fakeTransport{script: always(func() []transport.Event { return reply(200, nil, `[1]`) })}
		var hooks request.Hooks
		var calls int
		hooks.PushBack(request.BeforeRequest, hook(func(*request.Execution) error {
			calls++
			return nil
		}))
		pages := 0
		items := collect(t, newFakeInstance(f, &request.Options{Hooks: hooks}).Paginate(context.Background(), &request.Options{
			URL: "https://example.com/items",
			Pagination: request.Pagination{
				Paginate: func(st request.PageState) (*request.Options, error) {
					pages++
					if pages == 3 {
						return nil, nil
					}
					return st.Response.Options(), nil
				},
			},
		}))
		assert.Len(t, items, 3)
		assert.Equal(t, 3, calls)
	})
	t.Run("hooks restored after a hook retry", func(t *testing.T) {
		pages := linkedPages(3)
		f := &fakeTransport{script: func(n int, req *transport.Request) []transport.Event {
			if req.Header.Get("Authorization") == "" {
				return reply(401, nil, "")
			}
			return pages.script(n, req)
		}}
		var afterResponse int
		o := &request.Options{URL: "https://example.com/items"}
		o.Hooks.PushBack(request.AfterResponse, hook(func(e *request.Execution) error {
			afterResponse++
			if e.Response.StatusCode == 401 {
				e.Retry(&request.Options{Header: http.Header{"Authorization": {"Bearer token"}}})
			}
			return nil
		}))
		items := collect(t, newFakeInstance(f, nil).Paginate(context.Background(), o))
		assert.Len(t, items, 6)
		assert.Equal(t, 4, f.starts())
		assert.Equal(t, 3, afterResponse)
		assert.Equal(t, "Bearer token", f.request(3).Header.Get("Authorization"))
	})
	t.Run("Filter and ShouldContinue", func(t *testing.T) {
		f := linkedPages(5)
		items := collect(t, newFakeInstance(f, nil).Paginate(context.Background(), &request.Options{
			URL: "https://example.com/items",
			Pagination: request.Pagination{
				Filter: func(st request.PageState) bool {
					return int(st.Item.(float64))%2 == 0
				},
				ShouldContinue: func(st request.PageState) bool {
					return st.Item.(float64) < 7
				},
			},
		}))
		assert.Equal(t, []interface{}{2.0, 4.0, 6.0}, items)
		assert.Equal(t, 4, f.starts())
	})
	t.Run("CountLimit", func(t *testing.T) {
		f := linkedPages(10)
		items := collect(t, newFakeInstance(f, nil).Paginate(context.Background(), &request.Options{
			URL:        "https://example.com/items",
			Pagination: request.Pagination{CountLimit: 3},
		}))
		assert.Equal(t, []interface{}{1.0, 2.0, 3.0}, items)
		assert.Equal(t, 2, f.starts())
	})
	t.Run("RequestLimit", func(t *testing.T) {
		f := linkedPages(10)
		items := collect(t, newFakeInstance(f, nil).Paginate(context.Background(), &request.Options{
			URL:        "https://example.com/items",
			Pagination: request.Pagination{RequestLimit: 2},
		}))
		assert.Len(t, items, 4)
		assert.Equal(t, 2, f.starts())
	})
	t.Run("StackAllItems", func(t *testing.T) {
		f := linkedPages(2)
		var seen []int
		collect(t, newFakeInstance(f, nil).Paginate(context.Background(), &request.Options{
			URL: "https://example.com/items",
			Pagination: request.Pagination{
				StackAllItems: request.Bool(true),
				Filter: func(st request.PageState) bool {
					seen = append(seen, len(st.AllItems))
					return true
				},
			},
		}))
		assert.Equal(t, []int{0, 1, 2, 3}, seen)
	})
	t.Run("Backoff", func(t *testing.T) {
		f := linkedPages(3)
		start := time.Now()
		collect(t, newFakeInstance(f, nil).Paginate(context.Background(), &request.Options{
			URL:        "https://example.com/items",
			Pagination: request.Pagination{Backoff: 20 * time.Millisecond},
		}))
		assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	})
	t.Run("Transform", func(t *testing.T) {
		f := &fakeTransport{script: always(func() []transport.Event { return reply(200, nil, `{"data":["a","b"]}`) })}
		items := collect(t, newFakeInstance(f, nil).Paginate(context.Background(), &request.Options{
			URL:          "https://example.com/items",
			ResponseType: request.ResponseJSON,
			Pagination: request.Pagination{
				Transform: func(r *request.Response) ([]interface{}, error) {
					return r.Decoded.(map[string]interface{})["data"].([]interface{}), nil
				},
			},
		}))
		assert.Equal(t, []interface{}{"a", "b"}, items)
	})
	t.Run("errors", func(t *testing.T) {
		t.Run("request", func(t *testing.T) {
			f := &fakeTransport{script: always(func() []transport.Event { return reply(500, nil, "") })}
			p := newFakeInstance(f, nil).Paginate(context.Background(), &request.Options{
				URL:   "https://example.com/items",
				Retry: request.Retry{Limit: request.Int(0)},
			})
			assert.False(t, p.Next())
			var he *request.HTTPError
			assert.ErrorAs(t, p.Err(), &he)
			assert.False(t, p.Next())
		})
		t.Run("not an array", func(t *testing.T) {
			f := &fakeTransport{script: always(func() []transport.Event { return reply(200, nil, `{}`) })}
			p := newFakeInstance(f, nil).Paginate(context.Background(), &request.Options{URL: "https://example.com/items"})
			assert.False(t, p.Next())
			var pe *request.ParseError
			assert.ErrorAs(t, p.Err(), &pe)
		})
		t.Run("cancelled during backoff", func(t *testing.T) {
			f := linkedPages(3)
			ctx, cancel := context.WithCancel(context.Background())
			p := newFakeInstance(f, nil).Paginate(ctx, &request.Options{
				URL:        "https://example.com/items",
				Pagination: request.Pagination{Backoff: time.Hour},
			})
			require.True(t, p.Next())
			require.True(t, p.Next())
			time.AfterFunc(20*time.Millisecond, cancel)
			assert.False(t, p.Next())
			var ce *request.CancelError
			assert.ErrorAs(t, p.Err(), &ce)
			assert.Equal(t, 1, f.starts())
		})
	})
}

func TestAll(t *testing.T) {
	f := linkedPages(2)
	inst := newFakeInstance(f, nil)
	t.Run("converted", func(t *testing.T) {
		items, err := All[int](context.Background(), inst, &request.Options{URL: "https://example.com/items"})
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3, 4}, items)
	})
	t.Run("asserted", func(t *testing.T) {
		items, err := All[float64](context.Background(), inst, &request.Options{URL: "https://example.com/items"})
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 2, 3, 4}, items)
	})
	t.Run("not convertible", func(t *testing.T) {
		_, err := All[string](context.Background(), inst, &request.Options{URL: "https://example.com/items"})
		var pe *request.ParseError
		assert.ErrorAs(t, err, &pe)
	})
}

func TestNextLink(t *testing.T) {
	testCases := []struct {
		link   string
		target string
		ok     bool
	}{
		{`<https://a/2>; rel="next"`, "https://a/2", true},
		{`<https://a/2>; rel=next`, "https://a/2", true},
		{` </p/3> ; rel="prev next"`, "/p/3", true},
		{`<https://a/1>; rel="first"`, "", false},
		{`https://a/2; rel="next"`, "", false},
		{`<https://a/2>`, "", false},
	}
	for _, testCase := range testCases {
		t.Run(testCase.link, func(t *testing.T) {
			target, ok := nextLink(testCase.link)
			assert.Equal(t, testCase.ok, ok)
			assert.Equal(t, testCase.target, target)
		})
	}
}
