// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge(t *testing.T) {
	t.Run("scalars last wins", func(t *testing.T) {
		m := Merge(
			&Options{Method: "GET", URL: "a", FollowRedirect: Bool(true), MaxRedirects: Int(5)},
			nil,
			&Options{Method: "POST", FollowRedirect: Bool(false)},
		)
		assert.Equal(t, "POST", m.Method)
		assert.Equal(t, "a", m.URL)
		assert.False(t, *m.FollowRedirect)
		assert.Equal(t, 5, *m.MaxRedirects)
	})
	t.Run("explicit zero survives", func(t *testing.T) {
		m := Merge(&Options{MaxRedirects: Int(5)}, &Options{MaxRedirects: Int(0)})
		assert.Equal(t, 0, m.RedirectLimit())
	})
	t.Run("header case-insensitive", func(t *testing.T) {
		m := Merge(
			&Options{Header: http.Header{"X-Token": {"parent"}}},
			&Options{Header: http.Header{"x-token": {"child"}}},
		)
		assert.Equal(t, http.Header{"X-Token": {"child"}}, m.Header)
	})
	t.Run("empty list clears", func(t *testing.T) {
		m := Merge(Defaults(), &Options{Retry: Retry{StatusCodes: []int{}, Methods: []string{}}})
		assert.NotNil(t, m.Retry.StatusCodes)
		assert.Empty(t, m.Retry.StatusCodes)
		assert.NotNil(t, m.Retry.Methods)
		assert.Empty(t, m.Retry.Methods)

		c := (&Options{Retry: Retry{ErrorCodes: []string{}}}).Clone()
		assert.NotNil(t, c.Retry.ErrorCodes)
		assert.Nil(t, (&Options{}).Clone().Retry.ErrorCodes)
	})
	t.Run("groups key-wise", func(t *testing.T) {
		m := Merge(
			&Options{
				Header:       http.Header{"A": {"1"}, "B": {"2"}},
				SearchParams: url.Values{"x": {"1"}},
				Context:      map[string]interface{}{"k1": 1},
				Timeout:      Timeouts{Request: time.Second, Send: time.Millisecond},
				Retry:        Retry{Limit: Int(3), Methods: []string{"GET"}},
				HTTPS:        HTTPS{RejectUnauthorized: Bool(false), Key: []byte("k")},
			},
			&Options{
				Header:       http.Header{"B": {"3"}},
				SearchParams: url.Values{"y": {"2"}},
				Context:      map[string]interface{}{"k2": 2},
				Timeout:      Timeouts{Request: 2 * time.Second},
				Retry:        Retry{StatusCodes: []int{500}},
				HTTPS:        HTTPS{Certificate: []byte("c")},
			},
		)
		assert.Equal(t, http.Header{"A": {"1"}, "B": {"3"}}, m.Header)
		assert.Equal(t, url.Values{"x": {"1"}, "y": {"2"}}, m.SearchParams)
		assert.Equal(t, map[string]interface{}{"k1": 1, "k2": 2}, m.Context)
		assert.Equal(t, Timeouts{Request: 2 * time.Second, Send: time.Millisecond}, m.Timeout)
		assert.Equal(t, 3, m.RetryLimit())
		assert.Equal(t, []string{"GET"}, m.Retry.Methods)
		assert.Equal(t, []int{500}, m.Retry.StatusCodes)
		assert.False(t, *m.HTTPS.RejectUnauthorized)
		assert.Equal(t, []byte("k"), m.HTTPS.Key)
		assert.Equal(t, []byte("c"), m.HTTPS.Certificate)
	})
	t.Run("prefix", func(t *testing.T) {
		m := Merge(&Options{PrefixURL: "https://a/"}, &Options{URL: "x"})
		assert.Equal(t, "https://a/", m.PrefixURL)
		m = Merge(&Options{PrefixURL: "https://a/"}, &Options{PrefixURL: "https://b/"})
		assert.Equal(t, "https://b/", m.PrefixURL)
	})
	t.Run("hooks concatenate", func(t *testing.T) {
		var a, b Hooks
		a.PushBackFrom(BeforeRequest, nopHandler, "a")
		b.PushBackFrom(BeforeRequest, nopHandler, "b")
		b.PushBackFrom(Init, nopHandler, "b")
		m := Merge(&Options{Hooks: a}, &Options{Hooks: b}, &Options{Hooks: a})
		assert.Equal(t, []string{"a", "b", "a"}, m.Hooks.Origins(BeforeRequest))
		assert.Equal(t, []string{"b"}, m.Hooks.Origins(Init))
	})
	t.Run("layers untouched", func(t *testing.T) {
		l := &Options{Header: http.Header{"A": {"1"}}}
		m := Merge(l, &Options{Header: http.Header{"A": {"2"}}})
		m.Header.Set("C", "3")
		assert.Equal(t, http.Header{"A": {"1"}}, l.Header)
	})
}

func TestDefaults(t *testing.T) {
	d := Defaults()
	require.NotNil(t, d)
	assert.Equal(t, 2, d.RetryLimit())
	assert.Equal(t, 10, d.RedirectLimit())
	assert.True(t, d.FollowsRedirects())
	assert.True(t, d.ThrowsHTTPErrors())
	assert.Equal(t, DefaultRequestLimit, d.Pagination.RequestLimit)

	d.Retry.Methods[0] = "BOGUS"
	assert.Equal(t, "GET", Defaults().Retry.Methods[0])
}

func TestOptions_AgentFor(t *testing.T) {
	h1 := &http.Transport{}
	h2 := &http.Transport{}
	h3 := &http.Transport{}
	shared := &http.Transport{}
	o := &Options{SharedAgent: shared}
	assert.Same(t, shared, o.AgentFor("http"))
	assert.Same(t, shared, o.AgentFor("https"))
	o.Agent = Agents{HTTP: h1, HTTPS: h2, HTTP2: h3}
	assert.Same(t, h1, o.AgentFor("http"))
	assert.Same(t, h2, o.AgentFor("https"))
	o.HTTP2 = Bool(true)
	assert.Same(t, h3, o.AgentFor("https"))
	assert.Nil(t, (&Options{}).AgentFor("https"))
}

func TestOptions_Family(t *testing.T) {
	assert.Equal(t, 0, (&Options{}).Family())
	assert.Equal(t, 0, (&Options{DNSLookupIPVersion: "auto"}).Family())
	assert.Equal(t, 4, (&Options{DNSLookupIPVersion: "ipv4"}).Family())
	assert.Equal(t, 6, (&Options{DNSLookupIPVersion: "ipv6"}).Family())
	assert.Equal(t, -1, (&Options{DNSLookupIPVersion: "x"}).Family())
}
