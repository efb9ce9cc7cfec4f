// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/gogama/gotx/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	testCases := []struct {
		name    string
		o       *Options
		asserts func(*testing.T, *Options)
	}{
		{
			name: "empty method means GET",
			o:    &Options{URL: "https://foo.com"},
			asserts: func(t *testing.T, n *Options) {
				assert.Equal(t, "GET", n.Method)
				assert.Equal(t, "https://foo.com", n.URL)
			},
		},
		{
			name: "method upper-cased",
			o:    &Options{Method: "patch", URL: "http://foo.com/bar"},
			asserts: func(t *testing.T, n *Options) {
				assert.Equal(t, "PATCH", n.Method)
			},
		},
		{
			name: "prefix applied to relative URL",
			o:    &Options{PrefixURL: "https://api.example.com/v1", URL: "users/7"},
			asserts: func(t *testing.T, n *Options) {
				assert.Equal(t, "https://api.example.com/v1/", n.PrefixURL)
				assert.Equal(t, "https://api.example.com/v1/users/7", n.URL)
			},
		},
		{
			name: "prefix ignored for absolute URL",
			o:    &Options{PrefixURL: "https://api.example.com/v1/", URL: "http://other.example.com/x"},
			asserts: func(t *testing.T, n *Options) {
				assert.Equal(t, "http://other.example.com/x", n.URL)
			},
		},
		{
			name: "prefix alone",
			o:    &Options{PrefixURL: "https://api.example.com"},
			asserts: func(t *testing.T, n *Options) {
				assert.Equal(t, "https://api.example.com/", n.URL)
			},
		},
		{
			name: "empty port removed",
			o:    &Options{URL: "http://foo.com:/bar"},
			asserts: func(t *testing.T, n *Options) {
				assert.Equal(t, "http://foo.com/bar", n.URL)
			},
		},
		{
			name: "search params folded",
			o: &Options{
				URL:          "https://foo.com/search?q=old&page=1",
				SearchParams: url.Values{"q": {"new"}, "limit": {"5"}},
			},
			asserts: func(t *testing.T, n *Options) {
				u, err := url.Parse(n.URL)
				require.NoError(t, err)
				assert.Equal(t, url.Values{"q": {"new"}, "page": {"1"}, "limit": {"5"}}, u.Query())
				assert.Nil(t, n.SearchParams)
			},
		},
		{
			name: "header keys canonical",
			o:    &Options{URL: "https://foo.com", Header: http.Header{"x-foo": {"bar"}}},
			asserts: func(t *testing.T, n *Options) {
				assert.Equal(t, http.Header{"X-Foo": {"bar"}}, n.Header)
			},
		},
		{
			name: "JSON content type",
			o:    &Options{Method: "POST", URL: "https://foo.com", JSON: map[string]int{"a": 1}},
			asserts: func(t *testing.T, n *Options) {
				assert.Equal(t, "application/json", n.Header.Get("Content-Type"))
			},
		},
		{
			name: "form content type",
			o:    &Options{Method: "POST", URL: "https://foo.com", Form: url.Values{"a": {"1"}}},
			asserts: func(t *testing.T, n *Options) {
				assert.Equal(t, "application/x-www-form-urlencoded", n.Header.Get("Content-Type"))
			},
		},
		{
			name: "explicit content type kept",
			o: &Options{
				Method: "POST",
				URL:    "https://foo.com",
				JSON:   1,
				Header: http.Header{"Content-Type": {"application/vnd.api+json"}},
			},
			asserts: func(t *testing.T, n *Options) {
				assert.Equal(t, "application/vnd.api+json", n.Header.Get("Content-Type"))
			},
		},
		{
			name: "defaults",
			o:    &Options{URL: "https://foo.com"},
			asserts: func(t *testing.T, n *Options) {
				assert.Equal(t, "auto", n.DNSLookupIPVersion)
				assert.Equal(t, ResponseText, n.ResponseType)
			},
		},
		{
			name: "custom scheme with transport",
			o:    &Options{URL: "unix://sock/path", Transport: &fakeTransport{}},
			asserts: func(t *testing.T, n *Options) {
				assert.Equal(t, "unix://sock/path", n.URL)
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			n, err := Normalize(testCase.o)
			require.NoError(t, err)
			require.NotNil(t, n)
			testCase.asserts(t, n)

			again, err := Normalize(n)
			require.NoError(t, err)
			assert.Equal(t, n.URL, again.URL)
			assert.Equal(t, n.Method, again.Method)
			assert.Equal(t, n.Header, again.Header)
		})
	}
}

func TestNormalize_DoesNotModifyInput(t *testing.T) {
	o := &Options{
		Method:       "post",
		URL:          "https://foo.com",
		SearchParams: url.Values{"a": {"b"}},
		JSON:         1,
	}
	_, err := Normalize(o)
	require.NoError(t, err)
	assert.Equal(t, "post", o.Method)
	assert.Equal(t, "https://foo.com", o.URL)
	assert.Equal(t, url.Values{"a": {"b"}}, o.SearchParams)
	assert.Nil(t, o.Header)
}

func TestNormalize_Invalid(t *testing.T) {
	var nilTransport *fakeTransport
	testCases := []struct {
		name string
		o    *Options
		msg  string
	}{
		{
			name: "body and json",
			o:    &Options{URL: "https://foo.com", Body: "x", JSON: 1},
			msg:  "The `body`, `json` and `form` options are mutually exclusive",
		},
		{
			name: "json and form",
			o:    &Options{URL: "https://foo.com", JSON: 1, Form: url.Values{}},
			msg:  "The `body`, `json` and `form` options are mutually exclusive",
		},
		{
			name: "bad body type",
			o:    &Options{URL: "https://foo.com", Body: 12},
			msg:  badBodyTypeMsg,
		},
		{
			name: "bad method",
			o:    &Options{Method: "GET /", URL: "https://foo.com"},
			msg:  `Invalid method "GET /"`,
		},
		{
			name: "missing URL",
			o:    &Options{},
			msg:  "Missing `url` option",
		},
		{
			name: "leading slash with prefix",
			o:    &Options{PrefixURL: "https://foo.com", URL: "/bar"},
			msg:  "`url` must not start with a slash when using `prefixUrl`",
		},
		{
			name: "relative URL",
			o:    &Options{URL: "foo/bar"},
			msg:  `Invalid URL "foo/bar": missing protocol`,
		},
		{
			name: "bad header name",
			o:    &Options{URL: "https://foo.com", Header: http.Header{"Bad Name": {"x"}}},
			msg:  `Invalid header name "Bad Name"`,
		},
		{
			name: "bad header value",
			o:    &Options{URL: "https://foo.com", Header: http.Header{"X-Foo": {"a\nb"}}},
			msg:  `Invalid value for header "X-Foo"`,
		},
		{
			name: "typed nil transport",
			o:    &Options{URL: "https://foo.com", Transport: nilTransport},
			msg:  "The `transport` option must not be a nil *request.fakeTransport",
		},
		{
			name: "bad DNS family",
			o:    &Options{URL: "https://foo.com", DNSLookupIPVersion: "ipv5"},
			msg:  "Expected `dnsLookupIpVersion` to satisfy one of [auto, ipv4, ipv6]",
		},
		{
			name: "bad response type",
			o:    &Options{URL: "https://foo.com", ResponseType: "xml"},
			msg:  "Expected `responseType` to satisfy one of [text, json, buffer]",
		},
		{
			name: "negative timeout",
			o:    &Options{URL: "https://foo.com", Timeout: Timeouts{Send: -time.Second}},
			msg:  "Expected `timeout.send` to satisfy >= 0",
		},
		{
			name: "negative redirects",
			o:    &Options{URL: "https://foo.com", MaxRedirects: Int(-1)},
			msg:  "Expected `maxRedirects` to satisfy >= 0",
		},
		{
			name: "negative retry limit",
			o:    &Options{URL: "https://foo.com", Retry: Retry{Limit: Int(-2)}},
			msg:  "Expected `retry.limit` to satisfy >= 0",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			n, err := Normalize(testCase.o)
			assert.Nil(t, n)
			assert.EqualError(t, err, testCase.msg)
			assert.True(t, errors.Is(err, ErrInvalidArgument))
		})
	}
}

func TestNormalize_UnsupportedProtocol(t *testing.T) {
	n, err := Normalize(&Options{URL: "c:/windows/file.txt"})
	assert.Nil(t, n)
	var upe *UnsupportedProtocolError
	require.ErrorAs(t, err, &upe)
	assert.EqualError(t, err, `Unsupported protocol "c:"`)
	assert.Equal(t, CodeUnsupportedProtocol, upe.Code)
	assert.False(t, errors.Is(err, ErrInvalidArgument))
}

type fakeTransport struct{}

func (t *fakeTransport) Start(context.Context, *transport.Request) (transport.Handle, error) {
	return nil, errors.New("not implemented")
}
