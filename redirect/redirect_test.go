// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package redirect

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/gogama/gotx/request"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRedirect(t *testing.T) {
	for _, s := range []int{300, 301, 302, 303, 307, 308} {
		assert.True(t, IsRedirect(s), "status %d", s)
	}
	for _, s := range []int{200, 304, 305, 306, 309, 400} {
		assert.False(t, IsRedirect(s), "status %d", s)
	}
}

func TestResolve_NotFollowed(t *testing.T) {
	o := &request.Options{Method: "GET", URL: "https://a.test/x"}
	next, err := Resolve(o, nil, 0, false)
	assert.NoError(t, err)
	assert.Nil(t, next)

	next, err = Resolve(o, response(200, "https://a.test/x", "/y"), 0, false)
	assert.NoError(t, err)
	assert.Nil(t, next)

	next, err = Resolve(o, response(302, "https://a.test/x", ""), 0, false)
	assert.NoError(t, err)
	assert.Nil(t, next)

	o.FollowRedirect = request.Bool(false)
	next, err = Resolve(o, response(302, "https://a.test/x", "/y"), 0, false)
	assert.NoError(t, err)
	assert.Nil(t, next)
}

func TestResolve(t *testing.T) {
	testCases := []struct {
		name      string
		method    string
		body      interface{}
		status    int
		location  string
		rewriting *bool
		url       string
		expMethod string
		expBody   bool
	}{
		{"relative", "GET", nil, 302, "/", nil, "https://a.test/", "GET", false},
		{"relative path", "GET", nil, 301, "z?q=1", nil, "https://a.test/dir/z?q=1", "GET", false},
		{"absolute", "GET", nil, 307, "https://b.test/p", nil, "https://b.test/p", "GET", false},
		{"303 POST", "POST", "data", 303, "/done", nil, "https://a.test/done", "GET", false},
		{"303 HEAD", "HEAD", nil, 303, "/done", nil, "https://a.test/done", "HEAD", false},
		{"303 PUT", "PUT", "data", 303, "/done", nil, "https://a.test/done", "GET", false},
		{"302 POST rewritten", "POST", "data", 302, "/n", nil, "https://a.test/n", "GET", false},
		{"301 POST rewritten", "POST", "data", 301, "/n", request.Bool(true), "https://a.test/n", "GET", false},
		{"302 POST kept", "POST", "data", 302, "/n", request.Bool(false), "https://a.test/n", "POST", true},
		{"302 PUT kept", "PUT", "data", 302, "/n", nil, "https://a.test/n", "PUT", true},
		{"307 POST kept", "POST", "data", 307, "/n", nil, "https://a.test/n", "POST", true},
		{"308 PATCH kept", "PATCH", "data", 308, "/n", nil, "https://a.test/n", "PATCH", true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			o := &request.Options{
				Method:          testCase.method,
				URL:             "https://a.test/dir/x",
				Body:            testCase.body,
				MethodRewriting: testCase.rewriting,
				Header:          http.Header{"Content-Type": {"text/plain"}},
			}
			next, err := Resolve(o, response(testCase.status, o.URL, testCase.location), 0, true)
			require.NoError(t, err)
			require.NotNil(t, next)
			assert.Equal(t, testCase.url, next.URL)
			assert.Equal(t, testCase.expMethod, next.Method)
			if testCase.expBody {
				assert.Equal(t, testCase.body, next.Body)
				assert.Equal(t, "text/plain", next.Header.Get("Content-Type"))
			} else {
				assert.Nil(t, next.Body)
				if testCase.body != nil {
					assert.Empty(t, next.Header.Get("Content-Type"))
				}
			}
			assert.Equal(t, testCase.method, o.Method, "input options must not change")
			assert.Equal(t, "text/plain", o.Header.Get("Content-Type"), "input options must not change")
		})
	}
}

func TestResolve_MaxRedirects(t *testing.T) {
	o := &request.Options{Method: "GET", URL: "https://a.test/x", MaxRedirects: request.Int(2)}
	r := response(302, o.URL, "/y")
	next, err := Resolve(o, r, 1, false)
	require.NoError(t, err)
	require.NotNil(t, next)

	next, err = Resolve(o, r, 2, false)
	assert.Nil(t, next)
	var mre *request.MaxRedirectsError
	require.ErrorAs(t, err, &mre)
	assert.EqualError(t, err, "Redirected 2 times. Aborting.")
	assert.Same(t, r, mre.Response())

	_, err = Resolve(&request.Options{URL: o.URL}, r, 10, false)
	assert.EqualError(t, err, "Redirected 10 times. Aborting.")
}

func TestResolve_Protocol(t *testing.T) {
	o := &request.Options{Method: "GET", URL: "https://a.test/x"}
	t.Run("unsupported", func(t *testing.T) {
		_, err := Resolve(o, response(302, o.URL, "ftp://a.test/f"), 0, false)
		var upe *request.UnsupportedProtocolError
		require.ErrorAs(t, err, &upe)
		assert.EqualError(t, err, `Unsupported protocol "ftp:"`)
	})
	t.Run("downgrade rejected", func(t *testing.T) {
		_, err := Resolve(o, response(302, o.URL, "http://a.test/x"), 0, false)
		var re *request.RequestError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, request.CodeUnsupportedProtocol, re.Code)
	})
	t.Run("downgrade allowed", func(t *testing.T) {
		o2 := o.Clone()
		o2.AllowDowngrade = request.Bool(true)
		next, err := Resolve(o2, response(302, o.URL, "http://a.test/x"), 0, false)
		require.NoError(t, err)
		assert.Equal(t, "http://a.test/x", next.URL)
	})
	t.Run("upgrade", func(t *testing.T) {
		o2 := &request.Options{Method: "GET", URL: "http://a.test/x"}
		next, err := Resolve(o2, response(301, o2.URL, "https://a.test/x"), 0, false)
		require.NoError(t, err)
		assert.Equal(t, "https://a.test/x", next.URL)
	})
}

func TestResolve_CrossHost(t *testing.T) {
	o := &request.Options{
		Method: "GET",
		URL:    "https://a.test/x",
		Header: http.Header{
			"Authorization": {"Bearer t"},
			"Cookie":        {"a=1"},
			"X-Custom":      {"keep"},
		},
	}
	next, err := Resolve(o, response(302, o.URL, "/same"), 0, false)
	require.NoError(t, err)
	assert.Equal(t, "Bearer t", next.Header.Get("Authorization"))

	next, err = Resolve(o, response(302, o.URL, "https://a.test:8443/other-port"), 0, false)
	require.NoError(t, err)
	assert.Empty(t, next.Header.Get("Authorization"))

	next, err = Resolve(o, response(302, o.URL, "https://b.test/"), 0, false)
	require.NoError(t, err)
	assert.Empty(t, next.Header.Get("Authorization"))
	assert.Empty(t, next.Header.Get("Cookie"))
	assert.Equal(t, "keep", next.Header.Get("X-Custom"))
	assert.Equal(t, "Bearer t", o.Header.Get("Authorization"))
}

func TestResolve_BodyNotReplayable(t *testing.T) {
	body := io.MultiReader(strings.NewReader("once"))
	o := &request.Options{Method: "PUT", URL: "https://a.test/x", Body: body}
	_, err := Resolve(o, response(307, o.URL, "/y"), 0, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, request.ErrBodyNotReplayable))

	next, err := Resolve(o, response(307, o.URL, "/y"), 0, false)
	require.NoError(t, err)
	assert.Same(t, body, next.Body)

	next, err = Resolve(o, response(303, o.URL, "/y"), 0, true)
	require.NoError(t, err)
	assert.Nil(t, next.Body)
}

func TestResolve_FallsBackOnOptionsURL(t *testing.T) {
	o := &request.Options{Method: "GET", URL: "https://a.test/dir/x"}
	r := &request.Response{StatusCode: 302, Header: http.Header{"Location": {"y"}}}
	next, err := Resolve(o, r, 0, false)
	require.NoError(t, err)
	assert.Equal(t, "https://a.test/dir/y", next.URL)
}

func response(status int, from, location string) *request.Response {
	u, err := url.Parse(from)
	if err != nil {
		panic(err)
	}
	h := http.Header{}
	if location != "" {
		h.Set("Location", location)
	}
	return &request.Response{StatusCode: status, URL: u, Header: h}
}
