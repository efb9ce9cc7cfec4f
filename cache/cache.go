// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package cache

import (
	"context"
	"net/http"
	"time"
)

// A Store holds cached responses.
//
// Implementations must be safe for concurrent use. Get returns nil and
// no error when the key is absent.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, e *Entry) error
	Delete(ctx context.Context, key string) error
}

// An Entry is a cached response.
type Entry struct {
	Method        string      `json:"method"`
	URL           string      `json:"url"`
	StatusCode    int         `json:"statusCode"`
	StatusMessage string      `json:"statusMessage,omitempty"`
	Header        http.Header `json:"header,omitempty"`
	Body          []byte      `json:"body,omitempty"`
	// StoredAt is when the response was received.
	StoredAt time.Time `json:"storedAt"`
	// ExpiresAt is when the entry becomes stale. It is zero if the
	// entry is stale as soon as it is stored.
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
	// ETag and LastModified are the validators of the entry.
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"lastModified,omitempty"`
}

// Key returns the store key of a request.
func Key(method, url string) string {
	return method + ":" + url
}

// Cacheable reports whether requests with the given method may be
// answered from the cache.
func Cacheable(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

var storableStatus = map[int]bool{
	200: true, 203: true, 204: true, 300: true, 301: true, 308: true,
	404: true, 405: true, 410: true, 414: true, 501: true,
}

// NewEntry builds the cache entry for a response. It returns nil if
// the response must not be stored: the status is not cacheable, the
// response forbids storing, or it carries neither a freshness lifetime
// nor a validator.
func NewEntry(method, url string, status int, msg string, h http.Header, body []byte, now time.Time) *Entry {
	if !Cacheable(method) || !storableStatus[status] {
		return nil
	}
	cc := ParseControl(h.Get("Cache-Control"))
	if cc.NoStore || cc.Private {
		return nil
	}

	e := &Entry{
		Method:        method,
		URL:           url,
		StatusCode:    status,
		StatusMessage: msg,
		Header:        h.Clone(),
		Body:          append([]byte(nil), body...),
		StoredAt:      now,
		ETag:          h.Get("ETag"),
		LastModified:  h.Get("Last-Modified"),
	}
	e.ExpiresAt = expiry(cc, h, now)
	if e.ExpiresAt.IsZero() && !e.HasValidators() {
		return nil
	}
	return e
}

func expiry(cc *Control, h http.Header, now time.Time) time.Time {
	switch {
	case cc.NoCache:
		return time.Time{}
	case cc.MaxAge != nil:
		if *cc.MaxAge <= 0 {
			return time.Time{}
		}
		return now.Add(*cc.MaxAge)
	}
	if t, ok := parseHTTPTime(h.Get("Expires")); ok && t.After(now) {
		return t
	}
	return time.Time{}
}

// Fresh reports whether the entry can be served without revalidation.
func (e *Entry) Fresh(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.Before(e.ExpiresAt)
}

// HasValidators reports whether a stale entry can be revalidated with
// a conditional request.
func (e *Entry) HasValidators() bool {
	return e.ETag != "" || e.LastModified != ""
}

// Conditional adds the conditional request headers for revalidating
// the entry to h.
func (e *Entry) Conditional(h http.Header) {
	if e.ETag != "" {
		h.Set("If-None-Match", e.ETag)
	}
	if e.LastModified != "" {
		h.Set("If-Modified-Since", e.LastModified)
	}
}

// Revalidated returns a copy of the entry updated by a 304 Not
// Modified response with header h received at now. The stored body is
// kept, and the headers of the 304 response replace the stored ones.
func (e *Entry) Revalidated(h http.Header, now time.Time) *Entry {
	e2 := *e
	e2.Header = e.Header.Clone()
	if e2.Header == nil {
		e2.Header = make(http.Header)
	}
	for k, vs := range h {
		e2.Header[k] = append([]string(nil), vs...)
	}
	e2.StoredAt = now
	if v := e2.Header.Get("ETag"); v != "" {
		e2.ETag = v
	}
	if v := e2.Header.Get("Last-Modified"); v != "" {
		e2.LastModified = v
	}
	e2.ExpiresAt = expiry(ParseControl(e2.Header.Get("Cache-Control")), e2.Header, now)
	return &e2
}

// Retention returns how long a store should keep the entry. It returns
// zero, meaning no expiry, for entries that can be revalidated.
func (e *Entry) Retention(now time.Time) time.Duration {
	if e.HasValidators() {
		return 0
	}
	return e.ExpiresAt.Sub(now)
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	e2 := *e
	e2.Header = e.Header.Clone()
	e2.Body = append([]byte(nil), e.Body...)
	return &e2
}
