// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package redirect

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gogama/gotx/request"
)

// IsRedirect reports whether status is a redirect status the lifecycle
// can follow.
func IsRedirect(status int) bool {
	switch status {
	case http.StatusMultipleChoices,
		http.StatusMovedPermanently,
		http.StatusFound,
		http.StatusSeeOther,
		http.StatusTemporaryRedirect,
		http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}

// Resolve computes the options of the attempt following the redirect
// response r to a request made with options o. The redirect chain so
// far has length chain, and bodySent reports whether the request body
// was already sent once.
//
// If r is not a redirect to follow, Resolve returns nil and no error.
// Otherwise it returns the options of the next attempt, whose URL is
// the absolute redirect target, or an error that ends the request:
//
// • *request.MaxRedirectsError if the chain is already at its bound;
//
// • *request.UnsupportedProtocolError if the target is not HTTP(S);
//
// • *request.RequestError with code request.CodeUnsupportedProtocol if
// the redirect downgrades https to http without AllowDowngrade;
//
// • *request.RequestError with code request.CodeUpload if the method
// and body are kept but the body can only be sent once.
func Resolve(o *request.Options, r *request.Response, chain int, bodySent bool) (*request.Options, error) {
	if r == nil || !o.FollowsRedirects() || !IsRedirect(r.StatusCode) {
		return nil, nil
	}
	loc := r.Header.Get("Location")
	if loc == "" {
		return nil, nil
	}

	if max := o.RedirectLimit(); chain >= max {
		return nil, request.NewMaxRedirectsError(max, o, r)
	}

	current := r.URL
	if current == nil {
		var err error
		if current, err = o.Target(); err != nil {
			return nil, request.AsRequestError(err, o, r)
		}
	}
	ref, err := url.Parse(loc)
	if err != nil {
		return nil, request.NewRequestError("", fmt.Sprintf("Invalid redirect location %q", loc), err, o, r)
	}
	target := current.ResolveReference(ref)

	switch target.Scheme {
	case "http", "https":
	default:
		if o.Transport == nil || target.Scheme == "" {
			return nil, request.NewUnsupportedProtocolError(target.Scheme, o)
		}
	}
	if current.Scheme == "https" && target.Scheme == "http" && !deref(o.AllowDowngrade) {
		return nil, request.NewRequestError(request.CodeUnsupportedProtocol,
			fmt.Sprintf("Redirect from %q to %q is a protocol downgrade", current.String(), target.String()),
			nil, o, r)
	}

	next := o.Clone()
	next.URL = target.String()
	next.SearchParams = nil

	switch {
	case r.StatusCode == http.StatusSeeOther:
		if next.Method != http.MethodHead {
			next.Method = http.MethodGet
		}
		dropBody(next)
	case (r.StatusCode == http.StatusMovedPermanently || r.StatusCode == http.StatusFound) &&
		next.Method == http.MethodPost && rewrites(o):
		next.Method = http.MethodGet
		dropBody(next)
	case hasBody(next) && bodySent && !next.Replayable():
		return nil, request.NewRequestError(request.CodeUpload,
			"Cannot redirect: "+request.ErrBodyNotReplayable.Error(),
			request.ErrBodyNotReplayable, o, r)
	}

	if !sameHost(current, target) {
		next.Header = next.Header.Clone()
		next.Header.Del("Authorization")
		next.Header.Del("Cookie")
		next.Header.Del("Host")
	}

	return next, nil
}

func dropBody(o *request.Options) {
	o.Body = nil
	o.JSON = nil
	o.Form = nil
	if o.Header != nil {
		o.Header = o.Header.Clone()
		o.Header.Del("Content-Type")
		o.Header.Del("Content-Length")
	}
}

func hasBody(o *request.Options) bool {
	return o.Body != nil || o.JSON != nil || o.Form != nil
}

func rewrites(o *request.Options) bool {
	return o.MethodRewriting == nil || *o.MethodRewriting
}

func deref(b *bool) bool {
	return b != nil && *b
}

func sameHost(a, b *url.URL) bool {
	return strings.EqualFold(a.Hostname(), b.Hostname()) && a.Port() == b.Port()
}
