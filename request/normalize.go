// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/net/http/httpguts"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("name")
	})
	return v
}

// checked holds the option values validated with struct tags.
type checked struct {
	DNSLookupIPVersion string        `name:"dnsLookupIpVersion" validate:"oneof=auto ipv4 ipv6"`
	ResponseType       string        `name:"responseType" validate:"oneof=text json buffer"`
	Lookup             time.Duration `name:"timeout.lookup" validate:"min=0"`
	Connect            time.Duration `name:"timeout.connect" validate:"min=0"`
	SecureConnect      time.Duration `name:"timeout.secureConnect" validate:"min=0"`
	Socket             time.Duration `name:"timeout.socket" validate:"min=0"`
	Send               time.Duration `name:"timeout.send" validate:"min=0"`
	Response           time.Duration `name:"timeout.response" validate:"min=0"`
	Request            time.Duration `name:"timeout.request" validate:"min=0"`
	MaxRedirects       int           `name:"maxRedirects" validate:"min=0"`
	RetryLimit         int           `name:"retry.limit" validate:"min=0"`
	MaxRetryAfter      time.Duration `name:"retry.maxRetryAfter" validate:"min=0"`
	BackoffLimit       time.Duration `name:"retry.backoffLimit" validate:"min=0"`
	CountLimit         int           `name:"pagination.countLimit" validate:"min=0"`
	Backoff            time.Duration `name:"pagination.backoff" validate:"min=0"`
	RequestLimit       int           `name:"pagination.requestLimit" validate:"min=0"`
}

// Normalize validates o and returns the canonical options it
// describes. It never modifies o.
//
// Canonical options have an upper-case method, an absolute URL with
// the prefix URL and search parameters applied, canonical header keys,
// and a Content-Type header for JSON and form bodies. Normalizing
// canonical options again returns equivalent options.
//
// Invalid options produce an error matching ErrInvalidArgument, except
// an unsupported URL scheme, which produces an UnsupportedProtocolError.
func Normalize(o *Options) (*Options, error) {
	if o == nil {
		o = &Options{}
	}
	n := o.Clone()

	if err := normalizeBody(n); err != nil {
		return nil, err
	}
	if err := normalizeMethod(n); err != nil {
		return nil, err
	}
	if n.Transport != nil {
		v := reflect.ValueOf(n.Transport)
		if v.Kind() == reflect.Ptr && v.IsNil() {
			return nil, invalid("The `transport` option must not be a nil %T", n.Transport)
		}
	}
	if err := normalizeURL(n); err != nil {
		return nil, err
	}
	if err := normalizeHeader(n); err != nil {
		return nil, err
	}

	if n.DNSLookupIPVersion == "" {
		n.DNSLookupIPVersion = "auto"
	}
	if n.ResponseType == "" {
		n.ResponseType = ResponseText
	}
	if err := check(n); err != nil {
		return nil, err
	}

	return n, nil
}

func normalizeBody(n *Options) error {
	count := 0
	if n.Body != nil {
		count++
	}
	if n.JSON != nil {
		count++
	}
	if n.Form != nil {
		count++
	}
	if count > 1 {
		return invalid("The `body`, `json` and `form` options are mutually exclusive")
	}
	if !validBody(n.Body) {
		return invalid(badBodyTypeMsg)
	}
	return nil
}

func normalizeMethod(n *Options) error {
	if n.Method == "" {
		n.Method = "GET"
	}
	if strings.IndexFunc(n.Method, isNotToken) != -1 {
		return invalid("Invalid method %q", n.Method)
	}
	n.Method = strings.ToUpper(n.Method)
	return nil
}

func isNotToken(r rune) bool {
	return !httpguts.IsTokenRune(r)
}

func normalizeURL(n *Options) error {
	raw := n.URL
	if n.PrefixURL != "" {
		prefix := n.PrefixURL
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		n.PrefixURL = prefix
		if !isAbsolute(raw) {
			if strings.HasPrefix(raw, "/") {
				return invalid("`url` must not start with a slash when using `prefixUrl`")
			}
			raw = prefix + raw
		}
	}
	if raw == "" {
		return invalid("Missing `url` option")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return invalid("Invalid URL %q: %v", raw, err)
	}
	if u.Scheme == "" {
		return invalid("Invalid URL %q: missing protocol", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" && n.Transport == nil {
		return NewUnsupportedProtocolError(u.Scheme, n)
	}
	u.Host = removeEmptyPort(u.Host)

	if len(n.SearchParams) > 0 {
		q := u.Query()
		for k, vs := range n.SearchParams {
			q[k] = append([]string(nil), vs...)
		}
		u.RawQuery = q.Encode()
		n.SearchParams = nil
	}

	n.URL = u.String()
	return nil
}

func isAbsolute(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != ""
}

func normalizeHeader(n *Options) error {
	h := make(http.Header, len(n.Header)+1)
	for k, vs := range n.Header {
		if !httpguts.ValidHeaderFieldName(k) {
			return invalid("Invalid header name %q", k)
		}
		for _, v := range vs {
			if !httpguts.ValidHeaderFieldValue(v) {
				return invalid("Invalid value for header %q", k)
			}
		}
		ck := http.CanonicalHeaderKey(k)
		h[ck] = append(h[ck], vs...)
	}
	if h.Get("Content-Type") == "" {
		switch {
		case n.JSON != nil:
			h.Set("Content-Type", "application/json")
		case n.Form != nil:
			h.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	n.Header = h
	return nil
}

func check(n *Options) error {
	c := checked{
		DNSLookupIPVersion: n.DNSLookupIPVersion,
		ResponseType:       string(n.ResponseType),
		Lookup:             n.Timeout.Lookup,
		Connect:            n.Timeout.Connect,
		SecureConnect:      n.Timeout.SecureConnect,
		Socket:             n.Timeout.Socket,
		Send:               n.Timeout.Send,
		Response:           n.Timeout.Response,
		Request:            n.Timeout.Request,
		MaxRedirects:       n.RedirectLimit(),
		RetryLimit:         n.RetryLimit(),
		MaxRetryAfter:      n.Retry.MaxRetryAfter,
		BackoffLimit:       n.Retry.BackoffLimit,
		CountLimit:         n.Pagination.CountLimit,
		Backoff:            n.Pagination.Backoff,
		RequestLimit:       n.Pagination.RequestLimit,
	}
	err := validate.Struct(c)
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		fe := ves[0]
		return invalid("Expected `%s` to satisfy %s", fe.Field(), constraint(fe))
	} else if err != nil {
		return fmt.Errorf("gotx/request: %w", err)
	}
	return nil
}

func constraint(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return "one of [" + strings.ReplaceAll(fe.Param(), " ", ", ") + "]"
	case "min":
		return ">= " + fe.Param()
	default:
		return fe.Tag()
	}
}

// hasPort is lifted verbatim from net/http/http.go
//
// Given a string of the form "host", "host:port", or "[ipv6::address]:port",
// return true if the string includes a port.
func hasPort(s string) bool { return strings.LastIndex(s, ":") > strings.LastIndex(s, "]") }

// removeEmptyPort is lifted verbatim from net/http/http.go
//
// removeEmptyPort strips the empty port in ":port" to ""
// as mandated by RFC 3986 Section 6.2.3.
func removeEmptyPort(host string) string {
	if hasPort(host) {
		return strings.TrimSuffix(host, ":")
	}
	return host
}
