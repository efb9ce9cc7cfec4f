// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"crypto/x509"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/gogama/gotx/cache"
	"github.com/gogama/gotx/transport"
)

// A ResponseType selects how a buffered response body is decoded.
type ResponseType string

const (
	// ResponseText leaves the body as bytes, readable as text.
	ResponseText ResponseType = "text"
	// ResponseJSON parses the body as JSON into Response.Decoded.
	ResponseJSON ResponseType = "json"
	// ResponseBuffer leaves the body as raw bytes.
	ResponseBuffer ResponseType = "buffer"
)

// Options describes one logical HTTP request: what to send, where to
// send it, and the policies that govern the attempts made on its
// behalf.
//
// Options values are layered. A partial Options (for example the
// defaults of an Instance, or the options given at a call site) leaves
// unset every field it does not care about, and Merge folds layers
// together. Normalize turns the merged result into canonical options,
// which is what the request lifecycle and hook handlers work with.
//
// Pointer-typed scalars are tri-state: nil means "inherit", so that a
// layer can explicitly set false or zero. Use Bool and Int to build
// them inline.
type Options struct {
	// Method specifies the HTTP method (GET, POST, PUT, etc.).
	// An empty string means GET.
	Method string

	// URL is the request target. It may be relative to PrefixURL. After
	// normalization it is always an absolute URL string.
	URL string

	// PrefixURL is prepended to URL when URL is not absolute.
	PrefixURL string

	// Header contains the request header fields to send.
	Header http.Header

	// Body is the raw request body: nil, string, []byte, or io.Reader.
	// An io.Reader which is not also an io.Seeker can only be sent
	// once, so requests using one are never retried or redirected
	// with the body re-sent.
	//
	// At most one of Body, JSON, and Form may be set.
	Body interface{}

	// JSON is a value sent as a JSON-encoded request body.
	JSON interface{}

	// Form is sent as a URL-encoded form request body.
	Form url.Values

	// SearchParams are merged into the query of the target URL.
	SearchParams url.Values

	// Timeout holds the per-phase timeout budgets.
	Timeout Timeouts

	// Retry configures the retry policy.
	Retry Retry

	// FollowRedirect controls whether redirect responses are followed.
	FollowRedirect *bool

	// MaxRedirects bounds the length of the redirect chain.
	MaxRedirects *int

	// MethodRewriting controls whether a 301 or 302 redirect of a POST
	// request is followed with a GET request.
	MethodRewriting *bool

	// AllowDowngrade permits redirects from https to http.
	AllowDowngrade *bool

	// ThrowHTTPErrors controls whether a response with a status code
	// outside the accepted range fails the request with an HTTPError.
	ThrowHTTPErrors *bool

	// Decompress controls whether compressed response bodies are
	// transparently decompressed.
	Decompress *bool

	// ResponseType selects how a buffered response body is decoded.
	ResponseType ResponseType

	// Agent holds caller-supplied connection pools, per protocol.
	Agent Agents

	// SharedAgent is a single connection pool for every protocol.
	//
	// Deprecated: Use Agent. When both are set, the protocol-specific
	// pool in Agent wins.
	SharedAgent http.RoundTripper

	// HTTPS holds TLS settings.
	HTTPS HTTPS

	// HTTP2 enables HTTP/2 on connections created internally.
	HTTP2 *bool

	// Hooks holds the six hook slots.
	Hooks Hooks

	// Context is opaque user data carried along with the request. It
	// is merged key-wise.
	Context map[string]interface{}

	// DNSLookupIPVersion selects the address family used when
	// resolving host names: "auto", "ipv4", or "ipv6".
	DNSLookupIPVersion string

	// Pagination configures Instance.Paginate.
	Pagination Pagination

	// Transport overrides the transport used to make attempts. With a
	// transport override, URL schemes other than http and https are
	// accepted.
	Transport transport.Transport

	// Cache is an optional response cache store.
	Cache cache.Store
}

// Timeouts holds per-phase timeout budgets. A zero budget means the
// phase is not timed.
type Timeouts struct {
	// Lookup bounds DNS resolution.
	Lookup time.Duration
	// Connect bounds establishing the TCP connection.
	Connect time.Duration
	// SecureConnect bounds the TLS handshake.
	SecureConnect time.Duration
	// Socket bounds inactivity on the connection.
	Socket time.Duration
	// Send bounds writing the request.
	Send time.Duration
	// Response bounds waiting for response headers after the request
	// is written.
	Response time.Duration
	// Request bounds an entire attempt, across all phases.
	Request time.Duration
}

// RetryState is the input of a DelayFunc.
type RetryState struct {
	// AttemptCount is the one-based number of the retry being
	// considered.
	AttemptCount int
	// Retry is the retry configuration in force.
	Retry Retry
	// Err is the error that ended the previous attempt.
	Err error
	// ComputedValue is the delay computed by the built-in policy, or
	// zero if the built-in policy would not retry.
	ComputedValue time.Duration
}

// A DelayFunc computes the delay before a retry. A non-positive delay
// means no retry is done. An error ends the request with a RetryError.
type DelayFunc func(RetryState) (time.Duration, error)

// Retry configures the retry policy.
type Retry struct {
	// Limit is the maximum number of retries.
	Limit *int
	// Methods lists the HTTP methods that are retried on a retryable
	// status code.
	Methods []string
	// StatusCodes lists the retryable response status codes.
	StatusCodes []int
	// ErrorCodes lists the retryable error codes (see package
	// transient).
	ErrorCodes []string
	// CalculateDelay, if set, has the final word on the retry delay.
	CalculateDelay DelayFunc
	// MaxRetryAfter caps a Retry-After delay requested by the server.
	// A larger Retry-After value cancels the retry.
	MaxRetryAfter time.Duration
	// BackoffLimit caps the computed exponential backoff.
	BackoffLimit time.Duration
	// Policy, if set, replaces the policy built from Limit, Methods,
	// StatusCodes, ErrorCodes and BackoffLimit. Retry-After handling,
	// MaxRetryAfter and CalculateDelay still apply.
	Policy RetryPolicy
}

// A RetryPolicy decides whether a failed attempt is retried and how
// long to wait before the retry. Package retry provides composable
// implementations.
type RetryPolicy interface {
	Decide(e *Execution) bool
	Wait(e *Execution) time.Duration
}

// HTTPS holds TLS settings. Certificates and keys are PEM encoded,
// except PFX which is a PKCS#12 archive decrypted with Passphrase.
type HTTPS struct {
	CertificateAuthority [][]byte
	Key                  []byte
	Certificate          []byte
	Passphrase           *string
	PFX                  []byte
	CheckServerIdentity  func(host string, cert *x509.Certificate) error
	RejectUnauthorized   *bool
}

// Agents holds caller-supplied connection pools. The request lifecycle
// never closes or modifies them.
type Agents struct {
	HTTP  http.RoundTripper
	HTTPS http.RoundTripper
	HTTP2 http.RoundTripper
}

// PageState is the input of the pagination callbacks.
type PageState struct {
	// Response is the response of the current page.
	Response *Response
	// Item is the item under consideration (Filter and ShouldContinue
	// only).
	Item interface{}
	// CurrentItems holds the items of the current page yielded so far.
	CurrentItems []interface{}
	// AllItems holds every item yielded so far, if StackAllItems is
	// enabled.
	AllItems []interface{}
}

// Pagination configures Instance.Paginate.
type Pagination struct {
	// Transform extracts the items of a page.
	Transform func(*Response) ([]interface{}, error)
	// Paginate returns the options of the next page, merged onto the
	// current options, or nil to stop.
	Paginate func(PageState) (*Options, error)
	// Filter selects the items to yield.
	Filter func(PageState) bool
	// ShouldContinue is consulted before each item is yielded.
	ShouldContinue func(PageState) bool
	// CountLimit bounds the number of items yielded. Zero means
	// unlimited.
	CountLimit int
	// Backoff is the pause between page requests.
	Backoff time.Duration
	// RequestLimit bounds the number of page requests.
	RequestLimit int
	// StackAllItems makes PageState.AllItems available.
	StackAllItems *bool
}

// Bool returns a pointer to b.
func Bool(b bool) *bool {
	return &b
}

// Int returns a pointer to n.
func Int(n int) *int {
	return &n
}

// String returns a pointer to s.
func String(s string) *string {
	return &s
}

// Default retry settings.
var (
	DefaultRetryMethods     = []string{"GET", "PUT", "HEAD", "DELETE", "OPTIONS", "TRACE"}
	DefaultRetryStatusCodes = []int{408, 413, 429, 500, 502, 503, 504, 521, 522, 524}
	DefaultRetryErrorCodes  = []string{"ETIMEDOUT", "ECONNRESET", "EADDRINUSE", "ECONNREFUSED", "EPIPE", "ENOTFOUND", "ENETUNREACH", "EAI_AGAIN"}
)

// DefaultRequestLimit is the default bound on pagination requests.
const DefaultRequestLimit = 10000

// Defaults returns the built-in default options layer. Each call
// returns a fresh value.
func Defaults() *Options {
	return &Options{
		Method: "GET",
		Header: http.Header{
			"User-Agent": {"gotx (https://github.com/gogama/gotx)"},
		},
		Retry: Retry{
			Limit:        Int(2),
			Methods:      append([]string(nil), DefaultRetryMethods...),
			StatusCodes:  append([]int(nil), DefaultRetryStatusCodes...),
			ErrorCodes:   append([]string(nil), DefaultRetryErrorCodes...),
			BackoffLimit: 30 * time.Second,
		},
		FollowRedirect:     Bool(true),
		MaxRedirects:       Int(10),
		MethodRewriting:    Bool(true),
		AllowDowngrade:     Bool(false),
		ThrowHTTPErrors:    Bool(true),
		Decompress:         Bool(true),
		ResponseType:       ResponseText,
		HTTP2:              Bool(false),
		DNSLookupIPVersion: "auto",
		Pagination: Pagination{
			RequestLimit:  DefaultRequestLimit,
			StackAllItems: Bool(false),
		},
	}
}

// Clone returns a copy of o which can be modified without affecting o.
// Hook slots are shared, since they are never modified in place.
func (o *Options) Clone() *Options {
	if o == nil {
		return nil
	}
	o2 := new(Options)
	*o2 = *o
	o2.Header = o.Header.Clone()
	o2.Form = cloneValues(o.Form)
	o2.SearchParams = cloneValues(o.SearchParams)
	o2.Context = cloneMap(o.Context)
	o2.Retry.Methods = slices.Clone(o.Retry.Methods)
	o2.Retry.StatusCodes = slices.Clone(o.Retry.StatusCodes)
	o2.Retry.ErrorCodes = slices.Clone(o.Retry.ErrorCodes)
	o2.HTTPS.CertificateAuthority = slices.Clone(o.HTTPS.CertificateAuthority)
	return o2
}

// FollowsRedirects reports whether redirect responses are followed.
func (o *Options) FollowsRedirects() bool {
	return deref(o.FollowRedirect, true)
}

// ThrowsHTTPErrors reports whether non-accepted status codes fail the
// request.
func (o *Options) ThrowsHTTPErrors() bool {
	return deref(o.ThrowHTTPErrors, true)
}

// RedirectLimit returns the maximum redirect chain length.
func (o *Options) RedirectLimit() int {
	if o.MaxRedirects == nil {
		return 10
	}
	return *o.MaxRedirects
}

// RetryLimit returns the maximum number of retries.
func (o *Options) RetryLimit() int {
	if o.Retry.Limit == nil {
		return 0
	}
	return *o.Retry.Limit
}

// Target parses the target URL of canonical options.
func (o *Options) Target() (*url.URL, error) {
	return url.Parse(o.URL)
}

// Family returns the IP version number selected by DNSLookupIPVersion:
// 0 for auto, 4 or 6. It returns -1 for an unrecognized value.
func (o *Options) Family() int {
	switch o.DNSLookupIPVersion {
	case "", "auto":
		return 0
	case "ipv4":
		return 4
	case "ipv6":
		return 6
	default:
		return -1
	}
}

// AgentFor returns the caller-supplied agent for the given URL scheme,
// or nil if the caller supplied none.
func (o *Options) AgentFor(scheme string) http.RoundTripper {
	var rt http.RoundTripper
	switch scheme {
	case "https":
		rt = o.Agent.HTTPS
		if deref(o.HTTP2, false) && o.Agent.HTTP2 != nil {
			rt = o.Agent.HTTP2
		}
	case "http":
		rt = o.Agent.HTTP
	}
	if rt == nil {
		rt = o.SharedAgent
	}
	return rt
}

func deref(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func cloneValues(v url.Values) url.Values {
	if v == nil {
		return nil
	}
	v2 := make(url.Values, len(v))
	for k, vs := range v {
		v2[k] = append([]string(nil), vs...)
	}
	return v2
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	m2 := make(map[string]interface{}, len(m))
	for k, v := range m {
		m2[k] = v
	}
	return m2
}
