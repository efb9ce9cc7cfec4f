// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"net/http"
	"slices"
	"time"
)

// Merge folds option layers together from left to right and returns
// the result as a new Options. No layer is modified, and nil layers
// are skipped.
//
// The merge rules are:
//
// • scalars: the last layer that sets a value wins;
//
// • option groups (Header, SearchParams, Context, Timeout, Retry,
// HTTPS, Agent, Pagination): key-wise, a key left unset by a later
// layer keeps the inherited value;
//
// • PrefixURL: a later layer which sets it replaces it, one which
// leaves it empty keeps the inherited value;
//
// • Header: keys are compared in canonical form, so a later layer
// replaces a field whatever the case it is spelled in;
//
// • an empty, non-nil list (e.g. Retry.StatusCodes) set by a later
// layer clears the inherited list;
//
// • Hooks: concatenated in layer order, never deduplicated.
//
// Setting URL in a later layer replaces the target completely. If the
// new URL is relative, it is resolved against the merged PrefixURL by
// Normalize.
func Merge(layers ...*Options) *Options {
	out := &Options{}
	for _, l := range layers {
		if l != nil {
			mergeInto(out, l)
		}
	}
	return out
}

func mergeInto(dst, src *Options) {
	if src.Method != "" {
		dst.Method = src.Method
	}
	if src.URL != "" {
		dst.URL = src.URL
	}
	if src.PrefixURL != "" {
		dst.PrefixURL = src.PrefixURL
	}
	for k, vs := range src.Header {
		if dst.Header == nil {
			dst.Header = make(map[string][]string)
		}
		dst.Header[http.CanonicalHeaderKey(k)] = slices.Clone(vs)
	}
	if src.Body != nil {
		dst.Body = src.Body
	}
	if src.JSON != nil {
		dst.JSON = src.JSON
	}
	if src.Form != nil {
		dst.Form = cloneValues(src.Form)
	}
	for k, vs := range src.SearchParams {
		if dst.SearchParams == nil {
			dst.SearchParams = make(map[string][]string)
		}
		dst.SearchParams[k] = slices.Clone(vs)
	}
	mergeTimeouts(&dst.Timeout, &src.Timeout)
	mergeRetry(&dst.Retry, &src.Retry)
	setBool(&dst.FollowRedirect, src.FollowRedirect)
	setInt(&dst.MaxRedirects, src.MaxRedirects)
	setBool(&dst.MethodRewriting, src.MethodRewriting)
	setBool(&dst.AllowDowngrade, src.AllowDowngrade)
	setBool(&dst.ThrowHTTPErrors, src.ThrowHTTPErrors)
	setBool(&dst.Decompress, src.Decompress)
	if src.ResponseType != "" {
		dst.ResponseType = src.ResponseType
	}
	mergeAgents(&dst.Agent, &src.Agent)
	if src.SharedAgent != nil {
		dst.SharedAgent = src.SharedAgent
	}
	mergeHTTPS(&dst.HTTPS, &src.HTTPS)
	setBool(&dst.HTTP2, src.HTTP2)
	dst.Hooks = dst.Hooks.Concat(src.Hooks)
	for k, v := range src.Context {
		if dst.Context == nil {
			dst.Context = make(map[string]interface{})
		}
		dst.Context[k] = v
	}
	if src.DNSLookupIPVersion != "" {
		dst.DNSLookupIPVersion = src.DNSLookupIPVersion
	}
	mergePagination(&dst.Pagination, &src.Pagination)
	if src.Transport != nil {
		dst.Transport = src.Transport
	}
	if src.Cache != nil {
		dst.Cache = src.Cache
	}
}

func mergeTimeouts(dst, src *Timeouts) {
	setDuration(&dst.Lookup, src.Lookup)
	setDuration(&dst.Connect, src.Connect)
	setDuration(&dst.SecureConnect, src.SecureConnect)
	setDuration(&dst.Socket, src.Socket)
	setDuration(&dst.Send, src.Send)
	setDuration(&dst.Response, src.Response)
	setDuration(&dst.Request, src.Request)
}

func mergeRetry(dst, src *Retry) {
	setInt(&dst.Limit, src.Limit)
	if src.Methods != nil {
		dst.Methods = slices.Clone(src.Methods)
	}
	if src.StatusCodes != nil {
		dst.StatusCodes = slices.Clone(src.StatusCodes)
	}
	if src.ErrorCodes != nil {
		dst.ErrorCodes = slices.Clone(src.ErrorCodes)
	}
	if src.CalculateDelay != nil {
		dst.CalculateDelay = src.CalculateDelay
	}
	if src.Policy != nil {
		dst.Policy = src.Policy
	}
	setDuration(&dst.MaxRetryAfter, src.MaxRetryAfter)
	setDuration(&dst.BackoffLimit, src.BackoffLimit)
}

func mergeHTTPS(dst, src *HTTPS) {
	if src.CertificateAuthority != nil {
		dst.CertificateAuthority = slices.Clone(src.CertificateAuthority)
	}
	if src.Key != nil {
		dst.Key = src.Key
	}
	if src.Certificate != nil {
		dst.Certificate = src.Certificate
	}
	if src.Passphrase != nil {
		dst.Passphrase = src.Passphrase
	}
	if src.PFX != nil {
		dst.PFX = src.PFX
	}
	if src.CheckServerIdentity != nil {
		dst.CheckServerIdentity = src.CheckServerIdentity
	}
	setBool(&dst.RejectUnauthorized, src.RejectUnauthorized)
}

func mergeAgents(dst, src *Agents) {
	if src.HTTP != nil {
		dst.HTTP = src.HTTP
	}
	if src.HTTPS != nil {
		dst.HTTPS = src.HTTPS
	}
	if src.HTTP2 != nil {
		dst.HTTP2 = src.HTTP2
	}
}

func mergePagination(dst, src *Pagination) {
	if src.Transform != nil {
		dst.Transform = src.Transform
	}
	if src.Paginate != nil {
		dst.Paginate = src.Paginate
	}
	if src.Filter != nil {
		dst.Filter = src.Filter
	}
	if src.ShouldContinue != nil {
		dst.ShouldContinue = src.ShouldContinue
	}
	if src.CountLimit != 0 {
		dst.CountLimit = src.CountLimit
	}
	setDuration(&dst.Backoff, src.Backoff)
	if src.RequestLimit != 0 {
		dst.RequestLimit = src.RequestLimit
	}
	setBool(&dst.StackAllItems, src.StackAllItems)
}

func setBool(dst **bool, src *bool) {
	if src != nil {
		b := *src
		*dst = &b
	}
}

func setInt(dst **int, src *int) {
	if src != nil {
		n := *src
		*dst = &n
	}
}

func setDuration(dst *time.Duration, src time.Duration) {
	if src != 0 {
		*dst = src
	}
}
