// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package transient classifies errors from HTTP request execution.
//
// Code maps an error to a short code such as "ETIMEDOUT" or
// "ECONNRESET", which is the vocabulary retry policies use to list the
// errors they retry. Categorize buckets errors more coarsely into
// transience categories, which is handy for metrics.
package transient
