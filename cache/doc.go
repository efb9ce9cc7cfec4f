// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package cache defines the response cache used by the request lifecycle
for GET and HEAD requests.

A fresh entry answers a request without any network traffic. A stale
entry with validators (ETag or Last-Modified) turns the request into a
conditional request, and a 304 Not Modified answer is completed from
the stored body. Freshness follows the Cache-Control max-age, no-cache
and no-store directives and the Expires header.

Memory is a sharded in-memory Store. Package redisstore provides a
Store backed by Redis.
*/
package cache
