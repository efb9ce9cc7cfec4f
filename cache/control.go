// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package cache

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Control holds the parsed directives of a Cache-Control header.
type Control struct {
	NoStore        bool
	NoCache        bool
	MustRevalidate bool
	Public         bool
	Private        bool
	MaxAge         *time.Duration
}

// ParseControl parses a Cache-Control header value. Unknown directives
// are ignored.
func ParseControl(header string) *Control {
	c := &Control{}
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, value, hasValue := strings.Cut(part, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		if hasValue {
			value = strings.Trim(strings.TrimSpace(value), `"`)
			if key == "max-age" {
				if seconds, err := strconv.Atoi(value); err == nil {
					maxAge := time.Duration(seconds) * time.Second
					c.MaxAge = &maxAge
				}
			}
			continue
		}

		switch key {
		case "no-store":
			c.NoStore = true
		case "no-cache":
			c.NoCache = true
		case "must-revalidate":
			c.MustRevalidate = true
		case "public":
			c.Public = true
		case "private":
			c.Private = true
		}
	}
	return c
}

func parseHTTPTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := http.ParseTime(s)
	return t, err == nil
}
