// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

const badBodyTypeMsg = "gotx/request: invalid type (for body use nil, " +
	"string, []byte or io.Reader)"

// A Payload is a request body ready to be sent.
type Payload struct {
	// Reader yields the body.
	Reader io.Reader
	// Length is the body length, or -1 if unknown.
	Length int64
	// GetBody returns a fresh reader over the body, or is nil if the
	// body can only be read once.
	GetBody func() (io.ReadCloser, error)
}

// Replayable reports whether the request body can be sent more than
// once. Bodies given as a string, []byte, JSON value or form are
// replayable, as is an io.Reader which is also an io.Seeker. Any other
// io.Reader can only be sent once.
func (o *Options) Replayable() bool {
	switch o.Body.(type) {
	case nil, string, []byte:
		return true
	case io.Seeker:
		return true
	default:
		return false
	}
}

// Payload encodes the request body. It returns nil if there is no
// body.
//
// A JSON body is encoded on every call, so the value is read at the
// time of sending. A seekable reader is rewound to its start.
func (o *Options) Payload() (*Payload, error) {
	switch {
	case o.JSON != nil:
		b, err := json.Marshal(o.JSON)
		if err != nil {
			return nil, err
		}
		return bytesPayload(b), nil
	case o.Form != nil:
		return bytesPayload([]byte(o.Form.Encode())), nil
	}

	switch b := o.Body.(type) {
	case nil:
		return nil, nil
	case string:
		if b == "" {
			return nil, nil
		}
		return bytesPayload([]byte(b)), nil
	case []byte:
		if len(b) == 0 {
			return nil, nil
		}
		return bytesPayload(b), nil
	case io.ReadSeeker:
		if _, err := b.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		return &Payload{Reader: b, Length: readerLen(b)}, nil
	case io.Reader:
		return &Payload{Reader: b, Length: readerLen(b)}, nil
	default:
		return nil, invalid(badBodyTypeMsg)
	}
}

func bytesPayload(b []byte) *Payload {
	return &Payload{
		Reader: bytes.NewReader(b),
		Length: int64(len(b)),
		GetBody: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(b)), nil
		},
	}
}

func readerLen(r io.Reader) int64 {
	switch x := r.(type) {
	case *bytes.Reader:
		return int64(x.Len())
	case *strings.Reader:
		return int64(x.Len())
	case *bytes.Buffer:
		return int64(x.Len())
	default:
		return -1
	}
}

func validBody(body interface{}) bool {
	switch body.(type) {
	case nil, string, []byte, io.Reader:
		return true
	default:
		return false
	}
}

// AddCookie adds a cookie to the request. Per RFC 6265 section 5.4,
// AddCookie does not attach more than one Cookie header field. That
// means all cookies, if any, are written into the same line,
// separated by semicolons.
//
// AddCookie only sanitizes c's name and value, and does not sanitize
// a Cookie header already present in the request.
func (o *Options) AddCookie(c *http.Cookie) {
	if o.Header == nil {
		o.Header = make(http.Header)
	}
	c2 := &http.Cookie{Name: c.Name, Value: c.Value}
	s := c2.String()
	if h := o.Header.Get("Cookie"); h != "" {
		o.Header.Set("Cookie", h+"; "+s)
	} else {
		o.Header.Set("Cookie", s)
	}
}

// SetBasicAuth sets the request's Authorization header to use HTTP
// Basic Authentication with the provided username and password.
//
// With HTTP Basic Authentication the provided username and password
// are not encrypted.
func (o *Options) SetBasicAuth(username, password string) {
	if o.Header == nil {
		o.Header = make(http.Header)
	}
	o.Header.Set("Authorization", "Basic "+basicAuth(username, password))
}

// basicAuth is lifted verbatim from net/http/client.go.
//
// See 2 (end of page 4) https://www.ietf.org/rfc/rfc2617.txt
// "To receive authorization, the client sends the userid and password,
// separated by a single colon (":") character, within a base64
// encoded string in the credentials."
// It is not meant to be urlencoded.
func basicAuth(username, password string) string {
	auth := username + ":" + password
	return base64.StdEncoding.EncodeToString([]byte(auth))
}
