// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeprecations(t *testing.T) {
	var codes []string
	d := &Deprecations{Sink: func(code, _ string) { codes = append(codes, code) }}
	o := &Options{SharedAgent: &http.Transport{}}

	d.Check(&Options{})
	assert.Empty(t, codes)
	d.Check(o)
	d.Check(o)
	assert.Equal(t, []string{DeprecatedSharedAgent}, codes)

	d.Reset()
	d.Check(o)
	assert.Equal(t, []string{DeprecatedSharedAgent, DeprecatedSharedAgent}, codes)
}

func TestDeprecations_Concurrent(t *testing.T) {
	var mu sync.Mutex
	n := 0
	d := &Deprecations{Sink: func(string, string) {
		mu.Lock()
		n++
		mu.Unlock()
	}}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Warn("X", "x")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, n)
}

func TestDeprecations_NilSink(t *testing.T) {
	var d Deprecations
	assert.NotPanics(t, func() { d.Warn("X", "x") })
}
