// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import "sync"

// Deprecation codes.
const (
	DeprecatedSharedAgent = "GOTX_DEP_SHARED_AGENT"
)

// Deprecations emits each deprecation warning at most once until
// Reset. The zero value discards warnings.
type Deprecations struct {
	// Sink receives each warning. A nil Sink discards warnings.
	Sink func(code, msg string)

	mu   sync.Mutex
	seen map[string]bool
}

// Warn emits the warning for code, unless it was already emitted.
func (d *Deprecations) Warn(code, msg string) {
	d.mu.Lock()
	if d.seen[code] {
		d.mu.Unlock()
		return
	}
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	d.seen[code] = true
	sink := d.Sink
	d.mu.Unlock()

	if sink != nil {
		sink(code, msg)
	}
}

// Reset forgets which warnings were emitted.
func (d *Deprecations) Reset() {
	d.mu.Lock()
	d.seen = nil
	d.mu.Unlock()
}

// Check emits the warnings due for the use of deprecated options in o.
func (d *Deprecations) Check(o *Options) {
	if o.SharedAgent != nil {
		d.Warn(DeprecatedSharedAgent, "The `sharedAgent` option is deprecated. Use `agent` instead.")
	}
}
