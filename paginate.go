// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gotx

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gogama/gotx/request"
)

// Pages iterates lazily over the items of a paginated resource. Each
// page is fetched by one request through the instance middleware, so
// hooks run once per page.
//
//	pages := inst.Paginate(ctx, &request.Options{URL: "https://api.example.com/items"})
//	for pages.Next() {
//		item := pages.Item()
//		...
//	}
//	if err := pages.Err(); err != nil {
//		...
//	}
//
// A Pages is not safe for concurrent use.
type Pages struct {
	inst *Instance
	ctx  context.Context
	next  *request.Options
	p     request.Pagination
	hooks request.Hooks

	resp     *request.Response
	items    []interface{}
	current  []interface{}
	all      []interface{}
	item     interface{}
	count    int
	requests int
	done     bool
	err      error
}

// Paginate returns an iterator over the items of the resource
// described by o. No request is made until Next is called.
func (i *Instance) Paginate(ctx context.Context, o *request.Options) *Pages {
	merged := request.Merge(i.defaults, o)
	p := merged.Pagination
	if p.Transform == nil {
		p.Transform = jsonItems
	}
	if p.Paginate == nil {
		p.Paginate = linkNext
	}
	return &Pages{
		inst: i,
		ctx:  ctx,
		next:  merged,
		p:     p,
		hooks: merged.Hooks,
	}
}

// Next advances to the next item, fetching pages as needed. It
// returns false when the items are exhausted, a limit is reached, or
// an error occurs.
func (p *Pages) Next() bool {
	for !p.done {
		if len(p.items) == 0 {
			if !p.fetch() {
				return false
			}
			continue
		}
		item := p.items[0]
		p.items = p.items[1:]
		st := p.state(item)
		if p.p.Filter != nil && !p.p.Filter(st) {
			continue
		}
		if p.p.ShouldContinue != nil && !p.p.ShouldContinue(st) {
			p.done = true
			return false
		}
		p.item = item
		p.count++
		p.current = append(p.current, item)
		if stack(p.p) {
			p.all = append(p.all, item)
		}
		if p.p.CountLimit > 0 && p.count >= p.p.CountLimit {
			p.items = nil
			p.next = nil
		}
		return true
	}
	return false
}

// Item returns the current item.
func (p *Pages) Item() interface{} {
	return p.item
}

// Response returns the response of the current page.
func (p *Pages) Response() *request.Response {
	return p.resp
}

// Err returns the error which stopped the iteration, if any.
func (p *Pages) Err() error {
	return p.err
}

// fetch requests the next page and computes the options of the page
// after it. It reports whether a page was fetched.
func (p *Pages) fetch() bool {
	if p.next == nil || (p.p.CountLimit > 0 && p.count >= p.p.CountLimit) {
		p.done = true
		return false
	}
	limit := p.p.RequestLimit
	if limit <= 0 {
		limit = request.DefaultRequestLimit
	}
	if p.requests >= limit {
		p.done = true
		return false
	}
	if p.requests > 0 && p.p.Backoff > 0 && !sleep(p.ctx, p.p.Backoff) {
		return p.fail(request.NewCancelError(context.Cause(p.ctx), p.next))
	}

	resp, err := p.inst.invoke(p.ctx, p.next)
	p.requests++
	if err != nil {
		return p.fail(err)
	}
	p.resp = resp
	items, err := p.p.Transform(resp)
	if err != nil {
		return p.fail(err)
	}
	p.items = items
	p.current = nil

	next, err := p.p.Paginate(request.PageState{
		Response:     resp,
		CurrentItems: items,
		AllItems:     p.all,
	})
	if err != nil {
		return p.fail(err)
	}
	switch {
	case next == nil:
		p.next = nil
	case next == resp.Options():
		p.next = p.rehook(next)
	default:
		p.next = request.Merge(p.rehook(resp.Options()), next)
	}
	return true
}

// rehook returns a copy of the options of a fetched page carrying the
// hook chain of the first page. A retry requested by an AfterResponse
// hook trims the chain of the request it happens in, and the trimmed
// chain must not carry over to later pages.
func (p *Pages) rehook(o *request.Options) *request.Options {
	o = o.Clone()
	o.Hooks = p.hooks
	return o
}

func (p *Pages) fail(err error) bool {
	p.err = err
	p.done = true
	return false
}

func (p *Pages) state(item interface{}) request.PageState {
	return request.PageState{
		Response:     p.resp,
		Item:         item,
		CurrentItems: p.current,
		AllItems:     p.all,
	}
}

func stack(pg request.Pagination) bool {
	return pg.StackAllItems != nil && *pg.StackAllItems
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// jsonItems decodes a page whose body is a JSON array.
func jsonItems(r *request.Response) ([]interface{}, error) {
	if a, ok := r.Decoded.([]interface{}); ok {
		return a, nil
	}
	var items []interface{}
	if err := r.JSON(&items); err != nil {
		return nil, err
	}
	return items, nil
}

// linkNext follows the "next" relation of the Link header.
func linkNext(st request.PageState) (*request.Options, error) {
	r := st.Response
	for _, v := range r.Header.Values("Link") {
		for _, link := range strings.Split(v, ",") {
			target, ok := nextLink(link)
			if !ok {
				continue
			}
			u, err := r.URL.Parse(target)
			if err != nil {
				return nil, err
			}
			return &request.Options{URL: u.String()}, nil
		}
	}
	return nil, nil
}

// nextLink parses one link-value of a Link header, returning its
// target if its rel parameter includes "next".
func nextLink(link string) (string, bool) {
	parts := strings.Split(link, ";")
	target := strings.TrimSpace(parts[0])
	if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
		return "", false
	}
	target = target[1 : len(target)-1]
	for _, param := range parts[1:] {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(k), "rel") {
			continue
		}
		for _, rel := range strings.Fields(strings.Trim(strings.TrimSpace(v), `"`)) {
			if strings.EqualFold(rel, "next") {
				return target, true
			}
		}
	}
	return "", false
}

// All collects every item of a paginated resource. Items are converted
// to T by type assertion, or else through their JSON encoding.
func All[T any](ctx context.Context, inst *Instance, o *request.Options) ([]T, error) {
	if inst == nil {
		inst = Default
	}
	var out []T
	pages := inst.Paginate(ctx, o)
	for pages.Next() {
		item := pages.Item()
		if t, ok := item.(T); ok {
			out = append(out, t)
			continue
		}
		b, err := json.Marshal(item)
		if err != nil {
			return out, request.NewParseError(err, pages.Response())
		}
		var t T
		if err = json.Unmarshal(b, &t); err != nil {
			return out, request.NewParseError(err, pages.Response())
		}
		out = append(out, t)
	}
	return out, pages.Err()
}
