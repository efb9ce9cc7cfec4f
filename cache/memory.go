// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package cache

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const numShards = 16

// Memory is an in-memory Store. The zero value is not usable; create
// one with NewMemory.
type Memory struct {
	shards [numShards]*shard
	now    func() time.Time
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	e       *Entry
	evictAt time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	m := &Memory{now: time.Now}
	for i := range m.shards {
		m.shards[i] = &shard{entries: make(map[string]memoryEntry)}
	}
	return m
}

func (m *Memory) shard(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return m.shards[h.Sum32()%numShards]
}

// Get returns a copy of the entry stored under key.
func (m *Memory) Get(_ context.Context, key string) (*Entry, error) {
	s := m.shard(key)
	s.mu.RLock()
	me, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !me.evictAt.IsZero() && !m.now().Before(me.evictAt) {
		s.mu.Lock()
		if cur, ok := s.entries[key]; ok && cur.e == me.e {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, nil
	}
	return me.e.Clone(), nil
}

// Set stores a copy of e under key, until its retention elapses.
func (m *Memory) Set(_ context.Context, key string, e *Entry) error {
	me := memoryEntry{e: e.Clone()}
	if r := e.Retention(m.now()); r != 0 {
		me.evictAt = e.ExpiresAt
	}
	s := m.shard(key)
	s.mu.Lock()
	s.entries[key] = me
	s.mu.Unlock()
	return nil
}

// Delete removes the entry stored under key.
func (m *Memory) Delete(_ context.Context, key string) error {
	s := m.shard(key)
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, including entries whose
// retention has elapsed but which were not yet evicted.
func (m *Memory) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}
