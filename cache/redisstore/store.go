// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package redisstore provides a cache.Store backed by Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gogama/gotx/cache"
	goredis "github.com/redis/go-redis/v9"
)

// Store is a cache.Store which keeps JSON-encoded entries in Redis.
// Entries which cannot be revalidated expire in Redis when they become
// stale.
type Store struct {
	client    goredis.UniversalClient
	keyPrefix string
	now       func() time.Time
}

// New returns a Store using client. Every key is prefixed with
// keyPrefix followed by a colon, unless keyPrefix is empty.
func New(client goredis.UniversalClient, keyPrefix string) *Store {
	if client == nil {
		panic("gotx/redisstore: nil client")
	}
	return &Store{
		client:    client,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

func (s *Store) fullKey(key string) string {
	if s.keyPrefix == "" {
		return key
	}
	return s.keyPrefix + ":" + key
}

// Get returns the entry stored under key, or nil if there is none.
func (s *Store) Get(ctx context.Context, key string) (*cache.Entry, error) {
	raw, err := s.client.Get(ctx, s.fullKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("gotx/redisstore: get %q: %w", key, err)
	}

	var e cache.Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("gotx/redisstore: decode %q: %w", key, err)
	}
	return &e, nil
}

// Set stores e under key.
func (s *Store) Set(ctx context.Context, key string, e *cache.Entry) error {
	ttl := e.Retention(s.now())
	if !e.HasValidators() && ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("gotx/redisstore: encode %q: %w", key, err)
	}
	if err := s.client.Set(ctx, s.fullKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("gotx/redisstore: set %q: %w", key, err)
	}
	return nil
}

// Delete removes the entry stored under key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.fullKey(key)).Err(); err != nil {
		return fmt.Errorf("gotx/redisstore: delete %q: %w", key, err)
	}
	return nil
}

var _ cache.Store = (*Store)(nil)
