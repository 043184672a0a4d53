// Copyright 2022-2026 The N42 Authors
// This file is part of the N42 library.
//
// The N42 library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The N42 library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the N42 library. If not, see <http://www.gnu.org/licenses/>.

// Package pagecache puts an LRU in front of the KV read path for the
// tables column family. Table state is immutable once written under its
// TableId — a new version of a table always gets a fresh id — so cached
// values can never go stale; GC'd tables simply age out.
package pagecache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/n42blockchain/archive/kv"
)

// avgEntryBytes approximates one cached value's footprint when sizing the
// entry-counted LRU from a byte budget; it matches the default native
// buffer page target.
const avgEntryBytes = 64 * 1024

// Cache is a process-wide table-read cache, shared by every snapshot
// wrapped with Wrap. The zero of *Cache (nil) disables caching.
type Cache struct {
	entries *lru.Cache[string, []byte]
}

// New creates a cache bounded by roughly maxBytes of cached values. Zero
// maxBytes returns nil, which Wrap treats as caching disabled.
func New(maxBytes uint64) (*Cache, error) {
	if maxBytes == 0 {
		return nil, nil
	}
	n := int(maxBytes / avgEntryBytes)
	if n < 16 {
		n = 16
	}
	entries, err := lru.New[string, []byte](n)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}

// Wrap returns a snapshot whose CFTables gets are served from c when
// possible. Other column families (catalog, labels, dirty set) pass
// through untouched: they are mutable and must always observe the
// snapshot.
func Wrap(snap kv.Snapshot, c *Cache) kv.Snapshot {
	if c == nil {
		return snap
	}
	return &cachedSnapshot{snap: snap, cache: c}
}

type cachedSnapshot struct {
	snap  kv.Snapshot
	cache *Cache
}

func (s *cachedSnapshot) Get(cf kv.CF, key []byte) ([]byte, error) {
	if cf != kv.CFTables {
		return s.snap.Get(cf, key)
	}
	ck := string(key)
	if v, ok := s.cache.entries.Get(ck); ok {
		return v, nil
	}
	v, err := s.snap.Get(cf, key)
	if err != nil {
		return nil, err
	}
	// Absence is not cached: a snapshot taken mid-write may miss keys a
	// later snapshot must see.
	if v != nil {
		s.cache.entries.Add(ck, v)
	}
	return v, nil
}

func (s *cachedSnapshot) Cursor(cf kv.CF, prefix []byte) (kv.Cursor, error) {
	return s.snap.Cursor(cf, prefix)
}

func (s *cachedSnapshot) ReverseCursor(cf kv.CF, prefix []byte) (kv.Cursor, error) {
	return s.snap.ReverseCursor(cf, prefix)
}
