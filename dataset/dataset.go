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

// Package dataset is the transactional lifecycle layer of the archive
// engine: per-dataset labels with an optimistic version token, chunk
// insert/fork-replace/delete, multi-chunk compaction, the dirty-table
// sweep, and the projected, predicate-filtered query path. Every mutation
// runs as one KV transaction contending only on the dataset's label row.
package dataset

import (
	"crypto/sha512"

	"github.com/sirupsen/logrus"

	"github.com/n42blockchain/archive/archivelog"
	"github.com/n42blockchain/archive/conf"
	"github.com/n42blockchain/archive/kv"
	"github.com/n42blockchain/archive/pagecache"
	"github.com/n42blockchain/archive/params"
	"github.com/n42blockchain/archive/tableid"
)

// Store is the engine's entry point: a KV handle, the shared page cache,
// and the scan admission gate. All methods are safe for concurrent use.
type Store struct {
	db    kv.DB
	cfg   conf.DatabaseConfig
	cache *pagecache.Cache
	scans chan struct{}
}

// NewStore wraps db with the archive engine. A non-positive
// MaxConcurrentScans gets the default; a zero DataCacheSize disables the
// page cache.
func NewStore(db kv.DB, cfg conf.DatabaseConfig) (*Store, error) {
	if cfg.MaxConcurrentScans <= 0 {
		cfg.MaxConcurrentScans = conf.DefaultDatabaseConfig().MaxConcurrentScans
	}
	cache, err := pagecache.New(cfg.DataCacheSize.Bytes())
	if err != nil {
		return nil, err
	}
	s := &Store{
		db:    db,
		cfg:   cfg,
		cache: cache,
		scans: make(chan struct{}, cfg.MaxConcurrentScans),
	}
	archivelog.With(logrus.Fields{
		"version":    params.Version,
		"data_cache": cfg.DataCacheSize.HumanReadable(),
		"max_scans":  cfg.MaxConcurrentScans,
	}).Info("archive store opened")
	return s, nil
}

// DB exposes the underlying KV handle, for embedders that run their own
// maintenance against it.
func (s *Store) DB() kv.DB { return s.db }

// snapshot opens a read view with the page cache in front of table reads.
func (s *Store) snapshot() (kv.Snapshot, error) {
	snap, err := s.db.Snapshot()
	if err != nil {
		return nil, err
	}
	return pagecache.Wrap(snap, s.cache), nil
}

// DatasetIdFromName hashes a human-readable dataset name down to the
// fixed-width dataset id (SHA-384, exactly the id's 48 bytes).
func DatasetIdFromName(name string) tableid.DatasetId {
	sum := sha512.Sum384([]byte(name))
	return tableid.NewDatasetId(sum[:])
}

// KindFromString packs a short kind name ("evm", "solana") into the
// fixed-width kind tag, zero-padded. Names longer than the tag are
// truncated.
func KindFromString(kind string) tableid.DatasetKind {
	var k tableid.DatasetKind
	copy(k[:], kind)
	return k
}
