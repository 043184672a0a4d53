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

// Package kv defines the ordered key-value collaborator the archive core
// consumes: snapshot and transactional reads, forward/reverse cursors
// over a prefix, and conflict detection on commit. It intentionally
// trims the much larger surface a production KV binding carries (no
// dup-sort tables, no temporal/history queries, no bucket migration) down
// to exactly what the core needs.
package kv

import "context"

// CF names one of the four column families the core partitions its
// state into.
type CF string

const (
	CFChunks      CF = "chunks"
	CFTables      CF = "tables"
	CFDatasets    CF = "datasets"
	CFDirtyTables CF = "dirty_tables"
)

// ColumnFamilies lists every column family a DB implementation must
// provide.
var ColumnFamilies = []CF{CFChunks, CFTables, CFDatasets, CFDirtyTables}

// Cursor yields (key, value) pairs in byte order over a column family,
// already restricted to a prefix by whoever created it.
type Cursor interface {
	// Next advances the cursor and returns the next pair. ok is false
	// once the cursor is exhausted; err is non-nil only on failure.
	Next() (key, value []byte, ok bool, err error)
	Close()
}

// Snapshot is a point-in-time read view over every column family.
type Snapshot interface {
	// Get returns the value stored at (cf, key), or (nil, nil) if absent.
	Get(cf CF, key []byte) ([]byte, error)

	// Cursor returns a forward cursor over keys with the given prefix.
	Cursor(cf CF, prefix []byte) (Cursor, error)

	// ReverseCursor returns a reverse cursor over keys with the given
	// prefix, starting from the lexicographically last match.
	ReverseCursor(cf CF, prefix []byte) (Cursor, error)
}

// Tx is a read-write transaction: a Snapshot plus mutation and explicit
// lifecycle control. GetForUpdate and every mutation register a
// conflict dependency that Commit checks against the keys and prefixes
// touched by transactions that committed after this one began.
type Tx interface {
	Snapshot

	GetForUpdate(cf CF, key []byte) ([]byte, error)
	Put(cf CF, key, value []byte) error
	Delete(cf CF, key []byte) error
	DeleteRange(cf CF, prefix []byte) error

	// Commit applies the transaction's writes if no tracked key or
	// prefix was touched by a transaction that committed since this one
	// began; otherwise it returns archiveerr.ErrConflict and applies
	// nothing.
	Commit() error

	// Rollback discards the transaction's writes. Safe to call after
	// Commit (a no-op then) and safe to call multiple times.
	Rollback()
}

// DB is the collaborator handle the archive core is built against.
type DB interface {
	// Snapshot opens a point-in-time read view.
	Snapshot() (Snapshot, error)

	// Transaction runs fn against a fresh transaction and commits it,
	// retrying the whole of fn on a conflicting commit up to a small
	// bounded number of times before giving up with
	// archiveerr.ErrTooManyRetries. fn returning a non-nil error aborts
	// the transaction without retrying and without committing.
	// withSnapshot selects whether fn's reads observe a snapshot taken
	// at the start of each attempt (true) or the latest committed state
	// (false); GetForUpdate's conflict tracking is unaffected either way.
	Transaction(ctx context.Context, withSnapshot bool, fn func(tx Tx) error) error

	Close() error
}
