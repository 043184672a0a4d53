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

// Package memkv is an in-memory reference implementation of kv.DB, backed
// by a copy-on-write B-tree per column family so that a Snapshot's view
// never changes under it. It exists to develop and test the archive core
// without a real storage engine wired in; it is not meant to survive a
// process restart.
package memkv

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/n42blockchain/archive/archiveerr"
	"github.com/n42blockchain/archive/kv"
)

// maxRetries bounds the number of times Transaction re-runs fn after a
// conflicting commit before giving up.
const maxRetries = 8

type item struct {
	key      []byte
	value    []byte
	writeSeq uint64
}

func less(a, b item) bool { return bytes.Compare(a.key, b.key) < 0 }

// DB is a memkv instance. The zero value is not usable; use New.
type DB struct {
	mu    sync.Mutex
	trees map[kv.CF]*btree.BTreeG[item]
	seq   uint64
}

// New creates an empty in-memory database with every column family kv.DB
// requires already present.
func New() *DB {
	d := &DB{trees: make(map[kv.CF]*btree.BTreeG[item], len(kv.ColumnFamilies))}
	for _, cf := range kv.ColumnFamilies {
		d.trees[cf] = btree.NewG(32, less)
	}
	return d
}

func (d *DB) Close() error { return nil }

// Snapshot returns a point-in-time view built from a cheap copy-on-write
// clone of each column family's tree.
func (d *DB) Snapshot() (kv.Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked(), nil
}

func (d *DB) snapshotLocked() *snapshot {
	trees := make(map[kv.CF]*btree.BTreeG[item], len(d.trees))
	for cf, t := range d.trees {
		trees[cf] = t.Clone()
	}
	return &snapshot{trees: trees}
}

func (d *DB) treeFor(cf kv.CF) (*btree.BTreeG[item], error) {
	t, ok := d.trees[cf]
	if !ok {
		return nil, archiveerr.Wrapf(archiveerr.ErrCorruptKey, "unknown column family %q", cf)
	}
	return t, nil
}

// Transaction opens a fresh *tx each attempt, runs fn, and commits,
// retrying on archiveerr.ErrConflict up to maxRetries times.
func (d *DB) Transaction(ctx context.Context, withSnapshot bool, fn func(kv.Tx) error) error {
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return archiveerr.Wrap(archiveerr.ErrCancelled, err.Error())
		}
		t := d.beginTx(withSnapshot)
		if err := fn(t); err != nil {
			t.Rollback()
			return err
		}
		err := t.Commit()
		if err == nil {
			return nil
		}
		if !archiveerr.Is(err, archiveerr.ErrConflict) {
			return err
		}
	}
	return archiveerr.ErrTooManyRetries
}

func (d *DB) beginTx(withSnapshot bool) *tx {
	d.mu.Lock()
	defer d.mu.Unlock()
	return &tx{
		db:           d,
		snapshotSeq:  d.seq,
		withSnapshot: withSnapshot,
		view:         d.snapshotLocked(),
		tracked:      make(map[trackKey]uint64),
		puts:         make(map[trackKey]item),
		deletes:      make(map[trackKey]bool),
		rangeDeletes: make(map[kv.CF][][]byte),
	}
}

// snapshot is a read-only view over cloned trees.
type snapshot struct {
	trees map[kv.CF]*btree.BTreeG[item]
}

func (s *snapshot) treeFor(cf kv.CF) (*btree.BTreeG[item], error) {
	t, ok := s.trees[cf]
	if !ok {
		return nil, archiveerr.Wrapf(archiveerr.ErrCorruptKey, "unknown column family %q", cf)
	}
	return t, nil
}

func (s *snapshot) Get(cf kv.CF, key []byte) ([]byte, error) {
	t, err := s.treeFor(cf)
	if err != nil {
		return nil, err
	}
	it, ok := t.Get(item{key: key})
	if !ok {
		return nil, nil
	}
	return it.value, nil
}

func prefixUpperBound(prefix []byte) []byte {
	out := append([]byte(nil), prefix...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xff {
			out[i]++
			return out[:i+1]
		}
	}
	return nil // prefix is all 0xff (or empty): no finite upper bound
}

func collectPrefix(t *btree.BTreeG[item], prefix []byte) []item {
	var out []item
	t.AscendGreaterOrEqual(item{key: prefix}, func(it item) bool {
		if !bytes.HasPrefix(it.key, prefix) {
			return false
		}
		out = append(out, it)
		return true
	})
	return out
}

func (s *snapshot) Cursor(cf kv.CF, prefix []byte) (kv.Cursor, error) {
	t, err := s.treeFor(cf)
	if err != nil {
		return nil, err
	}
	return &cursor{items: collectPrefix(t, prefix)}, nil
}

func (s *snapshot) ReverseCursor(cf kv.CF, prefix []byte) (kv.Cursor, error) {
	t, err := s.treeFor(cf)
	if err != nil {
		return nil, err
	}
	items := collectPrefix(t, prefix)
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return &cursor{items: items}, nil
}

type cursor struct {
	items []item
	pos   int
}

func (c *cursor) Next() (key, value []byte, ok bool, err error) {
	if c.pos >= len(c.items) {
		return nil, nil, false, nil
	}
	it := c.items[c.pos]
	c.pos++
	return it.key, it.value, true, nil
}

func (c *cursor) Close() {}

type trackKey struct {
	cf  kv.CF
	key string
}

// tx is a read-write transaction. Reads go against view (a snapshot
// taken at Begin) when withSnapshot is set, otherwise against the live
// committed state; either way GetForUpdate, Put, Delete, and
// DeleteRange record a dependency that Commit checks against every key
// a competing transaction wrote since snapshotSeq.
type tx struct {
	db           *DB
	snapshotSeq  uint64
	withSnapshot bool
	view         *snapshot

	tracked      map[trackKey]uint64
	puts         map[trackKey]item
	deletes      map[trackKey]bool
	rangeDeletes map[kv.CF][][]byte
	closed       bool
}

func (t *tx) readView(cf kv.CF) (*btree.BTreeG[item], error) {
	if t.withSnapshot {
		return t.view.treeFor(cf)
	}
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	return t.db.treeFor(cf)
}

func (t *tx) Get(cf kv.CF, key []byte) ([]byte, error) {
	tk := trackKey{cf, string(key)}
	if p, ok := t.puts[tk]; ok {
		return p.value, nil
	}
	if t.deletes[tk] {
		return nil, nil
	}
	tree, err := t.readView(cf)
	if err != nil {
		return nil, err
	}
	it, ok := tree.Get(item{key: key})
	if !ok {
		return nil, nil
	}
	return it.value, nil
}

func (t *tx) Cursor(cf kv.CF, prefix []byte) (kv.Cursor, error) {
	tree, err := t.readView(cf)
	if err != nil {
		return nil, err
	}
	return &cursor{items: t.mergeLocalWrites(cf, collectPrefix(tree, prefix))}, nil
}

func (t *tx) ReverseCursor(cf kv.CF, prefix []byte) (kv.Cursor, error) {
	tree, err := t.readView(cf)
	if err != nil {
		return nil, err
	}
	items := t.mergeLocalWrites(cf, collectPrefix(tree, prefix))
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return &cursor{items: items}, nil
}

// mergeLocalWrites overlays this transaction's uncommitted puts/deletes
// onto a base result set, keeping it sorted by key.
func (t *tx) mergeLocalWrites(cf kv.CF, base []item) []item {
	if len(t.puts) == 0 && len(t.deletes) == 0 {
		return base
	}
	byKey := make(map[string]item, len(base))
	order := make([]string, 0, len(base))
	for _, it := range base {
		byKey[string(it.key)] = it
		order = append(order, string(it.key))
	}
	for tk, it := range t.puts {
		if tk.cf != cf {
			continue
		}
		if _, existed := byKey[tk.key]; !existed {
			order = append(order, tk.key)
		}
		byKey[tk.key] = it
	}
	for tk := range t.deletes {
		if tk.cf != cf {
			continue
		}
		delete(byKey, tk.key)
	}
	out := make([]item, 0, len(byKey))
	seen := make(map[string]bool, len(order))
	for _, k := range order {
		if seen[k] {
			continue
		}
		seen[k] = true
		if it, ok := byKey[k]; ok {
			out = append(out, it)
		}
	}
	sortItems(out)
	return out
}

func sortItems(items []item) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && less(items[j], items[j-1]); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

func (t *tx) GetForUpdate(cf kv.CF, key []byte) ([]byte, error) {
	tk := trackKey{cf, string(key)}
	t.track(tk)
	return t.Get(cf, key)
}

func (t *tx) track(tk trackKey) {
	if _, already := t.tracked[tk]; already {
		return
	}
	// The sequence is taken from the view cloned at begin, so a commit
	// that lands between begin and this call is still seen as a conflict.
	tree := t.view.trees[tk.cf]
	var seq uint64
	if it, ok := tree.Get(item{key: []byte(tk.key)}); ok {
		seq = it.writeSeq
	}
	t.tracked[tk] = seq
}

func (t *tx) Put(cf kv.CF, key, value []byte) error {
	tk := trackKey{cf, string(key)}
	t.track(tk)
	t.puts[tk] = item{key: append([]byte(nil), key...), value: append([]byte(nil), value...)}
	delete(t.deletes, tk)
	return nil
}

func (t *tx) Delete(cf kv.CF, key []byte) error {
	tk := trackKey{cf, string(key)}
	t.track(tk)
	t.deletes[tk] = true
	delete(t.puts, tk)
	return nil
}

func (t *tx) DeleteRange(cf kv.CF, prefix []byte) error {
	t.rangeDeletes[cf] = append(t.rangeDeletes[cf], append([]byte(nil), prefix...))
	for tk := range t.puts {
		if tk.cf == cf && bytes.HasPrefix([]byte(tk.key), prefix) {
			delete(t.puts, tk)
		}
	}
	return nil
}

// Commit checks every tracked key plus every range-delete prefix against
// the live state: if anything under them changed since snapshotSeq, the
// commit is refused with archiveerr.ErrConflict and nothing is applied.
func (t *tx) Commit() error {
	if t.closed {
		return nil
	}
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	t.closed = true

	for tk, seenSeq := range t.tracked {
		tree := t.db.trees[tk.cf]
		var curSeq uint64
		if it, ok := tree.Get(item{key: []byte(tk.key)}); ok {
			curSeq = it.writeSeq
		}
		if curSeq != seenSeq {
			return archiveerr.ErrConflict
		}
	}
	for cf, prefixes := range t.rangeDeletes {
		tree := t.db.trees[cf]
		for _, prefix := range prefixes {
			conflict := false
			tree.AscendGreaterOrEqual(item{key: prefix}, func(it item) bool {
				if !bytes.HasPrefix(it.key, prefix) {
					return false
				}
				if it.writeSeq > t.snapshotSeq {
					conflict = true
					return false
				}
				return true
			})
			if conflict {
				return archiveerr.ErrConflict
			}
		}
	}

	t.db.seq++
	newSeq := t.db.seq

	// Clone each touched column family's tree exactly once before
	// mutating it: concurrent readers that took a live (non-snapshot)
	// tree reference before this lock may still be walking the old
	// object, so commits must publish a new tree rather than mutate the
	// one already handed out.
	mutated := make(map[kv.CF]*btree.BTreeG[item])
	mutate := func(cf kv.CF) *btree.BTreeG[item] {
		if tr, ok := mutated[cf]; ok {
			return tr
		}
		tr := t.db.trees[cf].Clone()
		mutated[cf] = tr
		return tr
	}

	for cf, prefixes := range t.rangeDeletes {
		tree := mutate(cf)
		for _, prefix := range prefixes {
			var toDelete []item
			tree.AscendGreaterOrEqual(item{key: prefix}, func(it item) bool {
				if !bytes.HasPrefix(it.key, prefix) {
					return false
				}
				toDelete = append(toDelete, it)
				return true
			})
			for _, it := range toDelete {
				tree.Delete(it)
			}
		}
	}
	for tk := range t.deletes {
		mutate(tk.cf).Delete(item{key: []byte(tk.key)})
	}
	for tk, it := range t.puts {
		it.writeSeq = newSeq
		mutate(tk.cf).ReplaceOrInsert(it)
	}
	for cf, tr := range mutated {
		t.db.trees[cf] = tr
	}
	return nil
}

// Rollback discards the transaction's buffered writes; the live trees
// were never touched, so there is nothing to undo.
func (t *tx) Rollback() {
	t.closed = true
}
