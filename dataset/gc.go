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

package dataset

import (
	"context"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/n42blockchain/archive/archivelog"
	"github.com/n42blockchain/archive/kv"
	"github.com/n42blockchain/archive/tableid"
)

// SweepDirtyTables deletes every key under every dirty TableId prefix,
// then clears the dirty entries. Each table is swept in its own
// transaction guarded by a locking read of its dirty entry, so a sweep
// racing a chunk commit (which clears dirty entries as it makes tables
// live) backs off that table instead of deleting live data. Returns how
// many tables were swept.
func (s *Store) SweepDirtyTables(ctx context.Context) (int, error) {
	snap, err := s.db.Snapshot()
	if err != nil {
		return 0, err
	}
	cur, err := snap.Cursor(kv.CFDirtyTables, nil)
	if err != nil {
		return 0, err
	}
	dirty := mapset.NewSet[tableid.TableId]()
	for {
		key, _, ok, err := cur.Next()
		if err != nil {
			cur.Close()
			return 0, err
		}
		if !ok {
			break
		}
		var id tableid.TableId
		if len(key) == len(id) {
			copy(id[:], key)
			dirty.Add(id)
		}
	}
	cur.Close()

	swept := 0
	for id := range dirty.Iter() {
		deleted := false
		err := s.db.Transaction(ctx, false, func(tx kv.Tx) error {
			deleted = false
			entry, err := tx.GetForUpdate(kv.CFDirtyTables, dirtyKey(id))
			if err != nil {
				return err
			}
			if entry == nil {
				// A chunk commit claimed this table since the scan.
				return nil
			}
			if err := tx.DeleteRange(kv.CFTables, id.Bytes()); err != nil {
				return err
			}
			if err := tx.Delete(kv.CFDirtyTables, dirtyKey(id)); err != nil {
				return err
			}
			deleted = true
			return nil
		})
		if err != nil {
			return swept, err
		}
		if deleted {
			swept++
		}
	}
	if swept > 0 {
		archivelog.Debugf("gc swept %d dirty tables", swept)
	}
	return swept, nil
}

// RunGC sweeps dirty tables every interval until ctx is cancelled.
// Sweep errors are logged and do not stop the loop.
func (s *Store) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepDirtyTables(ctx); err != nil {
				archivelog.Warnf("gc sweep failed: %v", err)
			}
		}
	}
}
