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

package memkv

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/n42blockchain/archive/archiveerr"
	"github.com/n42blockchain/archive/kv"
)

func TestPutGetDelete(t *testing.T) {
	db := New()
	ctx := context.Background()

	err := db.Transaction(ctx, false, func(tx kv.Tx) error {
		return tx.Put(kv.CFChunks, []byte("a"), []byte("1"))
	})
	require.NoError(t, err)

	snap, err := db.Snapshot()
	require.NoError(t, err)
	v, err := snap.Get(kv.CFChunks, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)

	err = db.Transaction(ctx, false, func(tx kv.Tx) error {
		return tx.Delete(kv.CFChunks, []byte("a"))
	})
	require.NoError(t, err)

	snap2, err := db.Snapshot()
	require.NoError(t, err)
	v, err = snap2.Get(kv.CFChunks, []byte("a"))
	require.NoError(t, err)
	require.Nil(t, v)

	// the earlier snapshot must still see the old value: it is a
	// point-in-time view, unaffected by the later transaction.
	v, err = snap.Get(kv.CFChunks, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)
}

func TestCursorOrderingAndPrefix(t *testing.T) {
	db := New()
	ctx := context.Background()
	keys := []string{"b/1", "b/2", "a/1", "c/1", "b/0"}
	err := db.Transaction(ctx, false, func(tx kv.Tx) error {
		for _, k := range keys {
			if err := tx.Put(kv.CFTables, []byte(k), []byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	snap, err := db.Snapshot()
	require.NoError(t, err)
	c, err := snap.Cursor(kv.CFTables, []byte("b/"))
	require.NoError(t, err)
	var got []string
	for {
		k, _, ok, err := c.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, string(k))
	}
	require.Equal(t, []string{"b/0", "b/1", "b/2"}, got)

	rc, err := snap.ReverseCursor(kv.CFTables, []byte("b/"))
	require.NoError(t, err)
	got = nil
	for {
		k, _, ok, err := rc.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, string(k))
	}
	require.Equal(t, []string{"b/2", "b/1", "b/0"}, got)
}

func TestGetForUpdateConflictDetected(t *testing.T) {
	db := New()
	ctx := context.Background()
	require.NoError(t, db.Transaction(ctx, false, func(tx kv.Tx) error {
		return tx.Put(kv.CFDatasets, []byte("label"), []byte("v1"))
	}))

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	var seenFirstRead []byte
	attempts := 0

	go func() {
		defer close(done)
		_ = db.Transaction(ctx, false, func(tx kv.Tx) error {
			attempts++
			v, err := tx.GetForUpdate(kv.CFDatasets, []byte("label"))
			if err != nil {
				return err
			}
			if attempts == 1 {
				seenFirstRead = v
				close(started)
				<-release
			}
			return tx.Put(kv.CFDatasets, []byte("label"), []byte("from-goroutine"))
		})
	}()

	<-started
	require.NoError(t, db.Transaction(ctx, false, func(tx kv.Tx) error {
		return tx.Put(kv.CFDatasets, []byte("label"), []byte("from-main"))
	}))
	close(release)
	<-done

	snap, err := db.Snapshot()
	require.NoError(t, err)
	v, err := snap.Get(kv.CFDatasets, []byte("label"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), seenFirstRead)
	// the first commit conflicted with main's write, so fn ran again
	require.Equal(t, 2, attempts)
	// one of the two writers won; whichever it was, its value must stick
	// (the retried loser sees the winner's write on its next attempt and
	// simply overwrites it again rather than erroring out).
	require.Contains(t, []string{"from-main", "from-goroutine"}, string(v))
}

func TestTransactionRollsBackOnError(t *testing.T) {
	db := New()
	ctx := context.Background()
	sentinel := errors.New("boom")
	err := db.Transaction(ctx, false, func(tx kv.Tx) error {
		if putErr := tx.Put(kv.CFChunks, []byte("x"), []byte("y")); putErr != nil {
			return putErr
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	snap, err := db.Snapshot()
	require.NoError(t, err)
	v, err := snap.Get(kv.CFChunks, []byte("x"))
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestDeleteRange(t *testing.T) {
	db := New()
	ctx := context.Background()
	require.NoError(t, db.Transaction(ctx, false, func(tx kv.Tx) error {
		for _, k := range []string{"p/1", "p/2", "q/1"} {
			if err := tx.Put(kv.CFDirtyTables, []byte(k), []byte("v")); err != nil {
				return err
			}
		}
		return nil
	}))
	require.NoError(t, db.Transaction(ctx, false, func(tx kv.Tx) error {
		return tx.DeleteRange(kv.CFDirtyTables, []byte("p/"))
	}))

	snap, err := db.Snapshot()
	require.NoError(t, err)
	c, err := snap.Cursor(kv.CFDirtyTables, nil)
	require.NoError(t, err)
	var remaining []string
	for {
		k, _, ok, err := c.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		remaining = append(remaining, string(k))
	}
	require.Equal(t, []string{"q/1"}, remaining)
}

func TestUnknownColumnFamily(t *testing.T) {
	db := New()
	snap, err := db.Snapshot()
	require.NoError(t, err)
	_, err = snap.Get(kv.CF("bogus"), []byte("k"))
	require.Error(t, err)
	require.True(t, archiveerr.Is(err, archiveerr.ErrCorruptKey))
}
