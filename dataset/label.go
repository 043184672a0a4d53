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

	"github.com/n42blockchain/archive/archiveerr"
	"github.com/n42blockchain/archive/catalog"
	"github.com/n42blockchain/archive/kv"
	"github.com/n42blockchain/archive/tableid"
)

// labelForUpdate reads the dataset label with a conflict-tracked lock,
// the one read every dataset-mutating transaction performs first.
func labelForUpdate(tx kv.Tx, id tableid.DatasetId) (catalog.DatasetLabel, error) {
	blob, err := tx.GetForUpdate(kv.CFDatasets, catalog.LabelKey(id))
	if err != nil {
		return catalog.DatasetLabel{}, err
	}
	if blob == nil {
		return catalog.DatasetLabel{}, archiveerr.Wrapf(archiveerr.ErrDatasetNotFound, "dataset %s", id)
	}
	return catalog.DecodeLabel(blob)
}

// updateDataset runs fn inside a transaction that has locked the dataset
// label, then bumps the label version and writes it back. fn may mutate
// any label field except Version; a non-nil error aborts without
// committing. Conflicting commits re-run fn from scratch (bounded by the
// KV layer's retry budget).
func (s *Store) updateDataset(ctx context.Context, id tableid.DatasetId, fn func(tx kv.Tx, label *catalog.DatasetLabel) error) error {
	return s.db.Transaction(ctx, true, func(tx kv.Tx) error {
		label, err := labelForUpdate(tx, id)
		if err != nil {
			return err
		}
		if err := fn(tx, &label); err != nil {
			return err
		}
		label.Version++
		return tx.Put(kv.CFDatasets, catalog.LabelKey(id), catalog.EncodeLabel(label))
	})
}

// CreateDataset writes the initial label (version 1) for a dataset that
// does not exist yet.
func (s *Store) CreateDataset(ctx context.Context, id tableid.DatasetId, kind tableid.DatasetKind) error {
	return s.db.Transaction(ctx, true, func(tx kv.Tx) error {
		existing, err := tx.GetForUpdate(kv.CFDatasets, catalog.LabelKey(id))
		if err != nil {
			return err
		}
		if existing != nil {
			return archiveerr.Wrapf(archiveerr.ErrDatasetExists, "dataset %s", id)
		}
		label := catalog.DatasetLabel{Kind: kind, Version: 1}
		return tx.Put(kv.CFDatasets, catalog.LabelKey(id), catalog.EncodeLabel(label))
	})
}

// Label reads the dataset's current label from a fresh snapshot.
func (s *Store) Label(id tableid.DatasetId) (catalog.DatasetLabel, error) {
	snap, err := s.db.Snapshot()
	if err != nil {
		return catalog.DatasetLabel{}, err
	}
	blob, err := snap.Get(kv.CFDatasets, catalog.LabelKey(id))
	if err != nil {
		return catalog.DatasetLabel{}, err
	}
	if blob == nil {
		return catalog.DatasetLabel{}, archiveerr.Wrapf(archiveerr.ErrDatasetNotFound, "dataset %s", id)
	}
	return catalog.DecodeLabel(blob)
}

// SetFinalizedHead advances the dataset's finalized head. The head can
// never move backward, and must not run past the highest committed chunk.
func (s *Store) SetFinalizedHead(ctx context.Context, id tableid.DatasetId, number uint64, hash []byte) error {
	return s.updateDataset(ctx, id, func(tx kv.Tx, label *catalog.DatasetLabel) error {
		if label.Finalized != nil && number < label.Finalized.Number {
			return archiveerr.Wrapf(archiveerr.ErrFinalizedHeadRegression, "finalized %d, requested %d", label.Finalized.Number, number)
		}
		last, ok, err := lastChunk(tx, id)
		if err != nil {
			return err
		}
		if !ok || last.LastBlock < number {
			return archiveerr.Wrapf(archiveerr.ErrChunkNotFound, "no committed chunk reaches block %d", number)
		}
		label.Finalized = &catalog.FinalizedHead{Number: number, Hash: append([]byte(nil), hash...)}
		return nil
	})
}
