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

// Package archiveerr defines the error taxonomy shared by every package in
// the archive storage engine. Callers distinguish kinds with errors.Is
// against the sentinels below, never by inspecting message text.
package archiveerr

import (
	"errors"
	"fmt"
)

// =====================
// Corruption errors
// =====================
//
// Corruption errors are fatal: the on-disk representation does not match
// what the writer contract guarantees, and no caller should attempt to
// repair it automatically.

var (
	// ErrCorruptPage is returned when a page's stored length disagrees with
	// the length recorded in its page-offset index.
	ErrCorruptPage = errors.New("archive: page length disagrees with offset index")

	// ErrCorruptSchema is returned when a stored schema cannot be decoded,
	// or decodes to a shape the table's buffers do not match.
	ErrCorruptSchema = errors.New("archive: stored schema is corrupt or incompatible")

	// ErrCorruptStats is returned when a stored statistics blob fails its
	// internal self-description checks (offsets not monotonic, min/max
	// null-count mismatch, trailer out of range).
	ErrCorruptStats = errors.New("archive: stored statistics blob is corrupt")

	// ErrCorruptKey is returned when a catalog or table key cannot be
	// decoded back into its structured form.
	ErrCorruptKey = errors.New("archive: key encoding is corrupt")
)

// =====================
// Validation errors
// =====================
//
// Validation errors are typed and never mutate state; the caller supplied
// an operation the engine's invariants reject.

var (
	// ErrChunkNotContiguous is returned when inserting a chunk that does
	// not extend the dataset's existing block range contiguously.
	ErrChunkNotContiguous = errors.New("archive: chunk does not extend dataset contiguously")

	// ErrChunkOverlap is returned when inserting a chunk whose block range
	// overlaps an existing chunk in a way the operation does not permit.
	ErrChunkOverlap = errors.New("archive: chunk overlaps an existing chunk")

	// ErrUnknownSortKey is returned when a table option names a sort key
	// column absent from the table's schema.
	ErrUnknownSortKey = errors.New("archive: sort key column not present in schema")

	// ErrStatsUnsupportedType is returned when statistics are requested for
	// a column whose logical type does not support them (bool, float,
	// list, struct).
	ErrStatsUnsupportedType = errors.New("archive: column type does not support statistics")

	// ErrSchemaMismatch is returned when two schemas cannot be merged
	// because a field's type, nullability, or sort key disagree.
	ErrSchemaMismatch = errors.New("archive: schemas cannot be merged")

	// ErrDatasetKindMismatch is returned when an operation targets a
	// dataset with a different DatasetKind than the one it was opened with.
	ErrDatasetKindMismatch = errors.New("archive: dataset kind mismatch")

	// ErrFinalizedHeadRegression is returned when set_finalized_head is
	// called with a block number behind the current finalized head.
	ErrFinalizedHeadRegression = errors.New("archive: finalized head cannot move backward")

	// ErrChunkNotFound is returned when an operation names a chunk id that
	// does not exist in the dataset.
	ErrChunkNotFound = errors.New("archive: chunk not found")

	// ErrDatasetNotFound is returned when an operation targets a dataset
	// with no label in the catalog.
	ErrDatasetNotFound = errors.New("archive: dataset not found")

	// ErrDatasetExists is returned when creating a dataset whose label
	// already exists.
	ErrDatasetExists = errors.New("archive: dataset already exists")

	// ErrInvalidBlockRange is returned when an operation supplies a block
	// range with first_block > last_block.
	ErrInvalidBlockRange = errors.New("archive: first block exceeds last block")
)

// =====================
// Concurrency errors
// =====================

var (
	// ErrConflict is returned by a KV transaction's commit when another
	// transaction committed first; the caller's run loop retries
	// internally up to a bounded number of attempts before surfacing this.
	ErrConflict = errors.New("archive: transaction conflict, retry")

	// ErrTooManyRetries is returned when a transaction's internal retry
	// loop exhausts its attempt budget without a successful commit.
	ErrTooManyRetries = errors.New("archive: exhausted transaction retry budget")
)

// =====================
// Resource exhaustion errors
// =====================

var (
	// ErrBusy is returned when the engine cannot admit an operation
	// because a resource (page cache, writer slot) is saturated; the
	// caller may retry later.
	ErrBusy = errors.New("archive: resource busy, retry later")
)

// =====================
// Cancellation errors
// =====================

var (
	// ErrCancelled is returned when a context is cancelled or its deadline
	// is exceeded mid-operation. Partial output produced before
	// cancellation remains well-formed.
	ErrCancelled = errors.New("archive: operation cancelled")
)

// Wrap attaches additional context to err, preserving it for errors.Is/As.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool { return errors.As(err, target) }
