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

package conf

import "github.com/c2h5oh/datasize"

// DatasetConfig is the per-dataset configuration.
type DatasetConfig struct {
	// Name is the human-readable dataset name; the engine hashes it down
	// to the fixed-width dataset id.
	Name string `json:"name" yaml:"name"`

	// Kind names the schema family ("evm", "solana", ...), at most 16
	// bytes. It is stored in the dataset label and checked against the
	// kind a query declares.
	Kind string `json:"kind" yaml:"kind"`

	// SortKeyColumns are the columns the dataset's rows are ordered by.
	// Every column named here must exist in every table schema written
	// for the dataset.
	SortKeyColumns []string `json:"sort_key_columns" yaml:"sort_key_columns"`

	// StatsColumns restricts which columns carry min/max/null-count
	// statistics. Empty means every column whose type supports them.
	StatsColumns []string `json:"stats_columns" yaml:"stats_columns"`

	// StatsPartitionSize is the row count per stat entry. Zero selects
	// the builder's default.
	StatsPartitionSize uint32 `json:"stats_partition_size" yaml:"stats_partition_size"`

	// PageSize is the default per-page flush target for every buffer of a
	// column.
	// Zero selects the engine default.
	PageSize datasize.ByteSize `json:"page_size" yaml:"page_size"`

	// ColumnPageSize overrides PageSize for individual columns.
	ColumnPageSize map[string]datasize.ByteSize `json:"column_page_size" yaml:"column_page_size"`

	// PageCompression snappy-compresses page payloads above a small size
	// threshold. Off by default so stored pages stay byte-identical to
	// what the buffer writers emit.
	PageCompression bool `json:"page_compression" yaml:"page_compression"`

	// MaxCompactedRows caps the combined MaxNumRows of a compaction run;
	// the planner stops extending a run once the next chunk would push it
	// past the cap. Zero selects the engine default.
	MaxCompactedRows uint64 `json:"max_compacted_rows" yaml:"max_compacted_rows"`
}

// StatsEnabled reports whether column name should carry statistics under
// this configuration (the type check is the writer's job).
func (c DatasetConfig) StatsEnabled(name string) bool {
	if len(c.StatsColumns) == 0 {
		return true
	}
	for _, s := range c.StatsColumns {
		if s == name {
			return true
		}
	}
	return false
}

// PageSizeFor resolves the page flush target for column name.
func (c DatasetConfig) PageSizeFor(name string) int {
	if sz, ok := c.ColumnPageSize[name]; ok && sz > 0 {
		return int(sz.Bytes())
	}
	if c.PageSize > 0 {
		return int(c.PageSize.Bytes())
	}
	return 0
}
