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

// Package conf holds the plain configuration structs the archive engine is
// handed by its embedder. Parsing config files, env vars, or CLI flags is
// the embedder's job; nothing in this package reads anything.
package conf

import "github.com/c2h5oh/datasize"

// DatabaseConfig is the per-database configuration.
type DatabaseConfig struct {
	// DataCacheSize bounds the in-process page cache. Zero disables
	// caching entirely.
	DataCacheSize datasize.ByteSize `json:"data_cache_size" yaml:"data_cache_size"`

	// CollectKVStats asks the underlying KV binding to collect its own
	// internal statistics. The in-memory reference binding ignores it.
	CollectKVStats bool `json:"collect_kv_stats" yaml:"collect_kv_stats"`

	// DirectIO asks the underlying KV binding to bypass the OS page cache.
	// The in-memory reference binding ignores it.
	DirectIO bool `json:"direct_io" yaml:"direct_io"`

	// MaxConcurrentScans bounds how many table scans may run at once;
	// queries beyond the bound fail fast with a busy error rather than
	// queueing.
	MaxConcurrentScans int `json:"max_concurrent_scans" yaml:"max_concurrent_scans"`
}

// DefaultDatabaseConfig returns the default settings. NewStore takes only
// MaxConcurrentScans from it, when the embedder leaves that field
// non-positive; a zero DataCacheSize stays zero.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		DataCacheSize:      256 * datasize.MB,
		MaxConcurrentScans: 4,
	}
}
