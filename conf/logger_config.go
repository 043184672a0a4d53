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

import "github.com/n42blockchain/archive/archivelog"

// LoggerConfig configures the engine's ambient logger.
//
// Rotation policy: when a single file exceeds MaxSize MB it is cut over to
// a new file; rotated files beyond MaxBackups count or MaxAge days are
// deleted, and compressed to .gz when Compress is set.
type LoggerConfig struct {
	// LogFile is the log file path. Empty logs to stderr only.
	LogFile string `json:"name" yaml:"name"`

	// Level is one of: trace, debug, info, warn, error, fatal.
	Level string `json:"level" yaml:"level"`

	// MaxSize is the per-file size threshold in MB before rotation.
	MaxSize int `json:"max_size" yaml:"max_size"`

	// MaxBackups bounds how many rotated files are retained. 0 means
	// unbounded (still subject to MaxAge).
	MaxBackups int `json:"max_count" yaml:"max_count"`

	// MaxAge bounds rotated file retention in days. 0 means unbounded
	// (still subject to MaxBackups).
	MaxAge int `json:"max_day" yaml:"max_day"`

	// Compress gzips rotated files.
	Compress bool `json:"compress" yaml:"compress"`

	// JSONFormat switches all log output (stderr or file) to JSON for log
	// collection.
	JSONFormat bool `json:"json_format" yaml:"json_format"`
}

// DefaultLoggerConfig returns the recommended production logging settings.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:      "info",
		MaxSize:    100,
		MaxBackups: 10,
		MaxAge:     30,
		Compress:   true,
	}
}

// Apply reconfigures the engine logger from c. Call once at startup.
func (c LoggerConfig) Apply() {
	archivelog.Init(archivelog.Config{
		File:       c.LogFile,
		MaxSizeMB:  c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAge,
		Compress:   c.Compress,
		Level:      c.Level,
		JSON:       c.JSONFormat,
	})
}
