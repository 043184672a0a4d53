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

// Package archivelog is the ambient logger for the archive storage engine.
// It never participates in control flow: callers must not branch on
// whether a log call succeeded.
package archivelog

import (
	"os"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

var root = logrus.New()

func init() {
	root.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
	})
	root.SetOutput(os.Stderr)
	root.SetLevel(logrus.InfoLevel)
}

// Config controls where and how the engine's logger writes. The zero value
// logs to stderr at info level.
type Config struct {
	// File, when non-empty, routes output through a size/age-rotated
	// lumberjack writer instead of stderr.
	File string
	// MaxSizeMB is the per-file size threshold before rotation.
	MaxSizeMB int
	// MaxBackups bounds how many rotated files are retained.
	MaxBackups int
	// MaxAgeDays bounds how long rotated files are retained.
	MaxAgeDays int
	// Compress gzips rotated files.
	Compress bool
	// Level is one of logrus's level names ("debug", "info", "warn", ...).
	Level string
	// JSON switches the formatter to structured JSON output.
	JSON bool
}

// Init reconfigures the package logger. It is safe to call once at process
// startup; it is not safe to call concurrently with logging calls.
func Init(cfg Config) {
	if cfg.JSON {
		root.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
	}
	if lvl, err := logrus.ParseLevel(cfg.Level); err == nil {
		root.SetLevel(lvl)
	}
	if cfg.File == "" {
		return
	}
	root.SetOutput(&lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
}

// Logger returns the package-level logger, primarily so callers can derive
// a scoped entry with WithFields.
func Logger() *logrus.Logger { return root }

// With returns a field-scoped entry, used at chunk/table/compaction
// boundaries to attach dataset id, chunk range, or table id context.
func With(fields logrus.Fields) *logrus.Entry { return root.WithFields(fields) }

func Debugf(format string, args ...interface{}) { root.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { root.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { root.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { root.Errorf(format, args...) }
