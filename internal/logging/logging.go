// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logging sets up the kernel-wide structured logger. It replaces
// the teacher's single flag-gated *log.Logger (debug.go) with a leveled
// slog.Logger, rotated on disk the way gcsfuse's internal/logger rotates
// its file via lumberjack.
package logging

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	once   sync.Once
	global *slog.Logger
)

// Config controls where and how verbosely the kernel logs.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string

	// FilePath, if non-empty, rotates kernel log lines through lumberjack
	// instead of stderr.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
}

func levelFromString(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init installs the process-wide logger. Safe to call once at boot; later
// calls are no-ops, mirroring the teacher's sync.Once-guarded initLogger.
func Init(cfg Config) {
	once.Do(func() {
		var w io.Writer = os.Stderr
		if cfg.FilePath != "" {
			w = &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    orDefault(cfg.MaxSizeMB, 10),
				MaxBackups: orDefault(cfg.MaxBackups, 3),
			}
		}

		h := slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: levelFromString(cfg.Level),
		})
		global = slog.New(h)
	})
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Get returns the process-wide logger, initializing a stderr-only default
// if Init was never called (e.g. from package-level tests).
func Get() *slog.Logger {
	if global == nil {
		Init(Config{Level: "info"})
	}
	return global
}

// Core returns a logger annotated with the emitting core, the equivalent of
// the teacher prefixing every line with "fuse: ".
func Core(id int) *slog.Logger {
	return Get().With("core", id)
}
