// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

// Package logging provides the process-wide structured logger used by every
// layer of the table store: the simulated network, the object store RPC
// path, and the transaction manager. It wraps log/slog rather than plain
// fmt.Println so handler invocations, drops, and commits are queryable
// key/value events instead of free text.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Config selects the level and encoding of the process logger.
type Config struct {
	Level  string // debug, info, warn, error (default info)
	Format string // text or json (default text)
}

var (
	mu           sync.Mutex
	logger       atomic.Pointer[slog.Logger]
	currentLevel = new(slog.LevelVar)
)

func init() {
	currentLevel.Set(slog.LevelInfo)
	logger.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: currentLevel})))
}

// Init reconfigures the process logger. Safe to call once at startup; later
// calls replace the previous logger atomically.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	currentLevel.Set(parseLevel(cfg.Level))

	opts := &slog.HandlerOptions{Level: currentLevel}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger.Store(slog.New(handler))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// L returns the current process logger. Components should call this instead
// of holding a long-lived reference, so Init can hot-swap it.
func L() *slog.Logger { return logger.Load() }

// With returns a logger scoped with the given key/value attributes, a thin
// convenience wrapper around L().With.
func With(args ...any) *slog.Logger { return L().With(args...) }
