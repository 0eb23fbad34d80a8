// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianWarden/pkg/logging"
)

// BadgerConfig controls the embedded database.
type BadgerConfig struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir string
	// InMemory keeps all data in RAM. Used by tests.
	InMemory bool
	// SyncWrites fsyncs every commit. Durability over throughput.
	SyncWrites bool
	// GCInterval is how often the value log garbage collector runs.
	// Zero disables the collector.
	GCInterval time.Duration
	// Logger receives badger's internal messages.
	Logger *logging.Logger
}

// DefaultBadgerConfig returns a durable on-disk configuration.
// A leading ~/ in dir expands to the user home directory.
func DefaultBadgerConfig(dir string) BadgerConfig {
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
		}
	}
	return BadgerConfig{
		Dir:        dir,
		SyncWrites: true,
		GCInterval: 10 * time.Minute,
	}
}

// InMemoryBadgerConfig returns an ephemeral configuration for tests.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

// openBadger opens the database and starts the GC loop when configured.
func openBadger(cfg BadgerConfig) (*badger.DB, func(), error) {
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	opts := badger.DefaultOptions(cfg.Dir).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(&badgerLogger{log: cfg.Logger.Slog()})
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("open badger at %q: %w", cfg.Dir, err)
	}

	stop := func() {}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		done := make(chan struct{})
		go runGC(db, cfg.GCInterval, done, cfg.Logger)
		stop = func() { close(done) }
	}
	return db, stop, nil
}

// runGC discards stale value log files on a timer. Badger returns
// ErrNoRewrite when there is nothing to collect; that is not a failure.
func runGC(db *badger.DB, interval time.Duration, done <-chan struct{}, log *logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			for {
				if err := db.RunValueLogGC(0.5); err != nil {
					break
				}
				log.Debug("value log gc reclaimed a file")
			}
		}
	}
}

// badgerLogger adapts badger's logger interface onto slog.
type badgerLogger struct {
	log *slog.Logger
}

func (b *badgerLogger) Errorf(format string, args ...any) {
	b.log.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (b *badgerLogger) Warningf(format string, args ...any) {
	b.log.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (b *badgerLogger) Infof(format string, args ...any) {
	b.log.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

func (b *badgerLogger) Debugf(format string, args ...any) {
	b.log.Debug(fmt.Sprintf(format, args...), "component", "badger")
}
