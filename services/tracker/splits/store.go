// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package splits

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Key layout: splitPrefix + 8-byte big-endian sequence. Iterating the prefix
// therefore yields splits in insertion order.
var (
	splitPrefix = []byte("split/")
	sequenceKey = []byte("meta/split-seq")
)

// ErrClosed is returned by every Store method after Close.
var ErrClosed = errors.New("split store is closed")

// Config holds configuration for the split store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode. Splits are lost on Close.
	InMemory bool

	// SyncWrites enables synchronous writes.
	SyncWrites bool

	// MaxSplits caps the number of stored splits. Oldest are dropped first.
	MaxSplits int

	// GCInterval is how often to run value log garbage collection.
	// Set to 0 to disable. Always disabled in memory.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum discardable ratio before GC rewrites.
	GCDiscardRatio float64

	// Logger receives BadgerDB's internal log lines. If nil, they are dropped.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults for a store at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		MaxSplits:      256,
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns configuration for tests and for `probe`.
func InMemoryConfig() Config {
	return Config{
		InMemory:  true,
		MaxSplits: 256,
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is a capped, append-only list of splits backed by BadgerDB.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db     *badger.DB
	seq    *badger.Sequence
	max    int
	logger *slog.Logger

	gcStop chan struct{}
	gcDone chan struct{}

	mu     sync.Mutex
	closed bool
}

// Open opens (or creates) the split store described by cfg.
//
// Description:
//
//	Opens BadgerDB, leases the insertion sequence and, for persistent
//	stores with a positive GCInterval, starts a value log GC goroutine.
//
// Inputs:
//
//	cfg - Store configuration. Path is required unless InMemory is true.
//
// Outputs:
//
//	*Store - The opened store. Caller must call Close() when done.
//	error - Non-nil if the path is invalid or the database cannot be opened.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent split store")
	}
	if cfg.MaxSplits <= 0 {
		return nil, fmt.Errorf("max splits must be positive, got %d", cfg.MaxSplits)
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create split store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open split store: %w", err)
	}

	seq, err := db.GetSequence(sequenceKey, 64)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("lease split sequence: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		db:     db,
		seq:    seq,
		max:    cfg.MaxSplits,
		logger: logger,
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gcStop = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}

	return s, nil
}

// Append stores splits in order and trims the oldest beyond MaxSplits.
//
// Inputs:
//
//	ctx - Checked before the write starts.
//	splits - Splits to add. An empty slice is a no-op.
//
// Outputs:
//
//	error - Non-nil if the store is closed or the write fails.
func (s *Store) Append(ctx context.Context, splits ...Split) error {
	if len(splits) == 0 {
		return nil
	}
	if err := s.check(ctx); err != nil {
		return err
	}

	// The sequence may renew its lease with its own write, so keys are
	// allocated before our transaction opens.
	keys := make([][]byte, len(splits))
	vals := make([][]byte, len(splits))
	for i, sp := range splits {
		n, err := s.seq.Next()
		if err != nil {
			return fmt.Errorf("next split sequence: %w", err)
		}
		val, err := json.Marshal(sp)
		if err != nil {
			return fmt.Errorf("encode split %s: %w", sp.ID, err)
		}
		keys[i], vals[i] = splitKey(n), val
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for i := range keys {
			if err := txn.Set(keys[i], vals[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append splits: %w", err)
	}

	return s.trim()
}

// List returns every stored split, oldest first.
func (s *Store) List(ctx context.Context) ([]Split, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	out := make([]Split, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = splitPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var sp Split
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &sp)
			}); err != nil {
				return fmt.Errorf("decode split %x: %w", it.Item().Key(), err)
			}
			out = append(out, sp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Clear drops every stored split. The sequence keeps counting.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if err := s.db.DropPrefix(splitPrefix); err != nil {
		return fmt.Errorf("clear splits: %w", err)
	}
	return nil
}

// Close stops GC, releases the sequence lease and closes the database.
// Safe to call multiple times.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.gcStop != nil {
		close(s.gcStop)
		<-s.gcDone
	}
	if err := s.seq.Release(); err != nil {
		s.logger.Warn("release split sequence", slog.String("error", err.Error()))
	}
	return s.db.Close()
}

// =============================================================================
// Internal Methods
// =============================================================================

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// trim deletes the oldest keys until at most max remain.
func (s *Store) trim() error {
	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = splitPrefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)

		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		excess := len(keys) - s.max
		for i := 0; i < excess; i++ {
			if err := txn.Delete(keys[i]); err != nil {
				return fmt.Errorf("trim split: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) runGC(interval time.Duration, ratio float64) {
	defer close(s.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			// ErrNoRewrite means nothing was worth collecting.
			if err := s.db.RunValueLogGC(ratio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn("split store value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}

func splitKey(n uint64) []byte {
	k := make([]byte, len(splitPrefix)+8)
	copy(k, splitPrefix)
	binary.BigEndian.PutUint64(k[len(splitPrefix):], n)
	return k
}
