// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package history persists snapshots produced by live collections in an
// embedded BadgerDB so operators can inspect recent health over time.
//
// Only live collections append. Cloud and static reads reproduce a
// snapshot somebody already recorded; writing those back would fill the
// history with duplicates.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/qapulse/qapulse/services/telemetry/datatypes"
)

// DefaultRetention is the number of snapshots kept when the caller
// passes 0.
const DefaultRetention = 200

// keyPrefix namespaces snapshot records inside the database.
const keyPrefix = "snapshot/"

// Config holds configuration for the history store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode. Useful for testing.
	InMemory bool

	// Retention is the maximum number of snapshots kept.
	// 0 means DefaultRetention.
	Retention int

	// Logger receives BadgerDB's internal logging. If nil, that
	// logging is disabled.
	Logger *slog.Logger
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
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is a bounded, append-only snapshot log.
//
// Thread Safety: safe for concurrent use.
type Store struct {
	db        *badger.DB
	retention int
}

// Open creates and opens a history store with the given configuration.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent history store")
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create history directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	return &Store{db: db, retention: cfg.Retention}, nil
}

// OpenInMemory opens an in-memory store for testing. Data is lost when
// closed.
func OpenInMemory() (*Store, error) {
	return Open(Config{InMemory: true})
}

// recordKey builds a lexicographically time-ordered key. The
// zero-padded nanosecond timestamp sorts records chronologically; the
// uuid suffix keeps same-instant writes from colliding.
func recordKey(ts time.Time) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", keyPrefix, ts.UnixNano(), uuid.NewString()))
}

// Append records a snapshot and prunes records beyond the retention
// limit, oldest first.
func (s *Store) Append(ctx context.Context, snap datatypes.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	key := recordKey(snap.GeneratedAt)
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}
	return s.prune()
}

// prune deletes the oldest records until at most retention remain.
func (s *Store) prune() error {
	var stale [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var keys [][]byte
		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		if excess := len(keys) - s.retention; excess > 0 {
			stale = keys[:excess]
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan history for pruning: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("prune history record: %w", err)
			}
		}
		return nil
	})
}

// Recent returns up to limit snapshots, newest first. limit <= 0 means
// all retained records.
func (s *Store) Recent(ctx context.Context, limit int) ([]datatypes.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var snapshots []datatypes.Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(keyPrefix)
		// Reverse iteration seeks to the last possible key under the
		// prefix. 0xff is above any byte the key format produces.
		seek := append(append([]byte{}, prefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(snapshots) >= limit {
				break
			}
			var snap datatypes.Snapshot
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &snap)
			})
			if err != nil {
				return fmt.Errorf("decode history record: %w", err)
			}
			snapshots = append(snapshots, snap)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}

// Len reports the number of retained records.
func (s *Store) Len() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
