// Copyright 2024 The Cockroach Authors
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

// Package kvstore is a small key-value database over a chainmap.Map. Keys
// are uint64 and values are strings. A DB may optionally be backed by a JSON
// file: the file is loaded when the DB is opened and rewritten in full after
// every mutation.
//
// A DB is safe for concurrent use. Reads share a lock; mutations and the file
// write that follows them hold it exclusively.
package kvstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/eliasfl/chainmap"
)

// ErrCorrupt is returned, wrapped, by Open when the database file cannot be
// decoded.
var ErrCorrupt = errors.New("kvstore: corrupt database file")

// ErrClosed is returned by mutations on a DB that has been closed.
var ErrClosed = errors.New("kvstore: database is closed")

// record is the on-disk form of a single pair.
type record struct {
	Key   uint64 `json:"key"`
	Value string `json:"value"`
}

// DB is a key-value store. The zero value is not usable; use Open.
type DB struct {
	mu sync.RWMutex
	m  *chainmap.Map[uint64, string]

	path string
	hash func(key *uint64) uint64
	sync bool
}

// Option configures a DB.
type Option func(db *DB)

// WithHash sets the digest function of the underlying table, for example
// chainmap.XXHashUint64[uint64]. The default is SDBM.
func WithHash(hash func(key *uint64) uint64) Option {
	return func(db *DB) {
		db.hash = hash
	}
}

// WithSync controls whether the database file is fsynced before it replaces
// the previous version. It defaults to true.
func WithSync(enabled bool) Option {
	return func(db *DB) {
		db.sync = enabled
	}
}

// Open opens the database stored at path. An empty path opens a DB that
// lives only in memory. A missing file opens an empty DB; the file is
// created by the first mutation.
func Open(path string, opts ...Option) (*DB, error) {
	db := &DB{
		path: path,
		sync: true,
	}
	for _, opt := range opts {
		opt(db)
	}

	if db.hash != nil {
		db.m = chainmap.New[uint64, string](chainmap.WithHash[uint64, string](db.hash))
	} else {
		db.m = chainmap.New[uint64, string]()
	}

	if path == "" {
		return db, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return db, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read database: %w", err)
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	db.m.InsertAll(func(yield func(uint64, string) bool) {
		for _, r := range records {
			if !yield(r.Key, r.Value) {
				return
			}
		}
	})
	return db, nil
}

// Get returns the value stored for key. A closed DB holds nothing.
func (db *DB) Get(key uint64) (string, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.m == nil {
		return "", false
	}
	return db.m.Get(key)
}

// Insert stores value under key and returns the value it replaced, if any.
// A non-nil error means the database file could not be written; the
// in-memory DB still holds the new value. Insert on a closed DB returns
// ErrClosed.
func (db *DB) Insert(key uint64, value string) (prev string, replaced bool, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.m == nil {
		return "", false, ErrClosed
	}
	prev, replaced = db.m.Insert(key, value)
	return prev, replaced, db.flushLocked()
}

// Remove deletes key and returns the value it held, if any. As with Insert,
// an error reports a failed file write after the in-memory removal, and
// ErrClosed a closed DB.
func (db *DB) Remove(key uint64) (value string, ok bool, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.m == nil {
		return "", false, ErrClosed
	}
	value, ok = db.m.Remove(key)
	if !ok {
		return value, false, nil
	}
	return value, true, db.flushLocked()
}

// Len returns the number of pairs in the DB.
func (db *DB) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.m == nil {
		return 0
	}
	return db.m.Len()
}

// All calls yield for every pair in the DB while holding the read lock. yield
// must not call Insert or Remove.
func (db *DB) All(yield func(key uint64, value string) bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.m == nil {
		return
	}
	db.m.All(yield)
}

// Close writes the database file a final time and releases the DB. The table
// is released even if the write fails. Closing a closed DB returns ErrClosed.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.m == nil {
		return ErrClosed
	}
	err := db.flushLocked()
	db.m.Close()
	db.m = nil
	return err
}

// flushLocked rewrites the database file from the table. The new contents
// are written to a uniquely named temporary file next to the database which
// is then renamed over it, so readers of the file see either the old or the
// new version.
func (db *DB) flushLocked() (err error) {
	if db.path == "" {
		return nil
	}

	records := make([]record, 0, db.m.Len())
	db.m.All(func(k uint64, v string) bool {
		records = append(records, record{Key: k, Value: v})
		return true
	})
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode database: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(db.path), filepath.Base(db.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Chmod(0644); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if db.sync {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("failed to sync temp file: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(f.Name(), db.path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
