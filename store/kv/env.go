// Copyright 2024 Hangar-DB, Inc.
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

// Package kv provides the three primitives spec.md §4.2 names -- open,
// begin_read, begin_write -- over an embedded ordered key-value engine
// (go.etcd.io/bbolt). A Registry (one per Repository) tracks open
// environments by path, each environment refcounts its live read
// transactions so that concurrent readers share one underlying snapshot, and serializes writers so a second concurrent
// writer attempt fails fast with TxnError rather than blocking.
package kv

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// defaultBucket is the single bucket every Environment stores its ordered
// records in. Callers address keys directly; the bucket itself is an
// implementation detail of how bbolt namespaces a file.
var defaultBucket = []byte("records")

// Registry owns a table of open environments keyed by absolute path, the
// way spec.md §9 describes ("the repository instance owns an environment
// table keyed by path"). It is safe for concurrent use.
type Registry struct {
	mu   sync.Mutex
	envs map[string]*Environment
}

// NewRegistry returns an empty, ready-to-use Registry. A Repository holds
// exactly one of these for its lifetime.
func NewRegistry() *Registry {
	return &Registry{envs: make(map[string]*Environment)}
}

// Open returns the Environment for path, opening the underlying bbolt file
// if this is the first caller and incrementing a reference count
// otherwise. With writable false the file must already exist, else
// EnvError; the bbolt file itself is always opened read-write.
func (r *Registry) Open(path string, writable bool) (*Environment, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, newEnvError(path, "open", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if env, ok := r.envs[abs]; ok {
		env.refCount++
		return env, nil
	}

	if !writable {
		if _, statErr := os.Stat(abs); statErr != nil {
			return nil, newEnvError(abs, "open", statErr)
		}
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, newEnvError(abs, "open", err)
	}

	db, err := bolt.Open(abs, 0o644, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, newEnvError(abs, "open", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(defaultBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, newEnvError(abs, "open", err)
	}

	env := &Environment{
		path:     abs,
		db:       db,
		registry: r,
		refCount: 1,
	}
	r.envs[abs] = env
	return env, nil
}

// release drops the registry's reference to env, closing the underlying
// bbolt file once the last holder has released it.
func (r *Registry) release(env *Environment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	env.refCount--
	if env.refCount > 0 {
		return nil
	}
	delete(r.envs, env.path)
	return env.db.Close()
}

// Environment is one named ordered KV store (spec.md's "branch/", "ref/",
// "stage/", ... directories, or an ephemeral merge environment).
type Environment struct {
	path     string
	db       *bolt.DB
	registry *Registry

	mu           sync.Mutex
	refCount     int  // registry-held open count
	writerOpen   bool // true while a WriteTxn is live
	readerCount  int  // number of live ReadTxn handles
	activeReader *bolt.Tx
}

// Path returns the absolute path backing this environment.
func (e *Environment) Path() string { return e.path }

// Close releases this caller's hold on the environment. The underlying
// storage is only closed once every opener has released it.
func (e *Environment) Close() error {
	return e.registry.release(e)
}

// BeginRead starts (or joins) a read transaction. Per spec.md §4.2,
// concurrent readers share the same underlying snapshot: if a read
// transaction is already live on this environment, BeginRead returns a
// handle onto it instead of opening a second bbolt read transaction.
func (e *Environment) BeginRead() (*ReadTxn, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.readerCount == 0 {
		tx, err := e.db.Begin(false)
		if err != nil {
			return nil, newEnvError(e.path, "begin_read", err)
		}
		e.activeReader = tx
	}
	e.readerCount++

	return &ReadTxn{env: e, tx: e.activeReader}, nil
}

// releaseReader is called by ReadTxn.Release.
func (e *Environment) releaseReader() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.readerCount--
	if e.readerCount > 0 {
		return nil
	}
	tx := e.activeReader
	e.activeReader = nil
	if tx == nil {
		return nil
	}
	return tx.Rollback()
}

// BeginWrite starts a write transaction. Only one may be live at a time;
// a second concurrent attempt fails with TxnError rather than blocking, so
// that callers relying on the single-writer-lock invariant get a fast,
// diagnosable error instead of a hang.
func (e *Environment) BeginWrite() (*WriteTxn, error) {
	e.mu.Lock()
	if e.writerOpen {
		e.mu.Unlock()
		return nil, newTxnError(e.path, concurrentWriterMsg)
	}
	e.writerOpen = true
	e.mu.Unlock()

	tx, err := e.db.Begin(true)
	if err != nil {
		e.mu.Lock()
		e.writerOpen = false
		e.mu.Unlock()
		return nil, newEnvError(e.path, "begin_write", err)
	}

	return &WriteTxn{env: e, tx: tx}, nil
}

func (e *Environment) endWrite() {
	e.mu.Lock()
	e.writerOpen = false
	e.mu.Unlock()
}
