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

package kv

import (
	bolt "go.etcd.io/bbolt"
)

// ReadTxn is a read-only view onto an Environment's snapshot. Multiple
// ReadTxn values obtained while one is already live share the same
// underlying bbolt transaction (see Environment.BeginRead).
type ReadTxn struct {
	env *Environment
	tx  *bolt.Tx
}

// Release gives up this handle on the snapshot. The snapshot itself stays
// open until every handle sharing it has been released.
func (r *ReadTxn) Release() error {
	return r.env.releaseReader()
}

// Get returns the value stored at key, or (nil, false) if absent.
func (r *ReadTxn) Get(key []byte) ([]byte, bool) {
	b := r.tx.Bucket(defaultBucket)
	v := b.Get(key)
	if v == nil {
		return nil, false
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true
}

// Cursor returns an ordered forward cursor over the environment's keys.
// Cursor co-traversal is how the diff engine walks two environments in
// lockstep without random access (spec.md §4.6, §9).
func (r *ReadTxn) Cursor() *Cursor {
	return &Cursor{c: r.tx.Bucket(defaultBucket).Cursor()}
}

// Stats exposes the count of entries, used by Status (spec.md §4.5) to
// short-circuit an empty environment.
func (r *ReadTxn) Stats() int {
	return r.tx.Bucket(defaultBucket).Stats().KeyN
}

// WriteTxn is a mutable view onto an Environment. Only one may be live at
// a time per Environment (enforced by Environment.BeginWrite).
type WriteTxn struct {
	env *Environment
	tx  *bolt.Tx
}

// Put inserts or overwrites key with value.
func (w *WriteTxn) Put(key, value []byte) error {
	return w.tx.Bucket(defaultBucket).Put(key, value)
}

// Delete removes key, if present. Deleting an absent key is a no-op,
// matching bbolt's own semantics.
func (w *WriteTxn) Delete(key []byte) error {
	return w.tx.Bucket(defaultBucket).Delete(key)
}

// Get reads within the same write transaction (read-your-writes).
func (w *WriteTxn) Get(key []byte) ([]byte, bool) {
	v := w.tx.Bucket(defaultBucket).Get(key)
	if v == nil {
		return nil, false
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true
}

// Cursor returns an ordered forward cursor within the write transaction.
func (w *WriteTxn) Cursor() *Cursor {
	return &Cursor{c: w.tx.Bucket(defaultBucket).Cursor()}
}

// Clear deletes every key in the environment, used by StagingArea
// initialization and hard reset (spec.md §4.5).
func (w *WriteTxn) Clear() error {
	b := w.tx.Bucket(defaultBucket)
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.First() {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// Commit makes the transaction's writes durable and visible to future
// readers.
func (w *WriteTxn) Commit() error {
	err := w.tx.Commit()
	w.env.endWrite()
	if err != nil {
		return newTxnError(w.env.path, err.Error())
	}
	return nil
}

// Abort discards all changes made in the transaction.
func (w *WriteTxn) Abort() error {
	err := w.tx.Rollback()
	w.env.endWrite()
	return err
}

// Cursor wraps a bbolt cursor to expose only ordered forward iteration,
// the one access pattern the diff engine and record streaming need.
type Cursor struct {
	c *bolt.Cursor
}

// First positions the cursor at the first key and returns it, or (nil,
// nil, false) if the environment is empty.
func (c *Cursor) First() (key, value []byte, ok bool) {
	k, v := c.c.First()
	return dup(k), dup(v), k != nil
}

// Next advances the cursor and returns the next key/value pair.
func (c *Cursor) Next() (key, value []byte, ok bool) {
	k, v := c.c.Next()
	return dup(k), dup(v), k != nil
}

// Seek positions the cursor at the first key >= target.
func (c *Cursor) Seek(target []byte) (key, value []byte, ok bool) {
	k, v := c.c.Seek(target)
	return dup(k), dup(v), k != nil
}

func dup(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
