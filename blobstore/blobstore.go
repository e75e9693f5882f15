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

// Package blobstore declares the out-of-scope tensor-backend collaborator
// contract (spec.md §6: "the core references hash; the backend owns
// storage layout") and a minimal in-memory implementation standing in for
// a real backend in tests.
package blobstore

import (
	"sync"

	"github.com/hangar-db/hangar/store/hash"
	"github.com/pkg/errors"
)

// ErrNotFound is returned by Get when hash names no stored blob.
var ErrNotFound = errors.New("blobstore: hash not found")

// Store is the contract a real tensor-backend file store implements. The
// core never computes hashes itself; it treats hash as an opaque
// identifier handed back by Put.
type Store interface {
	Put(data []byte) (hash.Hash, error)
	Get(h hash.Hash) ([]byte, error)
	Exists(h hash.Hash) bool
}

// Memory is an in-process Store backed by a map, used by tests that need
// a working blob backend without standing up a real one.
type Memory struct {
	mu   sync.RWMutex
	data map[hash.Hash][]byte
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[hash.Hash][]byte)}
}

// Put stores data under its content hash and returns that hash.
func (m *Memory) Put(data []byte) (hash.Hash, error) {
	h := hash.Of(data)
	cp := make([]byte, len(data))
	copy(cp, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[h] = cp
	return h, nil
}

// Get returns the bytes stored under h.
func (m *Memory) Get(h hash.Hash) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[h]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "%s", h)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Exists reports whether h names a stored blob.
func (m *Memory) Exists(h hash.Hash) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[h]
	return ok
}
