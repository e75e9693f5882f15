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

// Package commitstore persists commits and materializes a commit's record
// set into an ephemeral ordered KV environment (spec.md §4.3). The record
// set of a commit is fully recoverable from its hash alone -- there is no
// dependence on other commits, per spec.md §3.
package commitstore

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"time"

	"github.com/hangar-db/hangar/store/hash"
	"github.com/hangar-db/hangar/store/kv"
	"github.com/pkg/errors"
)

// Commit is the immutable header described in spec.md §3.
type Commit struct {
	Hash           hash.Hash
	ParentHashes   []hash.Hash // 0-2 parents
	Author         string
	Email          string
	Time           time.Time
	Message        string
	RecordRootHash hash.Hash
}

// ErrUnknownCommit is returned when a referenced commit hash is not
// present in the store.
var ErrUnknownCommit = errors.New("commitstore: unknown commit")

// header keys inside the commits bucket, namespaced by commit hash so a
// commit's metadata and its packed record stream live side by side.
func metaKey(h hash.Hash) []byte   { return append([]byte("meta:"), h...) }
func streamKey(h hash.Hash) []byte { return append([]byte("blob:"), h...) }

// Store owns the single "ref/" environment that holds every commit header
// and every commit's packed record stream (spec.md §6: "ref/ (commit
// store KV env)").
type Store struct {
	env     *kv.Environment
	mergeDir string
	registry *kv.Registry
}

// Open opens (or creates) the commit store backed by the KV environment at
// repoDir/ref, where repoDir is the repository's .hangar directory.
func Open(registry *kv.Registry, repoDir string) (*Store, error) {
	env, err := registry.Open(filepath.Join(repoDir, "ref"), true)
	if err != nil {
		return nil, err
	}
	return &Store{env: env, mergeDir: filepath.Join(repoDir, "merge_envs"), registry: registry}, nil
}

// Close releases this store's hold on its environment.
func (s *Store) Close() error {
	return s.env.Close()
}

// WriteCommit packs the staged records read from stagedEnv in key order,
// computes the record root hash, derives the commit hash, and persists
// both the header and the record stream. WriteCommit is idempotent in the
// resulting hash: writing the same (parents, author, message, time,
// records) twice is a no-op the second time.
func (s *Store) WriteCommit(parents []hash.Hash, author, email, message string, at time.Time, stagedEnv *kv.ReadTxn) (Commit, error) {
	streamBytes, err := packRecordStream(stagedEnv)
	if err != nil {
		return Commit{}, errors.Wrap(err, "commitstore: packing staged records")
	}
	root := hash.RecordRootHash(streamBytes)
	h := hash.CommitHash(parents, root, author, email, message, at.Unix())

	c := Commit{
		Hash:           h,
		ParentHashes:   parents,
		Author:         author,
		Email:          email,
		Time:           at,
		Message:        message,
		RecordRootHash: root,
	}

	wtx, err := s.env.BeginWrite()
	if err != nil {
		return Commit{}, err
	}
	if existing, ok := wtx.Get(metaKey(h)); ok {
		wtx.Abort()
		_ = existing
		return c, nil // idempotent: identical commit already persisted
	}
	if err := wtx.Put(metaKey(h), encodeHeader(c)); err != nil {
		wtx.Abort()
		return Commit{}, err
	}
	if err := wtx.Put(streamKey(h), streamBytes); err != nil {
		wtx.Abort()
		return Commit{}, err
	}
	if err := wtx.Commit(); err != nil {
		return Commit{}, err
	}
	return c, nil
}

// GetCommit returns the header for hash h.
func (s *Store) GetCommit(h hash.Hash) (Commit, error) {
	rtx, err := s.env.BeginRead()
	if err != nil {
		return Commit{}, err
	}
	defer rtx.Release()

	raw, ok := rtx.Get(metaKey(h))
	if !ok {
		return Commit{}, errors.Wrapf(ErrUnknownCommit, "%s", h)
	}
	return decodeHeader(h, raw)
}

// CheckInHistory reports whether h names a commit present in the store.
func (s *Store) CheckInHistory(h hash.Hash) bool {
	rtx, err := s.env.BeginRead()
	if err != nil {
		return false
	}
	defer rtx.Release()
	_, ok := rtx.Get(metaKey(h))
	return ok
}

// Materialize unpacks a commit's record stream into a fresh ephemeral KV
// environment and returns it. The environment is guaranteed populated
// before Materialize returns; the caller must Release it when done.
func (s *Store) Materialize(h hash.Hash) (*Environment, error) {
	rtx, err := s.env.BeginRead()
	if err != nil {
		return nil, err
	}
	stream, ok := rtx.Get(streamKey(h))
	rtx.Release()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownCommit, "%s", h)
	}

	path := filepath.Join(s.mergeDir, string(h)+".mergeenv")
	env, err := s.registry.Open(path, true)
	if err != nil {
		return nil, err
	}

	wtx, err := env.BeginWrite()
	if err != nil {
		env.Close()
		return nil, err
	}
	if err := wtx.Clear(); err != nil {
		wtx.Abort()
		env.Close()
		return nil, err
	}
	if err := unpackRecordStream(stream, wtx); err != nil {
		wtx.Abort()
		env.Close()
		return nil, err
	}
	if err := wtx.Commit(); err != nil {
		env.Close()
		return nil, err
	}

	return &Environment{env: env, path: path}, nil
}

// Environment is an ephemeral materialized record set (spec.md §4.3,
// §5: "Ephemeral merge envs live in a temp directory named by commit hash
// and are deleted on scope exit").
type Environment struct {
	env  *kv.Environment
	path string
}

// KV returns the underlying environment for read access.
func (e *Environment) KV() *kv.Environment { return e.env }

// Release closes and removes the ephemeral environment.
func (e *Environment) Release() error {
	if err := e.env.Close(); err != nil {
		return err
	}
	if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func encodeHeader(c Commit) []byte {
	var buf []byte
	buf = appendLenPrefixed(buf, []byte(c.Author))
	buf = appendLenPrefixed(buf, []byte(c.Email))
	buf = appendLenPrefixed(buf, []byte(c.Message))
	buf = appendLenPrefixed(buf, []byte(c.RecordRootHash))

	var tbuf [8]byte
	binary.BigEndian.PutUint64(tbuf[:], uint64(c.Time.Unix()))
	buf = append(buf, tbuf[:]...)

	var nbuf [4]byte
	binary.BigEndian.PutUint32(nbuf[:], uint32(len(c.ParentHashes)))
	buf = append(buf, nbuf[:]...)
	for _, p := range c.ParentHashes {
		buf = appendLenPrefixed(buf, []byte(p))
	}
	return buf
}

func decodeHeader(h hash.Hash, data []byte) (Commit, error) {
	author, data, err := readLenPrefixed(data)
	if err != nil {
		return Commit{}, err
	}
	email, data, err := readLenPrefixed(data)
	if err != nil {
		return Commit{}, err
	}
	message, data, err := readLenPrefixed(data)
	if err != nil {
		return Commit{}, err
	}
	root, data, err := readLenPrefixed(data)
	if err != nil {
		return Commit{}, err
	}
	if len(data) < 8 {
		return Commit{}, errors.New("commitstore: truncated commit header")
	}
	unixTime := int64(binary.BigEndian.Uint64(data[:8]))
	data = data[8:]
	if len(data) < 4 {
		return Commit{}, errors.New("commitstore: truncated commit header")
	}
	n := binary.BigEndian.Uint32(data[:4])
	data = data[4:]

	parents := make([]hash.Hash, 0, n)
	for i := uint32(0); i < n; i++ {
		var p []byte
		p, data, err = readLenPrefixed(data)
		if err != nil {
			return Commit{}, err
		}
		parents = append(parents, hash.Hash(p))
	}
	if len(data) != 0 {
		return Commit{}, errors.New("commitstore: trailing bytes in commit header")
	}

	return Commit{
		Hash:           h,
		ParentHashes:   parents,
		Author:         string(author),
		Email:          string(email),
		Time:           time.Unix(unixTime, 0).UTC(),
		Message:        string(message),
		RecordRootHash: hash.Hash(root),
	}, nil
}

func appendLenPrefixed(buf, field []byte) []byte {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(field)))
	buf = append(buf, l[:]...)
	return append(buf, field...)
}

func readLenPrefixed(data []byte) (field, rest []byte, err error) {
	if len(data) < 4 {
		return nil, nil, errors.New("commitstore: truncated field")
	}
	l := binary.BigEndian.Uint32(data[:4])
	data = data[4:]
	if uint32(len(data)) < l {
		return nil, nil, errors.New("commitstore: truncated field")
	}
	return data[:l], data[l:], nil
}
