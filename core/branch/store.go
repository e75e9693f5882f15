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

// Package branch implements the branch/head store of spec.md §4.4: named
// branches, the distinguished STAGING pointer, and the persisted writer
// lock that serializes all mutation against a repository.
package branch

import (
	"path/filepath"
	"sort"

	"github.com/hangar-db/hangar/store/hash"
	"github.com/hangar-db/hangar/store/kv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	stagingKey    = "@STAGING"
	writerLockKey = "@WRITER_LOCK"
	// LockAvailable is the sentinel value of WRITER_LOCK when no writer
	// checkout currently holds it.
	LockAvailable = "LOCK_AVAILABLE"
	branchPrefix  = "b:"
)

var (
	// ErrUnknownBranch is returned when a named branch does not exist.
	ErrUnknownBranch = errors.New("branch: unknown branch")
	// ErrBranchExists is returned by CreateBranch when name is already in
	// use.
	ErrBranchExists = errors.New("branch: branch already exists")
	// ErrInvalidName is returned for malformed branch names.
	ErrInvalidName = errors.New("branch: invalid branch name")
	// ErrDeleteStagingBranch is returned when attempting to delete the
	// branch currently named by STAGING (spec.md §4.4: "rejects the
	// branch named by STAGING").
	ErrDeleteStagingBranch = errors.New("branch: cannot delete the staging branch")
	// ErrLockHeld is returned by AcquireWriterLock when another writer
	// already holds the lock.
	ErrLockHeld = errors.New("branch: writer lock is held")
	// ErrLockMismatch is returned by ReleaseWriterLock when the caller's
	// token does not match the stored one.
	ErrLockMismatch = errors.New("branch: writer lock token mismatch")
)

func branchKey(name string) []byte { return append([]byte(branchPrefix), name...) }

// Store owns the "branch/" environment (spec.md §6): branch heads, the
// STAGING pointer, and WRITER_LOCK.
type Store struct {
	env *kv.Environment
	log log.FieldLogger
}

// Open opens (or creates) the branch store at repoDir/branch, where
// repoDir is the repository's .hangar directory.
func Open(registry *kv.Registry, repoDir string, logger log.FieldLogger) (*Store, error) {
	env, err := registry.Open(filepath.Join(repoDir, "branch"), true)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	s := &Store{env: env, log: logger}
	if err := s.ensureLockInitialized(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases this store's hold on its environment.
func (s *Store) Close() error { return s.env.Close() }

func (s *Store) ensureLockInitialized() error {
	rtx, err := s.env.BeginRead()
	if err != nil {
		return err
	}
	_, ok := rtx.Get([]byte(writerLockKey))
	rtx.Release()
	if ok {
		return nil
	}

	wtx, err := s.env.BeginWrite()
	if err != nil {
		return err
	}
	if err := wtx.Put([]byte(writerLockKey), []byte(LockAvailable)); err != nil {
		wtx.Abort()
		return err
	}
	return wtx.Commit()
}

// ValidateName enforces the branch-naming rules: non-empty, not the
// reserved name "STAGING", and free of path-hostile characters.
func ValidateName(name string) error {
	if name == "" {
		return errors.Wrap(ErrInvalidName, "empty name")
	}
	if name == "STAGING" || name == "WRITER_LOCK" {
		return errors.Wrapf(ErrInvalidName, "%q is reserved", name)
	}
	for _, r := range name {
		switch r {
		case ' ', '~', '^', ':', '?', '*', '[', '\\':
			return errors.Wrapf(ErrInvalidName, "%q contains an illegal character", name)
		}
	}
	return nil
}

// CreateBranch creates name pointing at commit at.
func (s *Store) CreateBranch(name string, at hash.Hash) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	wtx, err := s.env.BeginWrite()
	if err != nil {
		return err
	}
	if _, ok := wtx.Get(branchKey(name)); ok {
		wtx.Abort()
		return errors.Wrapf(ErrBranchExists, "%q", name)
	}
	if err := wtx.Put(branchKey(name), []byte(at)); err != nil {
		wtx.Abort()
		return err
	}
	return wtx.Commit()
}

// ListBranches returns every branch name in lexical order.
func (s *Store) ListBranches() ([]string, error) {
	rtx, err := s.env.BeginRead()
	if err != nil {
		return nil, err
	}
	defer rtx.Release()

	var names []string
	c := rtx.Cursor()
	for k, _, ok := c.Seek([]byte(branchPrefix)); ok; k, _, ok = c.Next() {
		if len(k) < len(branchPrefix) || string(k[:len(branchPrefix)]) != branchPrefix {
			break
		}
		names = append(names, string(k[len(branchPrefix):]))
	}
	sort.Strings(names)
	return names, nil
}

// DeleteBranch removes name, refusing to delete the current staging
// branch (spec.md §4.4).
func (s *Store) DeleteBranch(name string) error {
	staging, err := s.GetStagingBranch()
	if err != nil {
		return err
	}
	if name == staging {
		return errors.Wrapf(ErrDeleteStagingBranch, "%q", name)
	}

	wtx, err := s.env.BeginWrite()
	if err != nil {
		return err
	}
	if _, ok := wtx.Get(branchKey(name)); !ok {
		wtx.Abort()
		return errors.Wrapf(ErrUnknownBranch, "%q", name)
	}
	if err := wtx.Delete(branchKey(name)); err != nil {
		wtx.Abort()
		return err
	}
	return wtx.Commit()
}

// GetHead returns the commit hash name points to.
func (s *Store) GetHead(name string) (hash.Hash, error) {
	rtx, err := s.env.BeginRead()
	if err != nil {
		return hash.Empty, err
	}
	defer rtx.Release()

	v, ok := rtx.Get(branchKey(name))
	if !ok {
		return hash.Empty, errors.Wrapf(ErrUnknownBranch, "%q", name)
	}
	return hash.Hash(v), nil
}

// SetHead advances name to point at h.
func (s *Store) SetHead(name string, h hash.Hash) error {
	wtx, err := s.env.BeginWrite()
	if err != nil {
		return err
	}
	if _, ok := wtx.Get(branchKey(name)); !ok {
		wtx.Abort()
		return errors.Wrapf(ErrUnknownBranch, "%q", name)
	}
	if err := wtx.Put(branchKey(name), []byte(h)); err != nil {
		wtx.Abort()
		return err
	}
	return wtx.Commit()
}

// GetStagingBranch returns the name of the branch staging is based on.
func (s *Store) GetStagingBranch() (string, error) {
	rtx, err := s.env.BeginRead()
	if err != nil {
		return "", err
	}
	defer rtx.Release()

	v, ok := rtx.Get([]byte(stagingKey))
	if !ok {
		return "", nil
	}
	return string(v), nil
}

// SetStagingBranch records that staging is now based on name.
func (s *Store) SetStagingBranch(name string) error {
	wtx, err := s.env.BeginWrite()
	if err != nil {
		return err
	}
	if err := wtx.Put([]byte(stagingKey), []byte(name)); err != nil {
		wtx.Abort()
		return err
	}
	return wtx.Commit()
}
