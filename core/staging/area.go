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

// Package staging implements the writable record environment spec.md
// §4.5 describes: a KV environment holding exactly the same record schema
// as a materialized commit, with a DIRTY/CLEAN status derived from
// comparing it to the parent commit's records.
package staging

import (
	"bytes"
	"path/filepath"

	"github.com/hangar-db/hangar/store/commitstore"
	"github.com/hangar-db/hangar/store/hash"
	"github.com/hangar-db/hangar/store/kv"
)

// Status is the staging area's DIRTY/CLEAN state (spec.md §4.5).
type Status int

const (
	// Clean means staging is byte-identical to the parent commit's record
	// set.
	Clean Status = iota
	// Dirty means staging differs from the parent commit's record set.
	Dirty
)

func (s Status) String() string {
	if s == Clean {
		return "CLEAN"
	}
	return "DIRTY"
}

// Area owns the "stage/" environment and the staged-blob side records in
// "stage_hash/" (spec.md §6).
type Area struct {
	env       *kv.Environment
	sideStore *kv.Environment
	commits   *commitstore.Store
}

// Open opens (or creates) the staging area backed by repoDir/stage and
// repoDir/stage_hash, where repoDir is the repository's .hangar directory.
func Open(registry *kv.Registry, repoDir string, commits *commitstore.Store) (*Area, error) {
	env, err := registry.Open(filepath.Join(repoDir, "stage"), true)
	if err != nil {
		return nil, err
	}
	side, err := registry.Open(filepath.Join(repoDir, "stage_hash"), true)
	if err != nil {
		env.Close()
		return nil, err
	}
	return &Area{env: env, sideStore: side, commits: commits}, nil
}

// Close releases this area's hold on its environments.
func (a *Area) Close() error {
	err1 := a.env.Close()
	err2 := a.sideStore.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// KV exposes the staged record environment for readers (Checkout Facade,
// Diff Engine).
func (a *Area) KV() *kv.Environment { return a.env }

// InitializeFromCommit clears staging then streams the materialized
// record set of h into it; for the empty hash (a branch with no commits
// yet) staging is left empty. Post-condition: Status(h) == Clean.
func (a *Area) InitializeFromCommit(h hash.Hash) error {
	if h.IsEmpty() {
		wtx, err := a.env.BeginWrite()
		if err != nil {
			return err
		}
		if err := wtx.Clear(); err != nil {
			wtx.Abort()
			return err
		}
		return wtx.Commit()
	}

	materialized, err := a.commits.Materialize(h)
	if err != nil {
		return err
	}
	defer materialized.Release()

	mrtx, err := materialized.KV().BeginRead()
	if err != nil {
		return err
	}
	defer mrtx.Release()

	wtx, err := a.env.BeginWrite()
	if err != nil {
		return err
	}
	if err := wtx.Clear(); err != nil {
		wtx.Abort()
		return err
	}
	c := mrtx.Cursor()
	for k, v, ok := c.First(); ok; k, v, ok = c.Next() {
		if err := wtx.Put(k, v); err != nil {
			wtx.Abort()
			return err
		}
	}
	return wtx.Commit()
}

// Status compares the staged record stream to parentHead's record stream
// in sorted order; Clean iff byte-equal (spec.md §4.5).
func (a *Area) Status(parentHead hash.Hash) (Status, error) {
	if parentHead.IsEmpty() {
		// No parent commit yet: staging is clean only if it is empty.
		rtx, err := a.env.BeginRead()
		if err != nil {
			return Dirty, err
		}
		defer rtx.Release()
		if rtx.Stats() == 0 {
			return Clean, nil
		}
		return Dirty, nil
	}

	materialized, err := a.commits.Materialize(parentHead)
	if err != nil {
		return Dirty, err
	}
	defer materialized.Release()

	mrtx, err := materialized.KV().BeginRead()
	if err != nil {
		return Dirty, err
	}
	defer mrtx.Release()

	rtx, err := a.env.BeginRead()
	if err != nil {
		return Dirty, err
	}
	defer rtx.Release()

	if identical(mrtx, rtx) {
		return Clean, nil
	}
	return Dirty, nil
}

// identical walks both environments' cursors in lockstep and returns true
// iff every key/value pair matches (the same traversal shape the diff
// engine uses, specialized to an equality check).
func identical(a, b *kv.ReadTxn) bool {
	ca, cb := a.Cursor(), b.Cursor()
	ka, va, oka := ca.First()
	kb, vb, okb := cb.First()
	for oka && okb {
		if !bytes.Equal(ka, kb) || !bytes.Equal(va, vb) {
			return false
		}
		ka, va, oka = ca.Next()
		kb, vb, okb = cb.Next()
	}
	return !oka && !okb
}

// HardReset re-initializes staging from head's record set and purges the
// staged-blob side records (spec.md §4.5).
func (a *Area) HardReset(head hash.Hash) error {
	if err := a.InitializeFromCommit(head); err != nil {
		return err
	}
	wtx, err := a.sideStore.BeginWrite()
	if err != nil {
		return err
	}
	if err := wtx.Clear(); err != nil {
		wtx.Abort()
		return err
	}
	return wtx.Commit()
}

// ClearStagedBlobs drops the staged-blob side records without touching the
// record set, used after a successful commit (spec.md §4.8: "clear staged-
// blob side records").
func (a *Area) ClearStagedBlobs() error {
	wtx, err := a.sideStore.BeginWrite()
	if err != nil {
		return err
	}
	if err := wtx.Clear(); err != nil {
		wtx.Abort()
		return err
	}
	return wtx.Commit()
}
