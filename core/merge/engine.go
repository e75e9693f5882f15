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

// Package merge orchestrates fast-forward and three-way merges of a
// master branch against a dev branch, the top of the diff/merge stack
// (spec.md §4.7).
package merge

import (
	"time"

	"github.com/hangar-db/hangar/core/branch"
	"github.com/hangar-db/hangar/core/diff"
	"github.com/hangar-db/hangar/core/staging"
	"github.com/hangar-db/hangar/store/commitstore"
	"github.com/hangar-db/hangar/store/hash"
	"github.com/hangar-db/hangar/store/kv"
	log "github.com/sirupsen/logrus"
)

// Result is the outcome of a successful merge.
type Result struct {
	CommitHash  hash.Hash
	FastForward bool
}

// Engine ties the branch store, commit store, and staging area together
// to implement merge (spec.md §4.7). Callers are responsible for holding
// the writer lock before calling Merge; the engine does not acquire it.
type Engine struct {
	branches *branch.Store
	commits  *commitstore.Store
	staging  *staging.Area
	log      log.FieldLogger
}

// New builds an Engine over the given stores.
func New(branches *branch.Store, commits *commitstore.Store, stagingArea *staging.Area, logger log.FieldLogger) *Engine {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Engine{branches: branches, commits: commits, staging: stagingArea, log: logger}
}

// Merge advances masterBranch by merging devBranch into it (spec.md §4.7):
//
//  1. masterBranch's staging area must be CLEAN, else ErrDirtyStaging.
//  2. if the two heads coincide, ErrNoOp.
//  3. if masterHead is an ancestor of devHead, fast-forward: advance the
//     branch head and re-initialize staging, discarding message.
//  4. otherwise perform a three-way merge against the lowest common
//     ancestor; any conflict aborts with *ConflictError and leaves
//     staging and the branch head untouched.
//
// Every ephemeral environment opened along the way is released before
// Merge returns, on every exit path.
func (e *Engine) Merge(masterBranch, devBranch, message, author, email string, at time.Time) (Result, error) {
	mHead, err := e.branches.GetHead(masterBranch)
	if err != nil {
		return Result{}, err
	}

	status, err := e.staging.Status(mHead)
	if err != nil {
		return Result{}, err
	}
	if status != staging.Clean {
		return Result{}, ErrDirtyStaging
	}

	dHead, err := e.branches.GetHead(devBranch)
	if err != nil {
		return Result{}, err
	}
	if mHead == dHead {
		return Result{}, ErrNoOp
	}

	ancestor, err := e.commits.LowestCommonAncestor(mHead, dHead)
	if err != nil {
		return Result{}, err
	}

	if ancestor == mHead {
		if err := e.branches.SetHead(masterBranch, dHead); err != nil {
			return Result{}, err
		}
		if err := e.staging.InitializeFromCommit(dHead); err != nil {
			return Result{}, err
		}
		e.log.Infof("merge: fast-forwarded %q to %s (message discarded)", masterBranch, dHead)
		return Result{CommitHash: dHead, FastForward: true}, nil
	}

	threeway, err := diff.ThreeWay(e.commits, ancestor, mHead, dHead)
	if err != nil {
		return Result{}, err
	}

	conflicts := diff.FindConflicts(threeway.AncestorToDest, threeway.AncestorToMerge)
	if conflicts.Any() {
		return Result{}, &ConflictError{Conflicts: conflicts}
	}

	// Staging already holds master's records (status was CLEAN against
	// mHead). Patch in dev's side of the symmetric difference: since no
	// conflict was found, every key dev touched that master did not is
	// safe to apply verbatim, and every key both sides touched resolved
	// to equal values so re-applying dev's value is a no-op.
	if err := applyDelta(e.staging.KV(), threeway.AncestorToMerge); err != nil {
		return Result{}, err
	}

	rtx, err := e.staging.KV().BeginRead()
	if err != nil {
		return Result{}, err
	}
	commit, err := e.commits.WriteCommit([]hash.Hash{mHead, dHead}, author, email, message, at, rtx)
	rtx.Release()
	if err != nil {
		return Result{}, err
	}

	if err := e.branches.SetHead(masterBranch, commit.Hash); err != nil {
		return Result{}, err
	}

	e.log.Infof("merge: three-way merged %q into %q -> %s", devBranch, masterBranch, commit.Hash)
	return Result{CommitHash: commit.Hash}, nil
}

// applyDelta writes delta's added and mutated entries and removes its
// deleted entries, in a single write transaction.
func applyDelta(env *kv.Environment, delta diff.Result) error {
	wtx, err := env.BeginWrite()
	if err != nil {
		return err
	}
	for _, kv := range delta.Added {
		if err := wtx.Put(kv.Key, kv.Value); err != nil {
			wtx.Abort()
			return err
		}
	}
	for _, kv := range delta.Deleted {
		if err := wtx.Delete(kv.Key); err != nil {
			wtx.Abort()
			return err
		}
	}
	for _, kv := range delta.Mutated {
		if err := wtx.Put(kv.Key, kv.Value); err != nil {
			wtx.Abort()
			return err
		}
	}
	return wtx.Commit()
}
