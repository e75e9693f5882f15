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

package hangar

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hangar-db/hangar/core/merge"
	"github.com/hangar-db/hangar/core/staging"
	"github.com/hangar-db/hangar/store/hash"
)

// WriterCheckout is the single mutating session a repository allows at a
// time (spec.md §4.8): it holds WRITER_LOCK for its lifetime and exposes
// the staging area rooted at one branch.
type WriterCheckout struct {
	repo   *Repository
	branch string
	token  string
	gen    generation
	closed bool
}

// Writer acquires the writer lock and opens a mutating checkout against
// branchName. If STAGING already names branchName, the existing staging
// contents are reused as-is; otherwise staging must be CLEAN before
// switching, else *HangarError with KindDirtyBranchSwitch (spec.md §4.8).
// Lock acquisition is retried with the repository's configured backoff
// schedule when another writer currently holds it.
func (r *Repository) Writer(branchName string) (*WriterCheckout, error) {
	token := uuid.NewString()

	if err := retryOnLockHeld(r.cfg.Backoff, func() error {
		return classify(r.branches.AcquireWriterLock(token))
	}); err != nil {
		return nil, err
	}

	w := &WriterCheckout{repo: r, branch: branchName, token: token}

	if err := w.prepareStaging(); err != nil {
		_ = r.branches.ReleaseWriterLock(token)
		return nil, err
	}
	return w, nil
}

func (w *WriterCheckout) prepareStaging() error {
	current, err := w.repo.branches.GetStagingBranch()
	if err != nil {
		return classify(err)
	}
	if current == w.branch {
		return nil
	}

	head, err := w.repo.branches.GetHead(current)
	if err != nil {
		return classify(err)
	}
	st, err := w.repo.stagingA.Status(head)
	if err != nil {
		return classify(err)
	}
	if st == staging.Dirty {
		return newHangarError(KindDirtyBranchSwitch,
			fmt.Sprintf("cannot switch staging from %q to %q while staging is DIRTY", current, w.branch), nil)
	}

	newHead, err := w.repo.branches.GetHead(w.branch)
	if err != nil {
		return classify(err)
	}
	if err := w.repo.stagingA.InitializeFromCommit(newHead); err != nil {
		return classify(err)
	}
	if err := w.repo.branches.SetStagingBranch(w.branch); err != nil {
		return classify(err)
	}
	return nil
}

func (w *WriterCheckout) checkOpen() error {
	if w.closed {
		return newHangarError(KindSessionClosed, "writer checkout is closed", nil)
	}
	return nil
}

// BranchName returns the branch this checkout is writing against,
// re-verifying the writer lock is still held by this checkout's token.
func (w *WriterCheckout) BranchName() (string, error) {
	if err := w.checkOpen(); err != nil {
		return "", err
	}
	if err := w.verifyLockHeld(); err != nil {
		return "", err
	}
	return w.branch, nil
}

// CommitHash returns the branch's current head commit hash.
func (w *WriterCheckout) CommitHash() (hash.Hash, error) {
	if err := w.checkOpen(); err != nil {
		return hash.Empty, err
	}
	if err := w.verifyLockHeld(); err != nil {
		return hash.Empty, err
	}
	h, err := w.repo.branches.GetHead(w.branch)
	if err != nil {
		return hash.Empty, classify(err)
	}
	return h, nil
}

func (w *WriterCheckout) verifyLockHeld() error {
	holder, err := w.repo.branches.WriterLockHolder()
	if err != nil {
		return classify(err)
	}
	if holder != w.token {
		return newHangarError(KindLockMismatch, "writer lock no longer held by this checkout", nil)
	}
	return nil
}

// Datasets returns a weak view over the staging area's arraysets.
func (w *WriterCheckout) Datasets() (*DatasetsHandle, error) {
	if err := w.checkOpen(); err != nil {
		return nil, err
	}
	return newDatasetsHandle(&w.gen, w.repo.stagingA.KV(), w.repo.blobs), nil
}

// Metadata returns a weak view over the staging area's metadata labels.
func (w *WriterCheckout) Metadata() (*MetadataHandle, error) {
	if err := w.checkOpen(); err != nil {
		return nil, err
	}
	return newMetadataHandle(&w.gen, w.repo.stagingA.KV(), w.repo.blobs), nil
}

// Diff returns a weak view for diffing staging against another commit.
func (w *WriterCheckout) Diff() (*DiffHandle, error) {
	if err := w.checkOpen(); err != nil {
		return nil, err
	}
	return newDiffHandle(&w.gen, w.repo.commits, w.repo.stagingA.KV()), nil
}

// Commit writes staging's current record set as a new commit parented on
// the branch's current head and advances the branch (spec.md §4.8).
// Rejects an empty commit (staging CLEAN against the parent) with
// KindEmptyCommit. Does not invalidate outstanding dataset/metadata
// handles: "this preserves outstanding dataset/metadata handles"
// (spec.md §4.8) since staging's record set after commit is byte-
// identical to what it held immediately before.
func (w *WriterCheckout) Commit(message, author, email string, at time.Time) (hash.Hash, error) {
	if err := w.checkOpen(); err != nil {
		return hash.Empty, err
	}
	if err := w.verifyLockHeld(); err != nil {
		return hash.Empty, err
	}

	parent, err := w.repo.branches.GetHead(w.branch)
	if err != nil {
		return hash.Empty, classify(err)
	}
	status, err := w.repo.stagingA.Status(parent)
	if err != nil {
		return hash.Empty, classify(err)
	}
	if status == staging.Clean {
		return hash.Empty, newHangarError(KindEmptyCommit, "staging area has no changes to commit", nil)
	}

	author, email = w.identity(author, email)
	rtx, err := w.repo.stagingA.KV().BeginRead()
	if err != nil {
		return hash.Empty, classify(err)
	}
	commit, err := w.repo.commits.WriteCommit([]hash.Hash{parent}, author, email, message, at, rtx)
	rtx.Release()
	if err != nil {
		return hash.Empty, classify(err)
	}

	if err := w.repo.branches.SetHead(w.branch, commit.Hash); err != nil {
		return hash.Empty, classify(err)
	}
	if err := w.repo.stagingA.ClearStagedBlobs(); err != nil {
		return hash.Empty, classify(err)
	}

	w.repo.log.Infof("writer: committed %q -> %s", w.branch, commit.Hash)
	return commit.Hash, nil
}

// ResetStagingArea discards staging's changes and reinitializes it from
// the branch's current head (spec.md §4.8). Rejects a no-op reset
// (staging already CLEAN) with KindNoResetNeeded. Invalidates every
// outstanding handle minted from this checkout.
func (w *WriterCheckout) ResetStagingArea() error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	if err := w.verifyLockHeld(); err != nil {
		return err
	}

	head, err := w.repo.branches.GetHead(w.branch)
	if err != nil {
		return classify(err)
	}
	status, err := w.repo.stagingA.Status(head)
	if err != nil {
		return classify(err)
	}
	if status == staging.Clean {
		return newHangarError(KindNoResetNeeded, "staging area is already clean", nil)
	}
	if err := w.repo.stagingA.HardReset(head); err != nil {
		return classify(err)
	}
	w.gen.bump()
	return nil
}

// Merge merges devBranch into this checkout's branch (spec.md §4.7) and
// invalidates every outstanding handle minted from this checkout, since a
// three-way merge rebuilds staging's record set in place.
func (w *WriterCheckout) Merge(devBranch, message, author, email string, at time.Time) (hash.Hash, error) {
	if err := w.checkOpen(); err != nil {
		return hash.Empty, err
	}
	if err := w.verifyLockHeld(); err != nil {
		return hash.Empty, err
	}

	author, email = w.identity(author, email)
	engine := merge.New(w.repo.branches, w.repo.commits, w.repo.stagingA, w.repo.log)
	result, err := engine.Merge(w.branch, devBranch, message, author, email, at)
	if err != nil {
		return hash.Empty, classify(err)
	}
	w.gen.bump()
	return result.CommitHash, nil
}

// Close invalidates every outstanding handle minted from this checkout
// and releases the writer lock if it is still held by this checkout's
// token. If the lock was force-released (or is held by another token),
// it is left untouched.
func (w *WriterCheckout) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.gen.bump()
	holder, err := w.repo.branches.WriterLockHolder()
	if err != nil {
		return classify(err)
	}
	if holder != w.token {
		return nil
	}
	return classify(w.repo.branches.ReleaseWriterLock(w.token))
}

// identity fills an empty author or email from the repository config's
// user section.
func (w *WriterCheckout) identity(author, email string) (string, string) {
	if author == "" {
		author = w.repo.cfg.User.Name
	}
	if email == "" {
		email = w.repo.cfg.User.Email
	}
	return author, email
}

// String renders a one-line summary for logging (SPEC_FULL.md §3 item 2).
func (w *WriterCheckout) String() string {
	state := "open"
	if w.closed {
		state = "closed"
	}
	return fmt.Sprintf("WriterCheckout(branch=%q, %s)", w.branch, state)
}
