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

	"github.com/hangar-db/hangar/store/commitstore"
	"github.com/hangar-db/hangar/store/hash"
)

// ReaderCheckout is a session against one immutable commit (spec.md
// §4.8): it materializes that commit's record set into an ephemeral
// environment and serves its handles from that copy. The copy is opened
// writable; writes through a reader's handles are not rejected.
type ReaderCheckout struct {
	repo       *Repository
	commitHash hash.Hash
	env        *commitstore.Environment
	gen        generation
	closed     bool
}

// Reader opens a read-only checkout of commitHash.
func (r *Repository) Reader(commitHash hash.Hash) (*ReaderCheckout, error) {
	env, err := r.commits.Materialize(commitHash)
	if err != nil {
		return nil, classify(err)
	}
	return &ReaderCheckout{repo: r, commitHash: commitHash, env: env}, nil
}

func (c *ReaderCheckout) checkOpen() error {
	if c.closed {
		return newHangarError(KindSessionClosed, "reader checkout is closed", nil)
	}
	return nil
}

// CommitHash returns the commit this checkout was opened against.
func (c *ReaderCheckout) CommitHash() (hash.Hash, error) {
	if err := c.checkOpen(); err != nil {
		return hash.Empty, err
	}
	return c.commitHash, nil
}

// Datasets returns a weak view over this commit's arraysets. Mutating
// calls on it (InitArrayset, AddSample, ...) are not rejected: blobs go
// to the shared blob backend and records go to the ephemeral
// materialized copy, never to the commit itself.
func (c *ReaderCheckout) Datasets() (*DatasetsHandle, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return newDatasetsHandle(&c.gen, c.env.KV(), c.repo.blobs), nil
}

// Metadata returns a weak view over this commit's metadata labels.
func (c *ReaderCheckout) Metadata() (*MetadataHandle, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return newMetadataHandle(&c.gen, c.env.KV(), c.repo.blobs), nil
}

// Diff returns a weak view for diffing this commit against others
// (SPEC_FULL.md §3 item 3: diffing independent of a live writer).
func (c *ReaderCheckout) Diff() (*DiffHandle, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return newDiffHandle(&c.gen, c.repo.commits, c.env.KV()), nil
}

// Close releases the materialized environment and invalidates every
// handle this checkout handed out.
func (c *ReaderCheckout) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.gen.bump()
	return classify(c.env.Release())
}

// String renders a one-line summary for logging (SPEC_FULL.md §3 item 2).
func (c *ReaderCheckout) String() string {
	state := "open"
	if c.closed {
		state = "closed"
	}
	return fmt.Sprintf("ReaderCheckout(commit=%s, %s)", c.commitHash, state)
}
