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

// Package hangar is the checkout facade of spec.md §4.8: it ties
// together the branch store, commit store, staging area, and diff/merge
// engines into Repository, ReaderCheckout, and WriterCheckout.
package hangar

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hangar-db/hangar/blobstore"
	"github.com/hangar-db/hangar/config"
	"github.com/hangar-db/hangar/core/branch"
	"github.com/hangar-db/hangar/core/staging"
	"github.com/hangar-db/hangar/store/commitstore"
	"github.com/hangar-db/hangar/store/hash"
	"github.com/hangar-db/hangar/store/kv"
	log "github.com/sirupsen/logrus"
)

// dotDir is the on-disk layout root named in spec.md §6.
const dotDir = ".hangar"

// Repository owns every store backing one on-disk repository: the branch
// and head store, the commit store, and the staging area, plus the
// environment registry all three share. Each Repository creates its own
// registry when it is opened.
type Repository struct {
	dir      string
	repoDir  string
	registry *kv.Registry
	branches *branch.Store
	commits  *commitstore.Store
	stagingA *staging.Area
	blobs    blobstore.Store
	cfg      config.Config
	log      log.FieldLogger
}

// Options customizes Init/Open beyond their defaults.
type Options struct {
	// Logger receives structured logs; defaults to logrus.StandardLogger().
	Logger log.FieldLogger
	// Blobs is the tensor-backend collaborator (spec.md §6); defaults to
	// an in-memory store suitable only for tests.
	Blobs blobstore.Store
}

func (o Options) logger() log.FieldLogger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.StandardLogger()
}

func (o Options) blobs() blobstore.Store {
	if o.Blobs != nil {
		return o.Blobs
	}
	return blobstore.NewMemory()
}

// Init creates a brand-new repository at dir: writes VERSION and
// config.toml, opens the branch/commit/staging stores, creates the
// default branch with no commits (head is the empty hash), and points
// STAGING at it.
func Init(dir string, cfg config.Config, opts Options) (*Repository, error) {
	repoDir := filepath.Join(dir, dotDir)
	if err := os.MkdirAll(repoDir, 0o755); err != nil {
		return nil, classify(err)
	}
	if err := writeVersionFile(repoDir); err != nil {
		return nil, classify(err)
	}
	if err := config.Save(repoDir, cfg); err != nil {
		return nil, classify(err)
	}

	repo, err := open(dir, repoDir, cfg, opts)
	if err != nil {
		return nil, err
	}

	if err := repo.branches.CreateBranch(cfg.DefaultBranch, hash.Empty); err != nil {
		repo.Close()
		return nil, classify(err)
	}
	if err := repo.branches.SetStagingBranch(cfg.DefaultBranch); err != nil {
		repo.Close()
		return nil, classify(err)
	}

	repo.log.Infof("hangar: initialized repository at %s (default branch %q)", dir, cfg.DefaultBranch)
	return repo, nil
}

// Open opens an existing repository at dir, checking VERSION
// compatibility first (spec.md §6).
func Open(dir string, opts Options) (*Repository, error) {
	repoDir := filepath.Join(dir, dotDir)
	if err := checkVersionCompatible(repoDir); err != nil {
		return nil, err
	}
	cfg, err := config.Load(repoDir)
	if err != nil {
		return nil, classify(err)
	}
	return open(dir, repoDir, cfg, opts)
}

func open(dir, repoDir string, cfg config.Config, opts Options) (*Repository, error) {
	registry := kv.NewRegistry()

	logger := opts.logger()

	branches, err := branch.Open(registry, repoDir, logger)
	if err != nil {
		return nil, classify(err)
	}
	commits, err := commitstore.Open(registry, repoDir)
	if err != nil {
		branches.Close()
		return nil, classify(err)
	}
	stagingA, err := staging.Open(registry, repoDir, commits)
	if err != nil {
		branches.Close()
		commits.Close()
		return nil, classify(err)
	}

	return &Repository{
		dir:      dir,
		repoDir:  repoDir,
		registry: registry,
		branches: branches,
		commits:  commits,
		stagingA: stagingA,
		blobs:    opts.blobs(),
		cfg:      cfg,
		log:      logger,
	}, nil
}

// Close releases every environment this repository opened.
func (r *Repository) Close() error {
	err1 := r.stagingA.Close()
	err2 := r.commits.Close()
	err3 := r.branches.Close()
	for _, e := range []error{err1, err2, err3} {
		if e != nil {
			return classify(e)
		}
	}
	return nil
}

// ListBranches returns every branch name in lexical order.
func (r *Repository) ListBranches() ([]string, error) {
	names, err := r.branches.ListBranches()
	if err != nil {
		return nil, classify(err)
	}
	return names, nil
}

// CreateBranch creates a new branch pointed at the given commit.
func (r *Repository) CreateBranch(name string, at hash.Hash) error {
	return classify(r.branches.CreateBranch(name, at))
}

// DeleteBranch removes a branch, refusing to delete the active staging
// branch.
func (r *Repository) DeleteBranch(name string) error {
	return classify(r.branches.DeleteBranch(name))
}

// Head returns the commit hash a branch currently points at.
func (r *Repository) Head(branchName string) (hash.Hash, error) {
	h, err := r.branches.GetHead(branchName)
	if err != nil {
		return hash.Empty, classify(err)
	}
	return h, nil
}

// ForceReleaseWriterLock is the sanctioned recovery path after a crashed
// writer checkout (spec.md §4.4, end-to-end scenario 7).
func (r *Repository) ForceReleaseWriterLock() error {
	return classify(r.branches.ForceReleaseWriterLock())
}

// String renders a one-line summary for logging (SPEC_FULL.md §3 item 2).
func (r *Repository) String() string {
	staging, err := r.branches.GetStagingBranch()
	if err != nil {
		return fmt.Sprintf("Repository(%s, <error reading staging branch>)", r.dir)
	}
	return fmt.Sprintf("Repository(%s, staging=%q)", r.dir, staging)
}
