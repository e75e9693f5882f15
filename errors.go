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

	"github.com/hangar-db/hangar/core/branch"
	"github.com/hangar-db/hangar/core/diff"
	"github.com/hangar-db/hangar/core/merge"
	"github.com/hangar-db/hangar/store/commitstore"
	"github.com/hangar-db/hangar/store/kv"
	"github.com/hangar-db/hangar/store/record"
	pkgerrors "github.com/pkg/errors"
)

// ErrorKind is the machine-readable taxonomy tag of spec.md §7.
type ErrorKind int

const (
	// KindUnknownCommit: a referenced commit hash is not present.
	KindUnknownCommit ErrorKind = iota
	// KindUnknownBranch: a referenced branch name does not exist.
	KindUnknownBranch
	// KindInvalidName: a branch, arrayset, or sample name is malformed or
	// already taken.
	KindInvalidName
	// KindEmptyCommit: commit attempted with a CLEAN staging area.
	KindEmptyCommit
	// KindNoResetNeeded: reset attempted with a CLEAN staging area.
	KindNoResetNeeded
	// KindNotFound: a dataset, arrayset sample, or metadata key lookup
	// missed. Not part of spec.md's named taxonomy verbatim; added for the
	// lookups of the dataset/metadata handles under the same UserInput
	// category.
	KindNotFound
	// KindDirtyStaging: merge attempted with a non-CLEAN master staging
	// area.
	KindDirtyStaging
	// KindDirtyBranchSwitch: writer checkout requested a different branch
	// while staging was DIRTY.
	KindDirtyBranchSwitch
	// KindSessionClosed: operation attempted on a closed checkout.
	KindSessionClosed
	// KindInvalidHandle: operation attempted on an invalidated weak
	// handle.
	KindInvalidHandle
	// KindLockHeld: writer lock acquisition failed because another writer
	// holds it.
	KindLockHeld
	// KindLockMismatch: writer lock release attempted with the wrong
	// token.
	KindLockMismatch
	// KindMergeConflict: a three-way merge found conflicting records.
	KindMergeConflict
	// KindNoOpMerge: the two branches being merged already share a head.
	KindNoOpMerge
	// KindEnvError: a KV environment failed to open or perform I/O.
	KindEnvError
	// KindTxnError: a KV transaction failed, notably concurrent-writer.
	KindTxnError
	// KindCorruptRecord: a stored record failed to decode.
	KindCorruptRecord
	// KindUnsupportedRepositoryVersion: VERSION is incompatible with this
	// implementation.
	KindUnsupportedRepositoryVersion
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnknownCommit:
		return "UnknownCommit"
	case KindUnknownBranch:
		return "UnknownBranch"
	case KindInvalidName:
		return "InvalidName"
	case KindEmptyCommit:
		return "EmptyCommit"
	case KindNoResetNeeded:
		return "NoResetNeeded"
	case KindNotFound:
		return "NotFound"
	case KindDirtyStaging:
		return "DirtyStagingError"
	case KindDirtyBranchSwitch:
		return "DirtyBranchSwitchError"
	case KindSessionClosed:
		return "SessionClosed"
	case KindInvalidHandle:
		return "InvalidHandle"
	case KindLockHeld:
		return "LockHeld"
	case KindLockMismatch:
		return "LockMismatch"
	case KindMergeConflict:
		return "MergeConflict"
	case KindNoOpMerge:
		return "NoOpMerge"
	case KindEnvError:
		return "EnvError"
	case KindTxnError:
		return "TxnError"
	case KindCorruptRecord:
		return "CorruptRecord"
	case KindUnsupportedRepositoryVersion:
		return "UnsupportedRepositoryVersion"
	default:
		return "Unknown"
	}
}

// HangarError is the single error type the core returns, carrying a
// machine-readable Kind plus context (spec.md §7).
type HangarError struct {
	kind      ErrorKind
	msg       string
	cause     error
	Conflicts *diff.Conflicts // populated only when Kind() == KindMergeConflict
}

func (e *HangarError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("hangar: %s: %s: %v", e.kind, e.msg, e.cause)
	}
	return fmt.Sprintf("hangar: %s: %s", e.kind, e.msg)
}

// Unwrap exposes the underlying cause, if any, to errors.Is/errors.As.
func (e *HangarError) Unwrap() error { return e.cause }

// Kind returns the taxonomy tag callers should switch on.
func (e *HangarError) Kind() ErrorKind { return e.kind }

func newHangarError(kind ErrorKind, msg string, cause error) *HangarError {
	return &HangarError{kind: kind, msg: msg, cause: cause}
}

// classify maps an error returned by a lower layer (core/branch,
// core/staging, core/diff, core/merge, store/*) to a *HangarError with
// the appropriate Kind, per spec.md §7's taxonomy. Errors already typed
// as *HangarError pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if he, ok := err.(*HangarError); ok {
		return he
	}

	switch {
	case pkgerrors.Is(err, commitstore.ErrUnknownCommit):
		return newHangarError(KindUnknownCommit, "commit not found", err)
	case pkgerrors.Is(err, branch.ErrUnknownBranch):
		return newHangarError(KindUnknownBranch, "branch not found", err)
	case pkgerrors.Is(err, branch.ErrBranchExists):
		return newHangarError(KindInvalidName, "branch already exists", err)
	case pkgerrors.Is(err, branch.ErrInvalidName):
		return newHangarError(KindInvalidName, "invalid name", err)
	case pkgerrors.Is(err, branch.ErrDeleteStagingBranch):
		return newHangarError(KindInvalidName, "cannot delete the staging branch", err)
	case pkgerrors.Is(err, branch.ErrLockHeld):
		return newHangarError(KindLockHeld, "writer lock is held by another writer", err)
	case pkgerrors.Is(err, branch.ErrLockMismatch):
		return newHangarError(KindLockMismatch, "writer lock token mismatch", err)
	case pkgerrors.Is(err, merge.ErrDirtyStaging):
		return newHangarError(KindDirtyStaging, "staging area is not clean", err)
	case pkgerrors.Is(err, merge.ErrNoOp):
		return newHangarError(KindNoOpMerge, "branches already share a head commit", err)
	case pkgerrors.Is(err, record.ErrUnknownFamily), pkgerrors.Is(err, record.ErrTruncatedValue), pkgerrors.Is(err, record.ErrTrailingBytes):
		return newHangarError(KindCorruptRecord, "stored record failed to decode", err)
	}

	var conflictErr *merge.ConflictError
	if pkgerrors.As(err, &conflictErr) {
		return &HangarError{kind: KindMergeConflict, msg: conflictErr.Error(), cause: err, Conflicts: &conflictErr.Conflicts}
	}
	var envErr *kv.EnvError
	if pkgerrors.As(err, &envErr) {
		return newHangarError(KindEnvError, "environment I/O failure", err)
	}
	var txnErr *kv.TxnError
	if pkgerrors.As(err, &txnErr) {
		return newHangarError(KindTxnError, "transaction failure", err)
	}

	return newHangarError(KindEnvError, "unclassified storage error", err)
}
