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

package merge

import (
	"fmt"

	"github.com/hangar-db/hangar/core/diff"
	"github.com/pkg/errors"
)

// ErrNoOp is returned when the master and dev branches already share the
// same head commit; nothing to merge (spec.md §7: NoOpMerge).
var ErrNoOp = errors.New("merge: branches already share the same head commit")

// ErrDirtyStaging is returned when master's staging area is not CLEAN
// (spec.md §7: DirtyStagingError).
var ErrDirtyStaging = errors.New("merge: staging area for master branch is not clean")

// ConflictError wraps a non-empty diff.Conflicts, returned when a
// three-way merge cannot proceed without human resolution (spec.md §7:
// MergeConflict(conflicts)).
type ConflictError struct {
	Conflicts diff.Conflicts
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("merge: %d conflicting record(s) block this merge", conflictCount(e.Conflicts))
}

func conflictCount(c diff.Conflicts) int {
	return len(c.T1) + len(c.T21) + len(c.T22) + len(c.T3)
}
