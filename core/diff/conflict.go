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

package diff

import (
	"bytes"
	"fmt"
)

// ConflictKey identifies one contested record across the two diverging
// branches.
type ConflictKey struct {
	Key []byte
}

// Conflicts classifies every key touched by both sides of a three-way
// merge into one of four classes (spec.md §4.6):
//
//	T1  - both sides added the same key with different values
//	T21 - destination deleted the key, merge source mutated it
//	T22 - destination mutated the key, merge source deleted it
//	T3  - both sides mutated the key to different values
//
// A key changed identically on both sides (same resulting value, or both
// deleting it) is never a conflict; it is resolved silently in favor of
// either side.
type Conflicts struct {
	T1  []ConflictKey
	T21 []ConflictKey
	T22 []ConflictKey
	T3  []ConflictKey
}

// Any reports whether at least one conflict was found.
func (c Conflicts) Any() bool {
	return len(c.T1) > 0 || len(c.T21) > 0 || len(c.T22) > 0 || len(c.T3) > 0
}

// Describe renders one human-readable line per conflicting key, in the
// order T1, T21, T22, T3.
func (c Conflicts) Describe() []string {
	var lines []string
	for _, k := range c.T1 {
		lines = append(lines, fmt.Sprintf("conflict: %q added independently on both branches with different values", k.Key))
	}
	for _, k := range c.T21 {
		lines = append(lines, fmt.Sprintf("conflict: %q deleted on destination, modified on merge source", k.Key))
	}
	for _, k := range c.T22 {
		lines = append(lines, fmt.Sprintf("conflict: %q modified on destination, deleted on merge source", k.Key))
	}
	for _, k := range c.T3 {
		lines = append(lines, fmt.Sprintf("conflict: %q modified on both branches with different values", k.Key))
	}
	return lines
}

// FindConflicts classifies conflicts between the destination branch's
// changes (ΔD = diff(ancestor, dest)) and the merge source's changes
// (ΔM = diff(ancestor, merge)) relative to their common ancestor. It is
// grounded on the symmetric-difference-of-(key,value)-pairs approach: for
// every key present in both ΔD and ΔM, the pair of resulting values is
// compared; identical resulting values are not a conflict.
func FindConflicts(deltaDest, deltaMerge Result) Conflicts {
	var c Conflicts

	dAdded, mAdded := deltaDest.addedByKey(), deltaMerge.addedByKey()
	dDeleted, mDeleted := deltaDest.deletedByKey(), deltaMerge.deletedByKey()
	dMutated, mMutated := deltaDest.mutatedByKey(), deltaMerge.mutatedByKey()

	for k, dv := range dAdded {
		if mv, ok := mAdded[k]; ok && !bytes.Equal(dv, mv) {
			c.T1 = append(c.T1, ConflictKey{Key: []byte(k)})
		}
	}

	for k := range dDeleted {
		if mv, ok := mMutated[k]; ok {
			_ = mv
			c.T21 = append(c.T21, ConflictKey{Key: []byte(k)})
		}
	}

	for k := range dMutated {
		if _, ok := mDeleted[k]; ok {
			c.T22 = append(c.T22, ConflictKey{Key: []byte(k)})
		}
	}

	for k, dv := range dMutated {
		if mv, ok := mMutated[k]; ok && !bytes.Equal(dv, mv) {
			c.T3 = append(c.T3, ConflictKey{Key: []byte(k)})
		}
	}

	return c
}
