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
	"github.com/hangar-db/hangar/store/commitstore"
	"github.com/hangar-db/hangar/store/hash"
	"github.com/pkg/errors"
)

// ThreeWayResult holds the three pairwise diffs a three-way merge needs
// (spec.md §4.6): the common ancestor A against the destination branch's
// tip D, the ancestor against the merging branch's tip M, and D against M
// directly. FindConflicts uses only the first two.
type ThreeWayResult struct {
	AncestorToDest  Result // ΔD = diff(A, D)
	AncestorToMerge Result // ΔM = diff(A, M)
	DestToMerge     Result // ΔMD = diff(D, M)
}

// ThreeWay materializes the ancestor, destination, and merge commits and
// computes the three pairwise diffs described on ThreeWayResult
// (spec.md §4.6, §4.7). Every ephemeral environment opened here is
// released before ThreeWay returns, win or lose.
func ThreeWay(store *commitstore.Store, ancestor, dest, merge hash.Hash) (ThreeWayResult, error) {
	aEnv, err := store.Materialize(ancestor)
	if err != nil {
		return ThreeWayResult{}, errors.Wrap(err, "diff: materializing ancestor")
	}
	defer aEnv.Release()

	dEnv, err := store.Materialize(dest)
	if err != nil {
		return ThreeWayResult{}, errors.Wrap(err, "diff: materializing destination")
	}
	defer dEnv.Release()

	mEnv, err := store.Materialize(merge)
	if err != nil {
		return ThreeWayResult{}, errors.Wrap(err, "diff: materializing merge source")
	}
	defer mEnv.Release()

	aRtx, err := aEnv.KV().BeginRead()
	if err != nil {
		return ThreeWayResult{}, err
	}
	defer aRtx.Release()

	dRtx, err := dEnv.KV().BeginRead()
	if err != nil {
		return ThreeWayResult{}, err
	}
	defer dRtx.Release()

	mRtx, err := mEnv.KV().BeginRead()
	if err != nil {
		return ThreeWayResult{}, err
	}
	defer mRtx.Release()

	return ThreeWayResult{
		AncestorToDest:  TwoCursor(aRtx.Cursor(), dRtx.Cursor()),
		AncestorToMerge: TwoCursor(aRtx.Cursor(), mRtx.Cursor()),
		DestToMerge:     TwoCursor(dRtx.Cursor(), mRtx.Cursor()),
	}, nil
}
