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

package commitstore

import (
	"github.com/hangar-db/hangar/store/hash"
	"github.com/pkg/errors"
)

// Ancestors returns every commit reachable from h by following parent
// pointers, mapped to its BFS depth from h (spec.md §4.3: "BFS over
// parents; terminates on hashes with no parents"). h itself is included
// at depth 0.
func (s *Store) Ancestors(h hash.Hash) (map[hash.Hash]int, error) {
	depths := map[hash.Hash]int{h: 0}
	queue := []hash.Hash{h}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		c, err := s.GetCommit(cur)
		if err != nil {
			return nil, errors.Wrapf(err, "commitstore: ancestors(%s)", h)
		}
		for _, p := range c.ParentHashes {
			if p.IsEmpty() {
				continue
			}
			if _, seen := depths[p]; seen {
				continue
			}
			depths[p] = depths[cur] + 1
			queue = append(queue, p)
		}
	}
	return depths, nil
}

// LowestCommonAncestor intersects the ancestor sets of a and b and picks
// the element with the greatest commit time, breaking ties by lex-min
// hash for determinism (spec.md §4.3, §9).
func (s *Store) LowestCommonAncestor(a, b hash.Hash) (hash.Hash, error) {
	ancA, err := s.Ancestors(a)
	if err != nil {
		return hash.Empty, err
	}
	ancB, err := s.Ancestors(b)
	if err != nil {
		return hash.Empty, err
	}

	var best hash.Hash
	var bestTime int64
	found := false

	for h := range ancA {
		if _, ok := ancB[h]; !ok {
			continue
		}
		c, err := s.GetCommit(h)
		if err != nil {
			return hash.Empty, err
		}
		t := c.Time.Unix()
		switch {
		case !found:
			best, bestTime, found = h, t, true
		case t > bestTime:
			best, bestTime = h, t
		case t == bestTime && h < best:
			best = h
		}
	}

	if !found {
		return hash.Empty, errors.Errorf("commitstore: no common ancestor between %s and %s", a, b)
	}
	return best, nil
}

// CanFastForward reports whether a can fast-forward to b, i.e. a is an
// ancestor of b (spec.md §4.3).
func (s *Store) CanFastForward(a, b hash.Hash) (bool, error) {
	ancB, err := s.Ancestors(b)
	if err != nil {
		return false, err
	}
	_, ok := ancB[a]
	return ok, nil
}
