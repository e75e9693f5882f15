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

// Package diff implements the two-cursor environment diff and three-way
// diff/conflict classification of spec.md §4.6.
package diff

import (
	"bytes"

	"github.com/hangar-db/hangar/store/record"
)

// KV is a key/value pair carried by a diff result.
type KV struct {
	Key   []byte
	Value []byte
}

// Result is the outcome of a two-cursor diff: {added, deleted, mutated}
// (spec.md §4.6).
type Result struct {
	Added   []KV
	Deleted []KV
	Mutated []KV
}

func (r Result) addedByKey() byKey   { return toByKey(r.Added) }
func (r Result) deletedByKey() byKey { return toByKey(r.Deleted) }
func (r Result) mutatedByKey() byKey { return toByKey(r.Mutated) }

// byKey indexes a Result's entries by key string for the conflict
// classifier's symmetric-difference comparisons.
type byKey map[string][]byte

func toByKey(kvs []KV) byKey {
	m := make(byKey, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value
	}
	return m
}

// Cursor is the minimal ordered-forward-iteration contract the diff
// algorithm needs. *kv.ReadTxn and *kv.WriteTxn both satisfy it via
// Cursor().
type Cursor interface {
	First() (key, value []byte, ok bool)
	Next() (key, value []byte, ok bool)
}

// TwoCursor walks base and head in lockstep and classifies every key as
// added, deleted, or mutated, per the table in spec.md §4.6:
//
//	base_key < head_key                    -> deleted(base), advance base
//	base_key > head_key                    -> added(head), advance head
//	base_key == head_key, values equal     -> unchanged, advance both
//	base_key == head_key, values differ    -> mutated(head), advance both
//	base exhausted                         -> drain head as added
//	head exhausted                         -> drain base as deleted
//
// It is O(|base| + |head|) with no random access, relying on the codec's
// order-preserving guarantee (spec.md §4.1). Count-sentinel keys (spec.md
// §3) are skipped on both sides.
func TwoCursor(base, head Cursor) Result {
	var result Result

	bk, bv, bok := nextReal(base, true)
	hk, hv, hok := nextReal(head, true)

	for bok && hok {
		switch bytes.Compare(bk, hk) {
		case -1:
			result.Deleted = append(result.Deleted, KV{Key: bk, Value: bv})
			bk, bv, bok = nextReal(base, false)
		case 1:
			result.Added = append(result.Added, KV{Key: hk, Value: hv})
			hk, hv, hok = nextReal(head, false)
		default:
			if !bytes.Equal(bv, hv) {
				result.Mutated = append(result.Mutated, KV{Key: hk, Value: hv})
			}
			bk, bv, bok = nextReal(base, false)
			hk, hv, hok = nextReal(head, false)
		}
	}
	for bok {
		result.Deleted = append(result.Deleted, KV{Key: bk, Value: bv})
		bk, bv, bok = nextReal(base, false)
	}
	for hok {
		result.Added = append(result.Added, KV{Key: hk, Value: hv})
		hk, hv, hok = nextReal(head, false)
	}
	return result
}

// nextReal advances c (calling First on the first invocation, Next
// thereafter) until it lands on a non-sentinel key or is exhausted.
func nextReal(c Cursor, first bool) (key, value []byte, ok bool) {
	if first {
		key, value, ok = c.First()
	} else {
		key, value, ok = c.Next()
	}
	for ok && record.IsSentinel(key) {
		key, value, ok = c.Next()
	}
	return key, value, ok
}
