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
	"path/filepath"
	"testing"
	"time"

	"github.com/hangar-db/hangar/store/commitstore"
	"github.com/hangar-db/hangar/store/hash"
	"github.com/hangar-db/hangar/store/kv"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*commitstore.Store, *kv.Registry) {
	t.Helper()
	reg := kv.NewRegistry()
	store, err := commitstore.Open(reg, filepath.Join(t.TempDir(), "repo"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, reg
}

func commitOf(t *testing.T, store *commitstore.Store, reg *kv.Registry, parents []hash.Hash, name string, at int64, kvs map[string]string) commitstore.Commit {
	t.Helper()
	env, err := reg.Open(filepath.Join(t.TempDir(), name), true)
	require.NoError(t, err)
	defer env.Close()

	wtx, err := env.BeginWrite()
	require.NoError(t, err)
	for k, v := range kvs {
		require.NoError(t, wtx.Put([]byte(k), []byte(v)))
	}
	require.NoError(t, wtx.Commit())

	rtx, err := env.BeginRead()
	require.NoError(t, err)
	defer rtx.Release()

	c, err := store.WriteCommit(parents, "a", "a@x.com", name, time.Unix(at, 0), rtx)
	require.NoError(t, err)
	return c
}

func envCursor(t *testing.T, store *commitstore.Store, h hash.Hash) Cursor {
	t.Helper()
	mat, err := store.Materialize(h)
	require.NoError(t, err)
	t.Cleanup(func() { mat.Release() })
	rtx, err := mat.KV().BeginRead()
	require.NoError(t, err)
	t.Cleanup(func() { rtx.Release() })
	return rtx.Cursor()
}

func TestTwoCursorAddedDeletedMutated(t *testing.T) {
	store, reg := newTestStore(t)

	base := commitOf(t, store, reg, nil, "base", 0, map[string]string{
		"a:x:k1": "v1",
		"a:x:k2": "v2",
		"l:tag":  "old",
	})
	head := commitOf(t, store, reg, []hash.Hash{base.Hash}, "head", 1, map[string]string{
		"a:x:k1": "v1",  // unchanged
		"a:x:k3": "v3",  // added
		"l:tag":  "new", // mutated
		// a:x:k2 deleted
	})

	result := TwoCursor(envCursor(t, store, base.Hash), envCursor(t, store, head.Hash))

	require.Len(t, result.Added, 1)
	require.Equal(t, []byte("a:x:k3"), result.Added[0].Key)

	require.Len(t, result.Deleted, 1)
	require.Equal(t, []byte("a:x:k2"), result.Deleted[0].Key)

	require.Len(t, result.Mutated, 1)
	require.Equal(t, []byte("l:tag"), result.Mutated[0].Key)
}

func TestTwoCursorSkipsSentinels(t *testing.T) {
	store, reg := newTestStore(t)

	base := commitOf(t, store, reg, nil, "base", 0, map[string]string{
		"a:x:k1":           "v1",
		string([]byte{'a', ':', 'x', 0xff, ':'}): "1",
	})
	head := commitOf(t, store, reg, []hash.Hash{base.Hash}, "head", 1, map[string]string{
		"a:x:k1":           "v1",
		"a:x:k2":           "v2",
		string([]byte{'a', ':', 'x', 0xff, ':'}): "2",
	})

	result := TwoCursor(envCursor(t, store, base.Hash), envCursor(t, store, head.Hash))

	require.Len(t, result.Added, 1)
	require.Equal(t, []byte("a:x:k2"), result.Added[0].Key)
	require.Empty(t, result.Mutated, "sentinel count changes must not surface as a mutation")
}

func TestTwoCursorIsSymmetric(t *testing.T) {
	store, reg := newTestStore(t)
	base := commitOf(t, store, reg, nil, "base", 0, map[string]string{"l:a": "1", "l:b": "2"})
	head := commitOf(t, store, reg, []hash.Hash{base.Hash}, "head", 1, map[string]string{"l:b": "3", "l:c": "4"})

	forward := TwoCursor(envCursor(t, store, base.Hash), envCursor(t, store, head.Hash))
	backward := TwoCursor(envCursor(t, store, head.Hash), envCursor(t, store, base.Hash))

	require.Equal(t, len(forward.Added), len(backward.Deleted))
	require.Equal(t, len(forward.Deleted), len(backward.Added))
	require.Equal(t, len(forward.Mutated), len(backward.Mutated))
}

func TestThreeWayNoConflict(t *testing.T) {
	store, reg := newTestStore(t)
	ancestor := commitOf(t, store, reg, nil, "ancestor", 0, map[string]string{"l:a": "1", "l:b": "2"})
	dest := commitOf(t, store, reg, []hash.Hash{ancestor.Hash}, "dest", 1, map[string]string{"l:a": "1", "l:b": "2", "l:c": "dest-added"})
	merge := commitOf(t, store, reg, []hash.Hash{ancestor.Hash}, "merge", 1, map[string]string{"l:a": "99", "l:b": "2"})

	res, err := ThreeWay(store, ancestor.Hash, dest.Hash, merge.Hash)
	require.NoError(t, err)

	conflicts := FindConflicts(res.AncestorToDest, res.AncestorToMerge)
	require.False(t, conflicts.Any())
}

func TestFindConflictsAllFourClasses(t *testing.T) {
	deltaDest := Result{
		Added:   []KV{{Key: []byte("both-added"), Value: []byte("dest-value")}},
		Deleted: []KV{{Key: []byte("dest-deleted-merge-mutated"), Value: []byte("old")}},
		Mutated: []KV{
			{Key: []byte("dest-mutated-merge-deleted"), Value: []byte("dest-new")},
			{Key: []byte("both-mutated"), Value: []byte("dest-new")},
		},
	}
	deltaMerge := Result{
		Added:   []KV{{Key: []byte("both-added"), Value: []byte("merge-value")}},
		Deleted: []KV{{Key: []byte("dest-mutated-merge-deleted"), Value: []byte("old")}},
		Mutated: []KV{
			{Key: []byte("dest-deleted-merge-mutated"), Value: []byte("merge-new")},
			{Key: []byte("both-mutated"), Value: []byte("merge-new")},
		},
	}

	conflicts := FindConflicts(deltaDest, deltaMerge)

	require.Len(t, conflicts.T1, 1)
	require.Equal(t, []byte("both-added"), conflicts.T1[0].Key)

	require.Len(t, conflicts.T21, 1)
	require.Equal(t, []byte("dest-deleted-merge-mutated"), conflicts.T21[0].Key)

	require.Len(t, conflicts.T22, 1)
	require.Equal(t, []byte("dest-mutated-merge-deleted"), conflicts.T22[0].Key)

	require.Len(t, conflicts.T3, 1)
	require.Equal(t, []byte("both-mutated"), conflicts.T3[0].Key)

	require.True(t, conflicts.Any())
	require.Len(t, conflicts.Describe(), 4)
}

func TestFindConflictsIdenticalChangeIsNotAConflict(t *testing.T) {
	deltaDest := Result{Mutated: []KV{{Key: []byte("k"), Value: []byte("same")}}}
	deltaMerge := Result{Mutated: []KV{{Key: []byte("k"), Value: []byte("same")}}}

	conflicts := FindConflicts(deltaDest, deltaMerge)
	require.False(t, conflicts.Any())
}

func TestSummarize(t *testing.T) {
	r := Result{
		Added:   []KV{{Key: []byte("a"), Value: []byte("123")}},
		Deleted: []KV{{Key: []byte("b"), Value: []byte("45")}},
		Mutated: []KV{{Key: []byte("c"), Value: []byte("6")}},
	}
	s := Summarize(r)
	require.Equal(t, 1, s.AddedCount)
	require.Equal(t, 1, s.DeletedCount)
	require.Equal(t, 1, s.MutatedCount)
	require.Equal(t, uint64(6), s.BytesTouched)
	require.Contains(t, s.String(), "+1 -1 ~1")
}
