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

package staging

import (
	"testing"
	"time"

	"github.com/hangar-db/hangar/store/commitstore"
	"github.com/hangar-db/hangar/store/hash"
	"github.com/hangar-db/hangar/store/kv"
	"github.com/stretchr/testify/require"
)

func newTestArea(t *testing.T) (*Area, *commitstore.Store) {
	t.Helper()
	dir := t.TempDir()
	reg := kv.NewRegistry()
	cs, err := commitstore.Open(reg, dir)
	require.NoError(t, err)
	area, err := Open(reg, dir, cs)
	require.NoError(t, err)
	t.Cleanup(func() { area.Close(); cs.Close() })
	return area, cs
}

func commitStaging(t *testing.T, area *Area, cs *commitstore.Store, parents []hash.Hash, msg string) hash.Hash {
	t.Helper()
	rtx, err := area.KV().BeginRead()
	require.NoError(t, err)
	defer rtx.Release()
	c, err := cs.WriteCommit(parents, "a", "a@x.com", msg, time.Now(), rtx)
	require.NoError(t, err)
	return c.Hash
}

func TestFreshStagingIsCleanWithNoParent(t *testing.T) {
	area, _ := newTestArea(t)
	status, err := area.Status(hash.Empty)
	require.NoError(t, err)
	require.Equal(t, Clean, status)
}

func TestInitializeFromCommitIsClean(t *testing.T) {
	area, cs := newTestArea(t)

	wtx, err := area.KV().BeginWrite()
	require.NoError(t, err)
	require.NoError(t, wtx.Put([]byte("a:x:k1"), []byte("v1")))
	require.NoError(t, wtx.Commit())

	h := commitStaging(t, area, cs, nil, "first")

	status, err := area.Status(h)
	require.NoError(t, err)
	require.Equal(t, Clean, status)

	// Mutate staging: now dirty.
	wtx2, err := area.KV().BeginWrite()
	require.NoError(t, err)
	require.NoError(t, wtx2.Put([]byte("a:x:k2"), []byte("v2")))
	require.NoError(t, wtx2.Commit())

	status, err = area.Status(h)
	require.NoError(t, err)
	require.Equal(t, Dirty, status)

	// Re-initialize: clean again.
	require.NoError(t, area.InitializeFromCommit(h))
	status, err = area.Status(h)
	require.NoError(t, err)
	require.Equal(t, Clean, status)
}

func TestHardResetPurgesSideStore(t *testing.T) {
	area, cs := newTestArea(t)
	h := commitStaging(t, area, cs, nil, "root")

	wtx, err := area.sideStore.BeginWrite()
	require.NoError(t, err)
	require.NoError(t, wtx.Put([]byte("blob1"), []byte("loc")))
	require.NoError(t, wtx.Commit())

	require.NoError(t, area.HardReset(h))

	rtx, err := area.sideStore.BeginRead()
	require.NoError(t, err)
	defer rtx.Release()
	require.Equal(t, 0, rtx.Stats())
}
