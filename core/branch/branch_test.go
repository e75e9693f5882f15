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

package branch

import (
	"path/filepath"
	"testing"

	"github.com/hangar-db/hangar/store/kv"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	reg := kv.NewRegistry()
	s, err := Open(reg, filepath.Join(t.TempDir(), "repo"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateListDeleteBranch(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateBranch("master", "c1"))
	require.ErrorIs(t, s.CreateBranch("master", "c1"), ErrBranchExists)

	require.NoError(t, s.SetStagingBranch("master"))
	assert.ErrorIs(t, s.DeleteBranch("master"), ErrDeleteStagingBranch)

	require.NoError(t, s.CreateBranch("foo", "c1"))
	require.NoError(t, s.DeleteBranch("foo"))
	_, err := s.GetHead("foo")
	assert.ErrorIs(t, err, ErrUnknownBranch)

	names, err := s.ListBranches()
	require.NoError(t, err)
	assert.Equal(t, []string{"master"}, names)
}

func TestSetHeadRequiresExistingBranch(t *testing.T) {
	s := newTestStore(t)
	require.ErrorIs(t, s.SetHead("nope", "c1"), ErrUnknownBranch)

	require.NoError(t, s.CreateBranch("master", "c1"))
	require.NoError(t, s.SetHead("master", "c2"))
	h, err := s.GetHead("master")
	require.NoError(t, err)
	assert.EqualValues(t, "c2", h)
}

func TestValidateNameRejectsReservedAndIllegal(t *testing.T) {
	assert.ErrorIs(t, ValidateName(""), ErrInvalidName)
	assert.ErrorIs(t, ValidateName("STAGING"), ErrInvalidName)
	assert.ErrorIs(t, ValidateName("a b"), ErrInvalidName)
	assert.NoError(t, ValidateName("feature/foo"))
}

func TestWriterLockAcquireReleaseForceRelease(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AcquireWriterLock("uuid-1"))
	assert.ErrorIs(t, s.AcquireWriterLock("uuid-2"), ErrLockHeld)

	assert.ErrorIs(t, s.ReleaseWriterLock("uuid-2"), ErrLockMismatch)
	require.NoError(t, s.ReleaseWriterLock("uuid-1"))

	holder, err := s.WriterLockHolder()
	require.NoError(t, err)
	assert.Equal(t, LockAvailable, holder)

	require.NoError(t, s.AcquireWriterLock("uuid-1"))
	logger, hook := test.NewNullLogger()
	s.log = logger
	require.NoError(t, s.ForceReleaseWriterLock())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	require.NoError(t, s.AcquireWriterLock("uuid-2"), "a second writer can proceed after force-release")
}
