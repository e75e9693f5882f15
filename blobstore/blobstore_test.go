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

package blobstore

import (
	"testing"

	"github.com/hangar-db/hangar/store/hash"
	"github.com/stretchr/testify/require"
)

func TestMemoryPutGetExists(t *testing.T) {
	m := NewMemory()
	h, err := m.Put([]byte("tensor bytes"))
	require.NoError(t, err)
	require.True(t, m.Exists(h))

	data, err := m.Get(h)
	require.NoError(t, err)
	require.Equal(t, "tensor bytes", string(data))

	missing := hash.Of([]byte("never stored"))
	require.False(t, m.Exists(missing))
	_, err = m.Get(missing)
	require.ErrorIs(t, err, ErrNotFound)
}
