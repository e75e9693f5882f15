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

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.User = User{Name: "ada", Email: "ada@example.com"}

	require.NoError(t, Save(dir, cfg))

	loaded, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, cfg.DefaultBranch, loaded.DefaultBranch)
	require.Equal(t, cfg.User, loaded.User)
	require.Equal(t, cfg.Backoff.MaxAttempts, loaded.Backoff.MaxAttempts)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
}
