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

package hangar

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// versionFileName is the repository format version file (spec.md §6).
const versionFileName = "VERSION"

// implementationMajor/Minor/Patch is this implementation's own semver, written
// into VERSION by Init and checked against by Open.
const (
	implementationMajor = 1
	implementationMinor = 0
	implementationPatch = 0
)

// CurrentVersion returns this implementation's semver string.
func CurrentVersion() string {
	return fmt.Sprintf("%d.%d.%d", implementationMajor, implementationMinor, implementationPatch)
}

func writeVersionFile(repoDir string) error {
	path := filepath.Join(repoDir, versionFileName)
	return os.WriteFile(path, []byte(CurrentVersion()+"\n"), 0o644)
}

func readVersionFile(repoDir string) (major, minor, patch int, err error) {
	path := filepath.Join(repoDir, versionFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, 0, errors.Wrapf(err, "hangar: reading %s", path)
	}
	return parseVersion(strings.TrimSpace(string(data)))
}

func parseVersion(s string) (major, minor, patch int, err error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return 0, 0, 0, errors.Errorf("hangar: malformed version string %q", s)
	}
	vals := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, 0, 0, errors.Wrapf(err, "hangar: malformed version string %q", s)
		}
		vals[i] = n
	}
	return vals[0], vals[1], vals[2], nil
}

// checkVersionCompatible implements spec.md §6's version-compatibility
// rule: a stored major version newer than this implementation's is
// always rejected; a strictly older major is rejected too, since no
// migration path is implemented. A matching major is accepted regardless
// of minor or patch -- spec.md only specifies the exact-match case
// ("equal major+minor is always accepted regardless of patch"); resolved
// here to also accept a differing minor under the same major, since no
// minor-level migration is named either and rejecting it would make every
// minor-level implementation upgrade a hard break for existing
// repositories (documented in DESIGN.md).
func checkVersionCompatible(repoDir string) error {
	major, _, _, err := readVersionFile(repoDir)
	if err != nil {
		return newHangarError(KindUnsupportedRepositoryVersion, "could not read VERSION", err)
	}
	if major != implementationMajor {
		return newHangarError(KindUnsupportedRepositoryVersion,
			fmt.Sprintf("repository major version %d is incompatible with implementation major version %d", major, implementationMajor), nil)
	}
	return nil
}
