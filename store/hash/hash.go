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

// Package hash implements the Hash identifier used throughout the core to
// name commits and content-addressed blobs. A Hash is always a hex string
// (spec.md §3), never a raw byte array, so that it can be used directly as
// a KV key or a directory name without further encoding.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Empty is the zero value of Hash: no commit, no parent.
const Empty = Hash("")

// Hash is a lowercase hex-encoded content identifier.
type Hash string

// IsEmpty reports whether h is the zero hash.
func (h Hash) IsEmpty() bool {
	return h == Empty
}

// String implements fmt.Stringer.
func (h Hash) String() string {
	return string(h)
}

// Of returns the hex-encoded SHA-256 digest of data.
func Of(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// Parse validates that s looks like a hash (even-length hex) and
// returns it as a Hash. It does not verify the hash names anything.
func Parse(s string) (Hash, error) {
	if s == "" {
		return Empty, nil
	}
	if len(s)%2 != 0 {
		return Empty, errors.Errorf("hash %q has odd length", s)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return Empty, errors.Wrapf(err, "hash %q is not valid hex", s)
	}
	return Hash(s), nil
}

// CommitHash derives the content-addressed hash of a commit header:
// hash = H(sorted parents || root || author || email || message || time).
//
// The fields are joined with '|', which cannot appear in a hash or a Unix
// timestamp; author, email and message are not escaped, so the encoding is
// only unambiguous when they contain no '|'.
func CommitHash(parents []Hash, recordRootHash Hash, author, email, message string, unixTime int64) Hash {
	sorted := make([]string, len(parents))
	for i, p := range parents {
		sorted[i] = string(p)
	}
	sort.Strings(sorted)

	var b strings.Builder
	b.WriteString(strings.Join(sorted, ","))
	b.WriteByte('|')
	b.WriteString(string(recordRootHash))
	b.WriteByte('|')
	b.WriteString(author)
	b.WriteByte('|')
	b.WriteString(email)
	b.WriteByte('|')
	b.WriteString(message)
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(unixTime, 10))

	return Of([]byte(b.String()))
}

// RecordRootHash derives the content fingerprint of a byte-sorted record
// stream (spec.md §3: "a function of its byte-sorted record stream").
func RecordRootHash(sortedStreamBytes []byte) Hash {
	return Of(sortedStreamBytes)
}
