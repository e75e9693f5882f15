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

package record

import (
	"bytes"
	"sort"
	"testing"

	"github.com/hangar-db/hangar/store/hash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaRoundTrip(t *testing.T) {
	in := SchemaSpec{DType: "float64", Shape: Shape{5, 7}, VariableShape: false, BackendHint: "hdf5"}
	out, err := DecodeSchema(EncodeSchema(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestSchemaRoundTripVariableShape(t *testing.T) {
	in := SchemaSpec{DType: "int32", Shape: Shape{0, 0}, VariableShape: true, BackendHint: ""}
	out, err := DecodeSchema(EncodeSchema(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestSampleRoundTrip(t *testing.T) {
	in := SampleRef{Hash: hash.Of([]byte("blob")), Shape: Shape{3, 3, 3}}
	out, err := DecodeSample(EncodeSample(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestMetadataRoundTrip(t *testing.T) {
	in := MetadataRef{Hash: hash.Of([]byte("a label's text"))}
	out, err := DecodeMetadata(EncodeMetadata(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeRejectsTruncatedValue(t *testing.T) {
	full := EncodeSample(SampleRef{Hash: "abcd", Shape: Shape{1}})
	_, err := DecodeSample(full[:len(full)-2])
	assert.ErrorIs(t, err, ErrTruncatedValue)
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	full := EncodeMetadata(MetadataRef{Hash: "abcd"})
	full = append(full, 0xAB)
	_, err := DecodeMetadata(full)
	assert.ErrorIs(t, err, ErrTrailingBytes)
}

func TestParseFamilyUnknownTag(t *testing.T) {
	_, _, err := ParseFamily([]byte("x:foo"))
	assert.ErrorIs(t, err, ErrUnknownFamily)
}

func TestParseFamilyRoundTrip(t *testing.T) {
	fam, rest, err := ParseFamily(SampleKey("images", "k1"))
	require.NoError(t, err)
	assert.Equal(t, FamilySample, fam)
	aset, key, ok := SplitSampleKey(rest)
	require.True(t, ok)
	assert.Equal(t, "images", string(aset))
	assert.Equal(t, "k1", string(key))
}

// TestKeysOrderedWithinArrayset is the order-preserving property spec.md
// §4.1 requires: "lex-sorted bytes reflect the natural order of names".
func TestKeysOrderedWithinArrayset(t *testing.T) {
	keys := [][]byte{
		SampleKey("images", "k1"),
		SampleKey("images", "k2"),
		SampleKey("images", "k10"),
		SampleCountSentinel("images"),
		SampleKey("labels", "a"),
	}
	sorted := make([][]byte, len(keys))
	copy(sorted, keys)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i], sorted[j]) < 0 })

	// All "images" entries (including its sentinel) must be contiguous
	// and precede "labels" entries.
	for i, k := range sorted {
		if i < 4 {
			assert.True(t, bytes.HasPrefix(k, []byte("a:images")), "index %d: %q", i, k)
		} else {
			assert.True(t, bytes.HasPrefix(k, []byte("a:labels")), "index %d: %q", i, k)
		}
	}
	// The sentinel sorts after every real member it summarizes.
	assert.Equal(t, SampleCountSentinel("images"), sorted[3])
}

func TestSentinelDetection(t *testing.T) {
	assert.True(t, IsSentinel(SampleCountSentinel("images")))
	assert.True(t, IsSentinel(SchemaCountSentinel()))
	assert.True(t, IsSentinel(MetadataCountSentinel()))
	assert.False(t, IsSentinel(SampleKey("images", "k1")))
	assert.False(t, IsSentinel(SchemaKey("images")))
}
