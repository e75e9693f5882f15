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

// Package record implements the codec spec.md §4.1 calls for: ordered
// binary keys and length-delimited values for the three record families
// (schema, sample, metadata). Encoding is total, deterministic, and
// order-preserving within a family; decoding is its left inverse.
package record

import "bytes"

// Family identifies which of the three key families a record belongs to.
type Family byte

const (
	// FamilySchema tags "s:<asetName>" keys.
	FamilySchema Family = 's'
	// FamilySample tags "a:<asetName>:<sampleKey>" keys.
	FamilySample Family = 'a'
	// FamilyMetadata tags "l:<labelKey>" keys.
	FamilyMetadata Family = 'l'
)

// sentinelMarker is the high byte used in a count-sentinel key so it sorts
// after every real member of the group it summarizes (spec.md §3: "count
// sentinels ... sort after the family members they summarize"). 0xFF cannot appear in the
// ASCII-safe names spec.md §6 requires, so no real key can collide with a
// sentinel.
const sentinelMarker = 0xff

// SchemaKey returns the key for an arrayset's schema record: "s:<asetName>".
func SchemaKey(asetName string) []byte {
	return append([]byte("s:"), asetName...)
}

// SchemaCountSentinel returns the sentinel key summarizing the total
// number of arraysets.
func SchemaCountSentinel() []byte {
	return []byte{'s', ':', sentinelMarker, ':'}
}

// SampleKey returns the key for one sample reference:
// "a:<asetName>:<sampleKey>".
func SampleKey(asetName, sampleKey string) []byte {
	k := append([]byte("a:"), asetName...)
	k = append(k, ':')
	k = append(k, sampleKey...)
	return k
}

// SampleCountSentinel returns the sentinel key summarizing the number of
// samples in one arrayset. It sorts after every "a:<asetName>:*" key. It
// does not always sort before later arraysets: keys of an arrayset whose
// name is asetName followed by a byte greater than ':' (e.g. "imagesZ"
// after "images") sort between the members and this sentinel.
func SampleCountSentinel(asetName string) []byte {
	k := append([]byte("a:"), asetName...)
	k = append(k, sentinelMarker, ':')
	return k
}

// MetadataKey returns the key for one metadata (label) record:
// "l:<labelKey>".
func MetadataKey(labelKey string) []byte {
	return append([]byte("l:"), labelKey...)
}

// MetadataCountSentinel returns the sentinel key summarizing the total
// number of metadata labels.
func MetadataCountSentinel() []byte {
	return []byte{'l', ':', sentinelMarker, ':'}
}

// IsSentinel reports whether key is a count sentinel, which the diff
// engine must skip (spec.md §4.6: "Count-sentinel keys ending `:` are
// skipped").
func IsSentinel(key []byte) bool {
	return len(key) > 0 && key[len(key)-1] == ':'
}

// ParseFamily returns the family tag of key and the remainder of the key
// after the "X:" prefix.
func ParseFamily(key []byte) (Family, []byte, error) {
	if len(key) < 2 || key[1] != ':' {
		return 0, nil, errUnknownFamily(key)
	}
	switch Family(key[0]) {
	case FamilySchema, FamilySample, FamilyMetadata:
		return Family(key[0]), key[2:], nil
	default:
		return 0, nil, errUnknownFamily(key)
	}
}

// SplitSampleKey splits a sample record's key remainder ("<asetName>:
// <sampleKey>") into its two parts.
func SplitSampleKey(remainder []byte) (asetName, sampleKey []byte, ok bool) {
	idx := bytes.IndexByte(remainder, ':')
	if idx < 0 {
		return nil, nil, false
	}
	return remainder[:idx], remainder[idx+1:], true
}
