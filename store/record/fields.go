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

import "encoding/binary"

// encodeFields packs a fixed-order list of byte fields into one value,
// each prefixed with its big-endian uint32 length (spec.md §4.1: "values
// encode as length-delimited fields so that extra trailing bytes are
// detected"). This is the one place pipe-style field separation from
// spec.md §6 is implemented: rather than an ambiguous delimiter, every
// field declares its own length, which is strictly safer for fields that
// may contain arbitrary bytes (e.g. a free-text label).
func encodeFields(fields ...[]byte) []byte {
	var out []byte
	var lenBuf [4]byte
	for _, f := range fields {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(f)))
		out = append(out, lenBuf[:]...)
		out = append(out, f...)
	}
	return out
}

// decodeFields reads exactly n length-delimited fields from data and
// errors if the value is truncated mid-field or has bytes left over once
// all n fields are read.
func decodeFields(data []byte, n int) ([][]byte, error) {
	fields := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		if len(data) < 4 {
			return nil, ErrTruncatedValue
		}
		l := binary.BigEndian.Uint32(data[:4])
		data = data[4:]
		if uint32(len(data)) < l {
			return nil, ErrTruncatedValue
		}
		fields = append(fields, data[:l])
		data = data[l:]
	}
	if len(data) != 0 {
		return nil, ErrTrailingBytes
	}
	return fields, nil
}
