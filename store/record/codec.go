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
	"encoding/binary"

	"github.com/hangar-db/hangar/store/hash"
)

// Shape is a tensor's dimension sizes, e.g. (5, 7).
type Shape []int64

func encodeShape(s Shape) []byte {
	buf := make([]byte, 0, 8+8*len(s))
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(len(s)))
	buf = append(buf, tmp[:]...)
	for _, d := range s {
		binary.BigEndian.PutUint64(tmp[:], uint64(d))
		buf = append(buf, tmp[:]...)
	}
	return buf
}

func decodeShape(b []byte) (Shape, error) {
	if len(b) < 8 {
		return nil, ErrTruncatedValue
	}
	n := binary.BigEndian.Uint64(b[:8])
	b = b[8:]
	if uint64(len(b)) != n*8 {
		return nil, ErrTruncatedValue
	}
	out := make(Shape, n)
	for i := range out {
		out[i] = int64(binary.BigEndian.Uint64(b[i*8 : i*8+8]))
	}
	return out, nil
}

// SchemaSpec describes an arrayset's dtype, shape bound, and storage hint
// (spec.md §3: "s:<asetName> — arrayset schema (dtype, shape, variable-
// shape flag, backend hint)").
type SchemaSpec struct {
	DType         string
	Shape         Shape
	VariableShape bool
	BackendHint   string
}

// EncodeSchema serializes a SchemaSpec to its record value bytes.
func EncodeSchema(s SchemaSpec) []byte {
	variable := []byte{0}
	if s.VariableShape {
		variable[0] = 1
	}
	return encodeFields([]byte(s.DType), encodeShape(s.Shape), variable, []byte(s.BackendHint))
}

// DecodeSchema is the left inverse of EncodeSchema.
func DecodeSchema(value []byte) (SchemaSpec, error) {
	fields, err := decodeFields(value, 4)
	if err != nil {
		return SchemaSpec{}, err
	}
	shape, err := decodeShape(fields[1])
	if err != nil {
		return SchemaSpec{}, err
	}
	return SchemaSpec{
		DType:         string(fields[0]),
		Shape:         shape,
		VariableShape: fields[2][0] != 0,
		BackendHint:   string(fields[3]),
	}, nil
}

// SampleRef is a sample's content hash plus the shape of the blob it
// names (spec.md §3: "a content hash plus shape for the blob").
type SampleRef struct {
	Hash  hash.Hash
	Shape Shape
}

// EncodeSample serializes a SampleRef to its record value bytes.
func EncodeSample(s SampleRef) []byte {
	return encodeFields([]byte(s.Hash), encodeShape(s.Shape))
}

// DecodeSample is the left inverse of EncodeSample.
func DecodeSample(value []byte) (SampleRef, error) {
	fields, err := decodeFields(value, 2)
	if err != nil {
		return SampleRef{}, err
	}
	shape, err := decodeShape(fields[1])
	if err != nil {
		return SampleRef{}, err
	}
	return SampleRef{Hash: hash.Hash(fields[0]), Shape: shape}, nil
}

// MetadataRef is a text label's content hash (spec.md §3:
// "l:<labelKey> — metadata (text label) reference (a content hash)").
type MetadataRef struct {
	Hash hash.Hash
}

// EncodeMetadata serializes a MetadataRef to its record value bytes.
func EncodeMetadata(m MetadataRef) []byte {
	return encodeFields([]byte(m.Hash))
}

// DecodeMetadata is the left inverse of EncodeMetadata.
func DecodeMetadata(value []byte) (MetadataRef, error) {
	fields, err := decodeFields(value, 1)
	if err != nil {
		return MetadataRef{}, err
	}
	return MetadataRef{Hash: hash.Hash(fields[0])}, nil
}
