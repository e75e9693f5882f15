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

package commitstore

import (
	"github.com/hangar-db/hangar/store/kv"
	"github.com/pkg/errors"
)

// packRecordStream streams an environment's records, in key order, into a
// single length-delimited byte sequence (spec.md §4.3: "byte-stream the
// staged records in key order"). Key order is guaranteed by the
// environment's cursor, which walks its B+tree in sorted order.
func packRecordStream(rtx *kv.ReadTxn) ([]byte, error) {
	var out []byte
	c := rtx.Cursor()
	for k, v, ok := c.First(); ok; k, v, ok = c.Next() {
		out = appendLenPrefixed(out, k)
		out = appendLenPrefixed(out, v)
	}
	return out, nil
}

// unpackRecordStream is the left inverse of packRecordStream, writing each
// decoded key/value pair into wtx.
func unpackRecordStream(stream []byte, wtx *kv.WriteTxn) error {
	for len(stream) > 0 {
		var k, v []byte
		var err error
		k, stream, err = readLenPrefixed(stream)
		if err != nil {
			return errors.Wrap(err, "commitstore: unpacking record key")
		}
		v, stream, err = readLenPrefixed(stream)
		if err != nil {
			return errors.Wrap(err, "commitstore: unpacking record value")
		}
		if err := wtx.Put(k, v); err != nil {
			return err
		}
	}
	return nil
}
