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

import "github.com/pkg/errors"

// ErrUnknownFamily is returned when a key's family tag is not one of
// 's', 'a', 'l'.
var ErrUnknownFamily = errors.New("record: unknown key family")

// ErrTruncatedValue is returned when a value ends before all of its
// declared length-delimited fields have been read.
var ErrTruncatedValue = errors.New("record: truncated value")

// ErrTrailingBytes is returned when a value has bytes left over after all
// fields of its family have been decoded.
var ErrTrailingBytes = errors.New("record: trailing bytes after last field")

func errUnknownFamily(key []byte) error {
	return errors.Wrapf(ErrUnknownFamily, "key %q", key)
}
