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

package diff

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Summary is a human-readable rollup of a Result, the kind of thing a
// checkout facade prints to a terminal after a diff or a dry-run merge.
type Summary struct {
	AddedCount   int
	DeletedCount int
	MutatedCount int
	BytesTouched uint64
}

// Summarize computes a Summary over r. BytesTouched counts the value
// bytes of every added, deleted, and mutated entry, a rough proxy for how
// much record data the change moves.
func Summarize(r Result) Summary {
	s := Summary{
		AddedCount:   len(r.Added),
		DeletedCount: len(r.Deleted),
		MutatedCount: len(r.Mutated),
	}
	for _, kv := range r.Added {
		s.BytesTouched += uint64(len(kv.Value))
	}
	for _, kv := range r.Deleted {
		s.BytesTouched += uint64(len(kv.Value))
	}
	for _, kv := range r.Mutated {
		s.BytesTouched += uint64(len(kv.Value))
	}
	return s
}

// String renders the summary the way a CLI would: counts plus a
// human-scaled byte size, e.g. "+3 -1 ~2 (4.1 kB touched)".
func (s Summary) String() string {
	return fmt.Sprintf("+%d -%d ~%d (%s touched)",
		s.AddedCount, s.DeletedCount, s.MutatedCount, humanize.Bytes(s.BytesTouched))
}
