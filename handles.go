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

	"github.com/hangar-db/hangar/blobstore"
	"github.com/hangar-db/hangar/core/diff"
	"github.com/hangar-db/hangar/store/commitstore"
	"github.com/hangar-db/hangar/store/hash"
	"github.com/hangar-db/hangar/store/kv"
	"github.com/hangar-db/hangar/store/record"
)

// generation is bumped by a checkout whenever it closes, resets, or
// merges, invalidating every handle minted against it (spec.md §5:
// "weak views that become invalid when the checkout is closed, the
// staging area is reset, or a merge rebuilds staging").
type generation struct {
	n uint64
}

func (g *generation) bump() { g.n++ }

// handle is embedded by every weak view; checkAlive reproduces the
// __verify_checkout_alive pattern from the original implementation this
// model was generalized from (SPEC_FULL.md §3 item 1).
type handle struct {
	gen *generation
	at  uint64
}

func newHandle(g *generation) handle {
	return handle{gen: g, at: g.n}
}

func (h handle) checkAlive() error {
	if h.at != h.gen.n {
		return newHangarError(KindInvalidHandle, "handle invalidated by a close, reset, or merge on its checkout", nil)
	}
	return nil
}

// DatasetsHandle is the weak view over a checkout's arraysets (spec.md
// §4.8's "datasets" handle).
type DatasetsHandle struct {
	handle
	env   *kv.Environment
	blobs blobstore.Store
}

func newDatasetsHandle(g *generation, env *kv.Environment, blobs blobstore.Store) *DatasetsHandle {
	return &DatasetsHandle{handle: newHandle(g), env: env, blobs: blobs}
}

// InitArrayset creates a new arrayset's schema record (spec.md §3: "s:
// <asetName> — arrayset schema"). Lifecycle: schemas are created here and
// removed only by RemoveArrayset.
func (d *DatasetsHandle) InitArrayset(name string, spec record.SchemaSpec) error {
	if err := d.checkAlive(); err != nil {
		return err
	}
	wtx, err := d.env.BeginWrite()
	if err != nil {
		return classify(err)
	}
	key := record.SchemaKey(name)
	if _, ok := wtx.Get(key); ok {
		wtx.Abort()
		return newHangarError(KindInvalidName, fmt.Sprintf("arrayset %q already exists", name), nil)
	}
	if err := wtx.Put(key, record.EncodeSchema(spec)); err != nil {
		wtx.Abort()
		return classify(err)
	}
	return classify(wtx.Commit())
}

// RemoveArrayset deletes an arrayset's schema record. Per spec.md §3,
// schemas are "removed only when the arrayset is removed from staging";
// this does not remove the arrayset's sample records, matching the
// original's shallow delete (the sample family is orphaned, not swept,
// since garbage collection of unreachable data is a named Non-goal).
func (d *DatasetsHandle) RemoveArrayset(name string) error {
	if err := d.checkAlive(); err != nil {
		return err
	}
	wtx, err := d.env.BeginWrite()
	if err != nil {
		return classify(err)
	}
	key := record.SchemaKey(name)
	if _, ok := wtx.Get(key); !ok {
		wtx.Abort()
		return newHangarError(KindNotFound, fmt.Sprintf("arrayset %q does not exist", name), nil)
	}
	if err := wtx.Delete(key); err != nil {
		wtx.Abort()
		return classify(err)
	}
	return classify(wtx.Commit())
}

// Get returns a handle onto one arrayset's schema and samples.
func (d *DatasetsHandle) Get(name string) (*Arrayset, error) {
	if err := d.checkAlive(); err != nil {
		return nil, err
	}
	rtx, err := d.env.BeginRead()
	if err != nil {
		return nil, classify(err)
	}
	defer rtx.Release()

	v, ok := rtx.Get(record.SchemaKey(name))
	if !ok {
		return nil, newHangarError(KindNotFound, fmt.Sprintf("arrayset %q does not exist", name), nil)
	}
	spec, err := record.DecodeSchema(v)
	if err != nil {
		return nil, classify(err)
	}
	return &Arrayset{name: name, spec: spec, owner: d}, nil
}

// Names lists every arrayset name present, in key order.
func (d *DatasetsHandle) Names() ([]string, error) {
	if err := d.checkAlive(); err != nil {
		return nil, err
	}
	rtx, err := d.env.BeginRead()
	if err != nil {
		return nil, classify(err)
	}
	defer rtx.Release()

	var names []string
	c := rtx.Cursor()
	for k, _, ok := c.Seek([]byte("s:")); ok; k, _, ok = c.Next() {
		if len(k) < 2 || k[0] != 's' || k[1] != ':' {
			break
		}
		if record.IsSentinel(k) {
			continue
		}
		names = append(names, string(k[2:]))
	}
	return names, nil
}

// Arrayset is one dataset's schema plus its sample records.
type Arrayset struct {
	name  string
	spec  record.SchemaSpec
	owner *DatasetsHandle
}

// Shape returns the arrayset's declared tensor shape.
func (a *Arrayset) Shape() record.Shape { return a.spec.Shape }

// DType returns the arrayset's declared element type.
func (a *Arrayset) DType() string { return a.spec.DType }

// AddSample writes data to the blob backend and records a sample
// reference under key (spec.md §3: "a:<asetName>:<sampleKey> — sample
// reference").
func (a *Arrayset) AddSample(key string, data []byte) error {
	if err := a.owner.checkAlive(); err != nil {
		return err
	}
	h, err := a.owner.blobs.Put(data)
	if err != nil {
		return classify(err)
	}
	ref := record.SampleRef{Hash: h, Shape: a.spec.Shape}

	wtx, err := a.owner.env.BeginWrite()
	if err != nil {
		return classify(err)
	}
	if err := wtx.Put(record.SampleKey(a.name, key), record.EncodeSample(ref)); err != nil {
		wtx.Abort()
		return classify(err)
	}
	return classify(wtx.Commit())
}

// GetSample returns the blob bytes a sample key references.
func (a *Arrayset) GetSample(key string) ([]byte, error) {
	if err := a.owner.checkAlive(); err != nil {
		return nil, err
	}
	rtx, err := a.owner.env.BeginRead()
	if err != nil {
		return nil, classify(err)
	}
	v, ok := rtx.Get(record.SampleKey(a.name, key))
	rtx.Release()
	if !ok {
		return nil, newHangarError(KindNotFound, fmt.Sprintf("sample %q/%q does not exist", a.name, key), nil)
	}
	ref, err := record.DecodeSample(v)
	if err != nil {
		return nil, classify(err)
	}
	data, err := a.owner.blobs.Get(ref.Hash)
	if err != nil {
		return nil, classify(err)
	}
	return data, nil
}

// RemoveSample deletes one sample reference. The referenced blob is left
// in the backend; blob garbage collection is out of scope (spec.md §1).
func (a *Arrayset) RemoveSample(key string) error {
	if err := a.owner.checkAlive(); err != nil {
		return err
	}
	wtx, err := a.owner.env.BeginWrite()
	if err != nil {
		return classify(err)
	}
	sampleKey := record.SampleKey(a.name, key)
	if _, ok := wtx.Get(sampleKey); !ok {
		wtx.Abort()
		return newHangarError(KindNotFound, fmt.Sprintf("sample %q/%q does not exist", a.name, key), nil)
	}
	if err := wtx.Delete(sampleKey); err != nil {
		wtx.Abort()
		return classify(err)
	}
	return classify(wtx.Commit())
}

// MetadataHandle is the weak view over a checkout's text labels (spec.md
// §3: "l:<labelKey> — metadata reference").
type MetadataHandle struct {
	handle
	env   *kv.Environment
	blobs blobstore.Store
}

func newMetadataHandle(g *generation, env *kv.Environment, blobs blobstore.Store) *MetadataHandle {
	return &MetadataHandle{handle: newHandle(g), env: env, blobs: blobs}
}

// Set stores value under key, content-addressed through the blob
// backend just like a sample (spec.md §3: "a content hash").
func (m *MetadataHandle) Set(key string, value []byte) error {
	if err := m.checkAlive(); err != nil {
		return err
	}
	h, err := m.blobs.Put(value)
	if err != nil {
		return classify(err)
	}
	wtx, err := m.env.BeginWrite()
	if err != nil {
		return classify(err)
	}
	if err := wtx.Put(record.MetadataKey(key), record.EncodeMetadata(record.MetadataRef{Hash: h})); err != nil {
		wtx.Abort()
		return classify(err)
	}
	return classify(wtx.Commit())
}

// Get returns the value stored under key.
func (m *MetadataHandle) Get(key string) ([]byte, error) {
	if err := m.checkAlive(); err != nil {
		return nil, err
	}
	rtx, err := m.env.BeginRead()
	if err != nil {
		return nil, classify(err)
	}
	v, ok := rtx.Get(record.MetadataKey(key))
	rtx.Release()
	if !ok {
		return nil, newHangarError(KindNotFound, fmt.Sprintf("metadata key %q does not exist", key), nil)
	}
	ref, err := record.DecodeMetadata(v)
	if err != nil {
		return nil, classify(err)
	}
	return m.blobs.Get(ref.Hash)
}

// Remove deletes a metadata label.
func (m *MetadataHandle) Remove(key string) error {
	if err := m.checkAlive(); err != nil {
		return err
	}
	wtx, err := m.env.BeginWrite()
	if err != nil {
		return classify(err)
	}
	mk := record.MetadataKey(key)
	if _, ok := wtx.Get(mk); !ok {
		wtx.Abort()
		return newHangarError(KindNotFound, fmt.Sprintf("metadata key %q does not exist", key), nil)
	}
	if err := wtx.Delete(mk); err != nil {
		wtx.Abort()
		return classify(err)
	}
	return classify(wtx.Commit())
}

// DiffHandle is the weak view that computes a diff against this
// checkout's record set (spec.md §4.8's "diff" handle).
type DiffHandle struct {
	handle
	commits *commitstore.Store
	mine    *kv.Environment
}

func newDiffHandle(g *generation, commits *commitstore.Store, mine *kv.Environment) *DiffHandle {
	return &DiffHandle{handle: newHandle(g), commits: commits, mine: mine}
}

// Against computes diff(mine, other): other materialized as an ephemeral
// environment, released before Against returns.
func (d *DiffHandle) Against(other hash.Hash) (diff.Result, error) {
	if err := d.checkAlive(); err != nil {
		return diff.Result{}, err
	}
	mat, err := d.commits.Materialize(other)
	if err != nil {
		return diff.Result{}, classify(err)
	}
	defer mat.Release()

	otherRtx, err := mat.KV().BeginRead()
	if err != nil {
		return diff.Result{}, classify(err)
	}
	defer otherRtx.Release()

	mineRtx, err := d.mine.BeginRead()
	if err != nil {
		return diff.Result{}, classify(err)
	}
	defer mineRtx.Release()

	return diff.TwoCursor(mineRtx.Cursor(), otherRtx.Cursor()), nil
}
