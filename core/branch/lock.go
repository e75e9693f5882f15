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

package branch

import "github.com/pkg/errors"

// AcquireWriterLock performs an atomic compare-and-set of WRITER_LOCK from
// LockAvailable to token (spec.md §4.4). The CAS happens inside a single
// bbolt write transaction, so it is safe against any other in-process or
// cross-process writer going through this same environment.
func (s *Store) AcquireWriterLock(token string) error {
	wtx, err := s.env.BeginWrite()
	if err != nil {
		return err
	}
	cur, _ := wtx.Get([]byte(writerLockKey))
	if string(cur) != LockAvailable {
		wtx.Abort()
		return errors.Wrapf(ErrLockHeld, "held by %q", string(cur))
	}
	if err := wtx.Put([]byte(writerLockKey), []byte(token)); err != nil {
		wtx.Abort()
		return err
	}
	return wtx.Commit()
}

// ReleaseWriterLock performs an atomic compare-and-set back to
// LockAvailable, failing with ErrLockMismatch if the stored token differs
// from the caller's (spec.md §4.4, §9: "close always attempts release
// exactly when the lock UUID matches").
func (s *Store) ReleaseWriterLock(token string) error {
	wtx, err := s.env.BeginWrite()
	if err != nil {
		return err
	}
	cur, _ := wtx.Get([]byte(writerLockKey))
	if string(cur) != token {
		wtx.Abort()
		return errors.Wrapf(ErrLockMismatch, "held token %q, release requested with %q", string(cur), token)
	}
	if err := wtx.Put([]byte(writerLockKey), []byte(LockAvailable)); err != nil {
		wtx.Abort()
		return err
	}
	return wtx.Commit()
}

// ForceReleaseWriterLock unconditionally resets WRITER_LOCK to
// LockAvailable and logs a visible warning, the sanctioned recovery path
// for a crashed writer (spec.md §4.4, §9).
func (s *Store) ForceReleaseWriterLock() error {
	wtx, err := s.env.BeginWrite()
	if err != nil {
		return err
	}
	held, _ := wtx.Get([]byte(writerLockKey))
	if err := wtx.Put([]byte(writerLockKey), []byte(LockAvailable)); err != nil {
		wtx.Abort()
		return err
	}
	if err := wtx.Commit(); err != nil {
		return err
	}
	s.log.Warnf("branch: force-released writer lock previously held by %q", string(held))
	return nil
}

// WriterLockHolder returns the current value of WRITER_LOCK, which is
// either LockAvailable or a writer's token.
func (s *Store) WriterLockHolder() (string, error) {
	rtx, err := s.env.BeginRead()
	if err != nil {
		return "", err
	}
	defer rtx.Release()
	v, _ := rtx.Get([]byte(writerLockKey))
	return string(v), nil
}
