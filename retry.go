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
	"github.com/cenkalti/backoff/v4"
	"github.com/hangar-db/hangar/config"
)

// retrySchedule builds the bounded exponential-backoff schedule a
// repository's config.Backoff describes (spec.md §7: "recoverable
// conditions... may be retried by the facade with bounded backoff").
func retrySchedule(cfg config.Backoff) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = cfg.InitialInterval
	eb.MaxInterval = cfg.MaxInterval
	eb.MaxElapsedTime = 0 // bounded by MaxAttempts below, not wall-clock
	// WithMaxRetries counts retries after the first attempt.
	retries := uint64(0)
	if cfg.MaxAttempts > 1 {
		retries = uint64(cfg.MaxAttempts - 1)
	}
	return backoff.WithMaxRetries(eb, retries)
}

// retryOnLockHeld retries op while it fails with KindLockHeld, up to
// cfg's bounded schedule. Any other error aborts immediately.
func retryOnLockHeld(cfg config.Backoff, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if he, ok := err.(*HangarError); ok && he.Kind() == KindLockHeld {
			return err
		}
		return backoff.Permanent(err)
	}, retrySchedule(cfg))
}
