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

// Package config reads and writes a repository's config.toml: the
// non-semantic, non-record settings (default branch, lock-retry backoff
// schedule, author identity) that live alongside the versioned data but
// are not part of it.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// FileName is the config file's name within a repository's .hangar
// directory.
const FileName = "config.toml"

// User holds the identity used to populate Commit.Author/Commit.Email
// when a caller does not supply them explicitly.
type User struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

// Backoff describes the bounded retry schedule used when acquiring the
// writer lock finds it held (spec.md §7 propagation policy). TxnError is
// not retried. MaxAttempts counts the first attempt.
type Backoff struct {
	MaxAttempts      int           `toml:"max_attempts"`
	InitialInterval  time.Duration `toml:"initial_interval"`
	MaxInterval      time.Duration `toml:"max_interval"`
}

// Config is the parsed form of config.toml.
type Config struct {
	DefaultBranch string  `toml:"default_branch"`
	User          User    `toml:"user"`
	Backoff       Backoff `toml:"backoff"`
}

// Default returns the configuration Init writes for a brand-new
// repository absent any user-supplied overrides.
func Default() Config {
	return Config{
		DefaultBranch: "master",
		User:          User{Name: "unknown", Email: "unknown@example.com"},
		Backoff: Backoff{
			MaxAttempts:     5,
			InitialInterval: 50 * time.Millisecond,
			MaxInterval:     2 * time.Second,
		},
	}
}

// Load reads and parses repoDir/config.toml, where repoDir is the
// repository's .hangar directory.
func Load(repoDir string) (Config, error) {
	path := filepath.Join(repoDir, FileName)
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "config: reading %s", path)
	}
	return cfg, nil
}

// Save writes cfg to repoDir/config.toml, creating repoDir if necessary.
func Save(repoDir string, cfg Config) error {
	if err := os.MkdirAll(repoDir, 0o755); err != nil {
		return errors.Wrap(err, "config: creating repository directory")
	}
	path := filepath.Join(repoDir, FileName)
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "config: creating %s", path)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return errors.Wrapf(err, "config: writing %s", path)
	}
	return nil
}
