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

package kv

import "github.com/pkg/errors"

// EnvError wraps an I/O or open failure on a named environment (spec.md
// §4.2). The cause is preserved via Unwrap (errors.Is/errors.As).
type EnvError struct {
	Path string
	Op   string
	err  error
}

func (e *EnvError) Error() string {
	return "kv: " + e.Op + " " + e.Path + ": " + e.err.Error()
}

func (e *EnvError) Unwrap() error { return e.err }

func newEnvError(path, op string, err error) error {
	return &EnvError{Path: path, Op: op, err: errors.WithStack(err)}
}

// TxnError reports a transaction lifecycle failure, notably an attempt to
// start a second concurrent writer against one environment.
type TxnError struct {
	Path string
	msg  string
}

func (e *TxnError) Error() string {
	return "kv: txn on " + e.Path + ": " + e.msg
}

func newTxnError(path, msg string) error {
	return &TxnError{Path: path, msg: msg}
}

// concurrentWriterMsg is the message used by TxnError when a write
// transaction is already open on the environment.
const concurrentWriterMsg = "a write transaction is already open"
