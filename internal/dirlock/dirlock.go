// Copyright 2025 Blink Labs Software
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

// Package dirlock takes an exclusive lock on a data directory so two
// processes never open the same stores.
package dirlock

import (
	"errors"
	"os"
	"path/filepath"
)

const lockFileName = "eventlog.lock"

var ErrLocked = errors.New("data directory is locked by another process")

// Lock is held until Release is called
type Lock struct {
	file *os.File
}

// Acquire locks dir, creating it if needed. It fails with ErrLocked without
// blocking when another process holds the lock.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(
		filepath.Join(dir, lockFileName),
		os.O_RDWR|os.O_CREATE,
		0o600,
	)
	if err != nil {
		return nil, err
	}
	if err := lockFile(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Lock{file: f}, nil
}

// Release unlocks the directory. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := errors.Join(unlockFile(l.file), l.file.Close())
	l.file = nil
	return err
}
