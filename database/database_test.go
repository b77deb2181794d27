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

package database

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInMemory(t *testing.T) {
	db, err := New(nil)
	require.NoError(t, err)
	require.NotNil(t, db.Metadata())
	require.NotNil(t, db.Blob())
	assert.Empty(t, db.DataDir())
	require.NoError(t, db.Close())
}

func TestNewOnDisk(t *testing.T) {
	dir := t.TempDir()
	db, err := New(&Config{DataDir: dir})
	require.NoError(t, err)
	assert.Equal(t, dir, db.DataDir())
	require.NoError(t, db.Close())
}

func TestStoreError(t *testing.T) {
	require.NoError(t, StoreError("read", nil))
	cause := errors.New("disk I/O error")
	err := StoreError("read", cause)
	require.ErrorIs(t, err, ErrStore)
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "read")
}
