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

package types

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/blinklabs-io/eventlog/window"
)

// TimeOfDay stores a window start as an HH:MM:SS string column
//
//nolint:recvcheck
type TimeOfDay struct {
	window.TimeOfDay
}

func NewTimeOfDay(t *window.TimeOfDay) *TimeOfDay {
	if t == nil {
		return nil
	}
	return &TimeOfDay{TimeOfDay: *t}
}

// Ptr returns the wrapped value, or nil for a nil receiver
func (t *TimeOfDay) Ptr() *window.TimeOfDay {
	if t == nil {
		return nil
	}
	ret := t.TimeOfDay
	return &ret
}

func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String(), nil
}

func (t *TimeOfDay) Scan(val any) error {
	var s string
	switch v := val.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf(
			"value was not expected type, wanted string, got %T",
			val,
		)
	}
	tmp, err := window.ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	t.TimeOfDay = tmp
	return nil
}

// ErrBlobKeyNotFound is returned by blob operations when a key is missing
var ErrBlobKeyNotFound = errors.New("blob key not found")

// ErrNilTxn is returned when a nil transaction is provided where a valid transaction is required
var ErrNilTxn = errors.New("nil transaction")

// ErrBlobStoreUnavailable is returned when blob store cannot be accessed
var ErrBlobStoreUnavailable = errors.New("blob store unavailable")

// ErrMetadataStoreUnavailable is returned when the metadata store is closed or missing
var ErrMetadataStoreUnavailable = errors.New("metadata store unavailable")
