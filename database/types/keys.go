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
	"encoding/binary"
	"slices"
)

const (
	OutboxKeyPrefix = "ob"
	// Outbox entries that could not be decoded are moved here
	DeadLetterKeyPrefix = "dl"
)

func uint64ToBytes(input uint64) []byte {
	ret := make([]byte, 8)
	binary.BigEndian.PutUint64(ret, input)
	return ret
}

// OutboxKey orders outbox entries by enqueue time. The id suffix keeps keys
// unique for entries enqueued in the same nanosecond.
func OutboxKey(enqueuedUnixNano int64, id []byte) []byte {
	key := []byte(OutboxKeyPrefix)
	//nolint:gosec // enqueue times are always after the epoch
	key = append(key, uint64ToBytes(uint64(enqueuedUnixNano))...)
	return slices.Concat(key, id)
}

// DeadLetterKey returns the dead-letter key for an outbox key
func DeadLetterKey(outboxKey []byte) []byte {
	return slices.Concat(
		[]byte(DeadLetterKeyPrefix),
		outboxKey[min(len(OutboxKeyPrefix), len(outboxKey)):],
	)
}
