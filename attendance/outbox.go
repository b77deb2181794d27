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

package attendance

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/blinklabs-io/eventlog/database/badger"
	"github.com/blinklabs-io/eventlog/database/types"
)

// Outbox queues logged marks until the server acknowledged them
type Outbox struct {
	blob   *badger.BlobStoreBadger
	logger *slog.Logger
	now    func() time.Time
}

type OutboxOptionFunc func(*Outbox)

// WithOutboxLogger sets the logger used to report dead-lettered entries
func WithOutboxLogger(logger *slog.Logger) OutboxOptionFunc {
	return func(o *Outbox) {
		if logger != nil {
			o.logger = logger.With("component", "attendance")
		}
	}
}

// OutboxEntry is a queued mark and the key it is stored under
type OutboxEntry struct {
	Key  []byte
	Mark Mark
}

func NewOutbox(blob *badger.BlobStoreBadger, opts ...OutboxOptionFunc) *Outbox {
	o := &Outbox{
		blob:   blob,
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Enqueue stores m. Entries are delivered in enqueue order.
func (o *Outbox) Enqueue(m Mark) error {
	val, err := json.Marshal(m)
	if err != nil {
		return err
	}
	id := uuid.New()
	key := types.OutboxKey(o.now().UnixNano(), id[:])
	if err := o.blob.Set(key, val); err != nil {
		return fmt.Errorf("enqueue mark: %w", err)
	}
	return nil
}

// Pending returns up to limit queued entries, oldest first. A limit of 0
// returns all of them. Entries that cannot be decoded are moved to the
// dead-letter prefix so they never block the entries queued behind them.
func (o *Outbox) Pending(limit int) ([]OutboxEntry, error) {
	for {
		var ret []OutboxEntry
		var bad []deadEntry
		err := o.blob.Iterate(
			[]byte(types.OutboxKeyPrefix),
			limit,
			func(key, val []byte) error {
				var m Mark
				if err := json.Unmarshal(val, &m); err != nil {
					bad = append(bad, deadEntry{key: key, val: val, err: err})
					return nil
				}
				ret = append(ret, OutboxEntry{Key: key, Mark: m})
				return nil
			},
		)
		if err != nil {
			return nil, err
		}
		for _, d := range bad {
			if err := o.deadLetter(d); err != nil {
				return nil, err
			}
		}
		// A batch of only bad entries would look like an empty outbox
		if len(ret) > 0 || len(bad) == 0 {
			return ret, nil
		}
	}
}

type deadEntry struct {
	err error
	key []byte
	val []byte
}

func (o *Outbox) deadLetter(d deadEntry) error {
	if err := o.blob.Set(types.DeadLetterKey(d.key), d.val); err != nil {
		return fmt.Errorf("dead-letter outbox entry: %w", err)
	}
	if err := o.blob.Delete(d.key); err != nil {
		return fmt.Errorf("dead-letter outbox entry: %w", err)
	}
	o.logger.Error(
		"moved undecodable outbox entry to dead letters",
		"key", fmt.Sprintf("%x", d.key),
		"error", d.err,
	)
	return nil
}

// DeadLetters returns the number of entries moved aside as undecodable
func (o *Outbox) DeadLetters() (int, error) {
	return o.blob.Count([]byte(types.DeadLetterKeyPrefix))
}

// Ack removes delivered entries
func (o *Outbox) Ack(entries ...OutboxEntry) error {
	keys := make([][]byte, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return o.blob.Delete(keys...)
}

// Len returns the number of queued entries
func (o *Outbox) Len() (int, error) {
	return o.blob.Count([]byte(types.OutboxKeyPrefix))
}
