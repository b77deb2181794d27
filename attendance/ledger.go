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

// Package attendance is the ledger of admission marks. It is the only writer
// of the attendance table.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/blinklabs-io/eventlog/database"
	"github.com/blinklabs-io/eventlog/database/models"
	"github.com/blinklabs-io/eventlog/window"
)

// lockStripes bounds the number of per-key mutexes
const lockStripes = 64

var (
	// ErrAlreadyLogged is the expected outcome of a repeated scan, not a fault
	ErrAlreadyLogged = errors.New("attendance already logged")
	ErrInvalidMark   = errors.New("invalid attendance mark")
	ErrNoDatabase    = errors.New("attendance: no database configured")
)

// Mark is one logged window of one subject at one occurrence
type Mark struct {
	At           time.Time   `json:"at"`
	SubjectID    string      `json:"subject_id"`
	OccurrenceID int64       `json:"occurrence_id"`
	Window       window.Type `json:"window"`
}

func (m Mark) validate() error {
	if m.SubjectID == "" {
		return fmt.Errorf("%w: empty subject id", ErrInvalidMark)
	}
	if !m.Window.Valid() {
		return fmt.Errorf("%w: unknown window %d", ErrInvalidMark, int(m.Window))
	}
	return nil
}

// Record is the attendance of one subject at one occurrence
type Record struct {
	Windows      map[window.Type]time.Time
	SubjectID    string
	OccurrenceID int64
}

// LedgerConfig holds the dependencies of a Ledger
type LedgerConfig struct {
	DB           *database.Database
	Outbox       *Outbox
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// OnLogged is called after a mark was committed and queued for push
	OnLogged func(Mark)
}

type Ledger struct {
	db       *database.Database
	outbox   *Outbox
	logger   *slog.Logger
	metrics  *ledgerMetrics
	onLogged func(Mark)
	locks    [lockStripes]sync.Mutex
}

func NewLedger(cfg LedgerConfig) (*Ledger, error) {
	if cfg.DB == nil {
		return nil, ErrNoDatabase
	}
	l := &Ledger{
		db:       cfg.DB,
		outbox:   cfg.Outbox,
		logger:   cfg.Logger,
		onLogged: cfg.OnLogged,
	}
	if l.logger == nil {
		l.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	l.logger = l.logger.With("component", "attendance")
	if cfg.PromRegistry != nil {
		l.metrics = newLedgerMetrics(cfg.PromRegistry)
	}
	return l, nil
}

func (l *Ledger) lock(occurrenceID int64, subjectID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strconv.FormatInt(occurrenceID, 10)))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(subjectID))
	return &l.locks[h.Sum32()%lockStripes]
}

// IsLogged reports whether the window is already marked. A store fault is
// returned as an error and must be treated as "not admitted" by callers.
func (l *Ledger) IsLogged(
	ctx context.Context,
	occurrenceID int64,
	subjectID string,
	t window.Type,
) (bool, error) {
	var logged bool
	meta := l.db.Metadata()
	err := meta.Transaction(ctx, func(txn *gorm.DB) error {
		row, err := meta.GetAttendance(occurrenceID, subjectID, txn)
		if err != nil {
			return err
		}
		logged = row != nil && row.Logged(t)
		return nil
	})
	if err != nil {
		l.metrics.fault()
		return false, database.StoreError("read attendance", err)
	}
	return logged, nil
}

// Log records a mark. The existence check and the write happen in one
// transaction under a per-key lock, so of two concurrent calls for the same
// key exactly one succeeds and the other returns ErrAlreadyLogged.
func (l *Ledger) Log(
	ctx context.Context,
	occurrenceID int64,
	subjectID string,
	t window.Type,
	at time.Time,
) (Mark, error) {
	mark := Mark{
		OccurrenceID: occurrenceID,
		SubjectID:    subjectID,
		Window:       t,
		At:           at.UTC(),
	}
	if err := mark.validate(); err != nil {
		return Mark{}, err
	}
	mu := l.lock(occurrenceID, subjectID)
	mu.Lock()
	defer mu.Unlock()
	meta := l.db.Metadata()
	err := meta.Transaction(ctx, func(txn *gorm.DB) error {
		row, err := meta.GetAttendance(occurrenceID, subjectID, txn)
		if err != nil {
			return err
		}
		if row == nil {
			row = &models.Attendance{
				EventDateID: occurrenceID,
				SubjectID:   subjectID,
			}
		} else if row.Logged(t) {
			return ErrAlreadyLogged
		}
		row.Mark(t, mark.At)
		return meta.SetAttendance(row, txn)
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyLogged) {
			l.metrics.duplicate()
			l.logger.Debug(
				"attendance already logged",
				"occurrence_id", occurrenceID,
				"subject_id", subjectID,
				"window", t.String(),
			)
			return Mark{}, fmt.Errorf(
				"%w: subject %s %s at occurrence %d",
				ErrAlreadyLogged,
				subjectID,
				t.Label(),
				occurrenceID,
			)
		}
		l.metrics.fault()
		return Mark{}, database.StoreError("log attendance", err)
	}
	l.metrics.logged(t)
	l.logger.Info(
		"attendance logged",
		"occurrence_id", occurrenceID,
		"subject_id", subjectID,
		"window", t.String(),
	)
	if l.outbox != nil {
		// The mark is durable locally; a failed enqueue only delays the push
		if err := l.outbox.Enqueue(mark); err != nil {
			l.logger.Error(
				"failed to queue attendance for push",
				"occurrence_id", occurrenceID,
				"subject_id", subjectID,
				"error", err,
			)
		}
	}
	if l.onLogged != nil {
		l.onLogged(mark)
	}
	return mark, nil
}

// Marks returns the attendance recorded for an occurrence ordered by subject
func (l *Ledger) Marks(ctx context.Context, occurrenceID int64) ([]Record, error) {
	var rows []models.Attendance
	meta := l.db.Metadata()
	err := meta.Transaction(ctx, func(txn *gorm.DB) error {
		var err error
		rows, err = meta.GetAttendances(occurrenceID, txn)
		return err
	})
	if err != nil {
		l.metrics.fault()
		return nil, database.StoreError("list attendance", err)
	}
	ret := make([]Record, 0, len(rows))
	for i := range rows {
		rec := Record{
			OccurrenceID: occurrenceID,
			SubjectID:    rows[i].SubjectID,
			Windows:      make(map[window.Type]time.Time, len(window.Types)),
		}
		for _, t := range window.Types {
			if !rows[i].Logged(t) {
				continue
			}
			var at time.Time
			if ts := rows[i].LoggedAt(t); ts != nil {
				at = *ts
			}
			rec.Windows[t] = at
		}
		ret = append(ret, rec)
	}
	return ret, nil
}
