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

// Package cache is the local persisted mirror of the approved events relevant
// to this device, together with their dated occurrences.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/blinklabs-io/eventlog/database"
	"github.com/blinklabs-io/eventlog/database/models"
	"github.com/blinklabs-io/eventlog/event"
	"github.com/blinklabs-io/eventlog/schedule"
)

var (
	ErrNotFound   = errors.New("occurrence not found in event cache")
	ErrNoDatabase = errors.New("cache: no database configured")
)

const (
	RemoveReasonStale   = "stale"
	RemoveReasonStatus  = "status"
	RemoveReasonCleared = "cleared"
)

// Config holds the dependencies of a Store
type Config struct {
	DB           *database.Database
	EventBus     *event.EventBus
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
}

// Store owns the event and event_date tables. Mutations are serialized so a
// purge that precedes an upsert in program order is visible to it.
type Store struct {
	db       *database.Database
	eventBus *event.EventBus
	logger   *slog.Logger
	metrics  *cacheMetrics
	mu       sync.Mutex
}

// UpsertResult describes what UpsertApproved did
type UpsertResult struct {
	// Fault carries a data-integrity problem that did not abort the upsert
	Fault error
	// Skipped is set for events that are not Approved
	Skipped bool
	// Cleared is set when the authoritative id set was empty
	Cleared bool
	// OccurrencesKept is set when the previous occurrences were retained
	OccurrencesKept bool
}

func New(cfg Config) (*Store, error) {
	if cfg.DB == nil {
		return nil, ErrNoDatabase
	}
	s := &Store{
		db:       cfg.DB,
		eventBus: cfg.EventBus,
		logger:   cfg.Logger,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s.logger = s.logger.With("component", "cache")
	if cfg.PromRegistry != nil {
		s.metrics = newCacheMetrics(cfg.PromRegistry)
	}
	return s, nil
}

// UpsertApproved inserts or fully replaces ev. Events that are not Approved
// are ignored. An empty authoritative id set purges the whole cache instead.
// Occurrences are replaced only when the event carries the same non-zero
// number of dates and ids; otherwise the event row still updates, the old
// occurrences stay and the mismatch is reported in the result.
func (s *Store) UpsertApproved(
	ctx context.Context,
	ev schedule.Event,
	authoritativeIDs []int64,
) (UpsertResult, error) {
	if !ev.Approved() {
		s.logger.Debug(
			"ignoring event that is not approved",
			"event_id", ev.ID,
			"status", ev.Status,
		)
		return UpsertResult{Skipped: true}, nil
	}
	if len(authoritativeIDs) == 0 {
		if err := s.Clear(ctx); err != nil {
			return UpsertResult{}, err
		}
		return UpsertResult{Cleared: true}, nil
	}
	var ret UpsertResult
	occs, err := ev.Occurrences()
	if err != nil || len(occs) == 0 {
		if err == nil {
			err = fmt.Errorf(
				"%w: event %d has no occurrences",
				schedule.ErrOccurrenceMismatch,
				ev.ID,
			)
		}
		ret.Fault = err
		ret.OccurrencesKept = true
	}
	row := models.NewEvent(ev)
	row.CachedAt = time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	meta := s.db.Metadata()
	err = meta.Transaction(ctx, func(txn *gorm.DB) error {
		if err := meta.SetEvent(&row, txn); err != nil {
			return err
		}
		if ret.OccurrencesKept {
			return nil
		}
		dates := make([]models.EventDate, len(occs))
		for i, occ := range occs {
			dates[i] = models.EventDate{ID: occ.ID, Date: occ.Date}
		}
		return meta.SetEventDates(ev.ID, dates, txn)
	})
	if err != nil {
		s.metrics.fault()
		return UpsertResult{}, database.StoreError("upsert event", err)
	}
	if ret.Fault != nil {
		s.metrics.integrityFault()
		s.logger.Error(
			"event occurrences are inconsistent, keeping cached occurrences",
			"event_id", ev.ID,
			"dates", len(ev.Dates),
			"occurrence_ids", len(ev.OccurrenceIDs),
		)
	}
	s.metrics.upsert()
	s.publish(event.CacheUpdatedEventType, event.CacheUpdatedEvent{
		EventID:         ev.ID,
		OccurrencesKept: ret.OccurrencesKept,
	})
	return ret, nil
}

// PurgeStale deletes every cached event, and its occurrences, whose id is not
// in authoritativeIDs. It returns the removed ids.
func (s *Store) PurgeStale(
	ctx context.Context,
	authoritativeIDs []int64,
) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []int64
	meta := s.db.Metadata()
	err := meta.Transaction(ctx, func(txn *gorm.DB) error {
		var err error
		removed, err = meta.DeleteEventsNotIn(authoritativeIDs, txn)
		return err
	})
	if err != nil {
		s.metrics.fault()
		return nil, database.StoreError("purge stale events", err)
	}
	for _, id := range removed {
		s.logger.Debug("purged stale event", "event_id", id)
		s.publish(event.CacheEventRemovedEventType, event.CacheEventRemovedEvent{
			EventID: id,
			Reason:  RemoveReasonStale,
		})
	}
	s.metrics.removed(len(removed))
	return removed, nil
}

// Remove deletes a single event and its occurrences. It reports whether the
// event was cached.
func (s *Store) Remove(ctx context.Context, eventID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var existed bool
	meta := s.db.Metadata()
	err := meta.Transaction(ctx, func(txn *gorm.DB) error {
		var err error
		existed, err = meta.DeleteEvent(eventID, txn)
		return err
	})
	if err != nil {
		s.metrics.fault()
		return false, database.StoreError("remove event", err)
	}
	if existed {
		s.metrics.removed(1)
		s.publish(event.CacheEventRemovedEventType, event.CacheEventRemovedEvent{
			EventID: eventID,
			Reason:  RemoveReasonStatus,
		})
	}
	return existed, nil
}

// Clear wipes every event and occurrence. Attendance is not touched.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta := s.db.Metadata()
	err := meta.Transaction(ctx, func(txn *gorm.DB) error {
		return meta.DeleteAllEvents(txn)
	})
	if err != nil {
		s.metrics.fault()
		return database.StoreError("clear cache", err)
	}
	s.logger.Info("event cache cleared")
	s.metrics.cleared()
	s.publish(event.CacheClearedEventType, nil)
	return nil
}

// ReadApproved returns the whole cache ordered by event id, each event with
// its occurrences in insertion order
func (s *Store) ReadApproved(ctx context.Context) ([]schedule.Event, error) {
	var ret []schedule.Event
	meta := s.db.Metadata()
	err := meta.Transaction(ctx, func(txn *gorm.DB) error {
		rows, err := meta.GetEventsByStatus(string(schedule.StatusApproved), txn)
		if err != nil {
			return err
		}
		ids := make([]int64, len(rows))
		for i, row := range rows {
			ids[i] = row.ID
		}
		dates, err := meta.GetEventDates(ids, txn)
		if err != nil {
			return err
		}
		ret = make([]schedule.Event, 0, len(rows))
		for i := range rows {
			ret = append(ret, rows[i].Schedule(dates[rows[i].ID]))
		}
		return nil
	})
	if err != nil {
		s.metrics.fault()
		return nil, database.StoreError("read cache", err)
	}
	s.metrics.size(len(ret))
	return ret, nil
}

// FindOccurrence returns an occurrence and its parent event
func (s *Store) FindOccurrence(
	ctx context.Context,
	occurrenceID int64,
) (schedule.Event, schedule.Occurrence, error) {
	var ev schedule.Event
	found := false
	meta := s.db.Metadata()
	err := meta.Transaction(ctx, func(txn *gorm.DB) error {
		ed, err := meta.GetEventDate(occurrenceID, txn)
		if err != nil {
			if errors.Is(err, models.ErrEventDateNotFound) {
				return nil
			}
			return err
		}
		row, err := meta.GetEvent(ed.EventID, txn)
		if err != nil {
			if errors.Is(err, models.ErrEventNotFound) {
				return nil
			}
			return err
		}
		dates, err := meta.GetEventDates([]int64{row.ID}, txn)
		if err != nil {
			return err
		}
		ev = row.Schedule(dates[row.ID])
		found = true
		return nil
	})
	if err != nil {
		s.metrics.fault()
		return schedule.Event{}, schedule.Occurrence{}, database.StoreError("find occurrence", err)
	}
	if !found || !ev.Approved() {
		return schedule.Event{}, schedule.Occurrence{}, fmt.Errorf(
			"%w: %d",
			ErrNotFound,
			occurrenceID,
		)
	}
	occ, _ := ev.Occurrence(occurrenceID)
	return ev, occ, nil
}

func (s *Store) publish(evtType event.EventType, data any) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.Publish(event.NewEvent(evtType, data))
}
