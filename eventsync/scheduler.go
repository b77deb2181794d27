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

// Package eventsync reconciles the event cache against the server snapshot.
// Triggers from several sources are coalesced: a run is refused while
// another is in flight or when the previous run started less than the
// source's quiet interval ago.
package eventsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/blinklabs-io/eventlog/cache"
	"github.com/blinklabs-io/eventlog/event"
	"github.com/blinklabs-io/eventlog/schedule"
)

// Source identifies what asked for a reconciliation
type Source int

const (
	SourceFocus Source = iota
	SourceInvalidation
	SourceManual
	SourceStartup
	SourcePeriodic
)

func (s Source) String() string {
	switch s {
	case SourceFocus:
		return "focus"
	case SourceInvalidation:
		return "invalidation"
	case SourceManual:
		return "manual"
	case SourceStartup:
		return "startup"
	case SourcePeriodic:
		return "periodic"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

// Default quiet intervals per source
const (
	DefaultFocusQuiet        = 5 * time.Second
	DefaultInvalidationQuiet = 2 * time.Second
	DefaultManualQuiet       = 2 * time.Second
	DefaultStartupQuiet      = 0
	DefaultPeriodicQuiet     = 5 * time.Second
)

// ErrFetch wraps a failed remote fetch. The cache is left untouched.
var ErrFetch = errors.New("sync fetch failed")

// Fetcher returns the authoritative snapshot for a group
type Fetcher interface {
	FetchEvents(ctx context.Context, groupID int64) ([]schedule.Event, error)
}

// Store is the part of the event cache the scheduler drives
type Store interface {
	PurgeStale(ctx context.Context, ids []int64) ([]int64, error)
	UpsertApproved(ctx context.Context, ev schedule.Event, ids []int64) (cache.UpsertResult, error)
	ReadApproved(ctx context.Context) ([]schedule.Event, error)
}

// QuietIntervals holds the minimum spacing between run starts per source.
// Zero values are replaced by the defaults; use a negative value for "no
// quiet interval".
type QuietIntervals struct {
	Focus        time.Duration
	Invalidation time.Duration
	Manual       time.Duration
	Startup      time.Duration
	Periodic     time.Duration
}

func (q QuietIntervals) get(src Source) time.Duration {
	var d, def time.Duration
	switch src {
	case SourceFocus:
		d, def = q.Focus, DefaultFocusQuiet
	case SourceInvalidation:
		d, def = q.Invalidation, DefaultInvalidationQuiet
	case SourceManual:
		d, def = q.Manual, DefaultManualQuiet
	case SourceStartup:
		d, def = q.Startup, DefaultStartupQuiet
	case SourcePeriodic:
		d, def = q.Periodic, DefaultPeriodicQuiet
	}
	if d == 0 {
		return def
	}
	if d < 0 {
		return 0
	}
	return d
}

// Config holds the dependencies of a Scheduler
type Config struct {
	Remote       Fetcher
	Cache        Store
	EventBus     *event.EventBus
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// Now is the clock used for quiet intervals
	Now     func() time.Time
	Quiet   QuietIntervals
	GroupID int64
}

// Result is the outcome of a trigger
type Result struct {
	// Events is the readable set after the run. Skipped and failed runs
	// read it back from the store, so removals made outside of a run are
	// never served.
	Events []schedule.Event
	// Removed lists events purged by this run
	Removed []int64
	// Faults collects store faults of individual events that did not stop
	// the run
	Faults  []error
	Skipped bool
	Stale   bool
}

type Scheduler struct {
	config   Config
	logger   *slog.Logger
	metrics  *syncMetrics
	lastRun  time.Time
	// events is the last set read from the store, served only when the
	// store cannot be read
	events   []schedule.Event
	mu       sync.Mutex
	inFlight bool
}

func New(cfg Config) *Scheduler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s := &Scheduler{
		config: cfg,
		logger: logger.With("component", "eventsync"),
	}
	if cfg.PromRegistry != nil {
		s.metrics = newSyncMetrics(cfg.PromRegistry)
	}
	return s
}

// SetGroupID changes the group used for subsequent fetches, e.g. after login
func (s *Scheduler) SetGroupID(groupID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.GroupID = groupID
}

// Events returns the readable set
func (s *Scheduler) Events() []schedule.Event {
	return s.current(context.Background())
}

// LastRun returns the start time of the most recent run
func (s *Scheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// Reset forgets the last good cache and the quiet interval, e.g. on logout
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.lastRun = time.Time{}
}

// Trigger runs a reconciliation unless it is coalesced away. A skipped or
// failed run still returns the cached events in the result; a failed fetch
// additionally returns an error wrapping ErrFetch.
func (s *Scheduler) Trigger(ctx context.Context, src Source) (Result, error) {
	s.mu.Lock()
	now := s.config.Now()
	if s.inFlight {
		s.mu.Unlock()
		s.skipped(src, "in_flight")
		return Result{Events: s.current(ctx), Skipped: true}, nil
	}
	if !s.lastRun.IsZero() && now.Sub(s.lastRun) < s.config.Quiet.get(src) {
		s.mu.Unlock()
		s.skipped(src, "quiet")
		return Result{Events: s.current(ctx), Skipped: true}, nil
	}
	s.inFlight = true
	s.lastRun = now
	groupID := s.config.GroupID
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()
	return s.run(ctx, src, groupID)
}

func (s *Scheduler) skipped(src Source, reason string) {
	s.logger.Debug(
		"sync trigger coalesced",
		"source", src.String(),
		"reason", reason,
	)
	s.metrics.skip(src, reason)
}

func (s *Scheduler) run(ctx context.Context, src Source, groupID int64) (Result, error) {
	start := time.Now()
	snapshot, err := s.config.Remote.FetchEvents(ctx, groupID)
	if err != nil {
		fetchErr := fmt.Errorf("%w: %w", ErrFetch, err)
		s.logger.Warn(
			"event snapshot fetch failed, serving cached events",
			"source", src.String(),
			"error", err,
		)
		s.metrics.run(src, "fetch_failed", time.Since(start))
		s.publish(event.SyncFailedEventType, event.SyncFailedEvent{
			Source: src.String(),
			Error:  fetchErr,
		})
		return Result{Events: s.current(ctx), Stale: true}, fetchErr
	}

	var ret Result
	ids := make([]int64, 0, len(snapshot))
	for _, ev := range snapshot {
		if ev.Approved() {
			ids = append(ids, ev.ID)
		}
	}
	removed, err := s.config.Cache.PurgeStale(ctx, ids)
	if err != nil {
		ret.Faults = append(ret.Faults, err)
	}
	ret.Removed = removed
	for _, ev := range snapshot {
		res, err := s.config.Cache.UpsertApproved(ctx, ev, ids)
		if err != nil {
			ret.Faults = append(ret.Faults, err)
			continue
		}
		if res.Fault != nil {
			ret.Faults = append(ret.Faults, res.Fault)
		}
	}
	events, err := s.config.Cache.ReadApproved(ctx)
	if err != nil {
		s.logger.Error(
			"failed to read event cache after sync",
			"source", src.String(),
			"error", err,
		)
		s.metrics.run(src, "store_failed", time.Since(start))
		s.mu.Lock()
		ret.Events = slices.Clone(s.events)
		s.mu.Unlock()
		ret.Stale = true
		return ret, err
	}
	s.mu.Lock()
	s.events = events
	s.mu.Unlock()
	ret.Events = slices.Clone(events)

	duration := time.Since(start)
	s.metrics.run(src, "ok", duration)
	s.logger.Info(
		"event cache reconciled",
		"source", src.String(),
		"events", len(events),
		"removed", len(removed),
		"faults", len(ret.Faults),
	)
	s.publish(event.SyncCompletedEventType, event.SyncCompletedEvent{
		Source:   src.String(),
		Events:   len(events),
		Removed:  len(removed),
		Duration: duration,
	})
	return ret, nil
}

// current reads the cached events from the store, which the invalidation
// bus also mutates between runs. The in-memory copy of the last read is
// served only when the store fails.
func (s *Scheduler) current(ctx context.Context) []schedule.Event {
	events, err := s.config.Cache.ReadApproved(ctx)
	if err != nil {
		s.logger.Error("failed to read event cache", "error", err)
		s.mu.Lock()
		defer s.mu.Unlock()
		return slices.Clone(s.events)
	}
	return events
}

func (s *Scheduler) publish(evtType event.EventType, data any) {
	if s.config.EventBus == nil {
		return
	}
	s.config.EventBus.Publish(event.NewEvent(evtType, data))
}
