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

package event

import (
	"time"

	"github.com/blinklabs-io/eventlog/window"
)

const (
	CacheUpdatedEventType      EventType = "cache.updated"
	CacheEventRemovedEventType EventType = "cache.event.removed"
	CacheClearedEventType      EventType = "cache.cleared"
	SyncCompletedEventType     EventType = "eventsync.completed"
	SyncFailedEventType        EventType = "eventsync.failed"
	RealtimeStateEventType     EventType = "realtime.state"
	AdmittedEventType          EventType = "admission.admitted"
	AttendancePushedEventType  EventType = "attendance.pushed"
)

// CacheUpdatedEvent is published after an approved event was written to the cache
type CacheUpdatedEvent struct {
	EventID int64
	// OccurrencesKept is set when the server sent mismatched dates and ids
	// and the previously cached occurrences were retained
	OccurrencesKept bool
}

// CacheEventRemovedEvent is published for every event removed from the cache
type CacheEventRemovedEvent struct {
	Reason  string
	EventID int64
}

// SyncCompletedEvent is published after a successful reconciliation
type SyncCompletedEvent struct {
	Source   string
	Events   int
	Removed  int
	Duration time.Duration
}

// SyncFailedEvent is published when the remote fetch failed and the stale
// cache was kept
type SyncFailedEvent struct {
	Error  error
	Source string
}

// RealtimeStateEvent is published on every real-time channel state change
type RealtimeStateEvent struct {
	State   string
	Attempt int
}

// AdmittedEvent is published for every accepted scan
type AdmittedEvent struct {
	At           time.Time
	SubjectID    string
	EventName    string
	EventID      int64
	OccurrenceID int64
	Window       window.Type
}

// AttendancePushedEvent is published after the outbox delivered marks
type AttendancePushedEvent struct {
	Pushed    int
	Remaining int
}
