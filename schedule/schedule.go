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

// Package schedule contains the event and occurrence types shared by the
// cache, sync and admission components.
package schedule

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/blinklabs-io/eventlog/window"
)

// Status is the server-side lifecycle status of an event
type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// ParseStatus is case insensitive and rejects unknown values
func ParseStatus(s string) (Status, error) {
	for _, st := range []Status{StatusPending, StatusApproved, StatusRejected} {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown event status: %q", s)
}

// Event is a scheduled event together with its dated occurrences. Dates and
// OccurrenceIDs are parallel slices as delivered by the server.
type Event struct {
	ID            int64
	Name          string
	Venue         string
	Description   string
	Status        Status
	Windows       window.Slots
	Duration      time.Duration
	ScanPersonnel string
	CreatedBy     string
	ApprovedBy    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Dates         []string
	OccurrenceIDs []int64
}

// Occurrence is one dated instance of an event
type Occurrence struct {
	ID      int64
	EventID int64
	Date    string
}

var ErrOccurrenceMismatch = errors.New(
	"occurrence dates and ids differ in length",
)

// Occurrences pairs Dates with OccurrenceIDs. It fails with
// ErrOccurrenceMismatch when the slices differ in length.
func (e Event) Occurrences() ([]Occurrence, error) {
	if len(e.Dates) != len(e.OccurrenceIDs) {
		return nil, fmt.Errorf(
			"%w: event %d has %d dates and %d ids",
			ErrOccurrenceMismatch,
			e.ID,
			len(e.Dates),
			len(e.OccurrenceIDs),
		)
	}
	ret := make([]Occurrence, len(e.Dates))
	for i := range e.Dates {
		ret[i] = Occurrence{
			ID:      e.OccurrenceIDs[i],
			EventID: e.ID,
			Date:    e.Dates[i],
		}
	}
	return ret, nil
}

// Occurrence returns the occurrence with the given id
func (e Event) Occurrence(id int64) (Occurrence, bool) {
	idx := slices.Index(e.OccurrenceIDs, id)
	if idx < 0 || idx >= len(e.Dates) {
		return Occurrence{}, false
	}
	return Occurrence{ID: id, EventID: e.ID, Date: e.Dates[idx]}, true
}

// Approved is shorthand for e.Status == StatusApproved
func (e Event) Approved() bool {
	return e.Status == StatusApproved
}

// IDs returns the ids of events in order
func IDs(events []Event) []int64 {
	ret := make([]int64, len(events))
	for i, e := range events {
		ret[i] = e.ID
	}
	return ret
}
