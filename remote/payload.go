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

package remote

import (
	"fmt"
	"time"

	"github.com/blinklabs-io/eventlog/attendance"
	"github.com/blinklabs-io/eventlog/schedule"
	"github.com/blinklabs-io/eventlog/window"
)

// FetchResponse is the envelope of the snapshot endpoint
type FetchResponse struct {
	Message string         `json:"message,omitempty"`
	Events  []EventPayload `json:"events"`
	Success bool           `json:"success"`
}

// EventPayload is an event as the server serializes it. Window starts are
// "HH:MM:SS" strings, duration is in minutes and event_dates/event_date_ids
// are parallel arrays.
type EventPayload struct {
	AmIn          *string  `json:"am_in"`
	AmOut         *string  `json:"am_out"`
	PmIn          *string  `json:"pm_in"`
	PmOut         *string  `json:"pm_out"`
	Name          string   `json:"event_name"`
	Venue         string   `json:"venue"`
	Description   string   `json:"description"`
	Status        string   `json:"status"`
	ScanPersonnel string   `json:"scan_personnel"`
	CreatedBy     string   `json:"created_by"`
	ApprovedBy    string   `json:"approved_by"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
	EventDates    []string `json:"event_dates"`
	EventDateIDs  []int64  `json:"event_date_ids"`
	GroupIDs      []int64  `json:"group_ids,omitempty"`
	ID            int64    `json:"event_id"`
	Duration      int      `json:"duration"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.DateTime,
	time.DateOnly,
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Event converts the payload. Audit timestamps that do not parse are left
// zero; an unknown status or a malformed window start is an error.
func (p EventPayload) Event() (schedule.Event, error) {
	status, err := schedule.ParseStatus(p.Status)
	if err != nil {
		return schedule.Event{}, fmt.Errorf("event %d: %w", p.ID, err)
	}
	slots, err := window.ParseSlots(
		deref(p.AmIn),
		deref(p.AmOut),
		deref(p.PmIn),
		deref(p.PmOut),
	)
	if err != nil {
		return schedule.Event{}, fmt.Errorf("event %d: %w", p.ID, err)
	}
	if p.Duration < 0 {
		return schedule.Event{}, fmt.Errorf("event %d: negative duration", p.ID)
	}
	return schedule.Event{
		ID:            p.ID,
		Name:          p.Name,
		Venue:         p.Venue,
		Description:   p.Description,
		Status:        status,
		Windows:       slots,
		Duration:      time.Duration(p.Duration) * time.Minute,
		ScanPersonnel: p.ScanPersonnel,
		CreatedBy:     p.CreatedBy,
		ApprovedBy:    p.ApprovedBy,
		CreatedAt:     parseTimestamp(p.CreatedAt),
		UpdatedAt:     parseTimestamp(p.UpdatedAt),
		Dates:         p.EventDates,
		OccurrenceIDs: p.EventDateIDs,
	}, nil
}

// NewEventPayload is the inverse of EventPayload.Event
func NewEventPayload(ev schedule.Event) EventPayload {
	ret := EventPayload{
		ID:            ev.ID,
		Name:          ev.Name,
		Venue:         ev.Venue,
		Description:   ev.Description,
		Status:        string(ev.Status),
		Duration:      int(ev.Duration / time.Minute),
		ScanPersonnel: ev.ScanPersonnel,
		CreatedBy:     ev.CreatedBy,
		ApprovedBy:    ev.ApprovedBy,
		EventDates:    ev.Dates,
		EventDateIDs:  ev.OccurrenceIDs,
	}
	if !ev.CreatedAt.IsZero() {
		ret.CreatedAt = ev.CreatedAt.Format(time.RFC3339)
	}
	if !ev.UpdatedAt.IsZero() {
		ret.UpdatedAt = ev.UpdatedAt.Format(time.RFC3339)
	}
	ret.AmIn = startString(ev.Windows.AMIn)
	ret.AmOut = startString(ev.Windows.AMOut)
	ret.PmIn = startString(ev.Windows.PMIn)
	ret.PmOut = startString(ev.Windows.PMOut)
	return ret
}

func startString(t *window.TimeOfDay) *string {
	if t == nil {
		return nil
	}
	s := t.String()
	return &s
}

// MarkPayload is the body of an attendance push
type MarkPayload struct {
	ScannedAt   time.Time   `json:"scanned_at"`
	SubjectID   string      `json:"subject_id"`
	EventDateID int64       `json:"event_date_id"`
	Window      window.Type `json:"window"`
}

func NewMarkPayload(m attendance.Mark) MarkPayload {
	return MarkPayload{
		EventDateID: m.OccurrenceID,
		SubjectID:   m.SubjectID,
		Window:      m.Window,
		ScannedAt:   m.At,
	}
}
