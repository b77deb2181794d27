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

package models

import (
	"errors"
	"time"

	"github.com/blinklabs-io/eventlog/database/types"
	"github.com/blinklabs-io/eventlog/schedule"
	"github.com/blinklabs-io/eventlog/window"
)

var (
	ErrEventNotFound     = errors.New("event not found")
	ErrEventDateNotFound = errors.New("event date not found")
)

// Event is a cached approved event. The ID is assigned by the server.
type Event struct {
	CreatedAt     time.Time        `gorm:"autoCreateTime:false"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime:false"`
	CachedAt      time.Time
	AmIn          *types.TimeOfDay `gorm:"column:am_in;size:8"`
	AmOut         *types.TimeOfDay `gorm:"column:am_out;size:8"`
	PmIn          *types.TimeOfDay `gorm:"column:pm_in;size:8"`
	PmOut         *types.TimeOfDay `gorm:"column:pm_out;size:8"`
	Name          string           `gorm:"not null"`
	Venue         string
	Description   string
	Status        string `gorm:"size:16;index"`
	ScanPersonnel string
	CreatedBy     string
	ApprovedBy    string
	ID            int64 `gorm:"primaryKey;autoIncrement:false"`
	// Duration of each admission window in minutes
	Duration int
}

func (Event) TableName() string {
	return "event"
}

// NewEvent copies the scalar fields of ev. Occurrences are stored separately.
func NewEvent(ev schedule.Event) Event {
	return Event{
		ID:            ev.ID,
		Name:          ev.Name,
		Venue:         ev.Venue,
		Description:   ev.Description,
		Status:        string(ev.Status),
		AmIn:          types.NewTimeOfDay(ev.Windows.AMIn),
		AmOut:         types.NewTimeOfDay(ev.Windows.AMOut),
		PmIn:          types.NewTimeOfDay(ev.Windows.PMIn),
		PmOut:         types.NewTimeOfDay(ev.Windows.PMOut),
		Duration:      int(ev.Duration / time.Minute),
		ScanPersonnel: ev.ScanPersonnel,
		CreatedBy:     ev.CreatedBy,
		ApprovedBy:    ev.ApprovedBy,
		CreatedAt:     ev.CreatedAt,
		UpdatedAt:     ev.UpdatedAt,
	}
}

// Schedule converts the row and its ordered dates back to a schedule.Event
func (e *Event) Schedule(dates []EventDate) schedule.Event {
	ret := schedule.Event{
		ID:          e.ID,
		Name:        e.Name,
		Venue:       e.Venue,
		Description: e.Description,
		Status:      schedule.Status(e.Status),
		Windows: window.Slots{
			AMIn:  e.AmIn.Ptr(),
			AMOut: e.AmOut.Ptr(),
			PMIn:  e.PmIn.Ptr(),
			PMOut: e.PmOut.Ptr(),
		},
		Duration:      time.Duration(e.Duration) * time.Minute,
		ScanPersonnel: e.ScanPersonnel,
		CreatedBy:     e.CreatedBy,
		ApprovedBy:    e.ApprovedBy,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
		Dates:         make([]string, 0, len(dates)),
		OccurrenceIDs: make([]int64, 0, len(dates)),
	}
	for _, d := range dates {
		ret.Dates = append(ret.Dates, d.Date)
		ret.OccurrenceIDs = append(ret.OccurrenceIDs, d.ID)
	}
	return ret
}

// EventDate is one occurrence of an event. Position preserves the order the
// server delivered the dates in.
type EventDate struct {
	Date     string `gorm:"size:10;index"`
	ID       int64  `gorm:"primaryKey;autoIncrement:false"`
	EventID  int64  `gorm:"index"`
	Position int
}

func (EventDate) TableName() string {
	return "event_date"
}

// SyncState carries small key/value bookkeeping such as the last sync time
type SyncState struct {
	Key   string `gorm:"primarykey;size:255"`
	Value string
}

func (SyncState) TableName() string {
	return "sync_state"
}
