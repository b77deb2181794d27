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
	"time"

	"github.com/blinklabs-io/eventlog/window"
)

// Attendance holds the four window bits of one subject at one occurrence.
// It has no foreign key to event_date so purging the event cache leaves
// attendance intact.
type Attendance struct {
	CreatedAt   time.Time
	UpdatedAt   time.Time
	AmInAt      *time.Time
	AmOutAt     *time.Time
	PmInAt      *time.Time
	PmOutAt     *time.Time
	SubjectID   string `gorm:"size:255;not null;uniqueIndex:idx_attendance_key,priority:2"`
	ID          uint   `gorm:"primarykey"`
	EventDateID int64  `gorm:"not null;uniqueIndex:idx_attendance_key,priority:1"`
	AmIn        bool   `gorm:"column:am_in;default:false"`
	AmOut       bool   `gorm:"column:am_out;default:false"`
	PmIn        bool   `gorm:"column:pm_in;default:false"`
	PmOut       bool   `gorm:"column:pm_out;default:false"`
}

func (Attendance) TableName() string {
	return "attendance"
}

// Logged reports whether the bit for t is set
func (a *Attendance) Logged(t window.Type) bool {
	switch t {
	case window.AMIn:
		return a.AmIn
	case window.AMOut:
		return a.AmOut
	case window.PMIn:
		return a.PmIn
	case window.PMOut:
		return a.PmOut
	}
	return false
}

// LoggedAt returns the scan time recorded for t
func (a *Attendance) LoggedAt(t window.Type) *time.Time {
	switch t {
	case window.AMIn:
		return a.AmInAt
	case window.AMOut:
		return a.AmOutAt
	case window.PMIn:
		return a.PmInAt
	case window.PMOut:
		return a.PmOutAt
	}
	return nil
}

// Mark sets the bit for t. Bits are never cleared.
func (a *Attendance) Mark(t window.Type, at time.Time) {
	at = at.UTC()
	switch t {
	case window.AMIn:
		a.AmIn, a.AmInAt = true, &at
	case window.AMOut:
		a.AmOut, a.AmOutAt = true, &at
	case window.PMIn:
		a.PmIn, a.PmInAt = true, &at
	case window.PMOut:
		a.PmOut, a.PmOutAt = true, &at
	}
}
