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

package report

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/blinklabs-io/eventlog/schedule"
)

const calendarProductID = "-//Blink Labs Software//eventlog//EN"

// WriteCalendar writes one VEVENT per configured window of every occurrence
// of events. Window times are interpreted in loc, or the local zone when loc
// is nil.
func WriteCalendar(w io.Writer, events []schedule.Event, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(calendarProductID)
	for _, ev := range events {
		occs, err := ev.Occurrences()
		if err != nil {
			return err
		}
		for _, occ := range occs {
			day, err := time.ParseInLocation(time.DateOnly, occ.Date, loc)
			if err != nil {
				return fmt.Errorf("occurrence %d: %w", occ.ID, err)
			}
			for _, span := range ev.Windows.Spans(ev.Duration) {
				uid := fmt.Sprintf(
					"%d-%s@eventlog",
					occ.ID,
					span.Type.Column(),
				)
				vevent := cal.AddEvent(uid)
				vevent.SetSummary(fmt.Sprintf("%s (%s)", ev.Name, span.Type.Label()))
				if ev.Venue != "" {
					vevent.SetLocation(ev.Venue)
				}
				if ev.Description != "" {
					vevent.SetDescription(ev.Description)
				}
				vevent.SetStartAt(day.Add(time.Duration(span.Start) * time.Second))
				vevent.SetEndAt(day.Add(time.Duration(span.End) * time.Second))
				if !ev.UpdatedAt.IsZero() {
					vevent.SetModifiedAt(ev.UpdatedAt)
					vevent.SetDtStampTime(ev.UpdatedAt)
				}
			}
		}
	}
	return cal.SerializeTo(w)
}
