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

package window

import (
	"fmt"
	"time"
)

// OutsideWindowError is returned by Resolver when a scan falls outside every
// configured window. Nearest holds the upcoming window if there is one later
// in the day, otherwise the most recently closed one.
type OutsideWindowError struct {
	At      TimeOfDay
	Nearest *Span
	// Upcoming is true when Nearest opens later today
	Upcoming bool
}

func (e *OutsideWindowError) Error() string {
	if e.Nearest == nil {
		return "outside admission hours: no windows configured"
	}
	if e.Upcoming {
		return fmt.Sprintf(
			"outside admission hours: %s opens at %s",
			e.Nearest.Type.Label(),
			e.Nearest.Start.Kitchen(),
		)
	}
	return fmt.Sprintf(
		"outside admission hours: %s closed at %s",
		e.Nearest.Type.Label(),
		e.Nearest.End.Kitchen(),
	)
}

// Resolver applies a single timezone policy to admission decisions. Every
// wall clock is converted to Location before comparing against the
// configured windows.
type Resolver struct {
	Location *time.Location
}

// NewResolver returns a Resolver for loc, or for the device local zone when
// loc is nil
func NewResolver(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{Location: loc}
}

// Resolve returns the matched window type, or an *OutsideWindowError
func (r *Resolver) Resolve(
	slots Slots,
	duration time.Duration,
	now time.Time,
) (Type, error) {
	tod := TimeOfDayOf(now.In(r.location()))
	if t, ok := Resolve(slots, duration, tod); ok {
		return t, nil
	}
	return 0, outsideWindow(slots.Spans(duration), tod)
}

// Date returns the calendar date of now under the resolver's timezone
func (r *Resolver) Date(now time.Time) string {
	return now.In(r.location()).Format(time.DateOnly)
}

func (r *Resolver) location() *time.Location {
	if r == nil || r.Location == nil {
		return time.Local
	}
	return r.Location
}

func outsideWindow(spans []Span, tod TimeOfDay) *OutsideWindowError {
	ret := &OutsideWindowError{At: tod}
	var next, prev *Span
	for i := range spans {
		span := spans[i]
		if span.Start > tod {
			if next == nil || span.Start < next.Start {
				next = &span
			}
		} else if span.End < tod {
			if prev == nil || span.End > prev.End {
				prev = &span
			}
		}
	}
	switch {
	case next != nil:
		ret.Nearest = next
		ret.Upcoming = true
	case prev != nil:
		ret.Nearest = prev
	}
	return ret
}
