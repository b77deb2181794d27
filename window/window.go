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

// Package window maps an event's time-of-day admission windows to the
// window type a scan at a given time belongs to.
package window

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Type identifies one of the four admission windows of an event day
type Type int

const (
	AMIn Type = iota
	AMOut
	PMIn
	PMOut
)

// Types lists all window types in resolution priority order
var Types = [...]Type{AMIn, AMOut, PMIn, PMOut}

var ErrUnknownType = errors.New("unknown window type")

func (t Type) String() string {
	switch t {
	case AMIn:
		return "AM_IN"
	case AMOut:
		return "AM_OUT"
	case PMIn:
		return "PM_IN"
	case PMOut:
		return "PM_OUT"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Column returns the storage column name for the window type
func (t Type) Column() string {
	return strings.ToLower(t.String())
}

// Label returns a human readable label, e.g. "AM in"
func (t Type) Label() string {
	switch t {
	case AMIn:
		return "AM in"
	case AMOut:
		return "AM out"
	case PMIn:
		return "PM in"
	case PMOut:
		return "PM out"
	default:
		return t.String()
	}
}

// Valid returns true for the four known window types
func (t Type) Valid() bool {
	return t >= AMIn && t <= PMOut
}

// ParseType accepts either the wire name (AM_IN) or the column name (am_in)
func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if strings.EqualFold(s, t.String()) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, int(t))
	}
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(data []byte) error {
	tmp, err := ParseType(string(data))
	if err != nil {
		return err
	}
	*t = tmp
	return nil
}

// TimeOfDay is a wall clock time expressed as seconds since midnight
type TimeOfDay int

var ErrInvalidTimeOfDay = errors.New("invalid time of day")

const secondsPerDay = 24 * 60 * 60

// ParseTimeOfDay parses HH:MM:SS or HH:MM
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	limits := []int{23, 59, 59}
	var vals [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > limits[i] {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
		}
		vals[i] = v
	}
	return TimeOfDay(vals[0]*3600 + vals[1]*60 + vals[2]), nil
}

// MustParseTimeOfDay is like ParseTimeOfDay but panics on error
func MustParseTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// TimeOfDayOf returns the wall clock time of t in its own location
func TimeOfDayOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(h*3600 + m*60 + s)
}

// Add returns the time of day shifted by d. The result is not wrapped at
// midnight, so a window that starts late in the day can extend past 24:00.
func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	return t + TimeOfDay(d/time.Second)
}

func (t TimeOfDay) String() string {
	v := int(t)
	if v < 0 {
		v = 0
	}
	day := v / secondsPerDay
	v %= secondsPerDay
	s := fmt.Sprintf("%02d:%02d:%02d", v/3600, (v/60)%60, v%60)
	if day > 0 {
		s += fmt.Sprintf("+%dd", day)
	}
	return s
}

// Kitchen formats the time of day like 8:05AM
func (t TimeOfDay) Kitchen() string {
	v := int(t) % secondsPerDay
	return time.Date(0, 1, 1, v/3600, (v/60)%60, v%60, 0, time.UTC).
		Format(time.Kitchen)
}

// Slots holds the optional start time of each admission window
type Slots struct {
	AMIn  *TimeOfDay
	AMOut *TimeOfDay
	PMIn  *TimeOfDay
	PMOut *TimeOfDay
}

// Get returns the start of the given window, or nil when it is not configured
func (s Slots) Get(t Type) *TimeOfDay {
	switch t {
	case AMIn:
		return s.AMIn
	case AMOut:
		return s.AMOut
	case PMIn:
		return s.PMIn
	case PMOut:
		return s.PMOut
	default:
		return nil
	}
}

// Set stores the start of the given window. A nil start clears it.
func (s *Slots) Set(t Type, start *TimeOfDay) {
	switch t {
	case AMIn:
		s.AMIn = start
	case AMOut:
		s.AMOut = start
	case PMIn:
		s.PMIn = start
	case PMOut:
		s.PMOut = start
	}
}

// Empty returns true if no window is configured
func (s Slots) Empty() bool {
	for _, t := range Types {
		if s.Get(t) != nil {
			return false
		}
	}
	return true
}

// ParseSlots builds Slots from the four HH:MM:SS strings, where an empty
// string means the window is absent
func ParseSlots(amIn, amOut, pmIn, pmOut string) (Slots, error) {
	var ret Slots
	for i, raw := range []string{amIn, amOut, pmIn, pmOut} {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		tod, err := ParseTimeOfDay(raw)
		if err != nil {
			return Slots{}, fmt.Errorf("%s: %w", Types[i], err)
		}
		ret.Set(Types[i], &tod)
	}
	return ret, nil
}

// Span is the closed interval of one configured window
type Span struct {
	Type  Type
	Start TimeOfDay
	End   TimeOfDay
}

// Contains reports whether tod lies within the span, both ends inclusive
func (s Span) Contains(tod TimeOfDay) bool {
	return s.Start <= tod && tod <= s.End
}

// Spans returns the configured windows in priority order
func (s Slots) Spans(duration time.Duration) []Span {
	ret := make([]Span, 0, len(Types))
	for _, t := range Types {
		start := s.Get(t)
		if start == nil {
			continue
		}
		ret = append(ret, Span{
			Type:  t,
			Start: *start,
			End:   start.Add(duration),
		})
	}
	return ret
}

// Resolve returns the first window in priority order whose span contains now
func Resolve(
	slots Slots,
	duration time.Duration,
	now TimeOfDay,
) (Type, bool) {
	for _, span := range slots.Spans(duration) {
		if span.Contains(now) {
			return span.Type, true
		}
	}
	return 0, false
}
