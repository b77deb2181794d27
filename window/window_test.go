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

package window_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/eventlog/window"
)

func tod(s string) *window.TimeOfDay {
	t := window.MustParseTimeOfDay(s)
	return &t
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		input   string
		want    window.TimeOfDay
		wantErr bool
	}{
		{input: "08:00:00", want: 8 * 3600},
		{input: "13:30", want: 13*3600 + 30*60},
		{input: "23:59:59", want: 86399},
		{input: "24:00:00", wantErr: true},
		{input: "08:60:00", wantErr: true},
		{input: "8", wantErr: true},
		{input: "aa:bb:cc", wantErr: true},
	}
	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			got, err := window.ParseTimeOfDay(test.input)
			if test.wantErr {
				require.ErrorIs(t, err, window.ErrInvalidTimeOfDay)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.want, got)
			assert.Equal(t, test.want, window.MustParseTimeOfDay(got.String()))
		})
	}
}

func TestResolveInclusiveBounds(t *testing.T) {
	slots := window.Slots{AMIn: tod("08:00:00")}
	duration := 30 * time.Minute

	got, ok := window.Resolve(slots, duration, window.MustParseTimeOfDay("08:15:00"))
	require.True(t, ok)
	assert.Equal(t, window.AMIn, got)

	_, ok = window.Resolve(slots, duration, window.MustParseTimeOfDay("08:00:00"))
	assert.True(t, ok, "start is inclusive")
	_, ok = window.Resolve(slots, duration, window.MustParseTimeOfDay("08:30:00"))
	assert.True(t, ok, "end is inclusive")
	_, ok = window.Resolve(slots, duration, window.MustParseTimeOfDay("08:31:00"))
	assert.False(t, ok)
	_, ok = window.Resolve(slots, duration, window.MustParseTimeOfDay("07:59:59"))
	assert.False(t, ok)
}

func TestResolvePriorityOrder(t *testing.T) {
	// PM window configured to overlap the AM window in clock time
	slots := window.Slots{
		PMIn: tod("08:10:00"),
		AMIn: tod("08:00:00"),
	}
	for range 10 {
		got, ok := window.Resolve(slots, time.Hour, window.MustParseTimeOfDay("08:20:00"))
		require.True(t, ok)
		assert.Equal(t, window.AMIn, got)
	}
	got, ok := window.Resolve(slots, time.Hour, window.MustParseTimeOfDay("09:05:00"))
	require.True(t, ok)
	assert.Equal(t, window.PMIn, got)
}

func TestResolveSkipsAbsentSlots(t *testing.T) {
	var slots window.Slots
	_, ok := window.Resolve(slots, 24*time.Hour, window.MustParseTimeOfDay("12:00:00"))
	assert.False(t, ok, "absent slots are never open")

	slots.PMOut = tod("17:00:00")
	got, ok := window.Resolve(slots, 15*time.Minute, window.MustParseTimeOfDay("17:10:00"))
	require.True(t, ok)
	assert.Equal(t, window.PMOut, got)
}

func TestResolverOutsideWindow(t *testing.T) {
	slots, err := window.ParseSlots("08:00:00", "12:00:00", "13:00:00", "")
	require.NoError(t, err)
	r := window.NewResolver(time.UTC)

	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	_, err = r.Resolve(slots, 30*time.Minute, day.Add(10*time.Hour))
	var outside *window.OutsideWindowError
	require.True(t, errors.As(err, &outside))
	require.NotNil(t, outside.Nearest)
	assert.True(t, outside.Upcoming)
	assert.Equal(t, window.AMOut, outside.Nearest.Type)
	assert.Contains(t, outside.Error(), "opens at 12:00PM")

	_, err = r.Resolve(slots, 30*time.Minute, day.Add(20*time.Hour))
	require.True(t, errors.As(err, &outside))
	assert.False(t, outside.Upcoming)
	assert.Equal(t, window.PMIn, outside.Nearest.Type)

	got, err := r.Resolve(slots, 30*time.Minute, day.Add(13*time.Hour+5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, window.PMIn, got)
}

func TestResolverTimezone(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	r := window.NewResolver(loc)
	slots := window.Slots{AMIn: tod("08:00:00")}
	// 00:10 UTC is 08:10 in UTC+8
	now := time.Date(2025, 3, 3, 0, 10, 0, 0, time.UTC)
	got, err := r.Resolve(slots, 30*time.Minute, now)
	require.NoError(t, err)
	assert.Equal(t, window.AMIn, got)
	assert.Equal(t, "2025-03-03", r.Date(now))
	assert.Equal(t, "2025-03-03", r.Date(now.Add(15*time.Hour)))
	assert.Equal(t, "2025-03-04", r.Date(now.Add(16*time.Hour)))
}

func TestParseType(t *testing.T) {
	for _, typ := range window.Types {
		got, err := window.ParseType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, got)
		got, err = window.ParseType(typ.Column())
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}
	_, err := window.ParseType("NOON")
	require.ErrorIs(t, err, window.ErrUnknownType)
}

func TestTypeText(t *testing.T) {
	data, err := json.Marshal(map[string]window.Type{"w": window.PMOut})
	require.NoError(t, err)
	assert.JSONEq(t, `{"w":"PM_OUT"}`, string(data))
	var got struct{ W window.Type }
	require.NoError(t, json.Unmarshal([]byte(`{"W":"am_out"}`), &got))
	assert.Equal(t, window.AMOut, got.W)
	_, err = window.Type(9).MarshalText()
	require.ErrorIs(t, err, window.ErrUnknownType)
}
