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

package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelevant(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		ownGroup int64
		groups   []int64
		want     bool
	}{
		{name: "admin without groups", role: RoleAdmin, want: true},
		{name: "staff other group", role: RoleStaff, ownGroup: 1, groups: []int64{2}, want: true},
		{name: "subject matching group", role: RoleSubject, ownGroup: 3, groups: []int64{1, 3}, want: true},
		{name: "subject other group", role: RoleSubject, ownGroup: 3, groups: []int64{1, 2}, want: false},
		{name: "subject unscoped broadcast", role: RoleSubject, ownGroup: 3, want: true},
		{name: "subject empty scope", role: RoleSubject, ownGroup: 3, groups: []int64{}, want: false},
		{name: "subject unknown group", role: RoleSubject, groups: []int64{0}, want: false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, Relevant(test.role, test.ownGroup, test.groups))
		})
	}
}

func TestRooms(t *testing.T) {
	assert.Equal(t, []string{RoomAllEvents}, Rooms(RoleStaff, 7))
	assert.Equal(t, []string{RoomAllEvents}, Rooms(RoleAdmin, 0))
	assert.Equal(t, []string{"group-7"}, Rooms(RoleSubject, 7))
	assert.Empty(t, Rooms(RoleSubject, 0))
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleAdmin, ParseRole("Super Admin"))
	assert.Equal(t, RoleStaff, ParseRole("staff"))
	assert.Equal(t, RoleSubject, ParseRole("student"))
}

func TestOccurrences(t *testing.T) {
	ev := Event{
		ID:            1,
		Dates:         []string{"2025-03-03", "2025-03-04"},
		OccurrenceIDs: []int64{10, 11},
	}
	occs, err := ev.Occurrences()
	require.NoError(t, err)
	require.Len(t, occs, 2)
	assert.Equal(t, Occurrence{ID: 11, EventID: 1, Date: "2025-03-04"}, occs[1])

	occ, ok := ev.Occurrence(10)
	require.True(t, ok)
	assert.Equal(t, "2025-03-03", occ.Date)
	_, ok = ev.Occurrence(12)
	assert.False(t, ok)

	ev.OccurrenceIDs = ev.OccurrenceIDs[:1]
	_, err = ev.Occurrences()
	require.ErrorIs(t, err, ErrOccurrenceMismatch)
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("approved")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, st)
	_, err = ParseStatus("archived")
	require.Error(t, err)
}
