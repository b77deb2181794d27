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

package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/eventlog/schedule"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name    string
		event   string
		data    string
		role    schedule.Role
		group   int64
		want    action
		eventID int64
	}{
		{
			name:  "approved event for own group",
			event: MessageNewApprovedEvent,
			data:  `{"data":{"event_id":3,"group_ids":[1,2]}}`,
			role:  schedule.RoleSubject,
			group: 2,
			want:  actionInvalidate, eventID: 3,
		},
		{
			name:  "approved event for other group",
			event: MessageNewApprovedEvent,
			data:  `{"data":{"event_id":3,"group_ids":[1]}}`,
			role:  schedule.RoleSubject,
			group: 2,
			want:  actionIgnore, eventID: 3,
		},
		{
			name:  "new event falls back to event groups",
			event: MessageNewEventAdded,
			data:  `{"event":{"event_id":6,"group_ids":[2]}}`,
			role:  schedule.RoleSubject,
			group: 2,
			want:  actionInvalidate, eventID: 6,
		},
		{
			name:  "staff sees every status change",
			event: MessageEventStatusChanged,
			data:  `{"eventId":4,"newStatus":"Pending","group_ids":[9]}`,
			role:  schedule.RoleStaff,
			want:  actionRemove, eventID: 4,
		},
		{
			name:  "unscoped status change",
			event: MessageEventStatusChanged,
			data:  `{"eventId":4,"newStatus":"Approved"}`,
			role:  schedule.RoleSubject,
			group: 1,
			want:  actionInvalidate, eventID: 4,
		},
		{
			name:  "list update with one relevant event",
			event: MessageEventsListUpdated,
			data:  `{"events":[{"event_id":1,"group_ids":[8]},{"event_id":2,"group_ids":[1]}]}`,
			role:  schedule.RoleSubject,
			group: 1,
			want:  actionInvalidate,
		},
		{
			name:  "list update with no relevant event",
			event: MessageEventsListUpdated,
			data:  `{"events":[{"event_id":1,"group_ids":[8]}]}`,
			role:  schedule.RoleSubject,
			group: 1,
			want:  actionIgnore,
		},
		{
			name:  "database update without data",
			event: MessageDatabaseUpdated,
			role:  schedule.RoleSubject,
			want:  actionInvalidate,
		},
		{
			name:  "unknown message",
			event: "ping",
			role:  schedule.RoleAdmin,
			want:  actionIgnore,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			msg := Message{Event: test.event}
			if test.data != "" {
				msg.Data = json.RawMessage(test.data)
			}
			got, err := decide(msg, test.role, test.group)
			require.NoError(t, err)
			assert.Equal(t, test.want, got.action)
			assert.Equal(t, test.eventID, got.eventID)
		})
	}
}

func TestDecideErrors(t *testing.T) {
	_, err := decide(Message{
		Event: MessageEventStatusChanged,
		Data:  json.RawMessage(`{"eventId":1,"newStatus":"Archived"}`),
	}, schedule.RoleAdmin, 0)
	require.Error(t, err)
	_, err = decide(Message{
		Event: MessageNewEventAdded,
		Data:  json.RawMessage(`[]`),
	}, schedule.RoleAdmin, 0)
	require.Error(t, err)
}

func TestRoomMessage(t *testing.T) {
	msg := roomMessage(MessageJoinRoom, "group-1")
	out, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"join-room","data":"group-1"}`, string(out))
}
