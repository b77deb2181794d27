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
	"fmt"

	"github.com/blinklabs-io/eventlog/remote"
	"github.com/blinklabs-io/eventlog/schedule"
)

// Inbound message names
const (
	MessageNewEventAdded      = "new-event-added"
	MessageNewApprovedEvent   = "newApprovedEvent"
	MessageEventStatusChanged = "event-status-changed"
	MessageEventsListUpdated  = "events-list-updated"
	MessageDatabaseUpdated    = "database-updated"
)

// Outbound message names
const (
	MessageJoinRoom  = "join-room"
	MessageLeaveRoom = "leave-room"
)

// Message is a single frame on the channel
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func roomMessage(name, room string) Message {
	data, _ := json.Marshal(room)
	return Message{Event: name, Data: data}
}

type newEventAdded struct {
	Event    remote.EventPayload `json:"event"`
	GroupIDs []int64             `json:"group_ids"`
}

type newApprovedEvent struct {
	Data remote.EventPayload `json:"data"`
}

type eventStatusChanged struct {
	NewStatus string  `json:"newStatus"`
	GroupIDs  []int64 `json:"group_ids"`
	EventID   int64   `json:"eventId"`
}

type eventsListUpdated struct {
	Events []remote.EventPayload `json:"events"`
}

type databaseUpdated struct {
	Type string `json:"type"`
}

// action is what an inbound message asks the bus to do
type action int

const (
	actionIgnore action = iota
	actionRemove
	actionInvalidate
)

type decision struct {
	action  action
	eventID int64
}

// decide parses msg and applies the relevance filter
func decide(msg Message, role schedule.Role, ownGroup int64) (decision, error) {
	relevant := func(groups []int64) action {
		if schedule.Relevant(role, ownGroup, groups) {
			return actionInvalidate
		}
		return actionIgnore
	}
	switch msg.Event {
	case MessageNewEventAdded:
		var data newEventAdded
		if err := unmarshalData(msg, &data); err != nil {
			return decision{}, err
		}
		groups := data.GroupIDs
		if groups == nil {
			groups = data.Event.GroupIDs
		}
		return decision{action: relevant(groups), eventID: data.Event.ID}, nil
	case MessageNewApprovedEvent:
		var data newApprovedEvent
		if err := unmarshalData(msg, &data); err != nil {
			return decision{}, err
		}
		return decision{action: relevant(data.Data.GroupIDs), eventID: data.Data.ID}, nil
	case MessageEventStatusChanged:
		var data eventStatusChanged
		if err := unmarshalData(msg, &data); err != nil {
			return decision{}, err
		}
		status, err := schedule.ParseStatus(data.NewStatus)
		if err != nil {
			return decision{}, err
		}
		ret := decision{action: relevant(data.GroupIDs), eventID: data.EventID}
		if ret.action == actionInvalidate && status != schedule.StatusApproved {
			ret.action = actionRemove
		}
		return ret, nil
	case MessageEventsListUpdated:
		var data eventsListUpdated
		if err := unmarshalData(msg, &data); err != nil {
			return decision{}, err
		}
		if len(data.Events) == 0 {
			return decision{action: relevant(nil)}, nil
		}
		for _, ev := range data.Events {
			if relevant(ev.GroupIDs) == actionInvalidate {
				return decision{action: actionInvalidate}, nil
			}
		}
		return decision{action: actionIgnore}, nil
	case MessageDatabaseUpdated:
		var data databaseUpdated
		if err := unmarshalData(msg, &data); err != nil {
			return decision{}, err
		}
		return decision{action: actionInvalidate}, nil
	default:
		return decision{action: actionIgnore}, nil
	}
}

func unmarshalData(msg Message, dst any) error {
	if len(msg.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(msg.Data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", msg.Event, err)
	}
	return nil
}
