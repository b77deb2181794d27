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
	"slices"
	"strconv"
	"strings"
)

// Role is the role of the signed in user of this device
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStaff   Role = "staff"
	RoleSubject Role = "subject"
)

// ParseRole maps the role names the server uses onto Role. Anything that
// is not an administrative or staff role is treated as a subject.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin", "super admin", "superadmin", "super_admin":
		return RoleAdmin
	case "staff", "scanner", "faculty", "personnel":
		return RoleStaff
	default:
		return RoleSubject
	}
}

// SeesAllEvents is true for roles scoped to every event
func (r Role) SeesAllEvents() bool {
	return r == RoleAdmin || r == RoleStaff
}

const (
	RoomAllEvents   = "all-events"
	roomGroupPrefix = "group-"
)

// GroupRoom returns the real-time room name for a group
func GroupRoom(groupID int64) string {
	return roomGroupPrefix + strconv.FormatInt(groupID, 10)
}

// Rooms returns the rooms a device with role and group should join
func Rooms(role Role, groupID int64) []string {
	if role.SeesAllEvents() {
		return []string{RoomAllEvents}
	}
	if groupID <= 0 {
		return nil
	}
	return []string{GroupRoom(groupID)}
}

// Relevant decides whether a message scoped to groups concerns a device with
// the given role and group. Staff and admins see everything. A nil group
// list marks an unscoped broadcast, which concerns everyone. Otherwise
// subjects only see messages whose group list contains their own group.
func Relevant(role Role, ownGroup int64, groups []int64) bool {
	if role.SeesAllEvents() || groups == nil {
		return true
	}
	if ownGroup <= 0 {
		return false
	}
	return slices.Contains(groups, ownGroup)
}
