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

package sqlite

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/blinklabs-io/eventlog/database/models"
)

// SetEvent inserts the event or replaces every column of an existing row
func (d *Store) SetEvent(ev *models.Event, txn *gorm.DB) error {
	db := d.handle(txn)
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(ev)
	if result.Error != nil {
		return fmt.Errorf("set event %d: %w", ev.ID, result.Error)
	}
	return nil
}

// GetEvent returns the event with the given id
func (d *Store) GetEvent(id int64, txn *gorm.DB) (models.Event, error) {
	var ret models.Event
	result := d.handle(txn).Where("id = ?", id).First(&ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ret, models.ErrEventNotFound
		}
		return ret, result.Error
	}
	return ret, nil
}

// GetEventsByStatus returns the events with status ordered by id
func (d *Store) GetEventsByStatus(
	status string,
	txn *gorm.DB,
) ([]models.Event, error) {
	var ret []models.Event
	result := d.handle(txn).
		Where("status = ?", status).
		Order("id ASC").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// GetEventIDs returns the ids of every cached event
func (d *Store) GetEventIDs(txn *gorm.DB) ([]int64, error) {
	var ret []int64
	result := d.handle(txn).Model(&models.Event{}).Order("id ASC").Pluck("id", &ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// SetEventDates replaces the occurrences of an event. Position is assigned
// from the slice order.
func (d *Store) SetEventDates(
	eventID int64,
	dates []models.EventDate,
	txn *gorm.DB,
) error {
	db := d.handle(txn)
	if result := db.Where("event_id = ?", eventID).Delete(&models.EventDate{}); result.Error != nil {
		return fmt.Errorf("delete dates of event %d: %w", eventID, result.Error)
	}
	if len(dates) == 0 {
		return nil
	}
	for i := range dates {
		dates[i].EventID = eventID
		dates[i].Position = i
	}
	// An occurrence id may move to another event between snapshots
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&dates)
	if result.Error != nil {
		return fmt.Errorf("set dates of event %d: %w", eventID, result.Error)
	}
	return nil
}

// GetEventDates returns the occurrences of the given events keyed by event
// id, each list in insertion order
func (d *Store) GetEventDates(
	eventIDs []int64,
	txn *gorm.DB,
) (map[int64][]models.EventDate, error) {
	ret := make(map[int64][]models.EventDate, len(eventIDs))
	if len(eventIDs) == 0 {
		return ret, nil
	}
	var tmp []models.EventDate
	result := d.handle(txn).
		Where("event_id IN ?", eventIDs).
		Order("event_id ASC, position ASC").
		Find(&tmp)
	if result.Error != nil {
		return nil, result.Error
	}
	for _, ed := range tmp {
		ret[ed.EventID] = append(ret[ed.EventID], ed)
	}
	return ret, nil
}

// GetEventDate returns a single occurrence by id
func (d *Store) GetEventDate(id int64, txn *gorm.DB) (models.EventDate, error) {
	var ret models.EventDate
	result := d.handle(txn).Where("id = ?", id).First(&ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ret, models.ErrEventDateNotFound
		}
		return ret, result.Error
	}
	return ret, nil
}

// DeleteEvent removes an event and its occurrences. It reports whether the
// event existed.
func (d *Store) DeleteEvent(id int64, txn *gorm.DB) (bool, error) {
	db := d.handle(txn)
	if result := db.Where("event_id = ?", id).Delete(&models.EventDate{}); result.Error != nil {
		return false, result.Error
	}
	result := db.Where("id = ?", id).Delete(&models.Event{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DeleteEventsNotIn removes every event whose id is not in keep, together
// with its occurrences, and returns the removed ids. An empty keep removes
// everything.
func (d *Store) DeleteEventsNotIn(keep []int64, txn *gorm.DB) ([]int64, error) {
	db := d.handle(txn)
	var stale []int64
	query := db.Model(&models.Event{})
	if len(keep) > 0 {
		query = query.Where("id NOT IN ?", keep)
	}
	if result := query.Order("id ASC").Pluck("id", &stale); result.Error != nil {
		return nil, result.Error
	}
	if len(stale) == 0 {
		return nil, nil
	}
	if result := db.Where("event_id IN ?", stale).Delete(&models.EventDate{}); result.Error != nil {
		return nil, result.Error
	}
	if result := db.Where("id IN ?", stale).Delete(&models.Event{}); result.Error != nil {
		return nil, result.Error
	}
	return stale, nil
}

// DeleteAllEvents wipes the events and event dates tables
func (d *Store) DeleteAllEvents(txn *gorm.DB) error {
	db := d.handle(txn)
	if result := db.Where("1 = 1").Delete(&models.EventDate{}); result.Error != nil {
		return result.Error
	}
	if result := db.Where("1 = 1").Delete(&models.Event{}); result.Error != nil {
		return result.Error
	}
	return nil
}
