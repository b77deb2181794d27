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

	"gorm.io/gorm"

	"github.com/blinklabs-io/eventlog/database/models"
)

// GetAttendance returns the attendance row for the key, or nil if none exists
func (d *Store) GetAttendance(
	eventDateID int64,
	subjectID string,
	txn *gorm.DB,
) (*models.Attendance, error) {
	var ret models.Attendance
	result := d.handle(txn).
		Where("event_date_id = ? AND subject_id = ?", eventDateID, subjectID).
		First(&ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &ret, nil
}

// SetAttendance inserts a new row or saves changes to an existing one
func (d *Store) SetAttendance(a *models.Attendance, txn *gorm.DB) error {
	db := d.handle(txn)
	if a.ID == 0 {
		return db.Create(a).Error
	}
	return db.Save(a).Error
}

// GetAttendances returns every attendance row of an occurrence ordered by subject
func (d *Store) GetAttendances(
	eventDateID int64,
	txn *gorm.DB,
) ([]models.Attendance, error) {
	var ret []models.Attendance
	result := d.handle(txn).
		Where("event_date_id = ?", eventDateID).
		Order("subject_id ASC").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
