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
	"gorm.io/gorm/clause"

	"github.com/blinklabs-io/eventlog/database/models"
)

// GetSyncState returns the stored value for key, or an empty string
func (d *Store) GetSyncState(key string, txn *gorm.DB) (string, error) {
	var tmp models.SyncState
	result := d.handle(txn).Where(&models.SyncState{Key: key}).First(&tmp)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", result.Error
	}
	return tmp.Value, nil
}

// SetSyncState stores value for key
func (d *Store) SetSyncState(key, value string, txn *gorm.DB) error {
	tmp := models.SyncState{Key: key, Value: value}
	result := d.handle(txn).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&tmp)
	return result.Error
}

// DeleteSyncState removes key
func (d *Store) DeleteSyncState(key string, txn *gorm.DB) error {
	return d.handle(txn).Where(&models.SyncState{Key: key}).Delete(&models.SyncState{}).Error
}
