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
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/blinklabs-io/eventlog/database/models"
	"github.com/blinklabs-io/eventlog/database/types"
	"github.com/blinklabs-io/eventlog/window"
)

func setupTestStore(t *testing.T, opts ...SqliteOptionFunc) *Store {
	t.Helper()
	store, err := New(opts...)
	require.NoError(t, err, "failed to create store")
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testEvent(id int64) *models.Event {
	amIn := window.MustParseTimeOfDay("08:00:00")
	return &models.Event{
		ID:       id,
		Name:     "Assembly",
		Venue:    "Gym",
		Status:   "Approved",
		AmIn:     types.NewTimeOfDay(&amIn),
		Duration: 30,
	}
}

func TestEventRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.SetEvent(testEvent(1), nil))
	require.NoError(t, store.SetEventDates(1, []models.EventDate{
		{ID: 11, Date: "2025-03-04"},
		{ID: 10, Date: "2025-03-03"},
	}, nil))

	ev, err := store.GetEvent(1, nil)
	require.NoError(t, err)
	assert.Equal(t, "Gym", ev.Venue)
	require.NotNil(t, ev.AmIn)
	assert.Equal(t, "08:00:00", ev.AmIn.String())
	assert.Nil(t, ev.PmOut)

	dates, err := store.GetEventDates([]int64{1}, nil)
	require.NoError(t, err)
	require.Len(t, dates[1], 2)
	// insertion order, not id order
	assert.Equal(t, int64(11), dates[1][0].ID)
	assert.Equal(t, int64(10), dates[1][1].ID)

	_, err = store.GetEvent(2, nil)
	require.ErrorIs(t, err, models.ErrEventNotFound)
	_, err = store.GetEventDate(99, nil)
	require.ErrorIs(t, err, models.ErrEventDateNotFound)
}

func TestSetEventReplacesColumns(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.SetEvent(testEvent(1), nil))
	updated := testEvent(1)
	updated.Venue = "Hall"
	updated.AmIn = nil
	require.NoError(t, store.SetEvent(updated, nil))
	ev, err := store.GetEvent(1, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hall", ev.Venue)
	assert.Nil(t, ev.AmIn)
}

func TestDeleteEventsNotIn(t *testing.T) {
	store := setupTestStore(t)
	for id := int64(1); id <= 3; id++ {
		require.NoError(t, store.SetEvent(testEvent(id), nil))
		require.NoError(t, store.SetEventDates(id, []models.EventDate{
			{ID: id * 10, Date: "2025-03-03"},
		}, nil))
	}
	removed, err := store.DeleteEventsNotIn([]int64{1, 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, removed)
	ids, err := store.GetEventIDs(nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)
	_, err = store.GetEventDate(30, nil)
	require.ErrorIs(t, err, models.ErrEventDateNotFound)

	removed, err = store.DeleteEventsNotIn(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, removed)
	ids, err = store.GetEventIDs(nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestDeleteEventKeepsAttendance(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.SetEvent(testEvent(1), nil))
	require.NoError(t, store.SetEventDates(1, []models.EventDate{{ID: 10, Date: "2025-03-03"}}, nil))
	a := &models.Attendance{EventDateID: 10, SubjectID: "S1"}
	a.Mark(window.AMIn, time.Now())
	require.NoError(t, store.SetAttendance(a, nil))

	existed, err := store.DeleteEvent(1, nil)
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = store.DeleteEvent(1, nil)
	require.NoError(t, err)
	assert.False(t, existed)

	got, err := store.GetAttendance(10, "S1", nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.AmIn)
}

func TestAttendanceUniqueKey(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.SetAttendance(&models.Attendance{EventDateID: 10, SubjectID: "S1"}, nil))
	err := store.SetAttendance(&models.Attendance{EventDateID: 10, SubjectID: "S1"}, nil)
	require.Error(t, err)

	miss, err := store.GetAttendance(10, "S2", nil)
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestTransactionRollback(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := setupTestStore(t, WithPromRegistry(reg))
	err := store.Transaction(context.Background(), func(txn *gorm.DB) error {
		if err := store.SetEvent(testEvent(1), txn); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
	_, err = store.GetEvent(1, nil)
	require.ErrorIs(t, err, models.ErrEventNotFound)
	assert.InDelta(t, 1, testutil.ToFloat64(store.metrics.txns.WithLabelValues("rollback")), 0)
}

func TestSyncState(t *testing.T) {
	store := setupTestStore(t)
	v, err := store.GetSyncState("last_sync", nil)
	require.NoError(t, err)
	assert.Empty(t, v)
	require.NoError(t, store.SetSyncState("last_sync", "a", nil))
	require.NoError(t, store.SetSyncState("last_sync", "b", nil))
	v, err = store.GetSyncState("last_sync", nil)
	require.NoError(t, err)
	assert.Equal(t, "b", v)
	require.NoError(t, store.DeleteSyncState("last_sync", nil))
	v, err = store.GetSyncState("last_sync", nil)
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestFileBackedStore(t *testing.T) {
	dir := t.TempDir()
	store, err := New(WithDataDir(dir))
	require.NoError(t, err)
	require.NoError(t, store.SetEvent(testEvent(7), nil))
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	store, err = New(WithDataDir(dir))
	require.NoError(t, err)
	defer store.Close() //nolint:errcheck
	ev, err := store.GetEvent(7, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), ev.ID)
}

func TestConcurrentTransactions(t *testing.T) {
	store := setupTestStore(t)
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			assert.NoError(t, store.Transaction(context.Background(), func(txn *gorm.DB) error {
				return store.SetEvent(testEvent(id), txn)
			}))
		}(int64(i + 1))
	}
	wg.Wait()
	ids, err := store.GetEventIDs(nil)
	require.NoError(t, err)
	assert.Len(t, ids, 8)
}

func TestClosedStoreTransaction(t *testing.T) {
	store, err := New()
	require.NoError(t, err)
	require.NoError(t, store.Close())
	err = store.Transaction(context.Background(), func(*gorm.DB) error { return nil })
	require.ErrorIs(t, err, types.ErrMetadataStoreUnavailable)
}
