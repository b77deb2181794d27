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

package admission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/eventlog/attendance"
	"github.com/blinklabs-io/eventlog/cache"
	"github.com/blinklabs-io/eventlog/database"
	"github.com/blinklabs-io/eventlog/event"
	"github.com/blinklabs-io/eventlog/schedule"
	"github.com/blinklabs-io/eventlog/token"
	"github.com/blinklabs-io/eventlog/window"
)

const testOccurrence = 100

type fixture struct {
	admitter *Admitter
	codec    *token.Codec
	ledger   *attendance.Ledger
	bus      *event.EventBus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.New(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	bus := event.NewEventBus(nil, nil)
	t.Cleanup(bus.Stop)

	store, err := cache.New(cache.Config{DB: db})
	require.NoError(t, err)
	slots, err := window.ParseSlots("08:00:00", "", "13:00:00", "")
	require.NoError(t, err)
	_, err = store.UpsertApproved(context.Background(), schedule.Event{
		ID:            1,
		Name:          "Foundation Day",
		Status:        schedule.StatusApproved,
		Windows:       slots,
		Duration:      30 * time.Minute,
		Dates:         []string{"2025-03-03"},
		OccurrenceIDs: []int64{testOccurrence},
	}, []int64{1})
	require.NoError(t, err)

	ledger, err := attendance.NewLedger(attendance.LedgerConfig{DB: db})
	require.NoError(t, err)
	codec, err := token.NewCodecFromPassphrase("shared-secret")
	require.NoError(t, err)
	a, err := New(Config{
		Codec:        codec,
		Cache:        store,
		Ledger:       ledger,
		Resolver:     window.NewResolver(time.UTC),
		EventBus:     bus,
		PromRegistry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	return &fixture{admitter: a, codec: codec, ledger: ledger, bus: bus}
}

func (f *fixture) token(t *testing.T, occ int64, subject string) string {
	t.Helper()
	tok, err := f.codec.EncodePayload(token.Payload{OccurrenceID: occ, SubjectID: subject})
	require.NoError(t, err)
	return tok
}

func at(day, hour, minute int) time.Time {
	return time.Date(2025, 3, day, hour, minute, 0, 0, time.UTC)
}

func TestAdmitThenDuplicate(t *testing.T) {
	f := newFixture(t)
	_, admittedCh := f.bus.Subscribe(event.AdmittedEventType)
	ctx := context.Background()
	tok := f.token(t, testOccurrence, "S1")

	out, err := f.admitter.Admit(ctx, tok, at(3, 8, 10))
	require.NoError(t, err)
	assert.Equal(t, window.AMIn, out.Mark.Window)
	assert.Equal(t, "S1", out.Mark.SubjectID)
	assert.Equal(t, int64(1), out.Event.ID)
	assert.Equal(t, "2025-03-03", out.Occurrence.Date)
	assert.Equal(t, "Attendance recorded.", Message(err))

	select {
	case evt := <-admittedCh:
		data, ok := evt.Data.(event.AdmittedEvent)
		require.True(t, ok)
		assert.Equal(t, "Foundation Day", data.EventName)
		assert.Equal(t, window.AMIn, data.Window)
	case <-time.After(time.Second):
		t.Fatal("no admission.admitted event")
	}

	_, err = f.admitter.Admit(ctx, tok, at(3, 8, 20))
	require.ErrorIs(t, err, attendance.ErrAlreadyLogged)
	assert.Equal(t, "Attendance already recorded for this window.", Message(err))

	// Same subject in the afternoon window is a new mark
	out, err = f.admitter.Admit(ctx, tok, at(3, 13, 30))
	require.NoError(t, err)
	assert.Equal(t, window.PMIn, out.Mark.Window)

	logged, err := f.ledger.IsLogged(ctx, testOccurrence, "S1", window.PMIn)
	require.NoError(t, err)
	assert.True(t, logged)
	assert.InDelta(t, 2, testutil.ToFloat64(f.admitter.metrics.scans.WithLabelValues("admitted")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(f.admitter.metrics.scans.WithLabelValues("already_logged")), 0)
}

func TestAdmitRefusals(t *testing.T) {
	f := newFixture(t)
	foreign, err := token.NewCodecFromPassphrase("other-secret")
	require.NoError(t, err)
	foreignTok, err := foreign.EncodePayload(token.Payload{OccurrenceID: testOccurrence, SubjectID: "S1"})
	require.NoError(t, err)
	badFormat, err := f.codec.Encode("attendance-100-S1")
	require.NoError(t, err)

	tests := []struct {
		name    string
		tok     string
		now     time.Time
		want    error
		message string
	}{
		{
			name:    "garbage",
			tok:     "not a token",
			now:     at(3, 8, 10),
			want:    token.ErrDecrypt,
			message: "Invalid code. Please scan a valid attendance QR code.",
		},
		{
			name:    "foreign key",
			tok:     foreignTok,
			now:     at(3, 8, 10),
			want:    token.ErrDecrypt,
			message: "Invalid code. Please scan a valid attendance QR code.",
		},
		{
			name:    "bad payload",
			tok:     badFormat,
			now:     at(3, 8, 10),
			want:    token.ErrFormat,
			message: "Invalid code. Please scan a valid attendance QR code.",
		},
		{
			name:    "unknown occurrence",
			tok:     f.token(t, 999, "S1"),
			now:     at(3, 8, 10),
			want:    ErrUnknownOccurrence,
			message: "This code is not for an approved event on this device.",
		},
		{
			name:    "wrong date",
			tok:     f.token(t, testOccurrence, "S1"),
			now:     at(4, 8, 10),
			want:    ErrWrongDate,
			message: "This event is not scheduled for today.",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := f.admitter.Admit(context.Background(), test.tok, test.now)
			require.ErrorIs(t, err, test.want)
			assert.Equal(t, test.message, Message(err))
		})
	}

	_, err = f.admitter.Admit(context.Background(), f.token(t, 999, "S1"), at(3, 8, 10))
	require.ErrorIs(t, err, cache.ErrNotFound)
}

func TestAdmitOutsideWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tok := f.token(t, testOccurrence, "S2")

	_, err := f.admitter.Admit(ctx, tok, at(3, 10, 0))
	var outside *window.OutsideWindowError
	require.True(t, errors.As(err, &outside))
	assert.True(t, outside.Upcoming)
	assert.Equal(t, "Outside admission hours. PM in opens at 1:00PM.", Message(err))

	_, err = f.admitter.Admit(ctx, tok, at(3, 17, 0))
	require.True(t, errors.As(err, &outside))
	assert.False(t, outside.Upcoming)
	assert.Equal(t, "Outside admission hours. PM in closed at 1:30PM.", Message(err))

	// Window bounds are inclusive
	out, err := f.admitter.Admit(ctx, tok, at(3, 8, 30))
	require.NoError(t, err)
	assert.Equal(t, window.AMIn, out.Mark.Window)

	logged, err := f.ledger.IsLogged(ctx, testOccurrence, "S2", window.PMIn)
	require.NoError(t, err)
	assert.False(t, logged)
}

func TestNewRequiresComponents(t *testing.T) {
	_, err := New(Config{})
	require.ErrorIs(t, err, ErrMissingComponent)
}

func TestMessageFallbacks(t *testing.T) {
	assert.Equal(
		t,
		"Attendance could not be saved. Please try again.",
		Message(database.StoreError("log attendance", errors.New("disk full"))),
	)
	assert.Equal(t, "Scan failed. Please try again.", Message(errors.New("boom")))
	assert.Equal(t, "Outside admission hours.", Message(&window.OutsideWindowError{}))
}
