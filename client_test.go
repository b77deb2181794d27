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

package eventlog

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/net/websocket"

	"github.com/blinklabs-io/eventlog/admission"
	"github.com/blinklabs-io/eventlog/attendance"
	"github.com/blinklabs-io/eventlog/event"
	"github.com/blinklabs-io/eventlog/eventsync"
	"github.com/blinklabs-io/eventlog/realtime"
	"github.com/blinklabs-io/eventlog/remote"
	"github.com/blinklabs-io/eventlog/report"
	"github.com/blinklabs-io/eventlog/schedule"
	"github.com/blinklabs-io/eventlog/window"
)

const testTokenKey = "shared-secret"

func strPtr(s string) *string { return &s }

// fakeServer serves the REST API from an in-memory snapshot
type fakeServer struct {
	*httptest.Server
	events   []remote.EventPayload
	pushed   []remote.MarkPayload
	groupIDs []string
	status   int
	mu       sync.Mutex
}

func newFakeServer(t *testing.T, events ...remote.EventPayload) *fakeServer {
	t.Helper()
	s := &fakeServer{events: events, status: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != http.StatusOK {
		w.WriteHeader(s.status)
		return
	}
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/events/approved":
		s.groupIDs = append(s.groupIDs, r.URL.Query().Get("group_id"))
		_ = json.NewEncoder(w).Encode(remote.FetchResponse{
			Success: true,
			Events:  s.events,
		})
	case r.Method == http.MethodPost && r.URL.Path == "/attendance":
		var m remote.MarkPayload
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.pushed = append(s.pushed, m)
		w.WriteHeader(http.StatusCreated)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *fakeServer) setEvents(events ...remote.EventPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = events
}

func (s *fakeServer) setStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *fakeServer) fetchedGroups() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.groupIDs...)
}

func (s *fakeServer) pushedMarks() []remote.MarkPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]remote.MarkPayload(nil), s.pushed...)
}

func foundationDay() remote.EventPayload {
	return remote.EventPayload{
		ID:           1,
		Name:         "Foundation Day",
		Venue:        "Gym",
		Status:       "Approved",
		AmIn:         strPtr("08:00:00"),
		PmIn:         strPtr("13:00:00"),
		Duration:     30,
		EventDates:   []string{"2025-03-03"},
		EventDateIDs: []int64{100},
	}
}

func newTestClient(t *testing.T, opts ...ConfigOptionFunc) *Client {
	t.Helper()
	base := []ConfigOptionFunc{
		WithTokenKey(testTokenKey),
		WithLocation(time.UTC),
		WithPrometheusRegistry(prometheus.NewRegistry()),
		WithShutdownTimeout(5 * time.Second),
	}
	c, err := New(NewConfig(append(base, opts...)...))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Stop() })
	return c
}

func morning() time.Time {
	return time.Date(2025, 3, 3, 8, 5, 0, 0, time.UTC)
}

func TestNewValidation(t *testing.T) {
	_, err := New(NewConfig(WithServerURL("http://localhost")))
	require.ErrorIs(t, err, ErrNoTokenKey)
	_, err = New(NewConfig(WithTokenKey(testTokenKey)))
	require.ErrorIs(t, err, ErrNoServer)
	_, err = New(NewConfig(
		WithTokenKey(testTokenKey),
		WithServerURL("http://localhost"),
		WithSessionToken("not-a-jwt"),
	))
	require.Error(t, err)
}

func TestClientAdmitAndPush(t *testing.T) {
	pending := foundationDay()
	pending.ID = 2
	pending.Status = "Pending"
	pending.EventDateIDs = []int64{200}
	srv := newFakeServer(t, foundationDay(), pending)
	c := newTestClient(
		t,
		WithServerURL(srv.URL),
		WithRealtime(false),
		WithGroupID(3),
		WithQuietIntervals(eventsync.QuietIntervals{Manual: -1}),
	)
	ctx := context.Background()
	_, pushedCh := c.EventBus().Subscribe(event.AttendancePushedEventType)

	require.NoError(t, c.Start(ctx))
	events, err := c.Events(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{1}, schedule.IDs(events))
	assert.Equal(t, []string{"3"}, srv.fetchedGroups())

	tok, err := c.IssueToken(100, "S1")
	require.NoError(t, err)
	payload, err := c.DecodeToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "S1", payload.SubjectID)

	out, err := c.Admit(ctx, tok, morning())
	require.NoError(t, err)
	assert.Equal(t, window.AMIn, out.Mark.Window)

	select {
	case <-pushedCh:
	case <-time.After(5 * time.Second):
		t.Fatal("mark was not pushed")
	}
	marks := srv.pushedMarks()
	require.Len(t, marks, 1)
	assert.Equal(t, int64(100), marks[0].EventDateID)
	assert.Equal(t, "S1", marks[0].SubjectID)
	assert.Equal(t, window.AMIn, marks[0].Window)
	n, err := c.PendingAttendance()
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = c.Admit(ctx, tok, morning().Add(10*time.Minute))
	require.ErrorIs(t, err, attendance.ErrAlreadyLogged)

	var xlsx bytes.Buffer
	require.NoError(t, c.ExportAttendance(ctx, &xlsx))
	f, err := excelize.OpenReader(&xlsx)
	require.NoError(t, err)
	rows, err := f.GetRows(report.AttendanceSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "S1", rows[1][3])
	require.NoError(t, f.Close())

	var pdf bytes.Buffer
	require.NoError(t, c.ExportAttendancePDF(ctx, &pdf))
	assert.True(t, bytes.HasPrefix(pdf.Bytes(), []byte("%PDF-")))

	var ics bytes.Buffer
	require.NoError(t, c.ExportCalendar(ctx, &ics))
	assert.Contains(t, ics.String(), "100-am_in@eventlog")
	assert.Contains(t, ics.String(), "100-pm_in@eventlog")

	// An empty authoritative snapshot purges the cache
	srv.setEvents()
	res, err := c.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, res.Removed)
	events, err = c.Events(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestClientOffline(t *testing.T) {
	srv := newFakeServer(t, foundationDay())
	c := newTestClient(
		t,
		WithServerURL(srv.URL),
		WithRealtime(false),
		WithQuietIntervals(eventsync.QuietIntervals{Manual: -1}),
	)
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	tok, err := c.IssueToken(100, "S9")
	require.NoError(t, err)

	// Server down: the cache keeps serving and scans still succeed
	srv.setStatus(http.StatusServiceUnavailable)
	srv.setEvents()
	res, err := c.Sync(ctx)
	require.ErrorIs(t, err, eventsync.ErrFetch)
	assert.Equal(t, []int64{1}, schedule.IDs(res.Events))

	_, err = c.Admit(ctx, tok, morning())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		n, err := c.PendingAttendance()
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Server back: the queued mark is delivered on the next flush
	srv.setStatus(http.StatusOK)
	srv.setEvents(foundationDay())
	_, err = c.FlushAttendance(ctx)
	require.NoError(t, err)
	require.Len(t, srv.pushedMarks(), 1)
	n, err := c.PendingAttendance()
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, c.Logout(ctx))
	events, err := c.Events(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
	_, err = c.Admit(ctx, tok, morning())
	require.ErrorIs(t, err, admission.ErrUnknownOccurrence)
}

func TestClientRealtimeRemoval(t *testing.T) {
	srv := newFakeServer(t, foundationDay())
	joined := make(chan string, 4)
	release := make(chan struct{})
	ws := httptest.NewServer(websocket.Handler(func(conn *websocket.Conn) {
		var msg realtime.Message
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			return
		}
		var room string
		_ = json.Unmarshal(msg.Data, &room)
		joined <- room
		<-release
		_ = websocket.JSON.Send(conn, realtime.Message{
			Event: realtime.MessageEventStatusChanged,
			Data:  json.RawMessage(`{"eventId":1,"newStatus":"Rejected","group_ids":[3]}`),
		})
		_ = websocket.JSON.Receive(conn, &msg)
	}))
	t.Cleanup(ws.Close)
	t.Cleanup(func() {
		select {
		case <-release:
		default:
			close(release)
		}
	})

	c := newTestClient(
		t,
		WithServerURL(srv.URL),
		WithRealtimeURL("ws"+strings.TrimPrefix(ws.URL, "http")),
		WithRole(schedule.RoleStaff),
		// Only one reconciliation runs, so the snapshot cannot re-add the
		// event after its removal
		WithQuietIntervals(eventsync.QuietIntervals{
			Startup:      time.Hour,
			Invalidation: time.Hour,
		}),
	)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	select {
	case room := <-joined:
		assert.Equal(t, schedule.RoomAllEvents, room)
	case <-time.After(5 * time.Second):
		t.Fatal("real-time channel did not join a room")
	}
	require.Eventually(t, func() bool {
		events, err := c.Events(ctx)
		return err == nil && len(events) == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, realtime.StateConnected, c.Realtime().State())

	close(release)
	require.Eventually(t, func() bool {
		events, err := c.Events(ctx)
		return err == nil && len(events) == 0
	}, 5*time.Second, 10*time.Millisecond)
}
