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

// Package realtime maintains the push channel that tells the device when its
// event cache has gone stale.
package realtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/blinklabs-io/eventlog/event"
	"github.com/blinklabs-io/eventlog/eventsync"
	"github.com/blinklabs-io/eventlog/schedule"
)

var ErrNoDialer = errors.New("realtime: no dialer configured")

// Conn is an open channel. Send may be called concurrently with Receive.
type Conn interface {
	Send(msg Message) error
	Receive(msg *Message) error
	Close() error
}

// Dialer opens a Conn
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Syncer runs a reconciliation
type Syncer interface {
	Trigger(ctx context.Context, src eventsync.Source) (eventsync.Result, error)
}

// Remover drops a single event from the cache
type Remover interface {
	Remove(ctx context.Context, eventID int64) (bool, error)
}

// Config holds the dependencies and tuning of a Bus
type Config struct {
	Dialer       Dialer
	Sync         Syncer
	Cache        Remover
	Clock        Clock
	EventBus     *event.EventBus
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// OnConnected is called after every successful (re)connect
	OnConnected    func()
	Role           schedule.Role
	Backoff        Backoff
	ConnectTimeout time.Duration
	Debounce       time.Duration
	GroupID        int64
}

// Bus owns the channel lifecycle and turns inbound messages into cache
// invalidations
type Bus struct {
	config   Config
	logger   *slog.Logger
	metrics  *busMetrics
	ctx      context.Context
	cancel   context.CancelFunc
	conn     Conn
	retry    Timer
	debounce Timer
	role     schedule.Role
	rooms    []string
	pending  []string
	wg       sync.WaitGroup
	gen      uint64
	failures int
	groupID  int64
	mu       sync.Mutex
	state    State
	stopped  bool
}

func New(cfg Config) (*Bus, error) {
	if cfg.Dialer == nil {
		return nil, ErrNoDialer
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	cfg.Backoff = cfg.Backoff.withDefaults()
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	b := &Bus{
		config:  cfg,
		logger:  logger.With("component", "realtime"),
		role:    cfg.Role,
		groupID: cfg.GroupID,
		rooms:   schedule.Rooms(cfg.Role, cfg.GroupID),
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	if cfg.PromRegistry != nil {
		b.metrics = newBusMetrics(cfg.PromRegistry)
	}
	return b, nil
}

// State returns the current connection state
func (b *Bus) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Rooms returns the rooms the bus joins on every connect
func (b *Bus) Rooms() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.rooms)
}

// Connect starts dialing with a fresh attempt budget. It is a no-op unless
// the bus is disconnected.
func (b *Bus) Connect() {
	b.mu.Lock()
	if b.stopped || b.state != StateDisconnected {
		b.mu.Unlock()
		return
	}
	b.failures = 0
	b.stopTimer(&b.retry)
	b.startDialLocked()
	b.mu.Unlock()
	b.publishState(StateConnecting, 0)
}

// JoinRoom joins room now when connected, otherwise on the next connect
func (b *Bus) JoinRoom(room string) {
	b.mu.Lock()
	if slices.Contains(b.rooms, room) || slices.Contains(b.pending, room) {
		b.mu.Unlock()
		return
	}
	if b.state != StateConnected {
		b.pending = append(b.pending, room)
		b.mu.Unlock()
		return
	}
	b.rooms = append(b.rooms, room)
	conn := b.conn
	b.mu.Unlock()
	b.send(conn, roomMessage(MessageJoinRoom, room))
}

// LeaveRoom stops joining room and leaves it if connected
func (b *Bus) LeaveRoom(room string) {
	b.mu.Lock()
	b.pending = slices.DeleteFunc(b.pending, func(r string) bool { return r == room })
	idx := slices.Index(b.rooms, room)
	if idx < 0 {
		b.mu.Unlock()
		return
	}
	b.rooms = slices.Delete(b.rooms, idx, idx+1)
	var conn Conn
	if b.state == StateConnected {
		conn = b.conn
	}
	b.mu.Unlock()
	if conn != nil {
		b.send(conn, roomMessage(MessageLeaveRoom, room))
	}
}

// SetScope replaces the standing rooms and the relevance filter, e.g. after
// a different user signs in
func (b *Bus) SetScope(role schedule.Role, groupID int64) {
	b.mu.Lock()
	oldRooms := schedule.Rooms(b.role, b.groupID)
	newRooms := schedule.Rooms(role, groupID)
	b.role = role
	b.groupID = groupID
	var leave, join []string
	for _, r := range oldRooms {
		if !slices.Contains(newRooms, r) {
			leave = append(leave, r)
		}
	}
	for _, r := range newRooms {
		if !slices.Contains(b.rooms, r) {
			join = append(join, r)
		}
	}
	b.rooms = slices.DeleteFunc(b.rooms, func(r string) bool {
		return slices.Contains(leave, r)
	})
	var conn Conn
	if b.state == StateConnected {
		conn = b.conn
		b.rooms = append(b.rooms, join...)
	} else {
		for _, r := range join {
			if !slices.Contains(b.pending, r) {
				b.pending = append(b.pending, r)
			}
		}
	}
	b.mu.Unlock()
	if conn == nil {
		return
	}
	for _, r := range leave {
		b.send(conn, roomMessage(MessageLeaveRoom, r))
	}
	for _, r := range join {
		b.send(conn, roomMessage(MessageJoinRoom, r))
	}
}

// Stop closes the channel and waits for background work. The bus cannot be
// restarted.
func (b *Bus) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	b.stopTimer(&b.retry)
	b.stopTimer(&b.debounce)
	conn := b.conn
	b.conn = nil
	b.state = StateDisconnected
	b.gen++
	b.mu.Unlock()
	b.cancel()
	if conn != nil {
		_ = conn.Close()
	}
	b.wg.Wait()
	b.metrics.setState(StateDisconnected)
}

func (b *Bus) stopTimer(t *Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// startDialLocked must be called with b.mu held
func (b *Bus) startDialLocked() {
	b.state = StateConnecting
	b.gen++
	gen := b.gen
	b.wg.Add(1)
	go b.dial(gen)
}

func (b *Bus) retryDial() {
	b.mu.Lock()
	b.retry = nil
	if b.stopped || b.state != StateDisconnected {
		b.mu.Unlock()
		return
	}
	attempt := b.failures
	b.startDialLocked()
	b.mu.Unlock()
	b.metrics.reconnect()
	b.publishState(StateConnecting, attempt)
}

func (b *Bus) dial(gen uint64) {
	defer b.wg.Done()
	ctx, cancel := context.WithTimeout(b.ctx, b.config.ConnectTimeout)
	conn, err := b.config.Dialer.Dial(ctx)
	cancel()
	b.mu.Lock()
	if b.stopped || gen != b.gen {
		b.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		b.failures++
		b.state = StateDisconnected
		failures := b.failures
		if failures < b.config.Backoff.MaxAttempts {
			delay := b.config.Backoff.Delay(failures)
			b.retry = b.config.Clock.AfterFunc(delay, b.retryDial)
			b.mu.Unlock()
			b.logger.Warn(
				"real-time connect failed, will retry",
				"error", err,
				"attempt", failures,
				"delay", delay,
			)
		} else {
			b.mu.Unlock()
			b.logger.Error(
				"real-time connect failed, giving up",
				"error", err,
				"attempts", failures,
			)
		}
		b.publishState(StateDisconnected, failures)
		return
	}
	b.conn = conn
	b.state = StateConnected
	b.failures = 0
	for _, r := range b.pending {
		if !slices.Contains(b.rooms, r) {
			b.rooms = append(b.rooms, r)
		}
	}
	b.pending = nil
	rooms := slices.Clone(b.rooms)
	b.wg.Add(1)
	go b.readLoop(gen, conn)
	b.mu.Unlock()
	b.logger.Info("real-time channel connected", "rooms", rooms)
	for _, r := range rooms {
		b.send(conn, roomMessage(MessageJoinRoom, r))
	}
	b.publishState(StateConnected, 0)
	if b.config.OnConnected != nil {
		b.config.OnConnected()
	}
}

func (b *Bus) send(conn Conn, msg Message) {
	if err := conn.Send(msg); err != nil {
		b.logger.Warn(
			"real-time send failed",
			"error", err,
			"message", msg.Event,
		)
	}
}

func (b *Bus) readLoop(gen uint64, conn Conn) {
	defer b.wg.Done()
	for {
		var msg Message
		if err := conn.Receive(&msg); err != nil {
			b.dropped(gen, err)
			return
		}
		b.handle(msg)
	}
}

// dropped schedules a reconnect with a fresh attempt budget
func (b *Bus) dropped(gen uint64, err error) {
	b.mu.Lock()
	if b.stopped || gen != b.gen {
		b.mu.Unlock()
		return
	}
	conn := b.conn
	b.conn = nil
	b.state = StateDisconnected
	b.failures = 0
	b.retry = b.config.Clock.AfterFunc(b.config.Backoff.Delay(1), b.retryDial)
	b.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	b.logger.Warn("real-time channel dropped", "error", err)
	b.publishState(StateDisconnected, 0)
}

func (b *Bus) handle(msg Message) {
	b.mu.Lock()
	role, groupID := b.role, b.groupID
	b.mu.Unlock()
	d, err := decide(msg, role, groupID)
	if err != nil {
		b.metrics.message(msg.Event, "invalid")
		b.logger.Warn(
			"ignoring malformed real-time message",
			"error", err,
			"message", msg.Event,
		)
		return
	}
	switch d.action {
	case actionIgnore:
		b.metrics.message(msg.Event, "ignored")
	case actionRemove:
		b.metrics.message(msg.Event, "removed")
		if b.config.Cache == nil {
			return
		}
		if _, err := b.config.Cache.Remove(b.ctx, d.eventID); err != nil {
			b.logger.Error(
				"failed to remove event from cache",
				"error", err,
				"event_id", d.eventID,
			)
		}
	case actionInvalidate:
		b.metrics.message(msg.Event, "invalidated")
		b.invalidate()
	}
}

// invalidate restarts the debounce timer so a burst of messages yields one
// sync
func (b *Bus) invalidate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.stopTimer(&b.debounce)
	b.debounce = b.config.Clock.AfterFunc(b.config.Debounce, b.fireInvalidation)
}

func (b *Bus) fireInvalidation() {
	b.mu.Lock()
	b.debounce = nil
	if b.stopped || b.config.Sync == nil {
		b.mu.Unlock()
		return
	}
	b.wg.Add(1)
	b.mu.Unlock()
	defer b.wg.Done()
	if _, err := b.config.Sync.Trigger(b.ctx, eventsync.SourceInvalidation); err != nil {
		b.logger.Warn("invalidation sync failed", "error", err)
	}
}

func (b *Bus) publishState(state State, attempt int) {
	b.metrics.setState(state)
	if b.config.EventBus == nil {
		return
	}
	b.config.EventBus.Publish(
		event.NewEvent(
			event.RealtimeStateEventType,
			event.RealtimeStateEvent{State: state.String(), Attempt: attempt},
		),
	)
}
