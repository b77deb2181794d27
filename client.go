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

// Package eventlog is an offline-first attendance admission engine. A Client
// keeps a local cache of approved events reconciled against the event
// server, admits scanned QR tokens against it without network access, and
// pushes recorded attendance back when the server is reachable.
package eventlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/blinklabs-io/eventlog/admission"
	"github.com/blinklabs-io/eventlog/attendance"
	"github.com/blinklabs-io/eventlog/cache"
	"github.com/blinklabs-io/eventlog/database"
	"github.com/blinklabs-io/eventlog/event"
	"github.com/blinklabs-io/eventlog/eventsync"
	"github.com/blinklabs-io/eventlog/internal/dirlock"
	"github.com/blinklabs-io/eventlog/internal/session"
	"github.com/blinklabs-io/eventlog/internal/version"
	"github.com/blinklabs-io/eventlog/realtime"
	"github.com/blinklabs-io/eventlog/remote"
	"github.com/blinklabs-io/eventlog/report"
	"github.com/blinklabs-io/eventlog/schedule"
	"github.com/blinklabs-io/eventlog/token"
	"github.com/blinklabs-io/eventlog/window"
)

const defaultShutdownTimeout = 30 * time.Second

type Client struct {
	ctx           context.Context
	cancel        context.CancelFunc
	eventBus      *event.EventBus
	lock          *dirlock.Lock
	db            *database.Database
	codec         *token.Codec
	resolver      *window.Resolver
	cache         *cache.Store
	outbox        *attendance.Outbox
	ledger        *attendance.Ledger
	pusher        *attendance.Pusher
	scheduler     *eventsync.Scheduler
	bus           *realtime.Bus
	admitter      *admission.Admitter
	shutdownFuncs []func(context.Context) error
	config        Config
	shutdownOnce  sync.Once
}

// New opens the local stores and wires every component. Nothing touches the
// network until Start.
func New(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.sessionToken != "" {
		sess, err := session.Parse(cfg.sessionToken)
		if err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		if cfg.role == "" {
			cfg.role = sess.Role
		}
		if cfg.groupID == 0 {
			cfg.groupID = sess.GroupID
		}
	}
	if cfg.role == "" {
		cfg.role = schedule.RoleSubject
	}
	c := &Client{
		config:   cfg,
		eventBus: event.NewEventBus(cfg.promRegistry, cfg.logger),
		resolver: window.NewResolver(cfg.location),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	if err := c.init(); err != nil {
		_ = c.Stop()
		return nil, err
	}
	return c, nil
}

func (c *Client) init() error {
	cfg := c.config
	if cfg.tracing {
		if err := c.setupTracing(); err != nil {
			return err
		}
	}
	if cfg.dataDir != "" {
		lock, err := dirlock.Acquire(cfg.dataDir)
		if err != nil {
			return fmt.Errorf("failed to lock data directory: %w", err)
		}
		c.lock = lock
	}
	db, err := database.New(&database.Config{
		DataDir:      cfg.dataDir,
		Logger:       cfg.logger,
		PromRegistry: cfg.promRegistry,
		Tracing:      cfg.tracing,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	c.db = db
	c.codec, err = token.NewCodecFromPassphrase(cfg.tokenKey)
	if err != nil {
		return fmt.Errorf("invalid token key: %w", err)
	}
	c.cache, err = cache.New(cache.Config{
		DB:           c.db,
		EventBus:     c.eventBus,
		Logger:       cfg.logger,
		PromRegistry: cfg.promRegistry,
	})
	if err != nil {
		return err
	}
	rem := cfg.remote
	if rem == nil {
		opts := []remote.ClientOption{
			remote.WithToken(cfg.sessionToken),
			remote.WithUserAgent("eventlog/" + version.GetVersionString()),
		}
		if cfg.httpClient != nil {
			opts = append(opts, remote.WithHTTPClient(cfg.httpClient))
		}
		if cfg.requestTimeout > 0 {
			opts = append(opts, remote.WithTimeout(cfg.requestTimeout))
		}
		rem = remote.NewClient(cfg.serverURL, opts...)
	}
	c.outbox = attendance.NewOutbox(
		c.db.Blob(),
		attendance.WithOutboxLogger(cfg.logger),
	)
	c.pusher = attendance.NewPusher(attendance.PusherConfig{
		Outbox:   c.outbox,
		Remote:   rem,
		EventBus: c.eventBus,
		Logger:   cfg.logger,
		Timeout:  cfg.requestTimeout,
	})
	c.ledger, err = attendance.NewLedger(attendance.LedgerConfig{
		DB:           c.db,
		Outbox:       c.outbox,
		Logger:       cfg.logger,
		PromRegistry: cfg.promRegistry,
		OnLogged:     func(attendance.Mark) { c.pusher.Kick() },
	})
	if err != nil {
		return err
	}
	c.scheduler = eventsync.New(eventsync.Config{
		Remote:       rem,
		Cache:        c.cache,
		EventBus:     c.eventBus,
		Logger:       cfg.logger,
		PromRegistry: cfg.promRegistry,
		Quiet:        cfg.quiet,
		GroupID:      cfg.groupID,
	})
	c.admitter, err = admission.New(admission.Config{
		Codec:        c.codec,
		Cache:        c.cache,
		Ledger:       c.ledger,
		Resolver:     c.resolver,
		EventBus:     c.eventBus,
		Logger:       cfg.logger,
		PromRegistry: cfg.promRegistry,
	})
	if err != nil {
		return err
	}
	dialer := cfg.dialer
	if dialer == nil && cfg.realtimeURL != "" {
		dialer = &realtime.WebsocketDialer{
			URL:   cfg.realtimeURL,
			Token: cfg.sessionToken,
		}
	}
	if cfg.realtime && dialer != nil {
		c.bus, err = realtime.New(realtime.Config{
			Dialer:       dialer,
			Sync:         c.scheduler,
			Cache:        c.cache,
			Clock:        cfg.clock,
			EventBus:     c.eventBus,
			Logger:       cfg.logger,
			PromRegistry: cfg.promRegistry,
			Role:         cfg.role,
			GroupID:      cfg.groupID,
			// Messages may have been missed while disconnected
			OnConnected: func() {
				_, _ = c.scheduler.Trigger(c.ctx, eventsync.SourceInvalidation)
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Start begins background delivery of attendance, connects the real-time
// channel and runs the startup reconciliation. A failed startup fetch is
// not an error: the client serves the persisted cache and retries on the
// next trigger.
func (c *Client) Start(ctx context.Context) error {
	if err := c.pusher.Start(); err != nil {
		return err
	}
	// Marks left over from a previous run
	c.pusher.Kick()
	if c.bus != nil {
		c.bus.Connect()
	}
	res, err := c.scheduler.Trigger(ctx, eventsync.SourceStartup)
	if err != nil {
		if errors.Is(err, eventsync.ErrFetch) {
			c.config.logger.Warn(
				"startup sync failed, serving cached events",
				"error", err,
				"events", len(res.Events),
			)
			return nil
		}
		return err
	}
	return nil
}

// Resume is called when the host application returns to the foreground. It
// reconnects the real-time channel with a fresh attempt budget and
// reconciles if the quiet interval has passed.
func (c *Client) Resume(ctx context.Context) (eventsync.Result, error) {
	if c.bus != nil {
		c.bus.Connect()
	}
	return c.scheduler.Trigger(ctx, eventsync.SourceFocus)
}

// Sync runs a manual reconciliation
func (c *Client) Sync(ctx context.Context) (eventsync.Result, error) {
	return c.scheduler.Trigger(ctx, eventsync.SourceManual)
}

// SyncPeriodic runs the periodic safety-net reconciliation
func (c *Client) SyncPeriodic(ctx context.Context) (eventsync.Result, error) {
	return c.scheduler.Trigger(ctx, eventsync.SourcePeriodic)
}

// Events returns the approved events in the local cache
func (c *Client) Events(ctx context.Context) ([]schedule.Event, error) {
	return c.cache.ReadApproved(ctx)
}

// Admit checks a scanned token and records the mark
func (c *Client) Admit(ctx context.Context, tok string, now time.Time) (admission.Outcome, error) {
	return c.admitter.Admit(ctx, tok, now)
}

// IssueToken encrypts the QR payload for a subject at an occurrence
func (c *Client) IssueToken(occurrenceID int64, subjectID string) (string, error) {
	return c.codec.EncodePayload(token.Payload{
		OccurrenceID: occurrenceID,
		SubjectID:    subjectID,
	})
}

// DecodeToken decrypts a QR token without admitting it
func (c *Client) DecodeToken(tok string) (token.Payload, error) {
	return c.codec.DecodePayload(tok)
}

// FlushAttendance pushes queued marks now and returns how many the server
// accepted
func (c *Client) FlushAttendance(ctx context.Context) (int, error) {
	return c.pusher.Flush(ctx)
}

// PendingAttendance returns the number of marks not yet pushed
func (c *Client) PendingAttendance() (int, error) {
	return c.outbox.Len()
}

// Logout forgets the cached events and the sync state of the current user.
// Marks not yet pushed stay queued.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.cache.Clear(ctx); err != nil {
		return err
	}
	c.scheduler.Reset()
	c.scheduler.SetGroupID(0)
	if c.bus != nil {
		c.bus.SetScope(schedule.RoleSubject, 0)
	}
	return nil
}

// ExportAttendance writes the attendance of every cached occurrence as a
// spreadsheet
func (c *Client) ExportAttendance(ctx context.Context, w io.Writer) error {
	rows, err := c.attendanceRows(ctx)
	if err != nil {
		return err
	}
	return report.WriteAttendanceXLSX(w, rows, c.resolver.Location)
}

// ExportAttendancePDF writes the same sheet as ExportAttendance as a PDF
func (c *Client) ExportAttendancePDF(ctx context.Context, w io.Writer) error {
	rows, err := c.attendanceRows(ctx)
	if err != nil {
		return err
	}
	return report.WriteAttendancePDF(w, rows, c.resolver.Location)
}

func (c *Client) attendanceRows(ctx context.Context) ([]report.AttendanceRow, error) {
	events, err := c.cache.ReadApproved(ctx)
	if err != nil {
		return nil, err
	}
	var rows []report.AttendanceRow
	for _, ev := range events {
		occs, err := ev.Occurrences()
		if err != nil {
			return nil, err
		}
		for _, occ := range occs {
			records, err := c.ledger.Marks(ctx, occ.ID)
			if err != nil {
				return nil, err
			}
			for _, rec := range records {
				rows = append(rows, report.AttendanceRow{
					Event:      ev,
					Occurrence: occ,
					Record:     rec,
				})
			}
		}
	}
	report.SortRows(rows)
	return rows, nil
}

// ExportCalendar writes the cached occurrences as an iCalendar
func (c *Client) ExportCalendar(ctx context.Context, w io.Writer) error {
	events, err := c.cache.ReadApproved(ctx)
	if err != nil {
		return err
	}
	return report.WriteCalendar(w, events, c.resolver.Location)
}

// EventBus returns the bus the client publishes notifications on
func (c *Client) EventBus() *event.EventBus {
	return c.eventBus
}

// Realtime returns the real-time channel, or nil when it is disabled
func (c *Client) Realtime() *realtime.Bus {
	return c.bus
}

// Stop shuts the client down. Queued marks get one last push attempt
// bounded by the shutdown timeout.
func (c *Client) Stop() error {
	var err error
	c.shutdownOnce.Do(func() {
		err = c.shutdown()
	})
	return err
}

func (c *Client) shutdown() error {
	shutdownTimeout := defaultShutdownTimeout
	if c.config.shutdownTimeout > 0 {
		shutdownTimeout = c.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error
	c.config.logger.Debug("starting graceful shutdown")

	// Stop accepting new work
	if c.bus != nil {
		c.bus.Stop()
	}
	c.cancel()
	if c.pusher != nil {
		c.pusher.Stop()
		if _, pushErr := c.pusher.Flush(ctx); pushErr != nil {
			c.config.logger.Warn(
				"attendance left queued at shutdown",
				"error", pushErr,
			)
		}
	}

	for _, fn := range c.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	c.shutdownFuncs = nil

	if c.db != nil {
		if closeErr := c.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}
	if c.lock != nil {
		if lockErr := c.lock.Release(); lockErr != nil {
			err = errors.Join(err, fmt.Errorf("data directory unlock: %w", lockErr))
		}
	}
	if c.eventBus != nil {
		c.eventBus.Stop()
	}
	c.config.logger.Debug("graceful shutdown complete")
	return err
}
