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

package attendance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/eventlog/event"
)

const (
	DefaultPushBatchSize = 50
	DefaultPushTimeout   = 30 * time.Second
)

// Remote delivers a mark to the server
type Remote interface {
	PushAttendance(ctx context.Context, m Mark) error
}

var ErrPusherStopped = errors.New("attendance pusher stopped")

// PusherConfig holds the options of a Pusher
type PusherConfig struct {
	Outbox    *Outbox
	Remote    Remote
	EventBus  *event.EventBus
	Logger    *slog.Logger
	BatchSize int
	// Timeout bounds a single background flush
	Timeout time.Duration
}

// Pusher delivers queued marks best-effort. Entries are removed only after
// the server accepted them, and a failure leaves the rest for the next flush.
type Pusher struct {
	config   PusherConfig
	logger   *slog.Logger
	kickCh   chan struct{}
	stopCh   chan struct{}
	wg       sync.WaitGroup
	flushMu  sync.Mutex
	startMu  sync.Mutex
	started  bool
	stopOnce sync.Once
}

func NewPusher(cfg PusherConfig) *Pusher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultPushBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultPushTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Pusher{
		config: cfg,
		logger: logger.With("component", "attendance"),
		kickCh: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
}

// Flush pushes queued marks until the outbox is empty or a push fails. It
// returns the number of marks delivered.
func (p *Pusher) Flush(ctx context.Context) (int, error) {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()
	pushed := 0
	for {
		entries, err := p.config.Outbox.Pending(p.config.BatchSize)
		if err != nil {
			return pushed, err
		}
		if len(entries) == 0 {
			break
		}
		var acked []OutboxEntry
		var pushErr error
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				pushErr = err
				break
			}
			if err := p.config.Remote.PushAttendance(ctx, entry.Mark); err != nil {
				pushErr = err
				break
			}
			acked = append(acked, entry)
		}
		if err := p.config.Outbox.Ack(acked...); err != nil {
			return pushed, err
		}
		pushed += len(acked)
		if pushErr != nil {
			p.logger.Warn(
				"failed to push attendance, will retry",
				"pushed", pushed,
				"error", pushErr,
			)
			p.published(pushed)
			return pushed, pushErr
		}
	}
	if pushed > 0 {
		p.logger.Info("pushed attendance", "count", pushed)
		p.published(pushed)
	}
	return pushed, nil
}

func (p *Pusher) published(pushed int) {
	if p.config.EventBus == nil || pushed == 0 {
		return
	}
	remaining, _ := p.config.Outbox.Len()
	p.config.EventBus.Publish(event.NewEvent(
		event.AttendancePushedEventType,
		event.AttendancePushedEvent{Pushed: pushed, Remaining: remaining},
	))
}

// Kick schedules a background flush. It never blocks.
func (p *Pusher) Kick() {
	select {
	case p.kickCh <- struct{}{}:
	default:
	}
}

// Start runs the background flush loop driven by Kick
func (p *Pusher) Start() error {
	p.startMu.Lock()
	defer p.startMu.Unlock()
	select {
	case <-p.stopCh:
		return ErrPusherStopped
	default:
	}
	if p.started {
		return nil
	}
	p.started = true
	p.wg.Add(1)
	go p.loop()
	return nil
}

func (p *Pusher) loop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case <-p.kickCh:
		}
		ctx, cancel := context.WithTimeout(context.Background(), p.config.Timeout)
		go func() {
			// Abort an in-flight push on shutdown
			select {
			case <-p.stopCh:
				cancel()
			case <-ctx.Done():
			}
		}()
		_, _ = p.Flush(ctx)
		cancel()
	}
}

// Stop ends the background loop and waits for an in-flight flush
func (p *Pusher) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	p.wg.Wait()
}
