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

// Package admission turns a scanned token into an attendance mark.
//
// A scan passes through four gates in order: the token must decrypt and
// parse, its occurrence must be an approved event in the local cache dated
// today, the scan time must fall inside one of the event's windows, and the
// subject must not already be logged for that window.
package admission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/blinklabs-io/eventlog/attendance"
	"github.com/blinklabs-io/eventlog/cache"
	"github.com/blinklabs-io/eventlog/event"
	"github.com/blinklabs-io/eventlog/schedule"
	"github.com/blinklabs-io/eventlog/token"
	"github.com/blinklabs-io/eventlog/window"
)

var (
	ErrUnknownOccurrence = errors.New("occurrence is not an approved cached event")
	ErrWrongDate         = errors.New("occurrence is not scheduled for today")
	ErrMissingComponent  = errors.New("admission: missing component")
)

// Decoder decrypts and parses a scanned token
type Decoder interface {
	DecodePayload(tok string) (token.Payload, error)
}

// Finder looks up an occurrence in the local event cache
type Finder interface {
	FindOccurrence(ctx context.Context, occurrenceID int64) (schedule.Event, schedule.Occurrence, error)
}

// Recorder persists attendance marks
type Recorder interface {
	Log(
		ctx context.Context,
		occurrenceID int64,
		subjectID string,
		t window.Type,
		at time.Time,
	) (attendance.Mark, error)
}

type Config struct {
	Codec        Decoder
	Cache        Finder
	Ledger       Recorder
	Resolver     *window.Resolver
	EventBus     *event.EventBus
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
}

// Outcome describes an accepted scan
type Outcome struct {
	Event      schedule.Event
	Occurrence schedule.Occurrence
	Mark       attendance.Mark
}

type Admitter struct {
	codec    Decoder
	cache    Finder
	ledger   Recorder
	resolver *window.Resolver
	eventBus *event.EventBus
	logger   *slog.Logger
	metrics  *admissionMetrics
}

func New(cfg Config) (*Admitter, error) {
	if cfg.Codec == nil || cfg.Cache == nil || cfg.Ledger == nil {
		return nil, ErrMissingComponent
	}
	if cfg.Resolver == nil {
		cfg.Resolver = window.NewResolver(nil)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	a := &Admitter{
		codec:    cfg.Codec,
		cache:    cfg.Cache,
		ledger:   cfg.Ledger,
		resolver: cfg.Resolver,
		eventBus: cfg.EventBus,
		logger:   logger.With("component", "admission"),
	}
	if cfg.PromRegistry != nil {
		a.metrics = newAdmissionMetrics(cfg.PromRegistry)
	}
	return a, nil
}

// Admit runs a scan through every gate and records the mark. The returned
// error is one of token.ErrDecrypt, token.ErrFormat, ErrUnknownOccurrence,
// ErrWrongDate, *window.OutsideWindowError, attendance.ErrAlreadyLogged or a
// store fault wrapping database.ErrStore.
func (a *Admitter) Admit(ctx context.Context, tok string, now time.Time) (Outcome, error) {
	ret, err := a.admit(ctx, tok, now)
	a.metrics.outcome(err)
	if err != nil {
		a.logger.Debug("scan refused", "error", err)
		return Outcome{}, err
	}
	a.logger.Info(
		"scan admitted",
		"event_id", ret.Event.ID,
		"occurrence_id", ret.Occurrence.ID,
		"subject_id", ret.Mark.SubjectID,
		"window", ret.Mark.Window.String(),
	)
	if a.eventBus != nil {
		a.eventBus.Publish(
			event.NewEvent(
				event.AdmittedEventType,
				event.AdmittedEvent{
					At:           ret.Mark.At,
					SubjectID:    ret.Mark.SubjectID,
					EventName:    ret.Event.Name,
					EventID:      ret.Event.ID,
					OccurrenceID: ret.Occurrence.ID,
					Window:       ret.Mark.Window,
				},
			),
		)
	}
	return ret, nil
}

func (a *Admitter) admit(ctx context.Context, tok string, now time.Time) (Outcome, error) {
	payload, err := a.codec.DecodePayload(tok)
	if err != nil {
		return Outcome{}, err
	}
	ev, occ, err := a.cache.FindOccurrence(ctx, payload.OccurrenceID)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return Outcome{}, fmt.Errorf("%w: %w", ErrUnknownOccurrence, err)
		}
		return Outcome{}, err
	}
	if today := a.resolver.Date(now); occ.Date != today {
		return Outcome{}, fmt.Errorf(
			"%w: occurrence %d is on %s, today is %s",
			ErrWrongDate,
			occ.ID,
			occ.Date,
			today,
		)
	}
	t, err := a.resolver.Resolve(ev.Windows, ev.Duration, now)
	if err != nil {
		return Outcome{}, err
	}
	mark, err := a.ledger.Log(ctx, occ.ID, payload.SubjectID, t, now)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Event: ev, Occurrence: occ, Mark: mark}, nil
}
