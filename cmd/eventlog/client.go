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

package main

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/blinklabs-io/eventlog"
	"github.com/blinklabs-io/eventlog/internal/config"
	"github.com/blinklabs-io/eventlog/schedule"
)

// clientOptions maps the loaded config onto client options
func clientOptions(
	cfg *config.Config,
	logger *slog.Logger,
	reg prometheus.Registerer,
) ([]eventlog.ConfigOptionFunc, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	opts := []eventlog.ConfigOptionFunc{
		eventlog.WithLogger(logger),
		eventlog.WithDataDir(cfg.DataDir),
		eventlog.WithServerURL(cfg.ServerURL),
		eventlog.WithRealtimeURL(cfg.RealtimeURL),
		eventlog.WithRealtime(cfg.Realtime),
		eventlog.WithSessionToken(cfg.SessionToken),
		eventlog.WithTokenKey(cfg.TokenKey),
		eventlog.WithLocation(loc),
		eventlog.WithGroupID(cfg.GroupID),
		eventlog.WithRequestTimeout(cfg.RequestTimeoutDuration()),
		eventlog.WithShutdownTimeout(cfg.ShutdownTimeoutDuration()),
		eventlog.WithTracing(cfg.Tracing),
		eventlog.WithTracingStdout(cfg.TracingStdout),
	}
	// An empty role is taken from the session token
	if cfg.Role != "" {
		opts = append(opts, eventlog.WithRole(schedule.ParseRole(cfg.Role)))
	}
	if reg != nil {
		opts = append(opts, eventlog.WithPrometheusRegistry(reg))
	}
	return opts, nil
}

func newClient(
	cfg *config.Config,
	logger *slog.Logger,
	reg prometheus.Registerer,
	extra ...eventlog.ConfigOptionFunc,
) (*eventlog.Client, error) {
	opts, err := clientOptions(cfg, logger, reg)
	if err != nil {
		return nil, err
	}
	return eventlog.New(eventlog.NewConfig(append(opts, extra...)...))
}
