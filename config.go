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
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/blinklabs-io/eventlog/attendance"
	"github.com/blinklabs-io/eventlog/eventsync"
	"github.com/blinklabs-io/eventlog/realtime"
	"github.com/blinklabs-io/eventlog/schedule"
)

// Remote is the server the client reconciles against and pushes marks to
type Remote interface {
	eventsync.Fetcher
	attendance.Remote
}

var (
	ErrNoTokenKey = errors.New("no token key configured")
	ErrNoServer   = errors.New("no server URL or remote configured")
)

type Config struct {
	promRegistry    prometheus.Registerer
	logger          *slog.Logger
	location        *time.Location
	httpClient      *http.Client
	remote          Remote
	dialer          realtime.Dialer
	clock           realtime.Clock
	dataDir         string
	serverURL       string
	realtimeURL     string
	sessionToken    string
	tokenKey        string
	role            schedule.Role
	quiet           eventsync.QuietIntervals
	groupID         int64
	requestTimeout  time.Duration
	shutdownTimeout time.Duration
	tracing         bool
	tracingStdout   bool
	realtime        bool
}

func (c *Config) validate() error {
	if c.tokenKey == "" {
		return ErrNoTokenKey
	}
	if c.remote == nil && c.serverURL == "" {
		return ErrNoServer
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the Client config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new eventlog config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
		realtime: true,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLogger specifies the logger to use
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithDataDir specifies the persistent data directory to use. The default is to store everything in memory
func WithDataDir(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithServerURL specifies the base URL of the event server REST API
func WithServerURL(serverURL string) ConfigOptionFunc {
	return func(c *Config) {
		c.serverURL = serverURL
	}
}

// WithRealtimeURL specifies the websocket URL of the real-time channel
func WithRealtimeURL(realtimeURL string) ConfigOptionFunc {
	return func(c *Config) {
		c.realtimeURL = realtimeURL
	}
}

// WithRealtime enables or disables the real-time channel. It is enabled by default
func WithRealtime(enabled bool) ConfigOptionFunc {
	return func(c *Config) {
		c.realtime = enabled
	}
}

// WithSessionToken specifies the bearer token of the signed in user. The
// role and group are read from it unless set explicitly
func WithSessionToken(token string) ConfigOptionFunc {
	return func(c *Config) {
		c.sessionToken = token
	}
}

// WithTokenKey specifies the passphrase shared with the QR code issuer
func WithTokenKey(key string) ConfigOptionFunc {
	return func(c *Config) {
		c.tokenKey = key
	}
}

// WithLocation specifies the timezone admission windows are evaluated in. The default is the local zone
func WithLocation(loc *time.Location) ConfigOptionFunc {
	return func(c *Config) {
		c.location = loc
	}
}

// WithRole overrides the role read from the session token
func WithRole(role schedule.Role) ConfigOptionFunc {
	return func(c *Config) {
		c.role = role
	}
}

// WithGroupID overrides the group read from the session token
func WithGroupID(groupID int64) ConfigOptionFunc {
	return func(c *Config) {
		c.groupID = groupID
	}
}

// WithRequestTimeout bounds every request to the event server
func WithRequestTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.requestTimeout = timeout
	}
}

// WithShutdownTimeout bounds the final attendance flush in Stop
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}

// WithHTTPClient specifies the HTTP client used for the event server
func WithHTTPClient(hc *http.Client) ConfigOptionFunc {
	return func(c *Config) {
		c.httpClient = hc
	}
}

// WithRemote replaces the REST client with another Remote implementation
func WithRemote(remote Remote) ConfigOptionFunc {
	return func(c *Config) {
		c.remote = remote
	}
}

// WithDialer replaces the websocket dialer of the real-time channel
func WithDialer(dialer realtime.Dialer) ConfigOptionFunc {
	return func(c *Config) {
		c.dialer = dialer
	}
}

// WithClock specifies the timer source of the real-time channel
func WithClock(clock realtime.Clock) ConfigOptionFunc {
	return func(c *Config) {
		c.clock = clock
	}
}

// WithQuietIntervals overrides the per-source sync quiet intervals
func WithQuietIntervals(quiet eventsync.QuietIntervals) ConfigOptionFunc {
	return func(c *Config) {
		c.quiet = quiet
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) OTLP collector at localhost:4318 (or the
// value of the OTEL_EXPORTER_OTLP_TRACES_ENDPOINT env var)
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}
