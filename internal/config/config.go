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

package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "eventlog.config"

const (
	DefaultShutdownTimeout = "30s"
	DefaultRequestTimeout  = "30s"
	DefaultSyncSchedule    = "@every 5m"
	DefaultPushSchedule    = "@every 1m"
	DefaultEnvFile         = ".env"

	envPrefix = "eventlog"
)

var ErrInvalidConfig = errors.New("invalid configuration")

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type Config struct {
	DataDir     string `yaml:"dataDir"     split_words:"true"`
	ServerURL   string `yaml:"serverUrl"   envconfig:"SERVER_URL"`
	RealtimeURL string `yaml:"realtimeUrl" envconfig:"REALTIME_URL"`
	// SessionToken is the bearer token of the signed in user
	SessionToken string `yaml:"sessionToken" split_words:"true"`
	// TokenKey is the passphrase shared with the QR code issuer
	TokenKey        string `yaml:"tokenKey"        split_words:"true"`
	Timezone        string `yaml:"timezone"`
	Role            string `yaml:"role"`
	BindAddr        string `yaml:"bindAddr"        split_words:"true"`
	SyncSchedule    string `yaml:"syncSchedule"    split_words:"true"`
	PushSchedule    string `yaml:"pushSchedule"    split_words:"true"`
	RequestTimeout  string `yaml:"requestTimeout"  split_words:"true"`
	ShutdownTimeout string `yaml:"shutdownTimeout" split_words:"true"`
	GroupID         int64  `yaml:"groupId"         envconfig:"GROUP_ID"`
	MetricsPort     uint   `yaml:"metricsPort"     split_words:"true"`
	Realtime        bool   `yaml:"realtime"`
	Tracing         bool   `yaml:"tracing"`
	TracingStdout   bool   `yaml:"tracingStdout"   split_words:"true"`
	Debug           bool   `yaml:"debug"`
}

// DefaultConfig returns a Config populated with the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		DataDir:         ".eventlog",
		ServerURL:       "http://localhost:3000/api",
		RealtimeURL:     "ws://localhost:3000/socket",
		BindAddr:        "127.0.0.1",
		MetricsPort:     12799,
		SyncSchedule:    DefaultSyncSchedule,
		PushSchedule:    DefaultPushSchedule,
		RequestTimeout:  DefaultRequestTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		Realtime:        true,
	}
}

// LoadConfig layers sources in increasing precedence: defaults, the YAML
// file, a .env file in the working directory, then EVENTLOG_* environment
// variables. Without an explicit configFile, ~/.eventlog/eventlog.yaml and
// /etc/eventlog/eventlog.yaml are tried in that order.
func LoadConfig(configFile string) (*Config, error) {
	cfg := DefaultConfig()
	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	// Values already in the environment win over the .env file
	if err := godotenv.Load(DefaultEnvFile); err != nil &&
		!errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading %s: %w", DefaultEnvFile, err)
	}
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(homeDir, ".eventlog", "eventlog.yaml")
		if _, err := os.Stat(userPath); err == nil {
			return userPath
		}
	}
	systemPath := "/etc/eventlog/eventlog.yaml"
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath
	}
	return ""
}

// Validate checks values that cannot be checked by the decoders
func (c *Config) Validate() error {
	for name, val := range map[string]string{
		"requestTimeout":  c.RequestTimeout,
		"shutdownTimeout": c.ShutdownTimeout,
	} {
		if _, err := time.ParseDuration(val); err != nil {
			return fmt.Errorf("%w: %s %q: %w", ErrInvalidConfig, name, val, err)
		}
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.ServerURL == "" {
		return fmt.Errorf("%w: serverUrl is required", ErrInvalidConfig)
	}
	return nil
}

// Location returns the admission timezone, or the device local zone when
// none is configured
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %w", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// RequestTimeoutDuration returns RequestTimeout, which Validate has
// already checked
func (c *Config) RequestTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.RequestTimeout)
	return d
}

// ShutdownTimeoutDuration returns ShutdownTimeout, which Validate has
// already checked
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}
