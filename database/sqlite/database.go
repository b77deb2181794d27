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
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/blinklabs-io/eventlog/database/models"
	"github.com/blinklabs-io/eventlog/database/types"
)

const dbFileName = "eventlog.sqlite"

// Store is the SQLite backed relational store for cached events and the
// attendance ledger. All access goes through a single connection, so a
// transaction in progress blocks other callers instead of failing with
// SQLITE_BUSY.
type Store struct {
	promRegistry prometheus.Registerer
	db           *gorm.DB
	logger       *slog.Logger
	metrics      *storeMetrics
	timerVacuum  *time.Timer
	timerMutex   sync.Mutex
	dataDir      string
	closed       bool
	vacuumWG     sync.WaitGroup
	tracing      bool
}

// New creates a SQLite store. Uses an in-memory database if no data dir is given.
func New(opts ...SqliteOptionFunc) (*Store, error) {
	d := &Store{}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	var dsn string
	if d.dataDir == "" {
		// Each in-memory store gets its own name so that parallel tests do not
		// share state through the shared cache
		dsn = fmt.Sprintf(
			"file:memdb-%s?mode=memory&cache=shared",
			uuid.NewString(),
		)
	} else {
		// Make sure that we can read data dir, and create if it doesn't exist
		if _, err := os.Stat(d.dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(d.dataDir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		// WAL journal mode, full sync so that a logged mark survives power loss
		connOpts := "_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=cache_size(-20000)&_pragma=busy_timeout(5000)"
		dsn = fmt.Sprintf(
			"file:%s?%s",
			filepath.Join(d.dataDir, dbFileName),
			connOpts,
		)
	}
	db, err := gorm.Open(
		sqlite.Open(dsn),
		&gorm.Config{
			Logger:                 gormlogger.Discard,
			SkipDefaultTransaction: true,
		},
	)
	if err != nil {
		return nil, err
	}
	d.db = db
	if err := d.init(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Store) init() error {
	sqlDb, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	sqlDb.SetMaxOpenConns(1)
	if d.tracing {
		// Configure tracing for GORM
		if err := d.db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return err
		}
	}
	if d.promRegistry != nil {
		d.metrics = newStoreMetrics(d.promRegistry)
	}
	// Create table schemas
	for _, model := range models.MigrateModels {
		d.logger.Debug(
			fmt.Sprintf("creating table: %T", model),
			"component", "database",
		)
		if err := d.db.AutoMigrate(model); err != nil {
			return err
		}
	}
	// Schedule daily database vacuum to free unused space
	d.scheduleDailyVacuum()
	return nil
}

func (d *Store) runVacuum() error {
	d.timerMutex.Lock()
	if d.dataDir == "" || d.closed {
		d.timerMutex.Unlock()
		return nil
	}
	// Track this vacuum operation while we know the store is open
	d.vacuumWG.Add(1)
	d.timerMutex.Unlock()
	defer d.vacuumWG.Done()

	if result := d.db.Exec("VACUUM"); result.Error != nil {
		return result.Error
	}
	return nil
}

// scheduleDailyVacuum schedules a daily vacuum operation
func (d *Store) scheduleDailyVacuum() {
	d.timerMutex.Lock()
	defer d.timerMutex.Unlock()
	if d.closed {
		return
	}
	if d.timerVacuum != nil {
		d.timerVacuum.Stop()
	}
	daily := time.Duration(24) * time.Hour
	f := func() {
		d.logger.Debug(
			"running vacuum on sqlite database",
			"component", "database",
		)
		// schedule next run
		defer d.scheduleDailyVacuum()
		if err := d.runVacuum(); err != nil {
			d.logger.Error(
				"failed to free unused space in sqlite database",
				"component", "database",
				"error", err,
			)
		}
	}
	d.timerVacuum = time.AfterFunc(daily, f)
}

// Close shuts down the database connection and stops background processes.
func (d *Store) Close() error {
	d.timerMutex.Lock()
	if d.closed {
		d.timerMutex.Unlock()
		return nil
	}
	d.closed = true
	if d.timerVacuum != nil {
		d.timerVacuum.Stop()
		d.timerVacuum = nil
	}
	d.timerMutex.Unlock()

	// Wait for any in-flight vacuum operations to complete
	d.vacuumWG.Wait()

	db, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	return db.Close()
}

// DB returns the underlying GORM database handle.
func (d *Store) DB() *gorm.DB {
	return d.db
}

// DataDir returns the data directory, or an empty string for in-memory stores
func (d *Store) DataDir() string {
	return d.dataDir
}

// Transaction runs fn in a database transaction. The transaction is
// committed when fn returns nil and rolled back otherwise.
func (d *Store) Transaction(
	ctx context.Context,
	fn func(txn *gorm.DB) error,
) error {
	d.timerMutex.Lock()
	closed := d.closed
	d.timerMutex.Unlock()
	if closed {
		return types.ErrMetadataStoreUnavailable
	}
	err := d.db.WithContext(ctx).Transaction(fn)
	d.metrics.observeTxn(err)
	return err
}

// handle returns txn when set, or the store's own handle
func (d *Store) handle(txn *gorm.DB) *gorm.DB {
	if txn != nil {
		return txn
	}
	return d.db
}
