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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/blinklabs-io/eventlog"
	"github.com/blinklabs-io/eventlog/internal/config"
)

func serveRun(_ *cobra.Command, _ []string, cfg *config.Config) {
	logger := commonRun(cfg)
	if err := serve(cfg, logger); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func serve(cfg *config.Config, logger *slog.Logger) error {
	client, err := newClient(cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Stop(); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	if err := client.Start(signalCtx); err != nil {
		return err
	}

	sched, err := newCron(signalCtx, cfg, client, logger)
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	// Metrics listener
	http.Handle("/metrics", promhttp.Handler())
	metricsAddr := fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.MetricsPort)
	logger.Info(
		"serving prometheus metrics on "+metricsAddr,
		"component", programName,
	)
	metricsServer := &http.Server{
		Addr:              metricsAddr,
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errChan := make(chan error, 1)
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("failed to start metrics listener: %w", err)
		}
	}()

	select {
	case <-signalCtx.Done():
		logger.Info("signal received, initiating graceful shutdown")
	case err := <-errChan:
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.ShutdownTimeoutDuration(),
	)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", "error", err)
	}
	return nil
}

// newCron schedules the periodic safety-net sync and attendance push
func newCron(
	ctx context.Context,
	cfg *config.Config,
	client *eventlog.Client,
	logger *slog.Logger,
) (*cron.Cron, error) {
	sched := cron.New()
	if _, err := sched.AddFunc(cfg.SyncSchedule, func() {
		if _, err := client.SyncPeriodic(ctx); err != nil {
			logger.Warn("periodic sync failed", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid sync schedule %q: %w", cfg.SyncSchedule, err)
	}
	if _, err := sched.AddFunc(cfg.PushSchedule, func() {
		if _, err := client.FlushAttendance(ctx); err != nil {
			logger.Warn("periodic attendance push failed", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid push schedule %q: %w", cfg.PushSchedule, err)
	}
	return sched, nil
}

func serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scanner: sync events, listen for changes and push attendance",
		Run: func(cmd *cobra.Command, args []string) {
			serveRun(cmd, args, configFromCmd(cmd))
		},
	}
	return cmd
}
