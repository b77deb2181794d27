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
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/blinklabs-io/eventlog"
	"github.com/blinklabs-io/eventlog/admission"
)

// withClient runs fn against a client without the real-time channel
func withClient(
	cmd *cobra.Command,
	fn func(ctx context.Context, client *eventlog.Client) error,
) error {
	cfg := configFromCmd(cmd)
	logger := commonRun(cfg)
	client, err := newClient(cfg, logger, nil, eventlog.WithRealtime(false))
	if err != nil {
		return err
	}
	err = fn(cmd.Context(), client)
	if stopErr := client.Stop(); stopErr != nil {
		logger.Error("shutdown error", "error", stopErr)
	}
	return err
}

func syncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the local event cache with the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, client *eventlog.Client) error {
				res, err := client.Sync(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, ev := range res.Events {
					fmt.Fprintf(out, "%d\t%s\t%s\n", ev.ID, ev.Name, ev.Venue)
				}
				fmt.Fprintf(
					out,
					"%d approved events cached, %d removed\n",
					len(res.Events),
					len(res.Removed),
				)
				return nil
			})
		},
	}
}

func scanCommand() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "scan <token>",
		Short: "Admit a scanned attendance code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if at != "" {
				var err error
				now, err = time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at time: %w", err)
				}
			}
			return withClient(cmd, func(ctx context.Context, client *eventlog.Client) error {
				out, err := client.Admit(ctx, args[0], now)
				fmt.Fprintln(cmd.OutOrStdout(), admission.Message(err))
				if err != nil {
					return err
				}
				fmt.Fprintf(
					cmd.OutOrStdout(),
					"%s: %s, %s\n",
					out.Event.Name,
					out.Mark.SubjectID,
					out.Mark.Window.Label(),
				)
				// Delivery is retried later when the server is unreachable
				if _, err := client.FlushAttendance(ctx); err != nil {
					slog.Warn("attendance queued for later delivery", "error", err)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "admission time in RFC3339 instead of now")
	return cmd
}

func tokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue or inspect attendance codes",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "encode <occurrence-id> <subject-id>",
		Short: "Issue the code a subject presents at an occurrence",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			occID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid occurrence id %q: %w", args[0], err)
			}
			return withClient(cmd, func(_ context.Context, client *eventlog.Client) error {
				tok, err := client.IssueToken(occID, args[1])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), tok)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "decode <token>",
		Short: "Show the payload of a code without admitting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(_ context.Context, client *eventlog.Client) error {
				p, err := client.DecodeToken(args[0])
				if err != nil {
					return errors.New(admission.Message(err))
				}
				fmt.Fprintf(
					cmd.OutOrStdout(),
					"occurrence %d, subject %s\n",
					p.OccurrenceID,
					p.SubjectID,
				)
				return nil
			})
		},
	})
	return cmd
}

func exportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export cached data",
	}
	cmd.AddCommand(exportSubcommand(
		"attendance <file.xlsx>",
		"Write recorded attendance as a spreadsheet",
		(*eventlog.Client).ExportAttendance,
	))
	cmd.AddCommand(exportSubcommand(
		"attendance-pdf <file.pdf>",
		"Write recorded attendance as a printable PDF",
		(*eventlog.Client).ExportAttendancePDF,
	))
	cmd.AddCommand(exportSubcommand(
		"calendar <file.ics>",
		"Write the admission windows of cached events as an iCalendar",
		(*eventlog.Client).ExportCalendar,
	))
	return cmd
}

func exportSubcommand(
	use, short string,
	export func(*eventlog.Client, context.Context, io.Writer) error,
) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, client *eventlog.Client) error {
				f, err := os.Create(args[0])
				if err != nil {
					return err
				}
				if err := export(client, ctx, f); err != nil {
					_ = f.Close()
					return err
				}
				return f.Close()
			})
		},
	}
}

func logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget cached events; queued attendance is kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, client *eventlog.Client) error {
				if err := client.Logout(ctx); err != nil {
					return err
				}
				n, err := client.PendingAttendance()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "logged out, %d marks still queued\n", n)
				return nil
			})
		},
	}
}
