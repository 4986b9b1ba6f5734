// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/relabs-tech/flight_companion/internal/config"
	"github.com/relabs-tech/flight_companion/internal/storage"
	"github.com/relabs-tech/flight_companion/internal/storage/sqlite"
	"github.com/relabs-tech/flight_companion/internal/telemetry"
)

var ErrUsage = errors.New("usage: flightlogs list | dump <segment> | clear")

// logAdmin is what the flightlogs commands need from a store.
type logAdmin interface {
	storage.LogReader
	Clear(ctx context.Context) error
}

// RunFlightLogs runs one flightlogs command against LOG_DB_PATH.
func RunFlightLogs(args []string) error {
	cfg, err := config.Require()
	if err != nil {
		return err
	}
	store, err := sqlite.Open(cfg.LogDBPath)
	if err != nil {
		return fmt.Errorf("open flight log: %w", err)
	}
	defer store.Close()

	return flightLogsCommand(context.Background(), store, os.Stdout, args)
}

func flightLogsCommand(ctx context.Context, store logAdmin, out io.Writer, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}

	switch args[0] {
	case "list":
		segments, err := store.ListSegments(ctx)
		if err != nil {
			return err
		}
		return writeSegments(out, segments)

	case "dump":
		if len(args) != 2 {
			return ErrUsage
		}
		fixes, err := store.SegmentFixes(ctx, args[1])
		if err != nil {
			return err
		}
		return writeFixes(out, fixes)

	case "clear":
		if err := store.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "flight logs cleared")
		return nil

	default:
		return ErrUsage
	}
}

func writeSegments(out io.Writer, segments []storage.Segment) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEGMENT\tSTARTED\tDURATION\tFIXES")
	for _, seg := range segments {
		duration := "open"
		if !seg.EndedAt.IsZero() {
			duration = seg.EndedAt.Sub(seg.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", seg.ID, seg.StartedAt.Local().Format(time.DateTime), duration, seg.Fixes)
	}
	return tw.Flush()
}

func writeFixes(out io.Writer, fixes []telemetry.LogFix) error {
	for _, f := range fixes {
		if _, err := fmt.Fprintf(out, "%s,%.7f,%.7f\n", f.Time.UTC().Format(time.RFC3339Nano), f.Latitude, f.Longitude); err != nil {
			return err
		}
	}
	return nil
}
