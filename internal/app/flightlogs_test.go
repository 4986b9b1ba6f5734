// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/relabs-tech/flight_companion/internal/storage/sqlite"
	"github.com/relabs-tech/flight_companion/internal/telemetry"
)

func seededStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "flightlog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	start := time.Date(2026, 8, 9, 14, 0, 0, 0, time.UTC)
	if err := store.StartSegment(ctx, "seg-a", start); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 2; i++ {
		fix := telemetry.LogFix{SessionID: "seg-a", Time: start.Add(time.Duration(i) * time.Second), Latitude: 46.25, Longitude: 6.125}
		if err := store.AppendFix(ctx, fix); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := store.CloseSegment(ctx, "seg-a", start.Add(90*time.Second)); err != nil {
		t.Fatalf("close: %v", err)
	}
	return store
}

func TestFlightLogsList(t *testing.T) {
	store := seededStore(t)
	var out bytes.Buffer
	if err := flightLogsCommand(context.Background(), store, &out, []string{"list"}); err != nil {
		t.Fatalf("list: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "seg-a") || !strings.Contains(got, "1m30s") {
		t.Fatalf("list output = %q", got)
	}
}

func TestFlightLogsDump(t *testing.T) {
	store := seededStore(t)
	var out bytes.Buffer
	if err := flightLogsCommand(context.Background(), store, &out, []string{"dump", "seg-a"}); err != nil {
		t.Fatalf("dump: %v", err)
	}
	want := "2026-08-09T14:00:00Z,46.2500000,6.1250000\n2026-08-09T14:00:01Z,46.2500000,6.1250000\n"
	if out.String() != want {
		t.Fatalf("dump output = %q, want %q", out.String(), want)
	}
}

func TestFlightLogsClear(t *testing.T) {
	store := seededStore(t)
	var out bytes.Buffer
	if err := flightLogsCommand(context.Background(), store, &out, []string{"clear"}); err != nil {
		t.Fatalf("clear: %v", err)
	}
	segments, err := store.ListSegments(context.Background())
	if err != nil {
		t.Fatalf("list segments: %v", err)
	}
	if len(segments) != 0 {
		t.Fatalf("segments after clear = %+v", segments)
	}
}

func TestFlightLogsUsage(t *testing.T) {
	store := seededStore(t)
	for _, args := range [][]string{nil, {"dump"}, {"export"}} {
		if err := flightLogsCommand(context.Background(), store, &bytes.Buffer{}, args); !errors.Is(err, ErrUsage) {
			t.Fatalf("%v: err = %v, want ErrUsage", args, err)
		}
	}
}

func TestFormatRelayedFix(t *testing.T) {
	got := formatRelayedFix(telemetry.LogFix{
		SessionID: "s-1",
		Time:      time.Date(2026, 1, 2, 3, 4, 5, 6000000, time.UTC),
		Latitude:  1.5,
		Longitude: -2.25,
	})
	want := "[FIX] 03:04:05.006 session=s-1 lat=1.500000 lon=-2.250000"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
