// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package storage keeps the flight log: one segment per connected session,
// holding the fixes logged after home lock.
package storage

import (
	"context"
	"time"

	"github.com/relabs-tech/flight_companion/internal/telemetry"
)

// Segment summarizes one logged session. EndedAt is zero while open.
type Segment struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
	Fixes     int       `json:"fixes"`
}

// LogStore persists flight log segments.
type LogStore interface {
	StartSegment(ctx context.Context, id string, at time.Time) error
	AppendFix(ctx context.Context, fix telemetry.LogFix) error
	CloseSegment(ctx context.Context, id string, at time.Time) error
	Clear(ctx context.Context) error
}

// LogReader lists what a LogStore holds.
type LogReader interface {
	ListSegments(ctx context.Context) ([]Segment, error)
	SegmentFixes(ctx context.Context, id string) ([]telemetry.LogFix, error)
}
