// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package session runs the per-connection lifecycle of a telemetry link:
// home lock-in, the armed-flight timer, MSP polling and the gating of fix
// logging and relay.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/flight_companion/internal/telemetry"
)

const (
	// LockSatellites is exclusive: more than this many satellites locks home.
	LockSatellites = 5

	// Viewport spans in degrees.
	InitialSpan   = 100.0
	FollowingSpan = 40.0
	HomeSpan      = 0.005
)

// Link is the write side of the telemetry link. Write must not block.
type Link interface {
	Connect(device string) error
	Disconnect() error
	Write(p []byte)
}

// Recorder persists LogFix values into one segment per session.
// Implementations are asynchronous; calls return immediately.
type Recorder interface {
	StartLogging(segmentID string)
	StopLogging() string
	Append(fix telemetry.LogFix)
	Clear()
}

// Relay forwards LogFix values to remote consumers without blocking.
type Relay interface {
	Publish(fix telemetry.LogFix)
}

type Config struct {
	Protocol   telemetry.Variant
	TickPeriod time.Duration
	PollPeriod time.Duration
	// PlaneTTL is how long a relayed aircraft stays listed without news.
	PlaneTTL time.Duration

	Now   func() time.Time
	NewID func() string
}

func DefaultConfig() Config {
	return Config{
		Protocol:   telemetry.SmartPort,
		TickPeriod: time.Second,
		PollPeriod: time.Second,
		PlaneTTL:   time.Minute,
		Now:        time.Now,
		NewID:      uuid.NewString,
	}
}

type Position struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Plane is the last relayed position of another aircraft.
type Plane struct {
	SessionID string    `json:"session"`
	Position  Position  `json:"position"`
	Seen      time.Time `json:"seen"`
}

// Viewport is the map region presented to the operator.
type Viewport struct {
	Center Position `json:"center"`
	Span   float64  `json:"span"`
	Locked bool     `json:"locked"`
}

// Snapshot is the read-only view handed to presentation.
type Snapshot struct {
	Connected    bool                   `json:"connected"`
	SessionID    string                 `json:"session_id,omitempty"`
	Protocol     telemetry.Variant      `json:"protocol"`
	Fix          telemetry.Fix          `json:"fix"`
	Derived      telemetry.DerivedState `json:"derived"`
	Viewport     Viewport               `json:"viewport"`
	Marker       Position               `json:"marker"`
	ArmedSeconds int                    `json:"armed_seconds"`
	Planes       []Plane                `json:"planes"`
	Updated      time.Time              `json:"updated"`
}

// state is owned by the event loop.
type state struct {
	connected    bool
	homeLocked   bool
	armedSeconds int
	id           string

	// generation tags session ticks, pollGeneration tags poll ticks.
	generation     uint64
	pollGeneration uint64
}

type nopRecorder struct{}

func (nopRecorder) StartLogging(string)     {}
func (nopRecorder) StopLogging() string     { return "" }
func (nopRecorder) Append(telemetry.LogFix) {}
func (nopRecorder) Clear()                  {}

type nopRelay struct{}

func (nopRelay) Publish(telemetry.LogFix) {}
