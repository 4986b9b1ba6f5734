// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/relabs-tech/flight_companion/internal/log"
	"github.com/relabs-tech/flight_companion/internal/telemetry"
)

var ErrNoLink = errors.New("session: no link")

type eventKind int

const (
	evData eventKind = iota
	evConnected
	evDisconnected
	evSessionTick
	evPollTick
	evSelect
	evClearLogs
	evPlane
)

type event struct {
	kind    eventKind
	data    []byte
	gen     uint64
	variant telemetry.Variant
	fix     telemetry.LogFix
}

const eventBuffer = 256

// Orchestrator serializes link events, timer ticks and operator commands
// through a single loop started by Run.
type Orchestrator struct {
	cfg   Config
	mux   *telemetry.Multiplexer
	link  Link
	rec   Recorder
	relay Relay

	events chan event
	done   chan struct{}

	// Loop-owned.
	st          state
	fix         telemetry.Fix
	viewport    Viewport
	marker      Position
	stopSession context.CancelFunc
	stopPoll    context.CancelFunc
	pollBatch   [][]byte
	planes      map[string]Plane
	own         map[string]struct{}

	mu   sync.RWMutex
	snap Snapshot
	subs map[chan Snapshot]struct{}
}

// New builds an orchestrator. link is required; rec and relay may be nil.
func New(cfg Config, link Link, rec Recorder, relay Relay) (*Orchestrator, error) {
	if link == nil {
		return nil, ErrNoLink
	}
	def := DefaultConfig()
	if cfg.TickPeriod <= 0 {
		cfg.TickPeriod = def.TickPeriod
	}
	if cfg.PollPeriod <= 0 {
		cfg.PollPeriod = def.PollPeriod
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = def.NewID
	}
	if cfg.PlaneTTL <= 0 {
		cfg.PlaneTTL = def.PlaneTTL
	}

	mux, err := telemetry.NewMultiplexer(cfg.Protocol)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	if relay == nil {
		relay = nopRelay{}
	}

	o := &Orchestrator{
		cfg:       cfg,
		mux:       mux,
		link:      link,
		rec:       rec,
		relay:     relay,
		events:    make(chan event, eventBuffer),
		done:      make(chan struct{}),
		viewport:  Viewport{Span: InitialSpan},
		pollBatch: telemetry.MSPPollBatch(),
		planes:    make(map[string]Plane),
		own:       make(map[string]struct{}),
		subs:      make(map[chan Snapshot]struct{}),
	}
	o.publish()
	return o, nil
}

// Run processes events until ctx is cancelled. An open session is closed
// on the way out.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer close(o.done)
	defer o.disconnect()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-o.events:
			o.handle(ev)
		}
	}
}

// LinkConnected, LinkDisconnected and LinkData make the orchestrator a
// link.Handler.
func (o *Orchestrator) LinkConnected() {
	o.post(event{kind: evConnected})
}

func (o *Orchestrator) LinkDisconnected() {
	o.post(event{kind: evDisconnected})
}

func (o *Orchestrator) LinkData(p []byte) {
	if len(p) == 0 {
		return
	}
	o.post(event{kind: evData, data: append([]byte(nil), p...)})
}

// SelectProtocol switches the active decoder. Any partial frame is lost.
func (o *Orchestrator) SelectProtocol(v telemetry.Variant) error {
	if !v.Valid() {
		return fmt.Errorf("session: invalid protocol %d", int(v))
	}
	o.post(event{kind: evSelect, variant: v})
	return nil
}

// Connect asks the link to open device; the session starts when the link
// reports the connection.
func (o *Orchestrator) Connect(device string) error {
	return o.link.Connect(device)
}

func (o *Orchestrator) Disconnect() error {
	return o.link.Disconnect()
}

// PlaneSeen records a fix relayed by another companion. Fixes carrying one
// of our own session ids are ignored.
func (o *Orchestrator) PlaneSeen(fix telemetry.LogFix) {
	if fix.SessionID == "" {
		return
	}
	o.post(event{kind: evPlane, fix: fix})
}

// ClearLogs drops every stored log segment.
func (o *Orchestrator) ClearLogs() {
	o.post(event{kind: evClearLogs})
}

func (o *Orchestrator) post(ev event) {
	select {
	case o.events <- ev:
	case <-o.done:
	}
}

func (o *Orchestrator) handle(ev event) {
	switch ev.kind {
	case evConnected:
		if o.st.connected {
			o.disconnect()
		}
		o.connect()

	case evDisconnected:
		o.disconnect()

	case evData:
		if !o.st.connected {
			return
		}
		o.mux.Feed(ev.data, o.onFix)

	case evSessionTick:
		if !o.st.connected || ev.gen != o.st.generation {
			return
		}
		if telemetry.Derive(o.mux.Active(), o.fix.FlightMode).Armed {
			o.st.armedSeconds++
		} else {
			o.st.armedSeconds = 0
		}

	case evPollTick:
		if !o.st.connected || ev.gen != o.st.pollGeneration || !o.mux.Active().Polled() {
			return
		}
		for _, req := range o.pollBatch {
			o.link.Write(req)
		}
		return

	case evSelect:
		o.selectProtocol(ev.variant)

	case evClearLogs:
		o.rec.Clear()
		log.Printf("session: flight logs cleared")
		return

	case evPlane:
		if _, mine := o.own[ev.fix.SessionID]; mine {
			return
		}
		o.planes[ev.fix.SessionID] = Plane{
			SessionID: ev.fix.SessionID,
			Position:  Position{Latitude: ev.fix.Latitude, Longitude: ev.fix.Longitude},
			Seen:      o.cfg.Now(),
		}
	}

	o.publish()
}

func (o *Orchestrator) connect() {
	o.st.generation++
	o.st.connected = true
	o.st.homeLocked = false
	o.st.armedSeconds = 0
	o.st.id = o.cfg.NewID()
	o.own[o.st.id] = struct{}{}
	delete(o.planes, o.st.id)
	o.fix = telemetry.Fix{}
	o.viewport.Locked = false

	o.mux.Reset()
	o.rec.StartLogging(o.st.id)

	ctx, cancel := context.WithCancel(context.Background())
	o.stopSession = cancel
	o.schedule(ctx, o.cfg.TickPeriod, evSessionTick, o.st.generation)

	o.startPoller()
	o.mux.Prime()

	log.Printf("session: connected, session %s using %s", o.st.id, o.mux.Active())
}

// disconnect is a no-op when no session is open.
func (o *Orchestrator) disconnect() {
	if !o.st.connected {
		return
	}
	o.st.connected = false
	o.st.homeLocked = false
	o.st.generation++
	o.viewport.Locked = false

	o.stopPoller()
	if o.stopSession != nil {
		o.stopSession()
		o.stopSession = nil
	}

	segment := o.rec.StopLogging()
	log.Printf("session: disconnected, segment %s closed", segment)
	o.publish()
}

func (o *Orchestrator) selectProtocol(v telemetry.Variant) {
	if v == o.mux.Active() {
		return
	}
	if !o.st.connected {
		if _, err := o.mux.Select(v); err != nil {
			log.Errorf("session: select protocol: %v", err)
		}
		return
	}

	o.stopPoller()
	if _, err := o.mux.Select(v); err != nil {
		log.Errorf("session: select protocol: %v", err)
	}
	o.mux.Prime()
	o.startPoller()
	log.Printf("session: protocol switched to %s", o.mux.Active())
}

func (o *Orchestrator) startPoller() {
	if !o.mux.Active().Polled() {
		return
	}
	o.st.pollGeneration++
	ctx, cancel := context.WithCancel(context.Background())
	o.stopPoll = cancel
	o.schedule(ctx, o.cfg.PollPeriod, evPollTick, o.st.pollGeneration)
}

func (o *Orchestrator) stopPoller() {
	o.st.pollGeneration++
	if o.stopPoll != nil {
		o.stopPoll()
		o.stopPoll = nil
	}
}

func (o *Orchestrator) onFix(f telemetry.Fix) {
	o.fix = f
	pos := Position{Latitude: f.Latitude, Longitude: f.Longitude}

	if !o.st.homeLocked && f.Satellites > LockSatellites {
		o.st.homeLocked = true
		o.viewport = Viewport{Center: pos, Span: HomeSpan, Locked: true}
		log.Printf("session: home locked at %.6f, %.6f with %d satellites", pos.Latitude, pos.Longitude, f.Satellites)
	} else if !o.st.homeLocked {
		o.viewport = Viewport{Center: pos, Span: FollowingSpan}
	}
	o.marker = pos

	if !o.st.homeLocked {
		return
	}

	lf := telemetry.LogFix{
		SessionID: o.st.id,
		Time:      o.cfg.Now(),
		Latitude:  f.Latitude,
		Longitude: f.Longitude,
	}
	o.rec.Append(lf)
	o.relay.Publish(lf)
}
