// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package storage

import (
	"context"
	"sync"
	"time"

	"github.com/relabs-tech/flight_companion/internal/log"
	"github.com/relabs-tech/flight_companion/internal/telemetry"
)

const queueSize = 1024

type opKind int

const (
	opStart opKind = iota
	opAppend
	opClose
	opClear
	opFlush
)

type op struct {
	kind opKind
	id   string
	at   time.Time
	fix  telemetry.LogFix
	done chan struct{}
}

// Recorder applies logging calls to a LogStore on its own goroutine, in
// call order. Failed writes are logged and skipped.
type Recorder struct {
	store LogStore
	now   func() time.Time
	ops   chan op
	quit  chan struct{}

	mu      sync.Mutex
	current string
}

func NewRecorder(store LogStore) *Recorder {
	return &Recorder{
		store: store,
		now:   time.Now,
		ops:   make(chan op, queueSize),
		quit:  make(chan struct{}),
	}
}

// Run applies queued operations until ctx is cancelled, then drains what
// is already queued.
func (r *Recorder) Run(ctx context.Context) error {
	defer close(r.quit)
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return nil
		case o := <-r.ops:
			r.apply(context.Background(), o)
		}
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case o := <-r.ops:
			r.apply(context.Background(), o)
		default:
			return
		}
	}
}

// StartLogging opens segment id.
func (r *Recorder) StartLogging(id string) {
	r.mu.Lock()
	r.current = id
	r.mu.Unlock()
	r.enqueue(op{kind: opStart, id: id, at: r.now()})
}

// StopLogging closes the open segment and returns its id, or "" when none
// was open.
func (r *Recorder) StopLogging() string {
	r.mu.Lock()
	id := r.current
	r.current = ""
	r.mu.Unlock()

	if id != "" {
		r.enqueue(op{kind: opClose, id: id, at: r.now()})
	}
	return id
}

// Append queues fix; it is dropped when the queue is full.
func (r *Recorder) Append(fix telemetry.LogFix) {
	select {
	case r.ops <- op{kind: opAppend, fix: fix}:
	case <-r.quit:
	default:
		log.Errorf("storage: queue full, dropping fix for %s", fix.SessionID)
	}
}

// Clear deletes every segment.
func (r *Recorder) Clear() {
	r.enqueue(op{kind: opClear})
}

// Flush waits until everything queued before the call has been applied.
func (r *Recorder) Flush(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case r.ops <- op{kind: opFlush, done: done}:
	case <-r.quit:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-r.quit:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) enqueue(o op) {
	select {
	case r.ops <- o:
	case <-r.quit:
	}
}

func (r *Recorder) apply(ctx context.Context, o op) {
	var err error
	switch o.kind {
	case opStart:
		err = r.store.StartSegment(ctx, o.id, o.at)
		if err == nil {
			log.Printf("storage: segment %s started", o.id)
		}
	case opAppend:
		err = r.store.AppendFix(ctx, o.fix)
	case opClose:
		err = r.store.CloseSegment(ctx, o.id, o.at)
		if err == nil {
			log.Printf("storage: segment %s closed", o.id)
		}
	case opClear:
		err = r.store.Clear(ctx)
	case opFlush:
		close(o.done)
	}
	if err != nil {
		log.Errorf("storage: %v", err)
	}
}
