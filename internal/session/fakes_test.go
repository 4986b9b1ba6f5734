// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"encoding/binary"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/relabs-tech/flight_companion/internal/telemetry"
)

type fakeLink struct {
	mu      sync.Mutex
	devices []string
	writes  [][]byte
}

func (l *fakeLink) Connect(device string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.devices = append(l.devices, device)
	return nil
}

func (l *fakeLink) Disconnect() error { return nil }

func (l *fakeLink) Write(p []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writes = append(l.writes, append([]byte(nil), p...))
}

func (l *fakeLink) written() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]byte(nil), l.writes...)
}

type fakeRecorder struct {
	mu      sync.Mutex
	started []string
	stopped int
	fixes   []telemetry.LogFix
	cleared int
}

func (r *fakeRecorder) StartLogging(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, id)
}

func (r *fakeRecorder) StopLogging() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped++
	return r.started[len(r.started)-1]
}

func (r *fakeRecorder) Append(f telemetry.LogFix) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fixes = append(r.fixes, f)
}

func (r *fakeRecorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared++
}

func (r *fakeRecorder) appended() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fixes)
}

type fakeRelay struct {
	mu    sync.Mutex
	fixes []telemetry.LogFix
}

func (r *fakeRelay) Publish(f telemetry.LogFix) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fixes = append(r.fixes, f)
}

var testTime = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func testConfig(v telemetry.Variant) Config {
	n := 0
	return Config{
		Protocol:   v,
		TickPeriod: time.Hour,
		PollPeriod: time.Hour,
		Now:        func() time.Time { return testTime },
		NewID: func() string {
			n++
			return fmt.Sprintf("s%d", n)
		},
	}
}

type harness struct {
	o     *Orchestrator
	link  *fakeLink
	rec   *fakeRecorder
	relay *fakeRelay
}

// newHarness drives the orchestrator by calling handle directly, so every
// event is processed before the call returns.
func newHarness(t *testing.T, v telemetry.Variant) *harness {
	t.Helper()
	h := &harness{link: &fakeLink{}, rec: &fakeRecorder{}, relay: &fakeRelay{}}
	o, err := New(testConfig(v), h.link, h.rec, h.relay)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.o = o
	t.Cleanup(o.disconnect)
	return h
}

func (h *harness) connect()    { h.o.handle(event{kind: evConnected}) }
func (h *harness) disconnect() { h.o.handle(event{kind: evDisconnected}) }
func (h *harness) feed(p []byte) {
	h.o.handle(event{kind: evData, data: p})
}
func (h *harness) tick() {
	h.o.handle(event{kind: evSessionTick, gen: h.o.st.generation})
}
func (h *harness) poll() {
	h.o.handle(event{kind: evPollTick, gen: h.o.st.pollGeneration})
}
func (h *harness) selectProtocol(v telemetry.Variant) {
	h.o.handle(event{kind: evSelect, variant: v})
}

func mspReply(cmd telemetry.MSPCommand, payload []byte) []byte {
	buf := []byte{'$', 'M', '>', byte(len(payload)), byte(cmd)}
	buf = append(buf, payload...)
	var crc byte
	for _, b := range buf[3:] {
		crc ^= b
	}
	return append(buf, crc)
}

// mspFix encodes STATUS, RAW_GPS and ANALOG replies; the ANALOG reply
// completes one Fix.
func mspFix(flags uint32, sats byte, lat, lon float64) []byte {
	le := binary.LittleEndian
	status := make([]byte, 11)
	le.PutUint32(status[6:10], flags)

	gps := make([]byte, 16)
	gps[1] = sats
	le.PutUint32(gps[2:6], uint32(int32(lat*1e7)))
	le.PutUint32(gps[6:10], uint32(int32(lon*1e7)))

	analog := make([]byte, 7)
	analog[0] = 111

	var out []byte
	out = append(out, mspReply(telemetry.MSPStatus, status)...)
	out = append(out, mspReply(telemetry.MSPRawGPS, gps)...)
	return append(out, mspReply(telemetry.MSPAnalog, analog)...)
}

func near(a, b float64) bool {
	d := a - b
	return d < 1e-6 && d > -1e-6
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
