// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package link

import (
	"io"
	"math"
	"sync"
	"time"

	"github.com/relabs-tech/flight_companion/internal/telemetry"
)

// SimDevice is the device name of the built-in simulated flight controller.
// It speaks the custom sentence protocol only.
const SimDevice = "sim"

// Home position of the simulated flight.
const (
	simHomeLat = 46.2044
	simHomeLon = 6.1432
)

// WithSimulator returns an Opener that serves SimDevice from a simulated
// flight controller emitting one sentence per period and defers every other
// device to open.
func WithSimulator(open Opener, period time.Duration) Opener {
	return func(device string) (io.ReadWriteCloser, error) {
		if device == SimDevice {
			return newSimulator(period), nil
		}
		return open(device)
	}
}

type simulator struct {
	start  time.Time
	period time.Duration
	pr     *io.PipeReader
	pw     *io.PipeWriter
	done   chan struct{}
	once   sync.Once
}

func newSimulator(period time.Duration) *simulator {
	pr, pw := io.Pipe()
	s := &simulator{
		start:  time.Now(),
		period: period,
		pr:     pr,
		pw:     pw,
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *simulator) Read(p []byte) (int, error) {
	return s.pr.Read(p)
}

// Write swallows requests; the simulator streams unprompted.
func (s *simulator) Write(p []byte) (int, error) {
	return len(p), nil
}

func (s *simulator) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.pr.Close()
	})
	return nil
}

func (s *simulator) run() {
	defer s.pw.Close()
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}
		if _, err := s.pw.Write(telemetry.EncodeITEL(simFix(time.Since(s.start)))); err != nil {
			return
		}
	}
}

// simFix generates smoothly changing values: a slow orbit around home with
// a satellite count that climbs one per second up to 12.
func simFix(elapsed time.Duration) telemetry.Fix {
	t := elapsed.Seconds()

	dLat := 0.001 * math.Sin(t/10)
	dLon := 0.001 * math.Cos(t/10)

	return telemetry.Fix{
		Latitude:       simHomeLat + dLat,
		Longitude:      simHomeLon + dLon,
		Altitude:       int(50 + 20*math.Sin(t/5)),
		Satellites:     min(int(t), 12),
		DistanceToHome: int(111320 * math.Hypot(dLat, dLon*math.Cos(simHomeLat*math.Pi/180))),
		Speed:          40,
		Voltage:        math.Max(16.8-t/600, 13.2),
		RSSI:           90,
		Current:        12,
		Heading:        int(math.Mod(t*30, 360)),
		Fuel:           int(t * 3),
		Roll:           int(20 * math.Sin(t)),
		Pitch:          int(15 * math.Cos(t*0.7)),
	}
}
