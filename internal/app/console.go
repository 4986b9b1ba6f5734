// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/relabs-tech/flight_companion/internal/log"
	"github.com/relabs-tech/flight_companion/internal/session"
)

// statusLine renders the console status of a session.
type statusLine struct {
	armed     *color.Color
	disarmed  *color.Color
	locked    *color.Color
	searching *color.Color
	offline   *color.Color
}

func newStatusLine(colorize bool) *statusLine {
	s := &statusLine{
		armed:     color.New(color.FgRed, color.Bold),
		disarmed:  color.New(color.FgGreen),
		locked:    color.New(color.FgGreen),
		searching: color.New(color.FgYellow),
		offline:   color.New(color.FgHiBlack),
	}
	for _, c := range []*color.Color{s.armed, s.disarmed, s.locked, s.searching, s.offline} {
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return s
}

func (s *statusLine) format(snap session.Snapshot) string {
	if !snap.Connected {
		return s.offline.Sprint("link down ") + fmt.Sprintf("proto %s", snap.Protocol)
	}

	f := snap.Fix
	home := s.searching.Sprintf("home searching (%d sats)", f.Satellites)
	if snap.Viewport.Locked {
		home = s.locked.Sprintf("home locked (%d sats)", f.Satellites)
	}

	armed := s.disarmed.Sprint("armed NO")
	if snap.Derived.Armed {
		armed = s.armed.Sprintf("armed YES %s", time.Duration(snap.ArmedSeconds)*time.Second)
	}

	status := fmt.Sprintf("%s %s %s | %.6f %.6f alt %dm spd %dkm/h hdg %d | %.1fV %dA fuel %d rssi %d | %s",
		snap.Protocol, armed, snap.Derived.Stabilization, f.Latitude, f.Longitude, f.Altitude,
		f.Speed, f.Heading, f.Voltage, f.Current, f.Fuel, f.RSSI, home)
	if n := len(snap.Planes); n > 0 {
		status += fmt.Sprintf(" | %d other aircraft", n)
	}
	return status
}

// runConsole prints the latest snapshot every interval. On a terminal with
// a sub-second interval the line is redrawn in place.
func runConsole(ctx context.Context, ctl Controller, out io.Writer, interval time.Duration) error {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	line := newStatusLine(tty)
	realtime := tty && interval < time.Second

	updates, unsubscribe := ctl.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var latest session.Snapshot
	for {
		select {
		case <-ctx.Done():
			if realtime {
				fmt.Fprintln(out)
			}
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			latest = snap
		case <-ticker.C:
			if realtime {
				fmt.Fprint(out, "\r\033[K", line.format(latest))
			} else {
				log.Printf("console: %s", line.format(latest))
			}
		}
	}
}
