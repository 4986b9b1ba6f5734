// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"sort"

	"github.com/relabs-tech/flight_companion/internal/telemetry"
)

// Snapshot returns the latest published state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.snap
}

// Subscribe returns a channel that receives every published snapshot.
// Slow readers only see the most recent one. cancel must be called to
// release the subscription.
func (o *Orchestrator) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	o.mu.Lock()
	o.subs[ch] = struct{}{}
	ch <- o.snap
	o.mu.Unlock()

	cancel := func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if _, ok := o.subs[ch]; ok {
			delete(o.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// listPlanes drops planes not heard from within PlaneTTL and returns the
// rest ordered by session id.
func (o *Orchestrator) listPlanes() []Plane {
	now := o.cfg.Now()
	planes := make([]Plane, 0, len(o.planes))
	for id, p := range o.planes {
		if now.Sub(p.Seen) > o.cfg.PlaneTTL {
			delete(o.planes, id)
			continue
		}
		planes = append(planes, p)
	}
	sort.Slice(planes, func(i, j int) bool { return planes[i].SessionID < planes[j].SessionID })
	return planes
}

// publish runs on the loop goroutine only.
func (o *Orchestrator) publish() {
	active := o.mux.Active()
	snap := Snapshot{
		Connected:    o.st.connected,
		Protocol:     active,
		Fix:          o.fix,
		Derived:      telemetry.Derive(active, o.fix.FlightMode),
		Viewport:     o.viewport,
		Marker:       o.marker,
		ArmedSeconds: o.st.armedSeconds,
		Planes:       o.listPlanes(),
		Updated:      o.cfg.Now(),
	}
	if o.st.connected {
		snap.SessionID = o.st.id
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.snap = snap
	for ch := range o.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
