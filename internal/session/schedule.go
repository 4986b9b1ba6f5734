// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"context"
	"time"
)

// schedule posts a tick of kind tagged with gen every period until ctx
// is cancelled. The loop still checks gen, since a tick may already be
// queued when the cancel happens.
func (o *Orchestrator) schedule(ctx context.Context, period time.Duration, kind eventKind, gen uint64) {
	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			select {
			case o.events <- event{kind: kind, gen: gen}:
			case <-ctx.Done():
				return
			case <-o.done:
				return
			}
		}
	}()
}
