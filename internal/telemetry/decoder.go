// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import "fmt"

// Decoder turns an arbitrarily chunked byte stream into Fixes.
//
// Consume absorbs p and returns (fix, true) when a frame completed, or
// (Fix{}, false) when more bytes are needed. At most one Fix is returned per
// call; bytes following a completed frame stay buffered and are decoded by
// the next call, so Consume(nil) yields any frame already sitting in the
// buffer. Garbage is dropped silently. Implementations must not panic on any
// input.
type Decoder interface {
	Consume(p []byte) (Fix, bool)
}

// NewDecoder returns a fresh decoder for v.
func NewDecoder(v Variant) (Decoder, error) {
	switch v {
	case SmartPort:
		return newSmartPortDecoder(), nil
	case MSP:
		return newMSPDecoder(), nil
	case Custom:
		return newSentenceDecoder(), nil
	default:
		return nil, fmt.Errorf("telemetry: no decoder for %s", v)
	}
}

// stream holds bytes not yet fed to a byte-wise parser. It is what lets a
// decoder stop after one frame and pick up where it left off.
type stream struct {
	pending []byte
}

// feed appends p and runs step over the pending bytes until step reports a
// completed frame. The unprocessed tail is kept for the next call.
func (s *stream) feed(p []byte, step func(b byte) bool) bool {
	s.pending = append(s.pending, p...)
	for i := 0; i < len(s.pending); i++ {
		if step(s.pending[i]) {
			n := copy(s.pending, s.pending[i+1:])
			s.pending = s.pending[:n]
			return true
		}
	}
	s.pending = s.pending[:0]
	return false
}

func (s *stream) reset() {
	s.pending = s.pending[:0]
}
