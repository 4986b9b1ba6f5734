// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import "fmt"

// Multiplexer holds one decoder per variant and routes link bytes to the
// selected one. Decoders that are not selected are always freshly built.
// It is not safe for concurrent use; the session loop owns it.
type Multiplexer struct {
	active   Variant
	decoders map[Variant]Decoder
}

// NewMultiplexer returns a multiplexer with v selected.
func NewMultiplexer(v Variant) (*Multiplexer, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("telemetry: invalid protocol %d", int(v))
	}
	m := &Multiplexer{active: v, decoders: make(map[Variant]Decoder, len(Variants))}
	m.Reset()
	return m, nil
}

// Active returns the selected variant.
func (m *Multiplexer) Active() Variant {
	return m.active
}

// Select switches to v. The previously selected decoder is rebuilt so no
// partial frame survives the switch. Selecting the active variant is a no-op
// and reports false.
func (m *Multiplexer) Select(v Variant) (bool, error) {
	if !v.Valid() {
		return false, fmt.Errorf("telemetry: invalid protocol %d", int(v))
	}
	if v == m.active {
		return false, nil
	}
	m.decoders[m.active] = mustDecoder(m.active)
	m.active = v
	return true, nil
}

// Reset rebuilds every decoder, dropping all buffered bytes.
func (m *Multiplexer) Reset() {
	for _, v := range Variants {
		m.decoders[v] = mustDecoder(v)
	}
}

// Prime sends the empty kick that request/response decoders need before the
// first reply arrives. Other decoders ignore it.
func (m *Multiplexer) Prime() {
	m.decoders[m.active].Consume(nil)
}

// Feed hands p to the selected decoder and calls emit for every Fix it
// yields, including frames that were already buffered behind the first one.
// It returns the number of fixes emitted.
func (m *Multiplexer) Feed(p []byte, emit func(Fix)) int {
	dec := m.decoders[m.active]
	n := 0
	for fix, ok := dec.Consume(p); ok; fix, ok = dec.Consume(nil) {
		emit(fix)
		n++
	}
	return n
}

func mustDecoder(v Variant) Decoder {
	d, err := NewDecoder(v)
	if err != nil {
		panic(err)
	}
	return d
}
