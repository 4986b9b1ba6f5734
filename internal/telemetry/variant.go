// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"fmt"
	"strings"
)

// Variant selects the wire protocol spoken by the flight controller.
type Variant int

const (
	// SmartPort is the turn-based FrSky telemetry stream (one sensor value per frame).
	SmartPort Variant = iota
	// MSP is the request/response MultiWii Serial Protocol; the ground side polls.
	MSP
	// Custom is the line-oriented $PITEL sentence stream.
	Custom
)

// Variants lists every supported variant in declaration order.
var Variants = []Variant{SmartPort, MSP, Custom}

func (v Variant) String() string {
	switch v {
	case SmartPort:
		return "smartport"
	case MSP:
		return "msp"
	case Custom:
		return "custom"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// Valid reports whether v is one of the declared variants.
func (v Variant) Valid() bool {
	return v >= SmartPort && v <= Custom
}

// Polled reports whether the variant needs the ground side to request data.
func (v Variant) Polled() bool {
	return v == MSP
}

// ParseVariant accepts the names printed by String, case-insensitively.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "smartport", "sport", "a":
		return SmartPort, nil
	case "msp", "b":
		return MSP, nil
	case "custom", "c":
		return Custom, nil
	default:
		return 0, fmt.Errorf("unknown protocol %q", s)
	}
}

func (v Variant) MarshalText() ([]byte, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("invalid protocol %d", int(v))
	}
	return []byte(v.String()), nil
}

func (v *Variant) UnmarshalText(b []byte) error {
	parsed, err := ParseVariant(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
