// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"encoding/json"
	"fmt"
)

// Stabilization is the attitude-assist mode the flight controller reports.
type Stabilization int

const (
	Manual Stabilization = iota
	Angle
	Horizon
)

func (s Stabilization) String() string {
	switch s {
	case Angle:
		return "angle"
	case Horizon:
		return "horizon"
	default:
		return "manual"
	}
}

func (s Stabilization) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Stabilization) UnmarshalText(b []byte) error {
	switch string(b) {
	case "manual":
		*s = Manual
	case "angle":
		*s = Angle
	case "horizon":
		*s = Horizon
	default:
		return fmt.Errorf("unknown stabilization %q", b)
	}
	return nil
}

// DerivedState is what a pilot wants to read off the raw flight-mode field.
type DerivedState struct {
	Armed         bool
	Stabilization Stabilization
}

// ArmedLabel renders Armed the way the instrument panel shows it.
func (d DerivedState) ArmedLabel() string {
	if d.Armed {
		return "YES"
	}
	return "NO"
}

func (d DerivedState) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Armed         string `json:"armed"`
		Stabilization string `json:"stabilization"`
	}{d.ArmedLabel(), d.Stabilization.String()})
}

func (d *DerivedState) UnmarshalJSON(b []byte) error {
	var raw struct {
		Armed         string        `json:"armed"`
		Stabilization Stabilization `json:"stabilization"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	d.Armed = raw.Armed == "YES"
	d.Stabilization = raw.Stabilization
	return nil
}

// Derive decodes the flight-mode field of a Fix produced by variant v.
// The digit and flag layouts mirror the flight controller firmware and must
// not drift:
//
//	SmartPort: tens digit 2 = horizon, 1 = angle; ones digit 5 = armed.
//	MSP:       flags 8|9 = horizon, 4|5 = angle; flags 1|5|9 = armed.
//
// Custom sentences carry no documented layout and always read as manual and
// disarmed.
func Derive(v Variant, flightMode int) DerivedState {
	switch v {
	case SmartPort:
		var d DerivedState
		switch flightMode / 10 % 10 {
		case 2:
			d.Stabilization = Horizon
		case 1:
			d.Stabilization = Angle
		}
		d.Armed = flightMode%10 == 5
		return d
	case MSP:
		var d DerivedState
		switch flightMode {
		case 8, 9:
			d.Stabilization = Horizon
		case 4, 5:
			d.Stabilization = Angle
		}
		switch flightMode {
		case 1, 5, 9:
			d.Armed = true
		}
		return d
	case Custom:
		return DerivedState{}
	default:
		return DerivedState{}
	}
}
