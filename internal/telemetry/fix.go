// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import "time"

// Fix is one normalized telemetry sample, whatever wire protocol produced it.
// Zero value means "nothing decoded yet".
type Fix struct {
	Latitude       float64 `json:"lat"`         // decimal degrees
	Longitude      float64 `json:"lon"`         // decimal degrees
	Altitude       int     `json:"alt"`         // meters
	Satellites     int     `json:"gps_sats"`    // satellites in use
	DistanceToHome int     `json:"distance"`    // meters
	Speed          int     `json:"speed"`       // km/h
	Voltage        float64 `json:"voltage"`     // volts
	RSSI           int     `json:"rssi"`        // link quality, protocol units
	Current        int     `json:"current"`     // amps
	Heading        int     `json:"heading"`     // degrees
	FlightMode     int     `json:"flight_mode"` // raw, protocol-specific bitfield
	Fuel           int     `json:"fuel"`
	Roll           int     `json:"roll"`  // degrees
	Pitch          int     `json:"pitch"` // degrees
}

// LogFix is the part of a Fix that gets persisted and relayed once home is locked.
type LogFix struct {
	SessionID string    `json:"session"`
	Time      time.Time `json:"time"`
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lon"`
}
