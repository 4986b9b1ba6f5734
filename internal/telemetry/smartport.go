// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import "encoding/binary"

// SmartPort framing, as received from the radio's Bluetooth bridge:
//
//	0x7E <physical id> 0x10 <app id u16 LE> <value u32 LE> <crc>
//
// Bytes after the physical id are stuffed: 0x7D x means x^0x20. The CRC is
// 0xFF minus the carry-folded sum of the unstuffed bytes from 0x10 through
// the value.
const (
	sportStart     = 0x7E
	sportStuff     = 0x7D
	sportStuffMask = 0x20
	sportDataFrame = 0x10
	sportBodyLen   = 8 // frame type, app id (2), value (4), crc
)

// iNav SmartPort sensor ids.
const (
	sportLatLon   uint16 = 0x0800
	sportAltitude uint16 = 0x0100
	sportSpeed    uint16 = 0x0830
	sportCourse   uint16 = 0x0840
	sportVFAS     uint16 = 0x0210
	sportCurrent  uint16 = 0x0200
	sportFuel     uint16 = 0x0600
	sportMode     uint16 = 0x0400 // T1
	sportGPSState uint16 = 0x0410 // T2
	sportHomeDist uint16 = 0x0420
	sportRSSI     uint16 = 0xF101
	sportPitch    uint16 = 0x0700
	sportRoll     uint16 = 0x0710
)

type sportState int

const (
	sportIdle sportState = iota
	sportPhysID
	sportBody
)

type smartPortDecoder struct {
	in      stream
	state   sportState
	escaped bool
	body    [sportBodyLen]byte
	n       int
	fix     Fix
}

func newSmartPortDecoder() *smartPortDecoder {
	return &smartPortDecoder{}
}

func (d *smartPortDecoder) Consume(p []byte) (Fix, bool) {
	if d.in.feed(p, d.step) {
		return d.fix, true
	}
	return Fix{}, false
}

func (d *smartPortDecoder) step(b byte) bool {
	// A start byte always resynchronises, whatever was in flight.
	if b == sportStart {
		d.state = sportPhysID
		d.escaped = false
		d.n = 0
		return false
	}

	switch d.state {
	case sportPhysID:
		d.state = sportBody
		return false
	case sportBody:
		if b == sportStuff && !d.escaped {
			d.escaped = true
			return false
		}
		if d.escaped {
			b ^= sportStuffMask
			d.escaped = false
		}
		if d.n == 0 && b != sportDataFrame {
			// Empty poll or a frame type we do not decode.
			d.state = sportIdle
			return false
		}
		d.body[d.n] = b
		d.n++
		if d.n < sportBodyLen {
			return false
		}
		d.state = sportIdle
		if sportCRC(d.body[:sportBodyLen-1]) != d.body[sportBodyLen-1] {
			return false
		}
		return d.apply(binary.LittleEndian.Uint16(d.body[1:3]), binary.LittleEndian.Uint32(d.body[3:7]))
	default:
		return false
	}
}

// apply folds one sensor value into the accumulated fix. It reports false for
// sensor ids that do not map onto a Fix field.
func (d *smartPortDecoder) apply(id uint16, v uint32) bool {
	f := &d.fix
	switch id {
	case sportLatLon:
		deg := float64(v&0x3FFFFFFF) / 600000.0
		if v&(1<<30) != 0 {
			deg = -deg
		}
		if v&(1<<31) != 0 {
			f.Longitude = deg
		} else {
			f.Latitude = deg
		}
	case sportAltitude:
		f.Altitude = int(int32(v) / 100)
	case sportSpeed:
		f.Speed = int(uint64(v) * 1852 / 1000000) // knots*1000 to km/h
	case sportCourse:
		f.Heading = int(v / 100)
	case sportVFAS:
		f.Voltage = float64(v) / 100
	case sportCurrent:
		f.Current = int(v / 10)
	case sportFuel:
		f.Fuel = int(int32(v))
	case sportMode:
		f.FlightMode = int(int32(v))
	case sportGPSState:
		f.Satellites = int(v % 100)
	case sportHomeDist:
		f.DistanceToHome = int(int32(v))
	case sportRSSI:
		f.RSSI = int(v)
	case sportPitch:
		f.Pitch = int(int32(v) / 10)
	case sportRoll:
		f.Roll = int(int32(v) / 10)
	default:
		return false
	}
	return true
}

func sportCRC(b []byte) byte {
	var crc uint16
	for _, x := range b {
		crc += uint16(x)
		crc += crc >> 8
		crc &= 0xFF
	}
	return byte(0xFF - crc)
}
