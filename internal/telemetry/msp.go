// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import "encoding/binary"

// MSPCommand is an MSP v1 message id.
type MSPCommand uint8

const (
	MSPStatus   MSPCommand = 101
	MSPRawGPS   MSPCommand = 106
	MSPCompGPS  MSPCommand = 107
	MSPAttitude MSPCommand = 108
	MSPAnalog   MSPCommand = 110
)

// MSPPollOrder is the request batch sent once per poll period. The decoder
// emits a Fix on the ANALOG reply, so ANALOG must stay last.
var MSPPollOrder = []MSPCommand{MSPStatus, MSPRawGPS, MSPCompGPS, MSPAttitude, MSPAnalog}

// MSPRequest encodes a payload-less MSP v1 request: $ M < 0 cmd crc.
func MSPRequest(cmd MSPCommand) []byte {
	buf := []byte{'$', 'M', '<', 0, byte(cmd), 0}
	buf[5] = mspChecksum(buf[3:5])
	return buf
}

// MSPPollBatch returns the encoded poll requests in MSPPollOrder.
func MSPPollBatch() [][]byte {
	batch := make([][]byte, 0, len(MSPPollOrder))
	for _, cmd := range MSPPollOrder {
		batch = append(batch, MSPRequest(cmd))
	}
	return batch
}

func mspChecksum(b []byte) byte {
	var crc byte
	for _, x := range b {
		crc ^= x
	}
	return crc
}

type mspState int

const (
	mspIdle mspState = iota
	mspM
	mspDirection
	mspLen
	mspCmd
	mspData
	mspCRC
)

type mspDecoder struct {
	in     stream
	primed bool

	state mspState
	ok    bool
	size  int
	cmd   byte
	data  []byte
	crc   byte
	fix   Fix
}

func newMSPDecoder() *mspDecoder {
	return &mspDecoder{data: make([]byte, 0, 64)}
}

// Consume decodes MSP v1 replies. The decoder stays inert, discarding
// whatever it is handed, until it is primed with an empty call at link
// start; from then on a Fix is produced for every ANALOG reply, carrying the
// values gathered from the earlier replies of the same poll batch.
func (d *mspDecoder) Consume(p []byte) (Fix, bool) {
	if !d.primed {
		if len(p) == 0 {
			d.primed = true
		}
		return Fix{}, false
	}
	if d.in.feed(p, d.step) {
		return d.fix, true
	}
	return Fix{}, false
}

func (d *mspDecoder) step(b byte) bool {
	switch d.state {
	case mspIdle:
		if b == '$' {
			d.state = mspM
		}
	case mspM:
		if b == 'M' {
			d.state = mspDirection
		} else {
			d.state = mspIdle
		}
	case mspDirection:
		switch b {
		case '>':
			d.ok = true
			d.state = mspLen
		case '!':
			d.ok = false
			d.state = mspLen
		default:
			// '<' is our own request echoed back by some bridges.
			d.state = mspIdle
		}
	case mspLen:
		d.size = int(b)
		d.crc = b
		d.state = mspCmd
	case mspCmd:
		d.cmd = b
		d.crc ^= b
		d.data = d.data[:0]
		if d.size == 0 {
			d.state = mspCRC
		} else {
			d.state = mspData
		}
	case mspData:
		d.data = append(d.data, b)
		d.crc ^= b
		if len(d.data) == d.size {
			d.state = mspCRC
		}
	case mspCRC:
		d.state = mspIdle
		if b != d.crc || !d.ok {
			return false
		}
		return d.apply(MSPCommand(d.cmd), d.data)
	}
	return false
}

func (d *mspDecoder) apply(cmd MSPCommand, p []byte) bool {
	f := &d.fix
	le := binary.LittleEndian
	switch cmd {
	case MSPStatus:
		if len(p) >= 10 {
			f.FlightMode = int(le.Uint32(p[6:10]))
		}
	case MSPRawGPS:
		if len(p) >= 14 {
			f.Satellites = int(p[1])
			f.Latitude = float64(int32(le.Uint32(p[2:6]))) / 1e7
			f.Longitude = float64(int32(le.Uint32(p[6:10]))) / 1e7
			f.Altitude = int(le.Uint16(p[10:12]))
			f.Speed = int(le.Uint16(p[12:14])) * 36 / 1000 // cm/s to km/h
		}
	case MSPCompGPS:
		if len(p) >= 2 {
			f.DistanceToHome = int(le.Uint16(p[0:2]))
		}
	case MSPAttitude:
		if len(p) >= 6 {
			f.Roll = int(int16(le.Uint16(p[0:2])) / 10)
			f.Pitch = int(int16(le.Uint16(p[2:4])) / 10)
			f.Heading = int(int16(le.Uint16(p[4:6])))
		}
	case MSPAnalog:
		if len(p) < 7 {
			return false
		}
		f.Voltage = float64(p[0]) / 10
		f.Fuel = int(le.Uint16(p[1:3]))
		f.RSSI = int(le.Uint16(p[3:5])) * 100 / 1023
		f.Current = int(int16(le.Uint16(p[5:7])) / 100)
		return true
	}
	return false
}
