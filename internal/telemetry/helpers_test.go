// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"encoding/binary"
	"math"
)

// sportFrame encodes one SmartPort data frame, stuffing as the radio does.
func sportFrame(id uint16, v uint32) []byte {
	body := make([]byte, 7, 8)
	body[0] = sportDataFrame
	binary.LittleEndian.PutUint16(body[1:3], id)
	binary.LittleEndian.PutUint32(body[3:7], v)
	body = append(body, sportCRC(body))

	out := []byte{sportStart, 0x1B}
	for _, b := range body {
		if b == sportStart || b == sportStuff {
			out = append(out, sportStuff, b^sportStuffMask)
			continue
		}
		out = append(out, b)
	}
	return out
}

func sportCoord(deg float64, lon bool) uint32 {
	v := uint32(math.Round(math.Abs(deg) * 600000))
	if deg < 0 {
		v |= 1 << 30
	}
	if lon {
		v |= 1 << 31
	}
	return v
}

func mspReply(cmd MSPCommand, payload []byte) []byte {
	buf := []byte{'$', 'M', '>', byte(len(payload)), byte(cmd)}
	buf = append(buf, payload...)
	return append(buf, mspChecksum(buf[3:]))
}

// mspCycle encodes the replies to one poll batch.
func mspCycle(flags uint32, sats byte, lat, lon float64) []byte {
	le := binary.LittleEndian
	status := make([]byte, 11)
	le.PutUint32(status[6:10], flags)

	gps := make([]byte, 16)
	gps[0] = 2
	gps[1] = sats
	le.PutUint32(gps[2:6], uint32(int32(lat*1e7)))
	le.PutUint32(gps[6:10], uint32(int32(lon*1e7)))
	le.PutUint16(gps[10:12], 120)  // m
	le.PutUint16(gps[12:14], 1000) // cm/s
	le.PutUint16(gps[14:16], 900)

	comp := make([]byte, 5)
	le.PutUint16(comp[0:2], 350)

	att := make([]byte, 6)
	roll := int16(-125)
	le.PutUint16(att[0:2], uint16(roll))
	le.PutUint16(att[2:4], 50)
	le.PutUint16(att[4:6], 270)

	analog := make([]byte, 7)
	analog[0] = 126
	le.PutUint16(analog[1:3], 850)
	le.PutUint16(analog[3:5], 1023)
	le.PutUint16(analog[5:7], 1250)

	var out []byte
	out = append(out, mspReply(MSPStatus, status)...)
	out = append(out, mspReply(MSPRawGPS, gps)...)
	out = append(out, mspReply(MSPCompGPS, comp)...)
	out = append(out, mspReply(MSPAttitude, att)...)
	out = append(out, mspReply(MSPAnalog, analog)...)
	return out
}

func itelSentence(f Fix) string {
	return string(EncodeITEL(f))
}

// drain collects every fix the decoder yields for the given chunks.
func drain(d Decoder, chunks ...[]byte) []Fix {
	var out []Fix
	for _, c := range chunks {
		for fix, ok := d.Consume(c); ok; fix, ok = d.Consume(nil) {
			out = append(out, fix)
		}
	}
	return out
}

func bytewise(p []byte) [][]byte {
	out := make([][]byte, len(p))
	for i := range p {
		out[i] = p[i : i+1]
	}
	return out
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-5
}
