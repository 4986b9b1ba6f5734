// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"fmt"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
)

// TypeITEL is the sentence type of the custom telemetry line:
//
//	$PITEL,lat,lon,alt,sats,dist,speed,volt,rssi,current,heading,mode,fuel,roll,pitch*HH
//
// It is an NMEA-0183 proprietary sentence ("P" talker), so the usual
// checksum rules apply.
const TypeITEL = "ITEL"

// Longest line accepted, terminator included; anything longer is noise.
const maxSentenceLen = 256

// ITEL is a parsed $PITEL sentence.
type ITEL struct {
	nmea.BaseSentence
	Fix Fix
}

func newITEL(s nmea.BaseSentence) (nmea.Sentence, error) {
	p := nmea.NewParser(s)
	p.AssertType(TypeITEL)
	m := ITEL{
		BaseSentence: s,
		Fix: Fix{
			Latitude:       p.Float64(0, "latitude"),
			Longitude:      p.Float64(1, "longitude"),
			Altitude:       int(p.Int64(2, "altitude")),
			Satellites:     int(p.Int64(3, "satellites")),
			DistanceToHome: int(p.Int64(4, "distance")),
			Speed:          int(p.Int64(5, "speed")),
			Voltage:        p.Float64(6, "voltage"),
			RSSI:           int(p.Int64(7, "rssi")),
			Current:        int(p.Int64(8, "current")),
			Heading:        int(p.Int64(9, "heading")),
			FlightMode:     int(p.Int64(10, "flight mode")),
			Fuel:           int(p.Int64(11, "fuel")),
			Roll:           int(p.Int64(12, "roll")),
			Pitch:          int(p.Int64(13, "pitch")),
		},
	}
	return m, p.Err()
}

// EncodeITEL renders f as a terminated $PITEL sentence.
func EncodeITEL(f Fix) []byte {
	body := fmt.Sprintf("P%s,%.7f,%.7f,%d,%d,%d,%d,%.2f,%d,%d,%d,%d,%d,%d,%d", TypeITEL,
		f.Latitude, f.Longitude, f.Altitude, f.Satellites, f.DistanceToHome, f.Speed,
		f.Voltage, f.RSSI, f.Current, f.Heading, f.FlightMode, f.Fuel, f.Roll, f.Pitch)
	return []byte("$" + body + "*" + nmea.Checksum(body) + "\r\n")
}

type sentenceDecoder struct {
	in     stream
	parser nmea.SentenceParser
	line   []byte
	inLine bool
	fix    Fix
}

func newSentenceDecoder() *sentenceDecoder {
	return &sentenceDecoder{
		parser: nmea.SentenceParser{
			CustomParsers: map[string]nmea.ParserFunc{
				TypeITEL: newITEL,
			},
		},
		line: make([]byte, 0, maxSentenceLen),
	}
}

func (d *sentenceDecoder) Consume(p []byte) (Fix, bool) {
	if d.in.feed(p, d.step) {
		return d.fix, true
	}
	return Fix{}, false
}

func (d *sentenceDecoder) step(b byte) bool {
	switch {
	case b == '$':
		// Start of a sentence; a half-received one is abandoned.
		d.line = append(d.line[:0], b)
		d.inLine = true
		return false
	case !d.inLine:
		return false
	case b == '\n':
		d.inLine = false
		return d.parse(strings.TrimRight(string(d.line), "\r"))
	case len(d.line) >= maxSentenceLen:
		d.inLine = false
		return false
	default:
		d.line = append(d.line, b)
		return false
	}
}

func (d *sentenceDecoder) parse(raw string) bool {
	s, err := d.parser.Parse(raw)
	if err != nil {
		return false
	}
	m, ok := s.(ITEL)
	if !ok {
		return false
	}
	d.fix = m.Fix
	return true
}
