// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"image"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/flight_companion/internal/log"
	"github.com/relabs-tech/flight_companion/internal/session"
)

const (
	displayWidth  = 128
	displayHeight = 64
	lineHeight    = 13
)

// runDisplay mirrors the session on an SSD1306 OLED.
func runDisplay(ctx context.Context, bus string, interval time.Duration, ctl Controller) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	b, err := i2creg.Open(bus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer b.Close()

	dev, err := ssd1306.NewI2C(b, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	defer dev.Halt()
	log.Printf("display: initialized on %s", b)

	if err := dev.Draw(dev.Bounds(), renderLines("Flight", "Companion", "No link"), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			img := renderSnapshot(ctl.Snapshot())
			if err := dev.Draw(dev.Bounds(), img, image.Point{}); err != nil {
				log.Printf("display: error updating display: %v", err)
			}
		}
	}
}

// renderSnapshot lays out up to four lines of session status.
func renderSnapshot(snap session.Snapshot) *image1bit.VerticalLSB {
	if !snap.Connected {
		return renderLines(snap.Protocol.String(), "No link")
	}

	f := snap.Fix
	if !snap.Viewport.Locked {
		return renderLines(
			snap.Protocol.String(),
			fmt.Sprintf("Sats: %d", f.Satellites),
			"Looking for",
			"home...",
		)
	}

	latDir := "N"
	lat := f.Latitude
	if lat < 0 {
		latDir = "S"
		lat = -lat
	}
	lonDir := "E"
	lon := f.Longitude
	if lon < 0 {
		lonDir = "W"
		lon = -lon
	}

	armed := "SAFE"
	if snap.Derived.Armed {
		armed = fmt.Sprintf("ARM %s", time.Duration(snap.ArmedSeconds)*time.Second)
	}

	return renderLines(
		fmt.Sprintf("%.4f%s", lat, latDir),
		fmt.Sprintf("%.4f%s", lon, lonDir),
		fmt.Sprintf("%dm %.1fV", f.Altitude, f.Voltage),
		armed,
	)
}

func renderLines(lines ...string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		drawer.Dot = fixed.P(0, lineHeight*(i+1))
		drawer.DrawString(line)
	}
	return img
}
