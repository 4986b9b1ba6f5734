// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/relabs-tech/flight_companion/internal/telemetry"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "companion.config")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
# ground station
LINK_DEVICE=/dev/ttyACM0
LINK_BAUD_RATE = 115200
PROTOCOL=msp
POLL_INTERVAL=250
MQTT_BROKER=tcp://localhost:1883
TOPIC_RELAY=plane/fix
LOG_DB_PATH=/var/lib/companion/log.db
WEB_SERVER_PORT=9000
DISPLAY_ENABLED=true
DISPLAY_I2C_BUS=/dev/i2c-1
VERBOSE=1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LinkDevice != "/dev/ttyACM0" || cfg.LinkBaudRate != 115200 {
		t.Fatalf("link = %q@%d", cfg.LinkDevice, cfg.LinkBaudRate)
	}
	if cfg.Protocol != telemetry.MSP {
		t.Fatalf("protocol = %v, want msp", cfg.Protocol)
	}
	if cfg.PollPeriod() != 250*time.Millisecond {
		t.Fatalf("poll period = %v", cfg.PollPeriod())
	}
	if cfg.TickPeriod() != time.Second {
		t.Fatalf("tick period = %v, want default 1s", cfg.TickPeriod())
	}
	if cfg.DisplayI2CBus != "/dev/i2c-1" || !cfg.DisplayEnabled {
		t.Fatalf("display = %v on %q", cfg.DisplayEnabled, cfg.DisplayI2CBus)
	}
	if !cfg.Verbose || !cfg.ConsoleEnabled {
		t.Fatalf("verbose=%v console=%v", cfg.Verbose, cfg.ConsoleEnabled)
	}
}

func TestLoadRejectsBadLines(t *testing.T) {
	cases := map[string]string{
		"missing equals": "LINK_DEVICE\n",
		"unknown key":    "NOPE=1\n",
		"bad protocol":   "PROTOCOL=mavlink\n",
		"bad baud":       "LINK_BAUD_RATE=fast\n",
		"bad bool":       "VERBOSE=maybe\n",
		"zero poll":      "POLL_INTERVAL=0\n",
		"relay no topic": "MQTT_BROKER=tcp://x:1883\nTOPIC_RELAY=\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatalf("Load accepted %q", body)
			}
		})
	}
}

func TestLoadLineNumberInError(t *testing.T) {
	_, err := Load(writeConfig(t, "# c\nLINK_DEVICE=/dev/x\nBOGUS=1\n"))
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("err = %v, want line 3", err)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "LINK_DEVICE=/dev/ttyUSB1\nPROTOCOL=smartport\n")
	t.Setenv("COMPANION_LINK_DEVICE", "/dev/ttyS3")
	t.Setenv("COMPANION_PROTOCOL", "custom")
	t.Setenv("COMPANION_WEB_SERVER_PORT", "7001")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LinkDevice != "/dev/ttyS3" {
		t.Fatalf("device = %q", cfg.LinkDevice)
	}
	if cfg.Protocol != telemetry.Custom {
		t.Fatalf("protocol = %v", cfg.Protocol)
	}
	if cfg.WebServerPort != 7001 {
		t.Fatalf("port = %d", cfg.WebServerPort)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Protocol != telemetry.SmartPort || cfg.LogDBPath == "" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("Load of a missing file succeeded")
	}
}

func TestRequireBeforeInit(t *testing.T) {
	if _, err := Require(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Require = %v, want ErrNotInitialized", err)
	}
}
