// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/relabs-tech/flight_companion/internal/telemetry"
)

// EnvPrefix prefixes every environment override, e.g. COMPANION_LINK_DEVICE.
const EnvPrefix = "COMPANION_"

// ErrNotInitialized is returned by Require callers that skipped InitGlobal.
var ErrNotInitialized = errors.New("config: not initialized")

// Config holds all application configuration values.
type Config struct {
	// Link
	LinkDevice   string            `env:"LINK_DEVICE"`
	LinkBaudRate int               `env:"LINK_BAUD_RATE"`
	Protocol     telemetry.Variant `env:"PROTOCOL"`

	// Session timing, milliseconds
	PollInterval        int `env:"POLL_INTERVAL"`
	SessionTickInterval int `env:"SESSION_TICK_INTERVAL"`

	// MQTT relay; an empty broker disables relaying
	MQTTBroker          string `env:"MQTT_BROKER"`
	MQTTClientID        string `env:"MQTT_CLIENT_ID"`
	MQTTClientIDConsole string `env:"MQTT_CLIENT_ID_CONSOLE"`
	TopicRelay          string `env:"TOPIC_RELAY"`

	// Flight log store
	LogDBPath string `env:"LOG_DB_PATH"`

	// Web Server
	WebServerPort int `env:"WEB_SERVER_PORT"`

	// Display
	DisplayEnabled        bool   `env:"DISPLAY_ENABLED"`
	DisplayI2CBus         string `env:"DISPLAY_I2C_BUS"`         // empty picks the first bus
	DisplayUpdateInterval int    `env:"DISPLAY_UPDATE_INTERVAL"` // milliseconds

	// Console
	ConsoleEnabled     bool `env:"CONSOLE_ENABLED"`
	ConsoleLogInterval int  `env:"CONSOLE_LOG_INTERVAL"` // milliseconds
	Verbose            bool `env:"VERBOSE"`
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the values used for keys absent from the file.
func Default() *Config {
	return &Config{
		LinkDevice:            "/dev/ttyUSB0",
		LinkBaudRate:          57600,
		Protocol:              telemetry.SmartPort,
		PollInterval:          1000,
		SessionTickInterval:   1000,
		MQTTClientID:          "flight-companion",
		MQTTClientIDConsole:   "flight-companion-console",
		TopicRelay:            "companion/fix",
		LogDBPath:             "flightlog.db",
		WebServerPort:         8080,
		DisplayUpdateInterval: 500,
		ConsoleEnabled:        true,
		ConsoleLogInterval:    1000,
	}
}

// Load reads the configuration file on top of Default, applies
// COMPANION_* environment overrides and validates the result.
// An empty path skips the file.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.readFile(configPath); err != nil {
			return nil, err
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) readFile(configPath string) error {
	file, err := os.Open(configPath)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := c.setValue(key, value); err != nil {
			return fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Link
	case "LINK_DEVICE":
		c.LinkDevice = value
	case "LINK_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid LINK_BAUD_RATE %q: %w", value, err)
		}
		c.LinkBaudRate = rate
	case "PROTOCOL":
		v, err := telemetry.ParseVariant(value)
		if err != nil {
			return fmt.Errorf("invalid PROTOCOL: %w", err)
		}
		c.Protocol = v

	// Timing
	case "POLL_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid POLL_INTERVAL %q: %w", value, err)
		}
		c.PollInterval = interval
	case "SESSION_TICK_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SESSION_TICK_INTERVAL %q: %w", value, err)
		}
		c.SessionTickInterval = interval

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "TOPIC_RELAY":
		c.TopicRelay = value

	// Store
	case "LOG_DB_PATH":
		c.LogDBPath = value

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_ENABLED":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_ENABLED %q: %w", value, err)
		}
		c.DisplayEnabled = b
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	// Console
	case "CONSOLE_ENABLED":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid CONSOLE_ENABLED %q: %w", value, err)
		}
		c.ConsoleEnabled = b
	case "CONSOLE_LOG_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CONSOLE_LOG_INTERVAL %q: %w", value, err)
		}
		c.ConsoleLogInterval = interval
	case "VERBOSE":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid VERBOSE %q: %w", value, err)
		}
		c.Verbose = b

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.LinkDevice == "" {
		return fmt.Errorf("LINK_DEVICE is required")
	}
	if c.LinkBaudRate <= 0 {
		return fmt.Errorf("LINK_BAUD_RATE must be positive, got %d", c.LinkBaudRate)
	}
	if !c.Protocol.Valid() {
		return fmt.Errorf("PROTOCOL is invalid")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %d", c.PollInterval)
	}
	if c.SessionTickInterval <= 0 {
		return fmt.Errorf("SESSION_TICK_INTERVAL must be positive, got %d", c.SessionTickInterval)
	}
	if c.MQTTBroker != "" && c.TopicRelay == "" {
		return fmt.Errorf("TOPIC_RELAY is required when MQTT_BROKER is set")
	}
	if c.LogDBPath == "" {
		return fmt.Errorf("LOG_DB_PATH is required")
	}
	if c.WebServerPort < 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT must be 0-65535, got %d", c.WebServerPort)
	}
	if c.DisplayEnabled && c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be positive when the display is enabled")
	}
	if c.ConsoleEnabled && c.ConsoleLogInterval <= 0 {
		return fmt.Errorf("CONSOLE_LOG_INTERVAL must be positive when the console is enabled")
	}
	return nil
}

func (c *Config) PollPeriod() time.Duration {
	return time.Duration(c.PollInterval) * time.Millisecond
}

func (c *Config) TickPeriod() time.Duration {
	return time.Duration(c.SessionTickInterval) * time.Millisecond
}

func (c *Config) DisplayPeriod() time.Duration {
	return time.Duration(c.DisplayUpdateInterval) * time.Millisecond
}

func (c *Config) ConsolePeriod() time.Duration {
	return time.Duration(c.ConsoleLogInterval) * time.Millisecond
}

// InitGlobal initializes the global configuration from file.
// Only the first call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance, or nil before InitGlobal.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

// Require is Get for callers that cannot run without configuration.
func Require() (*Config, error) {
	cfg := Get()
	if cfg == nil {
		return nil, ErrNotInitialized
	}
	return cfg, nil
}
