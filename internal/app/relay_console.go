// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/flight_companion/internal/config"
	"github.com/relabs-tech/flight_companion/internal/log"
	"github.com/relabs-tech/flight_companion/internal/relay"
	"github.com/relabs-tech/flight_companion/internal/telemetry"
)

// RunRelayConsole prints every fix relayed by a companion until Ctrl+C.
func RunRelayConsole() error {
	cfg, err := config.Require()
	if err != nil {
		return err
	}
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required for the relay console")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicRelay, 0, func(_ mqtt.Client, msg mqtt.Message) {
		fix, err := relay.DecodeFix(msg.Payload())
		if err != nil {
			log.Printf("console: %v", err)
			return
		}
		fmt.Println(formatRelayedFix(fix))
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicRelay)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}

func formatRelayedFix(f telemetry.LogFix) string {
	return fmt.Sprintf("[FIX] %s session=%s lat=%.6f lon=%.6f",
		f.Time.Format("15:04:05.000"), f.SessionID, f.Latitude, f.Longitude)
}
