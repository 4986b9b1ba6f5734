// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package relay forwards logged fixes over MQTT and receives those of other
// companions sharing the topic.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/flight_companion/internal/log"
	"github.com/relabs-tech/flight_companion/internal/telemetry"
)

const (
	queueSize      = 256
	publishTimeout = 5 * time.Second
)

// publisher is the subset of mqtt.Client used for relaying.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// subscriber is the subset of mqtt.Client used for watching the topic.
type subscriber interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// MQTT publishes LogFix values as JSON on one topic. Publish only queues;
// Run does the network work.
type MQTT struct {
	client publisher
	topic  string
	queue  chan telemetry.LogFix
}

func New(client publisher, topic string) *MQTT {
	return &MQTT{
		client: client,
		topic:  topic,
		queue:  make(chan telemetry.LogFix, queueSize),
	}
}

// Dial connects to broker and returns the client together with a relay
// publishing on topic. The session is persistent so subscriptions made with
// Watch survive reconnects.
func Dial(broker, clientID, topic string) (mqtt.Client, *MQTT, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetCleanSession(false).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, nil, fmt.Errorf("relay: connect %s: %w", broker, token.Error())
	}
	log.Printf("relay: connected to MQTT broker at %s", broker)
	return client, New(client, topic), nil
}

// Publish queues fix; it is dropped when the queue is full.
func (m *MQTT) Publish(fix telemetry.LogFix) {
	select {
	case m.queue <- fix:
	default:
		log.Errorf("relay: queue full, dropping fix")
	}
}

// Run publishes queued fixes until ctx is cancelled.
func (m *MQTT) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case fix := <-m.queue:
			m.send(fix)
		}
	}
}

func (m *MQTT) send(fix telemetry.LogFix) {
	payload, err := json.Marshal(fix)
	if err != nil {
		log.Errorf("relay: marshal error: %v", err)
		return
	}

	token := m.client.Publish(m.topic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		log.Errorf("relay: publish to %s timed out", m.topic)
		return
	}
	if err := token.Error(); err != nil {
		log.Errorf("relay: publish error: %v", err)
	}
}

// Watch subscribes to topic and hands every live relayed fix to fn.
// Retained messages are skipped; they can be arbitrarily old.
func Watch(client subscriber, topic string, fn func(telemetry.LogFix)) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		if msg.Retained() {
			return
		}
		fix, err := DecodeFix(msg.Payload())
		if err != nil {
			log.Debugf("relay: %v", err)
			return
		}
		fn(fix)
	})
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("relay: subscribe to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("relay: subscribe to %s: %w", topic, err)
	}
	log.Printf("relay: watching %s", topic)
	return nil
}

// DecodeFix parses a relayed payload.
func DecodeFix(payload []byte) (telemetry.LogFix, error) {
	var fix telemetry.LogFix
	if err := json.Unmarshal(payload, &fix); err != nil {
		return telemetry.LogFix{}, fmt.Errorf("relay: decode fix: %w", err)
	}
	return fix, nil
}
