// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/flight_companion/internal/telemetry"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type message struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu      sync.Mutex
	msgs    []message
	err     error
	handler mqtt.MessageHandler
	topic   string
}

func (c *fakeClient) Subscribe(topic string, _ byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topic = topic
	c.handler = callback
	return doneToken{err: c.err}
}

// deliver plays a broker message into the subscription.
func (c *fakeClient) deliver(payload []byte, retained bool) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	h(nil, fakeMessage{topic: c.topic, payload: payload, retained: retained})
}

type fakeMessage struct {
	topic    string
	payload  []byte
	retained bool
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return m.retained }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func (c *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, message{topic: topic, retained: retained, payload: payload.([]byte)})
	return doneToken{err: c.err}
}

func (c *fakeClient) sent() []message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]message(nil), c.msgs...)
}

func runRelay(t *testing.T, m *MQTT) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitSent(t *testing.T, c *fakeClient, n int) []message {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		msgs := c.sent()
		if len(msgs) >= n {
			return msgs
		}
		if time.Now().After(deadline) {
			t.Fatalf("sent %d messages, want %d", len(msgs), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPublishRoundTrip(t *testing.T) {
	client := &fakeClient{}
	m := New(client, "companion/fix")
	runRelay(t, m)

	want := telemetry.LogFix{
		SessionID: "3f1c",
		Time:      time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
		Latitude:  47.3769,
		Longitude: 8.5417,
	}
	m.Publish(want)

	msgs := waitSent(t, client, 1)
	if msgs[0].topic != "companion/fix" || !msgs[0].retained {
		t.Fatalf("message = %+v", msgs[0])
	}
	got, err := DecodeFix(msgs[0].payload)
	if err != nil {
		t.Fatalf("DecodeFix: %v", err)
	}
	if got.SessionID != want.SessionID || !got.Time.Equal(want.Time) ||
		got.Latitude != want.Latitude || got.Longitude != want.Longitude {
		t.Fatalf("decoded %+v, want %+v", got, want)
	}
}

func TestPublishErrorsDoNotStopRelay(t *testing.T) {
	client := &fakeClient{err: errors.New("not connected")}
	m := New(client, "t")
	runRelay(t, m)

	m.Publish(telemetry.LogFix{Latitude: 1})
	m.Publish(telemetry.LogFix{Latitude: 2})
	waitSent(t, client, 2)
}

func TestPublishNeverBlocks(t *testing.T) {
	m := New(&fakeClient{}, "t")
	done := make(chan struct{})
	go func() {
		for i := 0; i < 2*queueSize; i++ {
			m.Publish(telemetry.LogFix{})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked without a running relay")
	}
}

func TestDecodeFixRejectsGarbage(t *testing.T) {
	if _, err := DecodeFix([]byte("{lat:")); err == nil {
		t.Fatal("DecodeFix accepted invalid JSON")
	}
}

func TestWatchDeliversLiveFixes(t *testing.T) {
	client := &fakeClient{}
	var got []telemetry.LogFix
	if err := Watch(client, "companion/fix", func(f telemetry.LogFix) { got = append(got, f) }); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if client.topic != "companion/fix" {
		t.Fatalf("subscribed to %q", client.topic)
	}

	client.deliver([]byte(`{"session":"old","lat":1,"lon":1}`), true)
	client.deliver([]byte(`{lat:`), false)
	client.deliver([]byte(`{"session":"remote","lat":45.5,"lon":9.25}`), false)

	if len(got) != 1 {
		t.Fatalf("delivered %+v, want one live fix", got)
	}
	if got[0].SessionID != "remote" || got[0].Latitude != 45.5 || got[0].Longitude != 9.25 {
		t.Fatalf("fix = %+v", got[0])
	}
}

func TestWatchReportsSubscribeError(t *testing.T) {
	client := &fakeClient{err: errors.New("not authorized")}
	if err := Watch(client, "t", func(telemetry.LogFix) {}); err == nil {
		t.Fatal("Watch ignored the subscribe error")
	}
}
