// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/relabs-tech/flight_companion/internal/link"
	"github.com/relabs-tech/flight_companion/internal/session"
	"github.com/relabs-tech/flight_companion/internal/telemetry"
)

func TestMSPSessionSurvivesReconnectsOnBusyLink(t *testing.T) {
	opener := func(string) (io.ReadWriteCloser, error) {
		local, remote := net.Pipe()
		go io.Copy(io.Discard, remote)
		go func() {
			for {
				if _, err := remote.Write(telemetry.MSPRequest(telemetry.MSPStatus)); err != nil {
					return
				}
			}
		}()
		return local, nil
	}

	serialLink := link.NewSerial(opener, nil)
	orch, err := session.New(session.Config{
		Protocol:   telemetry.MSP,
		TickPeriod: time.Millisecond,
		PollPeriod: time.Millisecond,
	}, serialLink, nil, nil)
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	serialLink.SetHandler(orch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go orch.Run(ctx)

	stop := make(chan struct{})
	var flood sync.WaitGroup
	for i := 0; i < 8; i++ {
		flood.Add(1)
		go func() {
			defer flood.Done()
			chunk := []byte{'$', 'M', '>', 0}
			for {
				select {
				case <-stop:
					return
				default:
					orch.LinkData(chunk)
				}
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			if err := orch.Connect("radio"); err != nil {
				t.Errorf("Connect: %v", err)
				return
			}
			time.Sleep(2 * time.Millisecond)
			if err := orch.Disconnect(); err != nil {
				t.Errorf("Disconnect: %v", err)
				return
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("session froze during reconnects")
	}
	close(stop)
	flood.Wait()

	deadline := time.Now().Add(2 * time.Second)
	for orch.Snapshot().Connected {
		if time.Now().After(deadline) {
			t.Fatal("session still connected after the last disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
