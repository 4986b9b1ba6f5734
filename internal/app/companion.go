// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/flight_companion/internal/config"
	"github.com/relabs-tech/flight_companion/internal/link"
	"github.com/relabs-tech/flight_companion/internal/log"
	"github.com/relabs-tech/flight_companion/internal/relay"
	"github.com/relabs-tech/flight_companion/internal/session"
	"github.com/relabs-tech/flight_companion/internal/storage"
	"github.com/relabs-tech/flight_companion/internal/storage/sqlite"
	"github.com/relabs-tech/flight_companion/internal/telemetry"
)

const (
	shutdownTimeout = 5 * time.Second
	simPeriod       = 200 * time.Millisecond
)

// CompanionOptions override configuration from the command line.
type CompanionOptions struct {
	Device    string
	Protocol  string
	NoConnect bool
}

// flightLogs serves the web API from the store, flushing through the
// recorder first.
type flightLogs struct {
	*sqlite.Store
	rec *storage.Recorder
}

func (l flightLogs) Flush(ctx context.Context) error {
	return l.rec.Flush(ctx)
}

// RunCompanion runs the ground station until SIGINT or SIGTERM.
func RunCompanion(opts CompanionOptions) error {
	global, err := config.Require()
	if err != nil {
		return err
	}
	cfg := *global

	if opts.Device != "" {
		cfg.LinkDevice = opts.Device
	}
	if opts.Protocol != "" {
		v, err := telemetry.ParseVariant(opts.Protocol)
		if err != nil {
			return err
		}
		cfg.Protocol = v
	}
	if opts.NoConnect {
		cfg.LinkDevice = ""
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.LinkDevice == link.SimDevice && cfg.Protocol != telemetry.Custom {
		log.Printf("companion: the simulator speaks %s sentences, %s will not decode", telemetry.Custom, cfg.Protocol)
	}

	opener := link.WithSimulator(link.SerialOpener(cfg.LinkBaudRate), simPeriod)
	return runCompanion(ctx, cfg, opener)
}

func runCompanion(ctx context.Context, cfg config.Config, opener link.Opener) error {
	store, err := sqlite.Open(cfg.LogDBPath)
	if err != nil {
		return fmt.Errorf("open flight log: %w", err)
	}
	defer store.Close()
	rec := storage.NewRecorder(store)

	serialLink := link.NewSerial(opener, nil)

	var (
		rel        session.Relay
		mqttRelay  *relay.MQTT
		mqttClient mqtt.Client
	)
	if cfg.MQTTBroker != "" {
		client, r, err := relay.Dial(cfg.MQTTBroker, cfg.MQTTClientID, cfg.TopicRelay)
		if err != nil {
			log.Errorf("companion: relay disabled: %v", err)
		} else {
			defer client.Disconnect(250)
			mqttClient = client
			mqttRelay = r
			rel = r
		}
	}

	orch, err := session.New(session.Config{
		Protocol:   cfg.Protocol,
		TickPeriod: cfg.TickPeriod(),
		PollPeriod: cfg.PollPeriod(),
	}, serialLink, rec, rel)
	if err != nil {
		return err
	}
	serialLink.SetHandler(orch)

	if mqttClient != nil {
		if err := relay.Watch(mqttClient, cfg.TopicRelay, orch.PlaneSeen); err != nil {
			log.Errorf("companion: other aircraft not shown: %v", err)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           NewWebHandler(orch, flightLogs{Store: store, rec: rec}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	// The recorder outlives the orchestrator so the last segment gets closed.
	recCtx, stopRecorder := context.WithCancel(context.Background())
	g.Go(func() error { return rec.Run(recCtx) })
	g.Go(func() error {
		defer stopRecorder()
		return orch.Run(ctx)
	})

	if mqttRelay != nil {
		g.Go(func() error { return mqttRelay.Run(ctx) })
	}

	g.Go(func() error {
		log.Printf("web: server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("web server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		serialLink.Disconnect()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.ConsoleEnabled {
		g.Go(func() error { return runConsole(ctx, orch, os.Stdout, cfg.ConsolePeriod()) })
	}
	if cfg.DisplayEnabled {
		g.Go(func() error {
			if err := runDisplay(ctx, cfg.DisplayI2CBus, cfg.DisplayPeriod(), orch); err != nil {
				log.Errorf("display: %v", err)
			}
			return nil
		})
	}

	if cfg.LinkDevice != "" {
		if err := serialLink.Connect(cfg.LinkDevice); err != nil {
			log.Errorf("companion: %v", err)
		}
	}

	log.Printf("companion: running with %s telemetry", cfg.Protocol)
	err = g.Wait()
	log.Printf("companion: shut down")
	return err
}
