// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"os"

	"github.com/pborman/getopt"

	"github.com/relabs-tech/flight_companion/internal/app"
	"github.com/relabs-tech/flight_companion/internal/config"
	"github.com/relabs-tech/flight_companion/internal/log"
)

func main() {
	h := getopt.BoolLong("help", 'h', "display help")
	c := getopt.StringLong("config", 'c', "", "Configuration file (KEY=VALUE)")

	getopt.Parse()

	if *h {
		getopt.Usage()
		os.Exit(1)
	}

	log.Init(false)
	defer log.Sync()

	log.Println("starting flight companion relay console (MQTT subscriber)")

	if err := config.InitGlobal(*c); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunRelayConsole(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
