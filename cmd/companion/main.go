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
	d := getopt.StringLong("device", 'd', "", "Serial device of the telemetry link")
	p := getopt.StringLong("protocol", 'p', "", "Telemetry protocol: smartport, msp or custom")
	n := getopt.BoolLong("no-connect", 'n', "Start without opening the link")
	v := getopt.BoolLong("verbose", 'v', "Enable debug logging")

	getopt.Parse()

	if *h {
		getopt.Usage()
		os.Exit(1)
	}

	log.Init(*v)
	defer log.Sync()

	if err := config.InitGlobal(*c); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg := config.Get(); cfg != nil && cfg.Verbose && !*v {
		log.Init(true)
	}

	log.Println("starting flight companion")

	err := app.RunCompanion(app.CompanionOptions{
		Device:    *d,
		Protocol:  *p,
		NoConnect: *n,
	})
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
