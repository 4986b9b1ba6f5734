// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"fmt"
	"os"

	"github.com/pborman/getopt"

	"github.com/relabs-tech/flight_companion/internal/app"
	"github.com/relabs-tech/flight_companion/internal/config"
)

func main() {
	h := getopt.BoolLong("help", 'h', "display help")
	c := getopt.StringLong("config", 'c', "", "Configuration file (KEY=VALUE)")
	getopt.SetParameters("list | dump <segment> | clear")

	getopt.Parse()

	if *h || getopt.NArgs() == 0 {
		getopt.Usage()
		os.Exit(1)
	}

	if err := config.InitGlobal(*c); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := app.RunFlightLogs(getopt.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
