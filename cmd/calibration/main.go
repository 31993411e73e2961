// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/micromouse_core/internal/app"
	"github.com/relabs-tech/micromouse_core/internal/config"
)

func main() {
	configPath := flag.String("config", "./mouse_config.txt", "path to configuration file")
	procedure := flag.String("procedure", "", "calibration procedure to run (empty for interactive menu)")
	cells := flag.Uint("cells", 5, "cells to cross in the micrometers-per-count run")
	sim := flag.Bool("sim", false, "run against the simulated rig instead of the board")
	useSerial := flag.Bool("serial", false, "ship log lines over the bluetooth serial link")
	useMQTT := flag.Bool("mqtt", false, "ship log lines over MQTT as well")
	flag.Parse()

	log.Println("starting mousecore calibration")

	// Load configuration
	if *sim {
		config.InitGlobalDefaults()
	} else if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	err := app.RunCalibration(app.CalibrationOptions{
		Procedure: *procedure,
		Cells:     *cells,
		Sim:       *sim,
		UseSerial: *useSerial,
		UseMQTT:   *useMQTT,
	})
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
