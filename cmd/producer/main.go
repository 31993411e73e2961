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
	sim := flag.Bool("sim", false, "run against the simulated rig instead of the board")
	useSerial := flag.Bool("serial", false, "mirror the sensor line on the bluetooth serial link")
	flag.Parse()

	log.Println("starting mousecore producer (sensors/motion over MQTT)")

	// Load configuration
	if *sim {
		config.InitGlobalDefaults()
	} else if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	err := app.RunProducer(app.ProducerOptions{
		Sim:       *sim,
		UseSerial: *useSerial,
	})
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
