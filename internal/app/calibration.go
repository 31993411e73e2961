// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/micromouse_core/internal/calibration"
	"github.com/relabs-tech/micromouse_core/internal/config"
	"github.com/relabs-tech/micromouse_core/internal/telemetry"
)

// CalibrationOptions selects what RunCalibration does.
type CalibrationOptions struct {
	Procedure string // empty means interactive menu
	Cells     uint   // micrometers-per-count travel length
	Sim       bool
	UseSerial bool // ship log lines over the bluetooth serial link
	UseMQTT   bool // ship log lines over MQTT as well
}

// RunCalibration assembles the rig and runs one calibration procedure, or an
// interactive menu when none was named on the command line.
func RunCalibration(opts CalibrationOptions) error {
	cfg := config.Get()

	rig, err := NewRig(cfg, opts.Sim)
	if err != nil {
		return fmt.Errorf("calibration: %w", err)
	}
	defer rig.Close()

	emitters := telemetry.Multi{telemetry.Writer{W: os.Stdout}}

	if opts.UseSerial {
		ser, err := telemetry.OpenSerial(cfg)
		if err != nil {
			return fmt.Errorf("calibration: %w", err)
		}
		defer ser.Close()
		emitters = append(emitters, ser)
	}

	if opts.UseMQTT {
		mqttOpts := mqtt.NewClientOptions().
			AddBroker(cfg.MQTTBroker).
			SetClientID(cfg.MQTTClientIDCalibration)
		client := mqtt.NewClient(mqttOpts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			return fmt.Errorf("calibration: MQTT connect: %w", token.Error())
		}
		defer client.Disconnect(250)
		log.Printf("calibration: connected to MQTT broker at %s", cfg.MQTTBroker)
		emitters = append(emitters, telemetry.MQTT{Client: client, Topic: cfg.TopicLog})
	}

	orch := calibration.New(rig.HW, rig.Ctrl, rig.Odom, rig.Acq, emitters, cfg)

	if opts.Procedure != "" {
		log.Printf("calibration: running %s", opts.Procedure)
		return orch.Run(opts.Procedure, opts.Cells)
	}
	return calibrationMenu(orch, opts.Cells)
}

// calibrationMenu loops reading procedure choices from stdin until EOF or an
// explicit quit. Each run starts from a standstill.
func calibrationMenu(orch *calibration.Orchestrator, cells uint) error {
	reader := bufio.NewReader(os.Stdin)
	names := calibration.Procedures()

	for {
		fmt.Println()
		fmt.Println("Calibration procedures:")
		for i, name := range names {
			fmt.Printf("  %d) %s\n", i+1, name)
		}
		fmt.Println("  q) quit")
		fmt.Print("> ")

		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println()
			return nil
		}
		choice := strings.TrimSpace(line)
		if choice == "q" || choice == "quit" {
			return nil
		}

		n, err := strconv.Atoi(choice)
		if err != nil || n < 1 || n > len(names) {
			fmt.Printf("invalid choice %q\n", choice)
			continue
		}

		name := names[n-1]
		log.Printf("calibration: running %s", name)
		if err := orch.Run(name, cells); err != nil {
			log.Printf("calibration: %s: %v", name, err)
		}
	}
}
