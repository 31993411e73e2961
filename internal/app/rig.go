// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package app wires the packages into the runnable commands: the on-robot
// calibration and sensor producer, and the off-robot MQTT consumers
// (console, web, display).
package app

import (
	"fmt"
	"log"

	"github.com/relabs-tech/micromouse_core/internal/config"
	"github.com/relabs-tech/micromouse_core/internal/hal"
	"github.com/relabs-tech/micromouse_core/internal/motion"
	"github.com/relabs-tech/micromouse_core/internal/motor"
	"github.com/relabs-tech/micromouse_core/internal/odometry"
	"github.com/relabs-tech/micromouse_core/internal/sensors"
)

// Rig is the assembled on-robot stack: hardware, odometry, actuation, the
// speed controller and the sensor acquisition, all built from one config.
type Rig struct {
	HW   hal.Hardware
	Odom *odometry.Odometry
	Act  *motor.Actuator
	Ctrl *motion.Controller
	Acq  *sensors.Acquisition

	closeFn func() error
}

// NewRig builds the stack on the real board, or on the simulated rig when
// sim is true. The scan is armed before returning.
func NewRig(cfg *config.Config, sim bool) (*Rig, error) {
	var (
		hw      hal.Hardware
		closeFn func() error
	)
	if sim {
		log.Println("rig: using simulated hardware")
		hw = hal.NewSim(cfg)
		closeFn = func() error { return nil }
	} else {
		board, err := hal.NewBoard(cfg)
		if err != nil {
			return nil, fmt.Errorf("board init: %w", err)
		}
		hw = board
		closeFn = board.Close
	}

	odom := odometry.New(hw, cfg)
	act := motor.New(hw, cfg)
	ctrl := motion.NewController(hw, odom, act, odometry.NewWheelHeading(odom, cfg), cfg)
	acq := sensors.New(hw, cfg)

	if err := acq.Start(); err != nil {
		closeFn()
		return nil, fmt.Errorf("scan start: %w", err)
	}

	if !sim {
		// Boot battery check: let one scan complete, then read the
		// battery divider rank.
		hw.SleepTicks(uint32(2 * cfg.ScanPeriodTicks))
		raw := hw.ReadInjectedChannel(cfg.BatteryADCChannel)
		if sensors.BatteryLow(raw) {
			log.Printf("rig: WARNING battery low (raw=%d, limit=%d)", raw, hal.BatteryLowLimit)
		}
	}

	return &Rig{HW: hw, Odom: odom, Act: act, Ctrl: ctrl, Acq: acq, closeFn: closeFn}, nil
}

// Close stops the scan and the motors and releases the hardware.
func (r *Rig) Close() error {
	r.Acq.Stop()
	r.Act.Stop()
	return r.closeFn()
}
