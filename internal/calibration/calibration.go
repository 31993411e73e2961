// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calibration sequences the test maneuvers used to characterize the
// robot: speed profiles, turn profiles, sensor profiling and the
// micrometers-per-count run. Every procedure disables the external
// wall-corrective controller before moving and always unwinds to a safe
// idle: zero targets, motors stopped, default limits back in force, even
// when the actuation loop saw something unexpected.
package calibration

import (
	"fmt"
	"log"
	"math"

	"github.com/relabs-tech/micromouse_core/internal/config"
	"github.com/relabs-tech/micromouse_core/internal/hal"
	"github.com/relabs-tech/micromouse_core/internal/motion"
	"github.com/relabs-tech/micromouse_core/internal/odometry"
	"github.com/relabs-tech/micromouse_core/internal/sensors"
	"github.com/relabs-tech/micromouse_core/internal/telemetry"
)

const (
	// linearTestMicrometers is the travel held at max speed during the
	// linear profile.
	linearTestMicrometers = 500000

	// angularTestSpeed is the fixed angular target of the turn profiles.
	angularTestSpeed = 4 * math.Pi

	// rampLogTicks is the log window around a ramp transition.
	rampLogTicks = 1000

	// profilingIterations is the batch size of the distances benchmark.
	profilingIterations = 1000

	// sideCalibrationTicks is the baseline capture window for the side
	// sensors.
	sideCalibrationTicks = 100
)

// Orchestrator composes odometry, motion and acquisition into named test
// procedures.
type Orchestrator struct {
	hw   hal.Hardware
	ctrl *motion.Controller
	odom *odometry.Odometry
	acq  *sensors.Acquisition
	emit telemetry.Emitter

	cell        float64
	wall        float64
	head        float64
	tail        float64
	settleTicks uint32
}

func New(hw hal.Hardware, ctrl *motion.Controller, odom *odometry.Odometry, acq *sensors.Acquisition, emit telemetry.Emitter, cfg *config.Config) *Orchestrator {
	if emit == nil {
		emit = telemetry.Discard{}
	}
	return &Orchestrator{
		hw:          hw,
		ctrl:        ctrl,
		odom:        odom,
		acq:         acq,
		emit:        emit,
		cell:        cfg.CellDimension,
		wall:        cfg.WallWidth,
		head:        cfg.MouseHead,
		tail:        cfg.MouseTail,
		settleTicks: uint32(cfg.SettleLogTicks),
	}
}

// Procedures lists the runnable procedure names, in menu order.
func Procedures() []string {
	return []string{
		"linear_speed_profile",
		"angular_speed_profile",
		"static_turn_right_profile",
		"distances_profiling",
		"micrometers_per_count",
		"front_sensors_calibration",
	}
}

// Run dispatches a procedure by name. cells only applies to the
// micrometers-per-count run.
func (o *Orchestrator) Run(name string, cells uint) error {
	switch name {
	case "linear_speed_profile":
		o.RunLinearSpeedProfile()
	case "angular_speed_profile":
		o.RunAngularSpeedProfile()
	case "static_turn_right_profile":
		o.RunStaticTurnRightProfile()
	case "distances_profiling":
		o.RunDistancesProfiling()
	case "micrometers_per_count":
		o.RunMicrometersPerCountCalibration(cells)
	case "front_sensors_calibration":
		o.RunFrontSensorsCalibration()
	default:
		return fmt.Errorf("unknown calibration procedure %q", name)
	}
	return nil
}

// each runs the control loop for the given number of ticks, invoking fn on
// every tick whose index is a multiple of period.
func (o *Orchestrator) each(period uint32, fn func(), ticks uint32) {
	for i := uint32(0); i < ticks; i++ {
		if period > 0 && i%period == 0 {
			fn()
		}
		o.ctrl.StepTick()
	}
}

// reset unwinds to the idle condition. Deferred by every procedure.
func (o *Orchestrator) reset() {
	o.ctrl.ResetMotion()
	o.ctrl.RestoreDefaultLimits()
	o.ctrl.DisableMotorControl()
}

// AngularHoldTicks converts a turn angle and angular speed into the hold
// duration of the turn profiles. Matches the original control loop: 1000
// ticks per second of hold, truncated toward zero.
func AngularHoldTicks(turn, angularSpeed float64) uint32 {
	return uint32(1000 * turn / angularSpeed)
}

func (o *Orchestrator) logLinearSpeed() {
	s := o.ctrl.Snapshot()
	o.emitLine(fmt.Sprintf("LIN: %d, %.4f, %.4f, %d",
		o.hw.ClockTicks(), s.TargetLinearSpeed, s.CurrentLinearSpeed, s.Micrometers))
}

func (o *Orchestrator) logAngularSpeed() {
	s := o.ctrl.Snapshot()
	o.emitLine(fmt.Sprintf("ANG: %d, %.4f, %.4f, %.4f",
		o.hw.ClockTicks(), s.TargetAngularSpeed, s.CurrentAngularSpeed, s.HeadingRadians))
}

func (o *Orchestrator) logFrontSensors() {
	o.emitLine(telemetry.FormatSensorFrame(o.acq.Latest()))
}

// emitLine ships a line; emitter failures are reported but never stop a
// running maneuver.
func (o *Orchestrator) emitLine(line string) {
	if err := o.emit.Emit(line); err != nil {
		log.Printf("calibration: telemetry: %v", err)
	}
}

// RunLinearSpeedProfile accelerates to the maximum linear speed, holds it
// for half a meter of travel and decelerates back to zero, logging the
// relevant linear speed variables throughout for later analysis.
func (o *Orchestrator) RunLinearSpeedProfile() {
	defer o.reset()

	o.ctrl.CorrectiveControl(false)
	o.ctrl.EnableMotorControl()
	o.each(10, o.logLinearSpeed, rampLogTicks)

	o.ctrl.SetTargetAngularSpeed(0)
	o.ctrl.SetTargetLinearSpeed(o.ctrl.MaxLinearSpeed())
	start := o.odom.AverageMicrometers()
	for o.odom.AverageMicrometers()-start < linearTestMicrometers {
		o.logLinearSpeed()
		o.ctrl.StepTick()
	}

	o.ctrl.SetTargetAngularSpeed(0)
	o.ctrl.SetTargetLinearSpeed(0)
	o.each(1, o.logLinearSpeed, o.settleTicks)
}

// RunAngularSpeedProfile spins in place through 3π radians at 4π rad/s,
// with ramp and settle logging. No linear motion.
func (o *Orchestrator) RunAngularSpeedProfile() {
	o.runTurnProfile(3*math.Pi, o.settleTicks)
}

// RunStaticTurnRightProfile is the 90-degree variant with a short settle.
func (o *Orchestrator) RunStaticTurnRightProfile() {
	o.runTurnProfile(math.Pi/2, 200)
}

func (o *Orchestrator) runTurnProfile(turn float64, settle uint32) {
	defer o.reset()

	o.ctrl.CorrectiveControl(false)
	o.ctrl.EnableMotorControl()
	o.each(10, o.logAngularSpeed, rampLogTicks)

	o.ctrl.SetTargetAngularSpeed(angularTestSpeed)
	o.ctrl.SetTargetLinearSpeed(0)
	o.each(10, o.logAngularSpeed, AngularHoldTicks(turn, angularTestSpeed))

	o.ctrl.SetTargetAngularSpeed(0)
	o.ctrl.SetTargetLinearSpeed(0)
	o.each(10, o.logAngularSpeed, settle)
}

// RunDistancesProfiling benchmarks the raw-to-distance transform: a
// thousand consecutive invocations, reported in elapsed clock ticks. No
// motion involved.
func (o *Orchestrator) RunDistancesProfiling() {
	start := o.hw.ClockTicks()
	for i := 0; i < profilingIterations; i++ {
		o.acq.UpdateDistanceReadings()
	}
	elapsed := o.hw.ClockTicks() - start
	o.emitLine(fmt.Sprintf("Clock ticks %d", elapsed))
}

// RunMicrometersPerCountCalibration drives straight across the given number
// of cells under side-wall correction and stops with the nose at the far
// wall. The robot starts with its tail against the back wall. Conservative
// limits are in force for the run and the previous limits are restored on
// every exit path.
func (o *Orchestrator) RunMicrometersPerCountCalibration(cells uint) {
	defer o.reset()

	override := o.ctrl.Limits()
	override.LinearAcceleration = 4
	override.LinearDeceleration = 4
	override.MaxLinearSpeed = 0.4

	o.ctrl.WithLimits(override, func() {
		o.ctrl.ResetMotion()
		o.sideSensorsCalibration()
		o.ctrl.EnableMotorControl()
		o.acq.SetMode(sensors.SideMode)

		o.ctrl.CorrectiveControl(true)
		o.ctrl.Accelerate(o.odom.AverageMicrometers(),
			o.cell*float64(cells)-o.wall/2-o.tail)
		o.ctrl.CorrectiveControl(false)
		o.ctrl.Decelerate(o.odom.AverageMicrometers(),
			o.cell-o.wall/2-o.head, 0)

		o.emitLine(fmt.Sprintf("MPC: left=%d, right=%d, average=%d",
			o.odom.Micrometers(hal.WheelLeft),
			o.odom.Micrometers(hal.WheelRight),
			o.odom.AverageMicrometers()))
	})
}

// sideSensorsCalibration captures the side-sensor baseline while the robot
// sits centered in its starting cell.
func (o *Orchestrator) sideSensorsCalibration() {
	var sumLeft, sumRight uint64
	for i := 0; i < sideCalibrationTicks; i++ {
		o.ctrl.StepTick()
		f := o.acq.Latest()
		sumLeft += uint64(f.Raw[sensors.SideLeft])
		sumRight += uint64(f.Raw[sensors.SideRight])
	}
	left := uint16(sumLeft / sideCalibrationTicks)
	right := uint16(sumRight / sideCalibrationTicks)
	o.acq.SetSideReference(left, right)
	o.emitLine(fmt.Sprintf("SIDECAL: left=%d, right=%d", left, right))
}

// RunFrontSensorsCalibration drives toward the front wall of the next cell
// at a fixed moderate speed, logging the front sensors continuously, and
// ramps to zero inside its own computed stopping distance.
func (o *Orchestrator) RunFrontSensorsCalibration() {
	defer o.reset()

	o.ctrl.CorrectiveControl(false)
	o.ctrl.EnableMotorControl()

	override := o.ctrl.Limits()
	override.LinearAcceleration = 4

	o.ctrl.WithLimits(override, func() {
		o.acq.SetMode(sensors.FrontMode)

		target := o.odom.AverageMicrometers() + int64(1.3*o.cell*1e6)
		o.ctrl.SetTargetAngularSpeed(0)
		o.ctrl.SetTargetLinearSpeed(0.3)
		for o.odom.AverageMicrometers() <
			target-int64(o.ctrl.RequiredMicrometersToSpeed(0)) {
			o.logFrontSensors()
			o.ctrl.StepTick()
		}

		o.ctrl.SetTargetAngularSpeed(0)
		o.ctrl.SetTargetLinearSpeed(0)
		o.each(2, o.logFrontSensors, 200)
	})
}
