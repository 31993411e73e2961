// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package motion holds the shared motion state and the trapezoidal profile
// generator. All of it is mutated only from the main control flow; the scan
// interrupt never touches motion state, so no locking is needed here. Any
// change to that arrangement must revisit this package.
package motion

import (
	"math"

	"github.com/relabs-tech/micromouse_core/internal/config"
	"github.com/relabs-tech/micromouse_core/internal/hal"
	"github.com/relabs-tech/micromouse_core/internal/motor"
	"github.com/relabs-tech/micromouse_core/internal/odometry"
)

// Limits are the acceleration/deceleration rates and speed caps the profile
// generator works against. Procedures may override them temporarily; the
// pre-override values are always restored.
type Limits struct {
	LinearAcceleration  float64 `json:"linear_acceleration"`
	LinearDeceleration  float64 `json:"linear_deceleration"`
	MaxLinearSpeed      float64 `json:"max_linear_speed"`
	AngularAcceleration float64 `json:"angular_acceleration"`
	MaxAngularSpeed     float64 `json:"max_angular_speed"`
}

// State is a snapshot of the motion targets and commanded speeds, published
// on the telemetry path.
type State struct {
	TargetLinearSpeed   float64 `json:"target_linear_speed"`
	TargetAngularSpeed  float64 `json:"target_angular_speed"`
	CurrentLinearSpeed  float64 `json:"current_linear_speed"`
	CurrentAngularSpeed float64 `json:"current_angular_speed"`
	Limits              Limits  `json:"limits"`
	Micrometers         int64   `json:"micrometers"`
	HeadingRadians      float64 `json:"heading_radians"`
}

// HeadingSource provides the angular-displacement reference for turn
// profiles. The board derives it from a gyro; the sim rig integrates the
// wheel differential.
type HeadingSource interface {
	Heading() float64 // radians
}

// Controller slews the commanded speeds toward the targets once per control
// tick and feeds the result forward into wheel duty.
type Controller struct {
	hw      hal.Hardware
	odom    *odometry.Odometry
	act     *motor.Actuator
	heading HeadingSource

	limits   Limits
	defaults Limits

	targetLinear   float64
	targetAngular  float64
	currentLinear  float64
	currentAngular float64

	motorEnabled bool
	corrective   func(enabled bool)

	tickSec      float64
	track        float64
	dutyPerSpeed float64 // PWM counts per m/s of wheel speed
}

func NewController(hw hal.Hardware, odom *odometry.Odometry, act *motor.Actuator, heading HeadingSource, cfg *config.Config) *Controller {
	limits := Limits{
		LinearAcceleration:  cfg.LinearAcceleration,
		LinearDeceleration:  cfg.LinearDeceleration,
		MaxLinearSpeed:      cfg.MaxLinearSpeed,
		AngularAcceleration: cfg.AngularAcceleration,
		MaxAngularSpeed:     cfg.MaxAngularSpeed,
	}
	return &Controller{
		hw:           hw,
		odom:         odom,
		act:          act,
		heading:      heading,
		limits:       limits,
		defaults:     limits,
		corrective:   func(bool) {},
		tickSec:      1.0 / float64(cfg.TickFrequencyHz),
		track:        cfg.WheelTrack,
		dutyPerSpeed: float64(cfg.PWMPeriod) / cfg.FullDutySpeed,
	}
}

// SetCorrectiveControl installs the external wall-corrective controller's
// enable switch. The controller itself is not part of the core.
func (c *Controller) SetCorrectiveControl(fn func(enabled bool)) {
	if fn == nil {
		fn = func(bool) {}
	}
	c.corrective = fn
}

// CorrectiveControl enables or disables the external wall controller.
func (c *Controller) CorrectiveControl(enabled bool) {
	c.corrective(enabled)
}

func (c *Controller) EnableMotorControl()  { c.motorEnabled = true }
func (c *Controller) DisableMotorControl() { c.motorEnabled = false }

func (c *Controller) SetTargetLinearSpeed(v float64)  { c.targetLinear = v }
func (c *Controller) SetTargetAngularSpeed(w float64) { c.targetAngular = w }

func (c *Controller) TargetLinearSpeed() float64   { return c.targetLinear }
func (c *Controller) TargetAngularSpeed() float64  { return c.targetAngular }
func (c *Controller) CurrentLinearSpeed() float64  { return c.currentLinear }
func (c *Controller) CurrentAngularSpeed() float64 { return c.currentAngular }

func (c *Controller) MaxLinearSpeed() float64 { return c.limits.MaxLinearSpeed }

// Limits returns a copy of the active limits.
func (c *Controller) Limits() Limits { return c.limits }

// WithLimits runs fn with the limits replaced by override and restores the
// previous limits on every exit path, including panics.
func (c *Controller) WithLimits(override Limits, fn func()) {
	prev := c.limits
	defer func() { c.limits = prev }()
	c.limits = override
	fn()
}

// Snapshot captures the state for telemetry.
func (c *Controller) Snapshot() State {
	s := State{
		TargetLinearSpeed:   c.targetLinear,
		TargetAngularSpeed:  c.targetAngular,
		CurrentLinearSpeed:  c.currentLinear,
		CurrentAngularSpeed: c.currentAngular,
		Limits:              c.limits,
		Micrometers:         c.odom.AverageMicrometers(),
	}
	if c.heading != nil {
		s.HeadingRadians = c.heading.Heading()
	}
	return s
}

// Tick is one control-loop iteration: consume encoder deltas, slew the
// commanded speeds toward the targets at the configured rates, and feed the
// resulting wheel speeds forward into duty.
func (c *Controller) Tick() {
	c.odom.Update()

	c.currentLinear = slew(c.currentLinear, c.targetLinear,
		c.limits.LinearAcceleration*c.tickSec, c.limits.LinearDeceleration*c.tickSec)
	c.currentAngular = slew(c.currentAngular, c.targetAngular,
		c.limits.AngularAcceleration*c.tickSec, c.limits.AngularAcceleration*c.tickSec)

	if !c.motorEnabled {
		return
	}

	half := c.currentAngular * c.track / 2
	left := c.currentLinear - half
	right := c.currentLinear + half
	c.act.Drive(hal.WheelLeft, int32(math.Round(left*c.dutyPerSpeed)))
	c.act.Drive(hal.WheelRight, int32(math.Round(right*c.dutyPerSpeed)))
}

// StepTick runs one control tick and then yields until the next one.
func (c *Controller) StepTick() {
	c.Tick()
	c.hw.SleepTicks(1)
}

// ResetMotion zeroes targets and commanded speeds and stops the motors.
// Limits are restored separately (WithLimits, RestoreDefaultLimits) so that
// a reset inside a scoped override does not clobber the override.
func (c *Controller) ResetMotion() {
	c.targetLinear = 0
	c.targetAngular = 0
	c.currentLinear = 0
	c.currentAngular = 0
	c.act.Stop()
}

// RestoreDefaultLimits puts the configured limits back in force.
func (c *Controller) RestoreDefaultLimits() {
	c.limits = c.defaults
}

// slew moves current toward target, rising at most by up and falling at most
// by down per call. Approaching zero from either sign counts as falling.
func slew(current, target, up, down float64) float64 {
	diff := target - current
	if diff == 0 {
		return current
	}
	step := up
	if math.Abs(target) < math.Abs(current) {
		step = down
	}
	if diff > 0 {
		if diff < step {
			return target
		}
		return current + step
	}
	if -diff < step {
		return target
	}
	return current - step
}
