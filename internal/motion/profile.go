// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import "math"

// SpeedAfter evaluates the position-referenced deceleration law
//
//	v(x) = sqrt(v0^2 - 2*rate*traveled)
//
// with the square-root domain clamped to zero: at or past the nominal
// stopping point the commanded speed is exactly 0, never an invalid result.
func SpeedAfter(v0, rate, traveled float64) float64 {
	r := v0*v0 - 2*rate*traveled
	if r <= 0 {
		return 0
	}
	return math.Sqrt(r)
}

// RequiredMicrometersToSpeed returns the distance needed to transition from
// the current commanded linear speed to target at the configured rates,
// from constant-acceleration kinematics:
//
//	d = |target^2 - current^2| / (2 * rate)
//
// It never fails; a transition already satisfied costs zero distance.
func (c *Controller) RequiredMicrometersToSpeed(target float64) int32 {
	v := c.currentLinear
	var d float64
	if target > v {
		d = (target*target - v*v) / (2 * c.limits.LinearAcceleration)
	} else {
		d = (v*v - target*target) / (2 * c.limits.LinearDeceleration)
	}
	if d < 0 {
		d = 0
	}
	return int32(d * 1e6)
}

// RequiredRadiansToSpeed is the angular analog, against the single angular
// rate.
func (c *Controller) RequiredRadiansToSpeed(target float64) float64 {
	v := c.currentAngular
	d := math.Abs(target*target-v*v) / (2 * c.limits.AngularAcceleration)
	return d
}

// Accelerate raises the linear target to the configured maximum and drives
// until distance meters of travel, measured from startMicrometers on the
// encoder average, have elapsed. The slew in Tick caps the ramp at the
// acceleration limit, so the speed stops rising at MaxLinearSpeed even if
// the distance allows more.
func (c *Controller) Accelerate(startMicrometers int64, distance float64) {
	c.SetTargetLinearSpeed(c.limits.MaxLinearSpeed)
	end := startMicrometers + int64(distance*1e6)
	for c.odom.AverageMicrometers() < end {
		c.StepTick()
	}
}

// Decelerate cruises until the travel remaining to the endpoint (distance
// meters from startMicrometers) equals the stopping distance, then commands,
// at each tick, the speed that reaches exactly finalSpeed at the endpoint.
// The ramp command is position-referenced, so actuation jitter cannot move
// the physical stopping point.
//
// A distance too short for the active deceleration rate is an unchecked
// precondition violation: the ramp starts immediately and the robot
// undershoots the requested final speed at the endpoint.
func (c *Controller) Decelerate(startMicrometers int64, distance float64, finalSpeed float64) {
	end := startMicrometers + int64(distance*1e6)
	for c.odom.AverageMicrometers() < end-int64(c.RequiredMicrometersToSpeed(finalSpeed)) {
		c.StepTick()
	}

	rampStart := c.odom.AverageMicrometers()
	v0 := c.currentLinear
	rate := c.limits.LinearDeceleration
	for c.odom.AverageMicrometers() < end {
		traveled := float64(c.odom.AverageMicrometers()-rampStart) / 1e6
		cmd := SpeedAfter(v0, rate, traveled)
		if cmd < finalSpeed {
			cmd = finalSpeed
		}
		c.targetLinear = cmd
		c.currentLinear = cmd
		if cmd == 0 {
			// Already at the physical stopping point; waiting for more
			// travel would block forever.
			break
		}
		c.StepTick()
	}
	c.targetLinear = finalSpeed
	c.currentLinear = finalSpeed
	c.StepTick()
}

// AccelerateTurn is the angular analog of Accelerate, referenced to the
// heading source instead of the encoder average. delta's sign selects the
// turn direction.
func (c *Controller) AccelerateTurn(startRadians, delta float64) {
	target := c.limits.MaxAngularSpeed
	if delta < 0 {
		target = -target
	}
	c.SetTargetAngularSpeed(target)
	for math.Abs(c.heading.Heading()-startRadians) < math.Abs(delta) {
		c.StepTick()
	}
}

// DecelerateTurn is the angular analog of Decelerate: cruise until within
// the stopping angle of the endpoint, then command the angular speed that
// reaches finalSpeed after turning delta radians from startRadians.
func (c *Controller) DecelerateTurn(startRadians, delta, finalSpeed float64) {
	sign := 1.0
	if delta < 0 {
		sign = -1
	}
	total := math.Abs(delta)
	for math.Abs(c.heading.Heading()-startRadians) < total-c.RequiredRadiansToSpeed(finalSpeed) {
		c.StepTick()
	}

	rampStart := math.Abs(c.heading.Heading() - startRadians)
	v0 := math.Abs(c.currentAngular)
	rate := c.limits.AngularAcceleration
	for {
		turned := math.Abs(c.heading.Heading() - startRadians)
		if turned >= total {
			break
		}
		cmd := SpeedAfter(v0, rate, turned-rampStart)
		if cmd < finalSpeed {
			cmd = finalSpeed
		}
		c.targetAngular = sign * cmd
		c.currentAngular = sign * cmd
		if cmd == 0 {
			break
		}
		c.StepTick()
	}
	c.targetAngular = sign * finalSpeed
	c.currentAngular = sign * finalSpeed
	c.StepTick()
}
