// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpeedAfter(t *testing.T) {
	t.Parallel()

	t.Run("start of ramp", func(t *testing.T) {
		assert.Equal(t, 0.5, SpeedAfter(0.5, 5, 0))
	})

	t.Run("mid ramp", func(t *testing.T) {
		// v^2 = 0.25 - 2*5*0.02 = 0.05
		assert.InDelta(t, math.Sqrt(0.05), SpeedAfter(0.5, 5, 0.02), 1e-12)
	})

	t.Run("exact stopping point", func(t *testing.T) {
		assert.Zero(t, SpeedAfter(0.5, 5, 0.025))
	})

	t.Run("past stopping point", func(t *testing.T) {
		// The domain clamp: beyond the stopping position the command is
		// exactly zero, never NaN.
		assert.Zero(t, SpeedAfter(0.5, 5, 0.1))
		assert.Zero(t, SpeedAfter(0.5, 5, 1000))
	})
}

func TestRequiredMicrometersToSpeed(t *testing.T) {
	t.Parallel()

	t.Run("from standstill", func(t *testing.T) {
		_, _, ctrl, cfg := newTestController()
		// d = v^2 / (2a)
		want := int32(0.4 * 0.4 / (2 * cfg.LinearAcceleration) * 1e6)
		assert.Equal(t, want, ctrl.RequiredMicrometersToSpeed(0.4))
	})

	t.Run("already satisfied", func(t *testing.T) {
		_, _, ctrl, _ := newTestController()
		assert.Zero(t, ctrl.RequiredMicrometersToSpeed(0))
	})

	t.Run("quadratic scaling", func(t *testing.T) {
		_, _, ctrl, _ := newTestController()
		d1 := ctrl.RequiredMicrometersToSpeed(0.2)
		d2 := ctrl.RequiredMicrometersToSpeed(0.4)
		assert.Equal(t, 4*d1, d2)
	})

	t.Run("deceleration rate", func(t *testing.T) {
		_, _, ctrl, cfg := newTestController()
		ctrl.currentLinear = 0.5
		want := int32(0.5 * 0.5 / (2 * cfg.LinearDeceleration) * 1e6)
		assert.Equal(t, want, ctrl.RequiredMicrometersToSpeed(0))
	})
}

func TestRequiredRadiansToSpeed(t *testing.T) {
	t.Parallel()
	_, _, ctrl, cfg := newTestController()

	ctrl.currentAngular = 4 * math.Pi
	want := 4 * math.Pi * 4 * math.Pi / (2 * cfg.AngularAcceleration)
	assert.InDelta(t, want, ctrl.RequiredRadiansToSpeed(0), 1e-12)
	assert.Zero(t, ctrl.RequiredRadiansToSpeed(ctrl.currentAngular))
}

func TestAccelerate_CoversRequestedDistance(t *testing.T) {
	t.Parallel()
	_, odom, ctrl, cfg := newTestController()

	ctrl.EnableMotorControl()
	start := odom.AverageMicrometers()
	ctrl.Accelerate(start, 0.1)

	traveled := odom.AverageMicrometers() - start
	assert.GreaterOrEqual(t, traveled, int64(100000))
	// One tick of overshoot at most.
	assert.Less(t, traveled, int64(100000+2000))
	assert.Equal(t, cfg.MaxLinearSpeed, ctrl.CurrentLinearSpeed())
}

func TestDecelerate_StopsAtEndpoint(t *testing.T) {
	t.Parallel()
	_, odom, ctrl, _ := newTestController()

	ctrl.EnableMotorControl()
	ctrl.Accelerate(odom.AverageMicrometers(), 0.1)
	require.Positive(t, ctrl.CurrentLinearSpeed())

	start := odom.AverageMicrometers()
	ctrl.Decelerate(start, 0.2, 0)

	traveled := odom.AverageMicrometers() - start
	assert.InDelta(t, 200000, float64(traveled), 3000)
	assert.Zero(t, ctrl.CurrentLinearSpeed())
	assert.Zero(t, ctrl.TargetLinearSpeed())
}

func TestDecelerate_ToIntermediateSpeed(t *testing.T) {
	t.Parallel()
	_, odom, ctrl, _ := newTestController()

	ctrl.EnableMotorControl()
	ctrl.Accelerate(odom.AverageMicrometers(), 0.1)

	start := odom.AverageMicrometers()
	ctrl.Decelerate(start, 0.1, 0.2)

	traveled := odom.AverageMicrometers() - start
	assert.InDelta(t, 100000, float64(traveled), 3000)
	assert.InDelta(t, 0.2, ctrl.CurrentLinearSpeed(), 1e-9)
}

func TestDecelerate_InsufficientDistance(t *testing.T) {
	t.Parallel()
	_, odom, ctrl, _ := newTestController()

	ctrl.EnableMotorControl()
	ctrl.Accelerate(odom.AverageMicrometers(), 0.1)

	// Far less travel than the stopping distance needs. The call must
	// still terminate, with the stop past the requested endpoint.
	start := odom.AverageMicrometers()
	ctrl.Decelerate(start, 0.001, 0)

	assert.Zero(t, ctrl.CurrentLinearSpeed())
	assert.GreaterOrEqual(t, odom.AverageMicrometers()-start, int64(1000))
}

func TestAccelerateTurn_ReachesAngle(t *testing.T) {
	t.Parallel()
	sim, _, ctrl, _ := newTestController()

	ctrl.EnableMotorControl()
	start := sim.Heading()
	ctrl.AccelerateTurn(start, math.Pi/2)

	assert.GreaterOrEqual(t, sim.Heading()-start, math.Pi/2)
	assert.Positive(t, ctrl.CurrentAngularSpeed())
}

func TestDecelerateTurn_StopsAtAngle(t *testing.T) {
	t.Parallel()
	sim, _, ctrl, _ := newTestController()

	ctrl.EnableMotorControl()
	ctrl.AccelerateTurn(sim.Heading(), math.Pi/4)

	start := sim.Heading()
	ctrl.DecelerateTurn(start, math.Pi/2, 0)

	assert.InDelta(t, math.Pi/2, sim.Heading()-start, 0.05)
	assert.Zero(t, ctrl.CurrentAngularSpeed())
}

func TestTurn_NegativeDelta(t *testing.T) {
	t.Parallel()
	sim, _, ctrl, _ := newTestController()

	ctrl.EnableMotorControl()
	start := sim.Heading()
	ctrl.AccelerateTurn(start, -math.Pi/2)

	assert.LessOrEqual(t, sim.Heading()-start, -math.Pi/2)
	assert.Negative(t, ctrl.CurrentAngularSpeed())
}
