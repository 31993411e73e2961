// Package motor maps drive commands onto the PWM and H-bridge direction
// outputs. It is a pure mapping layer: requests out of range are clamped,
// never rejected, so actuation can never stall on an error.
package motor

import (
	"github.com/relabs-tech/micromouse_core/internal/config"
	"github.com/relabs-tech/micromouse_core/internal/hal"
)

// Actuator drives the two wheels.
type Actuator struct {
	hw     hal.Hardware
	period int32
}

func New(hw hal.Hardware, cfg *config.Config) *Actuator {
	return &Actuator{hw: hw, period: int32(cfg.PWMPeriod)}
}

// SetPower sets the PWM duty for one wheel, clamped to [0, PWMPeriod].
func (a *Actuator) SetPower(w hal.Wheel, duty int32) {
	if duty < 0 {
		duty = 0
	}
	if duty > a.period {
		duty = a.period
	}
	a.hw.SetPWM(w, uint32(duty))
}

// SetDirection applies the same drive direction to both wheels.
func (a *Actuator) SetDirection(d hal.Direction) {
	a.hw.SetDirection(hal.WheelLeft, d)
	a.hw.SetDirection(hal.WheelRight, d)
}

// Drive commands one wheel with a signed duty: the sign selects the H-bridge
// direction and the magnitude is clamped like SetPower. In-place turns need
// the wheels driven in opposite directions, which the speed controller does
// through this path.
func (a *Actuator) Drive(w hal.Wheel, duty int32) {
	if duty >= 0 {
		a.hw.SetDirection(w, hal.Forward)
	} else {
		a.hw.SetDirection(w, hal.Backward)
		duty = -duty
	}
	a.SetPower(w, duty)
}

// Stop zeroes the duty on both wheels without changing direction.
func (a *Actuator) Stop() {
	a.hw.SetPWM(hal.WheelLeft, 0)
	a.hw.SetPWM(hal.WheelRight, 0)
}

// Brake short-circuits both driver stages. Emergency stop only; the brake
// holds regardless of PWM duty until a direction is set again.
func (a *Actuator) Brake() {
	a.hw.Brake()
}
