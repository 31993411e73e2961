// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package hal is the narrow hardware-access surface of the motion core.
// Everything timing- or register-shaped goes through the Hardware interface
// so the profile math can run unchanged against the real board or against
// the deterministic simulated rig.
package hal

// Wheel selects one of the two driven wheels.
type Wheel int

const (
	WheelLeft Wheel = iota
	WheelRight
)

func (w Wheel) String() string {
	switch w {
	case WheelLeft:
		return "left"
	case WheelRight:
		return "right"
	default:
		return "unknown"
	}
}

// Direction is the H-bridge drive direction of a wheel.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

const (
	// EncoderModulus is the wrap modulus of the 16-bit position counters.
	EncoderModulus = 1 << 16

	// ADCMax is the full-scale code of the 12-bit injected scan.
	ADCMax = 4095

	// NumSensorChannels is the injected scan length: side-left, side-right,
	// front-left, front-right.
	NumSensorChannels = 4

	// BatteryLowLimit is the 12-bit ADC code below which the battery is
	// considered too drained to keep driving (3.6 V through a /2 divider
	// against a 3.3 V reference).
	BatteryLowLimit = 2234
)

// Hardware abstracts the platform layer: wrapping encoder counters, PWM and
// direction outputs, the timer-triggered injected ADC scan, and the control
// tick clock.
//
// ReadEncoder values wrap at EncoderModulus. SetPWM duty is written as-is;
// range policy (clamping) belongs to the motor actuator, not to the HAL.
// StartPeriodicScan arranges for onComplete to be called with all four raw
// channel codes after every completed scan; the callback runs on the scan's
// own execution context, concurrently with the main control flow.
type Hardware interface {
	ReadEncoder(w Wheel) uint16

	SetPWM(w Wheel, duty uint32)
	SetDirection(w Wheel, d Direction)
	// Brake drives both legs of both H-bridges high, short-circuiting the
	// driver outputs regardless of PWM duty.
	Brake()

	StartPeriodicScan(onComplete func(raw [NumSensorChannels]uint16)) error
	StopScan()
	// ReadInjectedChannel returns the most recent conversion of injected
	// channel n (1..4).
	ReadInjectedChannel(n int) uint16

	// ClockTicks returns the free-running control tick counter.
	ClockTicks() uint32
	// SleepTicks blocks the calling (main) flow for n control ticks.
	SleepTicks(n uint32)
}
