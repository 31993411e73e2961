// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package odometry turns the two wrapping encoder counters into cumulative,
// wrap-corrected linear displacement.
package odometry

import (
	"github.com/relabs-tech/micromouse_core/internal/config"
	"github.com/relabs-tech/micromouse_core/internal/hal"
)

// Odometry tracks per-wheel displacement in micrometers. It is read and
// updated only from the main control flow; no locking by design.
type Odometry struct {
	hw                  hal.Hardware
	micrometersPerCount float64
	sign                [2]float64

	prev  [2]uint16
	total [2]int64 // micrometers
}

// New captures the current raw counters as the zero reference.
func New(hw hal.Hardware, cfg *config.Config) *Odometry {
	o := &Odometry{
		hw:                  hw,
		micrometersPerCount: 1e6 / cfg.CountsPerMeter,
		sign:                [2]float64{float64(cfg.LeftEncoderSign), float64(cfg.RightEncoderSign)},
	}
	o.prev[hal.WheelLeft] = hw.ReadEncoder(hal.WheelLeft)
	o.prev[hal.WheelRight] = hw.ReadEncoder(hal.WheelRight)
	return o
}

// DeltaMicrometers returns the distance moved since the previous read of the
// same wheel. The counter difference is taken modulo 2^16 and reinterpreted
// as signed, so a counter that wrapped between reads still yields the true
// short-path delta. Each call consumes the delta: the raw value read becomes
// the new reference.
func (o *Odometry) DeltaMicrometers(w hal.Wheel) int32 {
	raw := o.hw.ReadEncoder(w)
	diff := int16(raw - o.prev[w]) // modulo-65536 difference, sign-reinterpreted
	o.prev[w] = raw

	um := int32(float64(diff) * o.micrometersPerCount * o.sign[w])
	o.total[w] += int64(um)
	return um
}

// Update consumes the pending delta of both wheels. Called once per control
// tick so that wheel motion between reads stays well under half the counter
// range.
func (o *Odometry) Update() {
	o.DeltaMicrometers(hal.WheelLeft)
	o.DeltaMicrometers(hal.WheelRight)
}

// Micrometers returns the cumulative displacement of one wheel since the
// last reset.
func (o *Odometry) Micrometers(w hal.Wheel) int64 {
	return o.total[w]
}

// AverageMicrometers returns the mean of both wheels' cumulative
// displacement, the single linear-position reference used by the motion
// profiles.
func (o *Odometry) AverageMicrometers() int64 {
	return (o.total[hal.WheelLeft] + o.total[hal.WheelRight]) / 2
}

// Reset zeroes the cumulative totals and re-captures the raw counters.
func (o *Odometry) Reset() {
	o.total = [2]int64{}
	o.prev[hal.WheelLeft] = o.hw.ReadEncoder(hal.WheelLeft)
	o.prev[hal.WheelRight] = o.hw.ReadEncoder(hal.WheelRight)
}

// WheelHeading derives the heading angle from the wheel differential over
// the track width. It drifts with wheel slip but needs no extra sensor.
type WheelHeading struct {
	o     *Odometry
	track float64
}

func NewWheelHeading(o *Odometry, cfg *config.Config) *WheelHeading {
	return &WheelHeading{o: o, track: cfg.WheelTrack}
}

// Heading returns the integrated angle in radians, positive for right-hand
// rotation.
func (h *WheelHeading) Heading() float64 {
	diff := float64(h.o.total[hal.WheelRight]-h.o.total[hal.WheelLeft]) / 1e6
	return diff / h.track
}
