// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors owns the timer-triggered 4-channel analog scan and the
// raw-to-distance transform.
//
// The scan completion handler is the only asynchronous writer in the system:
// it may preempt the main control flow at any point. Frames are published by
// swapping an atomic pointer to an immutable value, so a reader always
// observes either the previous complete frame or the new one, never a torn
// mixture. Everything else in this package (mode, distances) is touched only
// from the main flow.
package sensors

import (
	"math"
	"sync/atomic"

	"github.com/relabs-tech/micromouse_core/internal/config"
	"github.com/relabs-tech/micromouse_core/internal/hal"
)

// Channel indices within a frame.
const (
	SideLeft = iota
	SideRight
	FrontLeft
	FrontRight
)

// Mode selects which sensor pair calibration logging inspects. Switching
// modes does not change the scan itself.
type Mode int32

const (
	SideMode Mode = iota
	FrontMode
)

func (m Mode) String() string {
	if m == FrontMode {
		return "front"
	}
	return "side"
}

// Frame is one completed injected scan: four raw 12-bit codes and the tick
// at which the scan finished. Overwritten in place each cycle; consumers
// that need history must keep their own.
type Frame struct {
	Raw   [hal.NumSensorChannels]uint16 `json:"raw"`
	Ticks uint32                        `json:"ticks"`
	Mode  Mode                          `json:"mode"`
}

// Acquisition runs the scan and holds the latest frame.
type Acquisition struct {
	hw hal.Hardware

	latest atomic.Pointer[Frame]
	mode   atomic.Int32
	scans  atomic.Uint32

	gainA   float64
	offsetB float64

	// distances are written by UpdateDistanceReadings on the main flow
	// only, never from the scan handler.
	distances [hal.NumSensorChannels]float64

	sideReference [2]uint16
}

func New(hw hal.Hardware, cfg *config.Config) *Acquisition {
	a := &Acquisition{
		hw:      hw,
		gainA:   cfg.SensorGainA,
		offsetB: cfg.SensorOffsetB,
	}
	a.latest.Store(&Frame{})
	return a
}

// Start arms the periodic scan.
func (a *Acquisition) Start() error {
	return a.hw.StartPeriodicScan(a.onScanComplete)
}

// Stop disarms it.
func (a *Acquisition) Stop() {
	a.hw.StopScan()
}

// onScanComplete is the completion handler. It builds a whole frame and
// publishes it in a single pointer swap.
func (a *Acquisition) onScanComplete(raw [hal.NumSensorChannels]uint16) {
	f := &Frame{
		Raw:   raw,
		Ticks: a.hw.ClockTicks(),
		Mode:  Mode(a.mode.Load()),
	}
	a.latest.Store(f)
	a.scans.Add(1)
}

// Latest returns a copy of the most recent complete frame. Freshness is
// guaranteed only to within one scan period.
func (a *Acquisition) Latest() Frame {
	return *a.latest.Load()
}

// Scans returns the number of completed scans since start.
func (a *Acquisition) Scans() uint32 {
	return a.scans.Load()
}

func (a *Acquisition) SetMode(m Mode) {
	a.mode.Store(int32(m))
}

func (a *Acquisition) ModeNow() Mode {
	return Mode(a.mode.Load())
}

// UpdateDistanceReadings transforms the latest raw codes into distances in
// meters for all four sensors. This is the function the distances-profiling
// procedure benchmarks.
func (a *Acquisition) UpdateDistanceReadings() {
	f := a.latest.Load()
	for i, raw := range f.Raw {
		a.distances[i] = a.rawToDistance(raw)
	}
}

// rawToDistance linearizes the phototransistor response. The emitter LED
// intensity falls off with the square of distance but the receiver response
// is logarithmic, so a log model fits the usable range well.
func (a *Acquisition) rawToDistance(raw uint16) float64 {
	v := float64(raw) + a.offsetB
	if v < 2 {
		v = 2
	}
	return a.gainA / math.Log(v)
}

// Distance returns the last transformed distance for a channel.
func (a *Acquisition) Distance(channel int) float64 {
	return a.distances[channel]
}

// SetSideReference records the side-sensor baseline captured while the robot
// sits centered between walls; the wall-corrective controller steers against
// it.
func (a *Acquisition) SetSideReference(left, right uint16) {
	a.sideReference = [2]uint16{left, right}
}

func (a *Acquisition) SideReference() (left, right uint16) {
	return a.sideReference[0], a.sideReference[1]
}

// BatteryLow reports whether a raw battery-divider code is below the
// shutdown threshold.
func BatteryLow(raw uint16) bool {
	return raw < hal.BatteryLowLimit
}
