// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package hal

import (
	"fmt"
	"sync"

	"github.com/relabs-tech/micromouse_core/internal/config"
)

// Sim is a deterministic in-memory rig implementing Hardware. Time is the
// tick counter: SleepTicks advances the world instead of blocking, so a
// whole calibration run finishes in host time proportional to the work, not
// to the simulated duration.
//
// The rig models ideal actuation: wheel speed is the PWM duty fraction times
// the full-duty speed, in the commanded direction. Encoder counters integrate
// that motion (with the same wiring signs as the real board) and wrap at the
// 16-bit modulus. Heading integrates the wheel differential over the track
// width, standing in for the gyro the board would carry.
type Sim struct {
	mu sync.Mutex

	ticks    uint32
	counters [2]uint16
	frac     [2]float64
	duty     [2]uint32
	dir      [2]Direction
	braked   bool

	pwmPeriod      float64
	fullDutySpeed  float64
	countsPerMeter float64
	tickSec        float64
	track          float64
	encSign        [2]float64

	headingRad float64

	scanFn    func(raw [NumSensorChannels]uint16)
	scanEvery uint32
	channelFn func(tick uint32) [NumSensorChannels]uint16
	lastScan  [NumSensorChannels]uint16
}

// NewSim builds a rig from the same config the board uses.
func NewSim(cfg *config.Config) *Sim {
	s := &Sim{
		pwmPeriod:      float64(cfg.PWMPeriod),
		fullDutySpeed:  cfg.FullDutySpeed,
		countsPerMeter: cfg.CountsPerMeter,
		tickSec:        1.0 / float64(cfg.TickFrequencyHz),
		track:          cfg.WheelTrack,
		encSign:        [2]float64{float64(cfg.LeftEncoderSign), float64(cfg.RightEncoderSign)},
		scanEvery:      uint32(cfg.ScanPeriodTicks),
	}
	s.channelFn = func(uint32) [NumSensorChannels]uint16 {
		return [NumSensorChannels]uint16{}
	}
	return s
}

// SetChannelSource installs the function producing raw ADC codes for each
// scan, keyed by the tick at which the scan fires.
func (s *Sim) SetChannelSource(fn func(tick uint32) [NumSensorChannels]uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelFn = fn
}

func (s *Sim) ReadEncoder(w Wheel) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[w]
}

// SetCounter overrides a raw counter value, for wraparound tests.
func (s *Sim) SetCounter(w Wheel, raw uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[w] = raw
}

func (s *Sim) SetPWM(w Wheel, duty uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.duty[w] = duty
}

// Duty reports the last duty written for a wheel, for actuator tests.
func (s *Sim) Duty(w Wheel) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duty[w]
}

func (s *Sim) SetDirection(w Wheel, d Direction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dir[w] = d
	s.braked = false
}

func (s *Sim) Direction(w Wheel) Direction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir[w]
}

func (s *Sim) Brake() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.braked = true
}

func (s *Sim) Braked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.braked
}

func (s *Sim) StartPeriodicScan(onComplete func(raw [NumSensorChannels]uint16)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanFn != nil {
		return fmt.Errorf("scan already running")
	}
	s.scanFn = onComplete
	return nil
}

func (s *Sim) StopScan() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanFn = nil
}

func (s *Sim) ReadInjectedChannel(n int) uint16 {
	if n < 1 || n > NumSensorChannels {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastScan[n-1]
}

func (s *Sim) ClockTicks() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

func (s *Sim) SleepTicks(n uint32) {
	for i := uint32(0); i < n; i++ {
		s.step()
	}
}

// Heading returns the integrated heading angle in radians, positive for
// right-hand rotation (right wheel ahead of left).
func (s *Sim) Heading() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headingRad
}

// step advances the world one tick: integrate wheel motion into the
// counters, then fire the injected scan when its period divides the tick.
func (s *Sim) step() {
	s.mu.Lock()

	s.ticks++

	var meters [2]float64
	if !s.braked {
		for w := 0; w < 2; w++ {
			duty := float64(s.duty[w])
			if duty > s.pwmPeriod {
				duty = s.pwmPeriod
			}
			m := duty / s.pwmPeriod * s.fullDutySpeed * s.tickSec
			if s.dir[w] == Backward {
				m = -m
			}
			meters[w] = m
			s.frac[w] += m * s.countsPerMeter * s.encSign[w]
			whole := int32(s.frac[w])
			s.frac[w] -= float64(whole)
			s.counters[w] += uint16(whole)
		}
		s.headingRad += (meters[WheelRight] - meters[WheelLeft]) / s.track
	}

	var fire func(raw [NumSensorChannels]uint16)
	var raw [NumSensorChannels]uint16
	if s.scanFn != nil && s.scanEvery > 0 && s.ticks%s.scanEvery == 0 {
		raw = s.channelFn(s.ticks)
		s.lastScan = raw
		fire = s.scanFn
	}
	s.mu.Unlock()

	// The completion handler runs outside the rig lock, like the real
	// interrupt runs outside the register file.
	if fire != nil {
		fire(raw)
	}
}
