// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package odometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/micromouse_core/internal/config"
	"github.com/relabs-tech/micromouse_core/internal/hal"
)

func TestDeltaMicrometers_Wraparound(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	sim := hal.NewSim(cfg)

	sim.SetCounter(hal.WheelLeft, 65000)
	odom := New(sim, cfg)

	sim.SetCounter(hal.WheelLeft, 500)
	um := odom.DeltaMicrometers(hal.WheelLeft)

	// 65536 - 65000 + 500 = 1036 counts forward, never a negative delta.
	wantUm := int32(1036 * 1e6 / cfg.CountsPerMeter)
	assert.Equal(t, wantUm, um)
	assert.Positive(t, um)
}

func TestDeltaMicrometers_BackwardAcrossWrap(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	sim := hal.NewSim(cfg)

	sim.SetCounter(hal.WheelLeft, 500)
	odom := New(sim, cfg)

	sim.SetCounter(hal.WheelLeft, 65000)
	um := odom.DeltaMicrometers(hal.WheelLeft)

	wantUm := int32(-1036 * 1e6 / cfg.CountsPerMeter)
	assert.Equal(t, wantUm, um)
}

func TestDeltaMicrometers_ConsumesDelta(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	sim := hal.NewSim(cfg)
	odom := New(sim, cfg)

	sim.SetCounter(hal.WheelLeft, 100)
	first := odom.DeltaMicrometers(hal.WheelLeft)
	second := odom.DeltaMicrometers(hal.WheelLeft)

	assert.Positive(t, first)
	assert.Zero(t, second)
}

func TestDeltaMicrometers_EncoderSign(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	require.Equal(t, -1, cfg.RightEncoderSign)

	sim := hal.NewSim(cfg)
	odom := New(sim, cfg)

	// A raw increase on the right counter is backward motion as wired.
	sim.SetCounter(hal.WheelRight, 1000)
	um := odom.DeltaMicrometers(hal.WheelRight)
	assert.Negative(t, um)
}

func TestUpdate_TracksDrivenMotion(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	sim := hal.NewSim(cfg)
	odom := New(sim, cfg)

	sim.SetDirection(hal.WheelLeft, hal.Forward)
	sim.SetDirection(hal.WheelRight, hal.Forward)
	sim.SetPWM(hal.WheelLeft, uint32(cfg.PWMPeriod))
	sim.SetPWM(hal.WheelRight, uint32(cfg.PWMPeriod))

	// One simulated second at full duty. Updating every tick keeps wheel
	// motion between reads far below half the counter range.
	for i := 0; i < cfg.TickFrequencyHz; i++ {
		sim.SleepTicks(1)
		odom.Update()
	}

	want := cfg.FullDutySpeed * 1e6
	assert.InDelta(t, want, float64(odom.AverageMicrometers()), 2000)
	assert.InDelta(t, want, float64(odom.Micrometers(hal.WheelLeft)), 2000)
	assert.InDelta(t, want, float64(odom.Micrometers(hal.WheelRight)), 2000)
}

func TestReset(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	sim := hal.NewSim(cfg)
	odom := New(sim, cfg)

	sim.SetCounter(hal.WheelLeft, 2000)
	odom.Update()
	require.NotZero(t, odom.AverageMicrometers())

	odom.Reset()
	assert.Zero(t, odom.AverageMicrometers())
	assert.Zero(t, odom.DeltaMicrometers(hal.WheelLeft))
}

func TestWheelHeading(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	sim := hal.NewSim(cfg)
	odom := New(sim, cfg)
	heading := NewWheelHeading(odom, cfg)

	assert.Zero(t, heading.Heading())

	// Drive only the right wheel forward: a left (positive) rotation.
	sim.SetDirection(hal.WheelRight, hal.Forward)
	sim.SetPWM(hal.WheelRight, uint32(cfg.PWMPeriod))
	for i := 0; i < 100; i++ {
		sim.SleepTicks(1)
		odom.Update()
	}

	traveled := cfg.FullDutySpeed * 0.1 // meters in 100 ticks
	assert.InDelta(t, traveled/cfg.WheelTrack, heading.Heading(), 0.02)
	assert.InDelta(t, heading.Heading(), sim.Heading(), 0.02)
}
