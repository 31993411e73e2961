// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package hal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/micromouse_core/internal/config"
)

func TestSim_ClockAdvancesWithSleep(t *testing.T) {
	t.Parallel()
	sim := NewSim(config.Default())

	assert.Zero(t, sim.ClockTicks())
	sim.SleepTicks(42)
	assert.Equal(t, uint32(42), sim.ClockTicks())
}

func TestSim_MotionIntegration(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	sim := NewSim(cfg)

	sim.SetDirection(WheelLeft, Forward)
	sim.SetPWM(WheelLeft, uint32(cfg.PWMPeriod/2))
	sim.SleepTicks(uint32(cfg.TickFrequencyHz))

	// Half duty for one second at the left wiring sign.
	wantCounts := cfg.FullDutySpeed / 2 * cfg.CountsPerMeter
	assert.InDelta(t, wantCounts, float64(sim.ReadEncoder(WheelLeft)), 2)
	assert.Zero(t, sim.ReadEncoder(WheelRight))
}

func TestSim_DutyClampedToPeriod(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	sim := NewSim(cfg)

	sim.SetDirection(WheelLeft, Forward)
	sim.SetPWM(WheelLeft, 5000) // far beyond the period
	sim.SleepTicks(100)

	wantCounts := cfg.FullDutySpeed * 0.1 * cfg.CountsPerMeter
	assert.InDelta(t, wantCounts, float64(sim.ReadEncoder(WheelLeft)), 2)
}

func TestSim_CounterWraps(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	sim := NewSim(cfg)

	sim.SetCounter(WheelLeft, 65530)
	sim.SetDirection(WheelLeft, Forward)
	sim.SetPWM(WheelLeft, uint32(cfg.PWMPeriod))
	sim.SleepTicks(10)

	// ~70 counts per tick at full duty: well past the 16-bit boundary.
	assert.Less(t, sim.ReadEncoder(WheelLeft), uint16(1000))
}

func TestSim_ScanCadenceAndChannels(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.ScanPeriodTicks = 4
	sim := NewSim(cfg)

	var frames [][NumSensorChannels]uint16
	require.NoError(t, sim.StartPeriodicScan(func(raw [NumSensorChannels]uint16) {
		frames = append(frames, raw)
	}))
	sim.SetChannelSource(func(tick uint32) [NumSensorChannels]uint16 {
		return [NumSensorChannels]uint16{uint16(tick), 0, 0, 0}
	})

	sim.SleepTicks(12)
	require.Len(t, frames, 3)
	assert.Equal(t, uint16(4), frames[0][0])
	assert.Equal(t, uint16(8), frames[1][0])
	assert.Equal(t, uint16(12), frames[2][0])

	assert.Equal(t, uint16(12), sim.ReadInjectedChannel(1))
	assert.Zero(t, sim.ReadInjectedChannel(2))
	assert.Zero(t, sim.ReadInjectedChannel(5)) // out of range
}

func TestSim_DoubleScanStart(t *testing.T) {
	t.Parallel()
	sim := NewSim(config.Default())

	require.NoError(t, sim.StartPeriodicScan(func([NumSensorChannels]uint16) {}))
	assert.Error(t, sim.StartPeriodicScan(func([NumSensorChannels]uint16) {}))

	sim.StopScan()
	assert.NoError(t, sim.StartPeriodicScan(func([NumSensorChannels]uint16) {}))
}

func TestWheelAndDirectionStrings(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "left", WheelLeft.String())
	assert.Equal(t, "right", WheelRight.String())
	assert.Equal(t, "forward", Forward.String())
	assert.Equal(t, "backward", Backward.String())
}
