// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/micromouse_core/internal/config"
	"github.com/relabs-tech/micromouse_core/internal/hal"
)

func newTestAcquisition(t *testing.T) (*hal.Sim, *Acquisition) {
	t.Helper()
	cfg := config.Default()
	sim := hal.NewSim(cfg)
	acq := New(sim, cfg)
	require.NoError(t, acq.Start())
	return sim, acq
}

func TestLatest_InitiallyZeroFrame(t *testing.T) {
	t.Parallel()
	_, acq := newTestAcquisition(t)

	f := acq.Latest()
	assert.Equal(t, [hal.NumSensorChannels]uint16{}, f.Raw)
	assert.Zero(t, f.Ticks)
}

func TestScan_PublishesWholeFrame(t *testing.T) {
	t.Parallel()
	sim, acq := newTestAcquisition(t)

	sim.SetChannelSource(func(tick uint32) [hal.NumSensorChannels]uint16 {
		return [hal.NumSensorChannels]uint16{100, 200, 300, 400}
	})
	sim.SleepTicks(1)

	f := acq.Latest()
	assert.Equal(t, [hal.NumSensorChannels]uint16{100, 200, 300, 400}, f.Raw)
	assert.Equal(t, uint32(1), f.Ticks)
	assert.Equal(t, uint32(1), acq.Scans())

	sim.SleepTicks(9)
	assert.Equal(t, uint32(10), acq.Scans())
}

func TestStart_AlreadyRunning(t *testing.T) {
	t.Parallel()
	_, acq := newTestAcquisition(t)
	assert.Error(t, acq.Start())
}

func TestFrameAtomicity(t *testing.T) {
	t.Parallel()
	sim, acq := newTestAcquisition(t)

	// Every scan produces four identical values derived from the tick, so
	// a torn frame would show up as a mismatch between channels.
	sim.SetChannelSource(func(tick uint32) [hal.NumSensorChannels]uint16 {
		v := uint16(tick % (hal.ADCMax + 1))
		return [hal.NumSensorChannels]uint16{v, v, v, v}
	})

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 20000; i++ {
			sim.SleepTicks(1)
		}
	}()

	var torn bool
	go func() {
		defer wg.Done()
		for i := 0; i < 20000; i++ {
			f := acq.Latest()
			if f.Raw[1] != f.Raw[0] || f.Raw[2] != f.Raw[0] || f.Raw[3] != f.Raw[0] {
				torn = true
				return
			}
		}
	}()

	wg.Wait()
	assert.False(t, torn, "observed a frame mixing two scan cycles")
}

func TestMode(t *testing.T) {
	t.Parallel()
	sim, acq := newTestAcquisition(t)

	assert.Equal(t, SideMode, acq.ModeNow())

	acq.SetMode(FrontMode)
	sim.SleepTicks(1)
	assert.Equal(t, FrontMode, acq.Latest().Mode)
	assert.Equal(t, "front", FrontMode.String())
	assert.Equal(t, "side", SideMode.String())
}

func TestUpdateDistanceReadings(t *testing.T) {
	t.Parallel()
	sim, acq := newTestAcquisition(t)
	cfg := config.Default()

	sim.SetChannelSource(func(uint32) [hal.NumSensorChannels]uint16 {
		return [hal.NumSensorChannels]uint16{4095, 1000, 0, 0}
	})
	sim.SleepTicks(1)
	acq.UpdateDistanceReadings()

	want := cfg.SensorGainA / math.Log(4095+cfg.SensorOffsetB)
	assert.InDelta(t, want, acq.Distance(SideLeft), 1e-12)

	// Raw zero hits the transform floor instead of dividing by log(1)=0.
	floor := cfg.SensorGainA / math.Log(2)
	assert.InDelta(t, floor, acq.Distance(FrontLeft), 1e-12)
}

func TestSideReference(t *testing.T) {
	t.Parallel()
	_, acq := newTestAcquisition(t)

	acq.SetSideReference(1200, 1300)
	left, right := acq.SideReference()
	assert.Equal(t, uint16(1200), left)
	assert.Equal(t, uint16(1300), right)
}

func TestBatteryLow(t *testing.T) {
	t.Parallel()
	assert.True(t, BatteryLow(hal.BatteryLowLimit-1))
	assert.False(t, BatteryLow(hal.BatteryLowLimit))
	assert.False(t, BatteryLow(hal.ADCMax))
}

func TestStop_HaltsScans(t *testing.T) {
	t.Parallel()
	sim, acq := newTestAcquisition(t)

	sim.SleepTicks(5)
	require.Equal(t, uint32(5), acq.Scans())

	acq.Stop()
	sim.SleepTicks(5)
	assert.Equal(t, uint32(5), acq.Scans())
}
