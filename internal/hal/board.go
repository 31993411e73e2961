// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package hal

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/micromouse_core/internal/config"
)

// pwmFrequency matches the 24 kHz switching frequency of the motor drivers.
const pwmFrequency = 24 * physic.KiloHertz

// adcSampleRate is the per-channel conversion rate requested from the ADC.
const adcSampleRate = 1600 * physic.Hertz

// Board is the periph.io implementation of Hardware. Direction and brake go
// out on four GPIO lines (one H-bridge pair per wheel), duty on two PWM
// capable pins, and the four distance sensors come in through an ADS1015
// 12-bit ADC on I2C. Encoder counts are decoded in software from the
// quadrature A/B lines using edge interrupts.
type Board struct {
	pwmPeriod uint32
	tickDur   time.Duration
	start     time.Time

	leftForward   gpio.PinIO
	leftBackward  gpio.PinIO
	rightForward  gpio.PinIO
	rightBackward gpio.PinIO
	pwm           [2]gpio.PinIO

	bus     i2c.BusCloser
	adc     *ads1x15.Dev
	adcPins [NumSensorChannels]ads1x15.PinADC
	lastADC [NumSensorChannels]atomic.Uint32

	counters [2]atomic.Uint32 // low 16 bits are the wrapping counter
	encStop  chan struct{}

	scanMu   sync.Mutex
	scanStop chan struct{}
	scanDur  time.Duration
}

// NewBoard initializes periph and claims every pin named in the config.
func NewBoard(cfg *config.Config) (*Board, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	b := &Board{
		pwmPeriod: uint32(cfg.PWMPeriod),
		tickDur:   time.Second / time.Duration(cfg.TickFrequencyHz),
		start:     time.Now(),
		encStop:   make(chan struct{}),
	}
	b.scanDur = b.tickDur * time.Duration(cfg.ScanPeriodTicks)

	var err error
	if b.leftForward, err = claimOut(cfg.MotorLeftForwardPin); err != nil {
		return nil, fmt.Errorf("left forward: %w", err)
	}
	if b.leftBackward, err = claimOut(cfg.MotorLeftBackwardPin); err != nil {
		return nil, fmt.Errorf("left backward: %w", err)
	}
	if b.rightForward, err = claimOut(cfg.MotorRightForwardPin); err != nil {
		return nil, fmt.Errorf("right forward: %w", err)
	}
	if b.rightBackward, err = claimOut(cfg.MotorRightBackwardPin); err != nil {
		return nil, fmt.Errorf("right backward: %w", err)
	}

	for i, name := range []string{cfg.PWMLeftPin, cfg.PWMRightPin} {
		pin := gpioreg.ByName(name)
		if pin == nil {
			return nil, fmt.Errorf("PWM pin %q not found", name)
		}
		if err := pin.PWM(0, pwmFrequency); err != nil {
			return nil, fmt.Errorf("PWM pin %q: %w", name, err)
		}
		b.pwm[i] = pin
	}

	if b.bus, err = i2creg.Open(cfg.ADCI2CBus); err != nil {
		return nil, fmt.Errorf("ADC i2c bus: %w", err)
	}
	if b.adc, err = ads1x15.NewADS1015(b.bus, &ads1x15.DefaultOpts); err != nil {
		return nil, fmt.Errorf("ADS1015: %w", err)
	}
	channels := []ads1x15.Channel{
		ads1x15.Channel0, ads1x15.Channel1, ads1x15.Channel2, ads1x15.Channel3,
	}
	for i, ch := range channels {
		b.adcPins[i], err = b.adc.PinForChannel(ch, 3300*physic.MilliVolt, adcSampleRate, ads1x15.SaveEnergy)
		if err != nil {
			return nil, fmt.Errorf("ADC channel %d: %w", i+1, err)
		}
	}

	encoderPins := [2][2]string{
		{cfg.EncoderLeftAPin, cfg.EncoderLeftBPin},
		{cfg.EncoderRightAPin, cfg.EncoderRightBPin},
	}
	for w, pair := range encoderPins {
		if err := b.startQuadrature(Wheel(w), pair[0], pair[1]); err != nil {
			return nil, fmt.Errorf("%s encoder: %w", Wheel(w), err)
		}
	}

	log.Printf("board: initialized, tick=%v pwm period=%d", b.tickDur, b.pwmPeriod)
	return b, nil
}

func claimOut(name string) (gpio.PinIO, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("pin %q not found", name)
	}
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("pin %q: %w", name, err)
	}
	return pin, nil
}

// startQuadrature decodes a quadrature pair in software: on each edge of A,
// the level of B gives the rotation direction. Counts wrap modulo 2^16 like
// the hardware counters they stand in for.
func (b *Board) startQuadrature(w Wheel, aName, bName string) error {
	pa := gpioreg.ByName(aName)
	pb := gpioreg.ByName(bName)
	if pa == nil || pb == nil {
		return fmt.Errorf("pins %q/%q not found", aName, bName)
	}
	if err := pa.In(gpio.PullNoChange, gpio.BothEdges); err != nil {
		return fmt.Errorf("pin %q: %w", aName, err)
	}
	if err := pb.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return fmt.Errorf("pin %q: %w", bName, err)
	}

	go func() {
		for {
			select {
			case <-b.encStop:
				return
			default:
			}
			if !pa.WaitForEdge(time.Second) {
				continue
			}
			if pa.Read() == pb.Read() {
				b.counters[w].Add(1)
			} else {
				b.counters[w].Add(^uint32(0)) // -1
			}
		}
	}()
	return nil
}

func (b *Board) ReadEncoder(w Wheel) uint16 {
	return uint16(b.counters[w].Load())
}

func (b *Board) SetPWM(w Wheel, duty uint32) {
	scaled := gpio.Duty(uint64(duty) * uint64(gpio.DutyMax) / uint64(b.pwmPeriod))
	if err := b.pwm[w].PWM(scaled, pwmFrequency); err != nil {
		log.Printf("board: %s PWM write: %v", w, err)
	}
}

func (b *Board) SetDirection(w Wheel, d Direction) {
	fwd, back := b.leftForward, b.leftBackward
	if w == WheelRight {
		fwd, back = b.rightForward, b.rightBackward
	}
	if d == Forward {
		back.Out(gpio.Low)
		fwd.Out(gpio.High)
	} else {
		fwd.Out(gpio.Low)
		back.Out(gpio.High)
	}
}

func (b *Board) Brake() {
	b.leftForward.Out(gpio.High)
	b.leftBackward.Out(gpio.High)
	b.rightForward.Out(gpio.High)
	b.rightBackward.Out(gpio.High)
}

// StartPeriodicScan runs the injected scan on its own timer, independent of
// the control tick. One full sweep of the four channels completes before the
// handler fires, mirroring the end-of-scan interrupt of the original ADC.
func (b *Board) StartPeriodicScan(onComplete func(raw [NumSensorChannels]uint16)) error {
	b.scanMu.Lock()
	defer b.scanMu.Unlock()
	if b.scanStop != nil {
		return fmt.Errorf("scan already running")
	}
	stop := make(chan struct{})
	b.scanStop = stop

	go func() {
		ticker := time.NewTicker(b.scanDur)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				var raw [NumSensorChannels]uint16
				for i, pin := range b.adcPins {
					sample, err := pin.Read()
					if err != nil {
						log.Printf("board: ADC channel %d read: %v", i+1, err)
						continue
					}
					raw[i] = clampADC(sample.Raw)
					b.lastADC[i].Store(uint32(raw[i]))
				}
				onComplete(raw)
			}
		}
	}()
	return nil
}

func (b *Board) StopScan() {
	b.scanMu.Lock()
	defer b.scanMu.Unlock()
	if b.scanStop != nil {
		close(b.scanStop)
		b.scanStop = nil
	}
}

func (b *Board) ReadInjectedChannel(n int) uint16 {
	if n < 1 || n > NumSensorChannels {
		return 0
	}
	return uint16(b.lastADC[n-1].Load())
}

func (b *Board) ClockTicks() uint32 {
	return uint32(time.Since(b.start) / b.tickDur)
}

func (b *Board) SleepTicks(n uint32) {
	time.Sleep(time.Duration(n) * b.tickDur)
}

// Close releases the encoder goroutines and the I2C bus.
func (b *Board) Close() error {
	b.StopScan()
	close(b.encStop)
	return b.bus.Close()
}

func clampADC(raw int32) uint16 {
	if raw < 0 {
		return 0
	}
	if raw > ADCMax {
		return ADCMax
	}
	return uint16(raw)
}
