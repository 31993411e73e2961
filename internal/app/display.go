// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/micromouse_core/internal/config"
	"github.com/relabs-tech/micromouse_core/internal/motion"
	"github.com/relabs-tech/micromouse_core/internal/sensors"
)

// displayData holds the latest data for the OLED
type displayData struct {
	mu sync.RWMutex

	frame     sensors.Frame
	haveFrame bool

	motion     motion.State
	haveMotion bool
}

// RunDisplay drives the small OLED on the robot's handler box: four sensor
// values on top, speed and travel below.
func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Println("display: initialized")

	if err := showSplash(dev); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &displayData{}

	// Connect to MQTT
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	frameToken := client.Subscribe(cfg.TopicSensorFrame, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f sensors.Frame
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("display: frame unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.frame = f
		data.haveFrame = true
		data.mu.Unlock()
	})
	frameToken.Wait()
	if frameToken.Error() != nil {
		return frameToken.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicSensorFrame)

	motionToken := client.Subscribe(cfg.TopicMotion, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var m motion.State
		if err := json.Unmarshal(msg.Payload(), &m); err != nil {
			log.Printf("display: motion unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.motion = m
		data.haveMotion = true
		data.mu.Unlock()
	})
	motionToken.Wait()
	if motionToken.Error() != nil {
		return motionToken.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicMotion)

	// Display update loop
	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		data.mu.RLock()
		frame := data.frame
		haveFrame := data.haveFrame
		state := data.motion
		haveMotion := data.haveMotion
		data.mu.RUnlock()

		if err := updateDisplay(dev, frame, haveFrame, state, haveMotion); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

func newDrawer() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := range img.Pix {
		img.Pix[i] = 0
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func updateDisplay(dev *ssd1306.Dev, frame sensors.Frame, haveFrame bool, state motion.State, haveMotion bool) error {
	img, drawer := newDrawer()

	if !haveFrame && !haveMotion {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte("Mouse Core"))
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte("Waiting..."))
		return dev.Draw(dev.Bounds(), img, image.Point{})
	}

	if haveFrame {
		drawer.Dot = fixed.P(0, 13)
		drawer.DrawBytes([]byte(fmt.Sprintf("S:%4d %4d", frame.Raw[0], frame.Raw[1])))

		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte(fmt.Sprintf("  %4d %4d", frame.Raw[2], frame.Raw[3])))
	}

	if haveMotion {
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte(fmt.Sprintf("v:%6.3f", state.CurrentLinearSpeed)))

		drawer.Dot = fixed.P(0, 52)
		drawer.DrawBytes([]byte(fmt.Sprintf("x:%6.1fcm", float64(state.Micrometers)/1e4)))
	}

	return dev.Draw(dev.Bounds(), img, image.Point{})
}

func showSplash(dev *ssd1306.Dev) error {
	img, drawer := newDrawer()

	drawer.Dot = fixed.P(10, 26)
	drawer.DrawBytes([]byte("Mouse Core"))

	drawer.Dot = fixed.P(5, 43)
	drawer.DrawBytes([]byte("Calibration"))

	drawer.Dot = fixed.P(25, 56)
	drawer.DrawBytes([]byte("Rig"))

	return dev.Draw(dev.Bounds(), img, image.Point{})
}
