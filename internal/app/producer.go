// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/micromouse_core/internal/config"
	"github.com/relabs-tech/micromouse_core/internal/telemetry"
)

// ProducerOptions selects the hardware and the extra outputs of the frame
// producer.
type ProducerOptions struct {
	Sim       bool
	UseSerial bool // mirror the sensor line on the bluetooth serial link
}

// RunProducer publishes the robot's live state over MQTT: the latest sensor
// frame as JSON, the fixed-format sensor line for the legacy tooling, and
// the motion snapshot.
func RunProducer(opts ProducerOptions) error {
	log.Println("starting mousecore sensor/motion producer")

	cfg := config.Get()

	rig, err := NewRig(cfg, opts.Sim)
	if err != nil {
		return fmt.Errorf("producer: %w", err)
	}
	defer rig.Close()

	var serialOut telemetry.Emitter = telemetry.Discard{}
	if opts.UseSerial {
		ser, err := telemetry.OpenSerial(cfg)
		if err != nil {
			return fmt.Errorf("producer: %w", err)
		}
		defer ser.Close()
		serialOut = ser
	}

	mqttOpts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDProducer)

	client := mqtt.NewClient(mqttOpts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("producer: MQTT connect: %w", token.Error())
	}
	defer client.Disconnect(250)

	log.Println("producer: connected to MQTT, starting publish loop")

	ticker := time.NewTicker(time.Duration(cfg.PublishInterval) * time.Millisecond)
	defer ticker.Stop()

	var lastScans uint32
	for range ticker.C {
		// Advance the simulated world; on the board this only sleeps.
		rig.HW.SleepTicks(1)

		frame := rig.Acq.Latest()
		rig.Acq.UpdateDistanceReadings()
		rig.Odom.Update()

		payload, err := json.Marshal(frame)
		if err != nil {
			log.Printf("producer: frame marshal error: %v", err)
			continue
		}
		if token := client.Publish(cfg.TopicSensorFrame, 0, true, payload); token.Wait() && token.Error() != nil {
			log.Printf("producer: MQTT publish error (frame): %v", token.Error())
			continue
		}

		line := telemetry.FormatSensorFrame(frame)
		if token := client.Publish(cfg.TopicSensorLine, 0, false, line); token.Wait() && token.Error() != nil {
			log.Printf("producer: MQTT publish error (line): %v", token.Error())
		}
		if err := serialOut.Emit(line); err != nil {
			log.Printf("producer: serial emit error: %v", err)
		}

		state := rig.Ctrl.Snapshot()
		if payload, err := json.Marshal(state); err != nil {
			log.Printf("producer: motion marshal error: %v", err)
		} else if token := client.Publish(cfg.TopicMotion, 0, true, payload); token.Wait() && token.Error() != nil {
			log.Printf("producer: MQTT publish error (motion): %v", token.Error())
		}

		scans := rig.Acq.Scans()
		log.Printf("tick: %s | scans=%d (+%d) | avg=%dum heading=%.3frad",
			line, scans, scans-lastScans, state.Micrometers, state.HeadingRadians)
		lastScans = scans
	}
	return nil
}
