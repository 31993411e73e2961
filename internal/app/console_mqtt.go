// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/micromouse_core/internal/config"
	"github.com/relabs-tech/micromouse_core/internal/motion"
	"github.com/relabs-tech/micromouse_core/internal/sensors"
)

// RunConsoleMQTT prints the producer's topics to the terminal as they
// arrive. Useful while walking the robot around with a laptop.
func RunConsoleMQTT() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	frameToken := client.Subscribe(cfg.TopicSensorFrame, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f sensors.Frame
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("console: frame unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[SENS]  S1=%4d S2=%4d S3=%4d S4=%4d  mode=%s tick=%d\n",
			f.Raw[0], f.Raw[1], f.Raw[2], f.Raw[3], f.Mode, f.Ticks,
		)
	})
	frameToken.Wait()
	if frameToken.Error() != nil {
		return frameToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicSensorFrame)

	motionToken := client.Subscribe(cfg.TopicMotion, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s motion.State
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("console: motion unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[MOVE]  v=%6.3f/%6.3f m/s  w=%6.3f/%6.3f rad/s  x=%8dum  th=%6.3frad\n",
			s.CurrentLinearSpeed, s.TargetLinearSpeed,
			s.CurrentAngularSpeed, s.TargetAngularSpeed,
			s.Micrometers, s.HeadingRadians,
		)
	})
	motionToken.Wait()
	if motionToken.Error() != nil {
		return motionToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicMotion)

	logToken := client.Subscribe(cfg.TopicLog, 0, func(_ mqtt.Client, msg mqtt.Message) {
		fmt.Printf("[LOG ]  %s\n", msg.Payload())
	})
	logToken.Wait()
	if logToken.Error() != nil {
		return logToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicLog)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
