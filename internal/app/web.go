// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/micromouse_core/internal/config"
	"github.com/relabs-tech/micromouse_core/internal/motion"
	"github.com/relabs-tech/micromouse_core/internal/sensors"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// webState mirrors the latest producer messages for the HTTP handlers.
type webState struct {
	mu        sync.RWMutex
	frame     sensors.Frame
	haveFrame bool
	motion    motion.State
	haveMove  bool

	subMu sync.Mutex
	subs  map[chan sensors.Frame]struct{}
}

func (s *webState) setFrame(f sensors.Frame) {
	s.mu.Lock()
	s.frame = f
	s.haveFrame = true
	s.mu.Unlock()

	s.subMu.Lock()
	for ch := range s.subs {
		select {
		case ch <- f:
		default: // slow client, drop the frame
		}
	}
	s.subMu.Unlock()
}

func (s *webState) subscribe() chan sensors.Frame {
	ch := make(chan sensors.Frame, 16)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()
	return ch
}

func (s *webState) unsubscribe(ch chan sensors.Frame) {
	s.subMu.Lock()
	delete(s.subs, ch)
	s.subMu.Unlock()
}

// RunWeb serves the latest sensor frame and motion state as a JSON API and
// streams frames to websocket clients.
func RunWeb() error {
	cfg := config.Get()
	state := &webState{subs: make(map[chan sensors.Frame]struct{})}

	// 1) Connect to the MQTT broker
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	// 2) Subscribe to the producer's topics
	frameToken := client.Subscribe(cfg.TopicSensorFrame, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f sensors.Frame
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("web: frame unmarshal error: %v", err)
			return
		}
		state.setFrame(f)
	})
	frameToken.Wait()
	if frameToken.Error() != nil {
		return frameToken.Error()
	}
	log.Printf("web: subscribed to %s", cfg.TopicSensorFrame)

	motionToken := client.Subscribe(cfg.TopicMotion, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var m motion.State
		if err := json.Unmarshal(msg.Payload(), &m); err != nil {
			log.Printf("web: motion unmarshal error: %v", err)
			return
		}
		state.mu.Lock()
		state.motion = m
		state.haveMove = true
		state.mu.Unlock()
	})
	motionToken.Wait()
	if motionToken.Error() != nil {
		return motionToken.Error()
	}
	log.Printf("web: subscribed to %s", cfg.TopicMotion)

	// 3) JSON API endpoints
	http.HandleFunc("/api/sensors", func(w http.ResponseWriter, r *http.Request) {
		state.mu.RLock()
		defer state.mu.RUnlock()

		if !state.haveFrame {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(state.frame); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	http.HandleFunc("/api/motion", func(w http.ResponseWriter, r *http.Request) {
		state.mu.RLock()
		defer state.mu.RUnlock()

		if !state.haveMove {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(state.motion); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	// 4) Websocket frame stream
	http.HandleFunc("/ws/sensors", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("web: websocket upgrade error: %v", err)
			return
		}
		defer conn.Close()

		ch := state.subscribe()
		defer state.unsubscribe(ch)

		for f := range ch {
			if err := conn.WriteJSON(f); err != nil {
				log.Printf("web: websocket write error: %v", err)
				return
			}
		}
	})

	// 5) Static files from ./web as the root
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
