// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/cubesat_telemetry/internal/config"
	"github.com/relabs-tech/cubesat_telemetry/internal/telemetry"
)

// Handler receives decoded readings.
type Handler func(telemetry.Reading)

// Subscriber listens on <prefix>/# and decodes every message as a reading.
type Subscriber struct {
	client  mqtt.Client
	topic   string
	qos     byte
	handler Handler
	log     *slog.Logger

	connected atomic.Bool
	invalid   atomic.Uint64
	stopOnce  sync.Once
	stopped   atomic.Bool
}

// NewSubscriber builds a subscriber for cfg. It does not connect.
func NewSubscriber(cfg config.MQTTConfig, handler Handler, log *slog.Logger) *Subscriber {
	if log == nil {
		log = slog.Default()
	}
	s := &Subscriber{
		topic:   Topic(cfg.TopicPrefix, "#"),
		qos:     cfg.QoS,
		handler: handler,
		log:     log,
	}
	s.client = mqtt.NewClient(clientOptions(cfg.Broker, cfg.ClientIDConsole, &s.connected, log))
	return s
}

// Connect connects and subscribes.
func (s *Subscriber) Connect(ctx context.Context) error {
	if s.stopped.Load() {
		return ErrStopped
	}
	if err := connect(ctx, s.client); err != nil {
		return err
	}

	token := s.client.Subscribe(s.topic, s.qos, func(_ mqtt.Client, msg mqtt.Message) {
		s.handleMessage(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		s.client.Disconnect(0)
		return fmt.Errorf("subscribe timeout for topic %s", s.topic)
	}
	if err := token.Error(); err != nil {
		s.client.Disconnect(0)
		return fmt.Errorf("subscribe to %s: %w", s.topic, err)
	}
	s.log.Info("mqtt: subscribed", "topic", s.topic, "qos", s.qos)
	return nil
}

// Invalid returns the number of messages that could not be decoded.
func (s *Subscriber) Invalid() uint64 { return s.invalid.Load() }

func (s *Subscriber) handleMessage(topic string, payload []byte) {
	var r telemetry.Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		s.invalid.Add(1)
		s.log.Warn("mqtt: invalid reading", "topic", topic, "error", err)
		return
	}
	if want := SensorFromTopic(topic); r.Sensor != want {
		s.invalid.Add(1)
		s.log.Warn("mqtt: sensor does not match topic", "topic", topic, "sensor", r.Sensor)
		return
	}
	if s.handler != nil {
		s.handler(r)
	}
}

// Close disconnects; later Connect calls fail with ErrStopped.
func (s *Subscriber) Close() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		s.client.Disconnect(250)
	})
}
