// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package publish mirrors compensated readings onto MQTT and reads them
// back for remote consoles.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/cubesat_telemetry/internal/config"
	"github.com/relabs-tech/cubesat_telemetry/internal/telemetry"
)

// ErrStopped is returned by Connect after Close.
var ErrStopped = errors.New("mqtt client stopped")

const (
	connectPoll    = 200 * time.Millisecond
	publishTimeout = 2 * time.Second
)

// Topic returns <prefix>/<sensor>.
func Topic(prefix, sensor string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + sensor
}

// SensorFromTopic returns the last topic level.
func SensorFromTopic(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}

func clientOptions(broker, clientID string, connected *atomic.Bool, log *slog.Logger) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		connected.Store(true)
		log.Info("mqtt: connected", "broker", broker, "client_id", clientID)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		connected.Store(false)
		log.Warn("mqtt: connection lost", "error", err)
	})
	return opts
}

// connect waits for the connect token without ignoring ctx.
func connect(ctx context.Context, client mqtt.Client) error {
	token := client.Connect()
	for {
		if token.WaitTimeout(connectPoll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			client.Disconnect(0)
			return ctx.Err()
		default:
		}
	}
}

// Publisher is a poller sink that forwards each reading to
// <prefix>/<sensor> as JSON. Append never blocks; Run does the network I/O.
type Publisher struct {
	client mqtt.Client
	prefix string
	qos    byte
	retain bool
	queue  chan telemetry.Reading
	log    *slog.Logger

	connected atomic.Bool
	published atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// NewPublisher builds a publisher for cfg. It does not connect.
func NewPublisher(cfg config.MQTTConfig, log *slog.Logger) *Publisher {
	p := newPublisher(nil, cfg, log)
	p.client = mqtt.NewClient(clientOptions(cfg.Broker, cfg.ClientIDCollector, &p.connected, p.log))
	return p
}

func newPublisher(client mqtt.Client, cfg config.MQTTConfig, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 256
	}
	return &Publisher{
		client: client,
		prefix: cfg.TopicPrefix,
		qos:    cfg.QoS,
		retain: cfg.Retain,
		queue:  make(chan telemetry.Reading, size),
		log:    log,
	}
}

// Append queues r for publishing, dropping it when the queue is full.
func (p *Publisher) Append(r telemetry.Reading) {
	select {
	case p.queue <- r.Clone():
	default:
		p.dropped.Add(1)
	}
}

// Connected reports the broker connection state.
func (p *Publisher) Connected() bool { return p.connected.Load() }

// Stats returns published, failed and dropped counts.
func (p *Publisher) Stats() (published, failed, dropped uint64) {
	return p.published.Load(), p.failed.Load(), p.dropped.Load()
}

// Run connects and publishes queued readings until ctx is done.
func (p *Publisher) Run(ctx context.Context) error {
	if err := connect(ctx, p.client); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer p.client.Disconnect(250)

	for {
		select {
		case <-ctx.Done():
			published, failed, dropped := p.Stats()
			p.log.Info("mqtt: publisher stopped", "published", published, "failed", failed, "dropped", dropped)
			return nil
		case r := <-p.queue:
			p.publish(r)
		}
	}
}

func (p *Publisher) publish(r telemetry.Reading) {
	payload, err := json.Marshal(r)
	if err != nil {
		p.failed.Add(1)
		p.log.Error("mqtt: encode failed", "sensor", r.Sensor, "error", err)
		return
	}
	topic := Topic(p.prefix, r.Sensor)
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.failed.Add(1)
		p.log.Warn("mqtt: publish timeout", "topic", topic)
		return
	}
	if err := token.Error(); err != nil {
		p.failed.Add(1)
		p.log.Warn("mqtt: publish failed", "topic", topic, "error", err)
		return
	}
	p.published.Add(1)
}
