// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package poller runs one acquisition loop per sensor: trigger a
// conversion, wait for it to settle, read, compensate and emit.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/relabs-tech/cubesat_telemetry/internal/bus"
	"github.com/relabs-tech/cubesat_telemetry/internal/calib"
	"github.com/relabs-tech/cubesat_telemetry/internal/compensate"
	"github.com/relabs-tech/cubesat_telemetry/internal/sensors"
	"github.com/relabs-tech/cubesat_telemetry/internal/telemetry"
)

// State is the poller's position in its cycle.
type State int

const (
	StateIdle State = iota
	StateOpening
	StateTriggering
	StateSettling
	StateReading
	StateCompensating
	StateEmit
	// StateTransientFail is held until the next cycle starts so status
	// reports the failed cycle.
	StateTransientFail
	StateFailed
	StateStopped
)

var stateNames = [...]string{
	StateIdle:          "idle",
	StateOpening:       "opening",
	StateTriggering:    "triggering",
	StateSettling:      "settling",
	StateReading:       "reading",
	StateCompensating:  "compensating",
	StateEmit:          "emit",
	StateTransientFail: "transient_fail",
	StateFailed:        "failed",
	StateStopped:       "stopped",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// DefaultMaxFailures is used when Config.MaxFailures is zero.
const DefaultMaxFailures = 5

// Config identifies one sensor instance.
type Config struct {
	Name        string
	Addr        uint16
	Profile     sensors.Profile
	Interval    time.Duration // zero uses the profile default
	MaxFailures int           // consecutive bus failures before giving up
}

// Sink receives every emitted reading. Append must not block for long.
type Sink interface {
	Append(telemetry.Reading)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(telemetry.Reading)

func (f SinkFunc) Append(r telemetry.Reading) { f(r) }

// Tee fans a reading out to several sinks in order.
type Tee []Sink

func (t Tee) Append(r telemetry.Reading) {
	for _, s := range t {
		s.Append(r)
	}
}

// Status is a point-in-time view of a poller.
type Status struct {
	Name            string    `json:"name"`
	Model           string    `json:"model"`
	Kind            string    `json:"kind"`
	State           State     `json:"state"`
	Calibrated      bool      `json:"calibrated"`
	Emitted         uint64    `json:"emitted"`
	BusFailures     int       `json:"bus_failures"`
	TotalBusErrors  uint64    `json:"total_bus_errors"`
	ComputeFailures uint64    `json:"compute_failures"`
	LastError       string    `json:"last_error,omitempty"`
	LastReading     time.Time `json:"last_reading,omitempty"`
	SessionSince    time.Time `json:"session_since,omitempty"`
}

// Poller drives a single sensor. It owns its session; the sink is the only
// state it shares with other pollers.
type Poller struct {
	cfg  Config
	bus  bus.Bus
	sink Sink
	log  *slog.Logger
	now  func() time.Time

	mu      sync.Mutex
	status  Status
	session *Session
}

// New builds a poller. A nil logger uses slog.Default.
func New(cfg Config, b bus.Bus, sink Sink, log *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = cfg.Profile.DefaultInterval
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Profile.Model
	}
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		cfg:  cfg,
		bus:  b,
		sink: sink,
		log:  log.With("sensor", cfg.Name, "model", cfg.Profile.Model),
		now:  time.Now,
		status: Status{
			Name:  cfg.Name,
			Model: cfg.Profile.Model,
			Kind:  string(cfg.Profile.Kind),
		},
	}
}

// Name returns the configured sensor name.
func (p *Poller) Name() string { return p.cfg.Name }

// Status returns a snapshot of the poller's counters.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) setState(s State) {
	p.mu.Lock()
	p.status.State = s
	p.mu.Unlock()
}

// Run polls until ctx is cancelled or a fatal error occurs. The first
// cycle starts immediately. Cancellation returns nil.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("poller: starting", "interval", p.cfg.Interval, "addr", fmt.Sprintf("0x%02X", p.cfg.Addr))

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := p.cycle(ctx); err != nil && ctx.Err() == nil {
			p.mu.Lock()
			p.status.State = StateFailed
			p.status.LastError = err.Error()
			p.mu.Unlock()
			p.log.Error("poller: session aborted", "error", err)
			return err
		}

		select {
		case <-ctx.Done():
			p.setState(StateStopped)
			p.log.Info("poller: stopped", "emitted", p.Status().Emitted)
			return nil
		case <-ticker.C:
		}
	}
}

// cycle runs one Idle -> ... -> Idle pass. It returns only fatal errors;
// transient ones are counted and logged.
func (p *Poller) cycle(ctx context.Context) error {
	p.setState(StateIdle)
	if p.session == nil {
		p.setState(StateOpening)
		s, err := OpenSession(p.bus, p.cfg.Addr, p.cfg.Profile)
		if err != nil {
			if bus.IsBusError(err) {
				return p.busFailure(err)
			}
			return err
		}
		p.session = s
		p.mu.Lock()
		p.status.Calibrated = true
		p.status.SessionSince = s.opened
		p.status.BusFailures = 0
		p.mu.Unlock()
		p.log.Info("poller: session opened", "calibration", s.cal.Layout(), "coefficients", len(s.cal.Names()))
	}

	raw, readAt, err := p.session.sample(ctx, p.now, p.setState)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if bus.IsBusError(err) {
			return p.busFailure(err)
		}
		return err
	}

	p.setState(StateCompensating)
	values, err := compensate.Compensate(p.cfg.Profile.Kind, raw, p.session.cal)
	if err != nil {
		if errors.Is(err, calib.ErrMalformedCalibration) {
			return err
		}
		p.mu.Lock()
		p.status.ComputeFailures++
		p.status.LastError = err.Error()
		p.status.BusFailures = 0
		p.status.State = StateTransientFail
		p.mu.Unlock()
		p.log.Warn("poller: reading discarded", "error", err)
		return nil
	}

	reading := telemetry.Reading{
		Sensor: p.cfg.Name,
		Kind:   p.cfg.Profile.Kind,
		Time:   readAt,
		Values: values,
	}
	p.setState(StateEmit)
	p.sink.Append(reading)

	p.mu.Lock()
	p.status.Emitted++
	p.status.BusFailures = 0
	p.status.LastReading = readAt
	p.status.State = StateIdle
	p.mu.Unlock()
	return nil
}

func (p *Poller) busFailure(err error) error {
	p.mu.Lock()
	p.status.BusFailures++
	p.status.TotalBusErrors++
	p.status.LastError = err.Error()
	p.status.State = StateTransientFail
	n := p.status.BusFailures
	p.mu.Unlock()

	if n >= p.cfg.MaxFailures {
		return fmt.Errorf("%s: %w after %d consecutive bus failures: %w", p.cfg.Name, ErrDeviceDisconnected, n, err)
	}
	p.log.Warn("poller: bus failure, retrying next cycle", "error", err, "consecutive", n, "max", p.cfg.MaxFailures)
	return nil
}
