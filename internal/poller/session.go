// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/relabs-tech/cubesat_telemetry/internal/bus"
	"github.com/relabs-tech/cubesat_telemetry/internal/calib"
	"github.com/relabs-tech/cubesat_telemetry/internal/compensate"
	"github.com/relabs-tech/cubesat_telemetry/internal/sensors"
)

// ErrDeviceIdentityMismatch means the identity register did not hold the
// expected chip ID. The session cannot start.
var ErrDeviceIdentityMismatch = errors.New("device identity mismatch")

// ErrDeviceDisconnected is returned once consecutive bus failures reach the
// configured threshold.
var ErrDeviceDisconnected = errors.New("device disconnected")

// Session is an opened device: identity verified, init writes applied and
// calibration read exactly once.
type Session struct {
	bus     bus.Bus
	addr    uint16
	profile sensors.Profile
	cal     calib.Block
	opened  time.Time
}

// OpenSession verifies identity, applies the profile's init writes and
// decodes the calibration block. Bus errors are returned as is so the
// caller can retry; identity and calibration faults are fatal.
func OpenSession(b bus.Bus, addr uint16, p sensors.Profile) (*Session, error) {
	id, err := b.ReadRegister(addr, p.IDRegister)
	if err != nil {
		return nil, fmt.Errorf("%s: read identity: %w", p.Model, err)
	}
	if id != p.ExpectedID {
		return nil, fmt.Errorf("%s at 0x%02X: %w: register 0x%02X = 0x%02X, want 0x%02X",
			p.Model, addr, ErrDeviceIdentityMismatch, p.IDRegister, id, p.ExpectedID)
	}

	for _, w := range p.Init {
		if err := b.WriteRegister(addr, w.Reg, w.Value); err != nil {
			return nil, fmt.Errorf("%s: init: %w", p.Model, err)
		}
	}

	data, err := b.ReadBlock(addr, p.CalibrationRegister, p.Calibration.Size)
	if err != nil {
		return nil, fmt.Errorf("%s: read calibration: %w", p.Model, err)
	}
	cal, err := calib.Decode(p.Calibration, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Model, err)
	}
	for name, v := range p.Constants {
		cal = cal.With(name, v)
	}

	return &Session{bus: b, addr: addr, profile: p, cal: cal, opened: time.Now()}, nil
}

// Calibration returns the block decoded when the session opened.
func (s *Session) Calibration() calib.Block { return s.cal }

// Profile returns the device profile.
func (s *Session) Profile() sensors.Profile { return s.profile }

// stepper receives state changes while a cycle runs.
type stepper func(State)

// sample runs every step of the profile and returns the raw channels and
// the time the final read completed. The settle wait honours ctx.
func (s *Session) sample(ctx context.Context, now func() time.Time, enter stepper) (compensate.Raw, time.Time, error) {
	raw := make(compensate.Raw)
	var readAt time.Time
	for _, st := range s.profile.Steps {
		if st.Trigger != nil {
			enter(StateTriggering)
			if err := s.bus.WriteRegister(s.addr, st.Trigger.Reg, st.Trigger.Value); err != nil {
				return nil, time.Time{}, err
			}
		}
		if st.Settle > 0 {
			enter(StateSettling)
			if err := sleep(ctx, st.Settle); err != nil {
				return nil, time.Time{}, err
			}
		}

		enter(StateReading)
		data, err := s.bus.ReadBlock(s.addr, st.Register, st.Length)
		if err != nil {
			return nil, time.Time{}, err
		}
		readAt = now()
		if err := st.Extract(data, raw); err != nil {
			return nil, time.Time{}, err
		}
	}
	return raw, readAt, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
