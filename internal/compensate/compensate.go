// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package compensate converts raw ADC readings into physical values using a
// device's calibration block. Every function here is pure: no bus I/O, no
// state, identical output for identical input.
package compensate

import (
	"errors"
	"fmt"

	"github.com/relabs-tech/cubesat_telemetry/internal/calib"
	"github.com/relabs-tech/cubesat_telemetry/internal/telemetry"
)

// ErrDivisionByZero marks a degenerate raw/calibration combination. The
// reading is discarded; a fresh raw value is needed before retrying.
var ErrDivisionByZero = errors.New("division by zero in compensation")

// ErrMissingChannel is returned when a raw frame lacks a channel the
// formula needs.
var ErrMissingChannel = errors.New("missing raw channel")

// ErrUnsupportedKind is returned for kinds that have no formula.
var ErrUnsupportedKind = errors.New("unsupported sensor kind")

// RawReading is an uncompensated device output in ADC counts.
type RawReading uint32

// RawFromBytes assembles big-endian bytes; for two bytes this is
// (msb << 8) | lsb.
func RawFromBytes(b ...byte) RawReading {
	var v uint32
	for _, x := range b {
		v = v<<8 | uint32(x)
	}
	return RawReading(v)
}

// RawFromBytesLE assembles little-endian bytes.
func RawFromBytesLE(b ...byte) RawReading {
	var v uint32
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint32(b[i])
	}
	return RawReading(v)
}

// Signed16 reinterprets the low 16 bits as two's complement.
func (r RawReading) Signed16() int32 {
	return calib.ToSigned16(int32(r & 0xFFFF))
}

// Raw is one poll cycle's raw channels keyed by name.
type Raw map[string]RawReading

func (r Raw) channels(names ...string) ([]RawReading, error) {
	out := make([]RawReading, len(names))
	for i, n := range names {
		v, ok := r[n]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingChannel, n)
		}
		out[i] = v
	}
	return out, nil
}

// Compensate dispatches on kind and returns the physical measurement.
func Compensate(kind telemetry.Kind, raw Raw, cal calib.Block) (telemetry.Measurement, error) {
	switch kind {
	case telemetry.KindBarometric:
		return barometric(raw, cal)
	case telemetry.KindHumidity:
		return humidity(raw, cal)
	case telemetry.KindInertial:
		return inertial(raw, cal)
	case telemetry.KindRadio:
		return radio(raw, cal)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}
}
