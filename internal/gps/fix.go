// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package gps turns NMEA sentences from a serial receiver into position
// readings.
package gps

import (
	"time"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/relabs-tech/cubesat_telemetry/internal/telemetry"
)

// Fix is the receiver state accumulated from RMC and GGA sentences.
type Fix struct {
	Latitude    float64 // decimal degrees
	Longitude   float64 // decimal degrees
	Altitude    float64 // metres above mean sea level, from GGA
	SpeedKnots  float64 // speed over ground
	CourseDeg   float64 // course over ground
	Satellites  int64   // from GGA
	HDOP        float64 // from GGA
	Valid       bool    // RMC status "A"
	HasAltitude bool
}

// Update folds a parsed sentence into the fix. It reports true when the
// sentence completes a valid position (an RMC with status A).
func (f *Fix) Update(s nmea.Sentence) bool {
	switch m := s.(type) {
	case nmea.RMC:
		f.Latitude = m.Latitude
		f.Longitude = m.Longitude
		f.SpeedKnots = m.Speed
		f.CourseDeg = m.Course
		f.Valid = m.Validity == nmea.ValidRMC
		return f.Valid
	case nmea.GGA:
		// Quality "0" is no fix; keep the previous altitude.
		if m.FixQuality == nmea.Invalid {
			return false
		}
		f.Latitude = m.Latitude
		f.Longitude = m.Longitude
		f.Altitude = m.Altitude
		f.Satellites = m.NumSatellites
		f.HDOP = m.HDOP
		f.HasAltitude = true
	}
	return false
}

// Reading converts the fix into a position reading stamped at.
func (f *Fix) Reading(sensor string, at time.Time) telemetry.Reading {
	v := telemetry.Measurement{
		"latitude":    f.Latitude,
		"longitude":   f.Longitude,
		"speed_knots": f.SpeedKnots,
		"course":      f.CourseDeg,
	}
	if f.HasAltitude {
		v["altitude"] = f.Altitude
		v["satellites"] = float64(f.Satellites)
		v["hdop"] = f.HDOP
	}
	return telemetry.Reading{Sensor: sensor, Kind: telemetry.KindPosition, Time: at, Values: v}
}
