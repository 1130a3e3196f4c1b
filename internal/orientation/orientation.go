// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package orientation derives attitude angles from inertial measurements.
package orientation

import (
	"math"
)

// Tilt is roll and pitch in degrees. Yaw needs a magnetometer and is not
// derived here.
type Tilt struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
}

// FromAccel computes roll and pitch from a gravity vector in any unit.
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func FromAccel(ax, ay, az float64) Tilt {
	rollRad := math.Atan2(ay, az)
	pitchRad := math.Atan2(-ax, math.Sqrt(ay*ay+az*az))

	return Tilt{
		Roll:  rollRad * 180.0 / math.Pi,
		Pitch: pitchRad * 180.0 / math.Pi,
	}
}
