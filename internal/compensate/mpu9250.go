// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package compensate

import (
	"fmt"

	"github.com/relabs-tech/cubesat_telemetry/internal/calib"
	"github.com/relabs-tech/cubesat_telemetry/internal/orientation"
	"github.com/relabs-tech/cubesat_telemetry/internal/telemetry"
)

// Gyro sensitivity in LSB per °/s for GYRO_FS_SEL 0..3.
var gyroLSBPerDPS = [4]float64{131, 65.5, 32.8, 16.4}

// MPU9250Accel returns acceleration in g for ACCEL_FS_SEL fs (±2g..±16g).
func MPU9250Accel(raw int32, fs int32) (float64, error) {
	if fs < 0 || fs > 3 {
		return 0, fmt.Errorf("mpu9250 accel: full scale select %d out of range", fs)
	}
	return float64(raw) / float64(int32(16384)>>fs), nil
}

// MPU9250Gyro returns angular rate in °/s for GYRO_FS_SEL fs.
func MPU9250Gyro(raw int32, fs int32) (float64, error) {
	if fs < 0 || fs > 3 {
		return 0, fmt.Errorf("mpu9250 gyro: full scale select %d out of range", fs)
	}
	return float64(raw) / gyroLSBPerDPS[fs], nil
}

// MPU9250Temperature returns die temperature in °C.
func MPU9250Temperature(raw int32) float64 {
	return float64(raw)/333.87 + 21.0
}

func inertial(raw Raw, cal calib.Block) (telemetry.Measurement, error) {
	ch, err := raw.channels("ax", "ay", "az", "temp", "gx", "gy", "gz")
	if err != nil {
		return nil, err
	}
	fs, err := cal.Require("ACCEL_FS_SEL", "GYRO_FS_SEL")
	if err != nil {
		return nil, err
	}

	m := make(telemetry.Measurement, 9)
	accel := make([]float64, 3)
	for i, axis := range []string{"x", "y", "z"} {
		a, err := MPU9250Accel(ch[i].Signed16(), fs[0])
		if err != nil {
			return nil, err
		}
		g, err := MPU9250Gyro(ch[4+i].Signed16(), fs[1])
		if err != nil {
			return nil, err
		}
		accel[i] = a
		m["accel."+axis] = a
		m["gyro."+axis] = g
	}
	m["temperature"] = MPU9250Temperature(ch[3].Signed16())

	tilt := orientation.FromAccel(accel[0], accel[1], accel[2])
	m["tilt.roll"] = tilt.Roll
	m["tilt.pitch"] = tilt.Pitch
	return m, nil
}
