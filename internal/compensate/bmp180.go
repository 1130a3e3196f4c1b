// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package compensate

import (
	"fmt"
	"math"

	"github.com/relabs-tech/cubesat_telemetry/internal/calib"
	"github.com/relabs-tech/cubesat_telemetry/internal/telemetry"
)

// SeaLevelHPa is the reference pressure for barometric altitude.
const SeaLevelHPa = 1013.25

// BMP180Temperature returns degrees Celsius with 0.1 °C resolution.
//
//	X1 = ((UT - AC6) * AC5) >> 15
//	X2 = (MC << 11) / (X1 + MD)
//	B5 = X1 + X2
//	T  = ((B5 + 8) >> 4) / 10
func BMP180Temperature(ut RawReading, cal calib.Block) (float64, error) {
	b5, err := bmp180B5(ut, cal)
	if err != nil {
		return 0, err
	}
	return float64((b5+8)>>4) / 10.0, nil
}

// bmp180B5 uses 64-bit intermediates so the product (UT-AC6)*AC5 cannot
// wrap. Shifts are arithmetic; division truncates toward zero.
func bmp180B5(ut RawReading, cal calib.Block) (int64, error) {
	c, err := cal.Require("AC5", "AC6", "MC", "MD")
	if err != nil {
		return 0, err
	}
	ac5, ac6, mc, md := int64(c[0]), int64(c[1]), int64(c[2]), int64(c[3])

	x1 := ((int64(ut) - ac6) * ac5) >> 15
	if x1+md == 0 {
		return 0, fmt.Errorf("bmp180 temperature: X1+MD == 0 (UT=%d): %w", ut, ErrDivisionByZero)
	}
	x2 := (mc << 11) / (x1 + md)
	return x1 + x2, nil
}

// BMP180Pressure returns pressure in Pa. up is the 24-bit value read from
// 0xF6..0xF8; it is shifted down by 8-oss here.
func BMP180Pressure(ut, up RawReading, oss int, cal calib.Block) (int64, error) {
	if oss < 0 || oss > 3 {
		return 0, fmt.Errorf("bmp180 pressure: oversampling %d out of range", oss)
	}
	b5, err := bmp180B5(ut, cal)
	if err != nil {
		return 0, err
	}
	c, err := cal.Require("AC1", "AC2", "AC3", "AC4", "B1", "B2")
	if err != nil {
		return 0, err
	}
	ac1, ac2, ac3, b1, b2 := int64(c[0]), int64(c[1]), int64(c[2]), int64(c[4]), int64(c[5])
	ac4 := uint32(c[3])
	upv := int64(up) >> (8 - oss)

	b6 := b5 - 4000
	x1 := (b2 * ((b6 * b6) >> 12)) >> 11
	x2 := (ac2 * b6) >> 11
	x3 := x1 + x2
	b3 := (((ac1*4 + x3) << oss) + 2) / 4

	x1 = (ac3 * b6) >> 13
	x2 = (b1 * ((b6 * b6) >> 12)) >> 16
	x3 = ((x1 + x2) + 2) >> 2
	b4 := ac4 * uint32(x3+32768) >> 15
	if b4 == 0 {
		return 0, fmt.Errorf("bmp180 pressure: B4 == 0: %w", ErrDivisionByZero)
	}
	b7 := uint32(upv-b3) * uint32(50000>>oss)

	var p int64
	if b7 < 0x80000000 {
		p = int64(b7 * 2 / b4)
	} else {
		p = int64(b7 / b4 * 2)
	}

	x1 = (p >> 8) * (p >> 8)
	x1 = (x1 * 3038) >> 16
	x2 = (-7357 * p) >> 16
	return p + ((x1 + x2 + 3791) >> 4), nil
}

// Altitude returns the barometric altitude in metres for a pressure in hPa.
func Altitude(pressureHPa float64) float64 {
	return 44330.0 * (1 - math.Pow(pressureHPa/SeaLevelHPa, 1/5.255))
}

// barometric yields temperature always and pressure/altitude when the frame
// carries an "up" channel. The oversampling setting travels in the block
// as OSS.
func barometric(raw Raw, cal calib.Block) (telemetry.Measurement, error) {
	ch, err := raw.channels("ut")
	if err != nil {
		return nil, err
	}
	temp, err := BMP180Temperature(ch[0], cal)
	if err != nil {
		return nil, err
	}
	m := telemetry.Measurement{"temperature": temp}

	up, ok := raw["up"]
	if !ok {
		return m, nil
	}
	oss, _ := cal.Get("OSS")
	pa, err := BMP180Pressure(ch[0], up, int(oss), cal)
	if err != nil {
		return nil, err
	}
	hpa := float64(pa) / 100.0
	m["pressure"] = hpa
	m["altitude"] = Altitude(hpa)
	return m, nil
}
