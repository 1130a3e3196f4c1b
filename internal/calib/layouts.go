// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calib

// BMP180 is the 22-byte E2PROM block starting at 0xAA.
var BMP180 = Layout{
	Name: "bmp180",
	Size: 22,
	Fields: []Field{
		{Name: "AC1", Offset: 0, Enc: S16BE},
		{Name: "AC2", Offset: 2, Enc: S16BE},
		{Name: "AC3", Offset: 4, Enc: S16BE},
		{Name: "AC4", Offset: 6, Enc: U16BE},
		{Name: "AC5", Offset: 8, Enc: U16BE},
		{Name: "AC6", Offset: 10, Enc: U16BE},
		{Name: "B1", Offset: 12, Enc: S16BE},
		{Name: "B2", Offset: 14, Enc: S16BE},
		{Name: "MB", Offset: 16, Enc: S16BE},
		{Name: "MC", Offset: 18, Enc: S16BE},
		{Name: "MD", Offset: 20, Enc: S16BE},
	},
}

// HTS221 is the 16-byte block 0x30..0x3F. Output points are little-endian;
// the two MSBs of the temperature set points live in 0x35.
var HTS221 = Layout{
	Name: "hts221",
	Size: 16,
	Fields: []Field{
		{Name: "H0_rH_x2", Offset: 0x00, Enc: U8},
		{Name: "H1_rH_x2", Offset: 0x01, Enc: U8},
		{Name: "T0_degC_x8", Offset: 0x02, Enc: U8},
		{Name: "T1_degC_x8", Offset: 0x03, Enc: U8},
		{Name: "T0_msb", Offset: 0x05, Enc: Bits, Shift: 0, Width: 2},
		{Name: "T1_msb", Offset: 0x05, Enc: Bits, Shift: 2, Width: 2},
		{Name: "H0_T0_OUT", Offset: 0x06, Enc: S16LE},
		{Name: "H1_T0_OUT", Offset: 0x0A, Enc: S16LE},
		{Name: "T0_OUT", Offset: 0x0C, Enc: S16LE},
		{Name: "T1_OUT", Offset: 0x0E, Enc: S16LE},
	},
}

// MPU9250 covers GYRO_CONFIG (0x1B) and ACCEL_CONFIG (0x1C). The full-scale
// selections decide the LSB sensitivity used by compensation.
var MPU9250 = Layout{
	Name: "mpu9250",
	Size: 2,
	Fields: []Field{
		{Name: "GYRO_FS_SEL", Offset: 0, Enc: Bits, Shift: 3, Width: 2},
		{Name: "ACCEL_FS_SEL", Offset: 1, Enc: Bits, Shift: 3, Width: 2},
	},
}

// SX1278 is RegOpMode (0x01); the frequency port decides the RSSI offset.
var SX1278 = Layout{
	Name: "sx1278",
	Size: 1,
	Fields: []Field{
		{Name: "LongRangeMode", Offset: 0, Enc: Bits, Shift: 7, Width: 1},
		{Name: "LowFrequencyModeOn", Offset: 0, Enc: Bits, Shift: 3, Width: 1},
	},
}
