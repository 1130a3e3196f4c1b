// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sim

import "encoding/binary"

// BMP180Calibration is the datasheet example E2PROM content.
var BMP180Calibration = []byte{
	0x01, 0x98, 0xFF, 0xB8, 0xC7, 0xD1, 0x7F, 0xE5, 0x7F, 0xF5, 0x5A, 0x71,
	0x18, 0x2E, 0x00, 0x04, 0x80, 0x00, 0xDD, 0xF9, 0x0B, 0x34,
}

// HTS221Calibration maps H_OUT 1000..6000 to 20..70 %rH and
// T_OUT -100..900 to 10..30 °C.
var HTS221Calibration = []byte{
	40, 140, 80, 240, 0x00, 0x00,
	0xE8, 0x03, 0x00, 0x00, 0x70, 0x17,
	0x9C, 0xFF, 0x84, 0x03,
}

// BMP180 answers the chip-id and E2PROM reads and latches UT or UP into
// the output registers when a conversion is started through 0xF4.
type BMP180 struct {
	*Registers
	ut uint16
	up uint32
}

// NewBMP180 returns a BMP180 with the given calibration bytes and the
// datasheet example conversion results.
func NewBMP180(calibration []byte) *BMP180 {
	d := &BMP180{Registers: &Registers{}, ut: 27898, up: 23843}
	d.Load(0xD0, 0x55)
	d.Load(0xAA, calibration...)
	d.OnWrite = d.control
	return d
}

// SetRaw sets the next conversion results. up is the oversampled
// 16..19-bit value before alignment.
func (d *BMP180) SetRaw(ut uint16, up uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ut, d.up = ut, up
}

func (d *BMP180) control(r *Registers, reg, value byte) {
	if reg != 0xF4 {
		return
	}
	d.mu.Lock()
	ut, up := d.ut, d.up
	d.mu.Unlock()

	switch {
	case value == 0x2E:
		r.Load(0xF6, byte(ut>>8), byte(ut))
	case value&0x3F == 0x34:
		oss := value >> 6
		v := up << (8 - oss)
		r.Load(0xF6, byte(v>>16), byte(v>>8), byte(v))
	}
}

// HTS221 exposes identity, calibration and little-endian output registers.
type HTS221 struct {
	*Registers
}

// NewHTS221 returns an HTS221 with the given 16 calibration bytes.
func NewHTS221(calibration []byte) *HTS221 {
	d := &HTS221{Registers: &Registers{AutoIncrement: 0x80}}
	d.Load(0x0F, 0xBC)
	d.Load(0x30, calibration...)
	d.SetRaw(3500, 400)
	return d
}

// SetRaw sets H_OUT and T_OUT.
func (d *HTS221) SetRaw(hOut, tOut int16) {
	var b [4]byte
	binary.LittleEndian.PutUint16(b[0:], uint16(hOut))
	binary.LittleEndian.PutUint16(b[2:], uint16(tOut))
	d.Load(0x28, b[:]...)
}

// MPU9250 exposes WHO_AM_I, the range configuration and the 14-byte
// accel/temp/gyro output block.
type MPU9250 struct {
	*Registers
}

// NewMPU9250 returns a level, stationary MPU9250.
func NewMPU9250() *MPU9250 {
	d := &MPU9250{Registers: &Registers{}}
	d.Load(0x75, 0x71)
	d.SetRaw([3]int16{0, 0, 16384}, 0, [3]int16{})
	return d
}

// SetRaw sets accelerometer, temperature and gyroscope counts.
func (d *MPU9250) SetRaw(accel [3]int16, temp int16, gyro [3]int16) {
	var b [14]byte
	for i, v := range accel {
		binary.BigEndian.PutUint16(b[2*i:], uint16(v))
	}
	binary.BigEndian.PutUint16(b[6:], uint16(temp))
	for i, v := range gyro {
		binary.BigEndian.PutUint16(b[8+2*i:], uint16(v))
	}
	d.Load(0x3B, b[:]...)
}

// SX1278 exposes RegVersion, RegOpMode and the packet status registers.
type SX1278 struct {
	*Registers
}

// NewSX1278 returns a radio in sleep mode with a weak received packet.
func NewSX1278() *SX1278 {
	d := &SX1278{Registers: &Registers{}}
	d.Load(0x42, 0x12)
	d.Load(0x01, 0x08)
	d.SetSignal(-8, 100, 90)
	return d
}

// SetSignal sets RegPktSnrValue (quarter dB), RegPktRssiValue and RegRssiValue.
func (d *SX1278) SetSignal(snrQuarterDB int8, pktRSSI, rssi byte) {
	d.Load(0x19, byte(snrQuarterDB), pktRSSI, rssi)
}
