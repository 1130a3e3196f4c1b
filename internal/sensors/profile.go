// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors describes how each supported device is identified,
// configured, calibrated and sampled over a register bus.
package sensors

import (
	"fmt"
	"sort"
	"time"

	"github.com/relabs-tech/cubesat_telemetry/internal/bus"
	"github.com/relabs-tech/cubesat_telemetry/internal/calib"
	"github.com/relabs-tech/cubesat_telemetry/internal/compensate"
	"github.com/relabs-tech/cubesat_telemetry/internal/telemetry"
)

// RegWrite is a single register write.
type RegWrite struct {
	Reg   byte
	Value byte
}

// Channel is one raw value inside a step's read block.
type Channel struct {
	Name         string
	Offset       int
	Width        int
	LittleEndian bool
}

// Step is one trigger/settle/read exchange. A poll cycle runs every step of
// the profile in order.
type Step struct {
	Trigger  *RegWrite     // nil for free-running devices
	Settle   time.Duration // wait between trigger and read
	Register byte
	Length   int
	Channels []Channel
}

// Extract slices the channels out of a block read for this step.
func (s Step) Extract(data []byte, into compensate.Raw) error {
	if len(data) != s.Length {
		return fmt.Errorf("step 0x%02X: got %d bytes, want %d", s.Register, len(data), s.Length)
	}
	for _, ch := range s.Channels {
		if ch.Offset+ch.Width > len(data) {
			return fmt.Errorf("channel %s: bytes %d..%d outside %d-byte read", ch.Name, ch.Offset, ch.Offset+ch.Width, len(data))
		}
		b := data[ch.Offset : ch.Offset+ch.Width]
		if ch.LittleEndian {
			into[ch.Name] = compensate.RawFromBytesLE(b...)
		} else {
			into[ch.Name] = compensate.RawFromBytes(b...)
		}
	}
	return nil
}

// Profile is everything the poller needs to know about a device model.
type Profile struct {
	Model       string
	Kind        telemetry.Kind
	DefaultAddr uint16
	// SPI is the register direction convention on an SPI port; nil for
	// devices wired only over I2C.
	SPI *bus.SPIConvention

	IDRegister byte
	ExpectedID byte

	Init []RegWrite

	CalibrationRegister byte
	Calibration         calib.Layout
	// Constants are session settings appended to the decoded block.
	Constants map[string]int32

	Steps           []Step
	DefaultInterval time.Duration
}

// Options are the per-sensor settings that change a profile.
type Options struct {
	Oversampling int    // bmp180, 0..3
	AccelRange   int    // mpu9250 ACCEL_FS_SEL, 0..3
	GyroRange    int    // mpu9250 GYRO_FS_SEL, 0..3
	Band         string // sx1278 "lf" (433 MHz) or "hf"
}

type builder func(Options) (Profile, error)

var registry = map[string]builder{
	"bmp180":  bmp180,
	"hts221":  hts221,
	"mpu9250": mpu9250,
	"sx1278":  sx1278,
}

// Lookup returns the profile for model with opts applied.
func Lookup(model string, opts Options) (Profile, error) {
	b, ok := registry[model]
	if !ok {
		return Profile{}, fmt.Errorf("unknown sensor model %q", model)
	}
	return b(opts)
}

// Models lists the supported models.
func Models() []string {
	out := make([]string, 0, len(registry))
	for m := range registry {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Conversion times for oversampling 0..3, rounded up to whole milliseconds.
var bmp180PressureSettle = [4]time.Duration{
	5 * time.Millisecond,
	8 * time.Millisecond,
	14 * time.Millisecond,
	26 * time.Millisecond,
}

func bmp180(o Options) (Profile, error) {
	if o.Oversampling < 0 || o.Oversampling > 3 {
		return Profile{}, fmt.Errorf("bmp180: oversampling %d out of range 0..3", o.Oversampling)
	}
	oss := byte(o.Oversampling)
	return Profile{
		Model:               "bmp180",
		Kind:                telemetry.KindBarometric,
		DefaultAddr:         0x77,
		IDRegister:          0xD0,
		ExpectedID:          0x55,
		CalibrationRegister: 0xAA,
		Calibration:         calib.BMP180,
		Constants:           map[string]int32{"OSS": int32(oss)},
		Steps: []Step{
			{
				Trigger:  &RegWrite{Reg: 0xF4, Value: 0x2E},
				Settle:   5 * time.Millisecond,
				Register: 0xF6,
				Length:   2,
				Channels: []Channel{{Name: "ut", Offset: 0, Width: 2}},
			},
			{
				Trigger:  &RegWrite{Reg: 0xF4, Value: 0x34 | oss<<6},
				Settle:   bmp180PressureSettle[oss],
				Register: 0xF6,
				Length:   3,
				Channels: []Channel{{Name: "up", Offset: 0, Width: 3}},
			},
		},
		DefaultInterval: time.Second,
	}, nil
}

// hts221 sets bit 7 of the sub-address to auto-increment across
// multi-byte reads.
func hts221(Options) (Profile, error) {
	return Profile{
		Model:               "hts221",
		Kind:                telemetry.KindHumidity,
		DefaultAddr:         0x5F,
		IDRegister:          0x0F,
		ExpectedID:          0xBC,
		Init:                []RegWrite{{Reg: 0x20, Value: 0x85}}, // PD, BDU, 1 Hz
		CalibrationRegister: 0x30 | 0x80,
		Calibration:         calib.HTS221,
		Steps: []Step{
			{
				Register: 0x28 | 0x80,
				Length:   4,
				Channels: []Channel{
					{Name: "h_out", Offset: 0, Width: 2, LittleEndian: true},
					{Name: "t_out", Offset: 2, Width: 2, LittleEndian: true},
				},
			},
		},
		DefaultInterval: 2 * time.Second,
	}, nil
}

func mpu9250(o Options) (Profile, error) {
	if o.AccelRange < 0 || o.AccelRange > 3 {
		return Profile{}, fmt.Errorf("mpu9250: accel range %d out of range 0..3", o.AccelRange)
	}
	if o.GyroRange < 0 || o.GyroRange > 3 {
		return Profile{}, fmt.Errorf("mpu9250: gyro range %d out of range 0..3", o.GyroRange)
	}
	return Profile{
		Model:       "mpu9250",
		Kind:        telemetry.KindInertial,
		DefaultAddr: 0x68,
		SPI:         spiConvention(bus.ReadHigh),
		IDRegister:  0x75,
		ExpectedID:  0x71,
		Init: []RegWrite{
			{Reg: 0x6B, Value: 0x01}, // PWR_MGMT_1: wake, PLL clock
			{Reg: 0x1B, Value: byte(o.GyroRange) << 3},
			{Reg: 0x1C, Value: byte(o.AccelRange) << 3},
		},
		CalibrationRegister: 0x1B,
		Calibration:         calib.MPU9250,
		Steps: []Step{
			{
				Register: 0x3B,
				Length:   14,
				Channels: []Channel{
					{Name: "ax", Offset: 0, Width: 2},
					{Name: "ay", Offset: 2, Width: 2},
					{Name: "az", Offset: 4, Width: 2},
					{Name: "temp", Offset: 6, Width: 2},
					{Name: "gx", Offset: 8, Width: 2},
					{Name: "gy", Offset: 10, Width: 2},
					{Name: "gz", Offset: 12, Width: 2},
				},
			},
		},
		DefaultInterval: 500 * time.Millisecond,
	}, nil
}

func sx1278(o Options) (Profile, error) {
	var lf byte
	switch o.Band {
	case "", "lf":
		lf = 0x08
	case "hf":
	default:
		return Profile{}, fmt.Errorf("sx1278: unknown band %q", o.Band)
	}
	return Profile{
		Model:       "sx1278",
		Kind:        telemetry.KindRadio,
		IDRegister:  0x42,
		ExpectedID:  0x12,
		DefaultAddr: 0,
		SPI:         spiConvention(bus.WriteHigh),
		Init: []RegWrite{
			{Reg: 0x01, Value: 0x80 | lf}, // LoRa mode can only be set in sleep
			{Reg: 0x01, Value: 0x85 | lf}, // RX continuous
		},
		CalibrationRegister: 0x01,
		Calibration:         calib.SX1278,
		Steps: []Step{
			{
				Register: 0x19,
				Length:   3,
				Channels: []Channel{
					{Name: "snr", Offset: 0, Width: 1},
					{Name: "pkt_rssi", Offset: 1, Width: 1},
					{Name: "rssi", Offset: 2, Width: 1},
				},
			},
		},
		DefaultInterval: time.Second,
	}, nil
}

func spiConvention(c bus.SPIConvention) *bus.SPIConvention { return &c }
