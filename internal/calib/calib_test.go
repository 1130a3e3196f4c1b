package calib

import (
	"errors"
	"testing"
)

// Datasheet example coefficients (BMP180 rev 2.5, section 3.5).
var bmp180Ref = []byte{
	0x01, 0x98, // AC1 408
	0xFF, 0xB8, // AC2 -72
	0xC7, 0xD1, // AC3 -14383
	0x7F, 0xE5, // AC4 32741
	0x7F, 0xF5, // AC5 32757
	0x5A, 0x71, // AC6 23153
	0x18, 0x2E, // B1 6190
	0x00, 0x04, // B2 4
	0x80, 0x00, // MB -32768
	0xDD, 0xF9, // MC -8711
	0x0B, 0x34, // MD 2868
}

func TestToSigned16(t *testing.T) {
	for v := int32(0); v <= 0xFFFF; v++ {
		got := ToSigned16(v)
		want := v
		if v > 32767 {
			want = v - 65536
		}
		if got != want {
			t.Fatalf("ToSigned16(%d) = %d, want %d", v, got, want)
		}
		if got < -32768 || got > 32767 {
			t.Fatalf("ToSigned16(%d) = %d out of int16 range", v, got)
		}
		if again := ToSigned16(got); again != got {
			t.Fatalf("ToSigned16 not idempotent at %d: %d then %d", v, got, again)
		}
	}
}

func TestDecodeBMP180Reference(t *testing.T) {
	b, err := Decode(BMP180, bmp180Ref)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	want := map[string]int32{
		"AC1": 408, "AC2": -72, "AC3": -14383, "AC4": 32741, "AC5": 32757, "AC6": 23153,
		"B1": 6190, "B2": 4, "MB": -32768, "MC": -8711, "MD": 2868,
	}
	for name, w := range want {
		got, ok := b.Get(name)
		if !ok {
			t.Fatalf("missing %s", name)
		}
		if got != w {
			t.Errorf("%s = %d, want %d", name, got, w)
		}
	}

	if mc, _ := b.Get("MC"); mc >= 0 {
		t.Errorf("MC should decode negative, got %d", mc)
	}

	names := b.Names()
	if len(names) != 11 || names[0] != "AC1" || names[10] != "MD" {
		t.Errorf("names not in layout order: %v", names)
	}
}

func TestDecodeDeterministic(t *testing.T) {
	a, err := Decode(BMP180, bmp180Ref)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Decode(BMP180, bmp180Ref)
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range a.Names() {
		va, _ := a.Get(n)
		vb, _ := b.Get(n)
		if va != vb {
			t.Errorf("%s differs between decodes: %d vs %d", n, va, vb)
		}
	}
}

func TestDecodeWrongLength(t *testing.T) {
	for _, n := range []int{0, 1, 21, 23} {
		_, err := Decode(BMP180, make([]byte, n))
		if !errors.Is(err, ErrMalformedCalibration) {
			t.Errorf("len %d: err = %v, want ErrMalformedCalibration", n, err)
		}
	}
}

func TestDecodeTotalOverAllByteValues(t *testing.T) {
	buf := make([]byte, BMP180.Size)
	for v := 0; v < 256; v++ {
		for i := range buf {
			buf[i] = byte(v)
		}
		if _, err := Decode(BMP180, buf); err != nil {
			t.Fatalf("byte 0x%02X: %v", v, err)
		}
	}
}

func TestDecodeHTS221Bitfields(t *testing.T) {
	data := []byte{
		0x28, 0x8C, 0x50, 0xF0, // H0 20%, H1 70%, T0 80/8, T1 240/8
		0x00,
		0x05,       // T0 msb 01, T1 msb 01
		0xE8, 0x03, // H0_T0_OUT 1000
		0x00, 0x00,
		0x70, 0x17, // H1_T0_OUT 6000
		0x9C, 0xFF, // T0_OUT -100
		0x84, 0x03, // T1_OUT 900
	}
	b, err := Decode(HTS221, data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	tests := []struct {
		name string
		want int32
	}{
		{"H0_rH_x2", 40},
		{"H1_rH_x2", 140},
		{"T0_degC_x8", 80},
		{"T1_degC_x8", 240},
		{"T0_msb", 1},
		{"T1_msb", 1},
		{"H0_T0_OUT", 1000},
		{"H1_T0_OUT", 6000},
		{"T0_OUT", -100},
		{"T1_OUT", 900},
	}
	for _, tt := range tests {
		if got, _ := b.Get(tt.name); got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestDecodeBitsFromRegister(t *testing.T) {
	b, err := Decode(MPU9250, []byte{0x18, 0x08})
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := b.Get("GYRO_FS_SEL"); v != 3 {
		t.Errorf("GYRO_FS_SEL = %d, want 3", v)
	}
	if v, _ := b.Get("ACCEL_FS_SEL"); v != 1 {
		t.Errorf("ACCEL_FS_SEL = %d, want 1", v)
	}
}

func TestBlockWithAndRequire(t *testing.T) {
	b, err := Decode(SX1278, []byte{0x8D})
	if err != nil {
		t.Fatal(err)
	}
	b2 := b.With("OSS", 3)
	if _, ok := b.Get("OSS"); ok {
		t.Fatal("With mutated the original block")
	}
	vals, err := b2.Require("LongRangeMode", "LowFrequencyModeOn", "OSS")
	if err != nil {
		t.Fatalf("Require: %v", err)
	}
	if vals[0] != 1 || vals[1] != 1 || vals[2] != 3 {
		t.Errorf("Require = %v, want [1 1 3]", vals)
	}
	if _, err := b2.Require("AC5"); !errors.Is(err, ErrMalformedCalibration) {
		t.Errorf("Require missing: err = %v", err)
	}
}
