package sim

import (
	"bytes"
	"errors"
	"testing"

	"github.com/relabs-tech/cubesat_telemetry/internal/bus"
)

func TestBMP180Conversions(t *testing.T) {
	b := NewBus()
	b.Attach(0x77, NewBMP180(BMP180Calibration))

	id, err := b.ReadRegister(0x77, 0xD0)
	if err != nil || id != 0x55 {
		t.Fatalf("chip id = 0x%02X, %v", id, err)
	}
	cal, err := b.ReadBlock(0x77, 0xAA, 22)
	if err != nil || !bytes.Equal(cal, BMP180Calibration) {
		t.Fatalf("calibration = %x, %v", cal, err)
	}

	if err := b.WriteRegister(0x77, 0xF4, 0x2E); err != nil {
		t.Fatal(err)
	}
	ut, _ := b.ReadBlock(0x77, 0xF6, 2)
	if !bytes.Equal(ut, []byte{0x6C, 0xFA}) {
		t.Errorf("UT bytes = %x", ut)
	}

	if err := b.WriteRegister(0x77, 0xF4, 0x34|3<<6); err != nil {
		t.Fatal(err)
	}
	up, _ := b.ReadBlock(0x77, 0xF6, 3)
	v := uint32(up[0])<<16 | uint32(up[1])<<8 | uint32(up[2])
	if v>>5 != 23843 {
		t.Errorf("UP oss=3 = %d, want 23843 after >>5", v>>5)
	}
}

func TestHTS221AutoIncrement(t *testing.T) {
	b := NewBus()
	b.Attach(0x5F, NewHTS221(HTS221Calibration))

	cal, err := b.ReadBlock(0x5F, 0x30|0x80, 16)
	if err != nil || !bytes.Equal(cal, HTS221Calibration) {
		t.Fatalf("calibration = %x, %v", cal, err)
	}
	out, _ := b.ReadBlock(0x5F, 0x28|0x80, 4)
	if !bytes.Equal(out, []byte{0xAC, 0x0D, 0x90, 0x01}) {
		t.Errorf("outputs = %x", out)
	}
}

func TestFaultInjection(t *testing.T) {
	b := NewBus()
	b.Attach(0x68, NewMPU9250())
	b.Attach(0x77, NewBMP180(BMP180Calibration))

	b.FailNext(0x68, 2)
	for i := 0; i < 2; i++ {
		if _, err := b.ReadRegister(0x68, 0x75); !bus.IsBusError(err) || !errors.Is(err, ErrInjected) {
			t.Fatalf("attempt %d: err = %v", i, err)
		}
	}
	if id, err := b.ReadRegister(0x68, 0x75); err != nil || id != 0x71 {
		t.Fatalf("after faults: 0x%02X, %v", id, err)
	}

	b.SetDown(0x68, true)
	if _, err := b.ReadRegister(0x68, 0x75); !errors.Is(err, ErrInjected) {
		t.Errorf("down device answered: %v", err)
	}
	if _, err := b.ReadRegister(0x77, 0xD0); err != nil {
		t.Errorf("other device affected: %v", err)
	}

	if _, err := b.ReadRegister(0x10, 0x00); !errors.Is(err, ErrNoDevice) {
		t.Errorf("empty address: %v", err)
	}
	if b.Ops() != 6 {
		t.Errorf("ops = %d, want 6", b.Ops())
	}
}
