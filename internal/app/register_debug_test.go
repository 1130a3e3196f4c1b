package app

import (
	"testing"
	"time"

	"github.com/relabs-tech/cubesat_telemetry/internal/bus/sim"
)

func newDebugger(t *testing.T, allowWrites bool) (*RegisterDebugger, *sim.MPU9250) {
	t.Helper()
	b := sim.NewBus()
	dev := sim.NewMPU9250()
	b.Attach(0x68, dev)
	d := NewRegisterDebugger(map[string]RegisterTarget{
		"imu": {Model: "mpu9250", Addr: 0x68, Bus: b},
	}, allowWrites, quietLogger())
	d.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return d, dev
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		in      string
		want    byte
		wantErr bool
	}{
		{"0x1B", 0x1B, false},
		{"0xff", 0xFF, false},
		{" 0X75 ", 0x75, false},
		{"27", 27, false},
		{"0x100", 0, true},
		{"zz", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := parseHex(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseHex(%q) = 0x%02X, %v", tt.in, got, err)
		}
	}
}

func TestRegisterListAndMap(t *testing.T) {
	d, _ := newDebugger(t, false)

	resp := d.Handle(RegisterCommand{Action: "list"})
	if resp.Type != "sensors" || len(resp.Sensors) != 1 || resp.Sensors[0] != "imu" {
		t.Errorf("list = %+v", resp)
	}

	resp = d.Handle(RegisterCommand{Action: "get_map", Sensor: "imu"})
	if resp.Type != "register_map" || resp.Model != "mpu9250" || len(resp.RegisterMap) == 0 {
		t.Errorf("get_map = %+v", resp)
	}
}

func TestRegisterRead(t *testing.T) {
	d, _ := newDebugger(t, false)

	resp := d.Handle(RegisterCommand{Action: "read", Sensor: "imu", Addr: "0x75"})
	if resp.Type != "register_data" || resp.Value != "0x71" || resp.Address != "0x75" {
		t.Errorf("read WHO_AM_I = %+v", resp)
	}
	if resp.Timestamp != "2026-03-01T12:00:00Z" {
		t.Errorf("timestamp = %q", resp.Timestamp)
	}

	resp = d.Handle(RegisterCommand{Action: "read_all", Sensor: "imu"})
	if resp.Type != "register_data" || resp.Registers["0x75"] != "0x71" {
		t.Errorf("read_all = %+v", resp)
	}
}

func TestRegisterWriteRules(t *testing.T) {
	d, dev := newDebugger(t, false)
	if resp := d.Handle(RegisterCommand{Action: "write", Sensor: "imu", Addr: "0x1B", Value: "0x18"}); resp.Type != "error" {
		t.Errorf("write with writes disabled = %+v", resp)
	}
	if dev.Peek(0x1B) != 0 {
		t.Fatal("disabled write reached the device")
	}

	d, dev = newDebugger(t, true)
	resp := d.Handle(RegisterCommand{Action: "write", Sensor: "imu", Addr: "0x1B", Value: "0x18"})
	if resp.Type != "register_data" || resp.Message != "write successful" {
		t.Fatalf("write GYRO_CONFIG = %+v", resp)
	}
	if dev.Peek(0x1B) != 0x18 {
		t.Errorf("GYRO_CONFIG = 0x%02X, want 0x18", dev.Peek(0x1B))
	}

	// Read-only and undocumented registers are refused.
	for _, addr := range []string{"0x75", "0x02"} {
		if resp := d.Handle(RegisterCommand{Action: "write", Sensor: "imu", Addr: addr, Value: "0x00"}); resp.Type != "error" {
			t.Errorf("write %s = %+v", addr, resp)
		}
	}
}

func TestRegisterExport(t *testing.T) {
	d, _ := newDebugger(t, false)
	resp := d.Handle(RegisterCommand{Action: "export_config", Sensor: "imu"})
	if resp.Type != "export_config" || resp.Config == nil {
		t.Fatalf("export = %+v", resp)
	}
	if resp.Filename != "imu_20260301_120000_registers.json" {
		t.Errorf("filename = %q", resp.Filename)
	}
	if resp.Config.Model != "mpu9250" || resp.Config.Registers["0x75"] != "0x71" {
		t.Errorf("config = %+v", resp.Config)
	}
}

func TestRegisterErrors(t *testing.T) {
	d, _ := newDebugger(t, true)
	tests := []RegisterCommand{
		{Action: "read", Sensor: "nope", Addr: "0x75"},
		{Action: "read", Sensor: "imu", Addr: "bogus"},
		{Action: "write", Sensor: "imu", Addr: "0x1B", Value: "0x1FF"},
		{Action: "reboot", Sensor: "imu"},
	}
	for _, cmd := range tests {
		if resp := d.Handle(cmd); resp.Type != "error" || resp.Message == "" {
			t.Errorf("%+v = %+v", cmd, resp)
		}
	}
}
