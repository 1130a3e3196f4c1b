package compensate

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/relabs-tech/cubesat_telemetry/internal/calib"
	"github.com/relabs-tech/cubesat_telemetry/internal/telemetry"
)

var bmp180Ref = []byte{
	0x01, 0x98, 0xFF, 0xB8, 0xC7, 0xD1, 0x7F, 0xE5, 0x7F, 0xF5, 0x5A, 0x71,
	0x18, 0x2E, 0x00, 0x04, 0x80, 0x00, 0xDD, 0xF9, 0x0B, 0x34,
}

var hts221Ref = []byte{
	40, 140, 80, 240, 0x00, 0x00,
	0xE8, 0x03, // H0_T0_OUT 1000
	0x00, 0x00,
	0x70, 0x17, // H1_T0_OUT 6000
	0x9C, 0xFF, // T0_OUT -100
	0x84, 0x03, // T1_OUT 900
}

func mustDecode(t *testing.T, l calib.Layout, data []byte) calib.Block {
	t.Helper()
	b, err := calib.Decode(l, data)
	if err != nil {
		t.Fatalf("decode %s: %v", l.Name, err)
	}
	return b
}

func near(a, b, eps float64) bool { return math.Abs(a-b) <= eps }

func TestBMP180Reference(t *testing.T) {
	cal := mustDecode(t, calib.BMP180, bmp180Ref)

	temp, err := BMP180Temperature(27898, cal)
	if err != nil {
		t.Fatal(err)
	}
	if temp != 15.0 {
		t.Errorf("temperature = %v, want 15.0", temp)
	}

	pa, err := BMP180Pressure(27898, 23843<<8, 0, cal)
	if err != nil {
		t.Fatal(err)
	}
	if pa != 69964 {
		t.Errorf("pressure = %d Pa, want 69964", pa)
	}
}

func TestCompensateBarometric(t *testing.T) {
	cal := mustDecode(t, calib.BMP180, bmp180Ref).With("OSS", 0)

	m, err := Compensate(telemetry.KindBarometric, Raw{"ut": 27898, "up": 23843 << 8}, cal)
	if err != nil {
		t.Fatal(err)
	}
	if m["temperature"] != 15.0 {
		t.Errorf("temperature = %v", m["temperature"])
	}
	if !near(m["pressure"], 699.64, 1e-9) {
		t.Errorf("pressure = %v, want 699.64", m["pressure"])
	}
	if !near(m["altitude"], 3016.659, 1e-2) {
		t.Errorf("altitude = %v, want ~3016.66", m["altitude"])
	}

	tempOnly, err := Compensate(telemetry.KindBarometric, Raw{"ut": 27898}, cal)
	if err != nil {
		t.Fatal(err)
	}
	if len(tempOnly) != 1 || tempOnly["temperature"] != 15.0 {
		t.Errorf("temperature-only frame = %v", tempOnly)
	}
}

func TestCompensateDeterministic(t *testing.T) {
	cal := mustDecode(t, calib.BMP180, bmp180Ref)
	raw := Raw{"ut": 27898, "up": 23843 << 8}

	first, err := Compensate(telemetry.KindBarometric, raw, cal)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 100; i++ {
		again, err := Compensate(telemetry.KindBarometric, raw, cal)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %v vs %v", i, again, first)
		}
	}
}

func TestBMP180DivisionByZero(t *testing.T) {
	data := append([]byte(nil), bmp180Ref...)
	data[20], data[21] = 0, 0 // MD = 0
	cal := mustDecode(t, calib.BMP180, data)

	// UT == AC6 makes X1 zero, so X1+MD == 0.
	_, err := Compensate(telemetry.KindBarometric, Raw{"ut": 23153}, cal)
	if !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("err = %v, want ErrDivisionByZero", err)
	}
}

func TestBMP180TemperatureMonotonic(t *testing.T) {
	cal := mustDecode(t, calib.BMP180, bmp180Ref)
	prev := math.Inf(-1)
	for ut := RawReading(25000); ut < 40000; ut += 250 {
		temp, err := BMP180Temperature(ut, cal)
		if err != nil {
			t.Fatalf("ut=%d: %v", ut, err)
		}
		if temp < prev {
			t.Fatalf("temperature decreased at ut=%d: %v < %v", ut, temp, prev)
		}
		prev = temp
	}
}

func TestHTS221(t *testing.T) {
	cal := mustDecode(t, calib.HTS221, hts221Ref)

	m, err := Compensate(telemetry.KindHumidity, Raw{"h_out": 3500, "t_out": 400}, cal)
	if err != nil {
		t.Fatal(err)
	}
	if !near(m["humidity"], 45, 1e-9) || !near(m["temperature"], 20, 1e-9) {
		t.Errorf("got %v, want humidity 45 temperature 20", m)
	}

	// Negative counts arrive as raw two's complement.
	m, err = Compensate(telemetry.KindHumidity, Raw{"h_out": 3500, "t_out": 0xFF9C}, cal)
	if err != nil {
		t.Fatal(err)
	}
	if !near(m["temperature"], 10, 1e-9) {
		t.Errorf("temperature at T0_OUT = %v, want 10", m["temperature"])
	}

	m, err = Compensate(telemetry.KindHumidity, Raw{"h_out": 30000, "t_out": 400}, cal)
	if err != nil {
		t.Fatal(err)
	}
	if m["humidity"] != 100 {
		t.Errorf("humidity not clamped: %v", m["humidity"])
	}
}

func TestHTS221TemperatureMSB(t *testing.T) {
	data := append([]byte(nil), hts221Ref...)
	data[5] = 0x05
	cal := mustDecode(t, calib.HTS221, data)

	_, temp, err := HTS221(3500, 400, cal)
	if err != nil {
		t.Fatal(err)
	}
	if !near(temp, 52, 1e-9) {
		t.Errorf("temperature = %v, want 52", temp)
	}
}

func TestHTS221DivisionByZero(t *testing.T) {
	data := append([]byte(nil), hts221Ref...)
	data[10], data[11] = 0xE8, 0x03 // H1_T0_OUT == H0_T0_OUT
	cal := mustDecode(t, calib.HTS221, data)

	_, err := Compensate(telemetry.KindHumidity, Raw{"h_out": 3500, "t_out": 400}, cal)
	if !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("err = %v, want ErrDivisionByZero", err)
	}
}

func TestMPU9250(t *testing.T) {
	// GYRO_CONFIG FS_SEL=3, ACCEL_CONFIG FS_SEL=2.
	cal := mustDecode(t, calib.MPU9250, []byte{0x18, 0x10})

	raw := Raw{
		"ax":   0,
		"ay":   0,
		"az":   4096,
		"temp": 0,
		"gx":   328,
		"gy":   0xFFFF - 327,
		"gz":   0,
	}
	m, err := Compensate(telemetry.KindInertial, raw, cal)
	if err != nil {
		t.Fatal(err)
	}

	checks := map[string]float64{
		"accel.x":     0,
		"accel.y":     0,
		"accel.z":     1,
		"gyro.x":      10,
		"gyro.y":      -10,
		"gyro.z":      0,
		"temperature": 21,
		"tilt.roll":   0,
		"tilt.pitch":  0,
	}
	for k, want := range checks {
		if !near(m[k], want, 1e-9) {
			t.Errorf("%s = %v, want %v", k, m[k], want)
		}
	}
}

func TestMPU9250AccelScale(t *testing.T) {
	for fs, lsb := range []float64{16384, 8192, 4096, 2048} {
		g, err := MPU9250Accel(int32(lsb), int32(fs))
		if err != nil {
			t.Fatal(err)
		}
		if g != 1 {
			t.Errorf("fs=%d: %v g, want 1", fs, g)
		}
	}
	if _, err := MPU9250Accel(1, 4); err == nil {
		t.Error("expected error for fs=4")
	}
}

func TestSX1278(t *testing.T) {
	lf := mustDecode(t, calib.SX1278, []byte{0x8D})

	m, err := Compensate(telemetry.KindRadio, Raw{"snr": 0xF8, "pkt_rssi": 100, "rssi": 90}, lf)
	if err != nil {
		t.Fatal(err)
	}
	if m["snr"] != -2 || m["packet_rssi"] != -66 || m["rssi"] != -74 {
		t.Errorf("low-frequency port = %v", m)
	}

	hf := mustDecode(t, calib.SX1278, []byte{0x85})
	m, err = Compensate(telemetry.KindRadio, Raw{"snr": 0x28, "pkt_rssi": 100, "rssi": 90}, hf)
	if err != nil {
		t.Fatal(err)
	}
	if m["snr"] != 10 || m["packet_rssi"] != -57 || m["rssi"] != -67 {
		t.Errorf("high-frequency port = %v", m)
	}
}

func TestCompensateErrors(t *testing.T) {
	cal := mustDecode(t, calib.BMP180, bmp180Ref)

	if _, err := Compensate(telemetry.KindPosition, Raw{}, cal); !errors.Is(err, ErrUnsupportedKind) {
		t.Errorf("position: err = %v, want ErrUnsupportedKind", err)
	}
	if _, err := Compensate(telemetry.KindBarometric, Raw{"up": 1}, cal); !errors.Is(err, ErrMissingChannel) {
		t.Errorf("missing ut: err = %v, want ErrMissingChannel", err)
	}
	// Wrong block for the kind.
	if _, err := Compensate(telemetry.KindHumidity, Raw{"h_out": 1, "t_out": 1}, cal); !errors.Is(err, calib.ErrMalformedCalibration) {
		t.Errorf("mismatched block: err = %v, want ErrMalformedCalibration", err)
	}
}

func TestRawFromBytes(t *testing.T) {
	if got := RawFromBytes(0x6C, 0xFA); got != 27898 {
		t.Errorf("RawFromBytes = %d", got)
	}
	if got := RawFromBytes(0x5D, 0x23, 0x00); got != 23843<<8 {
		t.Errorf("RawFromBytes 3 = %d", got)
	}
	if got := RawFromBytesLE(0xAC, 0x0D); got != 3500 {
		t.Errorf("RawFromBytesLE = %d", got)
	}
	if got := RawReading(0xFF9C).Signed16(); got != -100 {
		t.Errorf("Signed16 = %d", got)
	}
}
