package app

import (
	"testing"
	"time"

	"github.com/relabs-tech/cubesat_telemetry/internal/telemetry"
)

func TestFormatReading(t *testing.T) {
	r := telemetry.Reading{
		Sensor: "bmp180",
		Kind:   telemetry.KindBarometric,
		Time:   time.Date(2026, 3, 1, 12, 0, 0, 250_000_000, time.UTC),
		Values: telemetry.Measurement{"temperature": 15, "pressure": 699.64, "altitude": 3016.659},
	}
	want := "[BMP180] 12:00:00.250 altitude=3016.66 pressure=699.64 temperature=15.00"
	if got := formatReading(r); got != want {
		t.Errorf("formatReading =\n%q\nwant\n%q", got, want)
	}

	r.Sensor = "magnetometer"
	r.Values = telemetry.Measurement{"x": 1}
	if got := formatReading(r); got != "[MAGNET] 12:00:00.250 x=1.00" {
		t.Errorf("long name = %q", got)
	}
}
