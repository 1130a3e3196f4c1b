package app

import (
	"image"
	"strings"
	"testing"
	"time"

	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/cubesat_telemetry/internal/telemetry"
)

func TestSummaryLine(t *testing.T) {
	tests := []struct {
		name string
		m    telemetry.Measurement
		want string
	}{
		{"bmp180", telemetry.Measurement{"temperature": 15, "pressure": 699.64, "altitude": 3016}, "bmp1 15.0C 700hPa"},
		{"hts221", telemetry.Measurement{"temperature": 20, "humidity": 45}, "hts2 20.0C 45%"},
		{"lora", telemetry.Measurement{"rssi": -74, "snr": -2, "packet_rssi": -66}, "lora -74dBm -2.0dB"},
		{"imu", telemetry.Measurement{"tilt.roll": 1.2, "tilt.pitch": -3.6, "accel.z": 1}, "imu R1 P-4 1.00g"},
		{"gps", telemetry.Measurement{"latitude": 51.5636, "longitude": -0.704}, "gps 51.564 -0.704"},
	}
	for _, tt := range tests {
		if got := summaryLine(tt.name, tt.m); got != tt.want {
			t.Errorf("summaryLine(%s) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestSummaryLineFitsPanel(t *testing.T) {
	got := summaryLine("bmp180", telemetry.Measurement{"temperature": -123.4, "humidity": 100, "pressure": 1013.25})
	if len(got) > charsPerLine {
		t.Errorf("line %q is %d chars, panel fits %d", got, len(got), charsPerLine)
	}
}

func TestDisplayLinesOrder(t *testing.T) {
	rec := telemetry.RecordOf(
		telemetry.Reading{Sensor: "hts221", Time: time.Unix(1, 0), Values: telemetry.Measurement{"humidity": 45}},
		telemetry.Reading{Sensor: "bmp180", Time: time.Unix(2, 0), Values: telemetry.Measurement{"temperature": 15}},
	)

	lines := displayLines(rec, nil)
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "bmp1") {
		t.Errorf("sorted lines = %q", lines)
	}

	lines = displayLines(rec, []string{"hts221", "missing", "bmp180"})
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "hts2") {
		t.Errorf("configured lines = %q", lines)
	}
}

func TestPageOf(t *testing.T) {
	lines := []string{"a", "b", "c", "d", "e", "f"}

	page, next := pageOf(lines, 0)
	if len(page) != 4 || page[0] != "a" || next != 1 {
		t.Errorf("page 0 = %q, next %d", page, next)
	}
	page, next = pageOf(lines, next)
	if len(page) != 2 || page[0] != "e" || next != 0 {
		t.Errorf("page 1 = %q, next %d", page, next)
	}

	page, next = pageOf(nil, 3)
	if len(page) != 2 || page[1] != "Waiting..." || next != 0 {
		t.Errorf("empty = %q, next %d", page, next)
	}
}

func TestRenderLines(t *testing.T) {
	blank := renderLines(nil)
	if lit(blank) != 0 {
		t.Fatal("blank frame has lit pixels")
	}
	img := renderLines([]string{"bmp1 15.0C"})
	if lit(img) == 0 {
		t.Fatal("rendered text lit no pixels")
	}
	if got := img.Bounds(); got != image.Rect(0, 0, displayWidth, displayHeight) {
		t.Errorf("bounds = %v", got)
	}
}

func lit(img *image1bit.VerticalLSB) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.BitAt(x, y) {
				n++
			}
		}
	}
	return n
}
