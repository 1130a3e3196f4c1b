package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/relabs-tech/cubesat_telemetry/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONLoggerCarriesApp(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, config.LogConfig{Level: "info", Format: "json"}, "collector")
	log.Debug("hidden")
	log.Info("poller: started", "sensor", "bmp180")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["app"] != "collector" || rec["sensor"] != "bmp180" || rec["msg"] != "poller: started" {
		t.Errorf("record = %v", rec)
	}
}

func TestTextLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, config.LogConfig{Level: "warn", Format: "text"}, "collector")
	log.Info("hidden")
	log.Warn("store: subscriber lagging")
	if !strings.Contains(buf.String(), "store: subscriber lagging") || strings.Contains(buf.String(), "hidden") {
		t.Errorf("output = %q", buf.String())
	}
}
