// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/cubesat_telemetry/internal/bus"
	"github.com/relabs-tech/cubesat_telemetry/internal/config"
	"github.com/relabs-tech/cubesat_telemetry/internal/store"
	"github.com/relabs-tech/cubesat_telemetry/internal/telemetry"
)

const (
	displayWidth  = 128
	displayHeight = 64
	lineHeight    = 13
	linesPerPage  = displayHeight / lineHeight // 4 lines of 7x13 text
	charsPerLine  = displayWidth / 7
)

// addrBus sends every transfer to a fixed address so the panel can sit
// at 0x3C or 0x3D regardless of the driver's default.
type addrBus struct {
	i2c.Bus
	addr uint16
}

func (b addrBus) Tx(_ uint16, w, r []byte) error { return b.Bus.Tx(b.addr, w, r) }

// RunDisplay shows the latest reading of each sensor on an SSD1306 OLED,
// paging when there are more sensors than lines.
func RunDisplay(ctx context.Context, cfg config.DisplayConfig, st *store.Store, log *slog.Logger) error {
	ctrl, err := bus.OpenI2CController(cfg.Bus)
	if err != nil {
		return fmt.Errorf("display: %w", err)
	}
	defer ctrl.Close()

	dev, err := ssd1306.NewI2C(addrBus{Bus: ctrl, addr: cfg.Address}, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("display: init at 0x%02X: %w", cfg.Address, err)
	}
	log.Info("display: initialized", "bus", cfg.Bus, "addr", fmt.Sprintf("0x%02X", cfg.Address))

	if err := dev.Draw(dev.Bounds(), renderLines([]string{"", "  CubeSat", "  Telemetry"}), image.Point{}); err != nil {
		log.Warn("display: error showing splash", "error", err)
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	page := 0
	for {
		select {
		case <-ctx.Done():
			if err := dev.Halt(); err != nil {
				log.Warn("display: halt failed", "error", err)
			}
			return nil
		case <-ticker.C:
		}

		var lines []string
		if rec, ok := st.Snapshot(); ok {
			lines = displayLines(rec, cfg.Sensors)
		}
		pageLines, next := pageOf(lines, page)
		page = next
		if err := dev.Draw(dev.Bounds(), renderLines(pageLines), image.Point{}); err != nil {
			log.Warn("display: error updating", "error", err)
		}
	}
}

// pageOf returns the lines of page n and the index of the following page.
func pageOf(lines []string, n int) ([]string, int) {
	if len(lines) == 0 {
		return []string{"Telemetry", "Waiting..."}, 0
	}
	pages := (len(lines) + linesPerPage - 1) / linesPerPage
	n %= pages
	end := min((n+1)*linesPerPage, len(lines))
	return lines[n*linesPerPage : end], (n + 1) % pages
}

// displayLines renders one line per sensor, in the configured order or
// sorted by name when none is configured.
func displayLines(rec telemetry.Record, order []string) []string {
	names := order
	if len(names) == 0 {
		names = make([]string, 0, len(rec.Sensors))
		for name := range rec.Sensors {
			names = append(names, name)
		}
		slices.Sort(names)
	}
	var lines []string
	for _, name := range names {
		m, ok := rec.Sensors[name]
		if !ok {
			continue
		}
		lines = append(lines, summaryLine(name, m))
	}
	return lines
}

// summaryLine picks the most telling fields of a measurement and truncates
// to the panel width.
func summaryLine(name string, m telemetry.Measurement) string {
	label := name
	if len(label) > 4 {
		label = label[:4]
	}
	parts := []string{label}
	add := func(key, format string) {
		if v, ok := m[key]; ok {
			parts = append(parts, fmt.Sprintf(format, v))
		}
	}
	switch {
	case has(m, "latitude"):
		add("latitude", "%.3f")
		add("longitude", "%.3f")
	case has(m, "rssi"):
		add("rssi", "%.0fdBm")
		add("snr", "%.1fdB")
	case has(m, "tilt.roll"):
		add("tilt.roll", "R%.0f")
		add("tilt.pitch", "P%.0f")
		add("accel.z", "%.2fg")
	default:
		add("temperature", "%.1fC")
		add("humidity", "%.0f%%")
		add("pressure", "%.0fhPa")
	}
	line := strings.Join(parts, " ")
	if len(line) > charsPerLine {
		line = line[:charsPerLine]
	}
	return line
}

func has(m telemetry.Measurement, key string) bool {
	_, ok := m[key]
	return ok
}

// renderLines draws up to linesPerPage lines of 7x13 text.
func renderLines(lines []string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		if i >= linesPerPage {
			break
		}
		drawer.Dot = fixed.P(0, (i+1)*lineHeight-2)
		drawer.DrawString(line)
	}
	return img
}
