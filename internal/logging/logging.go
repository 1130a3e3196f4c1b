// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/relabs-tech/cubesat_telemetry/internal/config"
)

// New returns a tint text logger for "text" and a JSON logger otherwise.
// Unknown levels fall back to info.
func New(cfg config.LogConfig, appName string) *slog.Logger {
	return NewWriter(os.Stdout, cfg, appName)
}

// NewWriter is New with an explicit destination.
func NewWriter(w io.Writer, cfg config.LogConfig, appName string) *slog.Logger {
	level := ParseLevel(cfg.Level)

	if cfg.Format == "json" {
		h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
		return slog.New(h).With("app", appName)
	}

	h := tint.NewHandler(w, &tint.Options{
		Level:      level,
		AddSource:  level == slog.LevelDebug,
		TimeFormat: time.Kitchen,
	})
	return slog.New(h).With("app", appName)
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
