// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/cubesat_telemetry/internal/app"
	"github.com/relabs-tech/cubesat_telemetry/internal/config"
	"github.com/relabs-tech/cubesat_telemetry/internal/logging"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws/live", "collector live stream")
	level := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Parse()

	log := logging.New(config.LogConfig{Level: *level, Format: "text"}, "console")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunConsole(ctx, *url, os.Stdout, log); err != nil {
		log.Error("console: fatal", "error", err)
		os.Exit(1)
	}
}
