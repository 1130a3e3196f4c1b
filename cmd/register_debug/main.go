// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/cubesat_telemetry/internal/app"
	"github.com/relabs-tech/cubesat_telemetry/internal/config"
	"github.com/relabs-tech/cubesat_telemetry/internal/logging"
)

func main() {
	configPath := flag.String("config", "telemetry_config.yaml", "path to the YAML configuration")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()
	log := logging.New(cfg.Log, "register_debug")
	log.Info("register_debug: open the websocket at /ws/registers", "addr", cfg.RegisterDebug.Addr, "writes", cfg.RegisterDebug.AllowWrites)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunRegisterDebug(ctx, cfg, log); err != nil {
		log.Error("register_debug: fatal", "error", err)
		os.Exit(1)
	}
}
