// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/relabs-tech/cubesat_telemetry/internal/config"
	"github.com/relabs-tech/cubesat_telemetry/internal/publish"
	"github.com/relabs-tech/cubesat_telemetry/internal/telemetry"
)

// RunConsoleMQTT prints every reading published by a collector until ctx
// is done.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, out io.Writer, log *slog.Logger) error {
	var mu sync.Mutex // paho delivers from its own goroutines
	sub := publish.NewSubscriber(cfg.MQTT, func(r telemetry.Reading) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(out, formatReading(r))
	}, log)

	if err := sub.Connect(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	<-ctx.Done()

	log.Info("console: shutting down", "invalid_messages", sub.Invalid())
	sub.Close()
	return nil
}

// formatReading renders one console line:
//
//	[BMP1  ] 12:00:00.000 altitude=3016.66 pressure=699.64 temperature=15.00
func formatReading(r telemetry.Reading) string {
	tag := strings.ToUpper(r.Sensor)
	if len(tag) > 6 {
		tag = tag[:6]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%-6s] %s", tag, r.Time.Format("15:04:05.000"))
	for _, k := range r.Values.Keys() {
		fmt.Fprintf(&b, " %s=%.2f", k, r.Values[k])
	}
	return b.String()
}
