// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/cubesat_telemetry/internal/telemetry"
)

// RunConsole prints the collector's live stream without a broker. url is
// the collector's /ws/live endpoint.
func RunConsole(ctx context.Context, url string, out io.Writer, log *slog.Logger) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("console: dial %s: %w", url, err)
	}
	defer conn.Close()
	log.Info("console: connected", "url", url)

	// Closing the connection unblocks ReadJSON.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var r telemetry.Reading
		if err := conn.ReadJSON(&r); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("console: read: %w", err)
		}
		fmt.Fprintln(out, formatReading(r))
	}
}
