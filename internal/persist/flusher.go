// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package persist

import (
	"context"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/relabs-tech/cubesat_telemetry/internal/telemetry"
)

// Source is the history to persist; *store.Store satisfies it.
type Source interface {
	All() iter.Seq[telemetry.Reading]
}

// Flusher rewrites the snapshot file periodically and once more on
// shutdown.
type Flusher struct {
	src      Source
	path     string
	format   Format
	interval time.Duration
	log      *slog.Logger

	mu sync.Mutex // one writer at a time
}

// NewFlusher returns a flusher; interval <= 0 disables periodic writes and
// leaves only the final flush.
func NewFlusher(src Source, path string, format Format, interval time.Duration, log *slog.Logger) *Flusher {
	if log == nil {
		log = slog.Default()
	}
	return &Flusher{src: src, path: path, format: format, interval: interval, log: log}
}

// Flush writes the current history.
func (f *Flusher) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	start := time.Now()
	n, size, err := SaveFile(f.path, f.format, f.src.All())
	if err != nil {
		f.log.Error("persist: snapshot failed", "path", f.path, "error", err)
		return err
	}
	f.log.Debug("persist: snapshot written",
		"path", f.path,
		"readings", humanize.Comma(int64(n)),
		"size", humanize.Bytes(uint64(size)),
		"took", time.Since(start),
	)
	return nil
}

// Run flushes on every tick until ctx is done, then flushes a final time.
func (f *Flusher) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if f.interval > 0 {
		t := time.NewTicker(f.interval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			f.log.Info("persist: final flush", "path", f.path)
			return f.Flush()
		case <-tick:
			// Errors are logged; the next tick retries.
			_ = f.Flush()
		}
	}
}
