// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/cubesat_telemetry/internal/config"
	"github.com/relabs-tech/cubesat_telemetry/internal/gps"
	"github.com/relabs-tech/cubesat_telemetry/internal/persist"
	"github.com/relabs-tech/cubesat_telemetry/internal/poller"
	"github.com/relabs-tech/cubesat_telemetry/internal/publish"
	"github.com/relabs-tech/cubesat_telemetry/internal/store"
)

// simDriftInterval is how often simulated raw values move.
const simDriftInterval = time.Second

// RunCollector polls every configured sensor into the store and serves it
// until ctx is done. A sensor that fails fatally is stopped alone; the
// rest keep running. On shutdown the snapshot file is flushed one last
// time after the final reading has been appended.
func RunCollector(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	return runCollector(ctx, cfg, store.New(cfg.Store.Capacity), log)
}

func runCollector(ctx context.Context, cfg *config.Config, st *store.Store, log *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	format, err := persist.ParseFormat(cfg.Persist.Format)
	if err != nil {
		return err
	}

	var archive *persist.Archive
	if cfg.Persist.Archive.Path != "" {
		archive, err = persist.OpenArchive(cfg.Persist.Archive.Path, cfg.Persist.Archive.QueueSize, log)
		if err != nil {
			return err
		}
		defer archive.Close()
	}
	warmStart(ctx, cfg, st, archive, log)

	hw, err := openHardware(cfg, log)
	if err != nil {
		return err
	}
	defer hw.Close()

	plans, err := hw.plan(cfg)
	if err != nil {
		return err
	}

	sink := poller.Tee{st}
	var pub *publish.Publisher
	if cfg.MQTT.Enabled {
		pub = publish.NewPublisher(cfg.MQTT, log)
		sink = append(sink, pub)
	}
	if archive != nil {
		sink = append(sink, archive)
	}

	g, gctx := errgroup.WithContext(ctx)

	// Sinks outlive the producers: they stop only once no poller or GPS
	// source can append, so the final flush and drain see every reading.
	sinkCtx, stopSinks := context.WithCancel(context.WithoutCancel(gctx))
	defer stopSinks()
	var producers sync.WaitGroup

	group := poller.NewGroup(gctx)
	for _, sp := range plans {
		if err := group.Start(poller.New(sp.Config, sp.Bus, sink, log)); err != nil {
			return err
		}
	}
	producers.Add(1)
	g.Go(func() error {
		defer producers.Done()
		// Fatal sensor errors are isolated: report them, never cancel the rest.
		if err := group.Wait(); err != nil {
			log.Warn("collector: sensors stopped with errors", "error", err)
		}
		return nil
	})
	if cfg.GPS.Enabled {
		src := gps.NewSource(cfg.GPS.Name, cfg.GPS.Port, cfg.GPS.BaudRate, log)
		producers.Add(1)
		g.Go(func() error {
			defer producers.Done()
			if err := src.Run(gctx, sink); err != nil {
				log.Warn("collector: gps stopped", "error", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		producers.Wait()
		stopSinks()
		return nil
	})

	g.Go(func() error { return hw.runDrift(gctx, simDriftInterval) })

	if cfg.Persist.Path != "" {
		flusher := persist.NewFlusher(st, cfg.Persist.Path, format, cfg.Persist.Interval, log)
		g.Go(func() error { return flusher.Run(sinkCtx) })
	}
	if archive != nil {
		g.Go(func() error { return archive.Run(sinkCtx) })
	}
	if pub != nil {
		g.Go(func() error {
			if err := pub.Run(sinkCtx); err != nil {
				log.Warn("collector: mqtt publisher stopped", "error", err)
			}
			return nil
		})
	}
	if cfg.Display.Enabled {
		g.Go(func() error {
			if err := RunDisplay(gctx, cfg.Display, st, log); err != nil {
				log.Warn("collector: display stopped", "error", err)
			}
			return nil
		})
	}
	if cfg.Web.Enabled {
		srv := &http.Server{
			Addr:              cfg.Web.Addr,
			Handler:           NewServer(st, group, cfg.Web, log).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error { return Serve(gctx, srv, log) })
	}

	log.Info("collector: running", "sensors", len(plans), "store_capacity", st.Cap())
	err = g.Wait()
	log.Info("collector: stopped",
		"readings", humanize.Comma(int64(st.Total())),
		"evicted", humanize.Comma(int64(st.Dropped())),
	)
	return err
}

// warmStart reloads history so a restart does not blank the dashboard.
// The archive wins over the snapshot file when both are configured.
func warmStart(ctx context.Context, cfg *config.Config, st *store.Store, archive *persist.Archive, log *slog.Logger) {
	if archive != nil && cfg.Persist.Archive.WarmStart > 0 {
		readings, err := archive.Load(ctx, min(cfg.Persist.Archive.WarmStart, st.Cap()))
		if err != nil {
			log.Warn("collector: archive warm start failed", "error", err)
			return
		}
		for _, r := range readings {
			st.Append(r)
		}
		log.Info("collector: warm start from archive", "readings", len(readings))
		return
	}
	if cfg.Persist.Path == "" {
		return
	}
	readings, err := persist.LoadFile(cfg.Persist.Path)
	if err != nil {
		log.Warn("collector: snapshot warm start failed", "path", cfg.Persist.Path, "error", fmt.Errorf("loading snapshot: %w", err))
		return
	}
	for _, r := range readings {
		st.Append(r)
	}
	if len(readings) > 0 {
		log.Info("collector: warm start from snapshot", "path", cfg.Persist.Path, "readings", len(readings))
	}
}
