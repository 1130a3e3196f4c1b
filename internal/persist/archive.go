// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	_ "github.com/mattn/go-sqlite3"

	"github.com/relabs-tech/cubesat_telemetry/internal/telemetry"
)

const archiveSchemaSQL = `
CREATE TABLE IF NOT EXISTS readings (
    id      INTEGER PRIMARY KEY AUTOINCREMENT,
    ts      INTEGER NOT NULL, -- unix microseconds
    sensor  TEXT    NOT NULL,
    kind    TEXT    NOT NULL,
    payload TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_readings_sensor ON readings (sensor, id);
`

const insertReadingSQL = `INSERT INTO readings (ts, sensor, kind, payload) VALUES (?, ?, ?, ?)`

const selectLatestSQL = `
SELECT ts, sensor, kind, payload FROM (
    SELECT id, ts, sensor, kind, payload FROM readings ORDER BY id DESC LIMIT ?
) ORDER BY id ASC`

// Archive is an append-only SQLite history. It is a poller sink: Append
// queues without blocking and Run writes batches in transactions.
type Archive struct {
	db    *sql.DB
	queue chan telemetry.Reading
	batch int
	log   *slog.Logger

	dropped atomic.Uint64
	written atomic.Uint64

	closeOnce sync.Once
	closeErr  error
}

// OpenArchive opens or creates the database at path.
func OpenArchive(path string, queueSize int, log *slog.Logger) (*Archive, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", path, "_journal_mode=WAL&_synchronous=NORMAL"))
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	// A single connection keeps in-memory databases shared and writes serial.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(archiveSchemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing archive schema: %w", err)
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	if log == nil {
		log = slog.Default()
	}
	return &Archive{
		db:    db,
		queue: make(chan telemetry.Reading, queueSize),
		batch: 256,
		log:   log,
	}, nil
}

// Append queues r for writing. When the queue is full the reading is
// dropped and counted.
func (a *Archive) Append(r telemetry.Reading) {
	select {
	case a.queue <- r.Clone():
	default:
		a.dropped.Add(1)
	}
}

// Dropped returns how many readings were discarded because the queue was full.
func (a *Archive) Dropped() uint64 { return a.dropped.Load() }

// Written returns how many readings were committed.
func (a *Archive) Written() uint64 { return a.written.Load() }

// Run drains the queue until ctx is done, then writes whatever is still
// queued.
func (a *Archive) Run(ctx context.Context) error {
	pending := make([]telemetry.Reading, 0, a.batch)
	flush := func(ctx context.Context) {
		if len(pending) == 0 {
			return
		}
		if err := a.Insert(ctx, pending...); err != nil {
			a.log.Error("archive: write failed", "readings", len(pending), "error", err)
		}
		pending = pending[:0]
	}

	tick := time.NewTicker(time.Second)
	defer tick.Stop()

	for {
		select {
		case r := <-a.queue:
			pending = append(pending, r)
			if len(pending) >= a.batch {
				flush(ctx)
			}
		case <-tick.C:
			flush(ctx)
		case <-ctx.Done():
			for {
				select {
				case r := <-a.queue:
					pending = append(pending, r)
					continue
				default:
				}
				break
			}
			flush(context.Background())
			a.log.Info("archive: drained",
				"written", humanize.Comma(int64(a.Written())),
				"dropped", humanize.Comma(int64(a.Dropped())))
			return nil
		}
	}
}

// Insert writes readings in one transaction.
func (a *Archive) Insert(ctx context.Context, readings ...telemetry.Reading) (err error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	stmt, err := tx.PrepareContext(ctx, insertReadingSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	for _, r := range readings {
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encoding %s reading: %w", r.Sensor, err)
		}
		if _, err := stmt.ExecContext(ctx, r.Time.UnixMicro(), r.Sensor, string(r.Kind), string(payload)); err != nil {
			return fmt.Errorf("inserting reading: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	a.written.Add(uint64(len(readings)))
	return nil
}

// Load returns up to limit most recent archived readings, oldest first.
func (a *Archive) Load(ctx context.Context, limit int) (out []telemetry.Reading, err error) {
	rows, err := a.db.QueryContext(ctx, selectLatestSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var (
			ts           int64
			sensor, kind string
			payload      string
		)
		if err := rows.Scan(&ts, &sensor, &kind, &payload); err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}
		var r telemetry.Reading
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("decoding %s reading: %w", sensor, err)
		}
		r.Kind = telemetry.Kind(kind)
		r.Time = time.UnixMicro(ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of archived readings.
func (a *Archive) Count(ctx context.Context) (int64, error) {
	var n int64
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM readings`).Scan(&n)
	return n, err
}

// Close releases the database.
func (a *Archive) Close() error {
	a.closeOnce.Do(func() {
		a.closeErr = a.db.Close()
	})
	return a.closeErr
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if rErr := rb.Rollback(); rErr != nil && !errors.Is(rErr, sql.ErrTxDone) && *err == nil {
		*err = rErr
	}
}
