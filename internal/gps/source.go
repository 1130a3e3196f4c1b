// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/cubesat_telemetry/internal/telemetry"
)

// Sink receives position readings; poller sinks satisfy it.
type Sink interface {
	Append(telemetry.Reading)
}

// Source reads NMEA from a serial receiver and emits one position reading
// per valid RMC sentence.
type Source struct {
	Name     string
	Port     string
	BaudRate uint

	log *slog.Logger
	now func() time.Time

	emitted     atomic.Uint64
	parseErrors atomic.Uint64
}

// NewSource returns a source for the given serial port.
func NewSource(name, port string, baud uint, log *slog.Logger) *Source {
	if log == nil {
		log = slog.Default()
	}
	return &Source{Name: name, Port: port, BaudRate: baud, log: log, now: time.Now}
}

// Emitted returns the number of readings produced.
func (s *Source) Emitted() uint64 { return s.emitted.Load() }

// ParseErrors returns the number of lines that failed to parse.
func (s *Source) ParseErrors() uint64 { return s.parseErrors.Load() }

// Run opens the serial port and reads until ctx is done.
func (s *Source) Run(ctx context.Context, sink Sink) error {
	port, err := serial.Open(serial.OpenOptions{
		PortName:        s.Port,
		BaudRate:        s.BaudRate,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	})
	if err != nil {
		return fmt.Errorf("gps: open %s: %w", s.Port, err)
	}
	s.log.Info("gps: serial port opened", "port", s.Port, "baud", s.BaudRate)

	// Closing the port unblocks the pending read.
	stop := context.AfterFunc(ctx, func() { port.Close() })
	defer func() {
		if stop() {
			port.Close()
		}
	}()

	err = s.Read(ctx, port, sink)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Read consumes NMEA lines from r until EOF or ctx is done.
func (s *Source) Read(ctx context.Context, r io.Reader, sink Sink) error {
	var fix Fix
	reader := bufio.NewReader(r)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line, err := reader.ReadString('\n')
		if line = strings.TrimSpace(line); strings.HasPrefix(line, "$") {
			s.handleLine(line, &fix, sink)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("gps: read: %w", err)
		}
	}
}

func (s *Source) handleLine(line string, fix *Fix, sink Sink) {
	sentence, err := nmea.Parse(line)
	if err != nil {
		// Partial sentences are normal right after the port opens.
		s.parseErrors.Add(1)
		s.log.Debug("gps: nmea parse error", "error", err, "line", line)
		return
	}
	if fix.Update(sentence) {
		sink.Append(fix.Reading(s.Name, s.now()))
		s.emitted.Add(1)
	}
}
