// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package persist writes the telemetry history to disk and reads it back.
package persist

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"

	"github.com/relabs-tech/cubesat_telemetry/internal/telemetry"
)

// Format selects the snapshot file layout.
type Format string

const (
	// FormatArray is one JSON array of readings, pretty-printed.
	FormatArray Format = "array"
	// FormatLines is one JSON reading per line.
	FormatLines Format = "lines"
)

// ParseFormat validates a config value.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatArray, FormatLines:
		return Format(s), nil
	case "":
		return FormatArray, nil
	}
	return "", fmt.Errorf("unknown snapshot format %q", s)
}

// Write encodes readings to w in order.
func Write(w io.Writer, format Format, readings iter.Seq[telemetry.Reading]) (int, error) {
	bw := bufio.NewWriter(w)
	n := 0
	switch format {
	case FormatArray:
		if _, err := bw.WriteString("["); err != nil {
			return 0, err
		}
		for r := range readings {
			data, err := json.MarshalIndent(r, "    ", "    ")
			if err != nil {
				return n, fmt.Errorf("encode reading %d: %w", n, err)
			}
			sep := ",\n    "
			if n == 0 {
				sep = "\n    "
			}
			bw.WriteString(sep)
			bw.Write(data)
			n++
		}
		if n > 0 {
			bw.WriteString("\n")
		}
		bw.WriteString("]\n")

	case FormatLines:
		enc := json.NewEncoder(bw)
		for r := range readings {
			if err := enc.Encode(r); err != nil {
				return n, fmt.Errorf("encode reading %d: %w", n, err)
			}
			n++
		}

	default:
		return 0, fmt.Errorf("unknown snapshot format %q", format)
	}
	return n, bw.Flush()
}

// Read decodes a snapshot. Both formats are detected from the first
// non-space byte when format is empty.
func Read(r io.Reader, format Format) ([]telemetry.Reading, error) {
	br := bufio.NewReader(r)
	if format == "" {
		first, err := peekNonSpace(br)
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		format = FormatLines
		if first == '[' {
			format = FormatArray
		}
	}

	switch format {
	case FormatArray:
		var out []telemetry.Reading
		if err := json.NewDecoder(br).Decode(&out); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		return out, nil

	case FormatLines:
		var out []telemetry.Reading
		sc := bufio.NewScanner(br)
		sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
		line := 0
		for sc.Scan() {
			line++
			b := bytes.TrimSpace(sc.Bytes())
			if len(b) == 0 {
				continue
			}
			var rd telemetry.Reading
			if err := json.Unmarshal(b, &rd); err != nil {
				return nil, fmt.Errorf("decode snapshot line %d: %w", line, err)
			}
			out = append(out, rd)
		}
		return out, sc.Err()

	default:
		return nil, fmt.Errorf("unknown snapshot format %q", format)
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

// SaveFile writes readings to path atomically: a temp file in the same
// directory is fsynced and renamed over the target.
func SaveFile(path string, format Format, readings iter.Seq[telemetry.Reading]) (count int, size int64, err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, 0, fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return 0, 0, fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	count, err = Write(tmp, format, readings)
	if err != nil {
		return 0, 0, err
	}
	if err = tmp.Sync(); err != nil {
		return 0, 0, fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	info, err := tmp.Stat()
	if err != nil {
		return 0, 0, err
	}
	if err = tmp.Close(); err != nil {
		return 0, 0, err
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return 0, 0, fmt.Errorf("rename snapshot: %w", err)
	}
	return count, info.Size(), nil
}

// LoadFile reads a snapshot written by SaveFile. A missing file is an
// empty history.
func LoadFile(path string) ([]telemetry.Reading, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f, "")
}
