// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calib decodes factory calibration blocks read from sensor
// register space into named integer coefficients.
package calib

import (
	"errors"
	"fmt"
)

// ErrMalformedCalibration is returned when a calibration block cannot be
// decoded against its layout. It is fatal to a sensor session.
var ErrMalformedCalibration = errors.New("malformed calibration")

// Encoding describes how a field is laid out in the block.
type Encoding int

const (
	U16BE Encoding = iota // big-endian unsigned 16-bit
	S16BE                 // big-endian two's-complement 16-bit
	S16LE                 // little-endian two's-complement 16-bit
	U8                    // single unsigned byte
	Bits                  // bit range [Shift, Shift+Width) of a single byte
)

func (e Encoding) size() int {
	switch e {
	case U16BE, S16BE, S16LE:
		return 2
	default:
		return 1
	}
}

// Field is one named coefficient at a fixed offset.
type Field struct {
	Name   string
	Offset int
	Enc    Encoding
	Shift  uint // Bits only
	Width  uint // Bits only
}

// Layout is the fixed byte map of a device's calibration block.
type Layout struct {
	Name   string
	Size   int
	Fields []Field
}

// ToSigned16 reinterprets a 16-bit unsigned value as two's complement.
// Values already in [-32768, 32767] are returned unchanged.
func ToSigned16(v int32) int32 {
	if v > 32767 {
		v -= 65536
	}
	return v
}

// Decode extracts every field of layout from data. The input must be
// exactly layout.Size bytes.
func Decode(layout Layout, data []byte) (Block, error) {
	if len(data) != layout.Size {
		return Block{}, fmt.Errorf("%s: %w: got %d bytes, want %d", layout.Name, ErrMalformedCalibration, len(data), layout.Size)
	}

	b := Block{
		layout: layout.Name,
		names:  make([]string, 0, len(layout.Fields)),
		values: make(map[string]int32, len(layout.Fields)),
		raw:    append([]byte(nil), data...),
	}
	for _, f := range layout.Fields {
		if f.Offset < 0 || f.Offset+f.Enc.size() > layout.Size {
			return Block{}, fmt.Errorf("%s: %w: field %s at offset %d outside block", layout.Name, ErrMalformedCalibration, f.Name, f.Offset)
		}
		var v int32
		switch f.Enc {
		case U16BE:
			v = int32(data[f.Offset])<<8 | int32(data[f.Offset+1])
		case S16BE:
			v = ToSigned16(int32(data[f.Offset])<<8 | int32(data[f.Offset+1]))
		case S16LE:
			v = ToSigned16(int32(data[f.Offset+1])<<8 | int32(data[f.Offset]))
		case U8:
			v = int32(data[f.Offset])
		case Bits:
			if f.Width == 0 || f.Shift+f.Width > 8 {
				return Block{}, fmt.Errorf("%s: %w: field %s has invalid bit range", layout.Name, ErrMalformedCalibration, f.Name)
			}
			v = int32(data[f.Offset]>>f.Shift) & (1<<f.Width - 1)
		default:
			return Block{}, fmt.Errorf("%s: %w: field %s has unknown encoding %d", layout.Name, ErrMalformedCalibration, f.Name, f.Enc)
		}
		b.set(f.Name, v)
	}
	return b, nil
}

// Block holds decoded coefficients in layout order.
type Block struct {
	layout string
	names  []string
	values map[string]int32
	raw    []byte
}

func (b *Block) set(name string, v int32) {
	if b.values == nil {
		b.values = make(map[string]int32)
	}
	if _, ok := b.values[name]; !ok {
		b.names = append(b.names, name)
	}
	b.values[name] = v
}

// Layout returns the name of the layout the block was decoded from.
func (b Block) Layout() string { return b.layout }

// Get returns the named coefficient.
func (b Block) Get(name string) (int32, bool) {
	v, ok := b.values[name]
	return v, ok
}

// Names lists coefficient names in layout order.
func (b Block) Names() []string {
	return append([]string(nil), b.names...)
}

// Raw returns a copy of the bytes the block was decoded from.
func (b Block) Raw() []byte {
	return append([]byte(nil), b.raw...)
}

// With returns a copy of b with an additional session constant.
func (b Block) With(name string, v int32) Block {
	out := Block{
		layout: b.layout,
		names:  append([]string(nil), b.names...),
		values: make(map[string]int32, len(b.values)+1),
		raw:    b.raw,
	}
	for k, val := range b.values {
		out.values[k] = val
	}
	out.set(name, v)
	return out
}

// Require returns the named coefficients in order, or ErrMalformedCalibration
// naming the first missing one.
func (b Block) Require(names ...string) ([]int32, error) {
	out := make([]int32, len(names))
	for i, n := range names {
		v, ok := b.values[n]
		if !ok {
			return nil, fmt.Errorf("%w: %s block has no %s", ErrMalformedCalibration, b.layout, n)
		}
		out[i] = v
	}
	return out, nil
}
