// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bus is the register-level contract between pollers and physical
// I2C/SPI controllers.
package bus

import (
	"errors"
	"fmt"
	"sync"
)

// Bus reads and writes device registers. Implementations return *Error for
// transfer failures.
type Bus interface {
	WriteRegister(addr uint16, reg, value byte) error
	ReadRegister(addr uint16, reg byte) (byte, error)
	ReadBlock(addr uint16, start byte, n int) ([]byte, error)
}

// Error is a failed bus transfer. It is transient from the poller's point
// of view until the consecutive-failure threshold is reached.
type Error struct {
	Op   string // "write", "read", "read_block"
	Addr uint16
	Reg  byte
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("bus %s 0x%02X reg 0x%02X: %v", e.Op, e.Addr, e.Reg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsBusError reports whether err wraps a *Error.
func IsBusError(err error) bool {
	var be *Error
	return errors.As(err, &be)
}

// Serialized guards a Bus shared by several pollers so that only one
// register transaction is on the wire at a time.
type Serialized struct {
	mu sync.Mutex
	b  Bus
}

// Serialize wraps b. Wrapping an already serialized bus returns it as is.
func Serialize(b Bus) *Serialized {
	if s, ok := b.(*Serialized); ok {
		return s
	}
	return &Serialized{b: b}
}

func (s *Serialized) WriteRegister(addr uint16, reg, value byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.WriteRegister(addr, reg, value)
}

func (s *Serialized) ReadRegister(addr uint16, reg byte) (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.ReadRegister(addr, reg)
}

func (s *Serialized) ReadBlock(addr uint16, start byte, n int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.ReadBlock(addr, start, n)
}

// Unwrap returns the underlying bus.
func (s *Serialized) Unwrap() Bus { return s.b }
