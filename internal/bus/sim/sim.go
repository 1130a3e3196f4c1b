// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sim provides register-level device simulators behind the bus
// contract. The collector uses them in mock mode and the poller tests use
// them to inject faults.
package sim

import (
	"errors"
	"sync"

	"github.com/relabs-tech/cubesat_telemetry/internal/bus"
)

// ErrNoDevice is the cause reported when nothing answers at an address.
var ErrNoDevice = errors.New("no device at address")

// ErrInjected is the cause reported for injected faults.
var ErrInjected = errors.New("injected fault")

// Device is a simulated register file.
type Device interface {
	ReadReg(reg byte) byte
	WriteReg(reg, value byte)
}

// Bus routes register traffic to attached devices by address.
type Bus struct {
	mu       sync.Mutex
	devices  map[uint16]Device
	failNext map[uint16]int
	down     map[uint16]bool
	ops      int
}

// NewBus returns an empty simulated bus.
func NewBus() *Bus {
	return &Bus{
		devices:  make(map[uint16]Device),
		failNext: make(map[uint16]int),
		down:     make(map[uint16]bool),
	}
}

// Attach places dev at addr, replacing any previous device.
func (b *Bus) Attach(addr uint16, dev Device) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices[addr] = dev
}

// FailNext makes the next n transfers to addr fail.
func (b *Bus) FailNext(addr uint16, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext[addr] = n
}

// SetDown makes every transfer to addr fail until cleared.
func (b *Bus) SetDown(addr uint16, down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.down[addr] = down
}

// Ops returns the number of transfers attempted so far.
func (b *Bus) Ops() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ops
}

func (b *Bus) device(op string, addr uint16, reg byte) (Device, error) {
	b.ops++
	if b.down[addr] {
		return nil, &bus.Error{Op: op, Addr: addr, Reg: reg, Err: ErrInjected}
	}
	if n := b.failNext[addr]; n > 0 {
		b.failNext[addr] = n - 1
		return nil, &bus.Error{Op: op, Addr: addr, Reg: reg, Err: ErrInjected}
	}
	dev, ok := b.devices[addr]
	if !ok {
		return nil, &bus.Error{Op: op, Addr: addr, Reg: reg, Err: ErrNoDevice}
	}
	return dev, nil
}

func (b *Bus) WriteRegister(addr uint16, reg, value byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	dev, err := b.device("write", addr, reg)
	if err != nil {
		return err
	}
	dev.WriteReg(reg, value)
	return nil
}

func (b *Bus) ReadRegister(addr uint16, reg byte) (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	dev, err := b.device("read", addr, reg)
	if err != nil {
		return 0, err
	}
	return dev.ReadReg(reg), nil
}

func (b *Bus) ReadBlock(addr uint16, start byte, n int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	dev, err := b.device("read_block", addr, start)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, &bus.Error{Op: "read_block", Addr: addr, Reg: start, Err: errors.New("invalid length")}
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = dev.ReadReg(start + byte(i))
	}
	return out, nil
}

// Registers is a 256-byte register file with an optional write hook.
// AutoIncrement is masked off incoming register addresses, for parts
// that use an address bit to request multi-byte reads.
type Registers struct {
	mu            sync.Mutex
	regs          [256]byte
	AutoIncrement byte
	OnWrite       func(r *Registers, reg, value byte)
}

func (r *Registers) ReadReg(reg byte) byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.regs[reg&^r.AutoIncrement]
}

func (r *Registers) WriteReg(reg, value byte) {
	r.mu.Lock()
	reg &^= r.AutoIncrement
	r.regs[reg] = value
	hook := r.OnWrite
	r.mu.Unlock()
	if hook != nil {
		hook(r, reg, value)
	}
}

// Load copies data into consecutive registers starting at reg without
// firing the write hook.
func (r *Registers) Load(reg byte, data ...byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, v := range data {
		r.regs[reg+byte(i)] = v
	}
}

// Peek returns a register without side effects.
func (r *Registers) Peek(reg byte) byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.regs[reg]
}
