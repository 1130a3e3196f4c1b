// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bus

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// I2C adapts a periph.io I2C bus.
type I2C struct {
	bus i2c.Bus
}

// NewI2C wraps an already opened periph I2C bus.
func NewI2C(b i2c.Bus) *I2C {
	return &I2C{bus: b}
}

func (b *I2C) WriteRegister(addr uint16, reg, value byte) error {
	if err := b.bus.Tx(addr, []byte{reg, value}, nil); err != nil {
		return &Error{Op: "write", Addr: addr, Reg: reg, Err: err}
	}
	return nil
}

func (b *I2C) ReadRegister(addr uint16, reg byte) (byte, error) {
	r := make([]byte, 1)
	if err := b.bus.Tx(addr, []byte{reg}, r); err != nil {
		return 0, &Error{Op: "read", Addr: addr, Reg: reg, Err: err}
	}
	return r[0], nil
}

func (b *I2C) ReadBlock(addr uint16, start byte, n int) ([]byte, error) {
	if n <= 0 {
		return nil, &Error{Op: "read_block", Addr: addr, Reg: start, Err: fmt.Errorf("invalid length %d", n)}
	}
	r := make([]byte, n)
	if err := b.bus.Tx(addr, []byte{start}, r); err != nil {
		return nil, &Error{Op: "read_block", Addr: addr, Reg: start, Err: err}
	}
	return r, nil
}

// SPIConvention says how a device encodes the R/W direction in the
// register address byte.
type SPIConvention struct {
	ReadMask  byte // OR'ed into the address for reads
	WriteMask byte // OR'ed into the address for writes
}

var (
	// ReadHigh is the InvenSense convention: bit 7 set means read.
	ReadHigh = SPIConvention{ReadMask: 0x80}
	// WriteHigh is the Semtech convention: bit 7 set means write.
	WriteHigh = SPIConvention{WriteMask: 0x80}
)

// SPI adapts a periph.io SPI connection. One connection addresses one chip
// select, so the addr argument only labels errors.
type SPI struct {
	conn spi.Conn
	conv SPIConvention
}

// NewSPI wraps a connected periph SPI conn.
func NewSPI(c spi.Conn, conv SPIConvention) *SPI {
	return &SPI{conn: c, conv: conv}
}

func (b *SPI) WriteRegister(addr uint16, reg, value byte) error {
	w := []byte{(reg &^ 0x80) | b.conv.WriteMask, value}
	r := make([]byte, len(w))
	if err := b.conn.Tx(w, r); err != nil {
		return &Error{Op: "write", Addr: addr, Reg: reg, Err: err}
	}
	return nil
}

func (b *SPI) ReadRegister(addr uint16, reg byte) (byte, error) {
	data, err := b.transfer(addr, reg, 1, "read")
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

func (b *SPI) ReadBlock(addr uint16, start byte, n int) ([]byte, error) {
	if n <= 0 {
		return nil, &Error{Op: "read_block", Addr: addr, Reg: start, Err: fmt.Errorf("invalid length %d", n)}
	}
	return b.transfer(addr, start, n, "read_block")
}

// transfer clocks out the address byte followed by n dummy bytes; the
// device answers in the same full-duplex frame.
func (b *SPI) transfer(addr uint16, reg byte, n int, op string) ([]byte, error) {
	w := make([]byte, n+1)
	w[0] = (reg &^ 0x80) | b.conv.ReadMask
	r := make([]byte, n+1)
	if err := b.conn.Tx(w, r); err != nil {
		return nil, &Error{Op: op, Addr: addr, Reg: reg, Err: err}
	}
	return r[1:], nil
}

// ErrNoDevice is returned for a chip select nothing was attached to.
var ErrNoDevice = errors.New("no device attached")

// SPIController drives one SPI port with a connection per chip select. The
// addr argument of every register call is the chip select, and each chip
// select keeps the direction convention of the device behind it.
type SPIController struct {
	name  string
	speed physic.Frequency
	mode  spi.Mode
	open  func(name string) (spi.PortCloser, error)

	mu      sync.Mutex
	devices map[uint16]*spiDevice
}

type spiDevice struct {
	*SPI
	port spi.PortCloser
}

// NewSPIController returns a controller for the port named name ("SPI0").
// open resolves "<name>.<cs>"; spireg.Open on hardware.
func NewSPIController(name string, speed physic.Frequency, mode spi.Mode, open func(string) (spi.PortCloser, error)) *SPIController {
	return &SPIController{
		name:    name,
		speed:   speed,
		mode:    mode,
		open:    open,
		devices: make(map[uint16]*spiDevice),
	}
}

// Attach connects chip select cs with the device's convention. Attaching
// the same chip select twice with another convention is an error.
func (c *SPIController) Attach(cs uint16, conv SPIConvention) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.devices[cs]; ok {
		if d.conv != conv {
			return fmt.Errorf("%s.%d: already attached with another convention", c.name, cs)
		}
		return nil
	}
	portName := fmt.Sprintf("%s.%d", c.name, cs)
	p, err := c.open(portName)
	if err != nil {
		return fmt.Errorf("spi open %q: %w", portName, err)
	}
	conn, err := p.Connect(c.speed, c.mode, 8)
	if err != nil {
		p.Close()
		return fmt.Errorf("spi connect %q: %w", portName, err)
	}
	c.devices[cs] = &spiDevice{SPI: NewSPI(conn, conv), port: p}
	return nil
}

func (c *SPIController) device(op string, cs uint16, reg byte) (*SPI, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.devices[cs]
	if !ok {
		return nil, &Error{Op: op, Addr: cs, Reg: reg, Err: ErrNoDevice}
	}
	return d.SPI, nil
}

func (c *SPIController) WriteRegister(cs uint16, reg, value byte) error {
	d, err := c.device("write", cs, reg)
	if err != nil {
		return err
	}
	return d.WriteRegister(cs, reg, value)
}

func (c *SPIController) ReadRegister(cs uint16, reg byte) (byte, error) {
	d, err := c.device("read", cs, reg)
	if err != nil {
		return 0, err
	}
	return d.ReadRegister(cs, reg)
}

func (c *SPIController) ReadBlock(cs uint16, start byte, n int) ([]byte, error) {
	d, err := c.device("read_block", cs, start)
	if err != nil {
		return nil, err
	}
	return d.ReadBlock(cs, start, n)
}

// Close releases every attached chip select.
func (c *SPIController) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for cs, d := range c.devices {
		errs = append(errs, d.port.Close())
		delete(c.devices, cs)
	}
	return errors.Join(errs...)
}

// Spec describes one physical bus to open.
type Spec struct {
	Name    string
	Type    string // "i2c" or "spi"
	Device  string // periph name: "/dev/i2c-1" for I2C, the port ("SPI0") for SPI
	SpeedHz int64
	Mode    int
}

var (
	hostOnce sync.Once
	hostErr  error
)

func initHost() error {
	hostOnce.Do(func() {
		_, hostErr = host.Init()
	})
	return hostErr
}

// Handle is an opened physical bus. Close releases the controller.
type Handle struct {
	Bus
	// SPI is set for SPI ports; devices must be attached per chip select.
	SPI    *SPIController
	closer io.Closer
}

func (h *Handle) Close() error {
	if h.closer == nil {
		return nil
	}
	return h.closer.Close()
}

// Open initializes the periph host drivers once and opens the controller
// described by spec. The returned bus is serialized.
func Open(spec Spec) (*Handle, error) {
	if err := initHost(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	switch spec.Type {
	case "i2c":
		b, err := i2creg.Open(spec.Device)
		if err != nil {
			return nil, fmt.Errorf("%s: i2c open %q: %w", spec.Name, spec.Device, err)
		}
		if spec.SpeedHz > 0 {
			if err := b.SetSpeed(physic.Frequency(spec.SpeedHz) * physic.Hertz); err != nil {
				b.Close()
				return nil, fmt.Errorf("%s: i2c set speed: %w", spec.Name, err)
			}
		}
		return &Handle{Bus: Serialize(NewI2C(b)), closer: b}, nil

	case "spi":
		speed := spec.SpeedHz
		if speed <= 0 {
			speed = 1_000_000
		}
		c := NewSPIController(spec.Device, physic.Frequency(speed)*physic.Hertz, spi.Mode(spec.Mode), spireg.Open)
		return &Handle{Bus: Serialize(c), SPI: c, closer: c}, nil

	default:
		return nil, errors.New(spec.Name + ": unsupported bus type " + spec.Type)
	}
}

// OpenI2CController opens a raw periph I2C controller for drivers that
// speak to the device themselves, such as the OLED display.
func OpenI2CController(name string) (i2c.BusCloser, error) {
	if err := initHost(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("i2c open %q: %w", name, err)
	}
	return b, nil
}
