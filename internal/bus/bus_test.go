package bus

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"

	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spitest"
)

func TestI2CRegisterOps(t *testing.T) {
	pb := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x77, W: []byte{0xD0}, R: []byte{0x55}},
			{Addr: 0x77, W: []byte{0xF4, 0x2E}},
			{Addr: 0x77, W: []byte{0xF6}, R: []byte{0x6C, 0xFA}},
		},
	}
	b := NewI2C(pb)

	id, err := b.ReadRegister(0x77, 0xD0)
	if err != nil || id != 0x55 {
		t.Fatalf("ReadRegister = 0x%02X, %v", id, err)
	}
	if err := b.WriteRegister(0x77, 0xF4, 0x2E); err != nil {
		t.Fatalf("WriteRegister: %v", err)
	}
	data, err := b.ReadBlock(0x77, 0xF6, 2)
	if err != nil || !bytes.Equal(data, []byte{0x6C, 0xFA}) {
		t.Fatalf("ReadBlock = %x, %v", data, err)
	}
	if err := pb.Close(); err != nil {
		t.Fatalf("playback not drained: %v", err)
	}
}

func TestI2CErrorIsBusError(t *testing.T) {
	pb := &i2ctest.Playback{DontPanic: true}
	b := NewI2C(pb)

	_, err := b.ReadRegister(0x5F, 0x0F)
	if !IsBusError(err) {
		t.Fatalf("err = %v, want bus error", err)
	}
	var be *Error
	if !errors.As(err, &be) || be.Addr != 0x5F || be.Reg != 0x0F || be.Op != "read" {
		t.Errorf("bus error fields = %+v", be)
	}
	if !conntest.IsErr(errors.Unwrap(err)) {
		t.Errorf("cause not preserved: %v", errors.Unwrap(err))
	}

	if _, err := b.ReadBlock(0x5F, 0x28, 0); !IsBusError(err) {
		t.Errorf("zero length read: err = %v", err)
	}
}

func TestSPIConventions(t *testing.T) {
	tests := []struct {
		name string
		conv SPIConvention
		ops  []conntest.IO
	}{
		{
			name: "read high",
			conv: ReadHigh,
			ops: []conntest.IO{
				{W: []byte{0x6B, 0x01}, R: []byte{0x00, 0x00}},
				{W: []byte{0xF5, 0x00}, R: []byte{0x00, 0x71}},
				{W: []byte{0xBB, 0x00, 0x00}, R: []byte{0x00, 0x10, 0x00}},
			},
		},
		{
			name: "write high",
			conv: WriteHigh,
			ops: []conntest.IO{
				{W: []byte{0xEB, 0x01}, R: []byte{0x00, 0x00}},
				{W: []byte{0x75, 0x00}, R: []byte{0x00, 0x71}},
				{W: []byte{0x3B, 0x00, 0x00}, R: []byte{0x00, 0x10, 0x00}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pb := &spitest.Playback{Playback: conntest.Playback{Ops: tt.ops}}
			c, err := pb.Connect(physic.MegaHertz, spi.Mode0, 8)
			if err != nil {
				t.Fatal(err)
			}
			b := NewSPI(c, tt.conv)

			if err := b.WriteRegister(0, 0x6B, 0x01); err != nil {
				t.Fatalf("WriteRegister: %v", err)
			}
			id, err := b.ReadRegister(0, 0x75)
			if err != nil || id != 0x71 {
				t.Fatalf("ReadRegister = 0x%02X, %v", id, err)
			}
			data, err := b.ReadBlock(0, 0x3B, 2)
			if err != nil || !bytes.Equal(data, []byte{0x10, 0x00}) {
				t.Fatalf("ReadBlock = %x, %v", data, err)
			}
			if err := pb.Close(); err != nil {
				t.Fatalf("playback not drained: %v", err)
			}
		})
	}
}

func TestSPIControllerPerChipSelect(t *testing.T) {
	// CS0 is an InvenSense IMU, CS1 a Semtech radio: the radio's RegVersion
	// read must go out with bit 7 clear.
	ports := map[string]*spitest.Playback{
		"SPI0.0": {Playback: conntest.Playback{Ops: []conntest.IO{
			{W: []byte{0xF5, 0x00}, R: []byte{0x00, 0x71}},
		}}},
		"SPI0.1": {Playback: conntest.Playback{Ops: []conntest.IO{
			{W: []byte{0x42, 0x00}, R: []byte{0x00, 0x12}},
			{W: []byte{0x81, 0x85}, R: []byte{0x00, 0x00}},
		}}},
	}
	var opened []string
	open := func(name string) (spi.PortCloser, error) {
		opened = append(opened, name)
		p, ok := ports[name]
		if !ok {
			return nil, fmt.Errorf("no port %s", name)
		}
		return p, nil
	}
	c := NewSPIController("SPI0", physic.MegaHertz, spi.Mode0, open)
	if err := c.Attach(0, ReadHigh); err != nil {
		t.Fatalf("attach cs0: %v", err)
	}
	if err := c.Attach(1, WriteHigh); err != nil {
		t.Fatalf("attach cs1: %v", err)
	}
	if err := c.Attach(1, WriteHigh); err != nil {
		t.Errorf("re-attach with the same convention: %v", err)
	}
	if err := c.Attach(1, ReadHigh); err == nil {
		t.Error("re-attach with another convention should fail")
	}
	if len(opened) != 2 {
		t.Errorf("opened %v, want one port per chip select", opened)
	}

	if id, err := c.ReadRegister(0, 0x75); err != nil || id != 0x71 {
		t.Fatalf("cs0 WHO_AM_I = 0x%02X, %v", id, err)
	}
	if id, err := c.ReadRegister(1, 0x42); err != nil || id != 0x12 {
		t.Fatalf("cs1 RegVersion = 0x%02X, %v", id, err)
	}
	if err := c.WriteRegister(1, 0x01, 0x85); err != nil {
		t.Fatalf("cs1 write: %v", err)
	}

	_, err := c.ReadRegister(2, 0x00)
	if !IsBusError(err) || !errors.Is(err, ErrNoDevice) {
		t.Errorf("unattached cs: err = %v", err)
	}

	if err := c.Close(); err != nil {
		t.Errorf("close: %v (playback not drained)", err)
	}
}

// countingBus fails the test if two calls overlap.
type countingBus struct {
	mu      sync.Mutex
	active  int
	overlap bool
	calls   int
}

func (c *countingBus) enter() {
	c.mu.Lock()
	c.active++
	if c.active > 1 {
		c.overlap = true
	}
	c.calls++
	c.mu.Unlock()
}

func (c *countingBus) leave() {
	c.mu.Lock()
	c.active--
	c.mu.Unlock()
}

func (c *countingBus) WriteRegister(addr uint16, reg, value byte) error {
	c.enter()
	defer c.leave()
	return nil
}

func (c *countingBus) ReadRegister(addr uint16, reg byte) (byte, error) {
	c.enter()
	defer c.leave()
	return reg, nil
}

func (c *countingBus) ReadBlock(addr uint16, start byte, n int) ([]byte, error) {
	c.enter()
	defer c.leave()
	return make([]byte, n), nil
}

func TestSerializedNoOverlap(t *testing.T) {
	inner := &countingBus{}
	s := Serialize(inner)
	if Serialize(s) != s {
		t.Error("Serialize should not double wrap")
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				switch i % 3 {
				case 0:
					_ = s.WriteRegister(uint16(g), 1, 2)
				case 1:
					_, _ = s.ReadRegister(uint16(g), 1)
				default:
					_, _ = s.ReadBlock(uint16(g), 1, 4)
				}
			}
		}(g)
	}
	wg.Wait()

	if inner.overlap {
		t.Fatal("serialized bus allowed overlapping transactions")
	}
	if inner.calls != 8*200 {
		t.Errorf("calls = %d", inner.calls)
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Op: "write", Addr: 0x77, Reg: 0xF4, Err: fmt.Errorf("nack")}
	if got := err.Error(); got != "bus write 0x77 reg 0xF4: nack" {
		t.Errorf("Error() = %q", got)
	}
}
