// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/relabs-tech/cubesat_telemetry/internal/bus"
	"github.com/relabs-tech/cubesat_telemetry/internal/bus/sim"
	"github.com/relabs-tech/cubesat_telemetry/internal/config"
	"github.com/relabs-tech/cubesat_telemetry/internal/poller"
	"github.com/relabs-tech/cubesat_telemetry/internal/sensors"
)

// hardware holds the opened buses and any simulated devices behind them.
type hardware struct {
	buses   map[string]bus.Bus
	closers []io.Closer
	sims    map[string]*sim.Bus
	spi     map[string]*bus.SPIController
	drift   []func(step int)
}

// openHardware opens every configured bus. Simulated buses get a device
// for each sensor configured on them.
func openHardware(cfg *config.Config, log *slog.Logger) (*hardware, error) {
	hw := &hardware{
		buses: make(map[string]bus.Bus, len(cfg.Buses)),
		sims:  make(map[string]*sim.Bus),
		spi:   make(map[string]*bus.SPIController),
	}
	for _, bc := range cfg.Buses {
		if bc.Type == "sim" {
			sb := sim.NewBus()
			hw.sims[bc.Name] = sb
			hw.buses[bc.Name] = bus.Serialize(sb)
			log.Info("hardware: simulated bus", "bus", bc.Name)
			continue
		}
		h, err := bus.Open(bus.Spec{
			Name:    bc.Name,
			Type:    bc.Type,
			Device:  bc.Device,
			SpeedHz: bc.SpeedHz,
			Mode:    bc.Mode,
		})
		if err != nil {
			hw.Close()
			return nil, err
		}
		hw.buses[bc.Name] = h
		if h.SPI != nil {
			hw.spi[bc.Name] = h.SPI
		}
		hw.closers = append(hw.closers, h)
		log.Info("hardware: bus opened", "bus", bc.Name, "type", bc.Type, "device", bc.Device)
	}
	return hw, nil
}

// sensorPlan is a resolved sensor: its poller config and the bus it sits on.
type sensorPlan struct {
	poller.Config
	Bus bus.Bus
}

// plan resolves each enabled sensor's profile and address and attaches
// simulated devices where needed. On SPI ports the address is the chip
// select, connected with the device's own direction convention.
func (hw *hardware) plan(cfg *config.Config) ([]sensorPlan, error) {
	var out []sensorPlan
	for _, sc := range cfg.Sensors {
		if sc.Disabled {
			continue
		}
		p, err := sensors.Lookup(sc.Model, sensors.Options{
			Oversampling: sc.Oversampling,
			AccelRange:   sc.AccelRange,
			GyroRange:    sc.GyroRange,
			Band:         sc.Band,
		})
		if err != nil {
			return nil, fmt.Errorf("sensor %s: %w", sc.Name, err)
		}
		addr := p.DefaultAddr
		if sc.Address != nil {
			addr = *sc.Address
		}
		if c, ok := hw.spi[sc.Bus]; ok {
			if p.SPI == nil {
				return nil, fmt.Errorf("sensor %s: %s has no SPI interface", sc.Name, p.Model)
			}
			addr = uint16(sc.ChipSelect)
			if err := c.Attach(addr, *p.SPI); err != nil {
				return nil, fmt.Errorf("sensor %s: %w", sc.Name, err)
			}
		}
		if sb, ok := hw.sims[sc.Bus]; ok {
			if err := hw.attach(sb, p.Model, addr); err != nil {
				return nil, fmt.Errorf("sensor %s: %w", sc.Name, err)
			}
		}
		out = append(out, sensorPlan{
			Config: poller.Config{
				Name:        sc.Name,
				Addr:        addr,
				Profile:     p,
				Interval:    sc.Interval,
				MaxFailures: sc.MaxFailures,
			},
			Bus: hw.buses[sc.Bus],
		})
	}
	return out, nil
}

// attach places a simulated device and registers a slow sinusoidal drift
// so mock dashboards move.
func (hw *hardware) attach(sb *sim.Bus, model string, addr uint16) error {
	wave := func(step int, period, amplitude float64) float64 {
		return amplitude * math.Sin(2*math.Pi*float64(step)/period)
	}
	switch model {
	case "bmp180":
		d := sim.NewBMP180(sim.BMP180Calibration)
		sb.Attach(addr, d)
		hw.drift = append(hw.drift, func(step int) {
			d.SetRaw(uint16(27898+wave(step, 120, 150)), uint32(23843+wave(step, 90, 250)))
		})
	case "hts221":
		d := sim.NewHTS221(sim.HTS221Calibration)
		sb.Attach(addr, d)
		hw.drift = append(hw.drift, func(step int) {
			d.SetRaw(int16(3500+wave(step, 200, 400)), int16(400+wave(step, 150, 60)))
		})
	case "mpu9250":
		d := sim.NewMPU9250()
		sb.Attach(addr, d)
		hw.drift = append(hw.drift, func(step int) {
			ax := int16(wave(step, 60, 1200))
			ay := int16(wave(step+15, 60, 1200))
			d.SetRaw([3]int16{ax, ay, 16300}, int16(wave(step, 300, 400)),
				[3]int16{int16(wave(step, 20, 200)), int16(wave(step, 25, 150)), 0})
		})
	case "sx1278":
		d := sim.NewSX1278()
		sb.Attach(addr, d)
		hw.drift = append(hw.drift, func(step int) {
			d.SetSignal(int8(-8+wave(step, 40, 12)), byte(100+wave(step, 50, 10)), byte(90+wave(step, 70, 8)))
		})
	default:
		return fmt.Errorf("no simulator for model %q", model)
	}
	return nil
}

// runDrift advances the simulated raw values until ctx is done.
func (hw *hardware) runDrift(ctx context.Context, interval time.Duration) error {
	if len(hw.drift) == 0 {
		return nil
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for step := 1; ; step++ {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			for _, f := range hw.drift {
				f(step)
			}
		}
	}
}

// Close releases the physical buses.
func (hw *hardware) Close() error {
	var errs []error
	for _, c := range hw.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
