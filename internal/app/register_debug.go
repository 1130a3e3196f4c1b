// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/cubesat_telemetry/internal/bus"
	"github.com/relabs-tech/cubesat_telemetry/internal/config"
	"github.com/relabs-tech/cubesat_telemetry/internal/sensors"
)

// RegisterTarget is one sensor reachable for register inspection.
type RegisterTarget struct {
	Model string
	Addr  uint16
	Bus   bus.Bus
}

// RegisterCommand is a websocket request.
type RegisterCommand struct {
	Action string `json:"action"` // get_map, list, read, read_all, write, export_config
	Sensor string `json:"sensor,omitempty"`
	Addr   string `json:"addr,omitempty"`
	Value  string `json:"value,omitempty"`
}

// RegisterResponse is a websocket reply.
type RegisterResponse struct {
	Type        string                 `json:"type"` // register_map, register_data, sensors, export_config, error
	Sensor      string                 `json:"sensor,omitempty"`
	Model       string                 `json:"model,omitempty"`
	Address     string                 `json:"addr,omitempty"`
	Value       string                 `json:"value,omitempty"`
	Registers   map[string]string      `json:"registers,omitempty"`
	Sensors     []string               `json:"sensors,omitempty"`
	RegisterMap []sensors.RegisterInfo `json:"register_map,omitempty"`
	Config      *RegisterConfigFile    `json:"config,omitempty"`
	Filename    string                 `json:"filename,omitempty"`
	Timestamp   string                 `json:"timestamp,omitempty"`
	Message     string                 `json:"message,omitempty"`
}

// RegisterConfigFile is the exported register dump.
type RegisterConfigFile struct {
	Version   int               `json:"version"`
	Sensor    string            `json:"sensor"`
	Model     string            `json:"model"`
	Timestamp string            `json:"timestamp"`
	Registers map[string]string `json:"registers"` // hex address -> hex value
}

// RegisterDebugger answers register commands against live buses. Writes
// are only accepted for documented writable registers and only when
// allowed in the config.
type RegisterDebugger struct {
	targets     map[string]RegisterTarget
	allowWrites bool
	now         func() time.Time
	log         *slog.Logger
}

// NewRegisterDebugger returns a debugger over targets keyed by sensor name.
func NewRegisterDebugger(targets map[string]RegisterTarget, allowWrites bool, log *slog.Logger) *RegisterDebugger {
	if log == nil {
		log = slog.Default()
	}
	return &RegisterDebugger{targets: targets, allowWrites: allowWrites, now: time.Now, log: log}
}

// parseHex accepts "0x1B", "1B" or decimal "27".
func parseHex(s string) (byte, error) {
	s = strings.TrimSpace(s)
	base := 10
	if rest, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		s, base = rest, 16
	}
	v, err := strconv.ParseUint(s, base, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid byte %q", s)
	}
	return byte(v), nil
}

func hexByte(b byte) string { return fmt.Sprintf("0x%02X", b) }

func errorResponse(format string, args ...any) RegisterResponse {
	return RegisterResponse{Type: "error", Message: fmt.Sprintf(format, args...)}
}

// Handle executes one command.
func (d *RegisterDebugger) Handle(cmd RegisterCommand) RegisterResponse {
	if cmd.Action == "list" {
		names := make([]string, 0, len(d.targets))
		for name := range d.targets {
			names = append(names, name)
		}
		slices.Sort(names)
		return RegisterResponse{Type: "sensors", Sensors: names}
	}

	t, ok := d.targets[cmd.Sensor]
	if !ok {
		return errorResponse("unknown sensor %q", cmd.Sensor)
	}
	switch cmd.Action {
	case "get_map":
		return RegisterResponse{Type: "register_map", Sensor: cmd.Sensor, Model: t.Model, RegisterMap: sensors.RegisterMap(t.Model)}
	case "read":
		return d.read(cmd, t)
	case "read_all":
		regs, err := d.readAll(t)
		if err != nil {
			return errorResponse("read all error: %v", err)
		}
		return RegisterResponse{Type: "register_data", Sensor: cmd.Sensor, Model: t.Model, Registers: regs, Timestamp: d.stamp()}
	case "write":
		return d.write(cmd, t)
	case "export_config":
		regs, err := d.readAll(t)
		if err != nil {
			return errorResponse("export error: %v", err)
		}
		now := d.now()
		return RegisterResponse{
			Type:   "export_config",
			Sensor: cmd.Sensor,
			Model:  t.Model,
			Config: &RegisterConfigFile{
				Version:   1,
				Sensor:    cmd.Sensor,
				Model:     t.Model,
				Timestamp: now.Format(time.RFC3339),
				Registers: regs,
			},
			Filename: fmt.Sprintf("%s_%s_registers.json", cmd.Sensor, now.Format("20060102_150405")),
			Message:  "config exported",
		}
	default:
		return errorResponse("unknown action: %s", cmd.Action)
	}
}

func (d *RegisterDebugger) stamp() string { return d.now().Format(time.RFC3339) }

func (d *RegisterDebugger) read(cmd RegisterCommand, t RegisterTarget) RegisterResponse {
	reg, err := parseHex(cmd.Addr)
	if err != nil {
		return errorResponse("invalid address format: %v", err)
	}
	v, err := t.Bus.ReadRegister(t.Addr, reg)
	if err != nil {
		return errorResponse("read error: %v", err)
	}
	return RegisterResponse{Type: "register_data", Sensor: cmd.Sensor, Model: t.Model, Address: hexByte(reg), Value: hexByte(v), Timestamp: d.stamp()}
}

// readAll reads every documented register that is readable.
func (d *RegisterDebugger) readAll(t RegisterTarget) (map[string]string, error) {
	out := make(map[string]string)
	for _, info := range sensors.RegisterMap(t.Model) {
		if info.Access == "W" {
			continue
		}
		v, err := t.Bus.ReadRegister(t.Addr, info.Address)
		if err != nil {
			return nil, err
		}
		out[hexByte(info.Address)] = hexByte(v)
	}
	return out, nil
}

func (d *RegisterDebugger) write(cmd RegisterCommand, t RegisterTarget) RegisterResponse {
	if !d.allowWrites {
		return errorResponse("register writes are disabled")
	}
	reg, err := parseHex(cmd.Addr)
	if err != nil {
		return errorResponse("invalid address format: %v", err)
	}
	value, err := parseHex(cmd.Value)
	if err != nil {
		return errorResponse("invalid value format: %v", err)
	}
	info, ok := sensors.LookupRegister(t.Model, reg)
	if !ok || !info.Writable() {
		return errorResponse("register %s is not writable on %s", hexByte(reg), t.Model)
	}
	if err := t.Bus.WriteRegister(t.Addr, reg, value); err != nil {
		return errorResponse("write error: %v", err)
	}
	d.log.Info("register_debug: write", "sensor", cmd.Sensor, "reg", hexByte(reg), "value", hexByte(value))
	return RegisterResponse{
		Type:      "register_data",
		Sensor:    cmd.Sensor,
		Model:     t.Model,
		Address:   hexByte(reg),
		Value:     hexByte(value),
		Timestamp: d.stamp(),
		Message:   "write successful",
	}
}

// ServeHTTP runs one websocket session.
func (d *RegisterDebugger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.log.Warn("register_debug: websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(d.Handle(RegisterCommand{Action: "list"})); err != nil {
		return
	}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				d.log.Warn("register_debug: websocket error", "error", err)
			}
			return
		}
		var cmd RegisterCommand
		resp := errorResponse("malformed command")
		if err := json.Unmarshal(data, &cmd); err == nil {
			resp = d.Handle(cmd)
		}
		if err := conn.WriteJSON(resp); err != nil {
			return
		}
	}
}

// RunRegisterDebug serves the register tool for every configured sensor.
// It must not run alongside the collector on real hardware: both would
// drive the same devices.
func RunRegisterDebug(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	hw, err := openHardware(cfg, log)
	if err != nil {
		return err
	}
	defer hw.Close()

	plans, err := hw.plan(cfg)
	if err != nil {
		return err
	}
	targets := make(map[string]RegisterTarget, len(plans))
	for _, sp := range plans {
		targets[sp.Name] = RegisterTarget{Model: sp.Profile.Model, Addr: sp.Addr, Bus: sp.Bus}
	}

	dbg := NewRegisterDebugger(targets, cfg.RegisterDebug.AllowWrites, log)
	mux := http.NewServeMux()
	mux.Handle("GET /ws/registers", dbg)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.Web.StaticDir))))

	return Serve(ctx, &http.Server{Addr: cfg.RegisterDebug.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}, log)
}
