// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/cubesat_telemetry/internal/telemetry"
)

// Config holds all application configuration values.
type Config struct {
	Log           LogConfig           `yaml:"log"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	Web           WebConfig           `yaml:"web"`
	Store         StoreConfig         `yaml:"store"`
	Persist       PersistConfig       `yaml:"persist"`
	Buses         []BusConfig         `yaml:"buses"`
	Sensors       []SensorConfig      `yaml:"sensors"`
	GPS           GPSConfig           `yaml:"gps"`
	Display       DisplayConfig       `yaml:"display"`
	RegisterDebug RegisterDebugConfig `yaml:"register_debug"`
}

// ---- LOGGING ----

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text (tint) or json
}

// ---- MQTT ----

type MQTTConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Broker            string `yaml:"broker"`
	ClientIDCollector string `yaml:"client_id_collector"`
	ClientIDConsole   string `yaml:"client_id_console"`
	TopicPrefix       string `yaml:"topic_prefix"` // readings go to <prefix>/<sensor>
	QoS               byte   `yaml:"qos"`
	Retain            bool   `yaml:"retain"`
	QueueSize         int    `yaml:"queue_size"`
}

// ---- WEB ----

type WebConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

// ---- STORE / PERSISTENCE ----

type StoreConfig struct {
	Capacity int `yaml:"capacity"`
}

type PersistConfig struct {
	Path     string        `yaml:"path"`
	Format   string        `yaml:"format"` // array or lines
	Interval time.Duration `yaml:"interval"`
	Archive  ArchiveConfig `yaml:"archive"`
}

type ArchiveConfig struct {
	Path      string `yaml:"path"` // empty disables the SQLite archive
	QueueSize int    `yaml:"queue_size"`
	WarmStart int    `yaml:"warm_start"` // readings reloaded into the store at startup
}

// ---- HARDWARE ----

// BusConfig describes one physical or simulated bus. Type "sim" attaches
// simulated devices for every sensor on it.
type BusConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`   // i2c, spi or sim
	Device  string `yaml:"device"` // periph name: /dev/i2c-1, or the SPI port (SPI0) without chip select
	SpeedHz int64  `yaml:"speed_hz"`
	Mode    int    `yaml:"mode"`
}

type SensorConfig struct {
	Name         string        `yaml:"name"`
	Model        string        `yaml:"model"`
	Bus          string        `yaml:"bus"`
	Address      *uint16       `yaml:"address"` // nil uses the model's default
	ChipSelect   int           `yaml:"cs"`      // SPI buses only: SPI0.<cs>
	Interval     time.Duration `yaml:"interval"`
	MaxFailures  int           `yaml:"max_failures"`
	Oversampling int           `yaml:"oversampling"`
	AccelRange   int           `yaml:"accel_range"`
	GyroRange    int           `yaml:"gyro_range"`
	Band         string        `yaml:"band"`
	Disabled     bool          `yaml:"disabled"`
}

type GPSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Name     string `yaml:"name"`
	Port     string `yaml:"port"`
	BaudRate uint   `yaml:"baud_rate"`
}

type DisplayConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Bus      string        `yaml:"bus"` // periph I2C name
	Address  uint16        `yaml:"address"`
	Interval time.Duration `yaml:"interval"`
	Sensors  []string      `yaml:"sensors"` // shown in order; empty shows all
}

type RegisterDebugConfig struct {
	Addr        string `yaml:"addr"`
	AllowWrites bool   `yaml:"allow_writes"`
}

// Package-level singleton: InitGlobal sets it once, Get reads it.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the YAML configuration file, applies defaults and validates.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.MQTT.ClientIDCollector == "" {
		c.MQTT.ClientIDCollector = "telemetry-collector"
	}
	if c.MQTT.ClientIDConsole == "" {
		c.MQTT.ClientIDConsole = "telemetry-console"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "telemetry"
	}
	if c.MQTT.QueueSize == 0 {
		c.MQTT.QueueSize = 256
	}
	if c.Web.Addr == "" {
		c.Web.Addr = ":8080"
	}
	if c.Web.StaticDir == "" {
		c.Web.StaticDir = "./web"
	}
	if c.Persist.Format == "" {
		c.Persist.Format = "array"
	}
	if c.Persist.Interval == 0 {
		c.Persist.Interval = time.Second
	}
	if c.Persist.Archive.QueueSize == 0 {
		c.Persist.Archive.QueueSize = 1024
	}
	for i := range c.Buses {
		if c.Buses[i].Type == "spi" && c.Buses[i].SpeedHz == 0 {
			c.Buses[i].SpeedHz = 1_000_000
		}
	}
	if c.GPS.Name == "" {
		c.GPS.Name = "gps"
	}
	if c.GPS.BaudRate == 0 {
		c.GPS.BaudRate = 9600
	}
	if c.Display.Address == 0 {
		c.Display.Address = 0x3C
	}
	if c.Display.Interval == 0 {
		c.Display.Interval = time.Second
	}
	if c.RegisterDebug.Addr == "" {
		c.RegisterDebug.Addr = ":8081"
	}
}

// validate checks required fields and cross references. All problems are
// reported together.
func (c *Config) validate() error {
	var errs []error

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required when mqtt is enabled"))
	}
	if c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos %d out of range", c.MQTT.QoS))
	}
	switch c.Persist.Format {
	case "array", "lines":
	default:
		errs = append(errs, fmt.Errorf("persist.format %q must be array or lines", c.Persist.Format))
	}
	if c.Store.Capacity < 0 {
		errs = append(errs, errors.New("store.capacity must not be negative"))
	}

	buses := make(map[string]bool, len(c.Buses))
	spiBuses := make(map[string]bool)
	for i, b := range c.Buses {
		if b.Name == "" {
			errs = append(errs, fmt.Errorf("buses[%d]: name is required", i))
			continue
		}
		if buses[b.Name] {
			errs = append(errs, fmt.Errorf("buses[%d]: duplicate name %q", i, b.Name))
		}
		buses[b.Name] = true
		switch b.Type {
		case "sim":
		case "i2c", "spi":
			if b.Device == "" {
				errs = append(errs, fmt.Errorf("bus %s: device is required", b.Name))
			}
			if b.Type == "spi" {
				spiBuses[b.Name] = true
				if strings.Contains(b.Device, ".") {
					errs = append(errs, fmt.Errorf("bus %s: device %q must name the port; chip select is set per sensor with cs", b.Name, b.Device))
				}
			}
		default:
			errs = append(errs, fmt.Errorf("bus %s: unknown type %q", b.Name, b.Type))
		}
	}

	names := make(map[string]bool, len(c.Sensors))
	chipSelects := make(map[string]string)
	for i, s := range c.Sensors {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("sensors[%d]: name is required", i))
			continue
		}
		if names[s.Name] {
			errs = append(errs, fmt.Errorf("sensors[%d]: duplicate name %q", i, s.Name))
		}
		names[s.Name] = true
		if telemetry.Reserved(s.Name) {
			errs = append(errs, fmt.Errorf("sensor %s: name is reserved by the reading encoding", s.Name))
		}
		if s.Model == "" {
			errs = append(errs, fmt.Errorf("sensor %s: model is required", s.Name))
		}
		if !buses[s.Bus] {
			errs = append(errs, fmt.Errorf("sensor %s: unknown bus %q", s.Name, s.Bus))
		}
		if s.Interval < 0 {
			errs = append(errs, fmt.Errorf("sensor %s: interval must not be negative", s.Name))
		}
		if s.MaxFailures < 0 {
			errs = append(errs, fmt.Errorf("sensor %s: max_failures must not be negative", s.Name))
		}
		if spiBuses[s.Bus] && !s.Disabled {
			key := fmt.Sprintf("%s.%d", s.Bus, s.ChipSelect)
			if s.ChipSelect < 0 {
				errs = append(errs, fmt.Errorf("sensor %s: cs must not be negative", s.Name))
			} else if other, ok := chipSelects[key]; ok {
				errs = append(errs, fmt.Errorf("sensor %s: cs %d on %s already used by %s", s.Name, s.ChipSelect, s.Bus, other))
			}
			chipSelects[key] = s.Name
		}
	}

	if c.GPS.Enabled && c.GPS.Port == "" {
		errs = append(errs, errors.New("gps.port is required when gps is enabled"))
	}
	if c.GPS.Enabled && names[c.GPS.Name] {
		errs = append(errs, fmt.Errorf("gps.name %q collides with a sensor", c.GPS.Name))
	}
	if c.GPS.Enabled && telemetry.Reserved(c.GPS.Name) {
		errs = append(errs, fmt.Errorf("gps.name %q is reserved by the reading encoding", c.GPS.Name))
	}
	if c.Display.Enabled && c.Display.Bus == "" {
		errs = append(errs, errors.New("display.bus is required when display is enabled"))
	}

	return errors.Join(errs...)
}

// Bus returns the bus config with the given name.
func (c *Config) Bus(name string) (BusConfig, bool) {
	for _, b := range c.Buses {
		if b.Name == name {
			return b, true
		}
	}
	return BusConfig{}, false
}

// InitGlobal loads the configuration once for the process.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
