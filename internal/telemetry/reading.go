// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package telemetry holds the compensated reading model shared by the
// pollers, the store and the serving layer.
package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Kind is the closed set of sensor families the compensation engine knows.
type Kind string

const (
	KindBarometric Kind = "barometric"
	KindHumidity   Kind = "humidity"
	KindInertial   Kind = "inertial"
	KindRadio      Kind = "radio"
	KindPosition   Kind = "position" // GPS fixes, never compensated
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindBarometric, KindHumidity, KindInertial, KindRadio, KindPosition:
		return true
	}
	return false
}

// Measurement maps field names to physical values. Dotted names nest when
// encoded: "accel.x" becomes {"accel": {"x": ...}}.
type Measurement map[string]float64

// Clone returns an independent copy.
func (m Measurement) Clone() Measurement {
	if m == nil {
		return nil
	}
	out := make(Measurement, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Keys returns the field names sorted.
func (m Measurement) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reading is one compensated sample. Time is the wall-clock time the raw
// value was read from the device.
type Reading struct {
	Sensor string
	Kind   Kind
	Time   time.Time
	Values Measurement
}

// Clone returns a copy that shares no mutable state with r.
func (r Reading) Clone() Reading {
	r.Values = r.Values.Clone()
	return r
}

const (
	keyTimestamp = "timestamp"
	keyKind      = "kind"
)

// Reserved reports whether name is a top-level key of the reading
// encoding and so cannot name a sensor.
func Reserved(name string) bool {
	return name == keyTimestamp || name == keyKind
}

// MarshalJSON encodes {"timestamp": <unix seconds>, "kind": ..., "<sensor>": {...}}.
// "timestamp" and "kind" are the only reserved top-level keys; the one
// remaining key is the sensor. Sensors cannot take a reserved name.
func (r Reading) MarshalJSON() ([]byte, error) {
	if r.Sensor == "" || Reserved(r.Sensor) {
		return nil, fmt.Errorf("telemetry: invalid sensor name %q", r.Sensor)
	}
	out := map[string]any{
		keyTimestamp: encodeTime(r.Time),
		keyKind:      r.Kind,
		r.Sensor:     r.Values.nest(),
	}
	return json.Marshal(out)
}

// UnmarshalJSON reverses MarshalJSON.
func (r *Reading) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	ts, err := decodeTimestamp(raw)
	if err != nil {
		return err
	}

	var kind Kind
	if k, ok := raw[keyKind]; ok {
		if err := json.Unmarshal(k, &kind); err != nil {
			return fmt.Errorf("telemetry: kind: %w", err)
		}
		delete(raw, keyKind)
	}

	if len(raw) != 1 {
		return fmt.Errorf("telemetry: reading must carry exactly one sensor, got %d", len(raw))
	}
	for name, body := range raw {
		values, err := decodeFields(body)
		if err != nil {
			return fmt.Errorf("telemetry: sensor %s: %w", name, err)
		}
		*r = Reading{Sensor: name, Kind: kind, Time: ts, Values: values}
	}
	return nil
}

// Record is a multi-sensor snapshot: one top-level timestamp plus each
// sensor's latest fields.
type Record struct {
	Time    time.Time
	Sensors map[string]Measurement
}

// RecordOf merges readings into one record stamped with the newest time.
func RecordOf(readings ...Reading) Record {
	rec := Record{Sensors: make(map[string]Measurement, len(readings))}
	for _, r := range readings {
		if r.Time.After(rec.Time) {
			rec.Time = r.Time
		}
		rec.Sensors[r.Sensor] = r.Values.Clone()
	}
	return rec
}

// MarshalJSON encodes {"timestamp": ..., "<sensorA>": {...}, ...}.
func (rec Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(rec.Sensors)+1)
	out[keyTimestamp] = encodeTime(rec.Time)
	for name, m := range rec.Sensors {
		if Reserved(name) {
			return nil, fmt.Errorf("telemetry: invalid sensor name %q", name)
		}
		out[name] = m.nest()
	}
	return json.Marshal(out)
}

// UnmarshalJSON reverses MarshalJSON.
func (rec *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := decodeTimestamp(raw)
	if err != nil {
		return err
	}
	delete(raw, keyKind)

	out := Record{Time: ts, Sensors: make(map[string]Measurement, len(raw))}
	for name, body := range raw {
		values, err := decodeFields(body)
		if err != nil {
			return fmt.Errorf("telemetry: sensor %s: %w", name, err)
		}
		out.Sensors[name] = values
	}
	*rec = out
	return nil
}

func encodeTime(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

func decodeTimestamp(raw map[string]json.RawMessage) (time.Time, error) {
	tsRaw, ok := raw[keyTimestamp]
	if !ok {
		return time.Time{}, fmt.Errorf("telemetry: missing timestamp")
	}
	delete(raw, keyTimestamp)

	var ts float64
	if err := json.Unmarshal(tsRaw, &ts); err != nil {
		return time.Time{}, fmt.Errorf("telemetry: timestamp: %w", err)
	}
	if math.IsNaN(ts) || math.IsInf(ts, 0) {
		return time.Time{}, fmt.Errorf("telemetry: timestamp not finite")
	}
	return time.UnixMicro(int64(math.Round(ts * 1e6))), nil
}

func (m Measurement) nest() map[string]any {
	out := make(map[string]any)
	for key, v := range m {
		parts := strings.Split(key, ".")
		node := out
		for _, p := range parts[:len(parts)-1] {
			child, ok := node[p].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[p] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = v
	}
	return out
}

func decodeFields(body json.RawMessage) (Measurement, error) {
	var tree map[string]any
	if err := json.Unmarshal(body, &tree); err != nil {
		return nil, err
	}
	out := make(Measurement)
	if err := flatten("", tree, out); err != nil {
		return nil, err
	}
	return out, nil
}

func flatten(prefix string, tree map[string]any, out Measurement) error {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case float64:
			out[key] = val
		case map[string]any:
			if err := flatten(key, val, out); err != nil {
				return err
			}
		default:
			return fmt.Errorf("field %s: unsupported value %T", key, v)
		}
	}
	return nil
}
