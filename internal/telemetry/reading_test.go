package telemetry

import (
	"encoding/json"
	"testing"
	"time"
)

func TestReadingJSONShape(t *testing.T) {
	r := Reading{
		Sensor: "mpu9250",
		Kind:   KindInertial,
		Time:   time.Unix(1700000000, 250000000),
		Values: Measurement{"accel.x": 0.5, "accel.z": 1, "temperature": 24.5},
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		t.Fatalf("unmarshal generic: %v", err)
	}
	if ts := generic["timestamp"].(float64); ts != 1700000000.25 {
		t.Errorf("timestamp = %v, want 1700000000.25", ts)
	}
	if generic["kind"] != "inertial" {
		t.Errorf("kind = %v", generic["kind"])
	}
	body := generic["mpu9250"].(map[string]any)
	accel := body["accel"].(map[string]any)
	if accel["x"] != 0.5 || accel["z"] != 1.0 {
		t.Errorf("accel = %v", accel)
	}
	if body["temperature"] != 24.5 {
		t.Errorf("temperature = %v", body["temperature"])
	}
}

func TestReadingRoundTrip(t *testing.T) {
	in := Reading{
		Sensor: "bmp180",
		Kind:   KindBarometric,
		Time:   time.Now().Truncate(time.Microsecond),
		Values: Measurement{"temperature": 15, "pressure": 699.64, "altitude": 3016.659412200126},
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Reading
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if out.Sensor != in.Sensor || out.Kind != in.Kind {
		t.Errorf("identity mismatch: %+v", out)
	}
	if !out.Time.Equal(in.Time) {
		t.Errorf("time = %v, want %v", out.Time, in.Time)
	}
	if len(out.Values) != len(in.Values) {
		t.Fatalf("values = %v", out.Values)
	}
	for k, v := range in.Values {
		if out.Values[k] != v {
			t.Errorf("%s = %v, want %v", k, out.Values[k], v)
		}
	}
}

func TestReadingUnmarshalRejectsMultipleSensors(t *testing.T) {
	var r Reading
	err := json.Unmarshal([]byte(`{"timestamp": 1, "a": {"x": 1}, "b": {"y": 2}}`), &r)
	if err == nil {
		t.Fatal("expected error for two sensors")
	}
	err = json.Unmarshal([]byte(`{"a": {"x": 1}}`), &r)
	if err == nil {
		t.Fatal("expected error for missing timestamp")
	}
}

func TestRecordOfMergesLatest(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	rec := RecordOf(
		Reading{Sensor: "dht11", Kind: KindHumidity, Time: t0, Values: Measurement{"humidity": 45}},
		Reading{Sensor: "bmp180", Kind: KindBarometric, Time: t0.Add(time.Second), Values: Measurement{"temperature": 15}},
	)
	if !rec.Time.Equal(t0.Add(time.Second)) {
		t.Errorf("record time = %v", rec.Time)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	var back Record
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if len(back.Sensors) != 2 || back.Sensors["dht11"]["humidity"] != 45 || back.Sensors["bmp180"]["temperature"] != 15 {
		t.Errorf("record round trip = %+v", back.Sensors)
	}
}

func TestReservedKeysCannotNameSensors(t *testing.T) {
	for _, name := range []string{"timestamp", "kind"} {
		if !Reserved(name) {
			t.Errorf("%s should be reserved", name)
		}
		if _, err := json.Marshal(Reading{Sensor: name, Time: time.Unix(1, 0)}); err == nil {
			t.Errorf("reading with sensor %q encoded", name)
		}
		rec := Record{Time: time.Unix(1, 0), Sensors: map[string]Measurement{name: {"x": 1}}}
		if _, err := json.Marshal(rec); err == nil {
			t.Errorf("record with sensor %q encoded", name)
		}
	}
	if Reserved("bmp180") {
		t.Error("bmp180 reported reserved")
	}

	// Every key besides the reserved ones is the sensor.
	data, err := json.Marshal(Reading{Sensor: "hts221", Kind: KindHumidity, Time: time.Unix(1, 0), Values: Measurement{"humidity": 45}})
	if err != nil {
		t.Fatal(err)
	}
	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		t.Fatal(err)
	}
	var sensorKeys []string
	for k := range generic {
		if !Reserved(k) {
			sensorKeys = append(sensorKeys, k)
		}
	}
	if len(sensorKeys) != 1 || sensorKeys[0] != "hts221" {
		t.Errorf("sensor keys = %v", sensorKeys)
	}
}

func TestKindValid(t *testing.T) {
	for _, k := range []Kind{KindBarometric, KindHumidity, KindInertial, KindRadio, KindPosition} {
		if !k.Valid() {
			t.Errorf("%s should be valid", k)
		}
	}
	if Kind("lidar").Valid() {
		t.Error("unknown kind reported valid")
	}
}
