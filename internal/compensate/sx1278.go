// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package compensate

import (
	"github.com/relabs-tech/cubesat_telemetry/internal/calib"
	"github.com/relabs-tech/cubesat_telemetry/internal/telemetry"
)

// RSSI offsets in dBm for the LoRa low-frequency (band 1) and
// high-frequency ports.
const (
	rssiOffsetLF = -164
	rssiOffsetHF = -157
)

// SX1278Signal converts the LoRa status registers RegPktSnrValue,
// RegPktRssiValue and RegRssiValue into dB/dBm. The block's
// LowFrequencyModeOn bit selects the RSSI offset.
func SX1278Signal(snrRaw, pktRssiRaw, rssiRaw RawReading, cal calib.Block) (rssi, packetRSSI, snr float64, err error) {
	c, err := cal.Require("LowFrequencyModeOn")
	if err != nil {
		return 0, 0, 0, err
	}
	offset := float64(rssiOffsetHF)
	if c[0] != 0 {
		offset = rssiOffsetLF
	}

	snr = float64(int8(uint8(snrRaw))) / 4
	rssi = offset + float64(uint8(rssiRaw))
	packetRSSI = offset + float64(uint8(pktRssiRaw))
	if snr < 0 {
		packetRSSI += snr
	}
	return rssi, packetRSSI, snr, nil
}

func radio(raw Raw, cal calib.Block) (telemetry.Measurement, error) {
	ch, err := raw.channels("snr", "pkt_rssi", "rssi")
	if err != nil {
		return nil, err
	}
	rssi, pkt, snr, err := SX1278Signal(ch[0], ch[1], ch[2], cal)
	if err != nil {
		return nil, err
	}
	return telemetry.Measurement{"rssi": rssi, "packet_rssi": pkt, "snr": snr}, nil
}
