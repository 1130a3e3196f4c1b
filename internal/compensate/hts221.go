// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package compensate

import (
	"fmt"

	"github.com/relabs-tech/cubesat_telemetry/internal/calib"
	"github.com/relabs-tech/cubesat_telemetry/internal/telemetry"
)

// HTS221 interpolates linearly between the two factory calibration points.
// Humidity is clamped to [0, 100] %rH.
func HTS221(hOut, tOut int32, cal calib.Block) (humidity, temperature float64, err error) {
	c, err := cal.Require("H0_rH_x2", "H1_rH_x2", "T0_degC_x8", "T1_degC_x8", "T0_msb", "T1_msb",
		"H0_T0_OUT", "H1_T0_OUT", "T0_OUT", "T1_OUT")
	if err != nil {
		return 0, 0, err
	}
	h0rH := float64(c[0]) / 2
	h1rH := float64(c[1]) / 2
	t0degC := float64(c[4]<<8|c[2]) / 8
	t1degC := float64(c[5]<<8|c[3]) / 8
	h0Out, h1Out := c[6], c[7]
	t0Out, t1Out := c[8], c[9]

	if h1Out == h0Out {
		return 0, 0, fmt.Errorf("hts221 humidity: H1_T0_OUT == H0_T0_OUT: %w", ErrDivisionByZero)
	}
	if t1Out == t0Out {
		return 0, 0, fmt.Errorf("hts221 temperature: T1_OUT == T0_OUT: %w", ErrDivisionByZero)
	}

	humidity = h0rH + float64(hOut-h0Out)*(h1rH-h0rH)/float64(h1Out-h0Out)
	temperature = t0degC + float64(tOut-t0Out)*(t1degC-t0degC)/float64(t1Out-t0Out)

	switch {
	case humidity < 0:
		humidity = 0
	case humidity > 100:
		humidity = 100
	}
	return humidity, temperature, nil
}

func humidity(raw Raw, cal calib.Block) (telemetry.Measurement, error) {
	ch, err := raw.channels("h_out", "t_out")
	if err != nil {
		return nil, err
	}
	h, t, err := HTS221(ch[0].Signed16(), ch[1].Signed16(), cal)
	if err != nil {
		return nil, err
	}
	return telemetry.Measurement{"humidity": h, "temperature": t}, nil
}
