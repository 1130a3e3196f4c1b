// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import "strings"

// BitField describes a bit range inside a register.
type BitField struct {
	Bits        string `json:"bits"` // "7" or "4:3"
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// RegisterInfo is register metadata shown by the register debug tool.
type RegisterInfo struct {
	Address     byte       `json:"address"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Access      string     `json:"access"` // "R", "W", "RW"
	Default     string     `json:"default,omitempty"`
	BitFields   []BitField `json:"bit_fields,omitempty"`
}

// Writable reports whether the register accepts writes.
func (r RegisterInfo) Writable() bool {
	return strings.Contains(r.Access, "W")
}

// RegisterMap returns the documented registers of model, or nil.
func RegisterMap(model string) []RegisterInfo {
	switch model {
	case "bmp180":
		return bmp180Registers
	case "hts221":
		return hts221Registers
	case "mpu9250":
		return mpu9250Registers
	case "sx1278":
		return sx1278Registers
	}
	return nil
}

// LookupRegister finds reg in model's map.
func LookupRegister(model string, reg byte) (RegisterInfo, bool) {
	for _, r := range RegisterMap(model) {
		if r.Address == reg {
			return r, true
		}
	}
	return RegisterInfo{}, false
}

var bmp180Registers = []RegisterInfo{
	{Address: 0xAA, Name: "CALIB0", Description: "E2PROM calibration start (AC1 MSB), 22 bytes to 0xBF", Access: "R"},
	{Address: 0xD0, Name: "ID", Description: "Chip ID (should be 0x55)", Access: "R", Default: "0x55"},
	{Address: 0xE0, Name: "SOFT_RESET", Description: "Write 0xB6 to reset", Access: "W"},
	{Address: 0xF4, Name: "CTRL_MEAS", Description: "Measurement control", Access: "RW", Default: "0x00",
		BitFields: []BitField{
			{Bits: "7:6", Name: "OSS", Description: "Pressure oversampling", Values: "0=1x, 1=2x, 2=4x, 3=8x"},
			{Bits: "5", Name: "SCO", Description: "Start of conversion", Values: "1=Running"},
			{Bits: "4:0", Name: "MEAS", Description: "Measurement", Values: "0x0E=Temperature, 0x14=Pressure"},
		}},
	{Address: 0xF6, Name: "OUT_MSB", Description: "ADC output MSB", Access: "R"},
	{Address: 0xF7, Name: "OUT_LSB", Description: "ADC output LSB", Access: "R"},
	{Address: 0xF8, Name: "OUT_XLSB", Description: "ADC output XLSB (pressure oversampling)", Access: "R"},
}

var hts221Registers = []RegisterInfo{
	{Address: 0x0F, Name: "WHO_AM_I", Description: "Device ID (should be 0xBC)", Access: "R", Default: "0xBC"},
	{Address: 0x10, Name: "AV_CONF", Description: "Humidity and temperature averaging", Access: "RW", Default: "0x1B",
		BitFields: []BitField{
			{Bits: "5:3", Name: "AVGT", Description: "Temperature samples averaged", Values: "0=2 ... 7=256"},
			{Bits: "2:0", Name: "AVGH", Description: "Humidity samples averaged", Values: "0=4 ... 7=512"},
		}},
	{Address: 0x20, Name: "CTRL_REG1", Description: "Control register 1", Access: "RW", Default: "0x00",
		BitFields: []BitField{
			{Bits: "7", Name: "PD", Description: "Power down control", Values: "0=Power down, 1=Active"},
			{Bits: "2", Name: "BDU", Description: "Block data update", Values: "0=Continuous, 1=Hold until read"},
			{Bits: "1:0", Name: "ODR", Description: "Output data rate", Values: "0=One shot, 1=1Hz, 2=7Hz, 3=12.5Hz"},
		}},
	{Address: 0x21, Name: "CTRL_REG2", Description: "Control register 2", Access: "RW", Default: "0x00",
		BitFields: []BitField{
			{Bits: "7", Name: "BOOT", Description: "Reboot memory content", Values: "1=Reboot"},
			{Bits: "0", Name: "ONE_SHOT", Description: "Start one-shot conversion", Values: "1=Start"},
		}},
	{Address: 0x27, Name: "STATUS_REG", Description: "Data available", Access: "R",
		BitFields: []BitField{
			{Bits: "1", Name: "H_DA", Description: "Humidity data available"},
			{Bits: "0", Name: "T_DA", Description: "Temperature data available"},
		}},
	{Address: 0x28, Name: "HUMIDITY_OUT_L", Description: "Humidity output low byte", Access: "R"},
	{Address: 0x29, Name: "HUMIDITY_OUT_H", Description: "Humidity output high byte", Access: "R"},
	{Address: 0x2A, Name: "TEMP_OUT_L", Description: "Temperature output low byte", Access: "R"},
	{Address: 0x2B, Name: "TEMP_OUT_H", Description: "Temperature output high byte", Access: "R"},
	{Address: 0x30, Name: "H0_rH_x2", Description: "Humidity calibration point 0 (x2)", Access: "R"},
	{Address: 0x31, Name: "H1_rH_x2", Description: "Humidity calibration point 1 (x2)", Access: "R"},
	{Address: 0x32, Name: "T0_degC_x8", Description: "Temperature calibration point 0 (x8)", Access: "R"},
	{Address: 0x33, Name: "T1_degC_x8", Description: "Temperature calibration point 1 (x8)", Access: "R"},
	{Address: 0x35, Name: "T1_T0_msb", Description: "Temperature calibration MSBs", Access: "R",
		BitFields: []BitField{
			{Bits: "3:2", Name: "T1_msb", Description: "T1_degC_x8 bits 9:8"},
			{Bits: "1:0", Name: "T0_msb", Description: "T0_degC_x8 bits 9:8"},
		}},
	{Address: 0x36, Name: "H0_T0_OUT_L", Description: "Humidity ADC at H0", Access: "R"},
	{Address: 0x3A, Name: "H1_T0_OUT_L", Description: "Humidity ADC at H1", Access: "R"},
	{Address: 0x3C, Name: "T0_OUT_L", Description: "Temperature ADC at T0", Access: "R"},
	{Address: 0x3E, Name: "T1_OUT_L", Description: "Temperature ADC at T1", Access: "R"},
}

var mpu9250Registers = []RegisterInfo{
	{Address: 0x19, Name: "SMPLRT_DIV", Description: "Sample Rate Divider", Access: "RW", Default: "0x00",
		BitFields: []BitField{
			{Bits: "7:0", Name: "SMPLRT_DIV", Description: "Sample Rate = Internal_Sample_Rate / (1 + SMPLRT_DIV)", Values: "0-255"},
		}},
	{Address: 0x1A, Name: "CONFIG", Description: "Configuration (DLPF)", Access: "RW", Default: "0x00",
		BitFields: []BitField{
			{Bits: "6", Name: "FIFO_MODE", Description: "FIFO mode", Values: "0=Overwrite, 1=Block new data"},
			{Bits: "2:0", Name: "DLPF_CFG", Description: "Digital Low Pass Filter", Values: "0=250Hz, 1=184Hz, 2=92Hz, 3=41Hz, 4=20Hz, 5=10Hz, 6=5Hz, 7=3600Hz"},
		}},
	{Address: 0x1B, Name: "GYRO_CONFIG", Description: "Gyroscope Configuration", Access: "RW", Default: "0x00",
		BitFields: []BitField{
			{Bits: "4:3", Name: "GYRO_FS_SEL", Description: "Gyro Full Scale Range", Values: "0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s"},
			{Bits: "1:0", Name: "Fchoice_b", Description: "Gyro DLPF bypass", Values: "0=DLPF enabled"},
		}},
	{Address: 0x1C, Name: "ACCEL_CONFIG", Description: "Accelerometer Configuration", Access: "RW", Default: "0x00",
		BitFields: []BitField{
			{Bits: "4:3", Name: "ACCEL_FS_SEL", Description: "Accel Full Scale Range", Values: "0=±2g, 1=±4g, 2=±8g, 3=±16g"},
		}},
	{Address: 0x1D, Name: "ACCEL_CONFIG2", Description: "Accelerometer Configuration 2", Access: "RW", Default: "0x00",
		BitFields: []BitField{
			{Bits: "3", Name: "accel_fchoice_b", Description: "Accel DLPF bypass", Values: "0=DLPF enabled, 1=Bypass"},
			{Bits: "2:0", Name: "A_DLPFCFG", Description: "Accel DLPF Config", Values: "0=460Hz, 1=184Hz, 2=92Hz, 3=41Hz, 4=20Hz, 5=10Hz, 6=5Hz, 7=460Hz"},
		}},
	{Address: 0x3A, Name: "INT_STATUS", Description: "Interrupt Status", Access: "R", Default: "0x00",
		BitFields: []BitField{
			{Bits: "0", Name: "RAW_DATA_RDY_INT", Description: "Raw data ready interrupt status"},
		}},
	{Address: 0x3B, Name: "ACCEL_XOUT_H", Description: "Accelerometer X-Axis High Byte", Access: "R"},
	{Address: 0x3C, Name: "ACCEL_XOUT_L", Description: "Accelerometer X-Axis Low Byte", Access: "R"},
	{Address: 0x3D, Name: "ACCEL_YOUT_H", Description: "Accelerometer Y-Axis High Byte", Access: "R"},
	{Address: 0x3E, Name: "ACCEL_YOUT_L", Description: "Accelerometer Y-Axis Low Byte", Access: "R"},
	{Address: 0x3F, Name: "ACCEL_ZOUT_H", Description: "Accelerometer Z-Axis High Byte", Access: "R"},
	{Address: 0x40, Name: "ACCEL_ZOUT_L", Description: "Accelerometer Z-Axis Low Byte", Access: "R"},
	{Address: 0x41, Name: "TEMP_OUT_H", Description: "Temperature High Byte", Access: "R"},
	{Address: 0x42, Name: "TEMP_OUT_L", Description: "Temperature Low Byte", Access: "R"},
	{Address: 0x43, Name: "GYRO_XOUT_H", Description: "Gyroscope X-Axis High Byte", Access: "R"},
	{Address: 0x44, Name: "GYRO_XOUT_L", Description: "Gyroscope X-Axis Low Byte", Access: "R"},
	{Address: 0x45, Name: "GYRO_YOUT_H", Description: "Gyroscope Y-Axis High Byte", Access: "R"},
	{Address: 0x46, Name: "GYRO_YOUT_L", Description: "Gyroscope Y-Axis Low Byte", Access: "R"},
	{Address: 0x47, Name: "GYRO_ZOUT_H", Description: "Gyroscope Z-Axis High Byte", Access: "R"},
	{Address: 0x48, Name: "GYRO_ZOUT_L", Description: "Gyroscope Z-Axis Low Byte", Access: "R"},
	{Address: 0x6B, Name: "PWR_MGMT_1", Description: "Power Management 1", Access: "RW", Default: "0x01",
		BitFields: []BitField{
			{Bits: "7", Name: "H_RESET", Description: "Device reset", Values: "1=Reset device"},
			{Bits: "6", Name: "SLEEP", Description: "Sleep mode", Values: "0=Disabled, 1=Sleep"},
			{Bits: "2:0", Name: "CLKSEL", Description: "Clock source", Values: "0=Internal 20MHz, 1=Auto select best"},
		}},
	{Address: 0x6C, Name: "PWR_MGMT_2", Description: "Power Management 2", Access: "RW", Default: "0x00"},
	{Address: 0x75, Name: "WHO_AM_I", Description: "Device ID (should be 0x71)", Access: "R", Default: "0x71"},
}

var sx1278Registers = []RegisterInfo{
	{Address: 0x01, Name: "RegOpMode", Description: "Operating mode", Access: "RW", Default: "0x09",
		BitFields: []BitField{
			{Bits: "7", Name: "LongRangeMode", Description: "Modem", Values: "0=FSK/OOK, 1=LoRa"},
			{Bits: "3", Name: "LowFrequencyModeOn", Description: "Register bank", Values: "0=High frequency, 1=Low frequency"},
			{Bits: "2:0", Name: "Mode", Description: "Transceiver mode", Values: "0=Sleep, 1=Standby, 3=TX, 5=RX continuous, 6=RX single"},
		}},
	{Address: 0x06, Name: "RegFrfMsb", Description: "Carrier frequency MSB", Access: "RW", Default: "0x6C"},
	{Address: 0x07, Name: "RegFrfMid", Description: "Carrier frequency MID", Access: "RW", Default: "0x80"},
	{Address: 0x08, Name: "RegFrfLsb", Description: "Carrier frequency LSB", Access: "RW", Default: "0x00"},
	{Address: 0x09, Name: "RegPaConfig", Description: "PA selection and output power", Access: "RW", Default: "0x4F"},
	{Address: 0x12, Name: "RegIrqFlags", Description: "IRQ flags, write 1 to clear", Access: "RW"},
	{Address: 0x13, Name: "RegRxNbBytes", Description: "Bytes of last received packet", Access: "R"},
	{Address: 0x19, Name: "RegPktSnrValue", Description: "SNR of last packet, two's complement quarter dB", Access: "R"},
	{Address: 0x1A, Name: "RegPktRssiValue", Description: "RSSI of last packet", Access: "R"},
	{Address: 0x1B, Name: "RegRssiValue", Description: "Current RSSI", Access: "R"},
	{Address: 0x1D, Name: "RegModemConfig1", Description: "Bandwidth, coding rate, header mode", Access: "RW", Default: "0x72"},
	{Address: 0x1E, Name: "RegModemConfig2", Description: "Spreading factor, CRC", Access: "RW", Default: "0x70"},
	{Address: 0x42, Name: "RegVersion", Description: "Silicon revision (should be 0x12)", Access: "R", Default: "0x12"},
}
