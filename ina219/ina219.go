/*
redreactor-controller - Battery monitoring for the RedReactor power HAT
Copyright (C) 2024, The Cacophony Project

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package ina219 talks to the TI INA219 current/voltage monitor used on the
// RedReactor board.
package ina219

import (
	"errors"
	"fmt"
	"math"
	"time"

	"periph.io/x/conn/v3/i2c"
)

const (
	DefaultAddress = 0x40

	regConfig       = 0x00
	regShuntVoltage = 0x01
	regBusVoltage   = 0x02
	regPower        = 0x03
	regCurrent      = 0x04
	regCalibration  = 0x05

	configReset    = 1 << 15
	configBRNG     = 13
	configPG0      = 11
	configBADC1    = 7
	configSADC1    = 3
	modeContShBus  = 7
	busOverflowBit = 0x01

	busMillivoltsLSB   = 4.0
	shuntMillivoltsLSB = 0.01
	calibrationFactor  = 0.04096
	currentLSBFactor   = 32800
	maxCalibration     = 0xFFFE

	maxTxAttempts   = 3
	txRetryInterval = 20 * time.Millisecond
)

// Range is the bus voltage range.
type Range uint16

const (
	Range16V Range = 0
	Range32V Range = 1
)

// Gain sets the shunt voltage range of the PGA.
type Gain uint16

const (
	Gain1_40mV  Gain = 0
	Gain2_80mV  Gain = 1
	Gain4_160mV Gain = 2
	Gain8_320mV Gain = 3
)

var gainVolts = map[Gain]float64{
	Gain1_40mV:  0.04,
	Gain2_80mV:  0.08,
	Gain4_160mV: 0.16,
	Gain8_320mV: 0.32,
}

// ADC sets resolution or averaging of the bus and shunt conversions.
type ADC uint16

const (
	ADC9Bit    ADC = 0
	ADC10Bit   ADC = 1
	ADC11Bit   ADC = 2
	ADC12Bit   ADC = 3
	ADC2Samp   ADC = 9
	ADC4Samp   ADC = 10
	ADC8Samp   ADC = 11
	ADC16Samp  ADC = 12
	ADC32Samp  ADC = 13
	ADC64Samp  ADC = 14
	ADC128Samp ADC = 15
)

var (
	// ErrOverflow is returned when the device flags a math overflow, the
	// current or power readings can not be trusted.
	ErrOverflow      = errors.New("ina219: conversion overflow")
	ErrNotConfigured = errors.New("ina219: device not configured")
)

// Conn is a single device on a bus. periph's *i2c.Dev satisfies it as does DBusConn.
type Conn interface {
	Tx(w, r []byte) error
}

var sleepFn = time.Sleep

type Device struct {
	conn            Conn
	shuntOhms       float64
	maxExpectedAmps float64
	currentLSB      float64
}

// New returns a device on conn. Configure must be called before Current.
func New(conn Conn, shuntOhms, maxExpectedAmps float64) *Device {
	return &Device{
		conn:            conn,
		shuntOhms:       shuntOhms,
		maxExpectedAmps: maxExpectedAmps,
	}
}

// Open returns a device talking directly to bus through periph.
func Open(bus i2c.Bus, addr uint16, shuntOhms, maxExpectedAmps float64) *Device {
	return New(&i2c.Dev{Bus: bus, Addr: addr}, shuntOhms, maxExpectedAmps)
}

// Configure resets the device, writes the calibration register and sets the
// conversion mode to continuous shunt and bus.
func (d *Device) Configure(voltageRange Range, gain Gain, busADC, shuntADC ADC) error {
	volts, ok := gainVolts[gain]
	if !ok {
		return fmt.Errorf("ina219: invalid gain %d", gain)
	}
	if voltageRange != Range16V && voltageRange != Range32V {
		return fmt.Errorf("ina219: invalid voltage range %d", voltageRange)
	}
	if err := d.Reset(); err != nil {
		return err
	}

	lsb, err := currentLSB(d.maxExpectedAmps, volts/d.shuntOhms, d.shuntOhms)
	if err != nil {
		return err
	}
	calibration := uint16(math.Trunc(calibrationFactor / (lsb * d.shuntOhms)))
	if err := d.writeRegister(regCalibration, calibration); err != nil {
		return fmt.Errorf("ina219: writing calibration: %w", err)
	}

	config := uint16(voltageRange)<<configBRNG |
		uint16(gain)<<configPG0 |
		uint16(busADC)<<configBADC1 |
		uint16(shuntADC)<<configSADC1 |
		modeContShBus
	if err := d.writeRegister(regConfig, config); err != nil {
		return fmt.Errorf("ina219: writing config: %w", err)
	}
	d.currentLSB = lsb
	return nil
}

// Reset sets all registers to their power on values.
func (d *Device) Reset() error {
	d.currentLSB = 0
	return d.writeRegister(regConfig, configReset)
}

// currentLSB picks the smallest current step that still covers the expected current.
func currentLSB(maxExpectedAmps, maxPossibleAmps, shuntOhms float64) (float64, error) {
	nearest := math.Round(maxPossibleAmps*1000) / 1000
	if maxExpectedAmps > nearest {
		return 0, fmt.Errorf("ina219: expected current %.3fA is greater than max possible current %.3fA",
			maxExpectedAmps, maxPossibleAmps)
	}
	lsb := maxPossibleAmps / currentLSBFactor
	if maxExpectedAmps < maxPossibleAmps {
		lsb = maxExpectedAmps / currentLSBFactor
	}
	minLSB := calibrationFactor / (shuntOhms * maxCalibration)
	if lsb < minLSB {
		lsb = minLSB
	}
	return lsb, nil
}

// BusVoltage returns the voltage on V- in volts.
func (d *Device) BusVoltage() (float64, error) {
	raw, err := d.readRegister(regBusVoltage)
	if err != nil {
		return 0, err
	}
	if raw&busOverflowBit != 0 {
		return 0, ErrOverflow
	}
	return float64(raw>>3) * busMillivoltsLSB / 1000, nil
}

// ShuntVoltage returns the voltage across the shunt in millivolts.
func (d *Device) ShuntVoltage() (float64, error) {
	raw, err := d.readRegister(regShuntVoltage)
	if err != nil {
		return 0, err
	}
	return float64(int16(raw)) * shuntMillivoltsLSB, nil
}

// SupplyVoltage returns the battery voltage, bus voltage plus the drop over the shunt.
func (d *Device) SupplyVoltage() (float64, error) {
	bus, err := d.BusVoltage()
	if err != nil {
		return 0, err
	}
	shunt, err := d.ShuntVoltage()
	if err != nil {
		return 0, err
	}
	return bus + shunt/1000, nil
}

// Current returns the current through the shunt in milliamps. On the RedReactor
// a negative current is charging the battery.
func (d *Device) Current() (float64, error) {
	if d.currentLSB == 0 {
		return 0, ErrNotConfigured
	}
	raw, err := d.readRegister(regCurrent)
	if err != nil {
		return 0, err
	}
	return float64(int16(raw)) * d.currentLSB * 1000, nil
}

func (d *Device) readRegister(reg byte) (uint16, error) {
	data := make([]byte, 2)
	var err error
	for i := range maxTxAttempts {
		if err = d.conn.Tx([]byte{reg}, data); err == nil {
			return uint16(data[0])<<8 | uint16(data[1]), nil
		}
		if i < maxTxAttempts-1 {
			sleepFn(txRetryInterval)
		}
	}
	return 0, fmt.Errorf("ina219: reading register 0x%02X: %w", reg, err)
}

func (d *Device) writeRegister(reg byte, val uint16) error {
	var err error
	for i := range maxTxAttempts {
		if err = d.conn.Tx([]byte{reg, byte(val >> 8), byte(val)}, nil); err == nil {
			return nil
		}
		if i < maxTxAttempts-1 {
			sleepFn(txRetryInterval)
		}
	}
	return err
}
