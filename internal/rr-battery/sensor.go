package battery

import (
	"errors"
	"fmt"
)

// A battery voltage outside this range means a bad read, not a bad battery.
const (
	minPlausibleVolts = 0.0
	maxPlausibleVolts = 6.0
)

var (
	ErrOutOfRange   = errors.New("sensor reading out of range")
	ErrSensorFailed = errors.New("battery sensor failed")
)

// Sensor reads the battery voltage in volts and current in milliamps.
type Sensor interface {
	SupplyVoltage() (float64, error)
	Current() (float64, error)
}

func readSample(sensor Sensor) (Sample, error) {
	v, err := sensor.SupplyVoltage()
	if err != nil {
		return Sample{}, fmt.Errorf("reading voltage: %w", err)
	}
	c, err := sensor.Current()
	if err != nil {
		return Sample{}, fmt.Errorf("reading current: %w", err)
	}
	if v < minPlausibleVolts || v > maxPlausibleVolts {
		return Sample{}, fmt.Errorf("%w: %.3fV", ErrOutOfRange, v)
	}
	return Sample{Voltage: v, Current: c}, nil
}
