package battery

import "math"

// energyDriftVolts is how far idleFullVmax must fall before the full energy is recalculated.
const energyDriftVolts = 0.01

// Calibration holds the references learnt from completed charge cycles.
// Energies are in the driver's micro watt hour unit (mAh * mV).
type Calibration struct {
	ChargeVmax           float64 `json:"chargeVmax"`
	PreviousChargeVmax   float64 `json:"previousChargeVmax"`
	IdleFullVmax         float64 `json:"idleFullVmax"`
	PreviousIdleFullVmax float64 `json:"previousIdleFullVmax"`
	EnergyFullDesign     int     `json:"energyFullDesign"`
	EnergyFullCurrent    int     `json:"energyFullCurrent"`
}

// NewCalibration returns the references for a new battery charged to VMax.
func NewCalibration(cfg Config) Calibration {
	design := EnergyFull(cfg.BatterySizemAh, cfg.VMin, cfg.VMax)
	return Calibration{
		ChargeVmax:           cfg.VMax,
		PreviousChargeVmax:   cfg.VMax,
		IdleFullVmax:         cfg.VMax,
		PreviousIdleFullVmax: cfg.VMax,
		EnergyFullDesign:     design,
		EnergyFullCurrent:    design,
	}
}

// EnergyFull estimates the stored energy of a full battery as its capacity
// times the voltage midway between empty and full.
func EnergyFull(batterySizemAh int, vMin, vFull float64) int {
	mid := vMin + (vFull-vMin)/2
	return batterySizemAh * int(math.Round(mid*1000))
}

// CompleteCycle records the references at the end of a charge cycle.
// chargeVoltage is the last raw voltage while charging, idleVoltage the raw
// voltage when the battery was found full.
func (c *Calibration) CompleteCycle(chargeVoltage, idleVoltage float64) {
	c.PreviousChargeVmax = c.ChargeVmax
	c.ChargeVmax = chargeVoltage
	c.PreviousIdleFullVmax = c.IdleFullVmax
	c.IdleFullVmax = idleVoltage
}

// CorrectEnergy recalculates EnergyFullCurrent when IdleFullVmax has dropped by
// more than 10mV since it was last used. It returns true if it changed.
func (c *Calibration) CorrectEnergy(cfg Config) bool {
	if c.IdleFullVmax >= c.PreviousIdleFullVmax-energyDriftVolts {
		return false
	}
	c.EnergyFullCurrent = EnergyFull(cfg.BatterySizemAh, cfg.VMin, c.IdleFullVmax)
	c.PreviousIdleFullVmax = c.IdleFullVmax
	return true
}
