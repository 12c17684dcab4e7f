package battery

import "math"

// EstimateCapacity converts the averaged voltage into a charge percentage
// between 0 and 100. firstFull is set on the tick the battery became full.
func EstimateCapacity(state State, firstFull bool, avgVoltage float64, cal Calibration, cfg Config) int {
	var percent float64
	switch state {
	case StateCharging:
		percent = (avgVoltage - cfg.VMin) / (cal.ChargeVmax + cfg.COvr - cfg.VMin) * 100
	case StateFull:
		if firstFull {
			return 100
		}
		percent = (avgVoltage - cfg.VMin) / (cal.IdleFullVmax - cfg.COvr - cfg.VMin) * 100
	case StateDischarging, StateLow:
		percent = (avgVoltage - cfg.VMin) / (cal.IdleFullVmax - cfg.COvr - cfg.VMin) * 100
	default:
		return 100
	}
	return clampPercent(percent)
}

// clampPercent truncates like the driver always has, sensor noise can push
// the formulas slightly outside 0-100.
func clampPercent(p float64) int {
	switch {
	case math.IsNaN(p) || p <= 0:
		return 0
	case p >= 100:
		return 100
	}
	return int(p)
}

// CapacityLevel buckets a percentage the way the kernel power supply class does.
func CapacityLevel(capacity int) string {
	switch {
	case capacity >= 98:
		return "Full"
	case capacity >= 70:
		return "High"
	case capacity >= 30:
		return "Normal"
	case capacity >= 5:
		return "Low"
	default:
		return "Critical"
	}
}
