package battery

import (
	"encoding/json"
	"os"
	"time"
)

// persistedCalibration is the on-disk form of the learnt references.
type persistedCalibration struct {
	ChargeVmax   float64   `json:"chargeVmax"`
	IdleFullVmax float64   `json:"idleFullVmax"`
	LastUpdated  time.Time `json:"lastUpdated"`
}

// loadCalibration reads the references saved after the last charge cycle.
// A missing file is not an error. Values outside [VMax - 0.3, VMax + COvr] are ignored.
func loadCalibration(path string, cfg Config) (chargeVmax, idleFullVmax float64, ok bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, false, nil
		}
		return 0, 0, false, err
	}
	var p persistedCalibration
	if err := json.Unmarshal(data, &p); err != nil {
		return 0, 0, false, err
	}
	if !plausibleReference(p.ChargeVmax, cfg) || !plausibleReference(p.IdleFullVmax, cfg) {
		log.Warnf("Ignoring saved calibration %.3fV/%.3fV, out of range", p.ChargeVmax, p.IdleFullVmax)
		return 0, 0, false, nil
	}
	return p.ChargeVmax, p.IdleFullVmax, true, nil
}

// A healthy cell settles no more than this below VMax when full. Anything lower
// in the state file would flatten or invert the capacity scale.
const maxReferenceDrop = 0.3

func plausibleReference(v float64, cfg Config) bool {
	return v >= cfg.VMax-maxReferenceDrop && v <= cfg.VMax+cfg.COvr
}

func saveCalibration(path string, cal Calibration) error {
	data, err := json.MarshalIndent(persistedCalibration{
		ChargeVmax:   cal.ChargeVmax,
		IdleFullVmax: cal.IdleFullVmax,
		LastUpdated:  time.Now(),
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
