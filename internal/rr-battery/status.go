package battery

import "time"

// Status is a snapshot of the monitor, shared with the publishers on every report.
type Status struct {
	Time             time.Time `json:"time"`
	State            string    `json:"state"`
	Voltage          float64   `json:"voltage"`
	Current          float64   `json:"current"`
	AvgVoltage       float64   `json:"avgVoltage"`
	AvgCurrent       float64   `json:"avgCurrent"`
	Capacity         int       `json:"capacity"`
	CapacityLevel    string    `json:"capacityLevel"`
	ExternalPower    bool      `json:"externalPower"`
	ChargeVmax       float64   `json:"chargeVmax"`
	IdleFullVmax     float64   `json:"idleFullVmax"`
	EnergyFull       int       `json:"energyFull"`
	EnergyFullDesign int       `json:"energyFullDesign"`

	state State
}

func newStatus(s Sample, avg Averages, state State, capacity int, cal Calibration) Status {
	return Status{
		Time:             time.Now(),
		State:            state.String(),
		Voltage:          s.Voltage,
		Current:          s.Current,
		AvgVoltage:       avg.Voltage,
		AvgCurrent:       avg.Current,
		Capacity:         capacity,
		CapacityLevel:    CapacityLevel(capacity),
		ExternalPower:    avg.Current < fullCurrentThreshold,
		ChargeVmax:       cal.ChargeVmax,
		IdleFullVmax:     cal.IdleFullVmax,
		EnergyFull:       cal.EnergyFullCurrent,
		EnergyFullDesign: cal.EnergyFullDesign,
		state:            state,
	}
}

// Publisher gets every status that is reported to the driver.
type Publisher interface {
	Publish(s Status) error
}

// failureRecorder is implemented by publishers that count failures.
type failureRecorder interface {
	ReadFailed()
	ReportFailed()
}
