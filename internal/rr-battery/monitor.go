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

package battery

import (
	"context"
	"fmt"
	"time"
)

// Monitor runs the sampling loop: read the sensor, average, classify, calibrate,
// estimate capacity, then report and shut down when the battery is empty.
type Monitor struct {
	cfg        Config
	sensor     Sensor
	sink       ReportWriter
	shutdown   func() error
	publishers []Publisher
	onCycle    func(Calibration)

	averager *Averager
	machine  *StateMachine
	reporter *Reporter
	cal      Calibration

	capacity     int
	readFailures int
	lastStatus   Status
}

func NewMonitor(cfg Config, sensor Sensor, sink ReportWriter, shutdown func() error) *Monitor {
	return &Monitor{
		cfg:      cfg,
		sensor:   sensor,
		sink:     sink,
		shutdown: shutdown,
		averager: NewAverager(cfg.Samples),
		machine:  NewStateMachine(cfg.VMin),
		reporter: NewReporter(cfg.ReportEvery),
		cal:      NewCalibration(cfg),
		capacity: 100,
	}
}

// AddPublisher adds p to the publishers called on every report.
func (m *Monitor) AddPublisher(p Publisher) {
	m.publishers = append(m.publishers, p)
}

// OnChargeCycle sets a function called with the new references after each completed charge cycle.
func (m *Monitor) OnChargeCycle(fn func(Calibration)) {
	m.onCycle = fn
}

// RestoreCalibration replaces the learnt references. The previous references
// stay at VMax so a lower restored IdleFullVmax corrects the full energy on the first report.
func (m *Monitor) RestoreCalibration(chargeVmax, idleFullVmax float64) {
	m.cal.ChargeVmax = chargeVmax
	m.cal.IdleFullVmax = idleFullVmax
}

func (m *Monitor) Calibration() Calibration {
	return m.cal
}

func (m *Monitor) State() State {
	return m.machine.State()
}

func (m *Monitor) Capacity() int {
	return m.capacity
}

// LastStatus is the status of the most recent report.
func (m *Monitor) LastStatus() Status {
	return m.lastStatus
}

// Start writes the design energy to the driver. Called once before the first tick.
func (m *Monitor) Start() {
	log.Infof("Original battery capacity (Wh) = %.3f", float64(m.cal.EnergyFullDesign)/(1000*1000))
	if err := m.sink.WriteReport(StartupReport(m.cal)); err != nil {
		log.Errorf("Unable to write initialisation report: %v", err)
		m.recordReportFailure()
	}
}

// Run calls Start then ticks every interval until ctx is cancelled, the sensor
// fails or the battery is empty.
func (m *Monitor) Run(ctx context.Context) error {
	m.Start()
	for {
		if ctx.Err() != nil {
			log.Info("Battery monitor stopped")
			return nil
		}
		tickStart := time.Now()
		done, err := m.Tick()
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		wait := time.NewTimer(m.cfg.Interval - time.Since(tickStart))
		select {
		case <-ctx.Done():
			wait.Stop()
			log.Info("Battery monitor stopped")
			return nil
		case <-wait.C:
		}
	}
}

// Tick runs one iteration. It returns true when the loop should stop because
// a shutdown was requested, or an error once the sensor is considered dead.
func (m *Monitor) Tick() (bool, error) {
	sample, err := readSample(m.sensor)
	if err != nil {
		return m.readFailed(err)
	}
	m.readFailures = 0

	avg := m.averager.Update(sample)
	prev, state := m.machine.Next(sample.Current, avg.Voltage)
	changed := prev != state
	firstFull := changed && state == StateFull

	if firstFull {
		if prev != StateStart {
			m.completeCycle(avg.LastRawVoltage, sample.Voltage)
		}
		avg = m.averager.Reset(sample)
	}
	m.capacity = EstimateCapacity(state, firstFull, avg.Voltage, m.cal, m.cfg)

	log.Debugf("V=%.3f A=%.1f avgV=%.3f avgA=%.1f cap=%d%% state=%s",
		sample.Voltage, sample.Current, avg.Voltage, avg.Current, m.capacity, state)

	if changed {
		log.Infof("BATTERY IS %s", state)
	}

	if m.reporter.Due(changed) {
		m.report(sample, avg, state)
	}

	if avg.Voltage <= m.cfg.VMin {
		m.powerOff(avg)
		return true, nil
	}
	return false, nil
}

func (m *Monitor) readFailed(err error) (bool, error) {
	m.readFailures++
	for _, p := range m.publishers {
		if r, ok := p.(failureRecorder); ok {
			r.ReadFailed()
		}
	}
	log.Errorf("Failed to read battery sensor (%d/%d): %v", m.readFailures, m.cfg.MaxReadFailures, err)
	if m.readFailures < m.cfg.MaxReadFailures {
		return false, nil
	}
	log.Errorf("CRITICAL: battery sensor failed %d times in a row, stopping", m.readFailures)
	reportEvent(eventSensorFailure, map[string]interface{}{
		"failures": m.readFailures,
		"error":    err.Error(),
	})
	return true, fmt.Errorf("%w: %v", ErrSensorFailed, err)
}

func (m *Monitor) completeCycle(chargeVoltage, idleVoltage float64) {
	m.cal.CompleteCycle(chargeVoltage, idleVoltage)
	log.Infof("Updating charge Vmax from %.3fV to %.3fV", m.cal.PreviousChargeVmax, m.cal.ChargeVmax)
	log.Infof("Updating idle full Vmax from %.3fV to %.3fV", m.cal.PreviousIdleFullVmax, m.cal.IdleFullVmax)
	reportEvent(eventChargeCycle, map[string]interface{}{
		"chargeVmax":   m.cal.ChargeVmax,
		"idleFullVmax": m.cal.IdleFullVmax,
	})
	if m.onCycle != nil {
		m.onCycle(m.cal)
	}
}

func (m *Monitor) report(sample Sample, avg Averages, state State) {
	r := PeriodicReport(avg, m.capacity)
	if m.cal.CorrectEnergy(m.cfg) {
		r = append(r, Field{KeyEnergyFull, m.cal.EnergyFullCurrent})
		log.Infof("Updated battery capacity (Wh) = %.3f", float64(m.cal.EnergyFullCurrent)/(1000*1000))
	}
	if err := m.sink.WriteReport(r); err != nil {
		log.Errorf("Unable to write report: %v", err)
		m.recordReportFailure()
	}

	m.lastStatus = newStatus(sample, avg, state, m.capacity, m.cal)
	for _, p := range m.publishers {
		if err := p.Publish(m.lastStatus); err != nil {
			log.Errorf("Failed to publish battery status: %v", err)
		}
	}
}

func (m *Monitor) recordReportFailure() {
	for _, p := range m.publishers {
		if r, ok := p.(failureRecorder); ok {
			r.ReportFailed()
		}
	}
}

func (m *Monitor) powerOff(avg Averages) {
	log.Errorf("CRITICAL: battery empty (%.3fV), forcing shutdown now", avg.Voltage)
	reportEvent(eventBatteryEmpty, map[string]interface{}{
		"voltage": avg.Voltage,
	})
	if err := m.shutdown(); err != nil {
		log.Errorf("Shutdown request failed: %v", err)
	}
}
