package battery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const tolerance = 1e-9

func TestAveragerPrimesWithFirstSample(t *testing.T) {
	a := NewAverager(10)
	avg := a.Update(Sample{Voltage: 3.7, Current: 250})
	assert.Equal(t, Averages{Voltage: 3.7, Current: 250, LastRawVoltage: 3.7}, avg)
}

func TestAveragerBlends(t *testing.T) {
	a := NewAverager(10)
	a.Update(Sample{Voltage: 4.0, Current: 100})
	avg := a.Update(Sample{Voltage: 3.0, Current: 200})
	assert.InDelta(t, 3.9, avg.Voltage, tolerance)
	assert.InDelta(t, 110, avg.Current, tolerance)
	assert.Equal(t, 4.0, avg.LastRawVoltage)
}

func TestAveragerLastRawVoltageLagsOneSample(t *testing.T) {
	a := NewAverager(10)
	a.Update(Sample{Voltage: 3.5, Current: -200})
	a.Update(Sample{Voltage: 3.8, Current: -200})
	avg := a.Update(Sample{Voltage: 4.15, Current: -200})
	assert.Equal(t, 3.8, avg.LastRawVoltage)
}

func TestAveragerSnapsCurrentOnReversal(t *testing.T) {
	a := NewAverager(10)
	a.Update(Sample{Voltage: 4.1, Current: -200})
	avg := a.Update(Sample{Voltage: 4.1, Current: 50})
	assert.Equal(t, 50.0, avg.Current)

	avg = a.Update(Sample{Voltage: 4.1, Current: -30})
	assert.Equal(t, -30.0, avg.Current)
}

func TestAveragerSnapsCurrentWhenLeavingFull(t *testing.T) {
	a := NewAverager(10)
	a.Update(Sample{Voltage: 4.18, Current: 5})
	avg := a.Update(Sample{Voltage: 4.18, Current: 20})
	assert.Equal(t, 20.0, avg.Current)
}

func TestAveragerDoesNotSnapBelowThreshold(t *testing.T) {
	a := NewAverager(10)
	a.Update(Sample{Voltage: 4.18, Current: 5})
	avg := a.Update(Sample{Voltage: 4.18, Current: 8})
	assert.InDelta(t, 5.3, avg.Current, tolerance)
}

func TestAveragerResetKeepsLastRaw(t *testing.T) {
	a := NewAverager(10)
	a.Update(Sample{Voltage: 4.15, Current: -200})
	a.Update(Sample{Voltage: 4.18, Current: 5})
	avg := a.Reset(Sample{Voltage: 4.18, Current: 5})
	assert.Equal(t, 4.18, avg.Voltage)
	assert.Equal(t, 5.0, avg.Current)
	assert.Equal(t, 4.15, avg.LastRawVoltage)
	assert.Equal(t, avg, a.Averages())
}

func TestAveragerConverges(t *testing.T) {
	a := NewAverager(10)
	a.Update(Sample{Voltage: 3.0, Current: 100})
	var avg Averages
	for i := 0; i < 300; i++ {
		avg = a.Update(Sample{Voltage: 4.0, Current: 300})
	}
	assert.InDelta(t, 4.0, avg.Voltage, 1e-6)
	assert.InDelta(t, 300, avg.Current, 1e-6)
}

func TestAveragerVoltageDoesNotOvershoot(t *testing.T) {
	a := NewAverager(10)
	a.Update(Sample{Voltage: 3.0, Current: 100})
	prev := 3.0
	for i := 0; i < 500; i++ {
		avg := a.Update(Sample{Voltage: 4.2, Current: 100})
		assert.GreaterOrEqual(t, avg.Voltage, prev-1e-12)
		assert.LessOrEqual(t, avg.Voltage, 4.2+1e-12)
		prev = avg.Voltage
	}
}
