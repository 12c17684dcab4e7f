package battery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDesignEnergy(t *testing.T) {
	cal := NewCalibration(DefaultConfig())
	assert.Equal(t, 21300000, cal.EnergyFullDesign)
	assert.Equal(t, 21300000, cal.EnergyFullCurrent)
	assert.Equal(t, 4.2, cal.ChargeVmax)
	assert.Equal(t, 4.2, cal.IdleFullVmax)
}

func TestEnergyFull(t *testing.T) {
	assert.Equal(t, 21240000, EnergyFull(6000, 2.9, 4.18))
	assert.Equal(t, 10620000, EnergyFull(3000, 2.9, 4.18))
}

func TestCompleteCycle(t *testing.T) {
	cal := NewCalibration(DefaultConfig())
	cal.CompleteCycle(4.15, 4.18)
	assert.Equal(t, 4.15, cal.ChargeVmax)
	assert.Equal(t, 4.2, cal.PreviousChargeVmax)
	assert.Equal(t, 4.18, cal.IdleFullVmax)
	assert.Equal(t, 4.2, cal.PreviousIdleFullVmax)
}

func TestCorrectEnergy(t *testing.T) {
	cfg := DefaultConfig()
	cal := NewCalibration(cfg)

	cal.CompleteCycle(4.19, 4.195)
	assert.False(t, cal.CorrectEnergy(cfg), "5mV drop is within the allowed drift")
	assert.Equal(t, 21300000, cal.EnergyFullCurrent)

	cal.CompleteCycle(4.15, 4.18)
	assert.True(t, cal.CorrectEnergy(cfg))
	assert.Equal(t, 21240000, cal.EnergyFullCurrent)
	assert.Equal(t, 4.18, cal.PreviousIdleFullVmax)

	assert.False(t, cal.CorrectEnergy(cfg), "correction only happens once per drop")
	assert.Equal(t, 21300000, cal.EnergyFullDesign)
}

func TestCorrectEnergyIgnoresRise(t *testing.T) {
	cfg := DefaultConfig()
	cal := NewCalibration(cfg)
	cal.CompleteCycle(4.21, 4.22)
	assert.False(t, cal.CorrectEnergy(cfg))
}
