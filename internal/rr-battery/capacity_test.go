package battery

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapacityCharging(t *testing.T) {
	cfg := DefaultConfig()
	cal := NewCalibration(cfg)
	// 0.6 / 1.325
	assert.Equal(t, 45, EstimateCapacity(StateCharging, false, 3.5, cal, cfg))
	assert.Equal(t, 0, EstimateCapacity(StateCharging, false, 2.5, cal, cfg))
}

func TestCapacityDischarging(t *testing.T) {
	cfg := DefaultConfig()
	cal := NewCalibration(cfg)
	cal.IdleFullVmax = 4.15
	assert.Equal(t, 65, EstimateCapacity(StateDischarging, false, 3.7, cal, cfg))
	assert.Equal(t, 65, EstimateCapacity(StateLow, false, 3.7, cal, cfg))
	assert.Equal(t, 0, EstimateCapacity(StateLow, false, 2.8, cal, cfg))
}

func TestCapacityFull(t *testing.T) {
	cfg := DefaultConfig()
	cal := NewCalibration(cfg)
	cal.IdleFullVmax = 4.18
	assert.Equal(t, 100, EstimateCapacity(StateFull, true, 3.9, cal, cfg))
	assert.Equal(t, 100, EstimateCapacity(StateFull, false, 4.18, cal, cfg))
	assert.Equal(t, 79, EstimateCapacity(StateFull, false, 3.9, cal, cfg))
}

func TestCapacityStart(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 100, EstimateCapacity(StateStart, false, 3.0, NewCalibration(cfg), cfg))
}

func TestCapacityAlwaysInRange(t *testing.T) {
	cfg := DefaultConfig()
	r := rand.New(rand.NewSource(1))
	states := []State{StateCharging, StateFull, StateDischarging, StateLow}
	for i := 0; i < 10000; i++ {
		cal := NewCalibration(cfg)
		cal.ChargeVmax = 2.5 + r.Float64()*2
		cal.IdleFullVmax = 2.5 + r.Float64()*2
		v := r.Float64() * 6
		c := EstimateCapacity(states[r.Intn(len(states))], r.Intn(2) == 0, v, cal, cfg)
		assert.GreaterOrEqual(t, c, 0)
		assert.LessOrEqual(t, c, 100)
	}
}

func TestClampPercent(t *testing.T) {
	assert.Equal(t, 0, clampPercent(math.NaN()))
	assert.Equal(t, 0, clampPercent(math.Inf(-1)))
	assert.Equal(t, 100, clampPercent(math.Inf(1)))
	assert.Equal(t, 99, clampPercent(99.99))
	assert.Equal(t, 0, clampPercent(-0.5))
}

func TestCapacityLevel(t *testing.T) {
	assert.Equal(t, "Full", CapacityLevel(100))
	assert.Equal(t, "High", CapacityLevel(75))
	assert.Equal(t, "Normal", CapacityLevel(50))
	assert.Equal(t, "Low", CapacityLevel(10))
	assert.Equal(t, "Critical", CapacityLevel(2))
}
