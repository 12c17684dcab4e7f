package battery

import "math"

// Sample is one reading from the sensor. Current is in milliamps, negative
// while the battery is charging.
type Sample struct {
	Voltage float64
	Current float64
}

// Averages is the smoothed view of the battery kept by an Averager.
type Averages struct {
	Voltage float64
	Current float64
	// LastRawVoltage is the raw voltage of the sample before the latest one.
	LastRawVoltage float64
}

// Averager keeps exponential moving averages of voltage and current. The
// current average follows the raw sample immediately when the battery changes
// between charging and discharging, or starts drawing current after being full.
type Averager struct {
	samples int
	primed  bool
	avg     Averages
	lastRaw float64
}

func NewAverager(samples int) *Averager {
	if samples < 1 {
		samples = 1
	}
	return &Averager{samples: samples}
}

// Update adds a sample and returns the new averages.
func (a *Averager) Update(s Sample) Averages {
	if !a.primed {
		a.primed = true
		a.avg = Averages{Voltage: s.Voltage, Current: s.Current, LastRawVoltage: s.Voltage}
		a.lastRaw = s.Voltage
		return a.avg
	}

	prevCurrent := a.avg.Current
	reversed := math.Signbit(s.Current) != math.Signbit(prevCurrent)
	leftFull := prevCurrent < fullCurrentThreshold && s.Current >= fullCurrentThreshold
	if reversed || leftFull {
		a.avg.Current = s.Current
	} else {
		a.avg.Current = a.blend(a.avg.Current, s.Current)
	}
	a.avg.Voltage = a.blend(a.avg.Voltage, s.Voltage)

	a.avg.LastRawVoltage = a.lastRaw
	a.lastRaw = s.Voltage
	return a.avg
}

func (a *Averager) blend(avg, v float64) float64 {
	n := float64(a.samples)
	return avg*(n-1)/n + v/n
}

// Reset makes both averages equal to s. The previous raw voltage is kept.
func (a *Averager) Reset(s Sample) Averages {
	a.avg.Voltage = s.Voltage
	a.avg.Current = s.Current
	return a.avg
}

func (a *Averager) Averages() Averages {
	return a.avg
}
