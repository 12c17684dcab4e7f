package battery

import (
	"bytes"
	"errors"
	"fmt"
)

// The driver rejects writes over 256 bytes.
const maxReportBytes = 256

const (
	KeyEnergyFullDesign = "energyfulldesign"
	KeyMicrovolts       = "microvolts"
	KeyMicroamps        = "microamps"
	KeyCapacity         = "capacity"
	KeyEnergyFull       = "energyfull"
)

var ErrReportTooLarge = errors.New("report exceeds driver write limit")

// Field is one "key = value" line of a report.
type Field struct {
	Key   string
	Value int
}

// Report is a set of lines written to the driver in a single write.
type Report []Field

// StartupReport is written once before sampling starts.
func StartupReport(cal Calibration) Report {
	return Report{{KeyEnergyFullDesign, cal.EnergyFullDesign}}
}

// PeriodicReport carries the averaged readings and capacity.
func PeriodicReport(avg Averages, capacity int) Report {
	return Report{
		{KeyMicrovolts, int(avg.Voltage * 1000 * 1000)},
		{KeyMicroamps, int(avg.Current * 1000)},
		{KeyCapacity, capacity},
	}
}

// Encode formats the report as newline terminated "key = value" lines.
func (r Report) Encode() ([]byte, error) {
	var buf bytes.Buffer
	for _, f := range r {
		fmt.Fprintf(&buf, "%s = %d\n", f.Key, f.Value)
	}
	if buf.Len() > maxReportBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrReportTooLarge, buf.Len())
	}
	return buf.Bytes(), nil
}

// ReportWriter delivers reports to the driver.
type ReportWriter interface {
	WriteReport(r Report) error
}

// Reporter decides which ticks produce a report: every ReportEvery ticks,
// restarting the count on a state change so that change is reported straight away.
type Reporter struct {
	every  int
	sample int
}

func NewReporter(every int) *Reporter {
	if every < 1 {
		every = 1
	}
	return &Reporter{every: every}
}

// Due is called once per tick and returns true if this tick should report.
func (r *Reporter) Due(stateChanged bool) bool {
	if stateChanged {
		r.sample = 0
	}
	due := r.sample%r.every == 0
	if due {
		r.sample = 0
	}
	r.sample++
	return due
}
