package battery

const (
	// Below this current (mA) and not charging, the charger is holding the battery full.
	fullCurrentThreshold = 10.0
	// Discharging below VMin plus this margin is reported as low.
	lowVoltageMargin = 0.1
)

// State is the operating state of the battery.
type State int

const (
	StateStart State = iota
	StateCharging
	StateFull
	StateDischarging
	StateLow
)

var stateNames = [...]string{
	StateStart:       "Starting",
	StateCharging:    "Charging",
	StateFull:        "FULL",
	StateDischarging: "Discharging",
	StateLow:         "LOW!",
}

// stateLabels are the metric label values, stable and lowercase.
var stateLabels = [...]string{
	StateStart:       "start",
	StateCharging:    "charging",
	StateFull:        "full",
	StateDischarging: "discharging",
	StateLow:         "low",
}

func (s State) Label() string {
	if s < 0 || int(s) >= len(stateLabels) {
		return "unknown"
	}
	return stateLabels[s]
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Classify works out the state from the raw current and averaged voltage.
func Classify(rawCurrent, avgVoltage, vMin float64) State {
	switch {
	case rawCurrent < 0:
		return StateCharging
	case rawCurrent < fullCurrentThreshold:
		return StateFull
	case avgVoltage < vMin+lowVoltageMargin:
		return StateLow
	default:
		return StateDischarging
	}
}

// StateMachine tracks the current state. It starts in StateStart and never
// returns to it.
type StateMachine struct {
	vMin  float64
	state State
}

func NewStateMachine(vMin float64) *StateMachine {
	return &StateMachine{vMin: vMin, state: StateStart}
}

func (m *StateMachine) State() State {
	return m.state
}

// Next classifies the readings, stores the new state and returns the previous one.
func (m *StateMachine) Next(rawCurrent, avgVoltage float64) (prev, next State) {
	prev = m.state
	m.state = Classify(rawCurrent, avgVoltage, m.vMin)
	return prev, m.state
}
