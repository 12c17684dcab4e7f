package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/TheCacophonyProject/go-utils/logging"
	battery "github.com/TheCacophonyProject/redreactor-controller/internal/rr-battery"
	arg "github.com/alexflint/go-arg"
	"github.com/godbus/dbus"
)

const (
	dbusName = "org.cacophony.RedReactor"
	dbusPath = "/org/cacophony/RedReactor"
)

var version = "<not set>"
var log = logging.NewLogger("info")

type Args struct {
	JSON bool `arg:"--json" help:"print the raw JSON status"`
	logging.LogArgs
}

func procArgs(input []string) (Args, error) {
	var args Args

	parser, err := arg.NewParser(arg.Config{}, &args)
	if err != nil {
		return Args{}, err
	}
	err = parser.Parse(input)
	if errors.Is(err, arg.ErrHelp) {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if errors.Is(err, arg.ErrVersion) {
		fmt.Println(version)
		os.Exit(0)
	}
	return args, err
}

func Run(inputArgs []string, ver string) error {
	version = ver
	args, err := procArgs(inputArgs)
	if err != nil {
		return fmt.Errorf("failed to parse args: %v", err)
	}
	log = logging.NewLogger(args.LogLevel)

	raw, err := getStatus()
	if err != nil {
		return fmt.Errorf("failed to get status from %s: %w", dbusName, err)
	}
	if args.JSON {
		fmt.Println(raw)
		return nil
	}
	var s battery.Status
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return err
	}
	printStatus(os.Stdout, s)
	return nil
}

func getStatus() (string, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return "", err
	}
	obj := conn.Object(dbusName, dbusPath)
	var raw string
	if err := obj.Call(dbusName+".Status", 0).Store(&raw); err != nil {
		return "", err
	}
	return raw, nil
}

func printStatus(w io.Writer, s battery.Status) {
	if s.Time.IsZero() {
		fmt.Fprintln(w, "No reading reported yet")
		return
	}
	fmt.Fprintf(w, "Reported:       %s\n", s.Time.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "State:          %s\n", s.State)
	fmt.Fprintf(w, "Capacity:       %d%% (%s)\n", s.Capacity, s.CapacityLevel)
	fmt.Fprintf(w, "Voltage:        %.3fV (avg %.3fV)\n", s.Voltage, s.AvgVoltage)
	fmt.Fprintf(w, "Current:        %.1fmA (avg %.1fmA)\n", s.Current, s.AvgCurrent)
	fmt.Fprintf(w, "External power: %t\n", s.ExternalPower)
	fmt.Fprintf(w, "Charge Vmax:    %.3fV\n", s.ChargeVmax)
	fmt.Fprintf(w, "Idle full Vmax: %.3fV\n", s.IdleFullVmax)
	fmt.Fprintf(w, "Full energy:    %.3fWh of %.3fWh\n", float64(s.EnergyFull)/1e6, float64(s.EnergyFullDesign)/1e6)
}
